// Loghub - Multi-Tenant Audit Log Ingestion and Query Service
// Copyright 2026 Ocelot Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ocelotlabs/loghub

package search

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	opensearch "github.com/opensearch-project/opensearch-go/v2"
	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/ocelotlabs/loghub/internal/config"
	"github.com/ocelotlabs/loghub/internal/metrics"
	"github.com/ocelotlabs/loghub/internal/models"
)

// indexMapping fixes the field types up front. Identifier fields are
// keywords so filters are exact matches; message is analyzed text.
// State snapshots are stored but never indexed, their shape is
// tenant-controlled and unbounded.
const indexMapping = `{
  "settings": {
    "number_of_shards": 1,
    "number_of_replicas": 1
  },
  "mappings": {
    "properties": {
      "tenant_id":     {"type": "keyword"},
      "timestamp":     {"type": "date"},
      "action":        {"type": "keyword"},
      "resource_type": {"type": "keyword"},
      "resource_id":   {"type": "keyword"},
      "severity":      {"type": "keyword"},
      "message":       {"type": "text"},
      "user_id":       {"type": "keyword"},
      "session_id":    {"type": "keyword"},
      "request_id":    {"type": "keyword"},
      "ip_address":    {"type": "keyword"},
      "user_agent":    {"type": "text"},
      "before_state":  {"type": "object", "enabled": false},
      "after_state":   {"type": "object", "enabled": false},
      "metadata":      {"type": "object", "enabled": false}
    }
  }
}`

// Index is the search-side view of the log data, protected by a
// circuit breaker.
type Index struct {
	client  *opensearch.Client
	breaker *gobreaker.CircuitBreaker[[]byte]
	name    string
}

// NewIndex wires an Index over an existing client.
func NewIndex(client *opensearch.Client, cfg config.OpenSearchConfig) *Index {
	return &Index{
		client:  client,
		breaker: newBreaker("opensearch"),
		name:    cfg.Index,
	}
}

// document is the index-side shape of a log event. The document ID is
// the event's hex ID, so re-indexing is idempotent.
type document struct {
	TenantID    string         `json:"tenant_id"`
	Timestamp   time.Time      `json:"timestamp"`
	Action      string         `json:"action"`
	Resource    string         `json:"resource_type"`
	ResourceID  string         `json:"resource_id,omitempty"`
	Severity    string         `json:"severity"`
	Message     string         `json:"message"`
	UserID      string         `json:"user_id,omitempty"`
	SessionID   string         `json:"session_id,omitempty"`
	RequestID   string         `json:"request_id,omitempty"`
	IPAddress   string         `json:"ip_address,omitempty"`
	UserAgent   string         `json:"user_agent,omitempty"`
	BeforeState map[string]any `json:"before_state,omitempty"`
	AfterState  map[string]any `json:"after_state,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

func toDocument(event *models.LogEvent) *document {
	return &document{
		TenantID:    event.TenantID,
		Timestamp:   event.Timestamp,
		Action:      string(event.Action),
		Resource:    event.Resource,
		ResourceID:  event.ResourceID,
		Severity:    string(event.Severity),
		Message:     event.Message,
		UserID:      event.UserID,
		SessionID:   event.SessionID,
		RequestID:   event.RequestID,
		IPAddress:   event.IPAddress,
		UserAgent:   event.UserAgent,
		BeforeState: event.BeforeState,
		AfterState:  event.AfterState,
		Metadata:    event.Metadata,
	}
}

func (d *document) toEvent(id string) *models.LogEvent {
	return &models.LogEvent{
		EventID:     id,
		TenantID:    d.TenantID,
		Timestamp:   d.Timestamp,
		Action:      models.Action(d.Action),
		Resource:    d.Resource,
		ResourceID:  d.ResourceID,
		Severity:    models.Severity(d.Severity),
		Message:     d.Message,
		UserID:      d.UserID,
		SessionID:   d.SessionID,
		RequestID:   d.RequestID,
		IPAddress:   d.IPAddress,
		UserAgent:   d.UserAgent,
		BeforeState: d.BeforeState,
		AfterState:  d.AfterState,
		Metadata:    d.Metadata,
	}
}

// execute runs one index request behind the breaker and returns the
// response body.
func (ix *Index) execute(op string, fn func() (*opensearchapi.Response, error)) ([]byte, error) {
	body, err := ix.breaker.Execute(func() ([]byte, error) {
		res, err := fn()
		if err != nil {
			return nil, err
		}
		defer res.Body.Close()

		payload, readErr := io.ReadAll(res.Body)
		if readErr != nil {
			return nil, fmt.Errorf("read response: %w", readErr)
		}
		if res.StatusCode == http.StatusNotFound {
			return nil, ErrNotFound
		}
		if res.IsError() {
			return nil, fmt.Errorf("%w: %s %s", ErrUnavailable, res.Status(), truncate(payload, 200))
		}
		return payload, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.SearchRequests.WithLabelValues(op, "rejected").Inc()
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		if !errors.Is(err, ErrNotFound) {
			metrics.SearchRequests.WithLabelValues(op, "failure").Inc()
		}
		return nil, err
	}
	metrics.SearchRequests.WithLabelValues(op, "success").Inc()
	return body, nil
}

func truncate(b []byte, n int) string {
	s := string(b)
	if len(s) > n {
		return s[:n]
	}
	return s
}

// Ping checks cluster reachability without going through the breaker,
// so a health probe can observe recovery while the breaker is open.
func (ix *Index) Ping(ctx context.Context) error {
	ping := opensearchapi.PingRequest{}
	res, err := ping.Do(ctx, ix.client)
	if err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("ping: %s", res.Status())
	}
	return nil
}

// EnsureIndex creates the index with its mapping if it does not exist.
func (ix *Index) EnsureIndex(ctx context.Context) error {
	exists := opensearchapi.IndicesExistsRequest{Index: []string{ix.name}}
	res, err := exists.Do(ctx, ix.client)
	if err != nil {
		return fmt.Errorf("check index: %w", err)
	}
	res.Body.Close()
	if res.StatusCode == http.StatusOK {
		return nil
	}

	create := opensearchapi.IndicesCreateRequest{
		Index: ix.name,
		Body:  strings.NewReader(indexMapping),
	}
	_, err = ix.execute("create_index", func() (*opensearchapi.Response, error) {
		return create.Do(ctx, ix.client)
	})
	if err != nil {
		return fmt.Errorf("create index %s: %w", ix.name, err)
	}
	return nil
}

// Store upserts one event, keyed by its hex ID.
func (ix *Index) Store(ctx context.Context, event *models.LogEvent) error {
	id := event.HexID()
	if id == "" {
		return fmt.Errorf("index event: missing id")
	}

	body, err := json.Marshal(toDocument(event))
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}

	req := opensearchapi.IndexRequest{
		Index:      ix.name,
		DocumentID: id,
		Body:       bytes.NewReader(body),
	}
	if _, err := ix.execute("index", func() (*opensearchapi.Response, error) {
		return req.Do(ctx, ix.client)
	}); err != nil {
		return fmt.Errorf("index event %s: %w", id, err)
	}
	return nil
}

// Get returns one event by hex ID, scoped to the tenant. A document
// belonging to another tenant reports ErrNotFound.
func (ix *Index) Get(ctx context.Context, tenantID, id string) (*models.LogEvent, error) {
	req := opensearchapi.GetRequest{Index: ix.name, DocumentID: id}
	body, err := ix.execute("get", func() (*opensearchapi.Response, error) {
		return req.Do(ctx, ix.client)
	})
	if err != nil {
		return nil, err
	}

	var envelope struct {
		Found  bool     `json:"found"`
		Source document `json:"_source"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("decode get response: %w", err)
	}
	if !envelope.Found || envelope.Source.TenantID != tenantID {
		return nil, ErrNotFound
	}
	return envelope.Source.toEvent(id), nil
}

// DeleteOlderThan removes a tenant's documents with timestamps before
// the cutoff and returns the number deleted.
func (ix *Index) DeleteOlderThan(ctx context.Context, tenantID string, cutoff time.Time) (int64, error) {
	query := map[string]any{
		"query": map[string]any{
			"bool": map[string]any{
				"filter": []any{
					map[string]any{"term": map[string]any{"tenant_id": tenantID}},
					map[string]any{"range": map[string]any{
						"timestamp": map[string]any{"lt": cutoff.Format(time.RFC3339Nano)},
					}},
				},
			},
		},
	}
	body, err := json.Marshal(query)
	if err != nil {
		return 0, fmt.Errorf("marshal delete query: %w", err)
	}

	req := opensearchapi.DeleteByQueryRequest{
		Index: []string{ix.name},
		Body:  bytes.NewReader(body),
	}
	payload, err := ix.execute("delete_by_query", func() (*opensearchapi.Response, error) {
		return req.Do(ctx, ix.client)
	})
	if err != nil {
		return 0, fmt.Errorf("delete expired documents: %w", err)
	}

	var result struct {
		Deleted int64 `json:"deleted"`
	}
	if err := json.Unmarshal(payload, &result); err != nil {
		return 0, fmt.Errorf("decode delete response: %w", err)
	}
	return result.Deleted, nil
}

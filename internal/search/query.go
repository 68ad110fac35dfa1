// Loghub - Multi-Tenant Audit Log Ingestion and Query Service
// Copyright 2026 Ocelot Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ocelotlabs/loghub

package search

import (
	"bytes"
	"context"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"

	"github.com/ocelotlabs/loghub/internal/models"
)

// buildSearchBody translates a LogQuery into an OpenSearch request
// body. Exact fields become term filters; the free-text search is a
// multi_match weighted toward the message.
func buildSearchBody(q *models.LogQuery) map[string]any {
	filters := []any{
		map[string]any{"term": map[string]any{"tenant_id": q.TenantID}},
	}

	addTerm := func(field, value string) {
		if value != "" {
			filters = append(filters, map[string]any{
				"term": map[string]any{field: value},
			})
		}
	}
	addTerm("action", string(q.Action))
	addTerm("resource_type", q.Resource)
	addTerm("resource_id", q.ResourceID)
	addTerm("severity", string(q.Severity))
	addTerm("user_id", q.UserID)
	addTerm("session_id", q.SessionID)
	addTerm("request_id", q.RequestID)
	addTerm("ip_address", q.IPAddress)

	if !q.Since.IsZero() || !q.Until.IsZero() {
		window := map[string]any{}
		if !q.Since.IsZero() {
			window["gte"] = q.Since.Format(time.RFC3339Nano)
		}
		if !q.Until.IsZero() {
			window["lte"] = q.Until.Format(time.RFC3339Nano)
		}
		filters = append(filters, map[string]any{
			"range": map[string]any{"timestamp": window},
		})
	}

	boolQuery := map[string]any{"filter": filters}
	if q.Search != "" {
		boolQuery["must"] = []any{
			map[string]any{
				"multi_match": map[string]any{
					"query":  q.Search,
					"fields": []string{"message^2", "resource_type", "user_agent"},
				},
			},
		}
	}

	body := map[string]any{
		"query":            map[string]any{"bool": boolQuery},
		"from":             q.Skip,
		"sort":             []any{map[string]any{"timestamp": map[string]any{"order": "desc"}}},
		"track_total_hits": true,
	}
	if q.Limit > 0 {
		body["size"] = q.Limit
	}
	return body
}

// Query runs a search and returns one page of events, newest first.
func (ix *Index) Query(ctx context.Context, q *models.LogQuery) (*models.LogPage, error) {
	body, err := json.Marshal(buildSearchBody(q))
	if err != nil {
		return nil, fmt.Errorf("marshal search body: %w", err)
	}

	req := opensearchapi.SearchRequest{
		Index: []string{ix.name},
		Body:  bytes.NewReader(body),
	}
	payload, err := ix.execute("search", func() (*opensearchapi.Response, error) {
		return req.Do(ctx, ix.client)
	})
	if err != nil {
		return nil, err
	}

	var result struct {
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
			Hits []struct {
				ID     string   `json:"_id"`
				Source document `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	events := make([]*models.LogEvent, 0, len(result.Hits.Hits))
	for _, hit := range result.Hits.Hits {
		events = append(events, hit.Source.toEvent(hit.ID))
	}
	return &models.LogPage{Events: events, Total: result.Hits.Total.Value}, nil
}

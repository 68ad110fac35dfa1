// Loghub - Multi-Tenant Audit Log Ingestion and Query Service
// Copyright 2026 Ocelot Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ocelotlabs/loghub

// Package search maintains the OpenSearch log index. The index serves
// queries when healthy; every caller must be prepared to fall back to
// the durable store on any error from this package.
package search

import (
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"time"

	opensearch "github.com/opensearch-project/opensearch-go/v2"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/ocelotlabs/loghub/internal/config"
	"github.com/ocelotlabs/loghub/internal/logging"
	"github.com/ocelotlabs/loghub/internal/metrics"
)

var (
	// ErrNotFound is returned when a document is absent from the index
	// or owned by another tenant.
	ErrNotFound = errors.New("search: not found")

	// ErrUnavailable is returned when the circuit breaker is open or
	// the cluster rejected the request.
	ErrUnavailable = errors.New("search: unavailable")
)

// NewClient builds an OpenSearch client from configuration.
func NewClient(cfg config.OpenSearchConfig) (*opensearch.Client, error) {
	osCfg := opensearch.Config{
		Addresses: cfg.Addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
	}
	if cfg.Insecure {
		osCfg.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}

	client, err := opensearch.NewClient(osCfg)
	if err != nil {
		return nil, fmt.Errorf("create opensearch client: %w", err)
	}
	return client, nil
}

// newBreaker wraps index traffic in a circuit breaker so a struggling
// cluster sheds load fast instead of stacking timeouts. Opens after a
// 60% failure rate over at least 10 requests.
func newBreaker(name string) *gobreaker.CircuitBreaker[[]byte] {
	metrics.SearchBreakerState.WithLabelValues(name).Set(0)

	return gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
		// A missing document is an answer, not an outage; a burst of
		// get-by-id misses must not open the breaker.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrNotFound)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().
				Str("breaker", name).
				Str("from", breakerState(from)).
				Str("to", breakerState(to)).
				Msg("search breaker state change")
			metrics.SearchBreakerState.WithLabelValues(name).Set(breakerStateValue(to))
		},
	})
}

func breakerState(s gobreaker.State) string {
	switch s {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

func breakerStateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

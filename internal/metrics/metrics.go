// Loghub - Multi-Tenant Audit Log Ingestion and Query Service
// Copyright 2026 Ocelot Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ocelotlabs/loghub

// Package metrics exposes the Prometheus instrumentation shared by the
// server and worker processes.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "loghub_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "loghub_http_requests_in_flight",
			Help: "HTTP requests currently being served",
		},
	)

	// Ingestion metrics

	EventsEnqueued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loghub_events_enqueued_total",
			Help: "Events accepted for ingestion, by tenant",
		},
		[]string{"tenant"},
	)

	EventsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loghub_events_processed_total",
			Help: "Queue messages handled by the worker, by outcome",
		},
		[]string{"outcome"}, // "stored", "dropped", "retried"
	)

	IngestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "loghub_ingest_duration_seconds",
			Help:    "Time from dequeue to durable store acknowledgement",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Search metrics

	SearchRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loghub_search_requests_total",
			Help: "Search index requests, by operation and result",
		},
		[]string{"operation", "result"},
	)

	SearchFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loghub_search_fallbacks_total",
			Help: "Queries served by the durable store after an index error",
		},
		[]string{"operation"},
	)

	SearchBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "loghub_search_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"breaker"},
	)

	// Live stream metrics

	StreamClients = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "loghub_stream_clients",
			Help: "Connected WebSocket clients, by tenant",
		},
		[]string{"tenant"},
	)

	StreamBroadcasts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loghub_stream_broadcasts_total",
			Help: "Events fanned out to live subscribers, by tenant",
		},
		[]string{"tenant"},
	)

	StreamDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "loghub_stream_dropped_clients_total",
			Help: "Clients pruned after a failed delivery",
		},
	)

	// Retention metrics

	RetentionDeleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loghub_retention_deleted_total",
			Help: "Events removed by retention, by backend",
		},
		[]string{"backend"}, // "store", "index"
	)
)

// ObserveHTTPRequest records one completed request.
func ObserveHTTPRequest(method, route string, status int, elapsed time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(elapsed.Seconds())
}

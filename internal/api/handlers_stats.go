// Loghub - Multi-Tenant Audit Log Ingestion and Query Service
// Copyright 2026 Ocelot Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ocelotlabs/loghub

package api

import (
	"net/http"
	"time"
)

// statsWindow reads the optional start_time/end_time bounds for stats
// endpoints. Default window is the last 30 days.
func statsWindow(r *http.Request) (since, until time.Time, err error) {
	params := r.URL.Query()

	if since, err = parseTimeParam(params.Get("start_time")); err != nil {
		return
	}
	if until, err = parseTimeParam(params.Get("end_time")); err != nil {
		return
	}
	if since.IsZero() {
		since = time.Now().UTC().AddDate(0, 0, -30)
	}
	return
}

// StatsSummary returns severity and action breakdowns. Stats read the
// durable store; aggregations there are exact, and stats tolerate the
// extra latency.
// GET /stats/summary
func (h *Handler) StatsSummary(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	tenantID := requestTenant(r)

	since, until, err := statsWindow(r)
	if err != nil {
		rw.Error(http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		return
	}

	summary, err := h.logs.Summary(r.Context(), tenantID, since, until)
	if err != nil {
		WriteDomainError(w, r, err)
		return
	}
	rw.Success(summary)
}

// StatsTimeline returns per-day event counts.
// GET /stats/timeline
func (h *Handler) StatsTimeline(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	tenantID := requestTenant(r)

	since, until, err := statsWindow(r)
	if err != nil {
		rw.Error(http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		return
	}

	timeline, err := h.logs.Timeline(r.Context(), tenantID, since, until)
	if err != nil {
		WriteDomainError(w, r, err)
		return
	}
	rw.Success(timeline)
}

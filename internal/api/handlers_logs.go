// Loghub - Multi-Tenant Audit Log Ingestion and Query Service
// Copyright 2026 Ocelot Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ocelotlabs/loghub

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ocelotlabs/loghub/internal/audittrail"
	"github.com/ocelotlabs/loghub/internal/auth"
	"github.com/ocelotlabs/loghub/internal/logging"
	"github.com/ocelotlabs/loghub/internal/metrics"
	"github.com/ocelotlabs/loghub/internal/models"
	"github.com/ocelotlabs/loghub/internal/search"
)

func requestTenant(r *http.Request) string {
	return r.Header.Get(auth.TenantHeader)
}

// ProduceLog accepts one event and enqueues it.
// POST /logs
func (h *Handler) ProduceLog(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	tenantID := requestTenant(r)

	var req ProduceLogRequest
	if err := decodeJSON(w, r, &req); err != nil {
		rw.ErrorWithDetails(http.StatusBadRequest, ErrCodeValidationFailed, err.Error(), validationDetails(err))
		return
	}

	event := req.Event(tenantID, logging.RequestIDFromContext(r.Context()))
	messageID, err := h.queue.Enqueue(r.Context(), event)
	if err != nil {
		WriteDomainError(w, r, err)
		return
	}

	rw.Accepted(map[string]any{
		"status":     "queued",
		"message_id": messageID,
	})
}

// ProduceLogBulk accepts a batch of events and enqueues each one.
// Partial failure is reported per position, accepted events stay
// accepted.
// POST /logs/bulk
func (h *Handler) ProduceLogBulk(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	tenantID := requestTenant(r)

	var req BulkLogRequest
	if err := decodeJSON(w, r, &req); err != nil {
		rw.ErrorWithDetails(http.StatusBadRequest, ErrCodeValidationFailed, err.Error(), validationDetails(err))
		return
	}

	requestID := logging.RequestIDFromContext(r.Context())
	messageIDs := make([]string, 0, len(req.Events))
	var failed []map[string]any

	for i := range req.Events {
		event := req.Events[i].Event(tenantID, requestID)
		messageID, err := h.queue.Enqueue(r.Context(), event)
		if err != nil {
			failed = append(failed, map[string]any{
				"index": i,
				"error": err.Error(),
			})
			continue
		}
		messageIDs = append(messageIDs, messageID)
	}

	if len(messageIDs) == 0 && len(failed) > 0 {
		rw.ErrorWithDetails(http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "no events accepted", failed)
		return
	}

	rw.Accepted(map[string]any{
		"status":      "queued",
		"queued":      len(messageIDs),
		"message_ids": messageIDs,
		"failed":      failed,
	})
}

// QueryLogs searches a tenant's events. The search index answers when
// healthy; any index error falls back to the durable store so reads
// stay available during index outages.
// GET /logs
func (h *Handler) QueryLogs(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	tenantID := requestTenant(r)

	q, err := h.parseLogQuery(r, tenantID)
	if err != nil {
		rw.Error(http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		return
	}

	page, err := h.queryWithFallback(r, q)
	if err != nil {
		WriteDomainError(w, r, err)
		return
	}

	h.record(r, audittrail.Entry{
		Action:   "logs.query",
		TenantID: tenantID,
	})

	rw.SuccessWithPagination(page.Events, pageOf(page, q))
}

func (h *Handler) queryWithFallback(r *http.Request, q *models.LogQuery) (*models.LogPage, error) {
	if h.index != nil {
		page, err := h.index.Query(r.Context(), q)
		if err == nil {
			return page, nil
		}
		metrics.SearchFallbacks.WithLabelValues("query").Inc()
		logging.Ctx(r.Context()).Warn().Err(err).Msg("search query failed, serving from store")
	}
	return h.logs.Query(r.Context(), q)
}

// GetLog fetches one event by ID within the caller's tenant. Events of
// other tenants are reported as missing, not forbidden.
// GET /logs/{id}
func (h *Handler) GetLog(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	tenantID := requestTenant(r)
	id := chi.URLParam(r, "id")

	if h.index != nil {
		event, err := h.index.Get(r.Context(), tenantID, id)
		if err == nil {
			h.record(r, audittrail.Entry{Action: "logs.get", TenantID: tenantID, Detail: id})
			rw.Success(event)
			return
		}
		// Not-found in the index is not authoritative: the event may
		// be durable but not indexed yet.
		if !errors.Is(err, search.ErrNotFound) {
			metrics.SearchFallbacks.WithLabelValues("get").Inc()
			logging.Ctx(r.Context()).Warn().Err(err).Msg("search get failed, serving from store")
		}
	}

	event, err := h.logs.Get(r.Context(), tenantID, id)
	if err != nil {
		WriteDomainError(w, r, err)
		return
	}
	h.record(r, audittrail.Entry{Action: "logs.get", TenantID: tenantID, Detail: id})
	rw.Success(event)
}

// ReindexLogs rebuilds the tenant's search documents from the durable
// store, bounded by the start_time/end_time window (last 30 days when
// unset). Admin only.
// POST /logs/reindex
func (h *Handler) ReindexLogs(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	tenantID := requestTenant(r)

	if h.index == nil {
		rw.Error(http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "search index disabled")
		return
	}

	since, until, err := statsWindow(r)
	if err != nil {
		rw.Error(http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		return
	}

	var indexed, failed int64
	var errDetails []string
	err = h.logs.Each(r.Context(), tenantID, since, until, func(event *models.LogEvent) error {
		if err := h.index.Store(r.Context(), event); err != nil {
			failed++
			if len(errDetails) < 10 {
				errDetails = append(errDetails, event.HexID()+": "+err.Error())
			}
			logging.Ctx(r.Context()).Warn().Err(err).
				Str("event_id", event.HexID()).
				Msg("reindex write failed")
			return nil
		}
		indexed++
		return nil
	})
	if err != nil {
		WriteDomainError(w, r, err)
		return
	}

	h.record(r, audittrail.Entry{
		Action:   "logs.reindex",
		TenantID: tenantID,
		Detail:   "rebuilt search documents from durable store",
	})

	rw.Success(map[string]any{
		"indexed": indexed,
		"failed":  failed,
		"errors":  errDetails,
	})
}

// ApplyRetention deletes the tenant's events older than the retention
// window from both backends. The two deletions are independent; each
// side reports its own outcome and a failure on one does not undo the
// other.
// DELETE /logs/retention
func (h *Handler) ApplyRetention(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	tenantID := requestTenant(r)

	tenant, err := h.tenants.Get(r.Context(), tenantID)
	if err != nil {
		WriteDomainError(w, r, err)
		return
	}

	days := tenant.Settings.RetentionDays
	if raw := r.URL.Query().Get("days"); raw != "" {
		parsed, perr := parseRetentionDays(raw)
		if perr != nil {
			rw.Error(http.StatusBadRequest, ErrCodeBadRequest, perr.Error())
			return
		}
		days = parsed
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -days)

	storeDeleted, storeErr := h.logs.DeleteOlderThan(r.Context(), tenantID, cutoff)
	if storeErr == nil {
		metrics.RetentionDeleted.WithLabelValues("store").Add(float64(storeDeleted))
	}

	var indexDeleted int64
	var indexErr error
	if h.index != nil {
		indexDeleted, indexErr = h.index.DeleteOlderThan(r.Context(), tenantID, cutoff)
		if indexErr == nil {
			metrics.RetentionDeleted.WithLabelValues("index").Add(float64(indexDeleted))
		}
	}

	h.record(r, audittrail.Entry{
		Action:   "logs.retention",
		TenantID: tenantID,
		Detail:   "cutoff " + cutoff.Format(time.RFC3339),
	})

	result := map[string]any{
		"cutoff":         cutoff,
		"retention_days": days,
		"store": map[string]any{
			"deleted": storeDeleted,
			"error":   errString(storeErr),
		},
		"index": map[string]any{
			"deleted": indexDeleted,
			"error":   errString(indexErr),
		},
	}

	if storeErr != nil && indexErr != nil {
		rw.ErrorWithDetails(http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "retention failed on both backends", result)
		return
	}
	rw.Success(result)
}

func parseRetentionDays(raw string) (int, error) {
	days := 0
	for _, c := range raw {
		if c < '0' || c > '9' {
			return 0, errors.New("days must be a positive integer")
		}
		days = days*10 + int(c-'0')
		if days > 3650 {
			return 0, errors.New("days must be at most 3650")
		}
	}
	if days == 0 {
		return 0, errors.New("days must be a positive integer")
	}
	return days, nil
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func (h *Handler) record(r *http.Request, entry audittrail.Entry) {
	if h.trail == nil {
		return
	}
	if claims := auth.ClaimsFromContext(r.Context()); claims != nil {
		entry.Actor = claims.JTI
	}
	entry.RequestID = logging.RequestIDFromContext(r.Context())
	h.trail.Record(entry)
}

// Loghub - Multi-Tenant Audit Log Ingestion and Query Service
// Copyright 2026 Ocelot Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ocelotlabs/loghub

package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ocelotlabs/loghub/internal/models"
	"github.com/ocelotlabs/loghub/internal/search"
)

func TestParseLogQueryMapsEveryFilter(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet,
		"/logs?action=view&resource_type=report&resource_id=rep-7&severity=warning"+
			"&user_id=u-1&session_id=s-1&request_id=r-1&ip_address=10.0.0.1"+
			"&search=export&skip=50&limit=25", nil)

	q, err := env.handler.parseLogQuery(req, "acme")
	if err != nil {
		t.Fatalf("parseLogQuery: %v", err)
	}

	if q.TenantID != "acme" {
		t.Errorf("TenantID = %q, want acme", q.TenantID)
	}
	if q.Action != models.ActionView || q.Severity != models.SeverityWarning {
		t.Errorf("enums = %q/%q, want view/warning", q.Action, q.Severity)
	}
	if q.IPAddress != "10.0.0.1" {
		t.Errorf("IPAddress = %q, want 10.0.0.1", q.IPAddress)
	}
	if q.Resource != "report" || q.ResourceID != "rep-7" ||
		q.UserID != "u-1" || q.SessionID != "s-1" || q.RequestID != "r-1" {
		t.Errorf("identifier filters dropped: %+v", q)
	}
	if q.Search != "export" || q.Skip != 50 || q.Limit != 25 {
		t.Errorf("search/paging = %q/%d/%d, want export/50/25", q.Search, q.Skip, q.Limit)
	}
}

func TestQueryLogsServesFromIndex(t *testing.T) {
	env := newTestEnv(t)

	indexed := seedEvent("acme", models.SeverityInfo, time.Hour)
	if err := env.index.Store(context.Background(), indexed); err != nil {
		t.Fatal(err)
	}
	// The durable store holds a different event; seeing it in the
	// response would mean the index was bypassed.
	env.logs.events = append(env.logs.events, seedEvent("acme", models.SeverityError, time.Hour))

	rec := env.do(http.MethodGet, "/logs", "acme", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", rec.Code, rec.Body.String())
	}

	resp := decodeEnvelope(t, rec)
	events := resp.Data.([]any)
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	got := events[0].(map[string]any)
	if got["severity"] != "info" {
		t.Errorf("severity = %v, want info (index copy)", got["severity"])
	}
}

func TestQueryLogsFallsBackToStore(t *testing.T) {
	env := newTestEnv(t)
	env.index.queryErr = search.ErrUnavailable
	env.logs.events = append(env.logs.events, seedEvent("acme", models.SeverityInfo, time.Hour))

	rec := env.do(http.MethodGet, "/logs", "acme", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", rec.Code, rec.Body.String())
	}

	resp := decodeEnvelope(t, rec)
	if got := len(resp.Data.([]any)); got != 1 {
		t.Fatalf("got %d events from store fallback, want 1", got)
	}
	if resp.Meta == nil || resp.Meta.Pagination == nil || resp.Meta.Pagination.Total != 1 {
		t.Fatalf("pagination = %+v, want total 1", resp.Meta)
	}
}

func TestQueryLogsWithoutIndex(t *testing.T) {
	env := newTestEnv(t)
	env.handler.index = nil
	env.logs.events = append(env.logs.events, seedEvent("acme", models.SeverityInfo, time.Hour))

	rec := env.do(http.MethodGet, "/logs", "acme", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestQueryLogsTenantScoped(t *testing.T) {
	env := newTestEnv(t)
	env.handler.index = nil
	env.logs.events = append(env.logs.events,
		seedEvent("acme", models.SeverityInfo, time.Hour),
		seedEvent("globex", models.SeverityInfo, time.Hour),
	)

	rec := env.do(http.MethodGet, "/logs", "acme", "")
	resp := decodeEnvelope(t, rec)
	if got := len(resp.Data.([]any)); got != 1 {
		t.Fatalf("got %d events, want only acme's", got)
	}
}

func TestQueryLogsRejectsBadParams(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name   string
		target string
	}{
		{"unknown action", "/logs?action=destroy"},
		{"unknown severity", "/logs?severity=loud"},
		{"bad start_time", "/logs?start_time=yesterday"},
		{"end_time before start_time", "/logs?start_time=2026-02-01T00:00:00Z&end_time=2026-01-01T00:00:00Z"},
		{"negative skip", "/logs?skip=-1"},
		{"negative limit", "/logs?limit=-5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(http.MethodGet, tt.target, "acme", "")
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400 (body %s)", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestGetLogFromIndex(t *testing.T) {
	env := newTestEnv(t)

	event := seedEvent("acme", models.SeverityInfo, time.Hour)
	if err := env.index.Store(context.Background(), event); err != nil {
		t.Fatal(err)
	}

	rec := env.do(http.MethodGet, "/logs/"+event.HexID(), "acme", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", rec.Code, rec.Body.String())
	}
}

func TestGetLogUnindexedFallsThrough(t *testing.T) {
	env := newTestEnv(t)

	// Durable but not yet indexed: the index miss must not turn into
	// a 404 while the store still has the event.
	event := seedEvent("acme", models.SeverityInfo, time.Hour)
	env.logs.events = append(env.logs.events, event)

	rec := env.do(http.MethodGet, "/logs/"+event.HexID(), "acme", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 via store (body %s)", rec.Code, rec.Body.String())
	}
}

func TestGetLogIndexDownFallsBack(t *testing.T) {
	env := newTestEnv(t)
	env.index.getErr = search.ErrUnavailable

	event := seedEvent("acme", models.SeverityInfo, time.Hour)
	env.logs.events = append(env.logs.events, event)

	rec := env.do(http.MethodGet, "/logs/"+event.HexID(), "acme", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 via store (body %s)", rec.Code, rec.Body.String())
	}
}

func TestGetLogCrossTenantIsNotFound(t *testing.T) {
	env := newTestEnv(t)

	event := seedEvent("globex", models.SeverityInfo, time.Hour)
	env.logs.events = append(env.logs.events, event)
	if err := env.index.Store(context.Background(), event); err != nil {
		t.Fatal(err)
	}

	rec := env.do(http.MethodGet, "/logs/"+event.HexID(), "acme", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404 for another tenant's event", rec.Code)
	}
	resp := decodeEnvelope(t, rec)
	if resp.Error == nil || resp.Error.Code != ErrCodeNotFound {
		t.Fatalf("error = %+v, want %s", resp.Error, ErrCodeNotFound)
	}
}

func TestReindexLogs(t *testing.T) {
	env := newTestEnv(t)
	env.logs.events = append(env.logs.events,
		seedEvent("acme", models.SeverityInfo, time.Hour),
		seedEvent("acme", models.SeverityError, 2*time.Hour),
		seedEvent("globex", models.SeverityInfo, time.Hour),
	)

	rec := env.do(http.MethodPost, "/logs/reindex", "acme", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", rec.Code, rec.Body.String())
	}

	resp := decodeEnvelope(t, rec)
	data := resp.Data.(map[string]any)
	if got := data["indexed"].(float64); got != 2 {
		t.Errorf("indexed = %v, want 2 (acme only)", got)
	}
	if env.index.stored != 2 {
		t.Errorf("index writes = %d, want 2", env.index.stored)
	}

	actions := env.trail.actions()
	if len(actions) != 1 || actions[0] != "logs.reindex" {
		t.Errorf("audit actions = %v, want [logs.reindex]", actions)
	}
}

func TestReindexCountsFailures(t *testing.T) {
	env := newTestEnv(t)
	env.index.storeErr = search.ErrUnavailable
	env.logs.events = append(env.logs.events, seedEvent("acme", models.SeverityInfo, time.Hour))

	rec := env.do(http.MethodPost, "/logs/reindex", "acme", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", rec.Code, rec.Body.String())
	}

	data := decodeEnvelope(t, rec).Data.(map[string]any)
	if got := data["failed"].(float64); got != 1 {
		t.Errorf("failed = %v, want 1", got)
	}
	errs := data["errors"].([]any)
	if len(errs) != 1 {
		t.Fatalf("errors = %v, want one detail", errs)
	}
}

func TestReindexCapsErrorDetails(t *testing.T) {
	env := newTestEnv(t)
	env.index.storeErr = search.ErrUnavailable
	for i := 0; i < 15; i++ {
		env.logs.events = append(env.logs.events, seedEvent("acme", models.SeverityInfo, time.Hour))
	}

	rec := env.do(http.MethodPost, "/logs/reindex", "acme", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", rec.Code, rec.Body.String())
	}

	data := decodeEnvelope(t, rec).Data.(map[string]any)
	if got := data["failed"].(float64); got != 15 {
		t.Errorf("failed = %v, want 15", got)
	}
	if errs := data["errors"].([]any); len(errs) != 10 {
		t.Errorf("errors carries %d details, want first 10 only", len(errs))
	}
}

func TestReindexHonorsTimeWindow(t *testing.T) {
	env := newTestEnv(t)
	env.logs.events = append(env.logs.events,
		seedEvent("acme", models.SeverityInfo, time.Hour),
		seedEvent("acme", models.SeverityInfo, 45*24*time.Hour),
	)

	rec := env.do(http.MethodPost, "/logs/reindex", "acme", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", rec.Code, rec.Body.String())
	}

	// The default window is the last 30 days; the 45-day-old event must
	// stay out of the scan.
	data := decodeEnvelope(t, rec).Data.(map[string]any)
	if got := data["indexed"].(float64); got != 1 {
		t.Errorf("indexed = %v, want 1", got)
	}

	rec = env.do(http.MethodPost, "/logs/reindex?start_time=2020-01-01T00:00:00Z", "acme", "")
	data = decodeEnvelope(t, rec).Data.(map[string]any)
	if got := data["indexed"].(float64); got != 2 {
		t.Errorf("indexed with explicit window = %v, want 2", got)
	}
}

func TestReindexWithoutIndex(t *testing.T) {
	env := newTestEnv(t)
	env.handler.index = nil

	rec := env.do(http.MethodPost, "/logs/reindex", "acme", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

func TestApplyRetention(t *testing.T) {
	env := newTestEnv(t)

	tenant := &models.Tenant{TenantID: "acme", Name: "Acme"}
	tenant.Settings = models.DefaultTenantSettings()
	tenant.Settings.RetentionDays = 30
	env.tenants.tenants["acme"] = tenant

	old := seedEvent("acme", models.SeverityInfo, 40*24*time.Hour)
	fresh := seedEvent("acme", models.SeverityInfo, time.Hour)
	env.logs.events = append(env.logs.events, old, fresh)
	for _, e := range []*models.LogEvent{old, fresh} {
		if err := env.index.Store(context.Background(), e); err != nil {
			t.Fatal(err)
		}
	}

	rec := env.do(http.MethodDelete, "/logs/retention", "acme", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", rec.Code, rec.Body.String())
	}

	data := decodeEnvelope(t, rec).Data.(map[string]any)
	storeResult := data["store"].(map[string]any)
	if got := storeResult["deleted"].(float64); got != 1 {
		t.Errorf("store deleted = %v, want 1", got)
	}
	indexResult := data["index"].(map[string]any)
	if got := indexResult["deleted"].(float64); got != 1 {
		t.Errorf("index deleted = %v, want 1", got)
	}
	if len(env.logs.events) != 1 {
		t.Errorf("store holds %d events, want the fresh one only", len(env.logs.events))
	}
}

func TestApplyRetentionDaysOverride(t *testing.T) {
	env := newTestEnv(t)

	tenant := &models.Tenant{TenantID: "acme", Name: "Acme", Settings: models.DefaultTenantSettings()}
	env.tenants.tenants["acme"] = tenant

	// 10 days old: inside the default 90 day window, outside ?days=7.
	env.logs.events = append(env.logs.events, seedEvent("acme", models.SeverityInfo, 10*24*time.Hour))

	rec := env.do(http.MethodDelete, "/logs/retention?days=7", "acme", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", rec.Code, rec.Body.String())
	}

	data := decodeEnvelope(t, rec).Data.(map[string]any)
	if got := data["retention_days"].(float64); got != 7 {
		t.Errorf("retention_days = %v, want 7", got)
	}
	if got := data["store"].(map[string]any)["deleted"].(float64); got != 1 {
		t.Errorf("store deleted = %v, want 1", got)
	}
}

func TestApplyRetentionRejectsBadDays(t *testing.T) {
	env := newTestEnv(t)
	env.tenants.tenants["acme"] = &models.Tenant{TenantID: "acme", Settings: models.DefaultTenantSettings()}

	for _, raw := range []string{"0", "-1", "abc", "9999"} {
		rec := env.do(http.MethodDelete, "/logs/retention?days="+raw, "acme", "")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("days=%s: status = %d, want 400", raw, rec.Code)
		}
	}
}

func TestApplyRetentionPartialFailure(t *testing.T) {
	env := newTestEnv(t)
	env.tenants.tenants["acme"] = &models.Tenant{TenantID: "acme", Settings: models.DefaultTenantSettings()}
	env.index.deleteErr = search.ErrUnavailable
	env.logs.events = append(env.logs.events, seedEvent("acme", models.SeverityInfo, 200*24*time.Hour))

	rec := env.do(http.MethodDelete, "/logs/retention", "acme", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 on partial success (body %s)", rec.Code, rec.Body.String())
	}

	data := decodeEnvelope(t, rec).Data.(map[string]any)
	if got := data["store"].(map[string]any)["deleted"].(float64); got != 1 {
		t.Errorf("store deleted = %v, want 1", got)
	}
	if got := data["index"].(map[string]any)["error"].(string); got == "" {
		t.Error("expected index error to be reported")
	}
}

func TestApplyRetentionBothBackendsDown(t *testing.T) {
	env := newTestEnv(t)
	env.tenants.tenants["acme"] = &models.Tenant{TenantID: "acme", Settings: models.DefaultTenantSettings()}
	env.logs.deleteErr = errors.New("mongo down")
	env.index.deleteErr = search.ErrUnavailable

	rec := env.do(http.MethodDelete, "/logs/retention", "acme", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503 when both backends fail", rec.Code)
	}
}

func TestApplyRetentionUnknownTenant(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodDelete, "/logs/retention", "ghost", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestStatsSummary(t *testing.T) {
	env := newTestEnv(t)
	env.logs.events = append(env.logs.events,
		seedEvent("acme", models.SeverityInfo, time.Hour),
		seedEvent("acme", models.SeverityError, 2*time.Hour),
		seedEvent("globex", models.SeverityInfo, time.Hour),
	)

	rec := env.do(http.MethodGet, "/stats/summary", "acme", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", rec.Code, rec.Body.String())
	}

	data := decodeEnvelope(t, rec).Data.(map[string]any)
	if got := data["total"].(float64); got != 2 {
		t.Errorf("total = %v, want 2 (acme only)", got)
	}
}

func TestStatsRejectsBadWindow(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/stats/timeline?start_time=lastweek", "acme", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

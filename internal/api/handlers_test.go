// Loghub - Multi-Tenant Audit Log Ingestion and Query Service
// Copyright 2026 Ocelot Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ocelotlabs/loghub

package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/ocelotlabs/loghub/internal/audittrail"
	"github.com/ocelotlabs/loghub/internal/auth"
	"github.com/ocelotlabs/loghub/internal/config"
	"github.com/ocelotlabs/loghub/internal/models"
	"github.com/ocelotlabs/loghub/internal/queue"
	"github.com/ocelotlabs/loghub/internal/search"
	"github.com/ocelotlabs/loghub/internal/store"
)

type fakeLogStore struct {
	mu     sync.Mutex
	events []*models.LogEvent

	queryErr  error
	getErr    error
	deleteErr error
	deleted   int64
}

func (f *fakeLogStore) Query(_ context.Context, q *models.LogQuery) (*models.LogPage, error) {
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	var matched []*models.LogEvent
	for _, e := range f.events {
		if e.TenantID == q.TenantID {
			matched = append(matched, e)
		}
	}
	return &models.LogPage{Events: matched, Total: int64(len(matched))}, nil
}

func (f *fakeLogStore) Get(_ context.Context, tenantID, id string) (*models.LogEvent, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, e := range f.events {
		if e.TenantID == tenantID && e.HexID() == id {
			return e, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeLogStore) DeleteOlderThan(_ context.Context, tenantID string, cutoff time.Time) (int64, error) {
	if f.deleteErr != nil {
		return 0, f.deleteErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	var kept []*models.LogEvent
	var deleted int64
	for _, e := range f.events {
		if e.TenantID == tenantID && e.Timestamp.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, e)
	}
	f.events = kept
	f.deleted = deleted
	return deleted, nil
}

func (f *fakeLogStore) Each(_ context.Context, tenantID string, since, until time.Time, fn func(*models.LogEvent) error) error {
	f.mu.Lock()
	events := append([]*models.LogEvent(nil), f.events...)
	f.mu.Unlock()

	for _, e := range events {
		if e.TenantID != tenantID {
			continue
		}
		if !since.IsZero() && e.Timestamp.Before(since) {
			continue
		}
		if !until.IsZero() && e.Timestamp.After(until) {
			continue
		}
		if err := fn(e); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeLogStore) Summary(_ context.Context, tenantID string, _, _ time.Time) (*store.StatsSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	summary := &store.StatsSummary{
		BySeverity: map[string]int64{},
		ByAction:   map[string]int64{},
	}
	for _, e := range f.events {
		if e.TenantID != tenantID {
			continue
		}
		summary.Total++
		summary.BySeverity[string(e.Severity)]++
		summary.ByAction[string(e.Action)]++
	}
	return summary, nil
}

func (f *fakeLogStore) Timeline(_ context.Context, tenantID string, _, _ time.Time) ([]store.TimelineBucket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	counts := map[string]int64{}
	for _, e := range f.events {
		if e.TenantID == tenantID {
			counts[e.Timestamp.Format("2006-01-02")]++
		}
	}
	var buckets []store.TimelineBucket
	for date, count := range counts {
		buckets = append(buckets, store.TimelineBucket{Date: date, Count: count})
	}
	return buckets, nil
}

type fakeSearchIndex struct {
	mu     sync.Mutex
	events map[string]*models.LogEvent

	queryErr  error
	getErr    error
	storeErr  error
	deleteErr error
	stored    int
}

func newFakeSearchIndex() *fakeSearchIndex {
	return &fakeSearchIndex{events: map[string]*models.LogEvent{}}
}

func (f *fakeSearchIndex) Query(_ context.Context, q *models.LogQuery) (*models.LogPage, error) {
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	var matched []*models.LogEvent
	for _, e := range f.events {
		if e.TenantID == q.TenantID {
			matched = append(matched, e)
		}
	}
	return &models.LogPage{Events: matched, Total: int64(len(matched))}, nil
}

func (f *fakeSearchIndex) Get(_ context.Context, tenantID, id string) (*models.LogEvent, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	e, ok := f.events[id]
	if !ok || e.TenantID != tenantID {
		return nil, search.ErrNotFound
	}
	return e, nil
}

func (f *fakeSearchIndex) Store(_ context.Context, event *models.LogEvent) error {
	if f.storeErr != nil {
		return f.storeErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events[event.HexID()] = event
	f.stored++
	return nil
}

func (f *fakeSearchIndex) DeleteOlderThan(_ context.Context, tenantID string, cutoff time.Time) (int64, error) {
	if f.deleteErr != nil {
		return 0, f.deleteErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	var deleted int64
	for id, e := range f.events {
		if e.TenantID == tenantID && e.Timestamp.Before(cutoff) {
			delete(f.events, id)
			deleted++
		}
	}
	return deleted, nil
}

type fakeEnqueuer struct {
	mu     sync.Mutex
	events []*models.LogEvent
	err    error
	// failAfter fails every Enqueue once this many calls succeeded.
	failAfter int
}

func (f *fakeEnqueuer) Enqueue(_ context.Context, event *models.LogEvent) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil && (f.failAfter == 0 || len(f.events) >= f.failAfter) {
		return "", f.err
	}
	f.events = append(f.events, event)
	return primitive.NewObjectID().Hex(), nil
}

type fakeTenantStore struct {
	mu      sync.Mutex
	tenants map[string]*models.Tenant
	getErr  error
}

func newFakeTenantStore(tenants ...*models.Tenant) *fakeTenantStore {
	f := &fakeTenantStore{tenants: map[string]*models.Tenant{}}
	for _, t := range tenants {
		f.tenants[t.TenantID] = t
	}
	return f
}

func (f *fakeTenantStore) Create(_ context.Context, tenant *models.Tenant) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.tenants[tenant.TenantID]; ok {
		return store.ErrTenantExists
	}
	tenant.CreatedAt = time.Now().UTC()
	f.tenants[tenant.TenantID] = tenant
	return nil
}

func (f *fakeTenantStore) Get(_ context.Context, tenantID string) (*models.Tenant, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	t, ok := f.tenants[tenantID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return t, nil
}

func (f *fakeTenantStore) List(_ context.Context, skip, limit int64) ([]*models.Tenant, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var all []*models.Tenant
	for _, t := range f.tenants {
		all = append(all, t)
	}
	total := int64(len(all))
	if skip >= total {
		return nil, total, nil
	}
	end := skip + limit
	if end > total {
		end = total
	}
	return all[skip:end], total, nil
}

func (f *fakeTenantStore) Update(_ context.Context, tenantID string, update *models.TenantUpdate) (*models.Tenant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	t, ok := f.tenants[tenantID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if update.Name != nil {
		t.Name = *update.Name
	}
	if update.Settings != nil {
		t.Settings = *update.Settings
	}
	return t, nil
}

func (f *fakeTenantStore) Delete(_ context.Context, tenantID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.tenants[tenantID]; !ok {
		return store.ErrNotFound
	}
	delete(f.tenants, tenantID)
	return nil
}

type fakeRecorder struct {
	mu      sync.Mutex
	entries []audittrail.Entry
}

func (f *fakeRecorder) Record(entry audittrail.Entry) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, entry)
}

func (f *fakeRecorder) actions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var actions []string
	for _, e := range f.entries {
		actions = append(actions, e.Action)
	}
	return actions
}

type testEnv struct {
	handler *Handler
	logs    *fakeLogStore
	index   *fakeSearchIndex
	queue   *fakeEnqueuer
	tenants *fakeTenantStore
	trail   *fakeRecorder
	router  chi.Router
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		logs:    &fakeLogStore{},
		index:   newFakeSearchIndex(),
		queue:   &fakeEnqueuer{},
		tenants: newFakeTenantStore(),
		trail:   &fakeRecorder{},
	}
	env.handler = NewHandler(env.logs, env.index, env.queue, env.tenants, env.trail, config.APIConfig{
		DefaultPageSize: 50,
		MaxPageSize:     200,
	})

	r := chi.NewRouter()
	r.Post("/logs", env.handler.ProduceLog)
	r.Post("/logs/bulk", env.handler.ProduceLogBulk)
	r.Get("/logs", env.handler.QueryLogs)
	r.Get("/logs/{id}", env.handler.GetLog)
	r.Post("/logs/reindex", env.handler.ReindexLogs)
	r.Delete("/logs/retention", env.handler.ApplyRetention)
	r.Get("/stats/summary", env.handler.StatsSummary)
	r.Get("/stats/timeline", env.handler.StatsTimeline)
	r.Get("/tenants", env.handler.ListTenants)
	r.Post("/tenants", env.handler.CreateTenant)
	r.Get("/tenants/{tenant_id}", env.handler.GetTenant)
	r.Patch("/tenants/{tenant_id}", env.handler.UpdateTenant)
	r.Delete("/tenants/{tenant_id}", env.handler.DeleteTenant)
	env.router = r

	return env
}

// do issues a request with the tenant header and admin claims set, the
// way the auth middleware leaves a request when it passes.
func (env *testEnv) do(method, target, tenantID, body string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}

	req := httptest.NewRequest(method, target, reader)
	if tenantID != "" {
		req.Header.Set(auth.TenantHeader, tenantID)
	}
	req = req.WithContext(auth.ContextWithClaims(req.Context(), &auth.TokenClaims{
		JTI:       "test-token",
		TenantIDs: []string{tenantID},
		Roles:     []auth.Role{auth.RoleAdmin},
	}))

	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response envelope: %v (body %q)", err, rec.Body.String())
	}
	return resp
}

func seedEvent(tenantID string, severity models.Severity, age time.Duration) *models.LogEvent {
	return &models.LogEvent{
		ID:        primitive.NewObjectID(),
		TenantID:  tenantID,
		Timestamp: time.Now().UTC().Add(-age),
		Action:    models.ActionCreate,
		Resource:  "order",
		Severity:  severity,
		Message:   "order created",
	}
}

func TestProduceLogQueuesEvent(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodPost, "/logs", "acme", `{
		"action": "create",
		"resource_type": "order",
		"severity": "info",
		"message": "order 42 created"
	}`)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202 (body %s)", rec.Code, rec.Body.String())
	}
	resp := decodeEnvelope(t, rec)
	if !resp.Success {
		t.Fatal("expected success envelope")
	}

	if len(env.queue.events) != 1 {
		t.Fatalf("queued %d events, want 1", len(env.queue.events))
	}
	event := env.queue.events[0]
	if event.TenantID != "acme" {
		t.Errorf("TenantID = %q, want acme", event.TenantID)
	}
	if !event.Timestamp.IsZero() {
		t.Error("timestamp must stay zero until the worker stamps it at write time")
	}
}

func TestProduceLogAcceptsEveryAction(t *testing.T) {
	env := newTestEnv(t)

	for _, action := range models.Actions {
		t.Run(string(action), func(t *testing.T) {
			body := `{"action":"` + string(action) + `","resource_type":"order","severity":"info","message":"x"}`
			rec := env.do(http.MethodPost, "/logs", "acme", body)
			if rec.Code != http.StatusAccepted {
				t.Fatalf("status = %d, want 202 (body %s)", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestProduceLogRejectsInvalidBody(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name string
		body string
	}{
		{"not json", `{{{`},
		{"unknown action", `{"action":"destroy","resource_type":"order","severity":"info","message":"x"}`},
		{"unknown severity", `{"action":"create","resource_type":"order","severity":"loud","message":"x"}`},
		{"missing message", `{"action":"create","resource_type":"order","severity":"info"}`},
		{"unknown field", `{"action":"create","resource_type":"order","severity":"info","message":"x","bogus":1}`},
		{"client timestamp", `{"action":"create","resource_type":"order","severity":"info","message":"x","timestamp":"2001-01-01T00:00:00Z"}`},
		{"bad ip", `{"action":"create","resource_type":"order","severity":"info","message":"x","ip_address":"not-an-ip"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(http.MethodPost, "/logs", "acme", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400 (body %s)", rec.Code, rec.Body.String())
			}
			if len(env.queue.events) != 0 {
				t.Fatalf("queued %d events, want 0", len(env.queue.events))
			}
		})
	}
}

func TestProduceLogUpstreamDown(t *testing.T) {
	env := newTestEnv(t)
	env.queue.err = queue.ErrUnavailable

	rec := env.do(http.MethodPost, "/logs", "acme", `{
		"action": "create",
		"resource_type": "order",
		"severity": "info",
		"message": "order created"
	}`)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	resp := decodeEnvelope(t, rec)
	if resp.Error == nil || resp.Error.Code != ErrCodeServiceUnavailable {
		t.Fatalf("error = %+v, want %s", resp.Error, ErrCodeServiceUnavailable)
	}
}

func TestProduceLogBulkPartialFailure(t *testing.T) {
	env := newTestEnv(t)
	env.queue.err = queue.ErrUnavailable
	env.queue.failAfter = 2

	rec := env.do(http.MethodPost, "/logs/bulk", "acme", `{"events":[
		{"action":"create","resource_type":"order","severity":"info","message":"one"},
		{"action":"update","resource_type":"order","severity":"info","message":"two"},
		{"action":"delete","resource_type":"order","severity":"warning","message":"three"}
	]}`)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202 (body %s)", rec.Code, rec.Body.String())
	}
	if len(env.queue.events) != 2 {
		t.Fatalf("queued %d events, want 2", len(env.queue.events))
	}

	resp := decodeEnvelope(t, rec)
	data := resp.Data.(map[string]any)
	if got := data["queued"].(float64); got != 2 {
		t.Errorf("queued = %v, want 2", got)
	}
	failed := data["failed"].([]any)
	if len(failed) != 1 {
		t.Fatalf("failed = %v, want one entry", failed)
	}
}

func TestProduceLogBulkAllFailed(t *testing.T) {
	env := newTestEnv(t)
	env.queue.err = queue.ErrUnavailable

	rec := env.do(http.MethodPost, "/logs/bulk", "acme", `{"events":[
		{"action":"create","resource_type":"order","severity":"info","message":"one"}
	]}`)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503 (body %s)", rec.Code, rec.Body.String())
	}
}

func TestProduceLogBulkRejectsEmpty(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodPost, "/logs/bulk", "acme", `{"events":[]}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

// Loghub - Multi-Tenant Audit Log Ingestion and Query Service
// Copyright 2026 Ocelot Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ocelotlabs/loghub

package api

import (
	"context"
	"time"

	"github.com/ocelotlabs/loghub/internal/audittrail"
	"github.com/ocelotlabs/loghub/internal/config"
	"github.com/ocelotlabs/loghub/internal/models"
	"github.com/ocelotlabs/loghub/internal/store"
)

// LogStore is the durable store surface the handlers need.
type LogStore interface {
	Query(ctx context.Context, q *models.LogQuery) (*models.LogPage, error)
	Get(ctx context.Context, tenantID, id string) (*models.LogEvent, error)
	DeleteOlderThan(ctx context.Context, tenantID string, cutoff time.Time) (int64, error)
	Each(ctx context.Context, tenantID string, since, until time.Time, fn func(*models.LogEvent) error) error
	Summary(ctx context.Context, tenantID string, since, until time.Time) (*store.StatsSummary, error)
	Timeline(ctx context.Context, tenantID string, since, until time.Time) ([]store.TimelineBucket, error)
}

// SearchIndex is the search surface. Any error from it sends the
// request down the durable-store path instead.
type SearchIndex interface {
	Query(ctx context.Context, q *models.LogQuery) (*models.LogPage, error)
	Get(ctx context.Context, tenantID, id string) (*models.LogEvent, error)
	Store(ctx context.Context, event *models.LogEvent) error
	DeleteOlderThan(ctx context.Context, tenantID string, cutoff time.Time) (int64, error)
}

// Enqueuer hands events to the ingestion queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, event *models.LogEvent) (string, error)
}

// TenantStore is the tenant CRUD surface.
type TenantStore interface {
	Create(ctx context.Context, tenant *models.Tenant) error
	Get(ctx context.Context, tenantID string) (*models.Tenant, error)
	List(ctx context.Context, skip, limit int64) ([]*models.Tenant, int64, error)
	Update(ctx context.Context, tenantID string, update *models.TenantUpdate) (*models.Tenant, error)
	Delete(ctx context.Context, tenantID string) error
}

// Recorder is the audit trail sink for access and admin actions.
type Recorder interface {
	Record(entry audittrail.Entry)
}

// Handler carries the dependencies for every endpoint. The search
// index may be nil when search is disabled; queries then go straight
// to the durable store.
type Handler struct {
	logs    LogStore
	index   SearchIndex
	queue   Enqueuer
	tenants TenantStore
	trail   Recorder
	stream  *streamDeps
	health  *healthDeps

	defaultPageSize int
	maxPageSize     int
}

// NewHandler assembles the handler set.
func NewHandler(logs LogStore, index SearchIndex, enqueuer Enqueuer, tenants TenantStore, trail Recorder, cfg config.APIConfig) *Handler {
	return &Handler{
		logs:            logs,
		index:           index,
		queue:           enqueuer,
		tenants:         tenants,
		trail:           trail,
		defaultPageSize: cfg.DefaultPageSize,
		maxPageSize:     cfg.MaxPageSize,
	}
}

func pageOf(page *models.LogPage, q *models.LogQuery) *Pagination {
	pageNum, size := q.Page()
	return &Pagination{
		Total:   page.Total,
		Count:   len(page.Events),
		Page:    pageNum,
		Limit:   size,
		HasMore: q.Skip+int64(len(page.Events)) < page.Total,
	}
}

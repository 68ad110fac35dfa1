// Loghub - Multi-Tenant Audit Log Ingestion and Query Service
// Copyright 2026 Ocelot Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ocelotlabs/loghub

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ocelotlabs/loghub/internal/audittrail"
	"github.com/ocelotlabs/loghub/internal/models"
)

// CreateTenant registers a new tenant. Admin only.
// POST /tenants
func (h *Handler) CreateTenant(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var req CreateTenantRequest
	if err := decodeJSON(w, r, &req); err != nil {
		rw.ErrorWithDetails(http.StatusBadRequest, ErrCodeValidationFailed, err.Error(), validationDetails(err))
		return
	}

	tenant := &models.Tenant{
		TenantID: req.TenantID,
		Name:     req.Name,
		Settings: models.DefaultTenantSettings(),
	}
	if req.Settings != nil {
		if err := validate.Struct(req.Settings); err != nil {
			rw.ErrorWithDetails(http.StatusBadRequest, ErrCodeValidationFailed, err.Error(), validationDetails(err))
			return
		}
		tenant.Settings = *req.Settings
	}

	if err := h.tenants.Create(r.Context(), tenant); err != nil {
		WriteDomainError(w, r, err)
		return
	}

	h.record(r, audittrail.Entry{
		Action:   "tenants.create",
		TenantID: tenant.TenantID,
		Target:   tenant.Name,
	})
	rw.Created(tenant)
}

// ListTenants returns all tenants, paginated. Admin only.
// GET /tenants
func (h *Handler) ListTenants(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	skip, limit, err := h.parsePageParams(r)
	if err != nil {
		rw.Error(http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		return
	}

	tenants, total, err := h.tenants.List(r.Context(), skip, limit)
	if err != nil {
		WriteDomainError(w, r, err)
		return
	}

	rw.SuccessWithPagination(tenants, &Pagination{
		Total:   total,
		Count:   len(tenants),
		Page:    skip/limit + 1,
		Limit:   limit,
		HasMore: skip+int64(len(tenants)) < total,
	})
}

// GetTenant returns one tenant. Admin only.
// GET /tenants/{tenant_id}
func (h *Handler) GetTenant(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	tenant, err := h.tenants.Get(r.Context(), chi.URLParam(r, "tenant_id"))
	if err != nil {
		WriteDomainError(w, r, err)
		return
	}
	rw.Success(tenant)
}

// UpdateTenant applies a partial update. Admin only.
// PATCH /tenants/{tenant_id}
func (h *Handler) UpdateTenant(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	tenantID := chi.URLParam(r, "tenant_id")

	var req models.TenantUpdate
	if err := decodeJSON(w, r, &req); err != nil {
		rw.ErrorWithDetails(http.StatusBadRequest, ErrCodeValidationFailed, err.Error(), validationDetails(err))
		return
	}
	if req.Settings != nil {
		if err := validate.Struct(req.Settings); err != nil {
			rw.ErrorWithDetails(http.StatusBadRequest, ErrCodeValidationFailed, err.Error(), validationDetails(err))
			return
		}
	}

	tenant, err := h.tenants.Update(r.Context(), tenantID, &req)
	if err != nil {
		WriteDomainError(w, r, err)
		return
	}

	h.record(r, audittrail.Entry{
		Action:   "tenants.update",
		TenantID: tenantID,
	})
	rw.Success(tenant)
}

// DeleteTenant removes a tenant record. Its log data stays until
// retention removes it. Admin only.
// DELETE /tenants/{tenant_id}
func (h *Handler) DeleteTenant(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	tenantID := chi.URLParam(r, "tenant_id")

	if err := h.tenants.Delete(r.Context(), tenantID); err != nil {
		WriteDomainError(w, r, err)
		return
	}

	h.record(r, audittrail.Entry{
		Action:   "tenants.delete",
		TenantID: tenantID,
	})
	rw.NoContent()
}

// Loghub - Multi-Tenant Audit Log Ingestion and Query Service
// Copyright 2026 Ocelot Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ocelotlabs/loghub

package api

import (
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"github.com/ocelotlabs/loghub/internal/models"
)

// maxBodyBytes bounds request bodies. Audit events with state
// snapshots fit comfortably; anything larger is abuse.
const maxBodyBytes = 1 << 20

var validate = newValidator()

var slugPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*[a-z0-9]$`)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Tenant identifiers appear in NATS subjects and index filters, so
	// the character set is locked down.
	_ = v.RegisterValidation("slug", func(fl validator.FieldLevel) bool {
		return slugPattern.MatchString(fl.Field().String())
	})
	return v
}

// ProduceLogRequest is the body of POST /logs. There is no timestamp
// field on purpose: the ingestion worker stamps events at write time,
// and a client-supplied timestamp is rejected as an unknown field.
type ProduceLogRequest struct {
	Action     string         `json:"action" validate:"required,oneof=create read update delete view login logout export import"`
	Resource   string         `json:"resource_type" validate:"required,max=200"`
	ResourceID string         `json:"resource_id" validate:"max=200"`
	Severity   string         `json:"severity" validate:"required,oneof=info warning error critical"`
	Message    string         `json:"message" validate:"required,max=8192"`
	UserID     string         `json:"user_id" validate:"max=200"`
	SessionID  string         `json:"session_id" validate:"max=200"`
	IPAddress  string         `json:"ip_address" validate:"omitempty,ip"`
	UserAgent  string         `json:"user_agent" validate:"max=1024"`
	Before     map[string]any `json:"before_state"`
	After      map[string]any `json:"after_state"`
	Metadata   map[string]any `json:"metadata"`
}

// Event converts the request to a LogEvent for the given tenant.
// The server's request ID is stamped on so the event can be traced
// back to the call that produced it. The timestamp stays zero here;
// the worker assigns it when the event becomes durable.
func (req *ProduceLogRequest) Event(tenantID, requestID string) *models.LogEvent {
	return &models.LogEvent{
		TenantID:    tenantID,
		Action:      models.Action(req.Action),
		Resource:    req.Resource,
		ResourceID:  req.ResourceID,
		Severity:    models.Severity(req.Severity),
		Message:     req.Message,
		UserID:      req.UserID,
		SessionID:   req.SessionID,
		RequestID:   requestID,
		IPAddress:   req.IPAddress,
		UserAgent:   req.UserAgent,
		BeforeState: req.Before,
		AfterState:  req.After,
		Metadata:    req.Metadata,
	}
}

// BulkLogRequest is the body of POST /logs/bulk.
type BulkLogRequest struct {
	Events []ProduceLogRequest `json:"events" validate:"required,min=1,max=500,dive"`
}

// CreateTenantRequest is the body of POST /tenants.
type CreateTenantRequest struct {
	TenantID string                 `json:"tenant_id" validate:"required,min=2,max=64,slug"`
	Name     string                 `json:"name" validate:"required,min=1,max=200"`
	Settings *models.TenantSettings `json:"settings"`
}

// decodeJSON reads and validates a request body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}

	if err := validate.Struct(dst); err != nil {
		return err
	}
	return nil
}

// validationDetails flattens validator errors into client-friendly
// field/rule pairs.
func validationDetails(err error) []map[string]string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}

	details := make([]map[string]string, 0, len(verrs))
	for _, fe := range verrs {
		details = append(details, map[string]string{
			"field": fe.Field(),
			"rule":  fe.Tag(),
		})
	}
	return details
}

// parseLogQuery builds a LogQuery from URL parameters. The tenant
// always comes from the authenticated request, never the URL.
func (h *Handler) parseLogQuery(r *http.Request, tenantID string) (*models.LogQuery, error) {
	params := r.URL.Query()

	q := &models.LogQuery{
		TenantID:   tenantID,
		Action:     models.Action(params.Get("action")),
		Resource:   params.Get("resource_type"),
		ResourceID: params.Get("resource_id"),
		Severity:   models.Severity(params.Get("severity")),
		UserID:     params.Get("user_id"),
		SessionID:  params.Get("session_id"),
		RequestID:  params.Get("request_id"),
		IPAddress:  params.Get("ip_address"),
		Search:     params.Get("search"),
	}

	if q.Action != "" && !q.Action.Valid() {
		return nil, fmt.Errorf("unknown action %q", q.Action)
	}
	if q.Severity != "" && !q.Severity.Valid() {
		return nil, fmt.Errorf("unknown severity %q", q.Severity)
	}

	var err error
	if q.Since, err = parseTimeParam(params.Get("start_time")); err != nil {
		return nil, err
	}
	if q.Until, err = parseTimeParam(params.Get("end_time")); err != nil {
		return nil, err
	}
	if !q.Since.IsZero() && !q.Until.IsZero() && q.Until.Before(q.Since) {
		return nil, fmt.Errorf("end_time precedes start_time")
	}

	if q.Skip, q.Limit, err = h.parsePageParams(r); err != nil {
		return nil, err
	}
	return q, nil
}

func parseTimeParam(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q, want RFC3339", raw)
	}
	return t.UTC(), nil
}

// parsePageParams reads skip/limit for list endpoints. The response
// meta reports the page number these correspond to.
func (h *Handler) parsePageParams(r *http.Request) (skip, limit int64, err error) {
	params := r.URL.Query()

	if raw := params.Get("skip"); raw != "" {
		skip, err = strconv.ParseInt(raw, 10, 64)
		if err != nil || skip < 0 {
			return 0, 0, fmt.Errorf("invalid skip %q", raw)
		}
	}

	limit = int64(h.defaultPageSize)
	if raw := params.Get("limit"); raw != "" {
		limit, err = strconv.ParseInt(raw, 10, 64)
		if err != nil || limit < 1 {
			return 0, 0, fmt.Errorf("invalid limit %q", raw)
		}
	}
	if limit > int64(h.maxPageSize) {
		limit = int64(h.maxPageSize)
	}

	return skip, limit, nil
}

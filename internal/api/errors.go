// Loghub - Multi-Tenant Audit Log Ingestion and Query Service
// Copyright 2026 Ocelot Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ocelotlabs/loghub

package api

import (
	"errors"
	"net/http"

	"github.com/ocelotlabs/loghub/internal/auth"
	"github.com/ocelotlabs/loghub/internal/logging"
	"github.com/ocelotlabs/loghub/internal/queue"
	"github.com/ocelotlabs/loghub/internal/search"
	"github.com/ocelotlabs/loghub/internal/store"
)

// Error codes shared with clients. These are stable; messages are not.
const (
	ErrCodeBadRequest         = "BAD_REQUEST"
	ErrCodeValidationFailed   = "VALIDATION_FAILED"
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeForbidden          = "FORBIDDEN"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeConflict           = "CONFLICT"
	ErrCodeTooManyRequests    = "TOO_MANY_REQUESTS"
	ErrCodeInternalError      = "INTERNAL_ERROR"
	ErrCodeServiceUnavailable = "SERVICE_UNAVAILABLE"
)

// WriteDomainError maps a domain error onto status, code, and message.
// Auth failures carry their own code so clients can distinguish a
// revoked token from a bad signature.
func WriteDomainError(w http.ResponseWriter, r *http.Request, err error) {
	rw := NewResponseWriter(w, r)

	switch {
	case auth.IsAuthError(err):
		if auth.IsForbidden(err) {
			rw.Error(http.StatusForbidden, auth.Code(err), err.Error())
			return
		}
		rw.Error(http.StatusUnauthorized, auth.Code(err), err.Error())

	case errors.Is(err, store.ErrNotFound), errors.Is(err, store.ErrInvalidID), errors.Is(err, search.ErrNotFound):
		rw.Error(http.StatusNotFound, ErrCodeNotFound, "resource not found")

	case errors.Is(err, store.ErrTenantExists):
		rw.Error(http.StatusConflict, ErrCodeConflict, "tenant already exists")

	case errors.Is(err, queue.ErrUnavailable), errors.Is(err, search.ErrUnavailable):
		rw.Error(http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "upstream unavailable, retry later")

	default:
		logging.Ctx(r.Context()).Error().Err(err).Msg("unhandled error")
		rw.Error(http.StatusInternalServerError, ErrCodeInternalError, "internal error")
	}
}

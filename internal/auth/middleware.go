// Loghub - Multi-Tenant Audit Log Ingestion and Query Service
// Copyright 2026 Ocelot Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ocelotlabs/loghub

package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/ocelotlabs/loghub/internal/logging"
)

type contextKey string

const claimsContextKey contextKey = "auth_claims"

// TenantHeader carries the tenant an authenticated request operates on.
const TenantHeader = "X-Tenant-ID"

// ClaimsFromContext returns the claims the middleware attached, or nil
// when the request was not authenticated.
func ClaimsFromContext(ctx context.Context) *TokenClaims {
	claims, _ := ctx.Value(claimsContextKey).(*TokenClaims)
	return claims
}

// ContextWithClaims attaches claims to a context. Exposed for tests and
// the stream handler, which authenticates before the upgrade.
func ContextWithClaims(ctx context.Context, claims *TokenClaims) context.Context {
	return context.WithValue(ctx, claimsContextKey, claims)
}

// ErrorWriter renders an auth failure as an HTTP response. The api
// package supplies the envelope writer so this package stays free of
// response formatting.
type ErrorWriter func(w http.ResponseWriter, r *http.Request, err error)

// Middleware validates bearer tokens and stores the resulting claims in
// the request context. Requests without a valid token never reach the
// wrapped handler.
func Middleware(validator *Validator, writeError ErrorWriter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, err := BearerToken(r)
			if err != nil {
				recordFailure(err)
				writeError(w, r, err)
				return
			}

			claims, err := validator.Validate(r.Context(), raw)
			if err != nil {
				recordFailure(err)
				logging.Ctx(r.Context()).Debug().
					Str("code", Code(err)).
					Msg("token rejected")
				writeError(w, r, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(ContextWithClaims(r.Context(), claims)))
		})
	}
}

// RequireRoles gates a handler on the requested tenant and role set.
// The tenant comes from the X-Tenant-ID header; admin tokens pass any
// role check but still must hold the tenant.
func RequireRoles(writeError ErrorWriter, roles ...Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := ClaimsFromContext(r.Context())
			if claims == nil {
				writeError(w, r, ErrTokenNotFound)
				return
			}

			tenantID := r.Header.Get(TenantHeader)
			if err := Authorize(claims, tenantID, roles...); err != nil {
				recordFailure(err)
				writeError(w, r, err)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// BearerToken extracts the token from the Authorization header.
func BearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", ErrMalformedToken
	}

	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", ErrMalformedToken
	}
	return token, nil
}

// Loghub - Multi-Tenant Audit Log Ingestion and Query Service
// Copyright 2026 Ocelot Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ocelotlabs/loghub

package auth

import "errors"

// Authentication and authorization failures. Every gated operation fails
// with exactly one of these before any business logic executes; handlers
// map them to stable reason codes via Code.
var (
	// ErrMalformedToken indicates the bearer token could not be parsed.
	ErrMalformedToken = errors.New("malformed token")

	// ErrSignatureInvalid indicates the token signature did not verify.
	ErrSignatureInvalid = errors.New("token signature invalid")

	// ErrMissingClaim indicates a structurally valid token without a jti claim.
	ErrMissingClaim = errors.New("token missing jti claim")

	// ErrTokenNotFound indicates the jti has no record in the token store.
	// This covers tokens never issued through the store, or purged ones.
	ErrTokenNotFound = errors.New("token not found")

	// ErrTokenRevoked indicates the stored record has the revoked flag set.
	ErrTokenRevoked = errors.New("token revoked")

	// ErrTokenExpired indicates the stored expiry has passed. The stored
	// expiry is authoritative over the signed exp claim.
	ErrTokenExpired = errors.New("token expired")

	// ErrTenantForbidden indicates the token does not cover the requested tenant.
	ErrTenantForbidden = errors.New("tenant access forbidden")

	// ErrRoleForbidden indicates none of the required roles are held.
	ErrRoleForbidden = errors.New("role access forbidden")
)

// Code returns the stable machine-readable reason code for an auth error,
// or empty string if err is not an auth error.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrMalformedToken):
		return "MALFORMED_TOKEN"
	case errors.Is(err, ErrSignatureInvalid):
		return "SIGNATURE_INVALID"
	case errors.Is(err, ErrMissingClaim):
		return "MISSING_CLAIM"
	case errors.Is(err, ErrTokenNotFound):
		return "TOKEN_NOT_FOUND"
	case errors.Is(err, ErrTokenRevoked):
		return "TOKEN_REVOKED"
	case errors.Is(err, ErrTokenExpired):
		return "TOKEN_EXPIRED"
	case errors.Is(err, ErrTenantForbidden):
		return "TENANT_FORBIDDEN"
	case errors.Is(err, ErrRoleForbidden):
		return "ROLE_FORBIDDEN"
	default:
		return ""
	}
}

// IsAuthError reports whether err belongs to the auth error taxonomy.
func IsAuthError(err error) bool {
	return Code(err) != ""
}

// IsForbidden reports whether err is an authorization (as opposed to
// authentication) failure. Handlers map these to 403 instead of 401.
func IsForbidden(err error) bool {
	return errors.Is(err, ErrTenantForbidden) || errors.Is(err, ErrRoleForbidden)
}

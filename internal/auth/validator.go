// Loghub - Multi-Tenant Audit Log Ingestion and Query Service
// Copyright 2026 Ocelot Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ocelotlabs/loghub

package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ocelotlabs/loghub/internal/logging"
)

// Validator verifies bearer tokens. The signature proves the token was
// issued by us; the token store is authoritative for liveness. A signed
// token whose jti is revoked or expired in the store is rejected, and
// the claims returned always come from the stored record, never from
// the token body.
type Validator struct {
	secret []byte
	store  TokenStore

	// now is swappable for tests.
	now func() time.Time
}

// NewValidator creates a validator over the given HMAC secret and store.
func NewValidator(secret []byte, store TokenStore) *Validator {
	return &Validator{
		secret: secret,
		store:  store,
		now:    time.Now,
	}
}

// jwtClaims is the wire shape of the signed token. Only jti matters for
// validation; everything else is carried for diagnostics.
type jwtClaims struct {
	jwt.RegisteredClaims
	TenantIDs []string `json:"tenant_ids,omitempty"`
	Roles     []string `json:"roles,omitempty"`
}

// Validate checks signature and store state for a raw bearer token and
// returns the effective claims on success.
func (v *Validator) Validate(ctx context.Context, rawToken string) (*TokenClaims, error) {
	parsed, err := jwt.ParseWithClaims(rawToken, &jwtClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %s", t.Method.Alg())
		}
		return v.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenSignatureInvalid) {
			return nil, ErrSignatureInvalid
		}
		// Signed expiry is advisory; the store decides below. Everything
		// else the parser rejects is a malformed token.
		if !errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrMalformedToken
		}
	}

	claims, ok := parsed.Claims.(*jwtClaims)
	if !ok || claims.ID == "" {
		return nil, ErrMissingClaim
	}

	record, err := v.store.Get(ctx, claims.ID)
	if err != nil {
		if errors.Is(err, ErrTokenNotFound) {
			return nil, ErrTokenNotFound
		}
		return nil, fmt.Errorf("token store lookup: %w", err)
	}

	if record.Revoked {
		logging.Ctx(ctx).Warn().Str("jti", record.JTI).Msg("revoked token presented")
		return nil, ErrTokenRevoked
	}
	if !v.now().Before(record.ExpiresAt) {
		return nil, ErrTokenExpired
	}

	return &TokenClaims{
		JTI:       record.JTI,
		TenantIDs: record.TenantIDs,
		Roles:     ParseRoles(record.Roles),
	}, nil
}

// Loghub - Multi-Tenant Audit Log Ingestion and Query Service
// Copyright 2026 Ocelot Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ocelotlabs/loghub

package auth

import "strings"

// Role is a member of the closed authorization role set.
//
// Roles are not hierarchical: a writer without the reader role cannot read,
// by design, to enforce least privilege. The single exception is admin,
// which passes every role check.
type Role string

const (
	// RoleAdmin passes every role check and gates tenant administration
	// and forced reindexing.
	RoleAdmin Role = "admin"

	// RoleWriter gates log production and retention deletes.
	RoleWriter Role = "writer"

	// RoleReader gates queries, stats and live streaming.
	RoleReader Role = "reader"
)

// TokenClaims is the authorization state attached to a validated request.
// Tenant and role sets come from the token store, not from the signed
// token, so store-side updates apply without reissuance.
type TokenClaims struct {
	JTI       string
	TenantIDs []string
	Roles     []Role
}

// HasTenant reports whether the claims cover the given tenant.
func (c *TokenClaims) HasTenant(tenantID string) bool {
	for _, t := range c.TenantIDs {
		if t == tenantID {
			return true
		}
	}
	return false
}

// HasRole reports whether the claims carry the given role exactly
// (no admin override).
func (c *TokenClaims) HasRole(role Role) bool {
	for _, r := range c.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Authorize composes the tenant-match and role-match checks that gate every
// operation.
//
// The tenant check fails with ErrTenantForbidden unless tenantID is a member
// of the claims' tenant set. The role check passes unconditionally for
// admin; otherwise it requires a non-empty intersection between the claims'
// roles and the required set, failing with ErrRoleForbidden.
func Authorize(claims *TokenClaims, tenantID string, required ...Role) error {
	if !claims.HasTenant(tenantID) {
		return ErrTenantForbidden
	}
	if claims.HasRole(RoleAdmin) {
		return nil
	}
	for _, role := range required {
		if claims.HasRole(role) {
			return nil
		}
	}
	return ErrRoleForbidden
}

// ParseRoles converts stored role strings to the closed role set,
// normalizing case and dropping unknown values.
func ParseRoles(raw []string) []Role {
	roles := make([]Role, 0, len(raw))
	for _, r := range raw {
		switch Role(strings.ToLower(r)) {
		case RoleAdmin:
			roles = append(roles, RoleAdmin)
		case RoleWriter:
			roles = append(roles, RoleWriter)
		case RoleReader:
			roles = append(roles, RoleReader)
		}
	}
	return roles
}

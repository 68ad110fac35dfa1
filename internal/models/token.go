// Loghub - Multi-Tenant Audit Log Ingestion and Query Service
// Copyright 2026 Ocelot Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ocelotlabs/loghub

package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TokenRecord is the stored state of an issued token, keyed by jti.
// The store is authoritative: a token is usable only while its record
// says so, regardless of what the signed body claims.
type TokenRecord struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"-"`
	JTI       string             `bson:"jti" json:"jti"`
	TenantIDs []string           `bson:"tenant_ids" json:"tenant_ids"`
	Roles     []string           `bson:"roles" json:"roles"`
	ExpiresAt time.Time          `bson:"expires_at" json:"expires_at"`
	Revoked   bool               `bson:"revoked" json:"revoked"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
}

// Usable reports whether the record permits use at the given instant.
func (r *TokenRecord) Usable(now time.Time) bool {
	return !r.Revoked && now.Before(r.ExpiresAt)
}

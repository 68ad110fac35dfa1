// Loghub - Multi-Tenant Audit Log Ingestion and Query Service
// Copyright 2026 Ocelot Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ocelotlabs/loghub

package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TenantSettings controls per-tenant ingestion and retention behavior.
type TenantSettings struct {
	RetentionDays int        `bson:"retention_days" json:"retention_days" validate:"min=1,max=3650"`
	LogLevels     []Severity `bson:"log_levels" json:"log_levels" validate:"min=1,dive,oneof=info warning error critical"`
}

// DefaultTenantSettings returns the settings applied when a tenant is
// created without any.
func DefaultTenantSettings() TenantSettings {
	return TenantSettings{
		RetentionDays: 90,
		LogLevels:     append([]Severity(nil), Severities...),
	}
}

// Tenant is one isolated customer namespace.
type Tenant struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"-"`
	TenantID  string             `bson:"tenant_id" json:"tenant_id"`
	Name      string             `bson:"name" json:"name"`
	Settings  TenantSettings     `bson:"settings" json:"settings"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
}

// TenantUpdate carries a partial tenant update. Nil fields are left
// unchanged.
type TenantUpdate struct {
	Name     *string         `json:"name,omitempty" validate:"omitempty,min=1,max=200"`
	Settings *TenantSettings `json:"settings,omitempty"`
}

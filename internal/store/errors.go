// Loghub - Multi-Tenant Audit Log Ingestion and Query Service
// Copyright 2026 Ocelot Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ocelotlabs/loghub

// Package store implements durable persistence for log events and
// tenants on MongoDB.
package store

import "errors"

var (
	// ErrNotFound is returned when the requested document does not
	// exist within the caller's tenant scope.
	ErrNotFound = errors.New("store: not found")

	// ErrInvalidID is returned for identifiers that are not valid
	// ObjectID hex strings.
	ErrInvalidID = errors.New("store: invalid id")

	// ErrTenantExists is returned when creating a tenant whose
	// tenant_id is already taken.
	ErrTenantExists = errors.New("store: tenant already exists")
)

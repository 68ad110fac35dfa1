// Loghub - Multi-Tenant Audit Log Ingestion and Query Service
// Copyright 2026 Ocelot Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ocelotlabs/loghub

package store

import (
	"regexp"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/ocelotlabs/loghub/internal/models"
)

// buildFilter translates a LogQuery into a Mongo filter document. The
// tenant_id clause is always present so a query can never cross tenant
// boundaries, whatever else the caller set.
func buildFilter(q *models.LogQuery) bson.M {
	filter := bson.M{"tenant_id": q.TenantID}

	if q.Action != "" {
		filter["action"] = q.Action
	}
	if q.Resource != "" {
		filter["resource_type"] = q.Resource
	}
	if q.ResourceID != "" {
		filter["resource_id"] = q.ResourceID
	}
	if q.Severity != "" {
		filter["severity"] = q.Severity
	}
	if q.UserID != "" {
		filter["user_id"] = q.UserID
	}
	if q.SessionID != "" {
		filter["session_id"] = q.SessionID
	}
	if q.RequestID != "" {
		filter["request_id"] = q.RequestID
	}
	if q.IPAddress != "" {
		filter["ip_address"] = q.IPAddress
	}

	if q.Search != "" {
		filter["message"] = bson.M{
			"$regex": primitive.Regex{
				Pattern: regexp.QuoteMeta(q.Search),
				Options: "i",
			},
		}
	}

	if !q.Since.IsZero() || !q.Until.IsZero() {
		window := bson.M{}
		if !q.Since.IsZero() {
			window["$gte"] = q.Since
		}
		if !q.Until.IsZero() {
			window["$lte"] = q.Until
		}
		filter["timestamp"] = window
	}

	return filter
}

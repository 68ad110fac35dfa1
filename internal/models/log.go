// Loghub - Multi-Tenant Audit Log Ingestion and Query Service
// Copyright 2026 Ocelot Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ocelotlabs/loghub

// Package models defines the data shapes shared across the ingestion
// pipeline, the durable store, the search index, and the HTTP API.
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Action classifies what happened to the audited resource.
type Action string

const (
	ActionCreate Action = "create"
	ActionRead   Action = "read"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
	ActionView   Action = "view"
	ActionLogin  Action = "login"
	ActionLogout Action = "logout"
	ActionExport Action = "export"
	ActionImport Action = "import"
)

// Actions lists every accepted action value.
var Actions = []Action{
	ActionCreate, ActionRead, ActionUpdate, ActionDelete, ActionView,
	ActionLogin, ActionLogout, ActionExport, ActionImport,
}

// Valid reports whether a is a known action.
func (a Action) Valid() bool {
	for _, known := range Actions {
		if a == known {
			return true
		}
	}
	return false
}

// Severity grades how notable an event is.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// Severities lists every accepted severity value.
var Severities = []Severity{
	SeverityInfo, SeverityWarning, SeverityError, SeverityCritical,
}

// Valid reports whether s is a known severity.
func (s Severity) Valid() bool {
	for _, known := range Severities {
		if s == known {
			return true
		}
	}
	return false
}

// LogEvent is one audit record. The Mongo ObjectID is the canonical
// event identifier; EventID carries its hex form on the wire and in
// the search index.
type LogEvent struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"-"`
	EventID   string             `bson:"-" json:"id,omitempty"`
	TenantID  string             `bson:"tenant_id" json:"tenant_id"`
	Timestamp time.Time          `bson:"timestamp" json:"timestamp"`

	Action     Action   `bson:"action" json:"action"`
	Resource   string   `bson:"resource_type" json:"resource_type"`
	ResourceID string   `bson:"resource_id,omitempty" json:"resource_id,omitempty"`
	Severity   Severity `bson:"severity" json:"severity"`
	Message    string   `bson:"message" json:"message"`

	UserID    string `bson:"user_id,omitempty" json:"user_id,omitempty"`
	SessionID string `bson:"session_id,omitempty" json:"session_id,omitempty"`
	RequestID string `bson:"request_id,omitempty" json:"request_id,omitempty"`
	IPAddress string `bson:"ip_address,omitempty" json:"ip_address,omitempty"`
	UserAgent string `bson:"user_agent,omitempty" json:"user_agent,omitempty"`

	BeforeState bson.M `bson:"before_state,omitempty" json:"before_state,omitempty"`
	AfterState  bson.M `bson:"after_state,omitempty" json:"after_state,omitempty"`
	Metadata    bson.M `bson:"metadata,omitempty" json:"metadata,omitempty"`
}

// HexID returns the canonical string identifier of a stored event.
func (e *LogEvent) HexID() string {
	if e.EventID != "" {
		return e.EventID
	}
	if e.ID.IsZero() {
		return ""
	}
	return e.ID.Hex()
}

// LogQuery holds the filters for a log search. TenantID is always set
// by the caller from the authenticated request, never from user input.
type LogQuery struct {
	TenantID string

	Action     Action
	Resource   string
	ResourceID string
	Severity   Severity
	UserID     string
	SessionID  string
	RequestID  string
	IPAddress  string

	Search string

	Since time.Time
	Until time.Time

	Skip  int64
	Limit int64
}

// Page returns the 1-based page number and page size the skip and
// limit correspond to.
func (q *LogQuery) Page() (page, size int64) {
	size = q.Limit
	if size <= 0 {
		return 1, 0
	}
	return q.Skip/size + 1, size
}

// LogPage is one page of query results with the total match count.
type LogPage struct {
	Events []*LogEvent
	Total  int64
}

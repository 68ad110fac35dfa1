// Loghub - Multi-Tenant Audit Log Ingestion and Query Service
// Copyright 2026 Ocelot Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ocelotlabs/loghub

// Package queue moves log events between the API and the ingestion
// worker over NATS JetStream, with at-least-once delivery.
package queue

import (
	"fmt"

	json "github.com/goccy/go-json"

	"github.com/ocelotlabs/loghub/internal/models"
)

// Serializer handles event encoding for queue messages.
type Serializer struct{}

// NewSerializer creates a new serializer.
func NewSerializer() *Serializer {
	return &Serializer{}
}

// Marshal converts an event to JSON bytes. Producers must set the
// tenant; consumers tolerate its absence and drop instead.
func (s *Serializer) Marshal(event *models.LogEvent) ([]byte, error) {
	if event.TenantID == "" {
		return nil, fmt.Errorf("marshal event: missing tenant_id")
	}

	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	return data, nil
}

// Unmarshal converts JSON bytes back to an event. No validation here;
// the worker decides what to do with incomplete payloads.
func (s *Serializer) Unmarshal(data []byte) (*models.LogEvent, error) {
	var event models.LogEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, fmt.Errorf("unmarshal event: %w", err)
	}
	return &event, nil
}

// Loghub - Multi-Tenant Audit Log Ingestion and Query Service
// Copyright 2026 Ocelot Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ocelotlabs/loghub

// Package audittrail records access to the service itself: who queried
// or read log data, and administrative actions such as tenant changes
// and retention runs. Recording is asynchronous and never blocks the
// request path.
package audittrail

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/mongo"

	"github.com/ocelotlabs/loghub/internal/logging"
)

const trailCollection = "audit_trail"

// Entry is one recorded access or administrative action.
type Entry struct {
	Timestamp time.Time `bson:"timestamp" json:"timestamp"`
	Actor     string    `bson:"actor" json:"actor"`
	Action    string    `bson:"action" json:"action"`
	TenantID  string    `bson:"tenant_id,omitempty" json:"tenant_id,omitempty"`
	Target    string    `bson:"target,omitempty" json:"target,omitempty"`
	RequestID string    `bson:"request_id,omitempty" json:"request_id,omitempty"`
	Detail    string    `bson:"detail,omitempty" json:"detail,omitempty"`
}

// Recorder buffers entries and writes them in the background. A full
// buffer drops the entry with a log line; trail loss is preferable to
// adding latency or failure to the request that triggered it.
type Recorder struct {
	collection *mongo.Collection
	entries    chan Entry
	done       chan struct{}
}

// NewRecorder starts a recorder over the trail collection.
func NewRecorder(db *mongo.Database) *Recorder {
	r := &Recorder{
		collection: db.Collection(trailCollection),
		entries:    make(chan Entry, 256),
		done:       make(chan struct{}),
	}
	go r.writeLoop()
	return r
}

// Record queues an entry. Never blocks.
func (r *Recorder) Record(entry Entry) {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	select {
	case r.entries <- entry:
	default:
		logging.Warn().
			Str("action", entry.Action).
			Msg("audit trail buffer full, entry dropped")
	}
}

func (r *Recorder) writeLoop() {
	defer close(r.done)

	for entry := range r.entries {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_, err := r.collection.InsertOne(ctx, entry)
		cancel()
		if err != nil {
			logging.Warn().Err(err).
				Str("action", entry.Action).
				Msg("audit trail write failed")
		}
	}
}

// Close flushes queued entries and stops the writer.
func (r *Recorder) Close() {
	close(r.entries)
	<-r.done
}

// Loghub - Multi-Tenant Audit Log Ingestion and Query Service
// Copyright 2026 Ocelot Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ocelotlabs/loghub

// Package worker consumes the ingestion stream and lands events in the
// durable store. Delivery from the queue is at-least-once; the store
// insert happens before the ack, so a crash mid-handle means a
// redelivery, never a lost event. Duplicate inserts are acceptable.
package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/ocelotlabs/loghub/internal/logging"
	"github.com/ocelotlabs/loghub/internal/metrics"
	"github.com/ocelotlabs/loghub/internal/models"
	"github.com/ocelotlabs/loghub/internal/queue"
)

// EventStore is the durable sink for ingested events.
type EventStore interface {
	Insert(ctx context.Context, event *models.LogEvent) error
}

// EventIndex mirrors stored events into the search index. Index
// failures never block the pipeline; reindexing repairs the gap.
type EventIndex interface {
	Store(ctx context.Context, event *models.LogEvent) error
}

// LivePublisher forwards stored events toward connected WebSocket
// clients.
type LivePublisher interface {
	PublishLive(ctx context.Context, event *models.LogEvent) error
}

// Subscriber is the queue side the worker consumes from.
type Subscriber interface {
	Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error)
}

// Worker drains the ingest subject.
type Worker struct {
	subscriber Subscriber
	store      EventStore
	index      EventIndex
	live       LivePublisher
	serializer *queue.Serializer
	topic      string
}

// New assembles a worker. index and live may be nil; the pipeline then
// skips those steps.
func New(subscriber Subscriber, store EventStore, index EventIndex, live LivePublisher, topic string) *Worker {
	return &Worker{
		subscriber: subscriber,
		store:      store,
		index:      index,
		live:       live,
		serializer: queue.NewSerializer(),
		topic:      topic,
	}
}

// Run consumes until the context is canceled or the message channel
// closes.
func (w *Worker) Run(ctx context.Context) error {
	messages, err := w.subscriber.Subscribe(ctx, w.topic)
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", w.topic, err)
	}

	logging.Info().Str("topic", w.topic).Msg("ingestion worker started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			w.handle(ctx, msg)
		}
	}
}

// handle processes one queue message. Acks mean the message is done
// for good: both successful inserts and permanently unprocessable
// payloads ack, because redelivering a poison message cannot fix it.
// Only transient store failures nack.
func (w *Worker) handle(ctx context.Context, msg *message.Message) {
	started := time.Now()

	event, err := w.serializer.Unmarshal(msg.Payload)
	if err != nil {
		logging.Warn().Err(err).Str("message_uuid", msg.UUID).Msg("dropping undecodable message")
		metrics.EventsProcessed.WithLabelValues("dropped").Inc()
		msg.Ack()
		return
	}

	if event.TenantID == "" {
		logging.Warn().Str("message_uuid", msg.UUID).Msg("dropping event without tenant")
		metrics.EventsProcessed.WithLabelValues("dropped").Inc()
		msg.Ack()
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	if err := w.store.Insert(ctx, event); err != nil {
		logging.Error().Err(err).
			Str("message_uuid", msg.UUID).
			Str("tenant_id", event.TenantID).
			Msg("durable insert failed, message will redeliver")
		metrics.EventsProcessed.WithLabelValues("retried").Inc()
		msg.Nack()
		return
	}

	// The event is durable from here on. Index and fan-out are best
	// effort and must not affect the ack.
	if w.index != nil {
		if err := w.index.Store(ctx, event); err != nil {
			logging.Warn().Err(err).
				Str("event_id", event.HexID()).
				Msg("search index write failed")
		}
	}
	if w.live != nil {
		if err := w.live.PublishLive(ctx, event); err != nil {
			logging.Warn().Err(err).
				Str("event_id", event.HexID()).
				Msg("live publish failed")
		}
	}

	metrics.EventsProcessed.WithLabelValues("stored").Inc()
	metrics.IngestDuration.Observe(time.Since(started).Seconds())
	msg.Ack()
}

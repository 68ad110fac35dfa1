// Loghub - Multi-Tenant Audit Log Ingestion and Query Service
// Copyright 2026 Ocelot Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ocelotlabs/loghub

package stream

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/ocelotlabs/loghub/internal/logging"
	"github.com/ocelotlabs/loghub/internal/queue"
)

// LiveSubscriber is the queue side the bridge consumes from.
type LiveSubscriber interface {
	Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error)
}

// Bridge forwards worker-published live events from NATS into the hub.
// The server and worker share no memory; this is the only path an
// ingested event takes to reach a WebSocket client.
type Bridge struct {
	subscriber LiveSubscriber
	hub        *Hub
	serializer *queue.Serializer
	topic      string
}

// NewBridge wires a bridge over the live wildcard subject.
func NewBridge(subscriber LiveSubscriber, hub *Hub, liveSubject string) *Bridge {
	return &Bridge{
		subscriber: subscriber,
		hub:        hub,
		serializer: queue.NewSerializer(),
		topic:      liveSubject + ".>",
	}
}

// Run consumes live events until the context is canceled. Messages
// always ack: the live path is lossy on purpose, the durable record
// already exists.
func (b *Bridge) Run(ctx context.Context) error {
	messages, err := b.subscriber.Subscribe(ctx, b.topic)
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", b.topic, err)
	}

	logging.Info().Str("topic", b.topic).Msg("live event bridge started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			b.forward(msg)
		}
	}
}

func (b *Bridge) forward(msg *message.Message) {
	defer msg.Ack()

	event, err := b.serializer.Unmarshal(msg.Payload)
	if err != nil {
		logging.Warn().Err(err).Str("message_uuid", msg.UUID).Msg("undecodable live event")
		return
	}
	b.hub.BroadcastEvent(event)
}

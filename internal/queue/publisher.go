// Loghub - Multi-Tenant Audit Log Ingestion and Query Service
// Copyright 2026 Ocelot Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ocelotlabs/loghub

package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	natsgo "github.com/nats-io/nats.go"

	"github.com/ocelotlabs/loghub/internal/config"
	"github.com/ocelotlabs/loghub/internal/metrics"
	"github.com/ocelotlabs/loghub/internal/models"
)

// ErrUnavailable is returned when the queue transport cannot accept a
// message. The API maps it to a 503.
var ErrUnavailable = errors.New("queue: unavailable")

// Publisher sends log events to the ingestion stream. Message UUIDs
// double as Nats-Msg-Id so JetStream deduplicates redelivered
// publishes.
type Publisher struct {
	publisher   message.Publisher
	serializer  *Serializer
	subject     string
	liveSubject string

	mu     sync.RWMutex
	closed bool
}

// NewPublisher creates a JetStream publisher for the ingest subject.
func NewPublisher(cfg config.NATSConfig, logger watermill.LoggerAdapter) (*Publisher, error) {
	if logger == nil {
		logger = NewLoggerAdapter()
	}

	natsOpts := []natsgo.Option{
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(cfg.MaxReconnects),
		natsgo.ReconnectWait(cfg.ReconnectWait),
		natsgo.DisconnectErrHandler(func(nc *natsgo.Conn, err error) {
			if err != nil {
				logger.Error("NATS disconnected", err, nil)
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logger.Info("NATS reconnected", watermill.LogFields{
				"url": nc.ConnectedUrl(),
			})
		}),
	}

	wmConfig := wmNats.PublisherConfig{
		URL:         cfg.URL,
		NatsOptions: natsOpts,
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			Disabled:      false,
			AutoProvision: false,
			TrackMsgId:    true,
			PublishOptions: []natsgo.PubOpt{
				natsgo.RetryAttempts(3),
				natsgo.RetryWait(100 * time.Millisecond),
			},
		},
	}

	pub, err := wmNats.NewPublisher(wmConfig, logger)
	if err != nil {
		return nil, fmt.Errorf("create queue publisher: %w", err)
	}

	return &Publisher{
		publisher:   pub,
		serializer:  NewSerializer(),
		subject:     cfg.IngestSubject,
		liveSubject: cfg.LiveSubject,
	}, nil
}

// Enqueue serializes an event and publishes it to the ingest subject.
// Returns the message UUID assigned to the event.
func (p *Publisher) Enqueue(ctx context.Context, event *models.LogEvent) (string, error) {
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return "", ErrUnavailable
	}
	p.mu.RUnlock()

	payload, err := p.serializer.Marshal(event)
	if err != nil {
		return "", err
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set(natsgo.MsgIdHdr, msg.UUID)
	msg.Metadata.Set("tenant_id", event.TenantID)

	if err := p.publisher.Publish(p.subject, msg); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	metrics.EventsEnqueued.WithLabelValues(event.TenantID).Inc()
	return msg.UUID, nil
}

// PublishLive sends a stored event to the tenant's live subject for
// WebSocket fan-out. Best effort; callers log and move on.
func (p *Publisher) PublishLive(ctx context.Context, event *models.LogEvent) error {
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return ErrUnavailable
	}
	p.mu.RUnlock()

	payload, err := p.serializer.Marshal(event)
	if err != nil {
		return err
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set(natsgo.MsgIdHdr, msg.UUID)
	msg.Metadata.Set("tenant_id", event.TenantID)

	topic := p.liveSubject + "." + event.TenantID
	if err := p.publisher.Publish(topic, msg); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Close shuts the publisher down. Further Enqueue calls fail fast.
func (p *Publisher) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	return p.publisher.Close()
}

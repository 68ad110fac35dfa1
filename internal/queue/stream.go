// Loghub - Multi-Tenant Audit Log Ingestion and Query Service
// Copyright 2026 Ocelot Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ocelotlabs/loghub

package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	natsgo "github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/ocelotlabs/loghub/internal/config"
)

// JetStreamContext is the subset of jetstream.JetStream the
// initializer needs. Tests supply a fake.
type JetStreamContext interface {
	Stream(ctx context.Context, name string) (jetstream.Stream, error)
	CreateStream(ctx context.Context, cfg jetstream.StreamConfig) (jetstream.Stream, error)
	UpdateStream(ctx context.Context, cfg jetstream.StreamConfig) (jetstream.Stream, error)
}

// StreamInitializer provisions the ingestion stream before publishers
// and subscribers start. Both subjects live on the one stream: the
// ingest subject feeds the worker, the live subjects feed server-side
// fan-out bridges.
type StreamInitializer struct {
	js  JetStreamContext
	cfg config.NATSConfig
}

// NewStreamInitializer connects to NATS and returns an initializer
// plus the connection for the caller to close.
func NewStreamInitializer(cfg config.NATSConfig) (*StreamInitializer, *natsgo.Conn, error) {
	nc, err := natsgo.Connect(cfg.URL,
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(cfg.MaxReconnects),
		natsgo.ReconnectWait(cfg.ReconnectWait),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("connect nats: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("create jetstream context: %w", err)
	}

	return &StreamInitializer{js: js, cfg: cfg}, nc, nil
}

// NewStreamInitializerWith wires an initializer over an existing
// JetStream context.
func NewStreamInitializerWith(js JetStreamContext, cfg config.NATSConfig) *StreamInitializer {
	return &StreamInitializer{js: js, cfg: cfg}
}

// EnsureStream creates or updates the stream. Idempotent.
func (s *StreamInitializer) EnsureStream(ctx context.Context) error {
	streamCfg := jetstream.StreamConfig{
		Name: s.cfg.StreamName,
		Subjects: []string{
			s.cfg.IngestSubject,
			s.cfg.LiveSubject + ".>",
		},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      24 * time.Hour,
		Duplicates:  2 * time.Minute,
		Storage:     jetstream.FileStorage,
		Discard:     jetstream.DiscardOld,
		AllowDirect: true,
	}

	_, err := s.js.Stream(ctx, s.cfg.StreamName)
	if err == nil {
		if _, err := s.js.UpdateStream(ctx, streamCfg); err != nil {
			return fmt.Errorf("update stream %s: %w", s.cfg.StreamName, err)
		}
		return nil
	}
	if errors.Is(err, jetstream.ErrStreamNotFound) {
		if _, err := s.js.CreateStream(ctx, streamCfg); err != nil {
			return fmt.Errorf("create stream %s: %w", s.cfg.StreamName, err)
		}
		return nil
	}
	return fmt.Errorf("check stream %s: %w", s.cfg.StreamName, err)
}

// Loghub - Multi-Tenant Audit Log Ingestion and Query Service
// Copyright 2026 Ocelot Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ocelotlabs/loghub

// Package main is the entry point for the Loghub ingestion worker.
//
// Workers consume the JetStream ingest subject as a queue group, land
// each event in MongoDB, then mirror it into OpenSearch and publish it
// on the per-tenant live subject for connected WebSocket clients. The
// durable insert gates the ack; index and live fan-out are best effort.
//
// Multiple worker processes share the queue group, so scaling out is a
// matter of starting more of them. Within one process the concurrency
// setting controls how many consumers drain the subject in parallel.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/ocelotlabs/loghub/internal/config"
	"github.com/ocelotlabs/loghub/internal/logging"
	"github.com/ocelotlabs/loghub/internal/queue"
	"github.com/ocelotlabs/loghub/internal/search"
	"github.com/ocelotlabs/loghub/internal/store"
	"github.com/ocelotlabs/loghub/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	concurrency := cfg.Worker.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}

	logging.Info().
		Str("subject", cfg.NATS.IngestSubject).
		Int("concurrency", concurrency).
		Bool("opensearch", cfg.OpenSearch.Enabled).
		Msg("Starting Loghub worker")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	initCtx, initCancel := context.WithTimeout(ctx, 30*time.Second)
	defer initCancel()

	mongoClient, db, err := store.Connect(initCtx, cfg.Mongo)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to connect to MongoDB")
	}
	defer store.Disconnect(mongoClient, 5*time.Second)

	logStore, err := store.NewLogStore(initCtx, db)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize log store")
	}

	var index worker.EventIndex
	if cfg.OpenSearch.Enabled {
		client, err := search.NewClient(cfg.OpenSearch)
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to create OpenSearch client")
		}
		searchIndex := search.NewIndex(client, cfg.OpenSearch)
		if err := searchIndex.EnsureIndex(initCtx); err != nil {
			logging.Warn().Err(err).Msg("Failed to ensure search index, continuing degraded")
		}
		index = searchIndex
	}

	wmLogger := queue.NewLoggerAdapter()

	streamInit, natsConn, err := queue.NewStreamInitializer(cfg.NATS)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to connect to NATS")
	}
	defer natsConn.Close()
	if err := streamInit.EnsureStream(initCtx); err != nil {
		logging.Fatal().Err(err).Msg("Failed to provision JetStream stream")
	}

	// The worker publishes stored events back out on the live subject.
	publisher, err := queue.NewPublisher(cfg.NATS, wmLogger)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create live publisher")
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing publisher")
		}
	}()

	subscriber, err := queue.NewSubscriber(cfg.NATS, wmLogger)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create subscriber")
	}
	defer func() {
		if err := subscriber.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing subscriber")
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		w := worker.New(subscriber, logStore, index, publisher, cfg.NATS.IngestSubject)
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for {
				err := w.Run(ctx)
				if err == nil || errors.Is(err, context.Canceled) {
					return
				}
				logging.Error().Err(err).Int("consumer", id).Msg("Consumer stopped, restarting")
				select {
				case <-ctx.Done():
					return
				case <-time.After(cfg.Worker.RetryBackoff):
				}
			}
		}(i)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logging.Info().Str("signal", sig.String()).Msg("Shutting down")

	cancel()
	wg.Wait()

	logging.Info().Msg("Worker stopped")
}

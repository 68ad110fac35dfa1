// Loghub - Multi-Tenant Audit Log Ingestion and Query Service
// Copyright 2026 Ocelot Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ocelotlabs/loghub

// Package main is the entry point for the Loghub API server.
//
// The server accepts audit events over HTTP, hands them to NATS
// JetStream, and answers queries from OpenSearch with MongoDB as the
// durable fallback. Ingestion itself happens in the separate worker
// binary (cmd/worker); the two processes share nothing but the queue
// and the databases.
//
// Startup order:
//
//  1. Configuration: Koanf v2 layered defaults, YAML file, environment
//  2. MongoDB: durable event store, tenant registry, token store
//  3. OpenSearch (optional): search index behind a circuit breaker
//  4. NATS JetStream: ingest queue publisher plus the live event bridge
//  5. WebSocket hub: per-tenant live streaming
//  6. HTTP server: chi router with JWT auth and role gates
//
// Shutdown on SIGINT/SIGTERM drains in-flight requests, then closes
// the queue, the hub, and the database connections in reverse order.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	natsgo "github.com/nats-io/nats.go"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/ocelotlabs/loghub/internal/api"
	"github.com/ocelotlabs/loghub/internal/audittrail"
	"github.com/ocelotlabs/loghub/internal/auth"
	"github.com/ocelotlabs/loghub/internal/config"
	"github.com/ocelotlabs/loghub/internal/logging"
	"github.com/ocelotlabs/loghub/internal/queue"
	"github.com/ocelotlabs/loghub/internal/search"
	"github.com/ocelotlabs/loghub/internal/store"
	"github.com/ocelotlabs/loghub/internal/stream"
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

	logging.Info().
		Str("addr", cfg.Server.Addr()).
		Str("mongo_db", cfg.Mongo.Database).
		Bool("opensearch", cfg.OpenSearch.Enabled).
		Msg("Starting Loghub server")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Durable store.
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
	tenantStore, err := store.NewTenantStore(initCtx, db)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize tenant store")
	}
	tokenStore, err := auth.NewMongoTokenStore(initCtx, db, cfg.Security.TokenCollection)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize token store")
	}
	validator := auth.NewValidator([]byte(cfg.Security.JWTSecret), tokenStore)

	// Search index, optional. When disabled every read goes straight
	// to the durable store.
	var index *search.Index
	var searchClient searchPinger
	if cfg.OpenSearch.Enabled {
		client, err := search.NewClient(cfg.OpenSearch)
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to create OpenSearch client")
		}
		index = search.NewIndex(client, cfg.OpenSearch)
		searchClient = index
		if err := index.EnsureIndex(initCtx); err != nil {
			// The index is a cache over Mongo; start without it and
			// let the breaker recover when OpenSearch comes back.
			logging.Warn().Err(err).Msg("Failed to ensure search index, continuing degraded")
		}
		logging.Info().Str("index", cfg.OpenSearch.Index).Msg("Search index attached")
	}

	// Queue transport. The stream must exist before the publisher and
	// the live bridge bind to it.
	wmLogger := queue.NewLoggerAdapter()

	streamInit, natsConn, err := queue.NewStreamInitializer(cfg.NATS)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to connect to NATS")
	}
	defer natsConn.Close()
	if err := streamInit.EnsureStream(initCtx); err != nil {
		logging.Fatal().Err(err).Msg("Failed to provision JetStream stream")
	}

	publisher, err := queue.NewPublisher(cfg.NATS, wmLogger)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create queue publisher")
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing queue publisher")
		}
	}()

	// WebSocket hub plus the bridge feeding it from the workers' live
	// subject.
	hub := stream.NewHub()
	go func() {
		if err := hub.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Hub stopped")
		}
	}()

	liveSubscriber, err := queue.NewSubscriber(cfg.NATS, wmLogger)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create live subscriber")
	}
	defer func() {
		if err := liveSubscriber.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing live subscriber")
		}
	}()

	bridge := stream.NewBridge(liveSubscriber, hub, cfg.NATS.LiveSubject)
	go func() {
		if err := bridge.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Live bridge stopped")
		}
	}()

	// Admin audit trail.
	trail := audittrail.NewRecorder(db)
	defer trail.Close()

	// HTTP surface.
	handler := api.NewHandler(logStore, searchIndexOrNil(index), publisher, tenantStore, trail, cfg.API)
	handler.SetStream(hub, cfg.Security.CORSOrigins)
	handler.SetHealthProbes(healthProbes(mongoClient, natsConn, searchClient))

	router := api.NewRouter(handler, validator, cfg.Security)

	srv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router.Setup(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.Timeout,
		WriteTimeout:      cfg.Server.Timeout,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info().Str("addr", srv.Addr).Msg("HTTP server listening")
		errCh <- srv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logging.Info().Str("signal", sig.String()).Msg("Shutting down")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error().Err(err).Msg("HTTP server failed")
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Error().Err(err).Msg("HTTP shutdown incomplete")
	}
	cancel()

	logging.Info().Msg("Server stopped")
}

// searchIndexOrNil keeps the handler's index interface nil when search
// is disabled. A typed nil would defeat the handler's nil checks.
func searchIndexOrNil(index *search.Index) api.SearchIndex {
	if index == nil {
		return nil
	}
	return index
}

type searchPinger interface {
	Ping(ctx context.Context) error
}

func healthProbes(mongoClient *mongo.Client, natsConn *natsgo.Conn, searchClient searchPinger) map[string]api.Pinger {
	probes := map[string]api.Pinger{
		"mongo": func(ctx context.Context) error {
			return mongoClient.Ping(ctx, readpref.Primary())
		},
		"nats": func(context.Context) error {
			if !natsConn.IsConnected() {
				return errors.New("nats disconnected")
			}
			return nil
		},
	}
	if searchClient != nil {
		probes["opensearch"] = searchClient.Ping
	}
	return probes
}

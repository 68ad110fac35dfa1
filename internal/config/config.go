// Loghub - Multi-Tenant Audit Log Ingestion and Query Service
// Copyright 2026 Ocelot Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ocelotlabs/loghub

// Package config defines the layered configuration for the Loghub server
// and worker processes.
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration shared by both binaries.
type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Mongo      MongoConfig      `koanf:"mongo"`
	OpenSearch OpenSearchConfig `koanf:"opensearch"`
	NATS       NATSConfig       `koanf:"nats"`
	Security   SecurityConfig   `koanf:"security"`
	Worker     WorkerConfig     `koanf:"worker"`
	API        APIConfig        `koanf:"api"`
	Logging    LoggingConfig    `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host    string        `koanf:"host"`
	Port    int           `koanf:"port"`
	Timeout time.Duration `koanf:"timeout"`
}

// Addr returns the host:port listen address.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// MongoConfig holds durable store settings.
type MongoConfig struct {
	URI            string        `koanf:"uri"`
	Database       string        `koanf:"database"`
	ConnectTimeout time.Duration `koanf:"connect_timeout"`
	MaxPoolSize    uint64        `koanf:"max_pool_size"`
}

// OpenSearchConfig holds search index settings.
type OpenSearchConfig struct {
	// Enabled disables the search path entirely when false; queries go
	// straight to the durable store.
	Enabled   bool     `koanf:"enabled"`
	Addresses []string `koanf:"addresses"`
	Username  string   `koanf:"username"`
	Password  string   `koanf:"password"`
	Index     string   `koanf:"index"`
	// Insecure skips TLS certificate verification (development only).
	Insecure bool `koanf:"insecure"`
}

// NATSConfig holds queue transport settings.
type NATSConfig struct {
	URL           string        `koanf:"url"`
	StreamName    string        `koanf:"stream_name"`
	IngestSubject string        `koanf:"ingest_subject"`
	LiveSubject   string        `koanf:"live_subject"`
	DurableName   string        `koanf:"durable_name"`
	QueueGroup    string        `koanf:"queue_group"`
	MaxReconnects int           `koanf:"max_reconnects"`
	ReconnectWait time.Duration `koanf:"reconnect_wait"`
	AckWait       time.Duration `koanf:"ack_wait"`
	MaxDeliver    int           `koanf:"max_deliver"`
	CloseTimeout  time.Duration `koanf:"close_timeout"`
}

// SecurityConfig holds authentication settings.
type SecurityConfig struct {
	// JWTSecret signs and verifies bearer tokens. Minimum 32 characters.
	JWTSecret string `koanf:"jwt_secret"`
	// TokenCollection is the Mongo collection holding token records.
	TokenCollection string        `koanf:"token_collection"`
	RateLimitReqs   int           `koanf:"rate_limit_reqs"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
	CORSOrigins     []string      `koanf:"cors_origins"`
}

// WorkerConfig holds ingestion worker settings.
type WorkerConfig struct {
	// Concurrency is the number of parallel consumers per process.
	Concurrency int `koanf:"concurrency"`
	// RetryBackoff is the pause before re-polling after a transport error.
	RetryBackoff time.Duration `koanf:"retry_backoff"`
}

// APIConfig holds request shaping defaults.
type APIConfig struct {
	DefaultPageSize int `koanf:"default_page_size"`
	MaxPageSize     int `koanf:"max_page_size"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Validate checks invariants that cannot be expressed as defaults.
func (c *Config) Validate() error {
	if len(c.Security.JWTSecret) < 32 {
		return fmt.Errorf("security.jwt_secret must be at least 32 characters")
	}
	if c.Mongo.URI == "" {
		return fmt.Errorf("mongo.uri is required")
	}
	if c.OpenSearch.Enabled && len(c.OpenSearch.Addresses) == 0 {
		return fmt.Errorf("opensearch.addresses is required when opensearch is enabled")
	}
	if c.API.MaxPageSize < c.API.DefaultPageSize {
		return fmt.Errorf("api.max_page_size must be >= api.default_page_size")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in 1..65535")
	}
	return nil
}

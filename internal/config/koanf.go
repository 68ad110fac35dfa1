// Loghub - Multi-Tenant Audit Log Ingestion and Query Service
// Copyright 2026 Ocelot Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ocelotlabs/loghub

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in
// order of priority. The first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/loghub/config.yaml",
	"/etc/loghub/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config struct with all sensible default values.
// These defaults are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:    "0.0.0.0",
			Port:    8080,
			Timeout: 30 * time.Second,
		},
		Mongo: MongoConfig{
			URI:            "mongodb://localhost:27017",
			Database:       "loghub",
			ConnectTimeout: 10 * time.Second,
			MaxPoolSize:    100,
		},
		OpenSearch: OpenSearchConfig{
			Enabled:   true,
			Addresses: []string{"http://localhost:9200"},
			Index:     "loghub-logs",
			Insecure:  false,
		},
		NATS: NATSConfig{
			URL:           "nats://127.0.0.1:4222",
			StreamName:    "LOGHUB",
			IngestSubject: "logs.ingest",
			LiveSubject:   "logs.ingested",
			DurableName:   "log-consumer",
			QueueGroup:    "ingestors",
			MaxReconnects: 60,
			ReconnectWait: 2 * time.Second,
			AckWait:       30 * time.Second,
			MaxDeliver:    5,
			CloseTimeout:  30 * time.Second,
		},
		Security: SecurityConfig{
			JWTSecret:       "",
			TokenCollection: "jwt_tokens",
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
			CORSOrigins:     []string{"*"},
		},
		Worker: WorkerConfig{
			Concurrency:  4,
			RetryBackoff: 5 * time.Second,
		},
		API: APIConfig{
			DefaultPageSize: 100,
			MaxPageSize:     1000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Load loads configuration using Koanf v2 with layered sources:
//
//  1. Defaults: built-in sensible defaults
//  2. Config file: optional YAML config file (if exists)
//  3. Environment variables: override any setting
//
// Precedence is ENV > File > Defaults.
func Load() (*Config, error) {
	k := koanf.New(".")

	// Layer 1: defaults from struct
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: config file (optional)
	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: environment variables (highest priority)
	// LOGHUB_MONGO_URI -> mongo.uri, LOGHUB_SECURITY_JWT_SECRET -> security.jwt_secret
	envProvider := env.Provider("LOGHUB_", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile searches for a config file in the default paths.
// Returns the path to the first file found, or empty string if none found.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// sliceConfigPaths defines which config paths should be parsed as
// comma-separated slices when sourced from environment variables.
var sliceConfigPaths = []string{
	"opensearch.addresses",
	"security.cors_origins",
}

// processSliceFields converts comma-separated string values to slices for
// known slice fields. Env vars come in as strings but the config expects
// slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envTransformFunc maps environment variable names to koanf config paths.
//
// The first underscore-separated segment after the LOGHUB_ prefix selects
// the config section; the remainder is the key within it:
//
//   - LOGHUB_SERVER_PORT          -> server.port
//   - LOGHUB_MONGO_URI            -> mongo.uri
//   - LOGHUB_SECURITY_JWT_SECRET  -> security.jwt_secret
//   - LOGHUB_NATS_INGEST_SUBJECT  -> nats.ingest_subject
func envTransformFunc(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, "LOGHUB_"))
	parts := strings.SplitN(key, "_", 2)
	if len(parts) == 1 {
		return parts[0]
	}
	return parts[0] + "." + parts[1]
}

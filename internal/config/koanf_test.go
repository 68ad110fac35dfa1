// Loghub - Multi-Tenant Audit Log Ingestion and Query Service
// Copyright 2026 Ocelot Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ocelotlabs/loghub

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestLoadDefaults(t *testing.T) {
	t.Setenv("LOGHUB_SECURITY_JWT_SECRET", testSecret)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Mongo.Database != "loghub" {
		t.Errorf("Mongo.Database = %q, want loghub", cfg.Mongo.Database)
	}
	if cfg.NATS.IngestSubject != "logs.ingest" {
		t.Errorf("NATS.IngestSubject = %q, want logs.ingest", cfg.NATS.IngestSubject)
	}
	if cfg.NATS.LiveSubject != "logs.ingested" {
		t.Errorf("NATS.LiveSubject = %q, want logs.ingested", cfg.NATS.LiveSubject)
	}
	if cfg.Worker.Concurrency != 4 {
		t.Errorf("Worker.Concurrency = %d, want 4", cfg.Worker.Concurrency)
	}
	if !cfg.OpenSearch.Enabled {
		t.Error("OpenSearch.Enabled = false, want true by default")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("LOGHUB_SECURITY_JWT_SECRET", testSecret)
	t.Setenv("LOGHUB_SERVER_PORT", "9090")
	t.Setenv("LOGHUB_MONGO_URI", "mongodb://db.internal:27017")
	t.Setenv("LOGHUB_NATS_INGEST_SUBJECT", "audit.ingest")
	t.Setenv("LOGHUB_OPENSEARCH_ADDRESSES", "http://os-1:9200, http://os-2:9200")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Mongo.URI != "mongodb://db.internal:27017" {
		t.Errorf("Mongo.URI = %q", cfg.Mongo.URI)
	}
	if cfg.NATS.IngestSubject != "audit.ingest" {
		t.Errorf("NATS.IngestSubject = %q, want audit.ingest", cfg.NATS.IngestSubject)
	}
	want := []string{"http://os-1:9200", "http://os-2:9200"}
	if len(cfg.OpenSearch.Addresses) != 2 || cfg.OpenSearch.Addresses[0] != want[0] || cfg.OpenSearch.Addresses[1] != want[1] {
		t.Errorf("OpenSearch.Addresses = %v, want %v", cfg.OpenSearch.Addresses, want)
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte("server:\n  port: 7070\nlogging:\n  level: debug\n")
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv(ConfigPathEnvVar, path)
	t.Setenv("LOGHUB_SECURITY_JWT_SECRET", testSecret)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Server.Port != 7070 {
		t.Errorf("Server.Port = %d, want 7070 from file", cfg.Server.Port)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug from file", cfg.Logging.Level)
	}
	// Untouched settings keep their defaults.
	if cfg.Mongo.Database != "loghub" {
		t.Errorf("Mongo.Database = %q, want default", cfg.Mongo.Database)
	}
}

func TestEnvBeatsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: 7070\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv(ConfigPathEnvVar, path)
	t.Setenv("LOGHUB_SECURITY_JWT_SECRET", testSecret)
	t.Setenv("LOGHUB_SERVER_PORT", "6060")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Server.Port != 6060 {
		t.Errorf("Server.Port = %d, want env override 6060", cfg.Server.Port)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := defaultConfig()
		cfg.Security.JWTSecret = testSecret
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults with secret", func(*Config) {}, false},
		{"short secret", func(c *Config) { c.Security.JWTSecret = "short" }, true},
		{"missing mongo uri", func(c *Config) { c.Mongo.URI = "" }, true},
		{"search enabled without addresses", func(c *Config) { c.OpenSearch.Addresses = nil }, true},
		{"search disabled without addresses", func(c *Config) {
			c.OpenSearch.Enabled = false
			c.OpenSearch.Addresses = nil
		}, false},
		{"max page below default", func(c *Config) { c.API.MaxPageSize = 10 }, true},
		{"port out of range", func(c *Config) { c.Server.Port = 70000 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestEnvTransform(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"LOGHUB_SERVER_PORT", "server.port"},
		{"LOGHUB_MONGO_URI", "mongo.uri"},
		{"LOGHUB_SECURITY_JWT_SECRET", "security.jwt_secret"},
		{"LOGHUB_NATS_INGEST_SUBJECT", "nats.ingest_subject"},
		{"LOGHUB_OPENSEARCH_ADDRESSES", "opensearch.addresses"},
	}
	for _, tt := range tests {
		if got := envTransformFunc(tt.in); got != tt.want {
			t.Errorf("envTransformFunc(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestLoadRejectsMissingSecret(t *testing.T) {
	// The default secret is empty, which is too short.
	t.Setenv("LOGHUB_SECURITY_JWT_SECRET", "")

	if _, err := Load(); err == nil {
		t.Fatal("Load() succeeded without a JWT secret")
	}
}

func TestTimeoutDefaults(t *testing.T) {
	cfg := defaultConfig()
	if cfg.Server.Timeout != 30*time.Second {
		t.Errorf("Server.Timeout = %v, want 30s", cfg.Server.Timeout)
	}
	if cfg.NATS.AckWait != 30*time.Second {
		t.Errorf("NATS.AckWait = %v, want 30s", cfg.NATS.AckWait)
	}
}

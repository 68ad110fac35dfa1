// Loghub - Multi-Tenant Audit Log Ingestion and Query Service
// Copyright 2026 Ocelot Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ocelotlabs/loghub

package auth

import (
	"context"
	"sync"
	"time"

	"github.com/ocelotlabs/loghub/internal/models"
)

// TokenStore owns the revocation/expiry/claims state for issued tokens,
// keyed by jti. It is read on every authenticated request and must be
// strongly consistent to revocation: a newly revoked token is rejected on
// the very next request.
//
// Token issuance itself is external; Put exists for wiring and tests.
type TokenStore interface {
	// Get returns the record for a jti, or ErrTokenNotFound.
	Get(ctx context.Context, jti string) (*models.TokenRecord, error)

	// Put stores or replaces a token record.
	Put(ctx context.Context, record *models.TokenRecord) error

	// Revoke sets the revoked flag on a record. Returns ErrTokenNotFound
	// if the jti is absent.
	Revoke(ctx context.Context, jti string) error

	// DeleteExpired removes records whose expiry predates the cutoff,
	// returning the number removed. Retention policy only; revoked
	// records are kept until they expire.
	DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error)

	// Close releases resources.
	Close() error
}

// MemoryTokenStore is an in-memory TokenStore for tests and single-process
// development. Records are lost on restart.
type MemoryTokenStore struct {
	mu      sync.RWMutex
	records map[string]models.TokenRecord
}

// NewMemoryTokenStore creates an empty in-memory token store.
func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{records: make(map[string]models.TokenRecord)}
}

// Get returns the record for a jti.
func (s *MemoryTokenStore) Get(ctx context.Context, jti string) (*models.TokenRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.records[jti]
	if !ok {
		return nil, ErrTokenNotFound
	}
	out := record
	return &out, nil
}

// Put stores or replaces a token record.
func (s *MemoryTokenStore) Put(ctx context.Context, record *models.TokenRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	s.records[record.JTI] = *record
	return nil
}

// Revoke sets the revoked flag on a record.
func (s *MemoryTokenStore) Revoke(ctx context.Context, jti string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[jti]
	if !ok {
		return ErrTokenNotFound
	}
	record.Revoked = true
	s.records[jti] = record
	return nil
}

// DeleteExpired removes records expired before the cutoff.
func (s *MemoryTokenStore) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int64
	for jti, record := range s.records {
		if record.ExpiresAt.Before(cutoff) {
			delete(s.records, jti)
			removed++
		}
	}
	return removed, nil
}

// Close releases resources.
func (s *MemoryTokenStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = nil
	return nil
}

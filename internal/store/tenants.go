// Loghub - Multi-Tenant Audit Log Ingestion and Query Service
// Copyright 2026 Ocelot Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ocelotlabs/loghub

package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ocelotlabs/loghub/internal/models"
)

const tenantsCollection = "tenants"

// TenantStore manages tenant records.
type TenantStore struct {
	collection *mongo.Collection
}

// NewTenantStore creates the store and ensures the unique tenant_id
// index.
func NewTenantStore(ctx context.Context, db *mongo.Database) (*TenantStore, error) {
	coll := db.Collection(tenantsCollection)

	_, err := coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "tenant_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return nil, fmt.Errorf("create tenant index: %w", err)
	}

	return &TenantStore{collection: coll}, nil
}

// Create inserts a new tenant. Duplicate tenant IDs report
// ErrTenantExists.
func (s *TenantStore) Create(ctx context.Context, tenant *models.Tenant) error {
	if tenant.CreatedAt.IsZero() {
		tenant.CreatedAt = time.Now().UTC()
	}
	if tenant.Settings.RetentionDays == 0 {
		tenant.Settings = models.DefaultTenantSettings()
	}

	_, err := s.collection.InsertOne(ctx, tenant)
	if mongo.IsDuplicateKeyError(err) {
		return ErrTenantExists
	}
	if err != nil {
		return fmt.Errorf("create tenant %s: %w", tenant.TenantID, err)
	}
	return nil
}

// Get returns a tenant by its tenant_id.
func (s *TenantStore) Get(ctx context.Context, tenantID string) (*models.Tenant, error) {
	var tenant models.Tenant
	err := s.collection.FindOne(ctx, bson.M{"tenant_id": tenantID}).Decode(&tenant)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get tenant %s: %w", tenantID, err)
	}
	return &tenant, nil
}

// List returns one page of tenants ordered by tenant_id, plus the
// total count.
func (s *TenantStore) List(ctx context.Context, skip, limit int64) ([]*models.Tenant, int64, error) {
	total, err := s.collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return nil, 0, fmt.Errorf("count tenants: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "tenant_id", Value: 1}}).
		SetSkip(skip)
	if limit > 0 {
		opts.SetLimit(limit)
	}

	cursor, err := s.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("list tenants: %w", err)
	}
	defer cursor.Close(ctx)

	var tenants []*models.Tenant
	for cursor.Next(ctx) {
		var tenant models.Tenant
		if err := cursor.Decode(&tenant); err != nil {
			return nil, 0, fmt.Errorf("decode tenant: %w", err)
		}
		tenants = append(tenants, &tenant)
	}
	if err := cursor.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate tenants: %w", err)
	}

	return tenants, total, nil
}

// Update applies a partial update and returns the updated tenant.
func (s *TenantStore) Update(ctx context.Context, tenantID string, update *models.TenantUpdate) (*models.Tenant, error) {
	set := bson.M{}
	if update.Name != nil {
		set["name"] = *update.Name
	}
	if update.Settings != nil {
		set["settings"] = *update.Settings
	}
	if len(set) == 0 {
		return s.Get(ctx, tenantID)
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var tenant models.Tenant
	err := s.collection.FindOneAndUpdate(ctx,
		bson.M{"tenant_id": tenantID},
		bson.M{"$set": set},
		opts,
	).Decode(&tenant)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update tenant %s: %w", tenantID, err)
	}
	return &tenant, nil
}

// Delete removes a tenant record. The tenant's log data is handled
// separately by retention.
func (s *TenantStore) Delete(ctx context.Context, tenantID string) error {
	result, err := s.collection.DeleteOne(ctx, bson.M{"tenant_id": tenantID})
	if err != nil {
		return fmt.Errorf("delete tenant %s: %w", tenantID, err)
	}
	if result.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

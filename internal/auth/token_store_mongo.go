// Loghub - Multi-Tenant Audit Log Ingestion and Query Service
// Copyright 2026 Ocelot Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ocelotlabs/loghub

package auth

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

// MongoTokenStore is the production TokenStore, backed by a Mongo
// collection shared with the token issuer. Reads hit the primary so a
// revocation is visible on the next request.
type MongoTokenStore struct {
	collection *mongo.Collection
}

// NewMongoTokenStore creates a token store on the given collection and
// ensures the unique jti index.
func NewMongoTokenStore(ctx context.Context, db *mongo.Database, collection string) (*MongoTokenStore, error) {
	coll := db.Collection(collection)

	_, err := coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "jti", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return nil, fmt.Errorf("create jti index: %w", err)
	}

	return &MongoTokenStore{collection: coll}, nil
}

// Get returns the record for a jti.
func (s *MongoTokenStore) Get(ctx context.Context, jti string) (*models.TokenRecord, error) {
	var record models.TokenRecord
	err := s.collection.FindOne(ctx, bson.M{"jti": jti}).Decode(&record)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrTokenNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find token %s: %w", jti, err)
	}
	return &record, nil
}

// Put stores or replaces a token record, keyed by jti.
func (s *MongoTokenStore) Put(ctx context.Context, record *models.TokenRecord) error {
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	_, err := s.collection.ReplaceOne(ctx,
		bson.M{"jti": record.JTI},
		record,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("upsert token %s: %w", record.JTI, err)
	}
	return nil
}

// Revoke sets the revoked flag on a record.
func (s *MongoTokenStore) Revoke(ctx context.Context, jti string) error {
	result, err := s.collection.UpdateOne(ctx,
		bson.M{"jti": jti},
		bson.M{"$set": bson.M{"revoked": true}},
	)
	if err != nil {
		return fmt.Errorf("revoke token %s: %w", jti, err)
	}
	if result.MatchedCount == 0 {
		return ErrTokenNotFound
	}
	return nil
}

// DeleteExpired removes records expired before the cutoff.
func (s *MongoTokenStore) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.collection.DeleteMany(ctx, bson.M{
		"expires_at": bson.M{"$lt": cutoff},
	})
	if err != nil {
		return 0, fmt.Errorf("delete expired tokens: %w", err)
	}
	return result.DeletedCount, nil
}

// Close releases resources. The underlying client is shared and closed by
// the owner.
func (s *MongoTokenStore) Close() error {
	return nil
}

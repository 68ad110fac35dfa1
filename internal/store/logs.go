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
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ocelotlabs/loghub/internal/models"
)

const logsCollection = "logs"

// LogStore persists log events in Mongo. It is the durable system of
// record; the search index is rebuilt from it.
type LogStore struct {
	collection *mongo.Collection
}

// NewLogStore creates the store and ensures its indexes.
func NewLogStore(ctx context.Context, db *mongo.Database) (*LogStore, error) {
	coll := db.Collection(logsCollection)

	_, err := coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "tenant_id", Value: 1}, {Key: "timestamp", Value: -1}}},
		{Keys: bson.D{{Key: "tenant_id", Value: 1}, {Key: "action", Value: 1}}},
		{Keys: bson.D{{Key: "tenant_id", Value: 1}, {Key: "severity", Value: 1}}},
		{Keys: bson.D{{Key: "tenant_id", Value: 1}, {Key: "user_id", Value: 1}}},
	})
	if err != nil {
		return nil, fmt.Errorf("create log indexes: %w", err)
	}

	return &LogStore{collection: coll}, nil
}

// Insert writes one event and fills in its generated ID.
func (s *LogStore) Insert(ctx context.Context, event *models.LogEvent) error {
	if event.ID.IsZero() {
		event.ID = primitive.NewObjectID()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	if _, err := s.collection.InsertOne(ctx, event); err != nil {
		return fmt.Errorf("insert log event: %w", err)
	}
	event.EventID = event.ID.Hex()
	return nil
}

// InsertMany writes a batch of events in order.
func (s *LogStore) InsertMany(ctx context.Context, events []*models.LogEvent) error {
	if len(events) == 0 {
		return nil
	}

	docs := make([]any, len(events))
	for i, event := range events {
		if event.ID.IsZero() {
			event.ID = primitive.NewObjectID()
		}
		if event.Timestamp.IsZero() {
			event.Timestamp = time.Now().UTC()
		}
		docs[i] = event
	}

	if _, err := s.collection.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("insert log batch: %w", err)
	}
	for _, event := range events {
		event.EventID = event.ID.Hex()
	}
	return nil
}

// Query returns one page of matching events, newest first, plus the
// total match count.
func (s *LogStore) Query(ctx context.Context, q *models.LogQuery) (*models.LogPage, error) {
	filter := buildFilter(q)

	total, err := s.collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("count log events: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}}).
		SetSkip(q.Skip)
	if q.Limit > 0 {
		opts.SetLimit(q.Limit)
	}

	cursor, err := s.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("query log events: %w", err)
	}
	defer cursor.Close(ctx)

	events := make([]*models.LogEvent, 0, q.Limit)
	for cursor.Next(ctx) {
		var event models.LogEvent
		if err := cursor.Decode(&event); err != nil {
			return nil, fmt.Errorf("decode log event: %w", err)
		}
		event.EventID = event.ID.Hex()
		events = append(events, &event)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("iterate log events: %w", err)
	}

	return &models.LogPage{Events: events, Total: total}, nil
}

// Get returns one event by hex ID, scoped to the tenant. Events owned
// by other tenants are indistinguishable from missing ones.
func (s *LogStore) Get(ctx context.Context, tenantID, id string) (*models.LogEvent, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrInvalidID
	}

	var event models.LogEvent
	err = s.collection.FindOne(ctx, bson.M{"_id": oid, "tenant_id": tenantID}).Decode(&event)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get log event %s: %w", id, err)
	}
	event.EventID = event.ID.Hex()
	return &event, nil
}

// DeleteOlderThan removes every event of a tenant with a timestamp
// before the cutoff and returns the number deleted.
func (s *LogStore) DeleteOlderThan(ctx context.Context, tenantID string, cutoff time.Time) (int64, error) {
	result, err := s.collection.DeleteMany(ctx, bson.M{
		"tenant_id": tenantID,
		"timestamp": bson.M{"$lt": cutoff},
	})
	if err != nil {
		return 0, fmt.Errorf("delete expired log events: %w", err)
	}
	return result.DeletedCount, nil
}

// Each streams a tenant's events within the time window to fn, oldest
// first. Used by reindexing; fn returning an error stops the scan.
// Zero bounds leave that side of the window open.
func (s *LogStore) Each(ctx context.Context, tenantID string, since, until time.Time, fn func(*models.LogEvent) error) error {
	filter := bson.M{"tenant_id": tenantID}
	if !since.IsZero() || !until.IsZero() {
		window := bson.M{}
		if !since.IsZero() {
			window["$gte"] = since
		}
		if !until.IsZero() {
			window["$lte"] = until
		}
		filter["timestamp"] = window
	}

	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}})
	cursor, err := s.collection.Find(ctx, filter, opts)
	if err != nil {
		return fmt.Errorf("scan log events: %w", err)
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		var event models.LogEvent
		if err := cursor.Decode(&event); err != nil {
			return fmt.Errorf("decode log event: %w", err)
		}
		event.EventID = event.ID.Hex()
		if err := fn(&event); err != nil {
			return err
		}
	}
	return cursor.Err()
}

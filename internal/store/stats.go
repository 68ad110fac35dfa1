// Loghub - Multi-Tenant Audit Log Ingestion and Query Service
// Copyright 2026 Ocelot Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ocelotlabs/loghub

package store

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/ocelotlabs/loghub/internal/models"
)

// StatsSummary aggregates a tenant's events by severity and action
// over a time window.
type StatsSummary struct {
	Total      int64            `json:"total"`
	BySeverity map[string]int64 `json:"by_severity"`
	ByAction   map[string]int64 `json:"by_action"`
}

// TimelineBucket is one day of event counts.
type TimelineBucket struct {
	Date  string `json:"date"`
	Count int64  `json:"count"`
}

func windowFilter(tenantID string, since, until time.Time) bson.M {
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
	return filter
}

func (s *LogStore) countByField(ctx context.Context, field string, filter bson.M) (map[string]int64, int64, error) {
	pipeline := []bson.M{
		{"$match": filter},
		{"$group": bson.M{
			"_id":   "$" + field,
			"count": bson.M{"$sum": 1},
		}},
	}

	cursor, err := s.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, 0, fmt.Errorf("aggregate %s counts: %w", field, err)
	}
	defer cursor.Close(ctx)

	counts := make(map[string]int64)
	var total int64
	for cursor.Next(ctx) {
		var row struct {
			Key   string `bson:"_id"`
			Count int64  `bson:"count"`
		}
		if err := cursor.Decode(&row); err != nil {
			return nil, 0, fmt.Errorf("decode %s bucket: %w", field, err)
		}
		counts[row.Key] = row.Count
		total += row.Count
	}
	return counts, total, cursor.Err()
}

// Summary returns severity and action breakdowns for a tenant. Zero
// time bounds mean an unbounded window on that side.
func (s *LogStore) Summary(ctx context.Context, tenantID string, since, until time.Time) (*StatsSummary, error) {
	filter := windowFilter(tenantID, since, until)

	bySeverity, total, err := s.countByField(ctx, "severity", filter)
	if err != nil {
		return nil, err
	}
	byAction, _, err := s.countByField(ctx, "action", filter)
	if err != nil {
		return nil, err
	}

	summary := &StatsSummary{
		Total:      total,
		BySeverity: make(map[string]int64, len(models.Severities)),
		ByAction:   byAction,
	}
	// Every known severity appears in the summary, zero or not.
	for _, sev := range models.Severities {
		summary.BySeverity[string(sev)] = bySeverity[string(sev)]
	}
	return summary, nil
}

// Timeline returns per-day event counts for a tenant, oldest day
// first.
func (s *LogStore) Timeline(ctx context.Context, tenantID string, since, until time.Time) ([]TimelineBucket, error) {
	pipeline := []bson.M{
		{"$match": windowFilter(tenantID, since, until)},
		{"$group": bson.M{
			"_id": bson.M{"$dateToString": bson.M{
				"format": "%Y-%m-%d",
				"date":   "$timestamp",
			}},
			"count": bson.M{"$sum": 1},
		}},
		{"$sort": bson.M{"_id": 1}},
	}

	cursor, err := s.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("aggregate timeline: %w", err)
	}
	defer cursor.Close(ctx)

	var buckets []TimelineBucket
	for cursor.Next(ctx) {
		var row struct {
			Date  string `bson:"_id"`
			Count int64  `bson:"count"`
		}
		if err := cursor.Decode(&row); err != nil {
			return nil, fmt.Errorf("decode timeline bucket: %w", err)
		}
		buckets = append(buckets, TimelineBucket{Date: row.Date, Count: row.Count})
	}
	return buckets, cursor.Err()
}

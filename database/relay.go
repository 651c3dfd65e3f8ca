package database

import (
	"context"
	"fmt"
	"time"

	"github.com/soficola/bridge-relay/database/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CreateRelayRecord stores a single delivery attempt.
func (db *Database) CreateRelayRecord(ctx context.Context, record models.RelayRecord) error {
	record.CreatedAt = time.Now()

	_, err := db.client.Database(db.databaseName).Collection("relays").InsertOne(ctx, record)
	if err != nil {
		return fmt.Errorf("failed to create relay record: %w", err)
	}

	return nil
}

// GetRelays returns a page of relay attempts, newest first, optionally
// filtered by status, addresses or tx hash.
func (db *Database) GetRelays(ctx context.Context, filter models.Filter, page int64, pageSize int64) (*models.PaginatedResult, error) {
	mongoFilter := buildFilter(filter)
	skip := (page - 1) * pageSize

	collection := db.client.Database(db.databaseName).Collection("relays")
	totalCount, err := collection.CountDocuments(ctx, mongoFilter)
	if err != nil {
		return nil, fmt.Errorf("failed to get total count: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(skip).
		SetLimit(pageSize)

	cursor, err := collection.Find(ctx, mongoFilter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to get relays: %w", err)
	}
	defer cursor.Close(ctx)

	var records []models.RelayRecord
	if err := cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("failed to decode relays: %w", err)
	}

	return &models.PaginatedResult{
		Items:      records,
		TotalCount: totalCount,
		Page:       page,
		PageSize:   pageSize,
	}, nil
}

func buildFilter(filter models.Filter) bson.D {
	mongoFilter := bson.D{}

	if filter.Status != "" {
		mongoFilter = append(mongoFilter, bson.E{Key: "status", Value: filter.Status})
	}
	if filter.Sender != "" {
		mongoFilter = append(mongoFilter, bson.E{Key: "sender", Value: filter.Sender})
	}
	if filter.Recipient != "" {
		mongoFilter = append(mongoFilter, bson.E{Key: "recipient", Value: filter.Recipient})
	}
	if filter.TxHash != "" {
		mongoFilter = append(mongoFilter, bson.E{Key: "tx_hash", Value: filter.TxHash})
	}

	return mongoFilter
}

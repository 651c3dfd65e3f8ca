package database

import (
	"context"
	"fmt"

	"github.com/soficola/bridge-relay/database/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// UpdateLastScannedBlock upserts the last fully scanned block for a chain.
func (db *Database) UpdateLastScannedBlock(ctx context.Context, chain string, blockNumber uint64) error {
	collection := db.client.Database(db.databaseName).Collection("last_scanned_block")

	filter := bson.D{{Key: "chain", Value: chain}}
	update := bson.D{{
		Key: "$set",
		Value: bson.D{{
			Key: "block_number", Value: blockNumber,
		}},
	}}

	_, err := collection.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to update last scanned block: %w", err)
	}

	return nil
}

// GetLastScannedBlock returns the last fully scanned block for a chain, or 0
// if no progress has been saved.
func (db *Database) GetLastScannedBlock(ctx context.Context, chain string) (uint64, error) {
	collection := db.client.Database(db.databaseName).Collection("last_scanned_block")

	var result models.LastScannedBlock
	err := collection.FindOne(ctx, bson.D{{Key: "chain", Value: chain}}).Decode(&result)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get last scanned block: %w", err)
	}

	return result.BlockNumber, nil
}

// Cursor adapts the last_scanned_block collection to the relayer's cursor
// store interface, bound to a single chain key.
type Cursor struct {
	db    *Database
	chain string
}

func (db *Database) Cursor(chain string) *Cursor {
	return &Cursor{db: db, chain: chain}
}

func (c *Cursor) Load(ctx context.Context) (uint64, error) {
	return c.db.GetLastScannedBlock(ctx, c.chain)
}

func (c *Cursor) Save(ctx context.Context, block uint64) error {
	return c.db.UpdateLastScannedBlock(ctx, c.chain, block)
}

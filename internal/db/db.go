package db

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Collection names shared by the services.
const (
	Users      = "users"
	Properties = "properties"
	Tours      = "tours"
	Messages   = "messages"
	Reviews    = "reviews"
)

// Connect opens a MongoDB client and verifies it with a ping against the primary.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	// Ping to verify connection
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return client, nil
}

// EnsureIndexes creates the indexes every collection relies on. It is idempotent.
func EnsureIndexes(ctx context.Context, database *mongo.Database) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	indexes := map[string][]mongo.IndexModel{
		Users: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "role", Value: 1}, {Key: "isApproved", Value: 1}}},
			{Keys: bson.D{{Key: "stripeCustomerId", Value: 1}}, Options: options.Index().SetSparse(true)},
		},
		Properties: {
			{Keys: bson.D{{Key: "agent", Value: 1}, {Key: "status", Value: 1}}},
			{Keys: bson.D{{Key: "price", Value: 1}}},
			{Keys: bson.D{
				{Key: "isFeatured", Value: 1},
				{Key: "isActive", Value: 1},
				{Key: "status", Value: 1},
				{Key: "createdAt", Value: -1},
			}},
		},
		Tours: {
			{Keys: bson.D{{Key: "agent", Value: 1}, {Key: "createdAt", Value: -1}}},
			{Keys: bson.D{{Key: "email", Value: 1}, {Key: "name", Value: 1}}},
		},
		Messages: {
			{Keys: bson.D{{Key: "tour", Value: 1}, {Key: "createdAt", Value: 1}}},
		},
		Reviews: {
			{Keys: bson.D{{Key: "property", Value: 1}, {Key: "createdAt", Value: -1}}},
			{Keys: bson.D{{Key: "agent", Value: 1}}},
		},
	}

	for name, models := range indexes {
		if _, err := database.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("failed to create indexes on %s: %w", name, err)
		}
	}
	return nil
}

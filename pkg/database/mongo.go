package database

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// MongoDB connection wrapper
type MongoDB struct {
	Client   *mongo.Client
	Database *mongo.Database
}

// MongoConfig holds MongoDB connection configuration
type MongoConfig struct {
	URI         string
	Database    string
	MaxPoolSize uint64
	Timeout     time.Duration
}

// NewMongoDB connects to MongoDB and verifies the primary is reachable
func NewMongoDB(ctx context.Context, config *MongoConfig) (*MongoDB, error) {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	opts := options.Client().
		ApplyURI(config.URI).
		SetConnectTimeout(timeout).
		SetServerSelectionTimeout(timeout)
	if config.MaxPoolSize > 0 {
		opts.SetMaxPoolSize(config.MaxPoolSize)
	}

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return &MongoDB{
		Client:   client,
		Database: client.Database(config.Database),
	}, nil
}

// Close disconnects the client
func (db *MongoDB) Close(ctx context.Context) error {
	return db.Client.Disconnect(ctx)
}

// Ping tests the MongoDB connection
func (db *MongoDB) Ping(ctx context.Context) error {
	return db.Client.Ping(ctx, readpref.Primary())
}

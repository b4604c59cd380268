// Package database manages the MongoDB connection and startup
// initialization (indexes and the seed admin account).
package database

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/mathsia/mathsia/cmd/mathsia/internal/config"
	"github.com/mathsia/mathsia/cmd/mathsia/internal/constants"
	"github.com/mathsia/mathsia/cmd/mathsia/internal/logging"
)

// Mongo wraps the driver client and the application database handle.
type Mongo struct {
	client *mongo.Client
	db     *mongo.Database
}

// Connect establishes the MongoDB connection described by the settings
// and verifies it with a ping. Credentials are applied only when a
// username is configured, against the configured auth source.
func Connect(ctx context.Context, cfg *config.Settings) (*Mongo, error) {
	opts := options.Client().
		ApplyURI(cfg.MongoDBURL).
		SetConnectTimeout(constants.MongoConnectTimeout)

	if cfg.MongoDBUsername != "" {
		opts = opts.SetAuth(options.Credential{
			Username:   cfg.MongoDBUsername,
			Password:   cfg.MongoDBPassword,
			AuthSource: cfg.MongoDBAuthSource,
		})
	}

	logging.Infof("Connecting to MongoDB at %s", cfg.MongoDBURL)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, constants.HealthCheckTimeout)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	logging.Info("Connected to MongoDB")

	return &Mongo{client: client, db: client.Database(cfg.MongoDBDBName)}, nil
}

// Database returns the application database handle.
func (m *Mongo) Database() *mongo.Database {
	return m.db
}

// Ping verifies the connection is still alive.
func (m *Mongo) Ping(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, constants.HealthCheckTimeout)
	defer cancel()
	return m.client.Ping(pingCtx, readpref.Primary())
}

// Close disconnects from MongoDB.
func (m *Mongo) Close(ctx context.Context) error {
	logging.Info("Closing MongoDB connection")
	return m.client.Disconnect(ctx)
}

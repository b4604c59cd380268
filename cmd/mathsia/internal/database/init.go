package database

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mathsia/mathsia/cmd/mathsia/internal/auth"
	"github.com/mathsia/mathsia/cmd/mathsia/internal/constants"
	"github.com/mathsia/mathsia/cmd/mathsia/internal/logging"
	"github.com/mathsia/mathsia/cmd/mathsia/internal/models"
)

// Init creates the collection indexes and seeds a default admin
// account when no admin exists yet.
func (m *Mongo) Init(ctx context.Context) error {
	logging.Info("Creating collections and indexes")

	userIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "username", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}
	if _, err := m.db.Collection(constants.CollectionUsers).Indexes().CreateMany(ctx, userIndexes); err != nil {
		return fmt.Errorf("failed to create user indexes: %w", err)
	}

	memocardIndexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "title", Value: "text"}}},
		{Keys: bson.D{{Key: "level", Value: 1}}},
		{Keys: bson.D{{Key: "difficulty", Value: 1}}},
		{Keys: bson.D{{Key: "subject", Value: 1}}},
	}
	if _, err := m.db.Collection(constants.CollectionMemocards).Indexes().CreateMany(ctx, memocardIndexes); err != nil {
		return fmt.Errorf("failed to create memocard indexes: %w", err)
	}

	responseIndexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "student_id", Value: 1}}},
		{Keys: bson.D{{Key: "memocard_id", Value: 1}}},
		{Keys: bson.D{{Key: "created_at", Value: 1}}},
	}
	if _, err := m.db.Collection(constants.CollectionResponses).Indexes().CreateMany(ctx, responseIndexes); err != nil {
		return fmt.Errorf("failed to create response indexes: %w", err)
	}

	if err := m.seedAdmin(ctx); err != nil {
		return err
	}

	logging.Info("Database initialization completed")
	return nil
}

// seedAdmin inserts a default admin account if no user with the admin
// role exists. The default password must be changed in production.
func (m *Mongo) seedAdmin(ctx context.Context) error {
	users := m.db.Collection(constants.CollectionUsers)

	err := users.FindOne(ctx, bson.M{"role": models.RoleAdmin}).Err()
	if err == nil {
		return nil
	}
	if err != mongo.ErrNoDocuments {
		return fmt.Errorf("failed to look up admin user: %w", err)
	}

	logging.Info("Creating default admin user")

	hashed, err := auth.HashPassword("admin")
	if err != nil {
		return fmt.Errorf("failed to hash default admin password: %w", err)
	}

	now := time.Now().UTC()
	admin := models.User{
		Username:       "admin",
		Email:          "admin@mathsia.com",
		HashedPassword: hashed,
		FullName:       "Admin User",
		Role:           models.RoleAdmin,
		IsActive:       true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if _, err := users.InsertOne(ctx, admin); err != nil {
		return fmt.Errorf("failed to create default admin user: %w", err)
	}

	logging.GetLogger().WithField("username", admin.Username).Info("Default admin user created")
	return nil
}

// Package repository provides the MongoDB persistence layer for users,
// memocards and responses.
package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mathsia/mathsia/cmd/mathsia/internal/constants"
	"github.com/mathsia/mathsia/cmd/mathsia/internal/models"
)

// UserRepository stores and retrieves user documents.
type UserRepository struct {
	c *mongo.Collection
}

// NewUserRepository creates a UserRepository backed by the users collection.
func NewUserRepository(db *mongo.Database) *UserRepository {
	return &UserRepository{c: db.Collection(constants.CollectionUsers)}
}

// GetByID loads a user by ObjectID. Returns mongo.ErrNoDocuments if not found.
func (r *UserRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	var u models.User
	if err := r.c.FindOne(ctx, bson.M{"_id": id}).Decode(&u); err != nil {
		return nil, err
	}
	return &u, nil
}

// GetByUsername looks up a user by username.
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	var u models.User
	if err := r.c.FindOne(ctx, bson.M{"username": username}).Decode(&u); err != nil {
		return nil, err
	}
	return &u, nil
}

// GetByEmail looks up a user by email.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	if err := r.c.FindOne(ctx, bson.M{"email": email}).Decode(&u); err != nil {
		return nil, err
	}
	return &u, nil
}

// Create inserts a new user with fresh timestamps and returns it with
// its assigned ID. The caller is responsible for hashing the password.
func (r *UserRepository) Create(ctx context.Context, u models.User) (models.User, error) {
	u.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now

	if _, err := r.c.InsertOne(ctx, u); err != nil {
		return models.User{}, err
	}
	return u, nil
}

// Update applies the given field set to a user and bumps updated_at.
func (r *UserRepository) Update(ctx context.Context, id primitive.ObjectID, set bson.M) (*models.User, error) {
	set["updated_at"] = time.Now().UTC()

	var u models.User
	err := r.c.FindOneAndUpdate(
		ctx,
		bson.M{"_id": id},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&u)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// UpdatePassword replaces a user's password hash.
func (r *UserRepository) UpdatePassword(ctx context.Context, id primitive.ObjectID, hashedPassword string) error {
	_, err := r.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"hashed_password": hashedPassword,
		"updated_at":      time.Now().UTC(),
	}})
	return err
}

// UpdateLastLogin records the time of a successful login.
func (r *UserRepository) UpdateLastLogin(ctx context.Context, id primitive.ObjectID) error {
	_, err := r.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"last_login": time.Now().UTC(),
	}})
	return err
}

// Delete removes a user by ID. Returns the number of documents deleted.
func (r *UserRepository) Delete(ctx context.Context, id primitive.ObjectID) (int64, error) {
	res, err := r.c.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// ListStudents returns students sorted by creation time, newest first.
// A non-empty level narrows the result to students at that school level.
func (r *UserRepository) ListStudents(ctx context.Context, level string, skip, limit int64) ([]models.User, error) {
	filter := bson.M{"role": models.RoleStudent}
	if level != "" {
		filter["student_profile.level"] = level
	}

	opts := options.Find().
		SetSkip(skip).
		SetLimit(limit).
		SetSort(bson.D{{Key: "created_at", Value: -1}})

	cur, err := r.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var students []models.User
	if err := cur.All(ctx, &students); err != nil {
		return nil, err
	}
	return students, nil
}

// CountStudents counts users with the student role, optionally at a
// school level.
func (r *UserRepository) CountStudents(ctx context.Context, level string) (int64, error) {
	filter := bson.M{"role": models.RoleStudent}
	if level != "" {
		filter["student_profile.level"] = level
	}
	return r.c.CountDocuments(ctx, filter)
}

// UsernameExists reports whether a username is already taken by a user
// other than excludeID. Pass primitive.NilObjectID to check all users.
func (r *UserRepository) UsernameExists(ctx context.Context, username string, excludeID primitive.ObjectID) (bool, error) {
	filter := bson.M{"username": username}
	if !excludeID.IsZero() {
		filter["_id"] = bson.M{"$ne": excludeID}
	}
	return r.exists(ctx, filter)
}

// EmailExists reports whether an email is already taken by a user other
// than excludeID. Pass primitive.NilObjectID to check all users.
func (r *UserRepository) EmailExists(ctx context.Context, email string, excludeID primitive.ObjectID) (bool, error) {
	filter := bson.M{"email": email}
	if !excludeID.IsZero() {
		filter["_id"] = bson.M{"$ne": excludeID}
	}
	return r.exists(ctx, filter)
}

func (r *UserRepository) exists(ctx context.Context, filter bson.M) (bool, error) {
	err := r.c.FindOne(ctx, filter).Err()
	if err == nil {
		return true, nil
	}
	if err == mongo.ErrNoDocuments {
		return false, nil
	}
	return false, err
}

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

// MemocardRepository stores and retrieves memocard documents.
type MemocardRepository struct {
	c *mongo.Collection
}

// NewMemocardRepository creates a MemocardRepository backed by the
// memocards collection.
func NewMemocardRepository(db *mongo.Database) *MemocardRepository {
	return &MemocardRepository{c: db.Collection(constants.CollectionMemocards)}
}

// MemocardFilter narrows memocard listings. Empty fields are ignored.
type MemocardFilter struct {
	Level      string
	Difficulty string
	Subject    string
	Chapter    string
	ActiveOnly bool
}

func (f MemocardFilter) query() bson.M {
	q := bson.M{}
	if f.Level != "" {
		q["level"] = f.Level
	}
	if f.Difficulty != "" {
		q["difficulty"] = f.Difficulty
	}
	if f.Subject != "" {
		q["subject"] = f.Subject
	}
	if f.Chapter != "" {
		q["chapter"] = f.Chapter
	}
	if f.ActiveOnly {
		q["is_active"] = true
	}
	return q
}

// GetByID loads a memocard by ObjectID. Returns mongo.ErrNoDocuments
// if not found.
func (r *MemocardRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Memocard, error) {
	var m models.Memocard
	if err := r.c.FindOne(ctx, bson.M{"_id": id}).Decode(&m); err != nil {
		return nil, err
	}
	return &m, nil
}

// Create inserts a new memocard with fresh timestamps and returns it
// with its assigned ID.
func (r *MemocardRepository) Create(ctx context.Context, m models.Memocard) (models.Memocard, error) {
	m.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	m.CreatedAt = now
	m.UpdatedAt = now

	if _, err := r.c.InsertOne(ctx, m); err != nil {
		return models.Memocard{}, err
	}
	return m, nil
}

// Update applies the given field set to a memocard and bumps updated_at.
func (r *MemocardRepository) Update(ctx context.Context, id primitive.ObjectID, set bson.M) (*models.Memocard, error) {
	set["updated_at"] = time.Now().UTC()

	var m models.Memocard
	err := r.c.FindOneAndUpdate(
		ctx,
		bson.M{"_id": id},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&m)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// Delete removes a memocard by ID. Returns the number of documents deleted.
func (r *MemocardRepository) Delete(ctx context.Context, id primitive.ObjectID) (int64, error) {
	res, err := r.c.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// List returns memocards matching the filter, newest first.
func (r *MemocardRepository) List(ctx context.Context, filter MemocardFilter, skip, limit int64) ([]models.Memocard, error) {
	opts := options.Find().
		SetSkip(skip).
		SetLimit(limit).
		SetSort(bson.D{{Key: "created_at", Value: -1}})

	cur, err := r.c.Find(ctx, filter.query(), opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var cards []models.Memocard
	if err := cur.All(ctx, &cards); err != nil {
		return nil, err
	}
	return cards, nil
}

// Count counts memocards matching the filter.
func (r *MemocardRepository) Count(ctx context.Context, filter MemocardFilter) (int64, error) {
	return r.c.CountDocuments(ctx, filter.query())
}

// ListForStudent returns active memocards at the student's level,
// excluding the ones already answered, easiest first.
func (r *MemocardRepository) ListForStudent(ctx context.Context, level string, answeredIDs []primitive.ObjectID, skip, limit int64) ([]models.Memocard, error) {
	query := bson.M{"level": level, "is_active": true}
	if len(answeredIDs) > 0 {
		query["_id"] = bson.M{"$nin": answeredIDs}
	}

	opts := options.Find().
		SetSkip(skip).
		SetLimit(limit).
		SetSort(bson.D{{Key: "difficulty", Value: 1}})

	cur, err := r.c.Find(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var cards []models.Memocard
	if err := cur.All(ctx, &cards); err != nil {
		return nil, err
	}
	return cards, nil
}

// Subjects returns the distinct subjects of active memocards at a level,
// sorted alphabetically.
func (r *MemocardRepository) Subjects(ctx context.Context, level string) ([]string, error) {
	return r.distinctStrings(ctx, "subject", bson.M{"level": level, "is_active": true})
}

// Chapters returns the distinct chapters of active memocards at a level
// and subject, sorted alphabetically.
func (r *MemocardRepository) Chapters(ctx context.Context, level, subject string) ([]string, error) {
	return r.distinctStrings(ctx, "chapter", bson.M{"level": level, "subject": subject, "is_active": true})
}

func (r *MemocardRepository) distinctStrings(ctx context.Context, field string, match bson.M) ([]string, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$group", Value: bson.M{"_id": "$" + field}}},
		{{Key: "$sort", Value: bson.M{"_id": 1}}},
	}

	cur, err := r.c.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var rows []struct {
		Value string `bson:"_id"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, err
	}

	values := make([]string, 0, len(rows))
	for _, row := range rows {
		values = append(values, row.Value)
	}
	return values, nil
}

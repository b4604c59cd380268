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

// ResponseRepository stores graded answers and computes progress
// statistics over them.
type ResponseRepository struct {
	c *mongo.Collection
}

// NewResponseRepository creates a ResponseRepository backed by the
// responses collection.
func NewResponseRepository(db *mongo.Database) *ResponseRepository {
	return &ResponseRepository{c: db.Collection(constants.CollectionResponses)}
}

// Create inserts a graded response and returns it with its assigned ID.
func (r *ResponseRepository) Create(ctx context.Context, resp models.Response) (models.Response, error) {
	resp.ID = primitive.NewObjectID()
	resp.CreatedAt = time.Now().UTC()

	if _, err := r.c.InsertOne(ctx, resp); err != nil {
		return models.Response{}, err
	}
	return resp, nil
}

// ListByStudent returns a student's responses, newest first.
func (r *ResponseRepository) ListByStudent(ctx context.Context, studentID primitive.ObjectID, skip, limit int64) ([]models.Response, error) {
	opts := options.Find().
		SetSkip(skip).
		SetLimit(limit).
		SetSort(bson.D{{Key: "created_at", Value: -1}})

	cur, err := r.c.Find(ctx, bson.M{"student_id": studentID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var responses []models.Response
	if err := cur.All(ctx, &responses); err != nil {
		return nil, err
	}
	return responses, nil
}

// CountAttempts counts how many times a student has answered a memocard.
func (r *ResponseRepository) CountAttempts(ctx context.Context, studentID, memocardID primitive.ObjectID) (int64, error) {
	return r.c.CountDocuments(ctx, bson.M{
		"student_id":  studentID,
		"memocard_id": memocardID,
	})
}

// AnsweredMemocardIDs returns the distinct memocard IDs a student has
// answered at least once.
func (r *ResponseRepository) AnsweredMemocardIDs(ctx context.Context, studentID primitive.ObjectID) ([]primitive.ObjectID, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"student_id": studentID}}},
		{{Key: "$group", Value: bson.M{"_id": "$memocard_id"}}},
	}

	cur, err := r.c.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var rows []struct {
		ID primitive.ObjectID `bson:"_id"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, err
	}

	ids := make([]primitive.ObjectID, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	return ids, nil
}

// CalculateProgress computes a student's progress statistics.
// totalMemocards is the number of active memocards at the student's
// level and sizes the overall progress denominator.
func (r *ResponseRepository) CalculateProgress(ctx context.Context, studentID primitive.ObjectID, totalMemocards int64) (*models.StudentProgress, error) {
	progress := &models.StudentProgress{
		TotalMemocards: int(totalMemocards),
		ByDifficulty:   map[string]models.ProgressBucket{},
		BySubject:      map[string]models.ProgressBucket{},
	}

	totalResponses, err := r.c.CountDocuments(ctx, bson.M{"student_id": studentID})
	if err != nil {
		return nil, err
	}
	if totalResponses == 0 {
		return progress, nil
	}

	answered, err := r.AnsweredMemocardIDs(ctx, studentID)
	if err != nil {
		return nil, err
	}
	progress.AnsweredMemocards = len(answered)

	correct, err := r.c.CountDocuments(ctx, bson.M{"student_id": studentID, "is_correct": true})
	if err != nil {
		return nil, err
	}
	progress.CorrectAnswers = int(correct)
	progress.AccuracyRate = float64(correct) / float64(totalResponses) * 100

	avg, err := r.averageTimeSeconds(ctx, studentID)
	if err != nil {
		return nil, err
	}
	progress.AverageTimeSeconds = avg

	progress.ByDifficulty, err = r.bucketsByCardField(ctx, studentID, "difficulty")
	if err != nil {
		return nil, err
	}
	progress.BySubject, err = r.bucketsByCardField(ctx, studentID, "subject")
	if err != nil {
		return nil, err
	}

	return progress, nil
}

func (r *ResponseRepository) averageTimeSeconds(ctx context.Context, studentID primitive.ObjectID) (float64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{
			"student_id":         studentID,
			"time_spent_seconds": bson.M{"$exists": true, "$ne": nil},
		}}},
		{{Key: "$group", Value: bson.M{
			"_id":      nil,
			"avg_time": bson.M{"$avg": "$time_spent_seconds"},
		}}},
	}

	cur, err := r.c.Aggregate(ctx, pipeline)
	if err != nil {
		return 0, err
	}
	defer cur.Close(ctx)

	var rows []struct {
		AvgTime float64 `bson:"avg_time"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return rows[0].AvgTime, nil
}

// bucketsByCardField groups a student's responses by a field of the
// answered memocard (difficulty or subject) via a $lookup join.
func (r *ResponseRepository) bucketsByCardField(ctx context.Context, studentID primitive.ObjectID, field string) (map[string]models.ProgressBucket, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"student_id": studentID}}},
		{{Key: "$lookup", Value: bson.M{
			"from":         constants.CollectionMemocards,
			"localField":   "memocard_id",
			"foreignField": "_id",
			"as":           "memocard",
		}}},
		{{Key: "$unwind", Value: "$memocard"}},
		{{Key: "$group", Value: bson.M{
			"_id":      "$memocard." + field,
			"answered": bson.M{"$sum": 1},
			"correct": bson.M{"$sum": bson.M{
				"$cond": bson.A{bson.M{"$eq": bson.A{"$is_correct", true}}, 1, 0},
			}},
		}}},
	}

	cur, err := r.c.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var rows []struct {
		Key      string `bson:"_id"`
		Answered int    `bson:"answered"`
		Correct  int    `bson:"correct"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, err
	}

	buckets := make(map[string]models.ProgressBucket, len(rows))
	for _, row := range rows {
		bucket := models.ProgressBucket{
			Answered: row.Answered,
			Correct:  row.Correct,
		}
		if row.Answered > 0 {
			bucket.Accuracy = float64(row.Correct) / float64(row.Answered) * 100
		}
		buckets[row.Key] = bucket
	}
	return buckets, nil
}

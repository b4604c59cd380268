package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Response represents a graded student answer as stored in the responses
// collection. Answer keeps the raw value the student submitted, whose type
// depends on the memocard type.
type Response struct {
	ID               primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	StudentID        primitive.ObjectID `bson:"student_id" json:"student_id"`
	MemocardID       primitive.ObjectID `bson:"memocard_id" json:"memocard_id"`
	Answer           any                `bson:"answer" json:"answer"`
	IsCorrect        bool               `bson:"is_correct" json:"is_correct"`
	Feedback         string             `bson:"feedback,omitempty" json:"feedback,omitempty"`
	TimeSpentSeconds *int               `bson:"time_spent_seconds,omitempty" json:"time_spent_seconds,omitempty"`
	Attempts         int                `bson:"attempts" json:"attempts"`
	CreatedAt        time.Time          `bson:"created_at" json:"created_at"`
}

// ProgressBucket aggregates response counts for one difficulty or subject.
type ProgressBucket struct {
	Total    int     `json:"total,omitempty"`
	Answered int     `json:"answered"`
	Correct  int     `json:"correct"`
	Accuracy float64 `json:"accuracy"`
}

// StudentProgress holds the progress statistics of a single student.
type StudentProgress struct {
	TotalMemocards     int                       `json:"total_memocards"`
	AnsweredMemocards  int                       `json:"answered_memocards"`
	CorrectAnswers     int                       `json:"correct_answers"`
	AccuracyRate       float64                   `json:"accuracy_rate"`
	AverageTimeSeconds float64                   `json:"average_time_seconds"`
	ByDifficulty       map[string]ProgressBucket `json:"by_difficulty"`
	BySubject          map[string]ProgressBucket `json:"by_subject"`
}

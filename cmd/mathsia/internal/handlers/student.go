package handlers

import (
	"context"
	"fmt"
	"net/http"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/mathsia/mathsia/cmd/mathsia/internal/apperrors"
	"github.com/mathsia/mathsia/cmd/mathsia/internal/auth"
	"github.com/mathsia/mathsia/cmd/mathsia/internal/middleware"
	"github.com/mathsia/mathsia/cmd/mathsia/internal/models"
	"github.com/mathsia/mathsia/cmd/mathsia/internal/repository"
)

// StudentMemocardStore is the memocard persistence surface used by the
// student endpoints.
type StudentMemocardStore interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.Memocard, error)
	Count(ctx context.Context, filter repository.MemocardFilter) (int64, error)
	ListForStudent(ctx context.Context, level string, answeredIDs []primitive.ObjectID, skip, limit int64) ([]models.Memocard, error)
	Subjects(ctx context.Context, level string) ([]string, error)
	Chapters(ctx context.Context, level, subject string) ([]string, error)
}

// ResponseStore is the response persistence surface used by the
// student endpoints.
type ResponseStore interface {
	Create(ctx context.Context, resp models.Response) (models.Response, error)
	ListByStudent(ctx context.Context, studentID primitive.ObjectID, skip, limit int64) ([]models.Response, error)
	CountAttempts(ctx context.Context, studentID, memocardID primitive.ObjectID) (int64, error)
	AnsweredMemocardIDs(ctx context.Context, studentID primitive.ObjectID) ([]primitive.ObjectID, error)
	CalculateProgress(ctx context.Context, studentID primitive.ObjectID, totalMemocards int64) (*models.StudentProgress, error)
}

// StudentHandler handles the student-facing endpoints.
type StudentHandler struct {
	users     StudentUserStore
	memocards StudentMemocardStore
	responses ResponseStore
}

// NewStudentHandler creates a new student handler.
func NewStudentHandler(users StudentUserStore, memocards StudentMemocardStore, responses ResponseStore) *StudentHandler {
	return &StudentHandler{users: users, memocards: memocards, responses: responses}
}

// RespondRequest represents an answer submission. MemocardID must
// match the {id} path segment.
type RespondRequest struct {
	MemocardID       string `json:"memocard_id"`
	Answer           any    `json:"answer"`
	TimeSpentSeconds *int   `json:"time_spent_seconds,omitempty"`
}

// Profile handles GET /student/profile.
func (h *StudentHandler) Profile(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		apperrors.WriteError(w, r, apperrors.NewUnauthorized(
			apperrors.CodeNotAuthenticated, "not authenticated"))
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// UpdateProfile handles PUT /student/profile.
func (h *StudentHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		apperrors.WriteError(w, r, apperrors.NewUnauthorized(
			apperrors.CodeNotAuthenticated, "not authenticated"))
		return
	}

	var req UpdateStudentRequest
	if apiErr := decodeJSON(r, &req); apiErr != nil {
		apperrors.WriteError(w, r, apiErr)
		return
	}

	set := bson.M{}

	if req.Username != nil && *req.Username != user.Username {
		taken, err := h.users.UsernameExists(r.Context(), *req.Username, user.ID)
		if err != nil {
			apperrors.WriteError(w, r, apperrors.NewDatabase(err))
			return
		}
		if taken {
			apperrors.WriteError(w, r, apperrors.NewConflict(
				apperrors.CodeUsernameExists, "username already exists"))
			return
		}
		set["username"] = *req.Username
	}

	if req.Email != nil && *req.Email != user.Email {
		taken, err := h.users.EmailExists(r.Context(), *req.Email, user.ID)
		if err != nil {
			apperrors.WriteError(w, r, apperrors.NewDatabase(err))
			return
		}
		if taken {
			apperrors.WriteError(w, r, apperrors.NewConflict(
				apperrors.CodeEmailExists, "email already exists"))
			return
		}
		set["email"] = *req.Email
	}

	if req.Password != nil {
		hashed, err := auth.HashPassword(*req.Password)
		if err != nil {
			apperrors.WriteError(w, r, apperrors.NewInternal("failed to hash password").Wrap(err))
			return
		}
		set["hashed_password"] = hashed
	}

	if req.FullName != nil {
		set["full_name"] = *req.FullName
	}

	if req.StudentProfile != nil {
		if !models.IsValidSchoolLevel(req.StudentProfile.Level) {
			apperrors.WriteError(w, r, apperrors.NewBadRequest(apperrors.CodeInvalidLevel,
				fmt.Sprintf("student profile must have a valid level: %v", models.SchoolLevels)))
			return
		}
		set["student_profile"] = models.StudentProfile{
			Level:     req.StudentProfile.Level,
			ClassName: req.StudentProfile.ClassName,
			BirthDate: req.StudentProfile.BirthDate,
		}
	}

	updated, err := h.users.Update(r.Context(), user.ID, set)
	if err != nil {
		apperrors.WriteError(w, r, apperrors.MapMongoError(err,
			apperrors.NewNotFound(apperrors.CodeUserNotFound, "user not found")))
		return
	}

	writeJSON(w, http.StatusOK, updated)
}

// Memocards handles GET /student/memocards. It lists active memocards
// at the student's level that the student has not answered yet,
// easiest first.
func (h *StudentHandler) Memocards(w http.ResponseWriter, r *http.Request) {
	user, level, apiErr := currentStudentLevel(r)
	if apiErr != nil {
		apperrors.WriteError(w, r, apiErr)
		return
	}

	skip, limit := pagination(r)

	answered, err := h.responses.AnsweredMemocardIDs(r.Context(), user.ID)
	if err != nil {
		apperrors.WriteError(w, r, apperrors.NewDatabase(err))
		return
	}

	cards, err := h.memocards.ListForStudent(r.Context(), level, answered, skip, limit)
	if err != nil {
		apperrors.WriteError(w, r, apperrors.NewDatabase(err))
		return
	}
	if cards == nil {
		cards = []models.Memocard{}
	}

	writeJSON(w, http.StatusOK, cards)
}

// Subjects handles GET /student/subjects. It lists the distinct
// subjects of active memocards at the student's level.
func (h *StudentHandler) Subjects(w http.ResponseWriter, r *http.Request) {
	_, level, apiErr := currentStudentLevel(r)
	if apiErr != nil {
		apperrors.WriteError(w, r, apiErr)
		return
	}

	subjects, err := h.memocards.Subjects(r.Context(), level)
	if err != nil {
		apperrors.WriteError(w, r, apperrors.NewDatabase(err))
		return
	}
	if subjects == nil {
		subjects = []string{}
	}

	writeJSON(w, http.StatusOK, subjects)
}

// Chapters handles GET /student/chapters. The subject query parameter
// is required.
func (h *StudentHandler) Chapters(w http.ResponseWriter, r *http.Request) {
	_, level, apiErr := currentStudentLevel(r)
	if apiErr != nil {
		apperrors.WriteError(w, r, apiErr)
		return
	}

	subject := r.URL.Query().Get("subject")
	if subject == "" {
		apperrors.WriteError(w, r, apperrors.NewBadRequest(
			apperrors.CodeValidationError, "subject query parameter is required"))
		return
	}

	chapters, err := h.memocards.Chapters(r.Context(), level, subject)
	if err != nil {
		apperrors.WriteError(w, r, apperrors.NewDatabase(err))
		return
	}
	if chapters == nil {
		chapters = []string{}
	}

	writeJSON(w, http.StatusOK, chapters)
}

// Responses handles GET /student/responses. It returns the student's
// answer history, newest first.
func (h *StudentHandler) Responses(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		apperrors.WriteError(w, r, apperrors.NewUnauthorized(
			apperrors.CodeNotAuthenticated, "not authenticated"))
		return
	}

	skip, limit := pagination(r)

	responses, err := h.responses.ListByStudent(r.Context(), user.ID, skip, limit)
	if err != nil {
		apperrors.WriteError(w, r, apperrors.NewDatabase(err))
		return
	}
	if responses == nil {
		responses = []models.Response{}
	}

	writeJSON(w, http.StatusOK, responses)
}

// Memocard handles GET /student/memocards/{id}.
func (h *StudentHandler) Memocard(w http.ResponseWriter, r *http.Request) {
	id, apiErr := pathObjectID(r)
	if apiErr != nil {
		apperrors.WriteError(w, r, apiErr)
		return
	}

	card, err := h.memocards.GetByID(r.Context(), id)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			apperrors.WriteError(w, r, apperrors.NewNotFound(
				apperrors.CodeMemocardNotFound, "memocard not found"))
			return
		}
		apperrors.WriteError(w, r, apperrors.NewDatabase(err))
		return
	}

	writeJSON(w, http.StatusOK, card)
}

// Respond handles POST /student/memocards/{id}/respond. It grades the
// answer, records the graded response and returns it with feedback.
func (h *StudentHandler) Respond(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		apperrors.WriteError(w, r, apperrors.NewUnauthorized(
			apperrors.CodeNotAuthenticated, "not authenticated"))
		return
	}

	id, apiErr := pathObjectID(r)
	if apiErr != nil {
		apperrors.WriteError(w, r, apiErr)
		return
	}

	var req RespondRequest
	if apiErr := decodeJSON(r, &req); apiErr != nil {
		apperrors.WriteError(w, r, apiErr)
		return
	}
	if req.MemocardID != "" && req.MemocardID != id.Hex() {
		apperrors.WriteError(w, r, apperrors.NewBadRequest(apperrors.CodeValidationError,
			"memocard id in path does not match the one in request body"))
		return
	}

	card, err := h.memocards.GetByID(r.Context(), id)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			apperrors.WriteError(w, r, apperrors.NewNotFound(
				apperrors.CodeMemocardNotFound, "memocard not found"))
			return
		}
		apperrors.WriteError(w, r, apperrors.NewDatabase(err))
		return
	}

	if !card.IsActive {
		apperrors.WriteError(w, r, apperrors.NewBadRequest(
			apperrors.CodeInactiveMemocard, "memocard is inactive"))
		return
	}

	previous, err := h.responses.CountAttempts(r.Context(), user.ID, card.ID)
	if err != nil {
		apperrors.WriteError(w, r, apperrors.NewDatabase(err))
		return
	}

	isCorrect, feedback, err := card.Evaluate(req.Answer)
	if err != nil {
		apperrors.WriteError(w, r, apperrors.NewBadRequest(
			apperrors.CodeUnknownMemocardType, "unknown memocard type").Wrap(err))
		return
	}

	resp, err := h.responses.Create(r.Context(), models.Response{
		StudentID:        user.ID,
		MemocardID:       card.ID,
		Answer:           req.Answer,
		IsCorrect:        isCorrect,
		Feedback:         feedback,
		TimeSpentSeconds: req.TimeSpentSeconds,
		Attempts:         int(previous) + 1,
	})
	if err != nil {
		apperrors.WriteError(w, r, apperrors.NewDatabase(err))
		return
	}

	writeJSON(w, http.StatusCreated, resp)
}

// Progress handles GET /student/progress.
func (h *StudentHandler) Progress(w http.ResponseWriter, r *http.Request) {
	user, level, apiErr := currentStudentLevel(r)
	if apiErr != nil {
		apperrors.WriteError(w, r, apiErr)
		return
	}

	total, err := h.memocards.Count(r.Context(), repository.MemocardFilter{
		Level:      level,
		ActiveOnly: true,
	})
	if err != nil {
		apperrors.WriteError(w, r, apperrors.NewDatabase(err))
		return
	}

	progress, err := h.responses.CalculateProgress(r.Context(), user.ID, total)
	if err != nil {
		apperrors.WriteError(w, r, apperrors.NewDatabase(err))
		return
	}

	writeJSON(w, http.StatusOK, StudentProgressResponse{
		StudentID: user.ID.Hex(),
		Progress:  progress,
	})
}

// currentStudentLevel returns the authenticated user and their school
// level, failing when no level is set.
func currentStudentLevel(r *http.Request) (*models.User, string, *apperrors.APIError) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		return nil, "", apperrors.NewUnauthorized(apperrors.CodeNotAuthenticated, "not authenticated")
	}
	if user.StudentProfile == nil || user.StudentProfile.Level == "" {
		return nil, "", apperrors.NewBadRequest(apperrors.CodeInvalidLevel, "student has no level")
	}
	return user, user.StudentProfile.Level, nil
}

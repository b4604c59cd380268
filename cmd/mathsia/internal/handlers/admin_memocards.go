package handlers

import (
	"context"
	"fmt"
	"net/http"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/mathsia/mathsia/cmd/mathsia/internal/apperrors"
	"github.com/mathsia/mathsia/cmd/mathsia/internal/middleware"
	"github.com/mathsia/mathsia/cmd/mathsia/internal/models"
	"github.com/mathsia/mathsia/cmd/mathsia/internal/repository"
)

// MemocardStore is the memocard persistence surface used by the admin
// memocard endpoints.
type MemocardStore interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.Memocard, error)
	Create(ctx context.Context, m models.Memocard) (models.Memocard, error)
	Update(ctx context.Context, id primitive.ObjectID, set bson.M) (*models.Memocard, error)
	Delete(ctx context.Context, id primitive.ObjectID) (int64, error)
	List(ctx context.Context, filter repository.MemocardFilter, skip, limit int64) ([]models.Memocard, error)
}

// AdminMemocardHandler handles the admin memocard management endpoints.
type AdminMemocardHandler struct {
	memocards MemocardStore
}

// NewAdminMemocardHandler creates a new admin memocard handler.
func NewAdminMemocardHandler(memocards MemocardStore) *AdminMemocardHandler {
	return &AdminMemocardHandler{memocards: memocards}
}

// CreateMemocardRequest represents a memocard creation request.
type CreateMemocardRequest struct {
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Level       string         `json:"level"`
	Difficulty  string         `json:"difficulty"`
	Subject     string         `json:"subject"`
	Chapter     string         `json:"chapter"`
	Type        string         `json:"type"`
	IsActive    *bool          `json:"is_active,omitempty"`
	Tags        []string       `json:"tags,omitempty"`
	Content     models.Content `json:"content"`
}

// UpdateMemocardRequest represents a partial memocard update. Nil
// fields are left unchanged.
type UpdateMemocardRequest struct {
	Title       *string         `json:"title,omitempty"`
	Description *string         `json:"description,omitempty"`
	Level       *string         `json:"level,omitempty"`
	Difficulty  *string         `json:"difficulty,omitempty"`
	Subject     *string         `json:"subject,omitempty"`
	Chapter     *string         `json:"chapter,omitempty"`
	IsActive    *bool           `json:"is_active,omitempty"`
	Tags        []string        `json:"tags,omitempty"`
	Content     *models.Content `json:"content,omitempty"`
}

// Create handles POST /admin/memocards.
func (h *AdminMemocardHandler) Create(w http.ResponseWriter, r *http.Request) {
	admin, ok := middleware.UserFromContext(r.Context())
	if !ok {
		apperrors.WriteError(w, r, apperrors.NewUnauthorized(
			apperrors.CodeNotAuthenticated, "not authenticated"))
		return
	}

	var req CreateMemocardRequest
	if apiErr := decodeJSON(r, &req); apiErr != nil {
		apperrors.WriteError(w, r, apiErr)
		return
	}

	if req.Title == "" {
		apperrors.WriteError(w, r, apperrors.NewBadRequest(
			apperrors.CodeValidationError, "title is required"))
		return
	}
	if !models.IsValidSchoolLevel(req.Level) {
		apperrors.WriteError(w, r, apperrors.NewBadRequest(apperrors.CodeInvalidLevel,
			fmt.Sprintf("invalid level, must be one of %v", models.SchoolLevels)))
		return
	}
	if !models.IsValidDifficulty(req.Difficulty) {
		apperrors.WriteError(w, r, apperrors.NewBadRequest(apperrors.CodeInvalidDifficulty,
			fmt.Sprintf("invalid difficulty, must be one of %v", models.DifficultyLevels)))
		return
	}
	if !models.IsValidMemocardType(req.Type) {
		apperrors.WriteError(w, r, apperrors.NewBadRequest(apperrors.CodeInvalidType,
			fmt.Sprintf("invalid type, must be one of %v", models.MemocardTypes)))
		return
	}

	isActive := true
	if req.IsActive != nil {
		isActive = *req.IsActive
	}

	card, err := h.memocards.Create(r.Context(), models.Memocard{
		Title:       req.Title,
		Description: req.Description,
		Level:       req.Level,
		Difficulty:  req.Difficulty,
		Subject:     req.Subject,
		Chapter:     req.Chapter,
		Type:        req.Type,
		IsActive:    isActive,
		Tags:        req.Tags,
		Content:     req.Content,
		CreatedBy:   admin.ID,
	})
	if err != nil {
		apperrors.WriteError(w, r, apperrors.MapMongoError(err,
			apperrors.NewNotFound(apperrors.CodeMemocardNotFound, "memocard not found")))
		return
	}

	writeJSON(w, http.StatusCreated, card)
}

// List handles GET /admin/memocards.
func (h *AdminMemocardHandler) List(w http.ResponseWriter, r *http.Request) {
	skip, limit := pagination(r)
	q := r.URL.Query()

	filter := repository.MemocardFilter{
		Level:      q.Get("level"),
		Difficulty: q.Get("difficulty"),
		Subject:    q.Get("subject"),
		Chapter:    q.Get("chapter"),
	}

	if filter.Level != "" && !models.IsValidSchoolLevel(filter.Level) {
		apperrors.WriteError(w, r, apperrors.NewBadRequest(apperrors.CodeInvalidLevel,
			fmt.Sprintf("invalid level, must be one of %v", models.SchoolLevels)))
		return
	}
	if filter.Difficulty != "" && !models.IsValidDifficulty(filter.Difficulty) {
		apperrors.WriteError(w, r, apperrors.NewBadRequest(apperrors.CodeInvalidDifficulty,
			fmt.Sprintf("invalid difficulty, must be one of %v", models.DifficultyLevels)))
		return
	}

	cards, err := h.memocards.List(r.Context(), filter, skip, limit)
	if err != nil {
		apperrors.WriteError(w, r, apperrors.NewDatabase(err))
		return
	}
	if cards == nil {
		cards = []models.Memocard{}
	}

	writeJSON(w, http.StatusOK, cards)
}

// Get handles GET /admin/memocards/{id}.
func (h *AdminMemocardHandler) Get(w http.ResponseWriter, r *http.Request) {
	card, apiErr := h.loadMemocard(r)
	if apiErr != nil {
		apperrors.WriteError(w, r, apiErr)
		return
	}
	writeJSON(w, http.StatusOK, card)
}

// Update handles PUT /admin/memocards/{id}.
func (h *AdminMemocardHandler) Update(w http.ResponseWriter, r *http.Request) {
	card, apiErr := h.loadMemocard(r)
	if apiErr != nil {
		apperrors.WriteError(w, r, apiErr)
		return
	}

	var req UpdateMemocardRequest
	if apiErr := decodeJSON(r, &req); apiErr != nil {
		apperrors.WriteError(w, r, apiErr)
		return
	}

	set := bson.M{}

	if req.Level != nil {
		if !models.IsValidSchoolLevel(*req.Level) {
			apperrors.WriteError(w, r, apperrors.NewBadRequest(apperrors.CodeInvalidLevel,
				fmt.Sprintf("invalid level, must be one of %v", models.SchoolLevels)))
			return
		}
		set["level"] = *req.Level
	}
	if req.Difficulty != nil {
		if !models.IsValidDifficulty(*req.Difficulty) {
			apperrors.WriteError(w, r, apperrors.NewBadRequest(apperrors.CodeInvalidDifficulty,
				fmt.Sprintf("invalid difficulty, must be one of %v", models.DifficultyLevels)))
			return
		}
		set["difficulty"] = *req.Difficulty
	}
	if req.Title != nil {
		set["title"] = *req.Title
	}
	if req.Description != nil {
		set["description"] = *req.Description
	}
	if req.Subject != nil {
		set["subject"] = *req.Subject
	}
	if req.Chapter != nil {
		set["chapter"] = *req.Chapter
	}
	if req.IsActive != nil {
		set["is_active"] = *req.IsActive
	}
	if req.Tags != nil {
		set["tags"] = req.Tags
	}
	if req.Content != nil {
		set["content"] = *req.Content
	}

	updated, err := h.memocards.Update(r.Context(), card.ID, set)
	if err != nil {
		apperrors.WriteError(w, r, apperrors.MapMongoError(err,
			apperrors.NewNotFound(apperrors.CodeMemocardNotFound, "memocard not found")))
		return
	}

	writeJSON(w, http.StatusOK, updated)
}

// Delete handles DELETE /admin/memocards/{id}.
func (h *AdminMemocardHandler) Delete(w http.ResponseWriter, r *http.Request) {
	card, apiErr := h.loadMemocard(r)
	if apiErr != nil {
		apperrors.WriteError(w, r, apiErr)
		return
	}

	deleted, err := h.memocards.Delete(r.Context(), card.ID)
	if err != nil {
		apperrors.WriteError(w, r, apperrors.NewDatabase(err))
		return
	}
	if deleted == 0 {
		apperrors.WriteError(w, r, apperrors.NewNotFound(
			apperrors.CodeMemocardNotFound, "memocard not found"))
		return
	}

	writeJSON(w, http.StatusOK, MessageResponse{Message: "Memocard deleted successfully"})
}

func (h *AdminMemocardHandler) loadMemocard(r *http.Request) (*models.Memocard, *apperrors.APIError) {
	id, apiErr := pathObjectID(r)
	if apiErr != nil {
		return nil, apiErr
	}

	card, err := h.memocards.GetByID(r.Context(), id)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, apperrors.NewNotFound(apperrors.CodeMemocardNotFound, "memocard not found")
		}
		return nil, apperrors.NewDatabase(err)
	}
	return card, nil
}

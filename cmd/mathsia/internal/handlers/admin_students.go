package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/mathsia/mathsia/cmd/mathsia/internal/apperrors"
	"github.com/mathsia/mathsia/cmd/mathsia/internal/auth"
	"github.com/mathsia/mathsia/cmd/mathsia/internal/constants"
	"github.com/mathsia/mathsia/cmd/mathsia/internal/models"
	"github.com/mathsia/mathsia/cmd/mathsia/internal/repository"
)

// StudentUserStore is the user persistence surface used by the admin
// student endpoints.
type StudentUserStore interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	Create(ctx context.Context, u models.User) (models.User, error)
	Update(ctx context.Context, id primitive.ObjectID, set bson.M) (*models.User, error)
	Delete(ctx context.Context, id primitive.ObjectID) (int64, error)
	ListStudents(ctx context.Context, level string, skip, limit int64) ([]models.User, error)
	CountStudents(ctx context.Context, level string) (int64, error)
	UsernameExists(ctx context.Context, username string, excludeID primitive.ObjectID) (bool, error)
	EmailExists(ctx context.Context, email string, excludeID primitive.ObjectID) (bool, error)
}

// ProgressCalculator computes a student's progress statistics.
type ProgressCalculator interface {
	CalculateProgress(ctx context.Context, studentID primitive.ObjectID, totalMemocards int64) (*models.StudentProgress, error)
}

// MemocardCounter counts memocards matching a filter.
type MemocardCounter interface {
	Count(ctx context.Context, filter repository.MemocardFilter) (int64, error)
}

// AdminStudentHandler handles the admin student management endpoints.
type AdminStudentHandler struct {
	users     StudentUserStore
	memocards MemocardCounter
	responses ProgressCalculator
}

// NewAdminStudentHandler creates a new admin student handler.
func NewAdminStudentHandler(users StudentUserStore, memocards MemocardCounter, responses ProgressCalculator) *AdminStudentHandler {
	return &AdminStudentHandler{users: users, memocards: memocards, responses: responses}
}

// StudentProfileRequest carries the student-specific profile fields.
type StudentProfileRequest struct {
	Level     string     `json:"level"`
	ClassName string     `json:"class_name,omitempty"`
	BirthDate *time.Time `json:"birth_date,omitempty"`
}

// CreateStudentRequest represents a student creation request.
type CreateStudentRequest struct {
	Username       string                 `json:"username"`
	Email          string                 `json:"email"`
	Password       string                 `json:"password"`
	FullName       string                 `json:"full_name"`
	Role           string                 `json:"role"`
	StudentProfile *StudentProfileRequest `json:"student_profile"`
}

// UpdateStudentRequest represents a partial student update. Nil fields
// are left unchanged.
type UpdateStudentRequest struct {
	Username       *string                `json:"username,omitempty"`
	Email          *string                `json:"email,omitempty"`
	Password       *string                `json:"password,omitempty"`
	FullName       *string                `json:"full_name,omitempty"`
	IsActive       *bool                  `json:"is_active,omitempty"`
	StudentProfile *StudentProfileRequest `json:"student_profile,omitempty"`
}

// StudentProgressResponse pairs a student ID with their progress.
type StudentProgressResponse struct {
	StudentID string                  `json:"student_id"`
	Progress  *models.StudentProgress `json:"progress"`
}

// Create handles POST /admin/students.
func (h *AdminStudentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateStudentRequest
	if apiErr := decodeJSON(r, &req); apiErr != nil {
		apperrors.WriteError(w, r, apiErr)
		return
	}

	if req.Role != models.RoleStudent {
		apperrors.WriteError(w, r, apperrors.NewBadRequest(
			apperrors.CodeInvalidRole, "role must be 'student'"))
		return
	}
	if req.Username == "" || req.Email == "" || req.Password == "" {
		apperrors.WriteError(w, r, apperrors.NewBadRequest(
			apperrors.CodeValidationError, "username, email and password are required"))
		return
	}
	if req.StudentProfile == nil || !models.IsValidSchoolLevel(req.StudentProfile.Level) {
		apperrors.WriteError(w, r, apperrors.NewBadRequest(apperrors.CodeInvalidLevel,
			fmt.Sprintf("student profile must have a valid level: %v", models.SchoolLevels)))
		return
	}

	taken, err := h.users.UsernameExists(r.Context(), req.Username, primitive.NilObjectID)
	if err != nil {
		apperrors.WriteError(w, r, apperrors.NewDatabase(err))
		return
	}
	if taken {
		apperrors.WriteError(w, r, apperrors.NewConflict(
			apperrors.CodeUsernameExists, "username already exists"))
		return
	}

	taken, err = h.users.EmailExists(r.Context(), req.Email, primitive.NilObjectID)
	if err != nil {
		apperrors.WriteError(w, r, apperrors.NewDatabase(err))
		return
	}
	if taken {
		apperrors.WriteError(w, r, apperrors.NewConflict(
			apperrors.CodeEmailExists, "email already exists"))
		return
	}

	hashed, err := auth.HashPassword(req.Password)
	if err != nil {
		apperrors.WriteError(w, r, apperrors.NewInternal("failed to hash password").Wrap(err))
		return
	}

	student, err := h.users.Create(r.Context(), models.User{
		Username:       req.Username,
		Email:          req.Email,
		FullName:       req.FullName,
		Role:           models.RoleStudent,
		IsActive:       true,
		HashedPassword: hashed,
		StudentProfile: &models.StudentProfile{
			Level:     req.StudentProfile.Level,
			ClassName: req.StudentProfile.ClassName,
			BirthDate: req.StudentProfile.BirthDate,
		},
	})
	if err != nil {
		apperrors.WriteError(w, r, apperrors.MapMongoError(err,
			apperrors.NewNotFound(apperrors.CodeStudentNotFound, "student not found")))
		return
	}

	writeJSON(w, http.StatusCreated, student)
}

// List handles GET /admin/students.
func (h *AdminStudentHandler) List(w http.ResponseWriter, r *http.Request) {
	skip, limit := pagination(r)

	level := r.URL.Query().Get("level")
	if level != "" && !models.IsValidSchoolLevel(level) {
		apperrors.WriteError(w, r, apperrors.NewBadRequest(apperrors.CodeInvalidLevel,
			fmt.Sprintf("invalid level, must be one of %v", models.SchoolLevels)))
		return
	}

	students, err := h.users.ListStudents(r.Context(), level, skip, limit)
	if err != nil {
		apperrors.WriteError(w, r, apperrors.NewDatabase(err))
		return
	}
	if students == nil {
		students = []models.User{}
	}

	total, err := h.users.CountStudents(r.Context(), level)
	if err != nil {
		apperrors.WriteError(w, r, apperrors.NewDatabase(err))
		return
	}
	w.Header().Set(constants.HeaderTotalCount, strconv.FormatInt(total, 10))

	writeJSON(w, http.StatusOK, students)
}

// Get handles GET /admin/students/{id}.
func (h *AdminStudentHandler) Get(w http.ResponseWriter, r *http.Request) {
	student, apiErr := h.loadStudent(r)
	if apiErr != nil {
		apperrors.WriteError(w, r, apiErr)
		return
	}
	writeJSON(w, http.StatusOK, student)
}

// Update handles PUT /admin/students/{id}.
func (h *AdminStudentHandler) Update(w http.ResponseWriter, r *http.Request) {
	student, apiErr := h.loadStudent(r)
	if apiErr != nil {
		apperrors.WriteError(w, r, apiErr)
		return
	}

	var req UpdateStudentRequest
	if apiErr := decodeJSON(r, &req); apiErr != nil {
		apperrors.WriteError(w, r, apiErr)
		return
	}

	set := bson.M{}

	if req.Username != nil && *req.Username != student.Username {
		taken, err := h.users.UsernameExists(r.Context(), *req.Username, student.ID)
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

	if req.Email != nil && *req.Email != student.Email {
		taken, err := h.users.EmailExists(r.Context(), *req.Email, student.ID)
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
	if req.IsActive != nil {
		set["is_active"] = *req.IsActive
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

	updated, err := h.users.Update(r.Context(), student.ID, set)
	if err != nil {
		apperrors.WriteError(w, r, apperrors.MapMongoError(err,
			apperrors.NewNotFound(apperrors.CodeStudentNotFound, "student not found")))
		return
	}

	writeJSON(w, http.StatusOK, updated)
}

// Delete handles DELETE /admin/students/{id}.
func (h *AdminStudentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	student, apiErr := h.loadStudent(r)
	if apiErr != nil {
		apperrors.WriteError(w, r, apiErr)
		return
	}

	deleted, err := h.users.Delete(r.Context(), student.ID)
	if err != nil {
		apperrors.WriteError(w, r, apperrors.NewDatabase(err))
		return
	}
	if deleted == 0 {
		apperrors.WriteError(w, r, apperrors.NewNotFound(
			apperrors.CodeStudentNotFound, "student not found"))
		return
	}

	writeJSON(w, http.StatusOK, MessageResponse{Message: "Student deleted successfully"})
}

// Progress handles GET /admin/students/{id}/progress.
func (h *AdminStudentHandler) Progress(w http.ResponseWriter, r *http.Request) {
	student, apiErr := h.loadStudent(r)
	if apiErr != nil {
		apperrors.WriteError(w, r, apiErr)
		return
	}

	if student.StudentProfile == nil || student.StudentProfile.Level == "" {
		apperrors.WriteError(w, r, apperrors.NewBadRequest(
			apperrors.CodeInvalidLevel, "student has no level"))
		return
	}

	total, err := h.memocards.Count(r.Context(), repository.MemocardFilter{
		Level:      student.StudentProfile.Level,
		ActiveOnly: true,
	})
	if err != nil {
		apperrors.WriteError(w, r, apperrors.NewDatabase(err))
		return
	}

	progress, err := h.responses.CalculateProgress(r.Context(), student.ID, total)
	if err != nil {
		apperrors.WriteError(w, r, apperrors.NewDatabase(err))
		return
	}

	writeJSON(w, http.StatusOK, StudentProgressResponse{
		StudentID: student.ID.Hex(),
		Progress:  progress,
	})
}

// loadStudent resolves the {id} path segment to an existing user with
// the student role.
func (h *AdminStudentHandler) loadStudent(r *http.Request) (*models.User, *apperrors.APIError) {
	id, apiErr := pathObjectID(r)
	if apiErr != nil {
		return nil, apiErr
	}

	user, err := h.users.GetByID(r.Context(), id)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, apperrors.NewNotFound(apperrors.CodeStudentNotFound, "student not found")
		}
		return nil, apperrors.NewDatabase(err)
	}

	if !user.IsStudent() {
		return nil, apperrors.NewBadRequest(apperrors.CodeInvalidRole, "user is not a student")
	}
	return user, nil
}

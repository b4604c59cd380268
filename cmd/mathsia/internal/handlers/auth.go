package handlers

import (
	"context"
	"net/http"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/mathsia/mathsia/cmd/mathsia/internal/apperrors"
	"github.com/mathsia/mathsia/cmd/mathsia/internal/auth"
	"github.com/mathsia/mathsia/cmd/mathsia/internal/logging"
	"github.com/mathsia/mathsia/cmd/mathsia/internal/middleware"
	"github.com/mathsia/mathsia/cmd/mathsia/internal/models"
)

// AuthUserStore is the user persistence surface used by the auth endpoints.
type AuthUserStore interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	UpdatePassword(ctx context.Context, id primitive.ObjectID, hashedPassword string) error
	UpdateLastLogin(ctx context.Context, id primitive.ObjectID) error
}

// AuthHandler handles authentication endpoints.
type AuthHandler struct {
	users  AuthUserStore
	tokens *auth.TokenService
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(users AuthUserStore, tokens *auth.TokenService) *AuthHandler {
	return &AuthHandler{users: users, tokens: tokens}
}

// LoginRequest represents a login request. Username may also be an email.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// RefreshRequest represents a token refresh request.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// PasswordChangeRequest represents a password change request.
type PasswordChangeRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// MessageResponse is a simple acknowledgement body.
type MessageResponse struct {
	Message string `json:"message"`
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if apiErr := decodeJSON(r, &req); apiErr != nil {
		apperrors.WriteError(w, r, apiErr)
		return
	}
	if req.Username == "" || req.Password == "" {
		apperrors.WriteError(w, r, apperrors.NewBadRequest(
			apperrors.CodeValidationError, "username and password are required"))
		return
	}

	user, err := h.users.GetByUsername(r.Context(), req.Username)
	if err == mongo.ErrNoDocuments {
		user, err = h.users.GetByEmail(r.Context(), req.Username)
	}
	if err != nil {
		if err == mongo.ErrNoDocuments {
			logging.GetLogger().WithContext(r.Context()).
				Warnf("Authentication failed: user not found: %s", req.Username)
			apperrors.WriteError(w, r, apperrors.NewUnauthorized(
				apperrors.CodeInvalidCredentials, "incorrect username or password"))
			return
		}
		apperrors.WriteError(w, r, apperrors.NewDatabase(err))
		return
	}

	if err := auth.ComparePassword(user.HashedPassword, req.Password); err != nil {
		logging.GetLogger().WithContext(r.Context()).
			Warnf("Authentication failed: invalid password for user %s", req.Username)
		apperrors.WriteError(w, r, apperrors.NewUnauthorized(
			apperrors.CodeInvalidCredentials, "incorrect username or password"))
		return
	}

	if !user.IsActive {
		apperrors.WriteError(w, r, apperrors.NewBadRequest(
			apperrors.CodeInactiveUser, "inactive user"))
		return
	}

	if err := h.users.UpdateLastLogin(r.Context(), user.ID); err != nil {
		logging.GetLogger().WithContext(r.Context()).
			ErrorWithErr("Failed to update last login", err)
	}

	pair, err := h.tokens.GenerateTokenPair(user.ID.Hex(), user.Role)
	if err != nil {
		apperrors.WriteError(w, r, apperrors.NewInternal("failed to generate tokens").Wrap(err))
		return
	}

	writeJSON(w, http.StatusOK, pair)
}

// Refresh handles POST /auth/refresh.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if apiErr := decodeJSON(r, &req); apiErr != nil {
		apperrors.WriteError(w, r, apiErr)
		return
	}

	claims, err := h.tokens.ValidateRefreshToken(req.RefreshToken)
	if err != nil {
		apperrors.WriteError(w, r, apperrors.NewUnauthorized(
			apperrors.CodeInvalidToken, "invalid refresh token").Wrap(err))
		return
	}

	userID, err := primitive.ObjectIDFromHex(claims.Subject)
	if err != nil {
		apperrors.WriteError(w, r, apperrors.NewUnauthorized(
			apperrors.CodeInvalidToken, "invalid refresh token").Wrap(err))
		return
	}

	user, err := h.users.GetByID(r.Context(), userID)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			apperrors.WriteError(w, r, apperrors.NewUnauthorized(
				apperrors.CodeInvalidToken, "invalid refresh token"))
			return
		}
		apperrors.WriteError(w, r, apperrors.NewDatabase(err))
		return
	}

	if !user.IsActive {
		apperrors.WriteError(w, r, apperrors.NewBadRequest(
			apperrors.CodeInactiveUser, "inactive user"))
		return
	}

	pair, err := h.tokens.GenerateTokenPair(user.ID.Hex(), user.Role)
	if err != nil {
		apperrors.WriteError(w, r, apperrors.NewInternal("failed to generate tokens").Wrap(err))
		return
	}

	writeJSON(w, http.StatusOK, pair)
}

// Me handles GET /auth/me.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		apperrors.WriteError(w, r, apperrors.NewUnauthorized(
			apperrors.CodeNotAuthenticated, "not authenticated"))
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// ChangePassword handles POST /auth/change-password.
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		apperrors.WriteError(w, r, apperrors.NewUnauthorized(
			apperrors.CodeNotAuthenticated, "not authenticated"))
		return
	}

	var req PasswordChangeRequest
	if apiErr := decodeJSON(r, &req); apiErr != nil {
		apperrors.WriteError(w, r, apiErr)
		return
	}
	if req.CurrentPassword == "" || req.NewPassword == "" {
		apperrors.WriteError(w, r, apperrors.NewBadRequest(
			apperrors.CodeValidationError, "current_password and new_password are required"))
		return
	}

	if err := auth.ComparePassword(user.HashedPassword, req.CurrentPassword); err != nil {
		apperrors.WriteError(w, r, apperrors.NewBadRequest(
			apperrors.CodeInvalidPassword, "current password is incorrect"))
		return
	}

	hashed, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		apperrors.WriteError(w, r, apperrors.NewInternal("failed to hash password").Wrap(err))
		return
	}

	if err := h.users.UpdatePassword(r.Context(), user.ID, hashed); err != nil {
		apperrors.WriteError(w, r, apperrors.NewDatabase(err))
		return
	}

	writeJSON(w, http.StatusOK, MessageResponse{Message: "Password changed successfully"})
}

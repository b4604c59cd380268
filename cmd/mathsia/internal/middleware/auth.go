// Package middleware provides the HTTP middleware for authentication
// and role-based access control.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/mathsia/mathsia/cmd/mathsia/internal/apperrors"
	"github.com/mathsia/mathsia/cmd/mathsia/internal/auth"
	"github.com/mathsia/mathsia/cmd/mathsia/internal/constants"
	"github.com/mathsia/mathsia/cmd/mathsia/internal/models"
)

type contextKey string

const userContextKey contextKey = "current_user"

// UserLoader loads users for authenticated requests.
type UserLoader interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
}

// Authenticator validates bearer tokens and resolves the current user.
type Authenticator struct {
	tokens *auth.TokenService
	users  UserLoader
}

// NewAuthenticator creates an Authenticator.
func NewAuthenticator(tokens *auth.TokenService, users UserLoader) *Authenticator {
	return &Authenticator{tokens: tokens, users: users}
}

// Authenticate requires a valid access token and loads the matching
// active user into the request context.
func (a *Authenticator) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := extractBearerToken(r)
		if !ok {
			apperrors.WriteError(w, r, apperrors.NewUnauthorized(
				apperrors.CodeNotAuthenticated, "not authenticated"))
			return
		}

		claims, err := a.tokens.ValidateAccessToken(token)
		if err != nil {
			apperrors.WriteError(w, r, apperrors.NewUnauthorized(
				apperrors.CodeInvalidToken, "could not validate credentials").Wrap(err))
			return
		}

		userID, err := primitive.ObjectIDFromHex(claims.Subject)
		if err != nil {
			apperrors.WriteError(w, r, apperrors.NewUnauthorized(
				apperrors.CodeInvalidToken, "could not validate credentials").Wrap(err))
			return
		}

		user, err := a.users.GetByID(r.Context(), userID)
		if err != nil {
			if err == mongo.ErrNoDocuments {
				apperrors.WriteError(w, r, apperrors.NewUnauthorized(
					apperrors.CodeInvalidToken, "could not validate credentials"))
				return
			}
			apperrors.WriteError(w, r, apperrors.NewDatabase(err))
			return
		}

		if !user.IsActive {
			apperrors.WriteError(w, r, apperrors.NewUnauthorized(
				apperrors.CodeInactiveUser, "inactive user"))
			return
		}

		next.ServeHTTP(w, r.WithContext(SetUser(r.Context(), user)))
	})
}

// RequireRole restricts a handler to users with the given role.
// Admins pass every role check.
func RequireRole(role string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := UserFromContext(r.Context())
		if !ok {
			apperrors.WriteError(w, r, apperrors.NewUnauthorized(
				apperrors.CodeNotAuthenticated, "not authenticated"))
			return
		}

		if user.Role != role && !user.IsAdmin() {
			apperrors.WriteError(w, r, apperrors.NewForbidden("insufficient permissions"))
			return
		}

		next.ServeHTTP(w, r)
	})
}

// RequireAdmin restricts a handler to admins.
func RequireAdmin(next http.Handler) http.Handler {
	return RequireRole(models.RoleAdmin, next)
}

// RequireStudent restricts a handler to students (and admins).
func RequireStudent(next http.Handler) http.Handler {
	return RequireRole(models.RoleStudent, next)
}

// SetUser stores the authenticated user in the context.
func SetUser(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// UserFromContext returns the authenticated user, if any.
func UserFromContext(ctx context.Context) (*models.User, bool) {
	user, ok := ctx.Value(userContextKey).(*models.User)
	return user, ok
}

func extractBearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get(constants.HeaderAuthorization)
	if header == "" {
		return "", false
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], constants.AuthSchemeBearer) {
		return "", false
	}

	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", false
	}
	return token, true
}

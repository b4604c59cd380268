package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/mathsia/mathsia/cmd/mathsia/internal/auth"
	"github.com/mathsia/mathsia/cmd/mathsia/internal/middleware"
	"github.com/mathsia/mathsia/cmd/mathsia/internal/models"
)

type stubAuthUsers struct {
	byUsername map[string]*models.User
	byEmail    map[string]*models.User
	byID       map[primitive.ObjectID]*models.User

	lastLoginSet    bool
	updatedPassword string
}

func (s *stubAuthUsers) GetByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	if u, ok := s.byID[id]; ok {
		return u, nil
	}
	return nil, mongo.ErrNoDocuments
}

func (s *stubAuthUsers) GetByUsername(_ context.Context, username string) (*models.User, error) {
	if u, ok := s.byUsername[username]; ok {
		return u, nil
	}
	return nil, mongo.ErrNoDocuments
}

func (s *stubAuthUsers) GetByEmail(_ context.Context, email string) (*models.User, error) {
	if u, ok := s.byEmail[email]; ok {
		return u, nil
	}
	return nil, mongo.ErrNoDocuments
}

func (s *stubAuthUsers) UpdatePassword(_ context.Context, _ primitive.ObjectID, hashed string) error {
	s.updatedPassword = hashed
	return nil
}

func (s *stubAuthUsers) UpdateLastLogin(_ context.Context, _ primitive.ObjectID) error {
	s.lastLoginSet = true
	return nil
}

func testTokens(t *testing.T) *auth.TokenService {
	t.Helper()
	ts, err := auth.NewTokenService("test-secret", "HS256", time.Minute, time.Hour)
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	return ts
}

func testUser(t *testing.T, username, password, role string, active bool) *models.User {
	t.Helper()
	hashed, err := auth.HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	return &models.User{
		ID:             primitive.NewObjectID(),
		Username:       username,
		Email:          username + "@example.com",
		Role:           role,
		IsActive:       active,
		HashedPassword: hashed,
	}
}

func postJSON(t *testing.T, handler http.HandlerFunc, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func TestLogin(t *testing.T) {
	user := testUser(t, "alice", "s3cret", models.RoleStudent, true)
	inactive := testUser(t, "bob", "s3cret", models.RoleStudent, false)

	users := &stubAuthUsers{
		byUsername: map[string]*models.User{"alice": user, "bob": inactive},
		byEmail:    map[string]*models.User{"alice@example.com": user},
		byID:       map[primitive.ObjectID]*models.User{user.ID: user},
	}
	h := NewAuthHandler(users, testTokens(t))

	tests := []struct {
		name       string
		body       LoginRequest
		wantStatus int
	}{
		{"by username", LoginRequest{Username: "alice", Password: "s3cret"}, http.StatusOK},
		{"by email", LoginRequest{Username: "alice@example.com", Password: "s3cret"}, http.StatusOK},
		{"wrong password", LoginRequest{Username: "alice", Password: "nope"}, http.StatusUnauthorized},
		{"unknown user", LoginRequest{Username: "carol", Password: "s3cret"}, http.StatusUnauthorized},
		{"inactive user", LoginRequest{Username: "bob", Password: "s3cret"}, http.StatusBadRequest},
		{"missing fields", LoginRequest{Username: "alice"}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postJSON(t, h.Login, "/auth/login", tt.body)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantStatus != http.StatusOK {
				return
			}

			var pair auth.TokenPair
			if err := json.NewDecoder(rec.Body).Decode(&pair); err != nil {
				t.Fatalf("decode response: %v", err)
			}
			if pair.AccessToken == "" || pair.RefreshToken == "" {
				t.Error("expected both tokens in response")
			}
			if pair.TokenType != "bearer" {
				t.Errorf("token_type = %q, want bearer", pair.TokenType)
			}
		})
	}

	if !users.lastLoginSet {
		t.Error("expected last login to be updated on successful login")
	}
}

func TestRefresh(t *testing.T) {
	tokens := testTokens(t)
	user := testUser(t, "alice", "s3cret", models.RoleStudent, true)
	users := &stubAuthUsers{
		byID: map[primitive.ObjectID]*models.User{user.ID: user},
	}
	h := NewAuthHandler(users, tokens)

	pair, err := tokens.GenerateTokenPair(user.ID.Hex(), user.Role)
	if err != nil {
		t.Fatalf("GenerateTokenPair: %v", err)
	}

	t.Run("valid refresh token", func(t *testing.T) {
		rec := postJSON(t, h.Refresh, "/auth/refresh", RefreshRequest{RefreshToken: pair.RefreshToken})
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
		}
	})

	t.Run("access token rejected", func(t *testing.T) {
		rec := postJSON(t, h.Refresh, "/auth/refresh", RefreshRequest{RefreshToken: pair.AccessToken})
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
		}
	})

	t.Run("unknown user", func(t *testing.T) {
		orphan, err := tokens.GenerateTokenPair(primitive.NewObjectID().Hex(), models.RoleStudent)
		if err != nil {
			t.Fatalf("GenerateTokenPair: %v", err)
		}
		rec := postJSON(t, h.Refresh, "/auth/refresh", RefreshRequest{RefreshToken: orphan.RefreshToken})
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
		}
	})
}

func TestChangePassword(t *testing.T) {
	user := testUser(t, "alice", "old-pass", models.RoleStudent, true)
	users := &stubAuthUsers{
		byID: map[primitive.ObjectID]*models.User{user.ID: user},
	}
	h := NewAuthHandler(users, testTokens(t))

	withUser := func(req *http.Request) *http.Request {
		return req.WithContext(middleware.SetUser(req.Context(), user))
	}

	t.Run("correct current password", func(t *testing.T) {
		raw, _ := json.Marshal(PasswordChangeRequest{CurrentPassword: "old-pass", NewPassword: "new-pass"})
		req := withUser(httptest.NewRequest(http.MethodPost, "/auth/change-password", bytes.NewReader(raw)))
		rec := httptest.NewRecorder()
		h.ChangePassword(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
		}
		if users.updatedPassword == "" {
			t.Fatal("expected password hash to be updated")
		}
		if err := auth.ComparePassword(users.updatedPassword, "new-pass"); err != nil {
			t.Error("stored hash does not match the new password")
		}
	})

	t.Run("wrong current password", func(t *testing.T) {
		raw, _ := json.Marshal(PasswordChangeRequest{CurrentPassword: "wrong", NewPassword: "new-pass"})
		req := withUser(httptest.NewRequest(http.MethodPost, "/auth/change-password", bytes.NewReader(raw)))
		rec := httptest.NewRecorder()
		h.ChangePassword(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
		}
	})

	t.Run("unauthenticated", func(t *testing.T) {
		raw, _ := json.Marshal(PasswordChangeRequest{CurrentPassword: "old-pass", NewPassword: "new-pass"})
		req := httptest.NewRequest(http.MethodPost, "/auth/change-password", bytes.NewReader(raw))
		rec := httptest.NewRecorder()
		h.ChangePassword(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
		}
	})
}

func TestMe(t *testing.T) {
	user := testUser(t, "alice", "s3cret", models.RoleStudent, true)
	h := NewAuthHandler(&stubAuthUsers{}, testTokens(t))

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req = req.WithContext(middleware.SetUser(req.Context(), user))
	rec := httptest.NewRecorder()
	h.Me(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var got map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got["username"] != "alice" {
		t.Errorf("username = %v, want alice", got["username"])
	}
	if _, leaked := got["hashed_password"]; leaked {
		t.Error("hashed_password must not appear in responses")
	}
}

package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/mathsia/mathsia/cmd/mathsia/internal/middleware"
	"github.com/mathsia/mathsia/cmd/mathsia/internal/models"
	"github.com/mathsia/mathsia/cmd/mathsia/internal/repository"
)

type stubMemocardStore struct {
	cards      map[primitive.ObjectID]*models.Memocard
	lastFilter repository.MemocardFilter
}

func (s *stubMemocardStore) GetByID(_ context.Context, id primitive.ObjectID) (*models.Memocard, error) {
	if c, ok := s.cards[id]; ok {
		return c, nil
	}
	return nil, mongo.ErrNoDocuments
}

func (s *stubMemocardStore) Create(_ context.Context, m models.Memocard) (models.Memocard, error) {
	m.ID = primitive.NewObjectID()
	if s.cards == nil {
		s.cards = map[primitive.ObjectID]*models.Memocard{}
	}
	s.cards[m.ID] = &m
	return m, nil
}

func (s *stubMemocardStore) Update(_ context.Context, id primitive.ObjectID, _ bson.M) (*models.Memocard, error) {
	if c, ok := s.cards[id]; ok {
		return c, nil
	}
	return nil, mongo.ErrNoDocuments
}

func (s *stubMemocardStore) Delete(_ context.Context, id primitive.ObjectID) (int64, error) {
	if _, ok := s.cards[id]; ok {
		delete(s.cards, id)
		return 1, nil
	}
	return 0, nil
}

func (s *stubMemocardStore) List(_ context.Context, filter repository.MemocardFilter, _, _ int64) ([]models.Memocard, error) {
	s.lastFilter = filter
	var out []models.Memocard
	for _, c := range s.cards {
		out = append(out, *c)
	}
	return out, nil
}

func adminRequest(method, target string, body any) *http.Request {
	admin := &models.User{ID: primitive.NewObjectID(), Username: "root", Role: models.RoleAdmin}
	var req *http.Request
	if body != nil {
		raw, _ := json.Marshal(body)
		req = httptest.NewRequest(method, target, bytes.NewReader(raw))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	return req.WithContext(middleware.SetUser(req.Context(), admin))
}

func TestAdminCreateMemocard(t *testing.T) {
	correct := true
	valid := CreateMemocardRequest{
		Title:      "Théorème de Pythagore",
		Level:      "3e",
		Difficulty: "medium",
		Subject:    "Géométrie",
		Chapter:    "Triangles",
		Type:       models.TypeTrueFalse,
		Content:    models.Content{Statement: "a²+b²=c²", CorrectBool: &correct},
	}

	tests := []struct {
		name       string
		mutate     func(r *CreateMemocardRequest)
		wantStatus int
	}{
		{"valid", func(r *CreateMemocardRequest) {}, http.StatusCreated},
		{"missing title", func(r *CreateMemocardRequest) { r.Title = "" }, http.StatusBadRequest},
		{"invalid level", func(r *CreateMemocardRequest) { r.Level = "CM2" }, http.StatusBadRequest},
		{"invalid difficulty", func(r *CreateMemocardRequest) { r.Difficulty = "impossible" }, http.StatusBadRequest},
		{"invalid type", func(r *CreateMemocardRequest) { r.Type = "essay" }, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &stubMemocardStore{}
			h := NewAdminMemocardHandler(store)

			req := valid
			tt.mutate(&req)

			rec := httptest.NewRecorder()
			h.Create(rec, adminRequest(http.MethodPost, "/admin/memocards", req))

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantStatus != http.StatusCreated {
				return
			}

			var created models.Memocard
			if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
				t.Fatalf("decode response: %v", err)
			}
			if !created.IsActive {
				t.Error("cards default to active")
			}
			if created.CreatedBy.IsZero() {
				t.Error("created_by must record the admin")
			}
		})
	}
}

func TestAdminListMemocardsFilters(t *testing.T) {
	store := &stubMemocardStore{}
	h := NewAdminMemocardHandler(store)

	rec := httptest.NewRecorder()
	h.List(rec, adminRequest(http.MethodGet,
		"/admin/memocards?level=3e&difficulty=easy&subject=Alg%C3%A8bre&chapter=Equations", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	want := repository.MemocardFilter{Level: "3e", Difficulty: "easy", Subject: "Algèbre", Chapter: "Equations"}
	if store.lastFilter != want {
		t.Errorf("filter = %+v, want %+v", store.lastFilter, want)
	}
}

func TestAdminListMemocardsInvalidFilter(t *testing.T) {
	h := NewAdminMemocardHandler(&stubMemocardStore{})

	rec := httptest.NewRecorder()
	h.List(rec, adminRequest(http.MethodGet, "/admin/memocards?difficulty=impossible", nil))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestAdminDeleteMemocard(t *testing.T) {
	store := &stubMemocardStore{}
	h := NewAdminMemocardHandler(store)

	card, err := store.Create(context.Background(), *trueFalseCard("3e", true, true))
	if err != nil {
		t.Fatalf("seed card: %v", err)
	}

	req := adminRequest(http.MethodDelete, "/admin/memocards/"+card.ID.Hex(), nil)
	req.SetPathValue("id", card.ID.Hex())
	rec := httptest.NewRecorder()
	h.Delete(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if len(store.cards) != 0 {
		t.Error("card was not deleted")
	}
}

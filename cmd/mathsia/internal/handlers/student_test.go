package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/mathsia/mathsia/cmd/mathsia/internal/middleware"
	"github.com/mathsia/mathsia/cmd/mathsia/internal/models"
	"github.com/mathsia/mathsia/cmd/mathsia/internal/repository"
)

type stubStudentUsers struct {
	users map[primitive.ObjectID]*models.User
}

func (s *stubStudentUsers) GetByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	if u, ok := s.users[id]; ok {
		return u, nil
	}
	return nil, mongo.ErrNoDocuments
}

func (s *stubStudentUsers) Create(_ context.Context, u models.User) (models.User, error) {
	u.ID = primitive.NewObjectID()
	return u, nil
}

func (s *stubStudentUsers) Update(_ context.Context, id primitive.ObjectID, _ bson.M) (*models.User, error) {
	if u, ok := s.users[id]; ok {
		return u, nil
	}
	return nil, mongo.ErrNoDocuments
}

func (s *stubStudentUsers) Delete(_ context.Context, id primitive.ObjectID) (int64, error) {
	if _, ok := s.users[id]; ok {
		delete(s.users, id)
		return 1, nil
	}
	return 0, nil
}

func (s *stubStudentUsers) ListStudents(_ context.Context, level string, _, _ int64) ([]models.User, error) {
	var out []models.User
	for _, u := range s.users {
		if !u.IsStudent() {
			continue
		}
		if level != "" && (u.StudentProfile == nil || u.StudentProfile.Level != level) {
			continue
		}
		out = append(out, *u)
	}
	return out, nil
}

func (s *stubStudentUsers) CountStudents(_ context.Context, level string) (int64, error) {
	var n int64
	for _, u := range s.users {
		if !u.IsStudent() {
			continue
		}
		if level != "" && (u.StudentProfile == nil || u.StudentProfile.Level != level) {
			continue
		}
		n++
	}
	return n, nil
}

func (s *stubStudentUsers) UsernameExists(_ context.Context, username string, excludeID primitive.ObjectID) (bool, error) {
	for _, u := range s.users {
		if u.Username == username && u.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (s *stubStudentUsers) EmailExists(_ context.Context, email string, excludeID primitive.ObjectID) (bool, error) {
	for _, u := range s.users {
		if u.Email == email && u.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

type stubMemocards struct {
	cards map[primitive.ObjectID]*models.Memocard
}

func (s *stubMemocards) GetByID(_ context.Context, id primitive.ObjectID) (*models.Memocard, error) {
	if c, ok := s.cards[id]; ok {
		return c, nil
	}
	return nil, mongo.ErrNoDocuments
}

func (s *stubMemocards) Count(_ context.Context, filter repository.MemocardFilter) (int64, error) {
	var n int64
	for _, c := range s.cards {
		if filter.Level != "" && c.Level != filter.Level {
			continue
		}
		if filter.ActiveOnly && !c.IsActive {
			continue
		}
		n++
	}
	return n, nil
}

func (s *stubMemocards) ListForStudent(_ context.Context, level string, answeredIDs []primitive.ObjectID, _, _ int64) ([]models.Memocard, error) {
	answered := make(map[primitive.ObjectID]bool, len(answeredIDs))
	for _, id := range answeredIDs {
		answered[id] = true
	}
	var out []models.Memocard
	for _, c := range s.cards {
		if c.Level == level && c.IsActive && !answered[c.ID] {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (s *stubMemocards) Subjects(_ context.Context, level string) ([]string, error) {
	seen := map[string]bool{}
	var out []string
	for _, c := range s.cards {
		if c.Level == level && c.IsActive && !seen[c.Subject] {
			seen[c.Subject] = true
			out = append(out, c.Subject)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (s *stubMemocards) Chapters(_ context.Context, level, subject string) ([]string, error) {
	seen := map[string]bool{}
	var out []string
	for _, c := range s.cards {
		if c.Level == level && c.Subject == subject && c.IsActive && !seen[c.Chapter] {
			seen[c.Chapter] = true
			out = append(out, c.Chapter)
		}
	}
	sort.Strings(out)
	return out, nil
}

type stubResponses struct {
	created  []models.Response
	answered []primitive.ObjectID
	progress *models.StudentProgress
}

func (s *stubResponses) Create(_ context.Context, resp models.Response) (models.Response, error) {
	resp.ID = primitive.NewObjectID()
	s.created = append(s.created, resp)
	return resp, nil
}

func (s *stubResponses) ListByStudent(_ context.Context, studentID primitive.ObjectID, _, _ int64) ([]models.Response, error) {
	var out []models.Response
	for i := len(s.created) - 1; i >= 0; i-- {
		if s.created[i].StudentID == studentID {
			out = append(out, s.created[i])
		}
	}
	return out, nil
}

func (s *stubResponses) CountAttempts(_ context.Context, _, memocardID primitive.ObjectID) (int64, error) {
	var n int64
	for _, r := range s.created {
		if r.MemocardID == memocardID {
			n++
		}
	}
	return n, nil
}

func (s *stubResponses) AnsweredMemocardIDs(_ context.Context, _ primitive.ObjectID) ([]primitive.ObjectID, error) {
	return s.answered, nil
}

func (s *stubResponses) CalculateProgress(_ context.Context, _ primitive.ObjectID, total int64) (*models.StudentProgress, error) {
	if s.progress != nil {
		return s.progress, nil
	}
	return &models.StudentProgress{TotalMemocards: int(total)}, nil
}

func trueFalseCard(level string, correct bool, active bool) *models.Memocard {
	return &models.Memocard{
		ID:         primitive.NewObjectID(),
		Title:      "Pythagore",
		Level:      level,
		Difficulty: "easy",
		Subject:    "Géométrie",
		Type:       models.TypeTrueFalse,
		IsActive:   active,
		Content:    models.Content{Statement: "3-4-5 est un triangle rectangle", CorrectBool: &correct},
	}
}

func studentRequest(method, target string, body any, user *models.User) *http.Request {
	var req *http.Request
	if body != nil {
		raw, _ := json.Marshal(body)
		req = httptest.NewRequest(method, target, bytes.NewReader(raw))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	return req.WithContext(middleware.SetUser(req.Context(), user))
}

func TestStudentRespond(t *testing.T) {
	student := &models.User{
		ID:             primitive.NewObjectID(),
		Username:       "alice",
		Role:           models.RoleStudent,
		IsActive:       true,
		StudentProfile: &models.StudentProfile{Level: "3e"},
	}
	card := trueFalseCard("3e", true, true)
	inactiveCard := trueFalseCard("3e", true, false)

	memocards := &stubMemocards{cards: map[primitive.ObjectID]*models.Memocard{
		card.ID:         card,
		inactiveCard.ID: inactiveCard,
	}}
	responses := &stubResponses{}
	h := NewStudentHandler(&stubStudentUsers{}, memocards, responses)

	respond := func(id primitive.ObjectID, answer any) *httptest.ResponseRecorder {
		req := studentRequest(http.MethodPost, "/student/memocards/"+id.Hex()+"/respond",
			RespondRequest{Answer: answer}, student)
		req.SetPathValue("id", id.Hex())
		rec := httptest.NewRecorder()
		h.Respond(rec, req)
		return rec
	}

	t.Run("correct answer", func(t *testing.T) {
		rec := respond(card.ID, true)
		if rec.Code != http.StatusCreated {
			t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusCreated, rec.Body.String())
		}

		var resp models.Response
		if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if !resp.IsCorrect {
			t.Error("expected a correct answer")
		}
		if resp.Feedback != "Bonne réponse !" {
			t.Errorf("feedback = %q", resp.Feedback)
		}
		if resp.Attempts != 1 {
			t.Errorf("attempts = %d, want 1", resp.Attempts)
		}
	})

	t.Run("incorrect answer increments attempts", func(t *testing.T) {
		rec := respond(card.ID, false)
		if rec.Code != http.StatusCreated {
			t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
		}

		var resp models.Response
		if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if resp.IsCorrect {
			t.Error("expected an incorrect answer")
		}
		if resp.Feedback != "Réponse incorrecte. La bonne réponse est : Vrai" {
			t.Errorf("feedback = %q", resp.Feedback)
		}
		if resp.Attempts != 2 {
			t.Errorf("attempts = %d, want 2", resp.Attempts)
		}
	})

	t.Run("inactive card", func(t *testing.T) {
		rec := respond(inactiveCard.ID, true)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
		}
	})

	t.Run("unknown card", func(t *testing.T) {
		rec := respond(primitive.NewObjectID(), true)
		if rec.Code != http.StatusNotFound {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
		}
	})

	t.Run("body id mismatch", func(t *testing.T) {
		req := studentRequest(http.MethodPost, "/student/memocards/"+card.ID.Hex()+"/respond",
			RespondRequest{MemocardID: primitive.NewObjectID().Hex(), Answer: true}, student)
		req.SetPathValue("id", card.ID.Hex())
		rec := httptest.NewRecorder()
		h.Respond(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
		}
	})
}

func TestStudentMemocardsExcludesAnswered(t *testing.T) {
	student := &models.User{
		ID:             primitive.NewObjectID(),
		Role:           models.RoleStudent,
		IsActive:       true,
		StudentProfile: &models.StudentProfile{Level: "3e"},
	}
	seen := trueFalseCard("3e", true, true)
	fresh := trueFalseCard("3e", true, true)
	otherLevel := trueFalseCard("6e", true, true)

	memocards := &stubMemocards{cards: map[primitive.ObjectID]*models.Memocard{
		seen.ID:       seen,
		fresh.ID:      fresh,
		otherLevel.ID: otherLevel,
	}}
	responses := &stubResponses{answered: []primitive.ObjectID{seen.ID}}
	h := NewStudentHandler(&stubStudentUsers{}, memocards, responses)

	req := studentRequest(http.MethodGet, "/student/memocards", nil, student)
	rec := httptest.NewRecorder()
	h.Memocards(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	var cards []models.Memocard
	if err := json.NewDecoder(rec.Body).Decode(&cards); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(cards) != 1 || cards[0].ID != fresh.ID {
		t.Errorf("got %d cards, want only the unanswered one at the student's level", len(cards))
	}
}

func TestStudentProgress(t *testing.T) {
	student := &models.User{
		ID:             primitive.NewObjectID(),
		Role:           models.RoleStudent,
		IsActive:       true,
		StudentProfile: &models.StudentProfile{Level: "3e"},
	}
	card := trueFalseCard("3e", true, true)

	memocards := &stubMemocards{cards: map[primitive.ObjectID]*models.Memocard{card.ID: card}}
	responses := &stubResponses{progress: &models.StudentProgress{
		TotalMemocards:    1,
		AnsweredMemocards: 1,
		CorrectAnswers:    1,
		AccuracyRate:      100,
	}}
	h := NewStudentHandler(&stubStudentUsers{}, memocards, responses)

	req := studentRequest(http.MethodGet, "/student/progress", nil, student)
	rec := httptest.NewRecorder()
	h.Progress(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	var got StudentProgressResponse
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.StudentID != student.ID.Hex() {
		t.Errorf("student_id = %q, want %q", got.StudentID, student.ID.Hex())
	}
	if got.Progress == nil || got.Progress.AccuracyRate != 100 {
		t.Errorf("progress = %+v", got.Progress)
	}
}

func TestStudentResponses(t *testing.T) {
	student := &models.User{
		ID:             primitive.NewObjectID(),
		Role:           models.RoleStudent,
		IsActive:       true,
		StudentProfile: &models.StudentProfile{Level: "3e"},
	}
	responses := &stubResponses{created: []models.Response{
		{ID: primitive.NewObjectID(), StudentID: student.ID, IsCorrect: true},
		{ID: primitive.NewObjectID(), StudentID: primitive.NewObjectID(), IsCorrect: false},
		{ID: primitive.NewObjectID(), StudentID: student.ID, IsCorrect: false},
	}}
	h := NewStudentHandler(&stubStudentUsers{}, &stubMemocards{}, responses)

	req := studentRequest(http.MethodGet, "/student/responses", nil, student)
	rec := httptest.NewRecorder()
	h.Responses(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	var got []models.Response
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("got %d responses, want 2 (only the student's own)", len(got))
	}
}

func TestStudentSubjectsAndChapters(t *testing.T) {
	student := &models.User{
		ID:             primitive.NewObjectID(),
		Role:           models.RoleStudent,
		IsActive:       true,
		StudentProfile: &models.StudentProfile{Level: "3e"},
	}

	newCard := func(level, subject, chapter string) *models.Memocard {
		c := trueFalseCard(level, true, true)
		c.Subject = subject
		c.Chapter = chapter
		return c
	}
	cards := []*models.Memocard{
		newCard("3e", "Algèbre", "Equations"),
		newCard("3e", "Algèbre", "Fractions"),
		newCard("3e", "Géométrie", "Thalès"),
		newCard("6e", "Arithmétique", "Divisions"),
	}
	memocards := &stubMemocards{cards: map[primitive.ObjectID]*models.Memocard{}}
	for _, c := range cards {
		memocards.cards[c.ID] = c
	}
	h := NewStudentHandler(&stubStudentUsers{}, memocards, &stubResponses{})

	t.Run("subjects at the student's level", func(t *testing.T) {
		req := studentRequest(http.MethodGet, "/student/subjects", nil, student)
		rec := httptest.NewRecorder()
		h.Subjects(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
		}

		var subjects []string
		if err := json.NewDecoder(rec.Body).Decode(&subjects); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		want := []string{"Algèbre", "Géométrie"}
		if len(subjects) != len(want) || subjects[0] != want[0] || subjects[1] != want[1] {
			t.Errorf("subjects = %v, want %v", subjects, want)
		}
	})

	t.Run("chapters for a subject", func(t *testing.T) {
		req := studentRequest(http.MethodGet, "/student/chapters?subject=Algèbre", nil, student)
		rec := httptest.NewRecorder()
		h.Chapters(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
		}

		var chapters []string
		if err := json.NewDecoder(rec.Body).Decode(&chapters); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		want := []string{"Equations", "Fractions"}
		if len(chapters) != len(want) || chapters[0] != want[0] || chapters[1] != want[1] {
			t.Errorf("chapters = %v, want %v", chapters, want)
		}
	})

	t.Run("chapters without subject", func(t *testing.T) {
		req := studentRequest(http.MethodGet, "/student/chapters", nil, student)
		rec := httptest.NewRecorder()
		h.Chapters(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
		}
	})
}

func TestStudentProgressNoLevel(t *testing.T) {
	student := &models.User{ID: primitive.NewObjectID(), Role: models.RoleStudent, IsActive: true}
	h := NewStudentHandler(&stubStudentUsers{}, &stubMemocards{}, &stubResponses{})

	req := studentRequest(http.MethodGet, "/student/progress", nil, student)
	rec := httptest.NewRecorder()
	h.Progress(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

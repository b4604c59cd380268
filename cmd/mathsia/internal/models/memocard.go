package models

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Memocard types.
const (
	TypeTrueFalse      = "true_false"
	TypeMultipleChoice = "multiple_choice"
	TypeText           = "text"
	TypeNumeric        = "numeric"
)

// MemocardTypes lists the valid question types.
var MemocardTypes = []string{TypeTrueFalse, TypeMultipleChoice, TypeText, TypeNumeric}

// DifficultyLevels lists the valid difficulty levels, easiest first.
var DifficultyLevels = []string{"easy", "medium", "hard", "expert"}

// IsValidMemocardType checks if a question type string is valid.
func IsValidMemocardType(t string) bool {
	return contains(MemocardTypes, t)
}

// IsValidDifficulty checks if a difficulty string is valid.
func IsValidDifficulty(d string) bool {
	return contains(DifficultyLevels, d)
}

// Content holds the type-specific payload of a memocard. The populated
// fields depend on the card type: true/false uses Statement and
// CorrectBool; multiple choice uses Question, Options and CorrectOptions;
// text uses Question, CorrectText and CaseSensitive; numeric uses
// Question, CorrectNumber, Tolerance and Unit.
type Content struct {
	Statement      string   `bson:"statement,omitempty" json:"statement,omitempty"`
	CorrectBool    *bool    `bson:"correct_answer_bool,omitempty" json:"correct_answer_bool,omitempty"`
	Question       string   `bson:"question,omitempty" json:"question,omitempty"`
	Options        []string `bson:"options,omitempty" json:"options,omitempty"`
	CorrectOptions []int    `bson:"correct_options,omitempty" json:"correct_options,omitempty"`
	CorrectText    string   `bson:"correct_answer_text,omitempty" json:"correct_answer_text,omitempty"`
	CaseSensitive  bool     `bson:"case_sensitive,omitempty" json:"case_sensitive,omitempty"`
	CorrectNumber  float64  `bson:"correct_answer_number,omitempty" json:"correct_answer_number,omitempty"`
	Tolerance      float64  `bson:"tolerance,omitempty" json:"tolerance,omitempty"`
	Unit           string   `bson:"unit,omitempty" json:"unit,omitempty"`
}

// Memocard represents a question card as stored in the memocards collection.
type Memocard struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Title       string             `bson:"title" json:"title"`
	Description string             `bson:"description" json:"description"`
	Level       string             `bson:"level" json:"level"`
	Difficulty  string             `bson:"difficulty" json:"difficulty"`
	Subject     string             `bson:"subject" json:"subject"`
	Chapter     string             `bson:"chapter" json:"chapter"`
	Type        string             `bson:"type" json:"type"`
	IsActive    bool               `bson:"is_active" json:"is_active"`
	Tags        []string           `bson:"tags" json:"tags"`
	Content     Content            `bson:"content" json:"content"`
	CreatedBy   primitive.ObjectID `bson:"created_by" json:"created_by"`
	CreatedAt   time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time          `bson:"updated_at" json:"updated_at"`
}

// Evaluate grades a raw student answer against the card's content.
// It returns whether the answer is correct and the feedback message.
// Answers arrive as decoded JSON, so numbers are float64 and option
// lists are []any.
func (m *Memocard) Evaluate(answer any) (bool, string, error) {
	switch m.Type {
	case TypeTrueFalse:
		return m.evaluateTrueFalse(answer), m.trueFalseFeedback(answer), nil
	case TypeMultipleChoice:
		correct := m.evaluateMultipleChoice(answer)
		return correct, m.multipleChoiceFeedback(correct), nil
	case TypeText:
		correct := m.evaluateText(answer)
		return correct, m.textFeedback(correct), nil
	case TypeNumeric:
		number, ok := toFloat(answer)
		if !ok {
			return false, "Réponse invalide. La réponse doit être un nombre.", nil
		}
		correct := absFloat(number-m.Content.CorrectNumber) <= m.Content.Tolerance
		return correct, m.numericFeedback(correct), nil
	default:
		return false, "", fmt.Errorf("unknown memocard type %q", m.Type)
	}
}

func (m *Memocard) evaluateTrueFalse(answer any) bool {
	b, ok := answer.(bool)
	if !ok {
		return false
	}
	return m.Content.CorrectBool != nil && b == *m.Content.CorrectBool
}

func (m *Memocard) trueFalseFeedback(answer any) string {
	if m.evaluateTrueFalse(answer) {
		return "Bonne réponse !"
	}
	correct := "Faux"
	if m.Content.CorrectBool != nil && *m.Content.CorrectBool {
		correct = "Vrai"
	}
	return "Réponse incorrecte. La bonne réponse est : " + correct
}

func (m *Memocard) evaluateMultipleChoice(answer any) bool {
	selected, ok := toIntSlice(answer)
	if !ok {
		return false
	}
	if len(selected) != len(m.Content.CorrectOptions) {
		return false
	}
	expected := append([]int(nil), m.Content.CorrectOptions...)
	sort.Ints(selected)
	sort.Ints(expected)
	for i := range selected {
		if selected[i] != expected[i] {
			return false
		}
	}
	return true
}

func (m *Memocard) multipleChoiceFeedback(correct bool) string {
	if correct {
		return "Bonne réponse !"
	}
	var texts []string
	for _, i := range m.Content.CorrectOptions {
		if i >= 0 && i < len(m.Content.Options) {
			texts = append(texts, m.Content.Options[i])
		}
	}
	return "Réponse incorrecte. La bonne réponse est : " + strings.Join(texts, ", ")
}

func (m *Memocard) evaluateText(answer any) bool {
	text, ok := answer.(string)
	if !ok {
		return false
	}
	expected := m.Content.CorrectText
	if !m.Content.CaseSensitive {
		text = strings.ToLower(text)
		expected = strings.ToLower(expected)
	}
	return text == expected
}

func (m *Memocard) textFeedback(correct bool) string {
	if correct {
		return "Bonne réponse !"
	}
	expected := m.Content.CorrectText
	if !m.Content.CaseSensitive {
		expected = strings.ToLower(expected)
	}
	return "Réponse incorrecte. La bonne réponse est : " + expected
}

func (m *Memocard) numericFeedback(correct bool) string {
	if correct {
		return "Bonne réponse !"
	}
	feedback := fmt.Sprintf("Réponse incorrecte. La bonne réponse est : %g", m.Content.CorrectNumber)
	if m.Content.Unit != "" {
		feedback += " " + m.Content.Unit
	}
	return feedback
}

// toIntSlice normalizes a decoded JSON answer into a list of option
// indices. A bare number is treated as a single selection.
func toIntSlice(answer any) ([]int, bool) {
	switch v := answer.(type) {
	case []any:
		out := make([]int, 0, len(v))
		for _, item := range v {
			f, ok := toFloat(item)
			if !ok {
				return nil, false
			}
			out = append(out, int(f))
		}
		return out, true
	case []int:
		return append([]int(nil), v...), true
	default:
		if f, ok := toFloat(answer); ok {
			return []int{int(f)}, true
		}
		return nil, false
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

func absFloat(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

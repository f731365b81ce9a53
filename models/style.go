package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type StyleQuiz struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID    string             `bson:"user_id" json:"user_id"`
	Responses []QuizResponse     `bson:"responses" json:"responses"`
	Completed bool               `bson:"completed" json:"completed"`
	Archived  bool               `bson:"archived" json:"archived"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
}

type QuizResponse struct {
	ID         string     `bson:"id" json:"id"`
	UserID     string     `bson:"user_id" json:"user_id"`
	QuestionID string     `bson:"question_id" json:"question_id"`
	Response   QuizAnswer `bson:"response" json:"response"`
}

// QuizAnswer accepts a single string, a list of strings, or a number on the
// wire. It is always stored as a list.
type QuizAnswer []string

func (a *QuizAnswer) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*a = list
		return nil
	}
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*a = QuizAnswer{single}
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err == nil {
		*a = QuizAnswer{num.String()}
		return nil
	}
	return fmt.Errorf("quiz answer must be a string or list of strings")
}

func (a QuizAnswer) String() string {
	return strings.Join(a, ", ")
}

type QuizQuestion struct {
	ID       string   `json:"id"`
	Question string   `json:"question"`
	Options  []string `json:"options,omitempty"`
	Type     string   `json:"type"`
	// Scale lists the allowed values of a rating question.
	Scale []int `json:"scale,omitempty"`
}

type StyleProfile struct {
	ID               primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID           string             `bson:"user_id" json:"user_id"`
	StyleSummary     string             `bson:"style_summary" json:"style_summary"`
	StylePreferences []StylePreference  `bson:"style_preferences" json:"style_preferences"`
	CreatedAt        time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt        time.Time          `bson:"updated_at" json:"updated_at"`
}

type StylePreference struct {
	Category        string  `bson:"category" json:"category"`
	ConfidenceScore float64 `bson:"confidence_score" json:"confidence_score"`
}

// Categories lists preference names, highest confidence first as stored.
func (p *StyleProfile) Categories() []string {
	out := make([]string, 0, len(p.StylePreferences))
	for _, pref := range p.StylePreferences {
		out = append(out, pref.Category)
	}
	return out
}

const (
	InteractionChat      = "chat_message"
	InteractionChatStart = "chat_start"
)

type Interaction struct {
	ID              primitive.ObjectID     `bson:"_id,omitempty" json:"id"`
	UserID          string                 `bson:"user_id" json:"user_id"`
	InteractionType string                 `bson:"interaction_type" json:"interaction_type"`
	ItemID          string                 `bson:"item_id" json:"item_id"`
	Metadata        map[string]interface{} `bson:"metadata" json:"metadata"`
	CreatedAt       time.Time              `bson:"created_at" json:"created_at"`
}

type Recommendation struct {
	ItemType        string  `json:"item_type"`
	Description     string  `json:"description"`
	Reasoning       string  `json:"reasoning"`
	ConfidenceScore float64 `json:"confidence_score"`
}

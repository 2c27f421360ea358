package models

import "time"

// Feedback votes recorded against a conversation turn.
const (
	FeedbackNegative = -1
	FeedbackNone     = 0
	FeedbackPositive = 1
)

// Conversation is one question/answer exchange. The pipeline creates it;
// feedback and admin fields are updated later by id.
type Conversation struct {
	ID               int64     `json:"id"`
	SessionID        string    `json:"session_id"`
	UserMessage      string    `json:"user_message"`
	BotResponse      string    `json:"bot_response"`
	LanguageDetected string    `json:"language_detected"`
	ConfidenceScore  float64   `json:"confidence_score"`
	Feedback         int       `json:"feedback"`
	ForwardedToAdmin bool      `json:"forwarded_to_admin"`
	AdminResponse    *string   `json:"admin_response,omitempty"`
	CreatedAt        time.Time `json:"timestamp"`
}

func ValidFeedback(vote int) bool {
	return vote >= FeedbackNegative && vote <= FeedbackPositive
}

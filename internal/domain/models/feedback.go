package models

import "time"

// FeedbackType is a user's opinion of a bot reply.
type FeedbackType string

const (
	FeedbackLike    FeedbackType = "like"
	FeedbackDislike FeedbackType = "dislike"
)

// Valid reports whether t is a known feedback type.
func (t FeedbackType) Valid() bool {
	return t == FeedbackLike || t == FeedbackDislike
}

// Feedback is always stored against a chain root, so it is shared by every
// version of the reply. Unique per (MessageID, UserID).
type Feedback struct {
	ID           int64        `json:"id" db:"id"`
	MessageID    int64        `json:"message_id" db:"message_id"`
	UserID       string       `json:"user_id" db:"user_id"`
	FeedbackType FeedbackType `json:"feedback_type" db:"feedback_type"`
	CreatedAt    time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at" db:"updated_at"`
}

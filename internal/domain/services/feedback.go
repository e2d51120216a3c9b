package services

import (
	"context"

	"parley/internal/domain/models"
)

// FeedbackService records likes and dislikes against chain roots
type FeedbackService interface {
	// SetFeedback creates or updates the caller's feedback on the chain of messageID
	SetFeedback(ctx context.Context, identity Identity, messageID int64, req *SetFeedbackRequest) (*models.Feedback, error)

	// GetFeedback returns the caller's feedback on the chain of messageID
	GetFeedback(ctx context.Context, identity Identity, messageID int64) (*models.Feedback, error)

	// RemoveFeedback deletes feedback by ID
	RemoveFeedback(ctx context.Context, identity Identity, feedbackID int64) error

	// RemoveFeedbackForMessage deletes the caller's feedback on the chain of messageID
	RemoveFeedbackForMessage(ctx context.Context, identity Identity, messageID int64) error
}

// SetFeedbackRequest is the DTO for setting feedback
type SetFeedbackRequest struct {
	FeedbackType string `json:"feedback_type"`
}

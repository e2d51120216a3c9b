package repositories

import (
	"context"

	"parley/internal/domain/models"
)

// FeedbackRepository defines the interface for feedback data access
type FeedbackRepository interface {
	// Upsert inserts or updates the feedback for (MessageID, UserID) and
	// returns the stored row
	Upsert(ctx context.Context, fb *models.Feedback) (*models.Feedback, error)

	// Get retrieves feedback by ID
	// Returns domain.ErrNotFound if not found
	Get(ctx context.Context, id int64) (*models.Feedback, error)

	// GetForUser retrieves a user's feedback on a chain root
	// Returns domain.ErrNotFound if the user has not rated the chain
	GetForUser(ctx context.Context, rootID int64, userID string) (*models.Feedback, error)

	// ListForMessages retrieves a user's feedback for many chain roots (batch operation)
	// Returns a map of root ID to feedback; roots without feedback are absent
	ListForMessages(ctx context.Context, rootIDs []int64, userID string) (map[int64]models.Feedback, error)

	// Delete removes feedback by ID
	Delete(ctx context.Context, id int64) error
}

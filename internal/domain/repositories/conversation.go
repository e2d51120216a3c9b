package repositories

import (
	"context"

	"parley/internal/domain/models"
)

// ConversationRepository defines the interface for conversation data access
type ConversationRepository interface {
	// Create inserts a conversation and fills ID and timestamps
	Create(ctx context.Context, conv *models.Conversation) error

	// Get retrieves a live conversation by ID
	// Returns domain.ErrNotFound if absent or soft-deleted
	Get(ctx context.Context, id int64) (*models.Conversation, error)

	// GetIncludingDeleted retrieves a conversation whether or not it is soft-deleted
	GetIncludingDeleted(ctx context.Context, id int64) (*models.Conversation, error)

	// List returns a page of conversations plus the total count matching the filter
	List(ctx context.Context, filter models.ConversationFilter) ([]models.Conversation, int, error)

	// UpdateTitle renames a conversation
	UpdateTitle(ctx context.Context, id int64, title string) (*models.Conversation, error)

	// Touch bumps updated_at, used whenever a message lands in the conversation
	Touch(ctx context.Context, id int64) error

	// SoftDelete sets deleted_at
	SoftDelete(ctx context.Context, id int64) (*models.Conversation, error)

	// Restore clears deleted_at
	Restore(ctx context.Context, id int64) (*models.Conversation, error)

	// Delete removes the conversation and cascades to its messages and feedback
	Delete(ctx context.Context, id int64) error
}

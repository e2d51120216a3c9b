package repositories

import (
	"context"

	"parley/internal/domain/models"
)

// MessageRepository defines the interface for message data access
type MessageRepository interface {
	// Create inserts a message and fills ID and timestamps
	// A duplicate (chain_root_id, version_position) returns domain.ErrChainContention
	Create(ctx context.Context, msg *models.Message) error

	// Get retrieves a message by ID
	// Returns domain.ErrNotFound if not found
	Get(ctx context.Context, id int64) (*models.Message, error)

	// UpdateFields applies a partial update
	UpdateFields(ctx context.Context, id int64, patch models.MessagePatch) error

	// LockChain takes an exclusive lock on the chain rooted at rootID for the
	// rest of the enclosing transaction. Must be called inside ExecTx.
	// Returns domain.ErrChainContention if the lock cannot be acquired in time.
	LockChain(ctx context.Context, rootID int64) error

	// MaxVersionPosition returns the highest version position in the chain
	MaxVersionPosition(ctx context.Context, rootID int64) (int, error)

	// ListByConversation returns every stored message of a conversation,
	// superseded versions included, ordered by id
	ListByConversation(ctx context.Context, conversationID int64) ([]models.Message, error)

	// GetChainVersions retrieves all versions for multiple chains in a single query
	// Returns a map of root ID to versions ordered by version_position ascending
	GetChainVersions(ctx context.Context, rootIDs []int64) (map[int64][]models.Message, error)
}

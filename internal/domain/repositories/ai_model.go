package repositories

import (
	"context"

	"parley/internal/domain/models"
)

// AIModelRepository defines the interface for the AI model catalog table
type AIModelRepository interface {
	// Upsert inserts or updates a model keyed by name
	Upsert(ctx context.Context, model *models.AIModel) error

	// Get retrieves a model by ID
	// Returns domain.ErrNotFound if not found
	Get(ctx context.Context, id int64) (*models.AIModel, error)

	// GetByName retrieves a model by its unique name
	GetByName(ctx context.Context, name string) (*models.AIModel, error)

	// ListActive returns active models ordered by name
	ListActive(ctx context.Context) ([]models.AIModel, error)
}

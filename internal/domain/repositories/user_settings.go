package repositories

import (
	"context"

	"parley/internal/domain/models"
)

// UserSettingsRepository defines the interface for user settings data access
type UserSettingsRepository interface {
	// GetByUserID retrieves settings for a specific user
	// Returns nil if no settings exist (user hasn't saved any yet)
	GetByUserID(ctx context.Context, userID string) (*models.UserSettings, error)

	// Upsert creates or updates user settings
	Upsert(ctx context.Context, settings *models.UserSettings) error
}

package services

import (
	"context"

	"parley/internal/domain/models"
)

// UserSettingsService defines the business logic for user settings operations
type UserSettingsService interface {
	// GetSettings retrieves settings for a user
	// Returns defaults if none exist yet
	GetSettings(ctx context.Context, identity Identity) (*models.UserSettings, error)

	// UpdateSettings applies a partial update, creating the row if needed
	UpdateSettings(ctx context.Context, identity Identity, req *UpdateSettingsRequest) (*models.UserSettings, error)
}

// UpdateSettingsRequest is a partial settings update. Absent fields are left
// unchanged; a null preferred_ai_model_id clears the preference.
type UpdateSettingsRequest struct {
	PreferredAIModelID models.Optional[int64] `json:"preferred_ai_model_id"`
	Language           *string                `json:"language"`
}

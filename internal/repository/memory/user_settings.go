package memory

import (
	"context"
	"fmt"

	"parley/internal/domain"
	"parley/internal/domain/models"
)

type userSettingsRepo struct {
	s *Store
}

func (r *userSettingsRepo) GetByUserID(ctx context.Context, userID string) (*models.UserSettings, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	settings, ok := s.settings[userID]
	if !ok {
		return nil, nil
	}
	out := *settings
	return &out, nil
}

func (r *userSettingsRepo) Upsert(ctx context.Context, settings *models.UserSettings) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if settings.PreferredAIModelID != nil {
		if _, ok := s.aiModels[*settings.PreferredAIModelID]; !ok {
			return fmt.Errorf("%w: preferred_ai_model_id does not exist", domain.ErrValidation)
		}
	}

	now := s.now()
	if existing, ok := s.settings[settings.UserID]; ok {
		settings.CreatedAt = existing.CreatedAt
	} else if settings.CreatedAt.IsZero() {
		settings.CreatedAt = now
	}
	settings.UpdatedAt = now

	stored := *settings
	s.settings[stored.UserID] = &stored
	return nil
}

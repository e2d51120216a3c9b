package messages

import (
	"context"
	"errors"
	"fmt"

	"parley/internal/domain"
	"parley/internal/domain/models"
	"parley/internal/domain/repositories"
)

// modelResolver picks the AI model for a generation.
type modelResolver struct {
	aiModels repositories.AIModelRepository
	settings repositories.UserSettingsRepository
}

// explicit loads a model the caller asked for by id.
func (r *modelResolver) explicit(ctx context.Context, id int64) (*models.AIModel, error) {
	model, err := r.aiModels.Get(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("%w: ai_model_id: unknown model %d", domain.ErrValidation, id)
		}
		return nil, err
	}
	if !model.Active {
		return nil, fmt.Errorf("%w: ai_model_id: model %s is not active", domain.ErrValidation, model.Name)
	}
	return model, nil
}

// resolve returns the requested model, else the user's preferred model,
// else the catalog default.
func (r *modelResolver) resolve(ctx context.Context, requested *int64, userID string) (*models.AIModel, error) {
	if requested != nil {
		return r.explicit(ctx, *requested)
	}

	settings, err := r.settings.GetByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get user settings: %w", err)
	}
	if settings != nil && settings.PreferredAIModelID != nil {
		model, err := r.aiModels.Get(ctx, *settings.PreferredAIModelID)
		if err == nil && model.Active {
			return model, nil
		}
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
	}

	active, err := r.aiModels.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list ai models: %w", err)
	}
	for i := range active {
		if active[i].IsDefault {
			return &active[i], nil
		}
	}
	return nil, fmt.Errorf("%w: ai_model_id: no model selected and no default model configured", domain.ErrValidation)
}

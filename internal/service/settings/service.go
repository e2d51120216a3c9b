// Package settings manages per-user defaults such as the preferred AI model.
package settings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"parley/internal/domain"
	"parley/internal/domain/models"
	"parley/internal/domain/repositories"
	"parley/internal/domain/services"
)

var languageTag = regexp.MustCompile(`^[a-z]{2,3}(-[A-Za-z0-9]{2,8})?$`)

// Service implements services.UserSettingsService
type Service struct {
	settingsRepo repositories.UserSettingsRepository
	aiModelRepo  repositories.AIModelRepository
	logger       *slog.Logger
}

// NewService creates a new user settings service
func NewService(
	settingsRepo repositories.UserSettingsRepository,
	aiModelRepo repositories.AIModelRepository,
	logger *slog.Logger,
) *Service {
	return &Service{
		settingsRepo: settingsRepo,
		aiModelRepo:  aiModelRepo,
		logger:       logger,
	}
}

var _ services.UserSettingsService = (*Service)(nil)

// GetSettings retrieves settings for a user
func (s *Service) GetSettings(ctx context.Context, identity services.Identity) (*models.UserSettings, error) {
	if identity.UserID == "" {
		return nil, domain.ErrUnauthorized
	}

	settings, err := s.settingsRepo.GetByUserID(ctx, identity.UserID)
	if err != nil {
		return nil, fmt.Errorf("get settings: %w", err)
	}

	// If no settings exist yet, return defaults
	if settings == nil {
		s.logger.Debug("no settings found, returning defaults", "user_id", identity.UserID)
		settings = models.DefaultUserSettings(identity.UserID)
	}
	return settings, nil
}

// UpdateSettings applies a partial update, creating the row if needed
func (s *Service) UpdateSettings(ctx context.Context, identity services.Identity, req *services.UpdateSettingsRequest) (*models.UserSettings, error) {
	existing, err := s.GetSettings(ctx, identity)
	if err != nil {
		return nil, err
	}

	if req.Language != nil {
		if err := validation.Validate(*req.Language, validation.Required, validation.Match(languageTag)); err != nil {
			return nil, fmt.Errorf("%w: language: %v", domain.ErrValidation, err)
		}
		existing.Language = *req.Language
	}

	// Tri-state: only update if field was present in request
	if req.PreferredAIModelID.Present {
		if id := req.PreferredAIModelID.Value; id != nil {
			if err := s.checkModel(ctx, *id); err != nil {
				return nil, err
			}
		}
		existing.PreferredAIModelID = req.PreferredAIModelID.Value
	}

	if err := s.settingsRepo.Upsert(ctx, existing); err != nil {
		return nil, fmt.Errorf("upsert settings: %w", err)
	}

	s.logger.Info("user settings updated",
		"user_id", identity.UserID,
		"has_language", req.Language != nil,
		"has_preferred_model", req.PreferredAIModelID.Present,
	)
	return existing, nil
}

func (s *Service) checkModel(ctx context.Context, id int64) error {
	model, err := s.aiModelRepo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("%w: preferred_ai_model_id: unknown model %d", domain.ErrValidation, id)
		}
		return err
	}
	if !model.Active {
		return fmt.Errorf("%w: preferred_ai_model_id: model %s is not active", domain.ErrValidation, model.Name)
	}
	return nil
}

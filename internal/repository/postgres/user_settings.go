package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"parley/internal/domain"
	"parley/internal/domain/models"
	"parley/internal/domain/repositories"
)

// PostgresUserSettingsRepository implements the UserSettingsRepository interface
type PostgresUserSettingsRepository struct {
	pool   *pgxpool.Pool
	tables *TableNames
	logger *slog.Logger
}

// NewUserSettingsRepository creates a new PostgresUserSettingsRepository
func NewUserSettingsRepository(config *RepositoryConfig) repositories.UserSettingsRepository {
	return &PostgresUserSettingsRepository{
		pool:   config.Pool,
		tables: config.Tables,
		logger: config.Logger,
	}
}

// GetByUserID retrieves settings for a specific user
func (r *PostgresUserSettingsRepository) GetByUserID(ctx context.Context, userID string) (*models.UserSettings, error) {
	query := fmt.Sprintf(`
		SELECT user_id, preferred_ai_model_id, language, created_at, updated_at
		FROM %s
		WHERE user_id = $1
	`, r.tables.UserSettings)

	var s models.UserSettings
	executor := GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query, userID).Scan(
		&s.UserID,
		&s.PreferredAIModelID,
		&s.Language,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if IsPgNoRowsError(err) {
			// No settings yet - not an error
			return nil, nil
		}
		return nil, fmt.Errorf("get user settings: %w", err)
	}

	return &s, nil
}

// Upsert creates or updates user settings
func (r *PostgresUserSettingsRepository) Upsert(ctx context.Context, s *models.UserSettings) error {
	stampTimes(&s.CreatedAt, &s.UpdatedAt)

	query := fmt.Sprintf(`
		INSERT INTO %s (user_id, preferred_ai_model_id, language, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id) DO UPDATE SET
			preferred_ai_model_id = EXCLUDED.preferred_ai_model_id,
			language = EXCLUDED.language,
			updated_at = EXCLUDED.updated_at
		RETURNING user_id, preferred_ai_model_id, language, created_at, updated_at
	`, r.tables.UserSettings)

	executor := GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query,
		s.UserID,
		s.PreferredAIModelID,
		s.Language,
		s.CreatedAt,
		s.UpdatedAt,
	).Scan(
		&s.UserID,
		&s.PreferredAIModelID,
		&s.Language,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if IsPgForeignKeyError(err) {
			return fmt.Errorf("%w: preferred_ai_model_id does not exist", domain.ErrValidation)
		}
		return fmt.Errorf("upsert user settings: %w", err)
	}

	return nil
}

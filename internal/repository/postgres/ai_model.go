package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"parley/internal/domain"
	"parley/internal/domain/models"
	"parley/internal/domain/repositories"
)

const aiModelColumns = `id, name, provider, description, is_default, active, created_at, updated_at`

// PostgresAIModelRepository implements the AIModelRepository interface
type PostgresAIModelRepository struct {
	pool   *pgxpool.Pool
	tables *TableNames
	logger *slog.Logger
}

// NewAIModelRepository creates a new PostgresAIModelRepository
func NewAIModelRepository(config *RepositoryConfig) repositories.AIModelRepository {
	return &PostgresAIModelRepository{
		pool:   config.Pool,
		tables: config.Tables,
		logger: config.Logger,
	}
}

// Upsert inserts or updates a model keyed by name
func (r *PostgresAIModelRepository) Upsert(ctx context.Context, model *models.AIModel) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (name, provider, description, is_default, active)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (name) DO UPDATE SET
			provider = EXCLUDED.provider,
			description = EXCLUDED.description,
			is_default = EXCLUDED.is_default,
			active = EXCLUDED.active,
			updated_at = NOW()
		RETURNING %s
	`, r.tables.AIModels, aiModelColumns)

	executor := GetExecutor(ctx, r.pool)
	stored, err := scanAIModel(executor.QueryRow(ctx, query,
		model.Name,
		model.Provider,
		model.Description,
		model.IsDefault,
		model.Active,
	))
	if err != nil {
		return fmt.Errorf("upsert ai model %s: %w", model.Name, err)
	}

	*model = *stored
	return nil
}

// Get retrieves a model by ID
func (r *PostgresAIModelRepository) Get(ctx context.Context, id int64) (*models.AIModel, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, aiModelColumns, r.tables.AIModels)

	executor := GetExecutor(ctx, r.pool)
	model, err := scanAIModel(executor.QueryRow(ctx, query, id))
	if err != nil {
		if IsPgNoRowsError(err) {
			return nil, domain.NewNotFound("ai model", id)
		}
		return nil, fmt.Errorf("get ai model: %w", err)
	}
	return model, nil
}

// GetByName retrieves a model by name
func (r *PostgresAIModelRepository) GetByName(ctx context.Context, name string) (*models.AIModel, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE name = $1`, aiModelColumns, r.tables.AIModels)

	executor := GetExecutor(ctx, r.pool)
	model, err := scanAIModel(executor.QueryRow(ctx, query, name))
	if err != nil {
		if IsPgNoRowsError(err) {
			return nil, &domain.NotFoundError{Resource: "ai model", ID: name}
		}
		return nil, fmt.Errorf("get ai model by name: %w", err)
	}
	return model, nil
}

// ListActive returns active models ordered by name
func (r *PostgresAIModelRepository) ListActive(ctx context.Context) ([]models.AIModel, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE active ORDER BY name ASC`, aiModelColumns, r.tables.AIModels)

	executor := GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list ai models: %w", err)
	}
	defer rows.Close()

	result := []models.AIModel{}
	for rows.Next() {
		model, err := scanAIModel(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ai model: %w", err)
		}
		result = append(result, *model)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ai models: %w", err)
	}
	return result, nil
}

func scanAIModel(row pgx.Row) (*models.AIModel, error) {
	var m models.AIModel
	err := row.Scan(
		&m.ID,
		&m.Name,
		&m.Provider,
		&m.Description,
		&m.IsDefault,
		&m.Active,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

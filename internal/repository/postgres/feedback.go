package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"parley/internal/domain"
	"parley/internal/domain/models"
	"parley/internal/domain/repositories"
)

const feedbackColumns = `id, message_id, user_id, feedback_type, created_at, updated_at`

// PostgresFeedbackRepository implements the FeedbackRepository interface
type PostgresFeedbackRepository struct {
	pool   *pgxpool.Pool
	tables *TableNames
	logger *slog.Logger
}

// NewFeedbackRepository creates a new PostgresFeedbackRepository
func NewFeedbackRepository(config *RepositoryConfig) repositories.FeedbackRepository {
	return &PostgresFeedbackRepository{
		pool:   config.Pool,
		tables: config.Tables,
		logger: config.Logger,
	}
}

// Upsert inserts or updates feedback for (message_id, user_id).
// Re-submitting the same type leaves the row untouched.
func (r *PostgresFeedbackRepository) Upsert(ctx context.Context, fb *models.Feedback) (*models.Feedback, error) {
	now := time.Now().UTC()
	query := fmt.Sprintf(`
		INSERT INTO %[1]s (message_id, user_id, feedback_type, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT (message_id, user_id) DO UPDATE SET
			feedback_type = EXCLUDED.feedback_type,
			updated_at = CASE
				WHEN %[1]s.feedback_type = EXCLUDED.feedback_type THEN %[1]s.updated_at
				ELSE EXCLUDED.updated_at
			END
		RETURNING %[2]s
	`, r.tables.Feedback, feedbackColumns)

	executor := GetExecutor(ctx, r.pool)
	stored, err := scanFeedback(executor.QueryRow(ctx, query, fb.MessageID, fb.UserID, fb.FeedbackType, now))
	if err != nil {
		if IsPgForeignKeyError(err) {
			return nil, domain.NewNotFound("message", fb.MessageID)
		}
		return nil, fmt.Errorf("upsert feedback: %w", err)
	}

	return stored, nil
}

// Get retrieves feedback by ID
func (r *PostgresFeedbackRepository) Get(ctx context.Context, id int64) (*models.Feedback, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, feedbackColumns, r.tables.Feedback)

	executor := GetExecutor(ctx, r.pool)
	fb, err := scanFeedback(executor.QueryRow(ctx, query, id))
	if err != nil {
		if IsPgNoRowsError(err) {
			return nil, domain.NewNotFound("feedback", id)
		}
		return nil, fmt.Errorf("get feedback: %w", err)
	}
	return fb, nil
}

// GetForUser retrieves a user's feedback on a chain root
func (r *PostgresFeedbackRepository) GetForUser(ctx context.Context, rootID int64, userID string) (*models.Feedback, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE message_id = $1 AND user_id = $2`, feedbackColumns, r.tables.Feedback)

	executor := GetExecutor(ctx, r.pool)
	fb, err := scanFeedback(executor.QueryRow(ctx, query, rootID, userID))
	if err != nil {
		if IsPgNoRowsError(err) {
			return nil, &domain.NotFoundError{Resource: "feedback", ID: fmt.Sprintf("message %d", rootID)}
		}
		return nil, fmt.Errorf("get feedback for user: %w", err)
	}
	return fb, nil
}

// ListForMessages retrieves a user's feedback for many chain roots in one query
func (r *PostgresFeedbackRepository) ListForMessages(ctx context.Context, rootIDs []int64, userID string) (map[int64]models.Feedback, error) {
	result := make(map[int64]models.Feedback, len(rootIDs))
	if len(rootIDs) == 0 {
		return result, nil
	}

	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE message_id = ANY($1) AND user_id = $2
	`, feedbackColumns, r.tables.Feedback)

	executor := GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, rootIDs, userID)
	if err != nil {
		return nil, fmt.Errorf("list feedback: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		fb, err := scanFeedback(rows)
		if err != nil {
			return nil, fmt.Errorf("scan feedback: %w", err)
		}
		result[fb.MessageID] = *fb
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate feedback: %w", err)
	}

	return result, nil
}

// Delete removes feedback by ID
func (r *PostgresFeedbackRepository) Delete(ctx context.Context, id int64) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, r.tables.Feedback)

	executor := GetExecutor(ctx, r.pool)
	tag, err := executor.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete feedback: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NewNotFound("feedback", id)
	}
	return nil
}

func scanFeedback(row pgx.Row) (*models.Feedback, error) {
	var fb models.Feedback
	err := row.Scan(
		&fb.ID,
		&fb.MessageID,
		&fb.UserID,
		&fb.FeedbackType,
		&fb.CreatedAt,
		&fb.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &fb, nil
}

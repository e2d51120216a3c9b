package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"parley/internal/domain"
	"parley/internal/domain/models"
	"parley/internal/domain/repositories"
)

const conversationColumns = `id, user_id, title, created_at, updated_at, deleted_at`

// conversationOrder maps whitelisted sort keys to ORDER BY clauses
var conversationOrder = map[models.ConversationSort]string{
	models.SortCreatedAsc:  "created_at ASC, id ASC",
	models.SortCreatedDesc: "created_at DESC, id DESC",
	models.SortUpdatedAsc:  "updated_at ASC, id ASC",
	models.SortUpdatedDesc: "updated_at DESC, id DESC",
}

// PostgresConversationRepository implements the ConversationRepository interface
type PostgresConversationRepository struct {
	pool   *pgxpool.Pool
	tables *TableNames
	logger *slog.Logger
}

// NewConversationRepository creates a new PostgresConversationRepository
func NewConversationRepository(config *RepositoryConfig) repositories.ConversationRepository {
	return &PostgresConversationRepository{
		pool:   config.Pool,
		tables: config.Tables,
		logger: config.Logger,
	}
}

// Create inserts a conversation
func (r *PostgresConversationRepository) Create(ctx context.Context, conv *models.Conversation) error {
	stampTimes(&conv.CreatedAt, &conv.UpdatedAt)

	query := fmt.Sprintf(`
		INSERT INTO %s (user_id, title, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at
	`, r.tables.Conversations)

	executor := GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query,
		conv.UserID,
		conv.Title,
		conv.CreatedAt,
		conv.UpdatedAt,
	).Scan(&conv.ID, &conv.CreatedAt, &conv.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create conversation: %w", err)
	}

	return nil
}

// Get retrieves a live conversation
func (r *PostgresConversationRepository) Get(ctx context.Context, id int64) (*models.Conversation, error) {
	return r.get(ctx, id, false)
}

// GetIncludingDeleted retrieves a conversation whether or not it is soft-deleted
func (r *PostgresConversationRepository) GetIncludingDeleted(ctx context.Context, id int64) (*models.Conversation, error) {
	return r.get(ctx, id, true)
}

func (r *PostgresConversationRepository) get(ctx context.Context, id int64, withDeleted bool) (*models.Conversation, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, conversationColumns, r.tables.Conversations)
	if !withDeleted {
		query += " AND deleted_at IS NULL"
	}

	executor := GetExecutor(ctx, r.pool)
	conv, err := scanConversation(executor.QueryRow(ctx, query, id))
	if err != nil {
		if IsPgNoRowsError(err) {
			return nil, domain.NewNotFound("conversation", id)
		}
		return nil, fmt.Errorf("get conversation: %w", err)
	}

	return conv, nil
}

// List returns a page of conversations plus the total matching the filter
func (r *PostgresConversationRepository) List(ctx context.Context, filter models.ConversationFilter) ([]models.Conversation, int, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter.Trashed {
		where = append(where, "deleted_at IS NOT NULL")
	} else {
		where = append(where, "deleted_at IS NULL")
	}
	if filter.UserID != "" {
		args = append(args, filter.UserID)
		where = append(where, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if filter.Title != "" {
		args = append(args, "%"+escapeLike(filter.Title)+"%")
		where = append(where, fmt.Sprintf("title ILIKE $%d", len(args)))
	}
	whereClause := strings.Join(where, " AND ")

	order, ok := conversationOrder[filter.Sort]
	if !ok {
		order = conversationOrder[models.SortUpdatedDesc]
	}

	executor := GetExecutor(ctx, r.pool)

	var total int
	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE %s`, r.tables.Conversations, whereClause)
	if err := executor.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count conversations: %w", err)
	}

	args = append(args, filter.Limit, filter.Offset)
	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE %s
		ORDER BY %s
		LIMIT $%d OFFSET $%d
	`, conversationColumns, r.tables.Conversations, whereClause, order, len(args)-1, len(args))

	rows, err := executor.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	conversations := []models.Conversation{}
	for rows.Next() {
		conv, err := scanConversation(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan conversation: %w", err)
		}
		conversations = append(conversations, *conv)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate conversations: %w", err)
	}

	return conversations, total, nil
}

// UpdateTitle renames a live conversation
func (r *PostgresConversationRepository) UpdateTitle(ctx context.Context, id int64, title string) (*models.Conversation, error) {
	query := fmt.Sprintf(`
		UPDATE %s SET title = $2, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING %s
	`, r.tables.Conversations, conversationColumns)

	return r.updateReturning(ctx, "update conversation", id, query, id, title)
}

// Touch bumps updated_at
func (r *PostgresConversationRepository) Touch(ctx context.Context, id int64) error {
	query := fmt.Sprintf(`UPDATE %s SET updated_at = NOW() WHERE id = $1`, r.tables.Conversations)

	executor := GetExecutor(ctx, r.pool)
	tag, err := executor.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("touch conversation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NewNotFound("conversation", id)
	}
	return nil
}

// SoftDelete sets deleted_at on a live conversation
func (r *PostgresConversationRepository) SoftDelete(ctx context.Context, id int64) (*models.Conversation, error) {
	query := fmt.Sprintf(`
		UPDATE %s SET deleted_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING %s
	`, r.tables.Conversations, conversationColumns)

	return r.updateReturning(ctx, "delete conversation", id, query, id)
}

// Restore clears deleted_at on a soft-deleted conversation
func (r *PostgresConversationRepository) Restore(ctx context.Context, id int64) (*models.Conversation, error) {
	query := fmt.Sprintf(`
		UPDATE %s SET deleted_at = NULL, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NOT NULL
		RETURNING %s
	`, r.tables.Conversations, conversationColumns)

	return r.updateReturning(ctx, "restore conversation", id, query, id)
}

// Delete permanently removes a conversation; messages and feedback cascade
func (r *PostgresConversationRepository) Delete(ctx context.Context, id int64) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, r.tables.Conversations)

	executor := GetExecutor(ctx, r.pool)
	tag, err := executor.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("force delete conversation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NewNotFound("conversation", id)
	}
	return nil
}

func (r *PostgresConversationRepository) updateReturning(ctx context.Context, op string, id int64, query string, args ...interface{}) (*models.Conversation, error) {
	executor := GetExecutor(ctx, r.pool)
	conv, err := scanConversation(executor.QueryRow(ctx, query, args...))
	if err != nil {
		if IsPgNoRowsError(err) {
			return nil, domain.NewNotFound("conversation", id)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return conv, nil
}

func scanConversation(row pgx.Row) (*models.Conversation, error) {
	var conv models.Conversation
	err := row.Scan(
		&conv.ID,
		&conv.UserID,
		&conv.Title,
		&conv.CreatedAt,
		&conv.UpdatedAt,
		&conv.DeletedAt,
	)
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

// escapeLike escapes LIKE wildcards so user input matches literally
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

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

const messageColumns = `id, conversation_id, parent_id, sender, content, ai_model_id,
	chain_root_id, version_position, status, error, attachment_count, created_at, updated_at`

// PostgresMessageRepository implements the MessageRepository interface
type PostgresMessageRepository struct {
	pool        *pgxpool.Pool
	tables      *TableNames
	logger      *slog.Logger
	lockTimeout time.Duration
}

// NewMessageRepository creates a new PostgresMessageRepository
func NewMessageRepository(config *RepositoryConfig) repositories.MessageRepository {
	return &PostgresMessageRepository{
		pool:        config.Pool,
		tables:      config.Tables,
		logger:      config.Logger,
		lockTimeout: config.LockTimeout,
	}
}

// Create inserts a message
func (r *PostgresMessageRepository) Create(ctx context.Context, msg *models.Message) error {
	stampTimes(&msg.CreatedAt, &msg.UpdatedAt)

	query := fmt.Sprintf(`
		INSERT INTO %s (conversation_id, parent_id, sender, content, ai_model_id,
			chain_root_id, version_position, status, error, attachment_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, created_at, updated_at
	`, r.tables.Messages)

	executor := GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query,
		msg.ConversationID,
		msg.ParentID,
		msg.Sender,
		msg.Content,
		msg.AIModelID,
		msg.ChainRootID,
		msg.VersionPosition,
		msg.Status,
		msg.Error,
		msg.AttachmentCount,
		msg.CreatedAt,
		msg.UpdatedAt,
	).Scan(&msg.ID, &msg.CreatedAt, &msg.UpdatedAt)

	if err != nil {
		switch {
		case IsChainPositionConflict(err), IsPgContentionError(err):
			return fmt.Errorf("create message in chain %v: %w", derefID(msg.ChainRootID), wrapContention(err))
		case IsPgForeignKeyError(err):
			return fmt.Errorf("create message: %w: referenced row does not exist", domain.ErrValidation)
		case IsPgCheckError(err):
			return fmt.Errorf("create message: %w: %v", domain.ErrValidation, err)
		}
		return fmt.Errorf("create message: %w", err)
	}

	return nil
}

// Get retrieves a message by ID
func (r *PostgresMessageRepository) Get(ctx context.Context, id int64) (*models.Message, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, messageColumns, r.tables.Messages)

	executor := GetExecutor(ctx, r.pool)
	msg, err := scanMessage(executor.QueryRow(ctx, query, id))
	if err != nil {
		if IsPgNoRowsError(err) {
			return nil, domain.NewNotFound("message", id)
		}
		return nil, fmt.Errorf("get message: %w", err)
	}

	return msg, nil
}

// UpdateFields applies a partial update
func (r *PostgresMessageRepository) UpdateFields(ctx context.Context, id int64, patch models.MessagePatch) error {
	query := fmt.Sprintf(`
		UPDATE %s SET
			content = COALESCE($2, content),
			status = COALESCE($3, status),
			error = COALESCE($4, error),
			attachment_count = COALESCE($5, attachment_count),
			updated_at = NOW()
		WHERE id = $1
	`, r.tables.Messages)

	var status *string
	if patch.Status != nil {
		s := string(*patch.Status)
		status = &s
	}

	executor := GetExecutor(ctx, r.pool)
	tag, err := executor.Exec(ctx, query, id, patch.Content, status, patch.Error, patch.AttachmentCount)
	if err != nil {
		return fmt.Errorf("update message: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NewNotFound("message", id)
	}

	return nil
}

// LockChain takes a row lock on the chain root for the rest of the transaction
func (r *PostgresMessageRepository) LockChain(ctx context.Context, rootID int64) error {
	tx := repositories.GetTx(ctx)
	if tx == nil {
		return fmt.Errorf("lock chain %d: no transaction in context", rootID)
	}

	if r.lockTimeout > 0 {
		// SET LOCAL takes no bind parameters
		if _, err := tx.Exec(ctx, fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", r.lockTimeout.Milliseconds())); err != nil {
			return fmt.Errorf("set lock timeout: %w", err)
		}
	}

	query := fmt.Sprintf(`
		SELECT id FROM %s
		WHERE id = $1 AND sender = 'bot' AND chain_root_id IS NULL
		FOR UPDATE
	`, r.tables.Messages)

	var id int64
	if err := tx.QueryRow(ctx, query, rootID).Scan(&id); err != nil {
		if IsPgNoRowsError(err) {
			return domain.NewNotFound("chain", rootID)
		}
		if IsPgContentionError(err) {
			return fmt.Errorf("lock chain %d: %w", rootID, wrapContention(err))
		}
		return fmt.Errorf("lock chain %d: %w", rootID, err)
	}

	return nil
}

// MaxVersionPosition returns the highest position in the chain (0 for an un-regenerated root)
func (r *PostgresMessageRepository) MaxVersionPosition(ctx context.Context, rootID int64) (int, error) {
	query := fmt.Sprintf(`
		SELECT COALESCE(MAX(version_position), 0)
		FROM %s
		WHERE id = $1 OR chain_root_id = $1
	`, r.tables.Messages)

	var pos int
	executor := GetExecutor(ctx, r.pool)
	if err := executor.QueryRow(ctx, query, rootID).Scan(&pos); err != nil {
		return 0, fmt.Errorf("max version position: %w", err)
	}

	return pos, nil
}

// ListByConversation returns every stored message of a conversation ordered by id
func (r *PostgresMessageRepository) ListByConversation(ctx context.Context, conversationID int64) ([]models.Message, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE conversation_id = $1
		ORDER BY id ASC
	`, messageColumns, r.tables.Messages)

	executor := GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, conversationID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	messages := []models.Message{}
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, *msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}

	return messages, nil
}

// GetChainVersions retrieves all versions of the given chains in one query
func (r *PostgresMessageRepository) GetChainVersions(ctx context.Context, rootIDs []int64) (map[int64][]models.Message, error) {
	result := make(map[int64][]models.Message, len(rootIDs))
	if len(rootIDs) == 0 {
		return result, nil
	}

	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE sender = 'bot' AND (id = ANY($1) OR chain_root_id = ANY($1))
		ORDER BY version_position ASC, id ASC
	`, messageColumns, r.tables.Messages)

	executor := GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, rootIDs)
	if err != nil {
		return nil, fmt.Errorf("get chain versions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan chain version: %w", err)
		}
		root := msg.RootID()
		result[root] = append(result[root], *msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chain versions: %w", err)
	}

	return result, nil
}

// scanMessage scans a row selected with messageColumns
func scanMessage(row pgx.Row) (*models.Message, error) {
	var msg models.Message
	err := row.Scan(
		&msg.ID,
		&msg.ConversationID,
		&msg.ParentID,
		&msg.Sender,
		&msg.Content,
		&msg.AIModelID,
		&msg.ChainRootID,
		&msg.VersionPosition,
		&msg.Status,
		&msg.Error,
		&msg.AttachmentCount,
		&msg.CreatedAt,
		&msg.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// stampTimes fills zero timestamps with the current time
func stampTimes(createdAt, updatedAt *time.Time) {
	if createdAt.IsZero() {
		*createdAt = time.Now().UTC()
	}
	if updatedAt.IsZero() {
		*updatedAt = *createdAt
	}
}

func derefID(id *int64) int64 {
	if id == nil {
		return 0
	}
	return *id
}

// Package instrumented wraps repositories with latency metrics.
package instrumented

import (
	"context"
	"time"

	"parley/internal/domain/models"
	"parley/internal/domain/repositories"
	"parley/internal/metrics"
)

// WrapMessages returns a MessageRepository that records store latency for
// every operation.
func WrapMessages(inner repositories.MessageRepository) repositories.MessageRepository {
	return &messageRepo{inner: inner}
}

type messageRepo struct {
	inner repositories.MessageRepository
}

func observe(op string, start time.Time) {
	metrics.ObserveStore(op, start)
}

func (m *messageRepo) Create(ctx context.Context, msg *models.Message) error {
	defer observe("create_message", time.Now())
	return m.inner.Create(ctx, msg)
}

func (m *messageRepo) Get(ctx context.Context, id int64) (*models.Message, error) {
	defer observe("get_message", time.Now())
	return m.inner.Get(ctx, id)
}

func (m *messageRepo) UpdateFields(ctx context.Context, id int64, patch models.MessagePatch) error {
	defer observe("update_message", time.Now())
	return m.inner.UpdateFields(ctx, id, patch)
}

func (m *messageRepo) LockChain(ctx context.Context, rootID int64) error {
	defer observe("lock_chain", time.Now())
	return m.inner.LockChain(ctx, rootID)
}

func (m *messageRepo) MaxVersionPosition(ctx context.Context, rootID int64) (int, error) {
	defer observe("max_version_position", time.Now())
	return m.inner.MaxVersionPosition(ctx, rootID)
}

func (m *messageRepo) ListByConversation(ctx context.Context, conversationID int64) ([]models.Message, error) {
	defer observe("list_messages", time.Now())
	return m.inner.ListByConversation(ctx, conversationID)
}

func (m *messageRepo) GetChainVersions(ctx context.Context, rootIDs []int64) (map[int64][]models.Message, error) {
	defer observe("get_chain_versions", time.Now())
	return m.inner.GetChainVersions(ctx, rootIDs)
}

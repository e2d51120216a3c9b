package memory

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"parley/internal/domain"
	"parley/internal/domain/models"
)

func seedChain(t *testing.T, s *Store) (*models.Conversation, *models.Message, *models.Message) {
	t.Helper()
	ctx := context.Background()

	conv := &models.Conversation{UserID: "user-a", Title: "chat"}
	require.NoError(t, s.Conversations().Create(ctx, conv))

	user := &models.Message{ConversationID: conv.ID, Sender: models.SenderUser, Content: "hi", Status: models.StatusCompleted}
	require.NoError(t, s.Messages().Create(ctx, user))

	root := &models.Message{ConversationID: conv.ID, ParentID: &user.ID, Sender: models.SenderBot, Content: "hello", Status: models.StatusCompleted}
	require.NoError(t, s.Messages().Create(ctx, root))

	return conv, user, root
}

func TestExecTx_RollsBackOnError(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	conv, _, root := seedChain(t, s)

	boom := errors.New("boom")
	err := s.TransactionManager().ExecTx(ctx, func(ctx context.Context) error {
		regen := &models.Message{
			ConversationID:  conv.ID,
			Sender:          models.SenderBot,
			ChainRootID:     &root.ID,
			VersionPosition: 1,
			Status:          models.StatusCompleted,
		}
		require.NoError(t, s.Messages().Create(ctx, regen))
		require.NoError(t, s.Conversations().Touch(ctx, conv.ID))
		return boom
	})
	require.ErrorIs(t, err, boom)

	msgs, err := s.Messages().ListByConversation(ctx, conv.ID)
	require.NoError(t, err)
	assert.Len(t, msgs, 2)

	pos, err := s.Messages().MaxVersionPosition(ctx, root.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, pos)
}

func TestCreate_DuplicatePositionIsContention(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	conv, _, root := seedChain(t, s)

	first := &models.Message{ConversationID: conv.ID, Sender: models.SenderBot, ChainRootID: &root.ID, VersionPosition: 1, Status: models.StatusCompleted}
	require.NoError(t, s.Messages().Create(ctx, first))

	dup := &models.Message{ConversationID: conv.ID, Sender: models.SenderBot, ChainRootID: &root.ID, VersionPosition: 1, Status: models.StatusCompleted}
	err := s.Messages().Create(ctx, dup)
	assert.ErrorIs(t, err, domain.ErrChainContention)
}

func TestCreate_RejectsChainedUserMessage(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	conv, _, root := seedChain(t, s)

	bad := &models.Message{ConversationID: conv.ID, Sender: models.SenderUser, ChainRootID: &root.ID, VersionPosition: 1, Status: models.StatusCompleted}
	assert.ErrorIs(t, s.Messages().Create(ctx, bad), domain.ErrValidation)
}

func TestLockChain_RequiresTransaction(t *testing.T) {
	s := NewStore()
	_, _, root := seedChain(t, s)

	assert.Error(t, s.Messages().LockChain(context.Background(), root.ID))
}

func TestLockChain_UnknownRoot(t *testing.T) {
	s := NewStore()
	_, user, _ := seedChain(t, s)

	err := s.TransactionManager().ExecTx(context.Background(), func(ctx context.Context) error {
		return s.Messages().LockChain(ctx, user.ID)
	})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestLockChain_TimesOut(t *testing.T) {
	s := NewStore(WithLockTimeout(20 * time.Millisecond))
	_, _, root := seedChain(t, s)

	held := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- s.TransactionManager().ExecTx(context.Background(), func(ctx context.Context) error {
			if err := s.Messages().LockChain(ctx, root.ID); err != nil {
				return err
			}
			close(held)
			<-release
			return nil
		})
	}()
	<-held

	err := s.TransactionManager().ExecTx(context.Background(), func(ctx context.Context) error {
		return s.Messages().LockChain(ctx, root.ID)
	})
	assert.ErrorIs(t, err, domain.ErrChainContention)

	close(release)
	require.NoError(t, <-done)

	// released after commit
	err = s.TransactionManager().ExecTx(context.Background(), func(ctx context.Context) error {
		return s.Messages().LockChain(ctx, root.ID)
	})
	assert.NoError(t, err)
}

func TestLockChain_SerializesWriters(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	conv, _, root := seedChain(t, s)

	const writers = 25
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < writers; i++ {
		g.Go(func() error {
			return s.TransactionManager().ExecTx(gctx, func(ctx context.Context) error {
				if err := s.Messages().LockChain(ctx, root.ID); err != nil {
					return err
				}
				pos, err := s.Messages().MaxVersionPosition(ctx, root.ID)
				if err != nil {
					return err
				}
				return s.Messages().Create(ctx, &models.Message{
					ConversationID:  conv.ID,
					Sender:          models.SenderBot,
					ChainRootID:     &root.ID,
					VersionPosition: pos + 1,
					Status:          models.StatusCompleted,
				})
			})
		})
	}
	require.NoError(t, g.Wait())

	versions, err := s.Messages().GetChainVersions(ctx, []int64{root.ID})
	require.NoError(t, err)
	require.Len(t, versions[root.ID], writers+1)
	for i, v := range versions[root.ID] {
		assert.Equal(t, i, v.VersionPosition)
	}
}

func TestConversationDelete_Cascades(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	conv, _, root := seedChain(t, s)

	_, err := s.Feedback().Upsert(ctx, &models.Feedback{MessageID: root.ID, UserID: "user-a", FeedbackType: models.FeedbackLike})
	require.NoError(t, err)

	require.NoError(t, s.Conversations().Delete(ctx, conv.ID))

	_, err = s.Messages().Get(ctx, root.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = s.Feedback().GetForUser(ctx, root.ID, "user-a")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestFeedbackUpsert_SameTypeKeepsRow(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	_, _, root := seedChain(t, s)

	first, err := s.Feedback().Upsert(ctx, &models.Feedback{MessageID: root.ID, UserID: "user-a", FeedbackType: models.FeedbackLike})
	require.NoError(t, err)
	second, err := s.Feedback().Upsert(ctx, &models.Feedback{MessageID: root.ID, UserID: "user-a", FeedbackType: models.FeedbackLike})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.UpdatedAt, second.UpdatedAt)

	all, err := s.Feedback().ListForMessages(ctx, []int64{root.ID}, "user-a")
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestConversationList_FilterSortPaginate(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s := NewStore()
	ctx := context.Background()

	titles := []string{"Go tips", "Rust notes", "go routines", "Cooking"}
	for i, title := range titles {
		c := &models.Conversation{UserID: "u1", Title: title, CreatedAt: base.Add(time.Duration(i) * time.Hour)}
		require.NoError(t, s.Conversations().Create(ctx, c))
	}
	require.NoError(t, s.Conversations().Create(ctx, &models.Conversation{UserID: "u2", Title: "go other user"}))

	items, total, err := s.Conversations().List(ctx, models.ConversationFilter{
		UserID: "u1",
		Title:  "GO",
		Sort:   models.SortCreatedAsc,
		Limit:  1,
		Offset: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, items, 1)
	assert.Equal(t, "go routines", items[0].Title)
}

func TestConversationList_OffsetOutOfRange(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	require.NoError(t, s.Conversations().Create(ctx, &models.Conversation{UserID: "u1", Title: "only"}))

	for _, offset := range []int{-100, 5, math.MaxInt32} {
		items, total, err := s.Conversations().List(ctx, models.ConversationFilter{UserID: "u1", Limit: 10, Offset: offset})
		require.NoError(t, err)
		assert.Equal(t, 1, total)
		if offset < 0 {
			assert.Len(t, items, 1)
		} else {
			assert.Empty(t, items)
		}
	}
}

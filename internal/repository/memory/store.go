// Package memory is an in-process store used for development and tests.
// It honors the same contracts as the Postgres repositories: chain locks
// serialize writers on a chain, and a failed ExecTx undoes its writes.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"parley/internal/domain"
	"parley/internal/domain/models"
	"parley/internal/domain/repositories"
)

// Store holds every table in maps guarded by one mutex.
type Store struct {
	mu sync.Mutex

	conversations map[int64]*models.Conversation
	messages      map[int64]*models.Message
	feedback      map[int64]*models.Feedback
	aiModels      map[int64]*models.AIModel
	settings      map[string]*models.UserSettings

	lastID int64

	chainLocksMu sync.Mutex
	chainLocks   map[int64]chan struct{}
	lockTimeout  time.Duration

	now func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithLockTimeout bounds how long LockChain waits. Zero waits until ctx is done.
func WithLockTimeout(d time.Duration) Option {
	return func(s *Store) { s.lockTimeout = d }
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore creates an empty store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		conversations: make(map[int64]*models.Conversation),
		messages:      make(map[int64]*models.Message),
		feedback:      make(map[int64]*models.Feedback),
		aiModels:      make(map[int64]*models.AIModel),
		settings:      make(map[string]*models.UserSettings),
		chainLocks:    make(map[int64]chan struct{}),
		now:           func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TransactionManager returns the store's transaction manager.
func (s *Store) TransactionManager() repositories.TransactionManager { return &txManager{store: s} }

// Conversations returns the conversation repository.
func (s *Store) Conversations() repositories.ConversationRepository { return &conversationRepo{s} }

// Messages returns the message repository.
func (s *Store) Messages() repositories.MessageRepository { return &messageRepo{s} }

// Feedback returns the feedback repository.
func (s *Store) Feedback() repositories.FeedbackRepository { return &feedbackRepo{s} }

// AIModels returns the AI model repository.
func (s *Store) AIModels() repositories.AIModelRepository { return &aiModelRepo{s} }

// UserSettings returns the user settings repository.
func (s *Store) UserSettings() repositories.UserSettingsRepository { return &userSettingsRepo{s} }

// nextID must be called with s.mu held.
func (s *Store) nextID() int64 {
	s.lastID++
	return s.lastID
}

// tx records how to undo writes and which chain locks to release.
type tx struct {
	undo  []func()
	locks []int64
}

type txKey struct{}

func txFrom(ctx context.Context) *tx {
	t, _ := ctx.Value(txKey{}).(*tx)
	return t
}

// recordUndo registers fn to run if the enclosing transaction fails.
// Must be called with s.mu held.
func recordUndo(ctx context.Context, fn func()) {
	if t := txFrom(ctx); t != nil {
		t.undo = append(t.undo, fn)
	}
}

type txManager struct {
	store *Store
}

// ExecTx runs fn and rolls back its writes if it fails. Nested calls join the
// outer transaction.
func (m *txManager) ExecTx(ctx context.Context, fn repositories.TxFn) error {
	if txFrom(ctx) != nil {
		return fn(ctx)
	}

	t := &tx{}
	err := fn(context.WithValue(ctx, txKey{}, t))
	if err != nil {
		m.store.mu.Lock()
		for i := len(t.undo) - 1; i >= 0; i-- {
			t.undo[i]()
		}
		m.store.mu.Unlock()
	}

	for _, rootID := range t.locks {
		m.store.unlockChain(rootID)
	}
	return err
}

func (s *Store) chainLock(rootID int64) chan struct{} {
	s.chainLocksMu.Lock()
	defer s.chainLocksMu.Unlock()

	ch, ok := s.chainLocks[rootID]
	if !ok {
		ch = make(chan struct{}, 1)
		s.chainLocks[rootID] = ch
	}
	return ch
}

func (s *Store) lockChain(ctx context.Context, rootID int64) error {
	t := txFrom(ctx)
	if t == nil {
		return fmt.Errorf("lock chain %d: no transaction in context", rootID)
	}
	for _, held := range t.locks {
		if held == rootID {
			return nil
		}
	}

	var timeout <-chan time.Time
	if s.lockTimeout > 0 {
		timer := time.NewTimer(s.lockTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case s.chainLock(rootID) <- struct{}{}:
		t.locks = append(t.locks, rootID)
		return nil
	case <-timeout:
		return fmt.Errorf("lock chain %d: %w: lock timeout", rootID, domain.ErrChainContention)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Store) unlockChain(rootID int64) {
	<-s.chainLock(rootID)
}

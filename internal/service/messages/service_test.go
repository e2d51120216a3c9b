package messages

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"parley/internal/config"
	"parley/internal/domain"
	"parley/internal/domain/models"
	"parley/internal/domain/repositories"
	"parley/internal/domain/services"
	"parley/internal/repository/memory"
	"parley/internal/service/auth"
)

var (
	alice = services.Identity{UserID: "alice"}
	bob   = services.Identity{UserID: "bob"}
	admin = services.Identity{UserID: "root", Role: services.RoleAdmin}
)

type fakeGenerator struct {
	mu    sync.Mutex
	err   error
	calls []services.GenerateRequest
}

func (g *fakeGenerator) Generate(_ context.Context, req *services.GenerateRequest) (*services.GenerateResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, *req)
	if g.err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUpstreamGeneration, g.err)
	}
	return &services.GenerateResult{Content: fmt.Sprintf("reply %d", len(g.calls)), Model: req.Model}, nil
}

func (g *fakeGenerator) failWith(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.err = err
}

func (g *fakeGenerator) lastCall() services.GenerateRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[len(g.calls)-1]
}

type fakeAttachments struct {
	mu      sync.Mutex
	enabled bool
	failOn  string
	keys    []string
	deleted []string
}

func (a *fakeAttachments) Put(_ context.Context, messageID int64, up services.Upload) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if up.Filename == a.failOn {
		return "", errors.New("bucket unavailable")
	}
	key := fmt.Sprintf("messages/%d/%s", messageID, up.Filename)
	a.keys = append(a.keys, key)
	return key, nil
}

func (a *fakeAttachments) Delete(_ context.Context, key string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.deleted = append(a.deleted, key)
	return nil
}

// failingPatches rejects every UpdateFields call.
type failingPatches struct {
	repositories.MessageRepository
}

func (failingPatches) UpdateFields(context.Context, int64, models.MessagePatch) error {
	return errors.New("connection reset")
}

func (a *fakeAttachments) Enabled() bool { return a.enabled }

// contendedMessages fails the first n LockChain calls with chain contention.
type contendedMessages struct {
	repositories.MessageRepository
	remaining atomic.Int32
}

func (c *contendedMessages) LockChain(ctx context.Context, rootID int64) error {
	if c.remaining.Add(-1) >= 0 {
		return fmt.Errorf("lock chain %d: %w", rootID, domain.ErrChainContention)
	}
	return c.MessageRepository.LockChain(ctx, rootID)
}

type fixture struct {
	store *memory.Store
	svc   *Service
	gen   *fakeGenerator
	files *fakeAttachments
	model *models.AIModel
}

func newFixture(t *testing.T, wrap func(repositories.MessageRepository) repositories.MessageRepository) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := memory.NewStore()

	model := &models.AIModel{Name: "lorem-fast", Provider: "lorem", IsDefault: true, Active: true}
	require.NoError(t, store.AIModels().Upsert(context.Background(), model))

	msgs := store.Messages()
	if wrap != nil {
		msgs = wrap(msgs)
	}

	f := &fixture{
		store: store,
		gen:   &fakeGenerator{},
		files: &fakeAttachments{enabled: true},
		model: model,
	}
	f.svc = NewService(
		store.Conversations(),
		msgs,
		store.Feedback(),
		store.AIModels(),
		store.UserSettings(),
		store.TransactionManager(),
		auth.NewRoleAuthorizer(logger),
		f.gen,
		f.files,
		&config.Config{RegenerateMaxRetries: 5},
		logger,
	)
	return f
}

func (f *fixture) send(t *testing.T, convID *int64, content string) *services.SendMessageResult {
	t.Helper()
	res, err := f.svc.Send(context.Background(), alice, &services.SendMessageRequest{
		ConversationID: convID,
		Content:        content,
	})
	require.NoError(t, err)
	return res
}

func (f *fixture) regenerate(t *testing.T, messageID int64) *services.RegenerateResult {
	t.Helper()
	res, err := f.svc.Regenerate(context.Background(), alice, &services.RegenerateRequest{MessageID: messageID})
	require.NoError(t, err)
	return res
}

func positions(versions []models.VersionSummary) []int {
	out := make([]int, len(versions))
	for i, v := range versions {
		out[i] = v.Position
	}
	return out
}

func TestSend_CreatesConversationAndChainRoot(t *testing.T) {
	f := newFixture(t, nil)

	res := f.send(t, nil, "  hello there  ")

	require.NotNil(t, res.Conversation)
	assert.Equal(t, "alice", res.Conversation.UserID)
	assert.Equal(t, config.DefaultConversationTitle, res.Conversation.Title)

	assert.Equal(t, "hello there", res.UserMessage.Content)
	assert.Equal(t, models.SenderUser, res.UserMessage.Sender)

	bot := res.BotMessage
	assert.True(t, bot.IsChainRoot())
	assert.Equal(t, 0, bot.VersionPosition)
	assert.Equal(t, models.StatusCompleted, bot.Status)
	assert.Equal(t, "reply 1", bot.Content)
	require.NotNil(t, bot.ParentID)
	assert.Equal(t, res.UserMessage.ID, *bot.ParentID)
	require.NotNil(t, bot.AIModelID)
	assert.Equal(t, f.model.ID, *bot.AIModelID)

	call := f.gen.lastCall()
	assert.Equal(t, "lorem-fast", call.Model)
	assert.Equal(t, "lorem", call.Provider)
	assert.Equal(t, []services.ContextMessage{{Role: "user", Content: "hello there"}}, call.History)
}

func TestSend_ContinuesConversationWithHistory(t *testing.T) {
	f := newFixture(t, nil)
	first := f.send(t, nil, "one")

	second := f.send(t, &first.Conversation.ID, "two")

	assert.Equal(t, first.Conversation.ID, second.Conversation.ID)
	assert.Equal(t, []services.ContextMessage{
		{Role: "user", Content: "one"},
		{Role: "assistant", Content: "reply 1"},
		{Role: "user", Content: "two"},
	}, f.gen.lastCall().History)
}

func TestSend_Validation(t *testing.T) {
	f := newFixture(t, nil)
	big := make([]services.Upload, config.MaxAttachments+1)
	for i := range big {
		big[i] = services.Upload{Filename: fmt.Sprintf("f%d.txt", i), Body: bytes.NewReader(nil)}
	}

	tests := []struct {
		name string
		req  *services.SendMessageRequest
	}{
		{"blank content", &services.SendMessageRequest{Content: "   "}},
		{"too long", &services.SendMessageRequest{Content: string(make([]byte, config.MaxMessageContentLength+1))}},
		{"too many attachments", &services.SendMessageRequest{Content: "hi", Attachments: big}},
		{"oversized attachment", &services.SendMessageRequest{Content: "hi", Attachments: []services.Upload{
			{Filename: "big.bin", Size: config.MaxAttachmentBytes + 1},
		}}},
		{"unknown model", &services.SendMessageRequest{Content: "hi", AIModelID: ptr(int64(9999))}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Send(context.Background(), alice, tt.req)
			assert.ErrorIs(t, err, domain.ErrValidation)
		})
	}

	page, _, err := f.store.Conversations().List(context.Background(), models.ConversationFilter{UserID: "alice", Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, page)
}

func TestSend_StoresAttachments(t *testing.T) {
	f := newFixture(t, nil)

	res, err := f.svc.Send(context.Background(), alice, &services.SendMessageRequest{
		Content: "see files",
		Attachments: []services.Upload{
			{Filename: "a.txt", Size: 3, Body: bytes.NewReader([]byte("abc"))},
			{Filename: "b.txt", Size: 3, Body: bytes.NewReader([]byte("def"))},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, 2, res.UserMessage.AttachmentCount)
	assert.Len(t, f.files.keys, 2)
	assert.Equal(t, 2, f.gen.lastCall().AttachmentCount)

	stored, err := f.store.Messages().Get(context.Background(), res.UserMessage.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.AttachmentCount)
}

func TestSend_AttachmentFailureDiscardsUploads(t *testing.T) {
	uploads := func() []services.Upload {
		return []services.Upload{
			{Filename: "a.txt", Size: 3, Body: bytes.NewReader([]byte("abc"))},
			{Filename: "b.txt", Size: 3, Body: bytes.NewReader([]byte("def"))},
		}
	}

	t.Run("later upload fails", func(t *testing.T) {
		f := newFixture(t, nil)
		f.files.failOn = "b.txt"

		_, err := f.svc.Send(context.Background(), alice, &services.SendMessageRequest{Content: "files", Attachments: uploads()})
		require.Error(t, err)

		require.Len(t, f.files.keys, 1)
		assert.Equal(t, f.files.keys, f.files.deleted)
		assert.Empty(t, f.gen.calls, "no reply is generated")

		convs, _, err := f.store.Conversations().List(context.Background(), models.ConversationFilter{UserID: "alice"})
		require.NoError(t, err)
		assert.Empty(t, convs, "conversation creation rolled back")
	})

	t.Run("attachment count update fails", func(t *testing.T) {
		f := newFixture(t, func(r repositories.MessageRepository) repositories.MessageRepository {
			return failingPatches{r}
		})

		_, err := f.svc.Send(context.Background(), alice, &services.SendMessageRequest{Content: "files", Attachments: uploads()})
		require.Error(t, err)

		require.Len(t, f.files.keys, 2)
		assert.ElementsMatch(t, f.files.keys, f.files.deleted)
	})
}

func TestSend_AttachmentsDisabled(t *testing.T) {
	f := newFixture(t, nil)
	f.files.enabled = false

	_, err := f.svc.Send(context.Background(), alice, &services.SendMessageRequest{
		Content:     "hi",
		Attachments: []services.Upload{{Filename: "a.txt", Size: 1}},
	})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestSend_OtherUsersConversation(t *testing.T) {
	f := newFixture(t, nil)
	res := f.send(t, nil, "mine")

	_, err := f.svc.Send(context.Background(), bob, &services.SendMessageRequest{
		ConversationID: &res.Conversation.ID,
		Content:        "intrude",
	})
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = f.svc.Send(context.Background(), admin, &services.SendMessageRequest{
		ConversationID: &res.Conversation.ID,
		Content:        "moderate",
	})
	assert.NoError(t, err)
}

func TestSend_GenerationFailureIsPersisted(t *testing.T) {
	f := newFixture(t, nil)
	f.gen.failWith(errors.New("provider down"))

	_, err := f.svc.Send(context.Background(), alice, &services.SendMessageRequest{Content: "hi"})
	require.ErrorIs(t, err, domain.ErrUpstreamGeneration)

	var genErr *domain.GenerationFailedError
	require.ErrorAs(t, err, &genErr)

	stored, err := f.store.Messages().Get(context.Background(), genErr.MessageID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, stored.Status)
	require.NotNil(t, stored.Error)
	assert.Contains(t, *stored.Error, "provider down")
	assert.True(t, stored.IsChainRoot())
}

func TestSend_UsesPreferredModel(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	pref := &models.AIModel{Name: "lorem-slow", Provider: "lorem", Active: true}
	require.NoError(t, f.store.AIModels().Upsert(ctx, pref))
	require.NoError(t, f.store.UserSettings().Upsert(ctx, &models.UserSettings{UserID: "alice", PreferredAIModelID: &pref.ID, Language: "en"}))

	res := f.send(t, nil, "hi")
	assert.Equal(t, pref.ID, *res.BotMessage.AIModelID)
	assert.Equal(t, "lorem-slow", f.gen.lastCall().Model)
}

func TestRegenerate_ChainScenario(t *testing.T) {
	f := newFixture(t, nil)
	sent := f.send(t, nil, "question")
	root := sent.BotMessage

	v1 := f.regenerate(t, root.ID)
	assert.Equal(t, 1, v1.Message.VersionPosition)
	assert.Equal(t, root.ID, *v1.Message.ChainRootID)
	assert.Equal(t, root.ParentID, v1.Message.ParentID)
	assert.Equal(t, []int{0, 1}, positions(v1.Versions))

	v2 := f.regenerate(t, v1.Message.ID)
	assert.Equal(t, 2, v2.Message.VersionPosition)
	assert.Equal(t, root.ID, *v2.Message.ChainRootID)
	assert.Equal(t, []int{0, 1, 2}, positions(v2.Versions))

	page, err := f.svc.Page(context.Background(), alice, sent.Conversation.ID, &services.PageRequest{IncludeVersions: true})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.Equal(t, 2, page.Total)

	assert.Equal(t, sent.UserMessage.ID, page.Items[0].Message.ID)
	bot := page.Items[1]
	assert.Equal(t, v2.Message.ID, bot.Message.ID)
	assert.Equal(t, []int{0, 1, 2}, positions(bot.Versions))

	// regeneration context ends at the parent user message
	assert.Equal(t, []services.ContextMessage{{Role: "user", Content: "question"}}, f.gen.lastCall().History)
}

func TestRegenerate_Errors(t *testing.T) {
	f := newFixture(t, nil)
	sent := f.send(t, nil, "question")

	_, err := f.svc.Regenerate(context.Background(), alice, &services.RegenerateRequest{MessageID: sent.UserMessage.ID})
	assert.ErrorIs(t, err, domain.ErrInvalidOperation)

	_, err = f.svc.Regenerate(context.Background(), alice, &services.RegenerateRequest{MessageID: 424242})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.svc.Regenerate(context.Background(), bob, &services.RegenerateRequest{MessageID: sent.BotMessage.ID})
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = f.svc.Regenerate(context.Background(), alice, &services.RegenerateRequest{MessageID: sent.BotMessage.ID, AIModelID: ptr(int64(777))})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestRegenerate_ModelOverride(t *testing.T) {
	f := newFixture(t, nil)
	other := &models.AIModel{Name: "lorem-slow", Provider: "lorem", Active: true}
	require.NoError(t, f.store.AIModels().Upsert(context.Background(), other))
	sent := f.send(t, nil, "question")

	res, err := f.svc.Regenerate(context.Background(), alice, &services.RegenerateRequest{MessageID: sent.BotMessage.ID, AIModelID: &other.ID})
	require.NoError(t, err)
	assert.Equal(t, other.ID, *res.Message.AIModelID)
	assert.Equal(t, "lorem-slow", f.gen.lastCall().Model)

	// without an override the version keeps the model of the message it came from
	again := f.regenerate(t, res.Message.ID)
	assert.Equal(t, other.ID, *again.Message.AIModelID)
}

func TestRegenerate_ConcurrentPositionsAreGapless(t *testing.T) {
	f := newFixture(t, nil)
	sent := f.send(t, nil, "question")

	const writers = 20
	var g errgroup.Group
	for i := 0; i < writers; i++ {
		g.Go(func() error {
			_, err := f.svc.Regenerate(context.Background(), alice, &services.RegenerateRequest{MessageID: sent.BotMessage.ID})
			return err
		})
	}
	require.NoError(t, g.Wait())

	versions, err := f.svc.Versions(context.Background(), alice, sent.BotMessage.ID)
	require.NoError(t, err)
	require.Len(t, versions, writers+1)
	for i, v := range versions {
		assert.Equal(t, i, v.Position)
	}
}

func TestRegenerate_TwoConcurrentOnFreshChain(t *testing.T) {
	f := newFixture(t, nil)
	sent := f.send(t, nil, "question")

	results := make([]*services.RegenerateResult, 2)
	var g errgroup.Group
	for i := range results {
		g.Go(func() error {
			res, err := f.svc.Regenerate(context.Background(), alice, &services.RegenerateRequest{MessageID: sent.BotMessage.ID})
			results[i] = res
			return err
		})
	}
	require.NoError(t, g.Wait())

	got := []int{results[0].Message.VersionPosition, results[1].Message.VersionPosition}
	sort.Ints(got)
	assert.Equal(t, []int{1, 2}, got)
}

func TestRegenerate_FailedGenerationConsumesPosition(t *testing.T) {
	f := newFixture(t, nil)
	sent := f.send(t, nil, "question")

	f.gen.failWith(errors.New("rate limited"))
	_, err := f.svc.Regenerate(context.Background(), alice, &services.RegenerateRequest{MessageID: sent.BotMessage.ID})
	var genErr *domain.GenerationFailedError
	require.ErrorAs(t, err, &genErr)

	failed, err := f.store.Messages().Get(context.Background(), genErr.MessageID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, failed.Status)
	assert.Equal(t, 1, failed.VersionPosition)

	f.gen.failWith(nil)
	next := f.regenerate(t, sent.BotMessage.ID)
	assert.Equal(t, 2, next.Message.VersionPosition)
	assert.Equal(t, []int{0, 1, 2}, positions(next.Versions))
	assert.Equal(t, models.StatusFailed, next.Versions[1].Status)
}

func TestRegenerate_RetriesContention(t *testing.T) {
	var wrapped *contendedMessages
	f := newFixture(t, func(inner repositories.MessageRepository) repositories.MessageRepository {
		wrapped = &contendedMessages{MessageRepository: inner}
		return wrapped
	})
	sent := f.send(t, nil, "question")

	wrapped.remaining.Store(2)
	res := f.regenerate(t, sent.BotMessage.ID)
	assert.Equal(t, 1, res.Message.VersionPosition)

	wrapped.remaining.Store(100)
	_, err := f.svc.Regenerate(context.Background(), alice, &services.RegenerateRequest{MessageID: sent.BotMessage.ID})
	assert.ErrorIs(t, err, domain.ErrChainContention)

	pos, err := f.store.Messages().MaxVersionPosition(context.Background(), sent.BotMessage.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, pos)
}

func TestPage_TotalMatchesItemsAcrossPages(t *testing.T) {
	f := newFixture(t, nil)
	first := f.send(t, nil, "one")
	convID := first.Conversation.ID
	second := f.send(t, &convID, "two")
	f.send(t, &convID, "three")

	f.regenerate(t, first.BotMessage.ID)
	f.regenerate(t, second.BotMessage.ID)
	f.regenerate(t, second.BotMessage.ID)

	var (
		seen  int
		bots  int
		total int
	)
	for p := 1; p <= 3; p++ {
		page, err := f.svc.Page(context.Background(), alice, convID, &services.PageRequest{Page: p, PerPage: 4})
		require.NoError(t, err)
		total = page.Total
		seen += len(page.Items)
		for _, item := range page.Items {
			if item.Message.IsBot() {
				bots++
			}
		}
	}

	assert.Equal(t, 6, total)
	assert.Equal(t, total, seen)
	assert.Equal(t, 3, bots, "one visible bot message per chain")
}

func TestPage_FeedbackFollowsChain(t *testing.T) {
	f := newFixture(t, nil)
	sent := f.send(t, nil, "question")
	ctx := context.Background()

	_, err := f.store.Feedback().Upsert(ctx, &models.Feedback{MessageID: sent.BotMessage.ID, UserID: "alice", FeedbackType: models.FeedbackLike})
	require.NoError(t, err)
	_, err = f.store.Feedback().Upsert(ctx, &models.Feedback{MessageID: sent.BotMessage.ID, UserID: "root", FeedbackType: models.FeedbackDislike})
	require.NoError(t, err)

	v1 := f.regenerate(t, sent.BotMessage.ID)

	page, err := f.svc.Page(ctx, alice, sent.Conversation.ID, &services.PageRequest{})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)

	bot := page.Items[1]
	assert.Equal(t, v1.Message.ID, bot.Message.ID)
	require.NotNil(t, bot.Feedback)
	assert.Equal(t, models.FeedbackLike, bot.Feedback.FeedbackType)
	assert.Nil(t, bot.Versions)
	assert.Nil(t, page.Items[0].Feedback)
}

func TestPage_Validation(t *testing.T) {
	f := newFixture(t, nil)
	sent := f.send(t, nil, "question")

	for _, req := range []*services.PageRequest{
		{PerPage: config.MaxPerPage + 1},
		{PerPage: -1},
		{Page: -2},
		{Page: config.MaxPage + 1},
		{Page: math.MaxInt/100 + 2, PerPage: 100},
	} {
		require.NotPanics(t, func() {
			_, err := f.svc.Page(context.Background(), alice, sent.Conversation.ID, req)
			assert.ErrorIs(t, err, domain.ErrValidation)
		})
	}

	page, err := f.svc.Page(context.Background(), alice, sent.Conversation.ID, &services.PageRequest{Page: 5})
	require.NoError(t, err)
	assert.Empty(t, page.Items)
	assert.Equal(t, 2, page.Total)
	assert.Equal(t, config.DefaultMessagesPerPage, page.PerPage)

	_, err = f.svc.Page(context.Background(), bob, sent.Conversation.ID, &services.PageRequest{})
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = f.svc.Page(context.Background(), alice, 9999, &services.PageRequest{})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestVersions_UserMessage(t *testing.T) {
	f := newFixture(t, nil)
	sent := f.send(t, nil, "question")

	_, err := f.svc.Versions(context.Background(), alice, sent.UserMessage.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidOperation)

	versions, err := f.svc.Versions(context.Background(), alice, sent.BotMessage.ID)
	require.NoError(t, err)
	assert.Equal(t, []int{0}, positions(versions))
}

func ptr[T any](v T) *T { return &v }

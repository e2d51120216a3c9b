package conversation

import (
	"context"
	"io"
	"log/slog"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parley/internal/config"
	"parley/internal/domain"
	"parley/internal/domain/models"
	"parley/internal/domain/services"
	"parley/internal/repository/memory"
	"parley/internal/service/auth"
)

var (
	alice = services.Identity{UserID: "alice"}
	bob   = services.Identity{UserID: "bob"}
	admin = services.Identity{UserID: "root", Role: services.RoleAdmin}
)

func newService(t *testing.T) (*Service, *memory.Store) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	// strictly increasing timestamps keep sort assertions deterministic
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	var tick int
	store := memory.NewStore(memory.WithClock(func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}))
	return NewService(store.Conversations(), auth.NewRoleAuthorizer(logger), logger), store
}

func TestCreate(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	conv, err := svc.Create(ctx, alice, &services.CreateConversationRequest{})
	require.NoError(t, err)
	assert.Equal(t, config.DefaultConversationTitle, conv.Title)
	assert.Equal(t, "alice", conv.UserID)

	named, err := svc.Create(ctx, alice, &services.CreateConversationRequest{Title: "  Trip plans "})
	require.NoError(t, err)
	assert.Equal(t, "Trip plans", named.Title)

	_, err = svc.Create(ctx, alice, &services.CreateConversationRequest{Title: strings.Repeat("x", config.MaxConversationTitleLength+1)})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = svc.Create(ctx, services.Identity{}, &services.CreateConversationRequest{})
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestGet_Ownership(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	conv, err := svc.Create(ctx, alice, &services.CreateConversationRequest{Title: "mine"})
	require.NoError(t, err)

	_, err = svc.Get(ctx, bob, conv.ID)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	got, err := svc.Get(ctx, admin, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, conv.ID, got.ID)

	_, err = svc.Get(ctx, alice, 9999)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestList(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	for _, title := range []string{"Alpha", "beta", "Alphabet soup"} {
		_, err := svc.Create(ctx, alice, &services.CreateConversationRequest{Title: title})
		require.NoError(t, err)
	}
	_, err := svc.Create(ctx, bob, &services.CreateConversationRequest{Title: "alpha of bob"})
	require.NoError(t, err)

	page, err := svc.List(ctx, alice, &services.ListConversationsRequest{})
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
	assert.Equal(t, config.DefaultConversationsPerPage, page.PerPage)
	assert.Equal(t, "Alphabet soup", page.Items[0].Title, "default sort is -updated_at")

	filtered, err := svc.List(ctx, alice, &services.ListConversationsRequest{Title: "ALPHA", Sort: "created_at"})
	require.NoError(t, err)
	require.Len(t, filtered.Items, 2)
	assert.Equal(t, "Alpha", filtered.Items[0].Title)

	paged, err := svc.List(ctx, alice, &services.ListConversationsRequest{Page: 2, PerPage: 2, Sort: "created_at"})
	require.NoError(t, err)
	assert.Equal(t, 3, paged.Total)
	require.Len(t, paged.Items, 1)
	assert.Equal(t, "Alphabet soup", paged.Items[0].Title)
}

func TestList_Validation(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	for _, req := range []*services.ListConversationsRequest{
		{Sort: "title"},
		{PerPage: config.MaxPerPage + 1},
		{Page: -1},
		{Page: config.MaxPage + 1},
		{Page: math.MaxInt/100 + 2, PerPage: 100},
	} {
		require.NotPanics(t, func() {
			_, err := svc.List(ctx, alice, req)
			assert.ErrorIs(t, err, domain.ErrValidation)
		})
	}

	page, err := svc.List(ctx, alice, &services.ListConversationsRequest{Page: config.MaxPage, PerPage: config.MaxPerPage})
	require.NoError(t, err)
	assert.Empty(t, page.Items)
}

func TestList_AllUsersRequiresAdmin(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	_, err := svc.Create(ctx, alice, &services.CreateConversationRequest{})
	require.NoError(t, err)
	_, err = svc.Create(ctx, bob, &services.CreateConversationRequest{})
	require.NoError(t, err)

	_, err = svc.List(ctx, alice, &services.ListConversationsRequest{AllUsers: true})
	assert.ErrorIs(t, err, domain.ErrForbidden)

	page, err := svc.List(ctx, admin, &services.ListConversationsRequest{AllUsers: true})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)
}

func TestUpdateTitle(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	conv, err := svc.Create(ctx, alice, &services.CreateConversationRequest{})
	require.NoError(t, err)

	updated, err := svc.UpdateTitle(ctx, alice, conv.ID, &services.UpdateConversationRequest{Title: "Renamed"})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Title)
	assert.True(t, updated.UpdatedAt.After(conv.UpdatedAt))

	_, err = svc.UpdateTitle(ctx, alice, conv.ID, &services.UpdateConversationRequest{Title: "  "})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = svc.UpdateTitle(ctx, bob, conv.ID, &services.UpdateConversationRequest{Title: "mine now"})
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestDeleteRestoreForceDelete(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()
	conv, err := svc.Create(ctx, alice, &services.CreateConversationRequest{Title: "temp"})
	require.NoError(t, err)

	_, err = svc.Restore(ctx, alice, conv.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidOperation)

	_, err = svc.Delete(ctx, bob, conv.ID)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	deleted, err := svc.Delete(ctx, alice, conv.ID)
	require.NoError(t, err)
	assert.True(t, deleted.IsDeleted())

	_, err = svc.Get(ctx, alice, conv.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	trashed, err := svc.List(ctx, alice, &services.ListConversationsRequest{Trashed: true})
	require.NoError(t, err)
	assert.Equal(t, 1, trashed.Total)

	restored, err := svc.Restore(ctx, alice, conv.ID)
	require.NoError(t, err)
	assert.False(t, restored.IsDeleted())

	msg := &models.Message{ConversationID: conv.ID, Sender: models.SenderUser, Content: "hi", Status: models.StatusCompleted}
	require.NoError(t, store.Messages().Create(ctx, msg))

	require.NoError(t, svc.ForceDelete(ctx, alice, conv.ID))
	_, err = store.Conversations().GetIncludingDeleted(ctx, conv.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = store.Messages().Get(ctx, msg.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

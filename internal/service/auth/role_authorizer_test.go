package auth

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"parley/internal/domain"
	"parley/internal/domain/services"
)

func TestRoleAuthorizer(t *testing.T) {
	a := NewRoleAuthorizer(slog.New(slog.NewTextHandler(io.Discard, nil)))
	owned := services.Resource{Type: "conversation", ID: 1, OwnerID: "alice"}

	tests := []struct {
		name     string
		identity services.Identity
		action   services.Action
		resource services.Resource
		wantErr  error
	}{
		{"owner may regenerate", services.Identity{UserID: "alice"}, services.ActionRegenerateMessage, owned, nil},
		{"stranger may not regenerate", services.Identity{UserID: "bob"}, services.ActionRegenerateMessage, owned, domain.ErrForbidden},
		{"admin may regenerate any", services.Identity{UserID: "root", Role: services.RoleAdmin}, services.ActionRegenerateMessage, owned, nil},
		{"user may not list all", services.Identity{UserID: "alice"}, services.ActionListAllConversations, services.Resource{}, domain.ErrForbidden},
		{"admin may list all", services.Identity{UserID: "root", Role: services.RoleAdmin}, services.ActionListAllConversations, services.Resource{}, nil},
		{"unknown role falls back to own", services.Identity{UserID: "alice", Role: "editor"}, services.ActionViewConversation, owned, nil},
		{"anonymous", services.Identity{}, services.ActionViewConversation, owned, domain.ErrUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := a.Authorize(context.Background(), tt.identity, tt.action, tt.resource)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

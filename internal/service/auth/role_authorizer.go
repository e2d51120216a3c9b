package auth

import (
	"context"
	"fmt"
	"log/slog"

	"parley/internal/domain"
	"parley/internal/domain/services"
)

// scope is how far a permission reaches.
type scope int

const (
	scopeNone scope = iota
	scopeOwn        // only resources the identity owns
	scopeAny        // every resource
)

// RoleAuthorizer grants each role a scope per action. Regular users hold
// "own" permissions; admins hold "any".
type RoleAuthorizer struct {
	grants map[string]map[services.Action]scope
	logger *slog.Logger
}

// defaultRole applies to identities without a recognized role.
const defaultRole = ""

// NewRoleAuthorizer creates the authorizer with the built-in role table.
func NewRoleAuthorizer(logger *slog.Logger) *RoleAuthorizer {
	own := map[services.Action]scope{
		services.ActionViewConversation:        scopeOwn,
		services.ActionUpdateConversation:      scopeOwn,
		services.ActionDeleteConversation:      scopeOwn,
		services.ActionRestoreConversation:     scopeOwn,
		services.ActionForceDeleteConversation: scopeOwn,
		services.ActionSendMessage:             scopeOwn,
		services.ActionRegenerateMessage:       scopeOwn,
		services.ActionGiveFeedback:            scopeOwn,
		services.ActionRemoveFeedback:          scopeOwn,
	}

	admin := map[services.Action]scope{
		services.ActionListAllConversations: scopeAny,
	}
	for action := range own {
		admin[action] = scopeAny
	}

	return &RoleAuthorizer{
		grants: map[string]map[services.Action]scope{
			defaultRole:        own,
			services.RoleAdmin: admin,
		},
		logger: logger,
	}
}

// Authorize returns nil if identity may perform action on resource.
func (a *RoleAuthorizer) Authorize(ctx context.Context, identity services.Identity, action services.Action, resource services.Resource) error {
	if identity.UserID == "" {
		return fmt.Errorf("%s: %w", action, domain.ErrUnauthorized)
	}

	grants, ok := a.grants[identity.Role]
	if !ok {
		grants = a.grants[defaultRole]
	}

	switch grants[action] {
	case scopeAny:
		return nil
	case scopeOwn:
		if resource.OwnerID == identity.UserID {
			return nil
		}
	}

	a.logger.Debug("authorization denied",
		"user_id", identity.UserID,
		"role", identity.Role,
		"action", action,
		"resource_type", resource.Type,
		"resource_id", resource.ID,
	)
	return fmt.Errorf("%s on %s %d: %w", action, resource.Type, resource.ID, domain.ErrForbidden)
}

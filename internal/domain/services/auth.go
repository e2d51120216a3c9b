package services

import "context"

// Identity is the authenticated caller. It is passed explicitly into every
// service call; services never look it up from ambient state.
type Identity struct {
	UserID string
	Role   string
}

// RoleAdmin grants the "any" permissions.
const RoleAdmin = "admin"

// IsAdmin reports whether the identity carries the admin role.
func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}

// Action names a guarded operation.
type Action string

const (
	ActionViewConversation        Action = "conversation.view"
	ActionListAllConversations    Action = "conversation.list_all"
	ActionUpdateConversation      Action = "conversation.update"
	ActionDeleteConversation      Action = "conversation.delete"
	ActionRestoreConversation     Action = "conversation.restore"
	ActionForceDeleteConversation Action = "conversation.force_delete"
	ActionSendMessage             Action = "message.send"
	ActionRegenerateMessage       Action = "message.regenerate"
	ActionGiveFeedback            Action = "feedback.give"
	ActionRemoveFeedback          Action = "feedback.remove"
)

// Resource is what an action targets. OwnerID is the user that owns it
// (the conversation owner, or the feedback author).
type Resource struct {
	Type    string
	ID      int64
	OwnerID string
}

// Authorizer decides whether an identity may perform an action.
// Returns nil when allowed and an error matching domain.ErrForbidden otherwise.
type Authorizer interface {
	Authorize(ctx context.Context, identity Identity, action Action, resource Resource) error
}

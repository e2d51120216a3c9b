package models

import "time"

// Conversation is an ordered set of messages owned by one user.
type Conversation struct {
	ID        int64      `json:"id" db:"id"`
	UserID    string     `json:"user_id" db:"user_id"`
	Title     string     `json:"title" db:"title"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty" db:"deleted_at"`
}

// IsDeleted reports whether the conversation has been soft-deleted.
func (c *Conversation) IsDeleted() bool {
	return c.DeletedAt != nil
}

// ConversationSort is a whitelisted ORDER BY for conversation listings.
// A leading "-" means descending.
type ConversationSort string

const (
	SortCreatedAsc  ConversationSort = "created_at"
	SortCreatedDesc ConversationSort = "-created_at"
	SortUpdatedAsc  ConversationSort = "updated_at"
	SortUpdatedDesc ConversationSort = "-updated_at"
)

// Valid reports whether s is one of the supported sort keys.
func (s ConversationSort) Valid() bool {
	switch s {
	case SortCreatedAsc, SortCreatedDesc, SortUpdatedAsc, SortUpdatedDesc:
		return true
	}
	return false
}

// ConversationFilter narrows a conversation listing.
type ConversationFilter struct {
	UserID  string // empty means all users (admin listing)
	Title   string // case-insensitive substring
	Sort    ConversationSort
	Limit   int
	Offset  int
	Trashed bool // list soft-deleted conversations instead of live ones
}

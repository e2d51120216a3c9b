package services

import (
	"context"

	"parley/internal/domain/models"
)

// ConversationService defines the business logic for conversation management
type ConversationService interface {
	// Create starts an empty conversation owned by the caller
	Create(ctx context.Context, identity Identity, req *CreateConversationRequest) (*models.Conversation, error)

	// Get retrieves a conversation the caller may view
	Get(ctx context.Context, identity Identity, id int64) (*models.Conversation, error)

	// List returns a filtered, sorted page of the caller's conversations
	List(ctx context.Context, identity Identity, req *ListConversationsRequest) (*ConversationPage, error)

	// UpdateTitle renames a conversation
	UpdateTitle(ctx context.Context, identity Identity, id int64, req *UpdateConversationRequest) (*models.Conversation, error)

	// Delete soft-deletes a conversation
	Delete(ctx context.Context, identity Identity, id int64) (*models.Conversation, error)

	// Restore undoes a soft delete
	Restore(ctx context.Context, identity Identity, id int64) (*models.Conversation, error)

	// ForceDelete permanently removes a conversation with its messages and feedback
	ForceDelete(ctx context.Context, identity Identity, id int64) error
}

// CreateConversationRequest is the DTO for creating a conversation
type CreateConversationRequest struct {
	Title string `json:"title"`
}

// UpdateConversationRequest is the DTO for renaming a conversation
type UpdateConversationRequest struct {
	Title string `json:"title"`
}

// ListConversationsRequest is the DTO for listing conversations
type ListConversationsRequest struct {
	Title    string
	Sort     string
	Page     int
	PerPage  int
	AllUsers bool
	Trashed  bool
}

// ConversationPage is one page of a conversation listing
type ConversationPage struct {
	Items   []models.Conversation
	Total   int
	Page    int
	PerPage int
}

package services

import (
	"context"

	"parley/internal/domain/models"
)

// MessageService covers sending, regenerating and paging messages
type MessageService interface {
	// Send stores a user message, generates the bot reply and stores it as a
	// new chain root. Creates the conversation when ConversationID is nil.
	Send(ctx context.Context, identity Identity, req *SendMessageRequest) (*SendMessageResult, error)

	// Regenerate appends a new version to the chain of a bot message
	Regenerate(ctx context.Context, identity Identity, req *RegenerateRequest) (*RegenerateResult, error)

	// Page returns the visible messages of a conversation, one page at a time
	Page(ctx context.Context, identity Identity, conversationID int64, req *PageRequest) (*MessagePage, error)

	// Versions lists every version in the chain of a message, ascending
	Versions(ctx context.Context, identity Identity, messageID int64) ([]models.VersionSummary, error)
}

// SendMessageRequest is the DTO for sending a user message
type SendMessageRequest struct {
	ConversationID *int64
	Content        string
	AIModelID      *int64
	Attachments    []Upload
}

// SendMessageResult is what a send produced
type SendMessageResult struct {
	Conversation *models.Conversation
	UserMessage  *models.Message
	BotMessage   *models.Message
}

// RegenerateRequest is the DTO for regenerating a bot reply
type RegenerateRequest struct {
	MessageID int64
	AIModelID *int64 // overrides the reference message's model
}

// RegenerateResult is the new version plus the whole chain for a version picker
type RegenerateResult struct {
	Message  *models.Message
	Versions []models.VersionSummary
}

// PageRequest selects a page of visible messages
type PageRequest struct {
	Page            int
	PerPage         int
	IncludeVersions bool
}

// MessageView is one visible message with its enrichment
type MessageView struct {
	Message  models.Message
	Feedback *models.Feedback
	Versions []models.VersionSummary
}

// MessagePage is one page of a conversation's visible messages
type MessagePage struct {
	Items   []MessageView
	Total   int
	Page    int
	PerPage int
}

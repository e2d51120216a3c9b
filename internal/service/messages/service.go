// Package messages implements sending, regeneration and paged retrieval of
// conversation messages.
package messages

import (
	"context"
	"log/slog"

	"parley/internal/config"
	"parley/internal/domain/models"
	"parley/internal/domain/repositories"
	"parley/internal/domain/services"
	"parley/internal/service/chain"
)

// Service implements services.MessageService
type Service struct {
	conversations repositories.ConversationRepository
	messages      repositories.MessageRepository
	feedback      repositories.FeedbackRepository
	txManager     repositories.TransactionManager
	resolver      *modelResolver
	authorizer    services.Authorizer
	generator     services.Generator
	attachments   services.AttachmentStore
	maxRetries    uint64
	logger        *slog.Logger
}

// NewService creates the message service
func NewService(
	conversations repositories.ConversationRepository,
	messages repositories.MessageRepository,
	feedback repositories.FeedbackRepository,
	aiModels repositories.AIModelRepository,
	settings repositories.UserSettingsRepository,
	txManager repositories.TransactionManager,
	authorizer services.Authorizer,
	generator services.Generator,
	attachments services.AttachmentStore,
	cfg *config.Config,
	logger *slog.Logger,
) *Service {
	return &Service{
		conversations: conversations,
		messages:      messages,
		feedback:      feedback,
		txManager:     txManager,
		resolver:      &modelResolver{aiModels: aiModels, settings: settings},
		authorizer:    authorizer,
		generator:     generator,
		attachments:   attachments,
		maxRetries:    cfg.RegenerateMaxRetries,
		logger:        logger,
	}
}

var _ services.MessageService = (*Service)(nil)

// loadConversation fetches a live conversation and checks action against it.
func (s *Service) loadConversation(ctx context.Context, identity services.Identity, id int64, action services.Action) (*models.Conversation, error) {
	conv, err := s.conversations.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	resource := services.Resource{Type: "conversation", ID: conv.ID, OwnerID: conv.UserID}
	if err := s.authorizer.Authorize(ctx, identity, action, resource); err != nil {
		return nil, err
	}
	return conv, nil
}

// visibleHistory returns the visible messages of a conversation in display order.
func (s *Service) visibleHistory(ctx context.Context, conversationID int64) ([]models.Message, error) {
	raw, err := s.messages.ListByConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	visible := chain.ResolveVisible(raw)
	chain.SortForDisplay(visible)
	return visible, nil
}

// contextUpTo converts visible history into generation context, stopping after
// the message with id upTo. Failed bot replies carry no text and are skipped.
func contextUpTo(visible []models.Message, upTo int64) []services.ContextMessage {
	history := make([]services.ContextMessage, 0, len(visible))
	for _, m := range visible {
		switch {
		case !m.IsBot():
			history = append(history, services.ContextMessage{Role: "user", Content: m.Content})
		case m.Status == models.StatusCompleted:
			history = append(history, services.ContextMessage{Role: "assistant", Content: m.Content})
		}
		if m.ID == upTo {
			break
		}
	}
	return history
}

// Package feedback records likes and dislikes on bot replies. Feedback is
// always stored against the chain root so every version of a reply shares it.
package feedback

import (
	"context"
	"fmt"
	"log/slog"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"parley/internal/domain"
	"parley/internal/domain/models"
	"parley/internal/domain/repositories"
	"parley/internal/domain/services"
)

// Service implements services.FeedbackService
type Service struct {
	feedbackRepo     repositories.FeedbackRepository
	messageRepo      repositories.MessageRepository
	conversationRepo repositories.ConversationRepository
	txManager        repositories.TransactionManager
	authorizer       services.Authorizer
	logger           *slog.Logger
}

// NewService creates the feedback service
func NewService(
	feedbackRepo repositories.FeedbackRepository,
	messageRepo repositories.MessageRepository,
	conversationRepo repositories.ConversationRepository,
	txManager repositories.TransactionManager,
	authorizer services.Authorizer,
	logger *slog.Logger,
) *Service {
	return &Service{
		feedbackRepo:     feedbackRepo,
		messageRepo:      messageRepo,
		conversationRepo: conversationRepo,
		txManager:        txManager,
		authorizer:       authorizer,
		logger:           logger,
	}
}

var _ services.FeedbackService = (*Service)(nil)

// SetFeedback creates or updates the caller's feedback on the chain of messageID.
// Resubmitting the same type leaves the stored row untouched.
func (s *Service) SetFeedback(ctx context.Context, identity services.Identity, messageID int64, req *services.SetFeedbackRequest) (*models.Feedback, error) {
	if err := validation.ValidateStruct(req,
		validation.Field(&req.FeedbackType,
			validation.Required,
			validation.In(string(models.FeedbackLike), string(models.FeedbackDislike)),
		),
	); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	rootID, err := s.authorizedRoot(ctx, identity, messageID, services.ActionGiveFeedback)
	if err != nil {
		return nil, err
	}

	var stored *models.Feedback
	err = s.txManager.ExecTx(ctx, func(ctx context.Context) error {
		if err := s.messageRepo.LockChain(ctx, rootID); err != nil {
			return err
		}
		var err error
		stored, err = s.feedbackRepo.Upsert(ctx, &models.Feedback{
			MessageID:    rootID,
			UserID:       identity.UserID,
			FeedbackType: models.FeedbackType(req.FeedbackType),
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("feedback recorded",
		"feedback_id", stored.ID,
		"message_id", messageID,
		"chain_root_id", rootID,
		"user_id", identity.UserID,
		"type", stored.FeedbackType,
	)
	return stored, nil
}

// GetFeedback returns the caller's feedback on the chain of messageID.
func (s *Service) GetFeedback(ctx context.Context, identity services.Identity, messageID int64) (*models.Feedback, error) {
	rootID, err := s.authorizedRoot(ctx, identity, messageID, services.ActionViewConversation)
	if err != nil {
		return nil, err
	}
	return s.feedbackRepo.GetForUser(ctx, rootID, identity.UserID)
}

// RemoveFeedback deletes feedback by ID. Only its author or an admin may.
func (s *Service) RemoveFeedback(ctx context.Context, identity services.Identity, feedbackID int64) error {
	fb, err := s.feedbackRepo.Get(ctx, feedbackID)
	if err != nil {
		return err
	}

	resource := services.Resource{Type: "feedback", ID: fb.ID, OwnerID: fb.UserID}
	if err := s.authorizer.Authorize(ctx, identity, services.ActionRemoveFeedback, resource); err != nil {
		return err
	}

	if err := s.feedbackRepo.Delete(ctx, fb.ID); err != nil {
		return err
	}

	s.logger.Info("feedback removed",
		"feedback_id", fb.ID,
		"chain_root_id", fb.MessageID,
		"user_id", identity.UserID,
	)
	return nil
}

// RemoveFeedbackForMessage deletes the caller's feedback on the chain of messageID.
func (s *Service) RemoveFeedbackForMessage(ctx context.Context, identity services.Identity, messageID int64) error {
	rootID, err := s.authorizedRoot(ctx, identity, messageID, services.ActionViewConversation)
	if err != nil {
		return err
	}
	fb, err := s.feedbackRepo.GetForUser(ctx, rootID, identity.UserID)
	if err != nil {
		return err
	}
	return s.RemoveFeedback(ctx, identity, fb.ID)
}

// authorizedRoot loads a bot message, checks action against its conversation
// and returns the message's chain root id.
func (s *Service) authorizedRoot(ctx context.Context, identity services.Identity, messageID int64, action services.Action) (int64, error) {
	msg, err := s.messageRepo.Get(ctx, messageID)
	if err != nil {
		return 0, err
	}
	if !msg.IsBot() {
		return 0, &domain.InvalidOperationError{Reason: "feedback applies to bot messages only"}
	}

	conv, err := s.conversationRepo.Get(ctx, msg.ConversationID)
	if err != nil {
		return 0, err
	}
	resource := services.Resource{Type: "conversation", ID: conv.ID, OwnerID: conv.UserID}
	if err := s.authorizer.Authorize(ctx, identity, action, resource); err != nil {
		return 0, err
	}
	return msg.RootID(), nil
}

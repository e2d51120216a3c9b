package messages

import (
	"context"
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"parley/internal/config"
	"parley/internal/domain"
	"parley/internal/domain/models"
	"parley/internal/domain/services"
)

// Send stores a user message and its generated reply. The reply becomes the
// root of a new chain. A failed generation is stored with status=failed and
// reported as *domain.GenerationFailedError.
func (s *Service) Send(ctx context.Context, identity services.Identity, req *services.SendMessageRequest) (*services.SendMessageResult, error) {
	if identity.UserID == "" {
		return nil, domain.ErrUnauthorized
	}
	if err := s.validateSendRequest(req); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	var conv *models.Conversation
	if req.ConversationID != nil {
		var err error
		conv, err = s.loadConversation(ctx, identity, *req.ConversationID, services.ActionSendMessage)
		if err != nil {
			return nil, err
		}
	}

	model, err := s.resolver.resolve(ctx, req.AIModelID, identity.UserID)
	if err != nil {
		return nil, err
	}

	userMsg := &models.Message{
		Sender:    models.SenderUser,
		Content:   strings.TrimSpace(req.Content),
		AIModelID: &model.ID,
		Status:    models.StatusCompleted,
	}

	// keys of blobs uploaded for userMsg; removed again if its row rolls back
	var storedKeys []string
	err = s.txManager.ExecTx(ctx, func(ctx context.Context) error {
		if conv == nil {
			conv = &models.Conversation{
				UserID: identity.UserID,
				Title:  config.DefaultConversationTitle,
			}
			if err := s.conversations.Create(ctx, conv); err != nil {
				return fmt.Errorf("create conversation: %w", err)
			}
		}

		userMsg.ConversationID = conv.ID
		if err := s.messages.Create(ctx, userMsg); err != nil {
			return fmt.Errorf("create user message: %w", err)
		}

		return s.storeAttachments(ctx, userMsg, req.Attachments, &storedKeys)
	})
	if err != nil {
		s.discardAttachments(ctx, storedKeys)
		return nil, err
	}

	visible, err := s.visibleHistory(ctx, conv.ID)
	if err != nil {
		return nil, err
	}
	gen, genErr := s.generator.Generate(ctx, &services.GenerateRequest{
		Model:           model.Name,
		Provider:        model.Provider,
		History:         contextUpTo(visible, userMsg.ID),
		AttachmentCount: userMsg.AttachmentCount,
	})

	botMsg := &models.Message{
		ConversationID: conv.ID,
		ParentID:       &userMsg.ID,
		Sender:         models.SenderBot,
		AIModelID:      &model.ID,
	}
	applyGeneration(botMsg, gen, genErr)

	err = s.txManager.ExecTx(ctx, func(ctx context.Context) error {
		if err := s.messages.Create(ctx, botMsg); err != nil {
			return fmt.Errorf("create bot message: %w", err)
		}
		return s.conversations.Touch(ctx, conv.ID)
	})
	if err != nil {
		return nil, err
	}

	if genErr != nil {
		s.logger.Warn("reply generation failed",
			"conversation_id", conv.ID,
			"message_id", botMsg.ID,
			"model", model.Name,
			"error", genErr,
		)
		return nil, &domain.GenerationFailedError{MessageID: botMsg.ID, Cause: genErr}
	}

	s.logger.Info("message sent",
		"conversation_id", conv.ID,
		"user_message_id", userMsg.ID,
		"bot_message_id", botMsg.ID,
		"model", model.Name,
		"attachments", userMsg.AttachmentCount,
	)

	return &services.SendMessageResult{
		Conversation: conv,
		UserMessage:  userMsg,
		BotMessage:   botMsg,
	}, nil
}

func (s *Service) validateSendRequest(req *services.SendMessageRequest) error {
	err := validation.ValidateStruct(req,
		validation.Field(&req.Content,
			validation.By(notBlank),
			validation.RuneLength(0, config.MaxMessageContentLength),
		),
		validation.Field(&req.Attachments, validation.Length(0, config.MaxAttachments)),
	)
	if err != nil {
		return err
	}

	if len(req.Attachments) > 0 && !s.attachments.Enabled() {
		return validation.Errors{"attachments": validation.NewError("validation_attachments_disabled", "attachments are not accepted")}
	}
	for i, up := range req.Attachments {
		if up.Size > config.MaxAttachmentBytes {
			return validation.Errors{"attachments": validation.NewError("validation_attachment_size",
				fmt.Sprintf("attachment %d (%s) exceeds %d bytes", i, up.Filename, config.MaxAttachmentBytes))}
		}
		if strings.TrimSpace(up.Filename) == "" {
			return validation.Errors{"attachments": validation.NewError("validation_attachment_name",
				fmt.Sprintf("attachment %d has no filename", i))}
		}
	}
	return nil
}

func notBlank(value interface{}) error {
	s, _ := value.(string)
	if strings.TrimSpace(s) == "" {
		return validation.NewError("validation_required", "cannot be blank")
	}
	return nil
}

// storeAttachments uploads the files and records how many were stored. Every
// key put is appended to stored, including when a later step fails.
func (s *Service) storeAttachments(ctx context.Context, msg *models.Message, uploads []services.Upload, stored *[]string) error {
	if len(uploads) == 0 {
		return nil
	}
	for _, up := range uploads {
		key, err := s.attachments.Put(ctx, msg.ID, up)
		if err != nil {
			return fmt.Errorf("store attachment %s: %w", up.Filename, err)
		}
		*stored = append(*stored, key)
		s.logger.Debug("attachment stored", "message_id", msg.ID, "key", key)
	}

	count := len(uploads)
	if err := s.messages.UpdateFields(ctx, msg.ID, models.MessagePatch{AttachmentCount: &count}); err != nil {
		return fmt.Errorf("record attachments: %w", err)
	}
	msg.AttachmentCount = count
	return nil
}

// discardAttachments removes blobs whose message row was rolled back. Failures
// are logged only; the request already fails with the transaction error.
func (s *Service) discardAttachments(ctx context.Context, keys []string) {
	ctx = context.WithoutCancel(ctx)
	for _, key := range keys {
		if err := s.attachments.Delete(ctx, key); err != nil {
			s.logger.Error("failed to discard orphaned attachment", "key", key, "error", err)
			continue
		}
		s.logger.Debug("orphaned attachment discarded", "key", key)
	}
}

// applyGeneration fills a bot message from a generation outcome.
func applyGeneration(msg *models.Message, gen *services.GenerateResult, genErr error) {
	if genErr != nil {
		errText := genErr.Error()
		msg.Status = models.StatusFailed
		msg.Error = &errText
		msg.Content = ""
		return
	}
	msg.Status = models.StatusCompleted
	msg.Content = gen.Content
}

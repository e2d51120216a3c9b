package messages

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"parley/internal/domain"
	"parley/internal/domain/models"
	"parley/internal/domain/services"
	"parley/internal/metrics"
	"parley/internal/service/chain"
)

// Regenerate appends a new version to the chain of req.MessageID, which may be
// the chain root or any of its versions. The new version takes the next free
// position under the chain lock; contention is retried with backoff.
func (s *Service) Regenerate(ctx context.Context, identity services.Identity, req *services.RegenerateRequest) (*services.RegenerateResult, error) {
	ref, err := s.messages.Get(ctx, req.MessageID)
	if err != nil {
		return nil, err
	}
	if !ref.IsBot() {
		return nil, &domain.InvalidOperationError{Reason: "only bot messages can be regenerated"}
	}

	conv, err := s.loadConversation(ctx, identity, ref.ConversationID, services.ActionRegenerateMessage)
	if err != nil {
		return nil, err
	}

	root := ref
	if !ref.IsChainRoot() {
		root, err = s.messages.Get(ctx, ref.RootID())
		if err != nil {
			return nil, fmt.Errorf("load chain root: %w", err)
		}
	}

	model, err := s.regenerationModel(ctx, req.AIModelID, ref, identity.UserID)
	if err != nil {
		return nil, err
	}

	visible, err := s.visibleHistory(ctx, conv.ID)
	if err != nil {
		return nil, err
	}
	gen, genErr := s.generator.Generate(ctx, &services.GenerateRequest{
		Model:    model.Name,
		Provider: model.Provider,
		History:  regenerationContext(visible, root),
	})

	msg, err := s.appendVersion(ctx, conv.ID, root, model.ID, gen, genErr)
	if err != nil {
		if errors.Is(err, domain.ErrChainContention) {
			metrics.RecordRegeneration(metrics.OutcomeContention)
		} else {
			metrics.RecordRegeneration(metrics.OutcomeError)
		}
		return nil, err
	}

	if genErr != nil {
		metrics.RecordRegeneration(metrics.OutcomeFailed)
		s.logger.Warn("regeneration failed",
			"message_id", msg.ID,
			"chain_root_id", root.ID,
			"position", msg.VersionPosition,
			"error", genErr,
		)
		return nil, &domain.GenerationFailedError{MessageID: msg.ID, Cause: genErr}
	}
	metrics.RecordRegeneration(metrics.OutcomeCompleted)

	versions, err := s.messages.GetChainVersions(ctx, []int64{root.ID})
	if err != nil {
		return nil, fmt.Errorf("get chain versions: %w", err)
	}

	s.logger.Info("message regenerated",
		"message_id", msg.ID,
		"chain_root_id", root.ID,
		"position", msg.VersionPosition,
		"model", model.Name,
	)

	return &services.RegenerateResult{
		Message:  msg,
		Versions: chain.Summaries(versions[root.ID]),
	}, nil
}

// regenerationModel prefers the override, then the model of the message being
// regenerated, then the usual defaults.
func (s *Service) regenerationModel(ctx context.Context, override *int64, ref *models.Message, userID string) (*models.AIModel, error) {
	if override != nil {
		return s.resolver.explicit(ctx, *override)
	}
	if ref.AIModelID != nil {
		model, err := s.resolver.aiModels.Get(ctx, *ref.AIModelID)
		if err == nil && model.Active {
			return model, nil
		}
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
	}
	return s.resolver.resolve(ctx, nil, userID)
}

// appendVersion runs the locked section: read the chain's highest position and
// insert the next one. ErrChainContention is retried, everything else is final.
func (s *Service) appendVersion(ctx context.Context, conversationID int64, root *models.Message, modelID int64, gen *services.GenerateResult, genErr error) (*models.Message, error) {
	var created *models.Message

	operation := func() error {
		msg := &models.Message{
			ConversationID: conversationID,
			ParentID:       root.ParentID,
			Sender:         models.SenderBot,
			AIModelID:      &modelID,
			ChainRootID:    &root.ID,
		}
		applyGeneration(msg, gen, genErr)

		err := s.txManager.ExecTx(ctx, func(ctx context.Context) error {
			if err := s.messages.LockChain(ctx, root.ID); err != nil {
				return err
			}
			highest, err := s.messages.MaxVersionPosition(ctx, root.ID)
			if err != nil {
				return fmt.Errorf("read chain position: %w", err)
			}
			msg.VersionPosition = highest + 1
			if err := s.messages.Create(ctx, msg); err != nil {
				return err
			}
			return s.conversations.Touch(ctx, conversationID)
		})
		if err != nil {
			if errors.Is(err, domain.ErrChainContention) {
				return err
			}
			return backoff.Permanent(err)
		}
		created = msg
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(newRetryBackOff(), s.maxRetries), ctx)
	notify := func(err error, wait time.Duration) {
		metrics.RecordContentionRetry()
		s.logger.Debug("chain contention, retrying",
			"chain_root_id", root.ID,
			"wait", wait,
			"error", err,
		)
	}
	if err := backoff.RetryNotify(operation, policy, notify); err != nil {
		return nil, err
	}
	return created, nil
}

func newRetryBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 20 * time.Millisecond
	b.MaxInterval = time.Second
	b.MaxElapsedTime = 10 * time.Second
	return b
}

// regenerationContext is the visible history up to and including the chain's
// parent. Without a parent it is everything before the chain root.
func regenerationContext(visible []models.Message, root *models.Message) []services.ContextMessage {
	if root.ParentID != nil {
		return contextUpTo(visible, *root.ParentID)
	}

	before := make([]models.Message, 0, len(visible))
	for _, m := range visible {
		if m.RootID() == root.ID || m.CreatedAt.After(root.CreatedAt) {
			break
		}
		before = append(before, m)
	}
	return contextUpTo(before, 0)
}

package messages

import (
	"context"
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"golang.org/x/sync/errgroup"

	"parley/internal/config"
	"parley/internal/domain"
	"parley/internal/domain/models"
	"parley/internal/domain/services"
	"parley/internal/service/chain"
)

// Page returns one page of the conversation's visible messages in display
// order. Bot items carry the caller's feedback on their chain and, when asked,
// the chain's version list.
func (s *Service) Page(ctx context.Context, identity services.Identity, conversationID int64, req *services.PageRequest) (*services.MessagePage, error) {
	page, perPage, err := normalizePage(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	if _, err := s.loadConversation(ctx, identity, conversationID, services.ActionViewConversation); err != nil {
		return nil, err
	}

	visible, err := s.visibleHistory(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	window := chain.Window(visible, page, perPage)

	rootIDs := make([]int64, 0, len(window))
	for i := range window {
		if window[i].IsBot() {
			rootIDs = append(rootIDs, window[i].RootID())
		}
	}

	var (
		feedback map[int64]models.Feedback
		versions map[int64][]models.Message
	)
	if len(rootIDs) > 0 {
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			feedback, err = s.feedback.ListForMessages(gctx, rootIDs, identity.UserID)
			if err != nil {
				return fmt.Errorf("list feedback: %w", err)
			}
			return nil
		})
		if req.IncludeVersions {
			g.Go(func() error {
				var err error
				versions, err = s.messages.GetChainVersions(gctx, rootIDs)
				if err != nil {
					return fmt.Errorf("get chain versions: %w", err)
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	items := make([]services.MessageView, len(window))
	for i, m := range window {
		items[i] = services.MessageView{Message: m}
		if !m.IsBot() {
			continue
		}
		root := m.RootID()
		if fb, ok := feedback[root]; ok {
			items[i].Feedback = &fb
		}
		if req.IncludeVersions {
			items[i].Versions = chain.Summaries(versions[root])
		}
	}

	return &services.MessagePage{
		Items:   items,
		Total:   len(visible),
		Page:    page,
		PerPage: perPage,
	}, nil
}

// Versions lists every version of the chain containing messageID, ascending.
func (s *Service) Versions(ctx context.Context, identity services.Identity, messageID int64) ([]models.VersionSummary, error) {
	msg, err := s.messages.Get(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if !msg.IsBot() {
		return nil, &domain.InvalidOperationError{Reason: "user messages have no versions"}
	}
	if _, err := s.loadConversation(ctx, identity, msg.ConversationID, services.ActionViewConversation); err != nil {
		return nil, err
	}

	root := msg.RootID()
	versions, err := s.messages.GetChainVersions(ctx, []int64{root})
	if err != nil {
		return nil, fmt.Errorf("get chain versions: %w", err)
	}
	return chain.Summaries(versions[root]), nil
}

// normalizePage applies defaults and bounds to a page request.
func normalizePage(req *services.PageRequest) (int, int, error) {
	page, perPage := req.Page, req.PerPage
	if page == 0 {
		page = 1
	}
	if perPage == 0 {
		perPage = config.DefaultMessagesPerPage
	}
	err := validation.Errors{
		"page":     validation.Validate(page, validation.Min(1), validation.Max(config.MaxPage)),
		"per_page": validation.Validate(perPage, validation.Min(1), validation.Max(config.MaxPerPage)),
	}.Filter()
	return page, perPage, err
}

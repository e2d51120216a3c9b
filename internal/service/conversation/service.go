// Package conversation implements conversation management: creation,
// listing, renaming and soft or permanent deletion.
package conversation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"parley/internal/config"
	"parley/internal/domain"
	"parley/internal/domain/models"
	"parley/internal/domain/repositories"
	"parley/internal/domain/services"
	"parley/internal/service/chain"
)

// Service implements services.ConversationService
type Service struct {
	conversationRepo repositories.ConversationRepository
	authorizer       services.Authorizer
	logger           *slog.Logger
}

// NewService creates a new conversation service
func NewService(
	conversationRepo repositories.ConversationRepository,
	authorizer services.Authorizer,
	logger *slog.Logger,
) *Service {
	return &Service{
		conversationRepo: conversationRepo,
		authorizer:       authorizer,
		logger:           logger,
	}
}

var _ services.ConversationService = (*Service)(nil)

// Create starts an empty conversation owned by the caller
func (s *Service) Create(ctx context.Context, identity services.Identity, req *services.CreateConversationRequest) (*models.Conversation, error) {
	if identity.UserID == "" {
		return nil, domain.ErrUnauthorized
	}
	if err := validateTitle(req.Title, false); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = config.DefaultConversationTitle
	}

	conv := &models.Conversation{
		UserID: identity.UserID,
		Title:  title,
	}
	if err := s.conversationRepo.Create(ctx, conv); err != nil {
		return nil, err
	}

	s.logger.Info("conversation created",
		"id", conv.ID,
		"title", conv.Title,
		"user_id", identity.UserID,
	)
	return conv, nil
}

// Get retrieves a conversation the caller may view
func (s *Service) Get(ctx context.Context, identity services.Identity, id int64) (*models.Conversation, error) {
	conv, err := s.conversationRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, identity, services.ActionViewConversation, conv); err != nil {
		return nil, err
	}
	return conv, nil
}

// List returns a page of conversations. Regular users only ever see their
// own; AllUsers requires the list-all permission.
func (s *Service) List(ctx context.Context, identity services.Identity, req *services.ListConversationsRequest) (*services.ConversationPage, error) {
	if identity.UserID == "" {
		return nil, domain.ErrUnauthorized
	}

	page, perPage := req.Page, req.PerPage
	if page == 0 {
		page = 1
	}
	if perPage == 0 {
		perPage = config.DefaultConversationsPerPage
	}
	sort := models.ConversationSort(req.Sort)
	if sort == "" {
		sort = models.SortUpdatedDesc
	}

	err := validation.Errors{
		"page":     validation.Validate(page, validation.Min(1), validation.Max(config.MaxPage)),
		"per_page": validation.Validate(perPage, validation.Min(1), validation.Max(config.MaxPerPage)),
		"sort": validation.Validate(sort, validation.By(func(interface{}) error {
			if !sort.Valid() {
				return validation.NewError("validation_sort", "must be one of created_at, -created_at, updated_at, -updated_at")
			}
			return nil
		})),
		"title": validation.Validate(req.Title, validation.RuneLength(0, config.MaxConversationTitleLength)),
	}.Filter()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	filter := models.ConversationFilter{
		UserID:  identity.UserID,
		Title:   strings.TrimSpace(req.Title),
		Sort:    sort,
		Limit:   perPage,
		Offset:  (page - 1) * perPage,
		Trashed: req.Trashed,
	}
	if req.AllUsers {
		if err := s.authorizer.Authorize(ctx, identity, services.ActionListAllConversations, services.Resource{Type: "conversation"}); err != nil {
			return nil, err
		}
		filter.UserID = ""
	}

	items, total, err := s.conversationRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("conversations listed",
		"user_id", identity.UserID,
		"all_users", req.AllUsers,
		"total", total,
		"page", page,
		"last_page", chain.LastPage(total, perPage),
	)

	return &services.ConversationPage{
		Items:   items,
		Total:   total,
		Page:    page,
		PerPage: perPage,
	}, nil
}

// UpdateTitle renames a conversation
func (s *Service) UpdateTitle(ctx context.Context, identity services.Identity, id int64, req *services.UpdateConversationRequest) (*models.Conversation, error) {
	if err := validateTitle(req.Title, true); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	conv, err := s.conversationRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, identity, services.ActionUpdateConversation, conv); err != nil {
		return nil, err
	}

	updated, err := s.conversationRepo.UpdateTitle(ctx, id, strings.TrimSpace(req.Title))
	if err != nil {
		return nil, err
	}

	s.logger.Info("conversation renamed", "id", id, "title", updated.Title)
	return updated, nil
}

// Delete soft-deletes a conversation
func (s *Service) Delete(ctx context.Context, identity services.Identity, id int64) (*models.Conversation, error) {
	conv, err := s.conversationRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, identity, services.ActionDeleteConversation, conv); err != nil {
		return nil, err
	}

	deleted, err := s.conversationRepo.SoftDelete(ctx, id)
	if err != nil {
		return nil, err
	}

	s.logger.Info("conversation deleted", "id", id, "user_id", identity.UserID)
	return deleted, nil
}

// Restore undoes a soft delete
func (s *Service) Restore(ctx context.Context, identity services.Identity, id int64) (*models.Conversation, error) {
	conv, err := s.conversationRepo.GetIncludingDeleted(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, identity, services.ActionRestoreConversation, conv); err != nil {
		return nil, err
	}
	if !conv.IsDeleted() {
		return nil, &domain.InvalidOperationError{Reason: "conversation is not deleted"}
	}

	restored, err := s.conversationRepo.Restore(ctx, id)
	if err != nil {
		return nil, err
	}

	s.logger.Info("conversation restored", "id", id, "user_id", identity.UserID)
	return restored, nil
}

// ForceDelete permanently removes a conversation with its messages and feedback
func (s *Service) ForceDelete(ctx context.Context, identity services.Identity, id int64) error {
	conv, err := s.conversationRepo.GetIncludingDeleted(ctx, id)
	if err != nil {
		return err
	}
	if err := s.authorize(ctx, identity, services.ActionForceDeleteConversation, conv); err != nil {
		return err
	}

	if err := s.conversationRepo.Delete(ctx, id); err != nil {
		return err
	}

	s.logger.Info("conversation force deleted", "id", id, "user_id", identity.UserID)
	return nil
}

func (s *Service) authorize(ctx context.Context, identity services.Identity, action services.Action, conv *models.Conversation) error {
	resource := services.Resource{Type: "conversation", ID: conv.ID, OwnerID: conv.UserID}
	return s.authorizer.Authorize(ctx, identity, action, resource)
}

func validateTitle(title string, required bool) error {
	rules := []validation.Rule{validation.RuneLength(0, config.MaxConversationTitleLength)}
	if required {
		rules = append(rules, validation.By(func(value interface{}) error {
			if strings.TrimSpace(value.(string)) == "" {
				return validation.NewError("validation_required", "cannot be blank")
			}
			return nil
		}))
	}
	return validation.Errors{"title": validation.Validate(title, rules...)}.Filter()
}

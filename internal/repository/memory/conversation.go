package memory

import (
	"context"
	"sort"
	"strings"

	"parley/internal/domain"
	"parley/internal/domain/models"
)

type conversationRepo struct {
	s *Store
}

func (r *conversationRepo) Create(ctx context.Context, conv *models.Conversation) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if conv.CreatedAt.IsZero() {
		conv.CreatedAt = s.now()
	}
	if conv.UpdatedAt.IsZero() {
		conv.UpdatedAt = conv.CreatedAt
	}
	conv.ID = s.nextID()

	stored := *conv
	s.conversations[stored.ID] = &stored
	recordUndo(ctx, func() { delete(s.conversations, stored.ID) })
	return nil
}

func (r *conversationRepo) Get(ctx context.Context, id int64) (*models.Conversation, error) {
	return r.get(id, false)
}

func (r *conversationRepo) GetIncludingDeleted(ctx context.Context, id int64) (*models.Conversation, error) {
	return r.get(id, true)
}

func (r *conversationRepo) get(id int64, withDeleted bool) (*models.Conversation, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.conversations[id]
	if !ok || (!withDeleted && c.IsDeleted()) {
		return nil, domain.NewNotFound("conversation", id)
	}
	out := *c
	return &out, nil
}

func (r *conversationRepo) List(ctx context.Context, filter models.ConversationFilter) ([]models.Conversation, int, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	title := strings.ToLower(filter.Title)
	matched := []models.Conversation{}
	for _, c := range s.conversations {
		if c.IsDeleted() != filter.Trashed {
			continue
		}
		if filter.UserID != "" && c.UserID != filter.UserID {
			continue
		}
		if title != "" && !strings.Contains(strings.ToLower(c.Title), title) {
			continue
		}
		matched = append(matched, *c)
	}

	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		switch filter.Sort {
		case models.SortCreatedAsc:
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.Before(b.CreatedAt)
			}
			return a.ID < b.ID
		case models.SortCreatedDesc:
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.After(b.CreatedAt)
			}
			return a.ID > b.ID
		case models.SortUpdatedAsc:
			if !a.UpdatedAt.Equal(b.UpdatedAt) {
				return a.UpdatedAt.Before(b.UpdatedAt)
			}
			return a.ID < b.ID
		default:
			if !a.UpdatedAt.Equal(b.UpdatedAt) {
				return a.UpdatedAt.After(b.UpdatedAt)
			}
			return a.ID > b.ID
		}
	})

	total := len(matched)
	start := min(max(filter.Offset, 0), total)
	end := total
	if filter.Limit > 0 {
		end = min(start+filter.Limit, total)
	}
	return matched[start:end], total, nil
}

func (r *conversationRepo) UpdateTitle(ctx context.Context, id int64, title string) (*models.Conversation, error) {
	return r.update(ctx, id, func(c *models.Conversation) bool {
		if c.IsDeleted() {
			return false
		}
		c.Title = title
		c.UpdatedAt = r.s.now()
		return true
	})
}

func (r *conversationRepo) Touch(ctx context.Context, id int64) error {
	_, err := r.update(ctx, id, func(c *models.Conversation) bool {
		c.UpdatedAt = r.s.now()
		return true
	})
	return err
}

func (r *conversationRepo) SoftDelete(ctx context.Context, id int64) (*models.Conversation, error) {
	return r.update(ctx, id, func(c *models.Conversation) bool {
		if c.IsDeleted() {
			return false
		}
		now := r.s.now()
		c.DeletedAt = &now
		return true
	})
}

func (r *conversationRepo) Restore(ctx context.Context, id int64) (*models.Conversation, error) {
	return r.update(ctx, id, func(c *models.Conversation) bool {
		if !c.IsDeleted() {
			return false
		}
		c.DeletedAt = nil
		c.UpdatedAt = r.s.now()
		return true
	})
}

// update applies fn under the store lock; fn returns false when the row does
// not match the update's WHERE clause.
func (r *conversationRepo) update(ctx context.Context, id int64, fn func(*models.Conversation) bool) (*models.Conversation, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.conversations[id]
	if !ok {
		return nil, domain.NewNotFound("conversation", id)
	}
	before := *c
	if !fn(c) {
		*c = before
		return nil, domain.NewNotFound("conversation", id)
	}
	recordUndo(ctx, func() { *c = before })

	out := *c
	return &out, nil
}

func (r *conversationRepo) Delete(ctx context.Context, id int64) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.conversations[id]
	if !ok {
		return domain.NewNotFound("conversation", id)
	}

	removedMessages := map[int64]*models.Message{}
	for mid, m := range s.messages {
		if m.ConversationID == id {
			removedMessages[mid] = m
			delete(s.messages, mid)
		}
	}
	removedFeedback := map[int64]*models.Feedback{}
	for fid, fb := range s.feedback {
		if _, gone := removedMessages[fb.MessageID]; gone {
			removedFeedback[fid] = fb
			delete(s.feedback, fid)
		}
	}
	delete(s.conversations, id)

	recordUndo(ctx, func() {
		s.conversations[id] = c
		for mid, m := range removedMessages {
			s.messages[mid] = m
		}
		for fid, fb := range removedFeedback {
			s.feedback[fid] = fb
		}
	})
	return nil
}

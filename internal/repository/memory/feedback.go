package memory

import (
	"context"
	"fmt"

	"parley/internal/domain"
	"parley/internal/domain/models"
)

type feedbackRepo struct {
	s *Store
}

func (r *feedbackRepo) Upsert(ctx context.Context, fb *models.Feedback) (*models.Feedback, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.messages[fb.MessageID]; !ok {
		return nil, domain.NewNotFound("message", fb.MessageID)
	}

	now := s.now()
	for _, existing := range s.feedback {
		if existing.MessageID == fb.MessageID && existing.UserID == fb.UserID {
			if existing.FeedbackType != fb.FeedbackType {
				before := *existing
				existing.FeedbackType = fb.FeedbackType
				existing.UpdatedAt = now
				recordUndo(ctx, func() { *existing = before })
			}
			out := *existing
			return &out, nil
		}
	}

	stored := &models.Feedback{
		ID:           s.nextID(),
		MessageID:    fb.MessageID,
		UserID:       fb.UserID,
		FeedbackType: fb.FeedbackType,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.feedback[stored.ID] = stored
	recordUndo(ctx, func() { delete(s.feedback, stored.ID) })

	out := *stored
	return &out, nil
}

func (r *feedbackRepo) Get(ctx context.Context, id int64) (*models.Feedback, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	fb, ok := s.feedback[id]
	if !ok {
		return nil, domain.NewNotFound("feedback", id)
	}
	out := *fb
	return &out, nil
}

func (r *feedbackRepo) GetForUser(ctx context.Context, rootID int64, userID string) (*models.Feedback, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, fb := range s.feedback {
		if fb.MessageID == rootID && fb.UserID == userID {
			out := *fb
			return &out, nil
		}
	}
	return nil, &domain.NotFoundError{Resource: "feedback", ID: fmt.Sprintf("message %d", rootID)}
}

func (r *feedbackRepo) ListForMessages(ctx context.Context, rootIDs []int64, userID string) (map[int64]models.Feedback, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	wanted := make(map[int64]bool, len(rootIDs))
	for _, id := range rootIDs {
		wanted[id] = true
	}

	result := make(map[int64]models.Feedback, len(rootIDs))
	for _, fb := range s.feedback {
		if fb.UserID == userID && wanted[fb.MessageID] {
			result[fb.MessageID] = *fb
		}
	}
	return result, nil
}

func (r *feedbackRepo) Delete(ctx context.Context, id int64) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	fb, ok := s.feedback[id]
	if !ok {
		return domain.NewNotFound("feedback", id)
	}
	delete(s.feedback, id)
	recordUndo(ctx, func() { s.feedback[id] = fb })
	return nil
}

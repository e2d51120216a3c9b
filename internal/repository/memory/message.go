package memory

import (
	"context"
	"fmt"
	"sort"

	"parley/internal/domain"
	"parley/internal/domain/models"
)

type messageRepo struct {
	s *Store
}

func (r *messageRepo) Create(ctx context.Context, msg *models.Message) error {
	if err := msg.Validate(); err != nil {
		return fmt.Errorf("create message: %w: %v", domain.ErrValidation, err)
	}

	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.conversations[msg.ConversationID]; !ok {
		return fmt.Errorf("create message: %w: conversation %d does not exist", domain.ErrValidation, msg.ConversationID)
	}
	if msg.ChainRootID != nil {
		root, ok := s.messages[*msg.ChainRootID]
		if !ok || !root.IsChainRoot() {
			return fmt.Errorf("create message: %w: chain root %d does not exist", domain.ErrValidation, *msg.ChainRootID)
		}
		for _, m := range s.messages {
			if m.ChainRootID != nil && *m.ChainRootID == *msg.ChainRootID && m.VersionPosition == msg.VersionPosition {
				return fmt.Errorf("create message in chain %d: %w: position %d taken", *msg.ChainRootID, domain.ErrChainContention, msg.VersionPosition)
			}
		}
	}

	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = s.now()
	}
	if msg.UpdatedAt.IsZero() {
		msg.UpdatedAt = msg.CreatedAt
	}
	msg.ID = s.nextID()

	stored := *msg
	s.messages[stored.ID] = &stored
	recordUndo(ctx, func() { delete(s.messages, stored.ID) })
	return nil
}

func (r *messageRepo) Get(ctx context.Context, id int64) (*models.Message, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.messages[id]
	if !ok {
		return nil, domain.NewNotFound("message", id)
	}
	out := *m
	return &out, nil
}

func (r *messageRepo) UpdateFields(ctx context.Context, id int64, patch models.MessagePatch) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.messages[id]
	if !ok {
		return domain.NewNotFound("message", id)
	}

	before := *m
	if patch.Content != nil {
		m.Content = *patch.Content
	}
	if patch.Status != nil {
		m.Status = *patch.Status
	}
	if patch.Error != nil {
		m.Error = patch.Error
	}
	if patch.AttachmentCount != nil {
		m.AttachmentCount = *patch.AttachmentCount
	}
	m.UpdatedAt = s.now()

	recordUndo(ctx, func() { *m = before })
	return nil
}

func (r *messageRepo) LockChain(ctx context.Context, rootID int64) error {
	s := r.s
	s.mu.Lock()
	root, ok := s.messages[rootID]
	isRoot := ok && root.IsChainRoot()
	s.mu.Unlock()

	if !isRoot {
		return domain.NewNotFound("chain", rootID)
	}
	return s.lockChain(ctx, rootID)
}

func (r *messageRepo) MaxVersionPosition(ctx context.Context, rootID int64) (int, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	highest := 0
	for _, m := range s.messages {
		if m.ID == rootID || (m.ChainRootID != nil && *m.ChainRootID == rootID) {
			if m.VersionPosition > highest {
				highest = m.VersionPosition
			}
		}
	}
	return highest, nil
}

func (r *messageRepo) ListByConversation(ctx context.Context, conversationID int64) ([]models.Message, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []models.Message{}
	for _, m := range s.messages {
		if m.ConversationID == conversationID {
			out = append(out, *m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *messageRepo) GetChainVersions(ctx context.Context, rootIDs []int64) (map[int64][]models.Message, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	wanted := make(map[int64]bool, len(rootIDs))
	for _, id := range rootIDs {
		wanted[id] = true
	}

	result := make(map[int64][]models.Message, len(rootIDs))
	for _, m := range s.messages {
		if !m.IsBot() {
			continue
		}
		root := m.RootID()
		if wanted[root] {
			result[root] = append(result[root], *m)
		}
	}
	for root := range result {
		versions := result[root]
		sort.Slice(versions, func(i, j int) bool {
			if versions[i].VersionPosition != versions[j].VersionPosition {
				return versions[i].VersionPosition < versions[j].VersionPosition
			}
			return versions[i].ID < versions[j].ID
		})
	}
	return result, nil
}

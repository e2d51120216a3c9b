package memory

import (
	"context"
	"sort"

	"parley/internal/domain"
	"parley/internal/domain/models"
)

type aiModelRepo struct {
	s *Store
}

func (r *aiModelRepo) Upsert(ctx context.Context, model *models.AIModel) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for _, existing := range s.aiModels {
		if existing.Name == model.Name {
			existing.Provider = model.Provider
			existing.Description = model.Description
			existing.IsDefault = model.IsDefault
			existing.Active = model.Active
			existing.UpdatedAt = now
			*model = *existing
			return nil
		}
	}

	model.ID = s.nextID()
	model.CreatedAt = now
	model.UpdatedAt = now
	stored := *model
	s.aiModels[stored.ID] = &stored
	return nil
}

func (r *aiModelRepo) Get(ctx context.Context, id int64) (*models.AIModel, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.aiModels[id]
	if !ok {
		return nil, domain.NewNotFound("ai model", id)
	}
	out := *m
	return &out, nil
}

func (r *aiModelRepo) GetByName(ctx context.Context, name string) (*models.AIModel, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, m := range s.aiModels {
		if m.Name == name {
			out := *m
			return &out, nil
		}
	}
	return nil, &domain.NotFoundError{Resource: "ai model", ID: name}
}

func (r *aiModelRepo) ListActive(ctx context.Context) ([]models.AIModel, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []models.AIModel{}
	for _, m := range s.aiModels {
		if m.Active {
			out = append(out, *m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

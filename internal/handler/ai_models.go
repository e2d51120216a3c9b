package handler

import (
	"context"
	"log/slog"
	"net/http"

	"parley/internal/domain/models"
	"parley/internal/httputil"
)

// ModelLister lists the models users may select
type ModelLister interface {
	ListActive(ctx context.Context) ([]models.AIModel, error)
}

// AIModelHandler serves the model catalog
type AIModelHandler struct {
	models ModelLister
	logger *slog.Logger
}

// NewAIModelHandler creates a new AI model handler
func NewAIModelHandler(lister ModelLister, logger *slog.Logger) *AIModelHandler {
	return &AIModelHandler{
		models: lister,
		logger: logger,
	}
}

// ListModels returns the active models
// GET /api/ai-models
func (h *AIModelHandler) ListModels(w http.ResponseWriter, r *http.Request) {
	if _, ok := identity(w, r); !ok {
		return
	}

	list, err := h.models.ListActive(r.Context())
	if err != nil {
		handleError(w, err)
		return
	}
	if list == nil {
		list = []models.AIModel{}
	}

	httputil.RespondJSON(w, http.StatusOK, map[string]any{"data": list})
}

package handler

import (
	"log/slog"
	"net/http"

	"parley/internal/domain/services"
	"parley/internal/httputil"
)

// FeedbackHandler handles like/dislike HTTP requests
type FeedbackHandler struct {
	feedback services.FeedbackService
	logger   *slog.Logger
}

// NewFeedbackHandler creates a new feedback handler
func NewFeedbackHandler(feedback services.FeedbackService, logger *slog.Logger) *FeedbackHandler {
	return &FeedbackHandler{
		feedback: feedback,
		logger:   logger,
	}
}

// GetFeedback returns the caller's feedback on a message's chain
// GET /api/messages/{id}/feedback
func (h *FeedbackHandler) GetFeedback(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	msgID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	fb, err := h.feedback.GetFeedback(r.Context(), id, msgID)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, toFeedback(fb))
}

// SetFeedback creates or replaces the caller's feedback
// PUT /api/messages/{id}/feedback
func (h *FeedbackHandler) SetFeedback(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	msgID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req services.SetFeedbackRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		handleError(w, err)
		return
	}

	fb, err := h.feedback.SetFeedback(r.Context(), id, msgID, &req)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, toFeedback(fb))
}

// RemoveFeedbackForMessage deletes the caller's feedback on a message's chain
// DELETE /api/messages/{id}/feedback
func (h *FeedbackHandler) RemoveFeedbackForMessage(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	msgID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	if err := h.feedback.RemoveFeedbackForMessage(r.Context(), id, msgID); err != nil {
		handleError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// RemoveFeedback deletes feedback by id
// DELETE /api/feedback/{id}
func (h *FeedbackHandler) RemoveFeedback(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	fbID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	if err := h.feedback.RemoveFeedback(r.Context(), id, fbID); err != nil {
		handleError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

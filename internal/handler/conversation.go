package handler

import (
	"log/slog"
	"net/http"

	"parley/internal/domain/services"
	"parley/internal/httputil"
)

// ConversationHandler handles conversation HTTP requests
type ConversationHandler struct {
	conversations services.ConversationService
	messages      services.MessageService
	logger        *slog.Logger
}

// NewConversationHandler creates a new conversation handler
func NewConversationHandler(conversations services.ConversationService, messages services.MessageService, logger *slog.Logger) *ConversationHandler {
	return &ConversationHandler{
		conversations: conversations,
		messages:      messages,
		logger:        logger,
	}
}

// ListConversations returns a page of the caller's conversations
// GET /api/conversations
func (h *ConversationHandler) ListConversations(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	req := &services.ListConversationsRequest{
		Title: q.Get("title"),
		Sort:  q.Get("sort"),
	}
	var err error
	if req.Page, err = httputil.QueryInt(r, "page"); err != nil {
		handleError(w, err)
		return
	}
	if req.PerPage, err = httputil.QueryInt(r, "per_page"); err != nil {
		handleError(w, err)
		return
	}
	if req.AllUsers, err = httputil.QueryBool(r, "all_users"); err != nil {
		handleError(w, err)
		return
	}
	if req.Trashed, err = httputil.QueryBool(r, "trashed"); err != nil {
		handleError(w, err)
		return
	}

	page, err := h.conversations.List(r.Context(), id, req)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, toConversationPage(page))
}

// CreateConversation starts an empty conversation
// POST /api/conversations
func (h *ConversationHandler) CreateConversation(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	var req services.CreateConversationRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		handleError(w, err)
		return
	}

	conv, err := h.conversations.Create(r.Context(), id, &req)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusCreated, toConversation(conv))
}

// GetConversation returns the conversation with its first page of messages
// GET /api/conversations/{id}
func (h *ConversationHandler) GetConversation(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	convID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	pageReq, err := pageParams(r)
	if err != nil {
		handleError(w, err)
		return
	}

	conv, err := h.conversations.Get(r.Context(), id, convID)
	if err != nil {
		handleError(w, err)
		return
	}

	page, err := h.messages.Page(r.Context(), id, convID, pageReq)
	if err != nil {
		handleError(w, err)
		return
	}

	res := toConversation(conv)
	res.Messages = toMessagePage(page)
	httputil.RespondJSON(w, http.StatusOK, res)
}

// UpdateConversation renames a conversation
// PATCH /api/conversations/{id}
func (h *ConversationHandler) UpdateConversation(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	convID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req services.UpdateConversationRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		handleError(w, err)
		return
	}

	conv, err := h.conversations.UpdateTitle(r.Context(), id, convID, &req)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, toConversation(conv))
}

// DeleteConversation soft-deletes a conversation
// DELETE /api/conversations/{id}
func (h *ConversationHandler) DeleteConversation(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	convID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	conv, err := h.conversations.Delete(r.Context(), id, convID)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, toConversation(conv))
}

// RestoreConversation undoes a soft delete
// POST /api/conversations/{id}/restore
func (h *ConversationHandler) RestoreConversation(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	convID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	conv, err := h.conversations.Restore(r.Context(), id, convID)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, toConversation(conv))
}

// ForceDeleteConversation permanently removes a conversation
// DELETE /api/conversations/{id}/force
func (h *ConversationHandler) ForceDeleteConversation(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	convID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	if err := h.conversations.ForceDelete(r.Context(), id, convID); err != nil {
		handleError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

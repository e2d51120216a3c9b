package handler

import (
	"net/http"

	"parley/internal/httputil"
)

// Handlers groups every API handler for route registration
type Handlers struct {
	Conversations *ConversationHandler
	Messages      *MessageHandler
	Feedback      *FeedbackHandler
	AIModels      *AIModelHandler
	Settings      *SettingsHandler
}

// RegisterRoutes mounts the /api routes on mux. Callers wrap mux with auth.
func RegisterRoutes(mux *http.ServeMux, h Handlers) {
	// Conversations
	mux.HandleFunc("GET /api/conversations", h.Conversations.ListConversations)
	mux.HandleFunc("POST /api/conversations", h.Conversations.CreateConversation)
	mux.HandleFunc("GET /api/conversations/{id}", h.Conversations.GetConversation)
	mux.HandleFunc("PATCH /api/conversations/{id}", h.Conversations.UpdateConversation)
	mux.HandleFunc("DELETE /api/conversations/{id}", h.Conversations.DeleteConversation)
	mux.HandleFunc("POST /api/conversations/{id}/restore", h.Conversations.RestoreConversation)
	mux.HandleFunc("DELETE /api/conversations/{id}/force", h.Conversations.ForceDeleteConversation)

	// Messages
	mux.HandleFunc("GET /api/conversations/{id}/messages", h.Messages.ListMessages)
	mux.HandleFunc("POST /api/conversations/{id}/messages", h.Messages.SendToConversation)
	mux.HandleFunc("POST /api/messages", h.Messages.SendMessage)
	mux.HandleFunc("POST /api/messages/{id}/regenerate", h.Messages.RegenerateMessage)
	mux.HandleFunc("GET /api/messages/{id}/versions", h.Messages.ListVersions)

	// Feedback
	mux.HandleFunc("GET /api/messages/{id}/feedback", h.Feedback.GetFeedback)
	mux.HandleFunc("PUT /api/messages/{id}/feedback", h.Feedback.SetFeedback)
	mux.HandleFunc("DELETE /api/messages/{id}/feedback", h.Feedback.RemoveFeedbackForMessage)
	mux.HandleFunc("DELETE /api/feedback/{id}", h.Feedback.RemoveFeedback)

	// Catalog and settings
	mux.HandleFunc("GET /api/ai-models", h.AIModels.ListModels)
	mux.HandleFunc("GET /api/settings", h.Settings.GetSettings)
	mux.HandleFunc("PATCH /api/settings", h.Settings.UpdateSettings)
}

// HealthCheck is the liveness probe
// GET /health
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	httputil.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

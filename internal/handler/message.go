package handler

import (
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"parley/internal/config"
	"parley/internal/domain"
	"parley/internal/domain/services"
	"parley/internal/httputil"
)

const (
	// maxUploadBody bounds a multipart send: every attachment at its limit plus form fields
	maxUploadBody = config.MaxAttachments*config.MaxAttachmentBytes + 1<<20

	// multipartMemory is held in memory before parts spill to temp files
	multipartMemory = 8 << 20
)

// MessageHandler handles message HTTP requests
type MessageHandler struct {
	messages services.MessageService
	logger   *slog.Logger
}

// NewMessageHandler creates a new message handler
func NewMessageHandler(messages services.MessageService, logger *slog.Logger) *MessageHandler {
	return &MessageHandler{
		messages: messages,
		logger:   logger,
	}
}

type sendMessageBody struct {
	Content   string `json:"content"`
	AIModelID *int64 `json:"ai_model_id"`
}

type sendMessageResponse struct {
	Conversation conversationResource `json:"conversation"`
	UserMessage  messageResource      `json:"user_message"`
	BotMessage   messageResource      `json:"bot_message"`
}

type regenerateBody struct {
	AIModelID *int64 `json:"ai_model_id"`
}

type regenerateResponse struct {
	Message  messageResource   `json:"message"`
	Versions []versionResource `json:"versions"`
}

// ListMessages returns a page of the conversation's visible messages
// GET /api/conversations/{id}/messages
func (h *MessageHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	convID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	req, err := pageParams(r)
	if err != nil {
		handleError(w, err)
		return
	}

	page, err := h.messages.Page(r.Context(), id, convID, req)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, toMessagePage(page))
}

// SendToConversation posts a user message into an existing conversation
// POST /api/conversations/{id}/messages
func (h *MessageHandler) SendToConversation(w http.ResponseWriter, r *http.Request) {
	convID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	h.send(w, r, &convID)
}

// SendMessage posts a user message into a new conversation
// POST /api/messages
func (h *MessageHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	h.send(w, r, nil)
}

func (h *MessageHandler) send(w http.ResponseWriter, r *http.Request, convID *int64) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	req, cleanup, err := parseSendRequest(w, r)
	if err != nil {
		handleError(w, err)
		return
	}
	defer cleanup()
	req.ConversationID = convID

	result, err := h.messages.Send(r.Context(), id, req)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusCreated, sendMessageResponse{
		Conversation: toConversation(result.Conversation),
		UserMessage:  toMessage(result.UserMessage),
		BotMessage:   toMessage(result.BotMessage),
	})
}

// RegenerateMessage appends a new version to a bot reply's chain
// POST /api/messages/{id}/regenerate
func (h *MessageHandler) RegenerateMessage(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	msgID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var body regenerateBody
	if err := httputil.ParseJSON(w, r, &body); err != nil {
		handleError(w, err)
		return
	}

	result, err := h.messages.Regenerate(r.Context(), id, &services.RegenerateRequest{
		MessageID: msgID,
		AIModelID: body.AIModelID,
	})
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusCreated, regenerateResponse{
		Message:  toMessage(result.Message),
		Versions: toVersions(result.Versions),
	})
}

// ListVersions returns every version in the chain of a message
// GET /api/messages/{id}/versions
func (h *MessageHandler) ListVersions(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	msgID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	versions, err := h.messages.Versions(r.Context(), id, msgID)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, map[string]any{"data": toVersions(versions)})
}

// parseSendRequest accepts either a JSON body or multipart/form-data with
// content, ai_model_id and any number of "attachments" file parts. The
// returned cleanup closes opened files.
func parseSendRequest(w http.ResponseWriter, r *http.Request) (*services.SendMessageRequest, func(), error) {
	noop := func() {}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		var body sendMessageBody
		if err := httputil.ParseJSON(w, r, &body); err != nil {
			return nil, noop, err
		}
		return &services.SendMessageRequest{Content: body.Content, AIModelID: body.AIModelID}, noop, nil
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBody)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		return nil, noop, fmt.Errorf("%w: invalid multipart body: %v", domain.ErrValidation, err)
	}

	req := &services.SendMessageRequest{Content: r.FormValue("content")}
	if raw := strings.TrimSpace(r.FormValue("ai_model_id")); raw != "" {
		modelID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, noop, fmt.Errorf("%w: ai_model_id must be an integer", domain.ErrValidation)
		}
		req.AIModelID = &modelID
	}

	var opened []io.Closer
	cleanup := func() {
		for _, f := range opened {
			_ = f.Close()
		}
		_ = r.MultipartForm.RemoveAll()
	}

	for _, fh := range r.MultipartForm.File["attachments"] {
		f, err := fh.Open()
		if err != nil {
			cleanup()
			return nil, noop, fmt.Errorf("open attachment %s: %w", fh.Filename, err)
		}
		opened = append(opened, f)
		req.Attachments = append(req.Attachments, services.Upload{
			Filename:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Size:        fh.Size,
			Body:        f,
		})
	}

	return req, cleanup, nil
}

package handler

import (
	"time"

	"parley/internal/domain/models"
	"parley/internal/domain/services"
)

// messageResource is the wire shape of a message
type messageResource struct {
	ID              int64                `json:"id"`
	ConversationID  int64                `json:"conversation_id"`
	Sender          models.Sender        `json:"sender"`
	Content         string               `json:"content"`
	Status          models.MessageStatus `json:"status"`
	Error           *string              `json:"error,omitempty"`
	ParentID        *int64               `json:"parent_id"`
	AIModelID       *int64               `json:"ai_model_id"`
	ChainRootID     *int64               `json:"chain_root_id"`
	VersionPosition int                  `json:"version_position"`
	AttachmentCount int                  `json:"attachment_count"`
	CreatedAt       time.Time            `json:"created_at"`
	Feedback        *feedbackResource    `json:"feedback"`
	Versions        []versionResource    `json:"versions,omitempty"`
}

type versionResource struct {
	VersionIndex int                  `json:"version_index"`
	MessageID    int64                `json:"message_id"`
	Content      string               `json:"content"`
	Status       models.MessageStatus `json:"status"`
}

type feedbackResource struct {
	ID           int64               `json:"id"`
	MessageID    int64               `json:"message_id"`
	UserID       string              `json:"user_id"`
	FeedbackType models.FeedbackType `json:"feedback_type"`
	UpdatedAt    time.Time           `json:"updated_at"`
}

type conversationResource struct {
	ID        int64         `json:"id"`
	UserID    string        `json:"user_id"`
	Title     string        `json:"title"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
	DeletedAt *time.Time    `json:"deleted_at,omitempty"`
	Messages  *pageResource `json:"messages,omitempty"`
}

type pageMeta struct {
	Total    int `json:"total"`
	Page     int `json:"page"`
	PerPage  int `json:"per_page"`
	LastPage int `json:"last_page"`
}

type pageResource struct {
	Data any      `json:"data"`
	Meta pageMeta `json:"meta"`
}

func newPageMeta(total, page, perPage int) pageMeta {
	last := 1
	if perPage > 0 && total > 0 {
		last = (total + perPage - 1) / perPage
	}
	return pageMeta{Total: total, Page: page, PerPage: perPage, LastPage: last}
}

func toMessage(m *models.Message) messageResource {
	return messageResource{
		ID:              m.ID,
		ConversationID:  m.ConversationID,
		Sender:          m.Sender,
		Content:         m.Content,
		Status:          m.Status,
		Error:           m.Error,
		ParentID:        m.ParentID,
		AIModelID:       m.AIModelID,
		ChainRootID:     m.ChainRootID,
		VersionPosition: m.VersionPosition,
		AttachmentCount: m.AttachmentCount,
		CreatedAt:       m.CreatedAt,
	}
}

func toVersions(in []models.VersionSummary) []versionResource {
	out := make([]versionResource, len(in))
	for i, v := range in {
		out[i] = versionResource{
			VersionIndex: v.Position,
			MessageID:    v.MessageID,
			Content:      v.Content,
			Status:       v.Status,
		}
	}
	return out
}

func toFeedback(fb *models.Feedback) *feedbackResource {
	if fb == nil {
		return nil
	}
	return &feedbackResource{
		ID:           fb.ID,
		MessageID:    fb.MessageID,
		UserID:       fb.UserID,
		FeedbackType: fb.FeedbackType,
		UpdatedAt:    fb.UpdatedAt,
	}
}

func toConversation(c *models.Conversation) conversationResource {
	return conversationResource{
		ID:        c.ID,
		UserID:    c.UserID,
		Title:     c.Title,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
		DeletedAt: c.DeletedAt,
	}
}

func toMessagePage(p *services.MessagePage) *pageResource {
	items := make([]messageResource, len(p.Items))
	for i, view := range p.Items {
		res := toMessage(&view.Message)
		res.Feedback = toFeedback(view.Feedback)
		if view.Versions != nil {
			res.Versions = toVersions(view.Versions)
		}
		items[i] = res
	}
	return &pageResource{Data: items, Meta: newPageMeta(p.Total, p.Page, p.PerPage)}
}

func toConversationPage(p *services.ConversationPage) *pageResource {
	items := make([]conversationResource, len(p.Items))
	for i := range p.Items {
		items[i] = toConversation(&p.Items[i])
	}
	return &pageResource{Data: items, Meta: newPageMeta(p.Total, p.Page, p.PerPage)}
}

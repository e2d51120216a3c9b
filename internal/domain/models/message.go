package models

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Sender distinguishes the two kinds of message.
type Sender string

const (
	SenderUser Sender = "user"
	SenderBot  Sender = "bot"
)

// MessageStatus is the generation state of a message.
type MessageStatus string

const (
	StatusPending   MessageStatus = "pending"
	StatusCompleted MessageStatus = "completed"
	StatusFailed    MessageStatus = "failed"
)

// Message is either a user turn or one version of a bot reply.
//
// Bot replies form chains: the first reply has ChainRootID == nil and
// VersionPosition == 0, and every regeneration points at that root with a
// strictly increasing position. User messages never form chains.
type Message struct {
	ID              int64         `json:"id" db:"id"`
	ConversationID  int64         `json:"conversation_id" db:"conversation_id"`
	ParentID        *int64        `json:"parent_id,omitempty" db:"parent_id"`
	Sender          Sender        `json:"sender" db:"sender"`
	Content         string        `json:"content" db:"content"`
	AIModelID       *int64        `json:"ai_model_id,omitempty" db:"ai_model_id"`
	ChainRootID     *int64        `json:"chain_root_id,omitempty" db:"chain_root_id"`
	VersionPosition int           `json:"version_position" db:"version_position"`
	Status          MessageStatus `json:"status" db:"status"`
	Error           *string       `json:"error,omitempty" db:"error"`
	AttachmentCount int           `json:"attachment_count" db:"attachment_count"`
	CreatedAt       time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at" db:"updated_at"`
}

// IsBot reports whether the message is a bot reply.
func (m *Message) IsBot() bool {
	return m.Sender == SenderBot
}

// IsChainRoot reports whether the message starts a chain.
func (m *Message) IsChainRoot() bool {
	return m.IsBot() && m.ChainRootID == nil
}

// RootID returns the id of the chain this message belongs to.
// For user messages and chain roots this is the message's own id.
func (m *Message) RootID() int64 {
	if m.ChainRootID != nil {
		return *m.ChainRootID
	}
	return m.ID
}

// Validate checks the per-sender shape of a message before it is stored.
func (m *Message) Validate() error {
	err := validation.ValidateStruct(m,
		validation.Field(&m.ConversationID, validation.Required),
		validation.Field(&m.Sender, validation.Required, validation.In(SenderUser, SenderBot)),
		validation.Field(&m.Status, validation.Required, validation.In(StatusPending, StatusCompleted, StatusFailed)),
		validation.Field(&m.VersionPosition, validation.Min(0)),
		validation.Field(&m.AttachmentCount, validation.Min(0)),
	)
	if err != nil {
		return err
	}

	if m.Sender == SenderUser {
		return validation.Errors{
			"chain_root_id":    validation.Validate(m.ChainRootID, validation.Nil.Error("must be empty for user messages")),
			"version_position": validation.Validate(m.VersionPosition, validation.Empty.Error("must be 0 for user messages")),
		}.Filter()
	}

	// chain roots sit at 0, regenerations strictly above
	if m.ChainRootID == nil && m.VersionPosition != 0 {
		return validation.Errors{"version_position": validation.NewError("validation_root_position", "must be 0 for a chain root")}
	}
	if m.ChainRootID != nil && m.VersionPosition < 1 {
		return validation.Errors{"version_position": validation.NewError("validation_version_position", "must be at least 1 for a regeneration")}
	}
	return nil
}

// MessagePatch is a partial update of a message. Nil fields are left unchanged.
type MessagePatch struct {
	Content         *string
	Status          *MessageStatus
	Error           *string
	AttachmentCount *int
}

// VersionSummary is one entry of a chain's version list.
type VersionSummary struct {
	Position  int           `json:"version_index"`
	MessageID int64         `json:"message_id"`
	Content   string        `json:"content"`
	Status    MessageStatus `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
}

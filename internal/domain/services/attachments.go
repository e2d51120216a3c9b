package services

import (
	"context"
	"io"
)

// Upload is one file attached to a user message.
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// AttachmentStore is opaque blob storage keyed by message id. Only the number
// of stored attachments is recorded on the message.
type AttachmentStore interface {
	// Put stores the upload and returns its storage key
	Put(ctx context.Context, messageID int64, upload Upload) (string, error)

	// Delete removes a stored object by key. Missing keys are not an error.
	Delete(ctx context.Context, key string) error

	// Enabled reports whether uploads are accepted at all
	Enabled() bool
}

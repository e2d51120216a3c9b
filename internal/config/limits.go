package config

const (
	// MaxConversationTitleLength fits the VARCHAR(255) title column.
	MaxConversationTitleLength = 255

	// MaxMessageContentLength bounds a single user message.
	MaxMessageContentLength = 32000

	// MaxAttachments is the number of files accepted per user message.
	MaxAttachments = 5

	// MaxAttachmentBytes is the size limit of a single attachment.
	MaxAttachmentBytes = 10 << 20

	// DefaultConversationTitle is used when a conversation is created without one.
	DefaultConversationTitle = "New Conversation"

	// Conversation listing page sizes.
	DefaultConversationsPerPage = 15

	// Message page sizes.
	DefaultMessagesPerPage = 20

	// MaxPerPage caps every paginated listing.
	MaxPerPage = 100

	// MaxPage keeps (page-1)*per_page well inside a Postgres OFFSET.
	MaxPage = 1_000_000
)

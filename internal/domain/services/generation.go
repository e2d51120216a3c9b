package services

import "context"

// ContextMessage is one prior turn handed to the generation backend.
type ContextMessage struct {
	Role    string // "user" or "assistant"
	Content string
}

// GenerateRequest carries everything the backend needs to produce a reply.
type GenerateRequest struct {
	Model           string
	Provider        string
	History         []ContextMessage
	AttachmentCount int
}

// GenerateResult is the backend's reply text plus accounting.
type GenerateResult struct {
	Content      string
	Model        string
	InputTokens  int
	OutputTokens int
	StopReason   string
}

// Generator is the generation backend. The message services treat it as an
// opaque text-producing call made outside any chain lock.
type Generator interface {
	Generate(ctx context.Context, req *GenerateRequest) (*GenerateResult, error)
}

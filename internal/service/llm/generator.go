package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	llmprovider "github.com/haowjy/meridian-llm-go"

	"parley/internal/domain"
	"parley/internal/domain/services"
)

// TextProvider is the part of llmprovider.Provider the generator needs.
type TextProvider interface {
	SupportsModel(model string) bool
	GenerateResponse(ctx context.Context, req *llmprovider.GenerateRequest) (*llmprovider.GenerateResponse, error)
}

// ProviderSource resolves a provider name to a provider.
type ProviderSource func(name string) (TextProvider, error)

// FactorySource adapts a ProviderFactory to a ProviderSource.
func FactorySource(f *ProviderFactory) ProviderSource {
	return func(name string) (TextProvider, error) {
		return f.GetProvider(name)
	}
}

// ProviderGenerator implements services.Generator on top of meridian-llm-go.
type ProviderGenerator struct {
	providers       ProviderSource
	defaultProvider string
	onFailure       func(provider string)
	logger          *slog.Logger
}

// GeneratorOption configures a ProviderGenerator.
type GeneratorOption func(*ProviderGenerator)

// WithFailureHook registers a callback run on every failed generation.
func WithFailureHook(fn func(provider string)) GeneratorOption {
	return func(g *ProviderGenerator) { g.onFailure = fn }
}

// NewProviderGenerator creates a generator. defaultProvider is used when a
// request does not name one.
func NewProviderGenerator(providers ProviderSource, defaultProvider string, logger *slog.Logger, opts ...GeneratorOption) *ProviderGenerator {
	g := &ProviderGenerator{
		providers:       providers,
		defaultProvider: defaultProvider,
		onFailure:       func(string) {},
		logger:          logger,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate produces the reply text. Every failure wraps domain.ErrUpstreamGeneration.
func (g *ProviderGenerator) Generate(ctx context.Context, req *services.GenerateRequest) (*services.GenerateResult, error) {
	providerName := req.Provider
	if providerName == "" {
		providerName = g.defaultProvider
	}

	result, err := g.generate(ctx, providerName, req)
	if err != nil {
		g.onFailure(providerName)
		g.logger.Warn("generation failed",
			"provider", providerName,
			"model", req.Model,
			"error", err,
		)
		return nil, fmt.Errorf("%w: %v", domain.ErrUpstreamGeneration, err)
	}

	g.logger.Debug("generation completed",
		"provider", providerName,
		"model", result.Model,
		"input_tokens", result.InputTokens,
		"output_tokens", result.OutputTokens,
	)
	return result, nil
}

func (g *ProviderGenerator) generate(ctx context.Context, providerName string, req *services.GenerateRequest) (*services.GenerateResult, error) {
	provider, err := g.providers(providerName)
	if err != nil {
		return nil, err
	}
	if req.Model != "" && !provider.SupportsModel(req.Model) {
		return nil, fmt.Errorf("provider %s does not support model %s", providerName, req.Model)
	}

	resp, err := provider.GenerateResponse(ctx, BuildRequest(req))
	if err != nil {
		return nil, err
	}

	text := ResponseText(resp)
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("provider %s returned no text", providerName)
	}

	return &services.GenerateResult{
		Content:      text,
		Model:        resp.Model,
		InputTokens:  resp.InputTokens,
		OutputTokens: resp.OutputTokens,
		StopReason:   resp.StopReason,
	}, nil
}

// BuildRequest converts conversation history into a library request.
// Each turn becomes one message with a single text block.
func BuildRequest(req *services.GenerateRequest) *llmprovider.GenerateRequest {
	messages := make([]llmprovider.Message, 0, len(req.History))
	for _, turn := range req.History {
		content := turn.Content
		messages = append(messages, llmprovider.Message{
			Role: turn.Role,
			Blocks: []*llmprovider.Block{{
				BlockType:   "text",
				Sequence:    0,
				TextContent: &content,
			}},
		})
	}

	if req.AttachmentCount > 0 && len(messages) > 0 {
		note := fmt.Sprintf("[%d attachment(s) were uploaded with this message]", req.AttachmentCount)
		last := &messages[len(messages)-1]
		last.Blocks = append(last.Blocks, &llmprovider.Block{
			BlockType:   "text",
			Sequence:    1,
			TextContent: &note,
		})
	}

	return &llmprovider.GenerateRequest{
		Messages: messages,
		Model:    req.Model,
	}
}

// ResponseText joins the text blocks of a response.
func ResponseText(resp *llmprovider.GenerateResponse) string {
	var parts []string
	for _, block := range resp.Blocks {
		if block.TextContent == nil {
			continue
		}
		if block.BlockType != "" && block.BlockType != "text" {
			continue
		}
		parts = append(parts, *block.TextContent)
	}
	return strings.Join(parts, "")
}

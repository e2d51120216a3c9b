package llm

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	llmprovider "github.com/haowjy/meridian-llm-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parley/internal/config"
	"parley/internal/domain"
	"parley/internal/domain/services"
)

type stubProvider struct {
	models []string
	resp   *llmprovider.GenerateResponse
	err    error
	got    *llmprovider.GenerateRequest
}

func (p *stubProvider) SupportsModel(model string) bool {
	for _, m := range p.models {
		if m == model {
			return true
		}
	}
	return false
}

func (p *stubProvider) GenerateResponse(_ context.Context, req *llmprovider.GenerateRequest) (*llmprovider.GenerateResponse, error) {
	p.got = req
	return p.resp, p.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sourceOf(providers map[string]TextProvider) ProviderSource {
	return func(name string) (TextProvider, error) {
		p, ok := providers[name]
		if !ok {
			return nil, errors.New("unknown provider " + name)
		}
		return p, nil
	}
}

func TestBuildRequest(t *testing.T) {
	req := BuildRequest(&services.GenerateRequest{
		Model: "lorem-fast",
		History: []services.ContextMessage{
			{Role: "user", Content: "hello"},
			{Role: "assistant", Content: "hi"},
			{Role: "user", Content: "see attached"},
		},
		AttachmentCount: 2,
	})

	require.Len(t, req.Messages, 3)
	assert.Equal(t, "lorem-fast", req.Model)
	assert.Equal(t, "user", req.Messages[0].Role)
	assert.Equal(t, "assistant", req.Messages[1].Role)
	require.Len(t, req.Messages[0].Blocks, 1)
	assert.Equal(t, "hello", *req.Messages[0].Blocks[0].TextContent)

	last := req.Messages[2]
	require.Len(t, last.Blocks, 2)
	assert.Equal(t, "see attached", *last.Blocks[0].TextContent)
	assert.Contains(t, *last.Blocks[1].TextContent, "2 attachment(s)")
}

func TestBuildRequest_NoAttachmentNote(t *testing.T) {
	req := BuildRequest(&services.GenerateRequest{
		History: []services.ContextMessage{{Role: "user", Content: "q"}},
	})
	require.Len(t, req.Messages, 1)
	assert.Len(t, req.Messages[0].Blocks, 1)
}

func TestGenerate_UsesDefaultProvider(t *testing.T) {
	p := &stubProvider{models: []string{"lorem-fast"}, err: errors.New("boom")}
	var failed []string
	g := NewProviderGenerator(
		sourceOf(map[string]TextProvider{"lorem": p}),
		"lorem",
		discardLogger(),
		WithFailureHook(func(provider string) { failed = append(failed, provider) }),
	)

	_, err := g.Generate(context.Background(), &services.GenerateRequest{
		Model:   "lorem-fast",
		History: []services.ContextMessage{{Role: "user", Content: "q"}},
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUpstreamGeneration)
	assert.Contains(t, err.Error(), "boom")
	require.NotNil(t, p.got)
	assert.Equal(t, "lorem-fast", p.got.Model)
	assert.Equal(t, []string{"lorem"}, failed)
}

func TestGenerate_Failures(t *testing.T) {
	tests := []struct {
		name     string
		provider string
		model    string
		stub     *stubProvider
		wantMsg  string
	}{
		{
			name:     "unknown provider",
			provider: "missing",
			model:    "lorem-fast",
			stub:     &stubProvider{},
			wantMsg:  "unknown provider",
		},
		{
			name:     "unsupported model",
			provider: "lorem",
			model:    "gpt-9",
			stub:     &stubProvider{models: []string{"lorem-fast"}},
			wantMsg:  "does not support model",
		},
		{
			name:     "empty response",
			provider: "lorem",
			model:    "lorem-fast",
			stub:     &stubProvider{models: []string{"lorem-fast"}, resp: &llmprovider.GenerateResponse{}},
			wantMsg:  "returned no text",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewProviderGenerator(sourceOf(map[string]TextProvider{"lorem": tt.stub}), "lorem", discardLogger())
			_, err := g.Generate(context.Background(), &services.GenerateRequest{
				Model:    tt.model,
				Provider: tt.provider,
			})
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrUpstreamGeneration)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestProviderFactory(t *testing.T) {
	f := NewProviderFactory(&config.Config{})

	p1, err := f.GetProvider(ProviderLorem)
	require.NoError(t, err)
	p2, err := f.GetProvider(ProviderLorem)
	require.NoError(t, err)
	assert.True(t, p1 == p2)

	_, err = f.GetProvider(ProviderAnthropic)
	assert.ErrorContains(t, err, "ANTHROPIC_API_KEY")

	_, err = f.GetProvider("openai")
	assert.ErrorContains(t, err, "unsupported provider")

	assert.True(t, f.Available(ProviderLorem))
	assert.False(t, f.Available(ProviderAnthropic))
	assert.False(t, f.Available("openai"))
	assert.True(t, NewProviderFactory(&config.Config{AnthropicAPIKey: "sk-test"}).Available(ProviderAnthropic))
}

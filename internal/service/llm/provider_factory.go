package llm

import (
	"fmt"
	"sync"

	llmprovider "github.com/haowjy/meridian-llm-go"
	"github.com/haowjy/meridian-llm-go/providers/anthropic"
	"github.com/haowjy/meridian-llm-go/providers/lorem"

	"parley/internal/config"
)

// Provider names understood by the factory.
const (
	ProviderAnthropic = "anthropic"
	ProviderLorem     = "lorem"
)

// ProviderFactory creates provider instances on first use and caches them.
type ProviderFactory struct {
	config *config.Config

	mu        sync.Mutex
	providers map[string]llmprovider.Provider
}

// NewProviderFactory creates a new provider factory
func NewProviderFactory(cfg *config.Config) *ProviderFactory {
	return &ProviderFactory{
		config:    cfg,
		providers: make(map[string]llmprovider.Provider),
	}
}

// GetProvider returns a provider instance for the given provider name
//
// Supported providers:
//   - "anthropic" - Claude models via Anthropic API
//   - "lorem" - Mock provider (no API key required)
func (f *ProviderFactory) GetProvider(providerName string) (llmprovider.Provider, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if p, ok := f.providers[providerName]; ok {
		return p, nil
	}

	var (
		p   llmprovider.Provider
		err error
	)
	switch providerName {
	case ProviderAnthropic:
		p, err = f.createAnthropicProvider()
	case ProviderLorem:
		p = lorem.NewProvider()
	default:
		return nil, fmt.Errorf("unsupported provider: %s", providerName)
	}
	if err != nil {
		return nil, err
	}

	f.providers[providerName] = p
	return p, nil
}

func (f *ProviderFactory) createAnthropicProvider() (llmprovider.Provider, error) {
	if f.config.AnthropicAPIKey == "" {
		return nil, fmt.Errorf("ANTHROPIC_API_KEY environment variable not set")
	}

	provider, err := anthropic.NewProvider(f.config.AnthropicAPIKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create Anthropic provider: %w", err)
	}
	return provider, nil
}

// Available reports whether the provider can be constructed with the current
// configuration. Models of unavailable providers are synced as inactive.
func (f *ProviderFactory) Available(providerName string) bool {
	switch providerName {
	case ProviderLorem:
		return true
	case ProviderAnthropic:
		return f.config.AnthropicAPIKey != ""
	default:
		return false
	}
}

package llm

import (
	"fmt"
	"strings"

	"github.com/ppiankov/phishlens/internal/model"
)

// NewProvider creates a new semantic provider based on configuration
func NewProvider(config Config) (Provider, error) {
	provider := strings.ToLower(config.Provider)

	switch provider {
	case "openai":
		return NewOpenAIProvider(config)

	case "anthropic", "claude":
		return NewAnthropicProvider(config)

	case "ollama":
		return NewOllamaProvider(config)

	case "http":
		return NewHTTPProvider(config)

	case "":
		// No provider configured - semantic scoring disabled
		return nil, nil

	default:
		return nil, fmt.Errorf("unknown semantic provider: %s (supported: openai, anthropic, ollama, http)", config.Provider)
	}
}

// ConfigFromModel converts the semantic and HTTP config sections to llm.Config
func ConfigFromModel(semantic model.SemanticConfig, httpCfg model.HTTPConfig) Config {
	return Config{
		Provider:      semantic.Provider,
		Model:         semantic.Model,
		APIKey:        semantic.APIKey,
		BaseURL:       semantic.BaseURL,
		Timeout:       semantic.Timeout,
		MaxInputChars: semantic.MaxInputChars,
		HTTPProxy:     httpCfg.HTTPProxy,
		HTTPSProxy:    httpCfg.HTTPSProxy,
		NoProxy:       httpCfg.NoProxy,
	}
}

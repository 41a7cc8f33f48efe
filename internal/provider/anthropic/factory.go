package anthropic

import (
	"net/http"

	"github.com/tjfontaine/uxcritique/internal/pkg/config"
)

// ProviderType is the backend name used in configuration.
const ProviderType = config.ProviderAnthropic

// CreateFromConfig creates a new Anthropic provider from configuration.
func CreateFromConfig(cfg config.LLMConfig, httpClient *http.Client) *Provider {
	opts := []ProviderOption{
		WithModels(cfg.VisionModel, cfg.ReasoningModel),
		WithTemperature(cfg.Temperature),
		WithMaxTokens(cfg.MaxTokens),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, WithBaseURL(cfg.BaseURL))
	}
	if httpClient != nil {
		opts = append(opts, WithHTTPClient(httpClient))
	}
	return New(cfg.APIKey, opts...)
}

// Package provider builds the model backend selected by configuration.
//
// Backends are constructed explicitly from llm.provider; there is no init()
// registration. Adding a backend means a new package implementing
// domain.Agent plus a case in New.
package provider

import (
	"fmt"
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/tjfontaine/uxcritique/internal/domain"
	"github.com/tjfontaine/uxcritique/internal/pkg/config"
	"github.com/tjfontaine/uxcritique/internal/provider/anthropic"
	"github.com/tjfontaine/uxcritique/internal/provider/openai"
)

// Agent is a domain.Agent that can name the model serving each tier.
type Agent interface {
	domain.Agent
	Name() string
	Model(tier domain.Tier) string
}

// HTTPClient returns the client used for outbound model calls. Each call is
// traced as a child span of the stage that made it.
func HTTPClient() *http.Client {
	return &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
}

// New creates the agent for cfg. It returns (nil, nil) when no credentials
// are configured so the server can still start and answer 503.
func New(cfg config.LLMConfig, httpClient *http.Client) (Agent, error) {
	if cfg.APIKey == "" {
		return nil, nil
	}
	switch cfg.Provider {
	case openai.ProviderType, "":
		return openai.CreateFromConfig(cfg, httpClient), nil
	case anthropic.ProviderType:
		return anthropic.CreateFromConfig(cfg, httpClient), nil
	default:
		return nil, fmt.Errorf("unknown provider type: %s", cfg.Provider)
	}
}

// Package anthropic implements domain.Agent on the Anthropic Messages API.
package anthropic

import (
	"context"
	"errors"
	"net/http"

	anthropicapi "github.com/tjfontaine/uxcritique/internal/api/anthropic"
	"github.com/tjfontaine/uxcritique/internal/domain"
)

// ProviderOption configures the provider.
type ProviderOption func(*Provider)

// WithBaseURL sets a custom base URL for the API.
func WithBaseURL(baseURL string) ProviderOption {
	return func(p *Provider) {
		p.baseURL = baseURL
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ProviderOption {
	return func(p *Provider) {
		p.httpClient = httpClient
	}
}

// WithModels sets the model used for each tier.
func WithModels(vision, reasoning string) ProviderOption {
	return func(p *Provider) {
		p.models[domain.TierVision] = vision
		p.models[domain.TierReasoning] = reasoning
	}
}

// WithTemperature sets the sampling temperature for the vision tier.
func WithTemperature(t float32) ProviderOption {
	return func(p *Provider) {
		p.temperature = t
	}
}

// WithMaxTokens caps the completion length.
func WithMaxTokens(n int) ProviderOption {
	return func(p *Provider) {
		p.maxTokens = n
	}
}

// Provider sends prompts to Anthropic.
type Provider struct {
	client      *anthropicapi.Client
	baseURL     string
	httpClient  *http.Client
	models      map[domain.Tier]string
	temperature float32
	maxTokens   int
}

// New creates a new Anthropic provider.
func New(apiKey string, opts ...ProviderOption) *Provider {
	p := &Provider{
		models: map[domain.Tier]string{
			domain.TierVision:    "claude-sonnet-4-20250514",
			domain.TierReasoning: "claude-sonnet-4-20250514",
		},
		maxTokens: 8192,
	}

	for _, opt := range opts {
		opt(p)
	}

	var clientOpts []anthropicapi.ClientOption
	if p.baseURL != "" {
		clientOpts = append(clientOpts, anthropicapi.WithBaseURL(p.baseURL))
	}
	if p.httpClient != nil {
		clientOpts = append(clientOpts, anthropicapi.WithHTTPClient(p.httpClient))
	}

	p.client = anthropicapi.NewClient(apiKey, clientOpts...)
	return p
}

func (p *Provider) Name() string {
	return "anthropic"
}

// Model returns the model serving a tier.
func (p *Provider) Model(tier domain.Tier) string {
	if m, ok := p.models[tier]; ok {
		return m
	}
	return p.models[domain.TierVision]
}

// Invoke sends one system + user exchange and returns the reply text.
func (p *Provider) Invoke(ctx context.Context, prompt domain.Prompt) (string, error) {
	resp, err := p.client.CreateMessage(ctx, p.toAPIRequest(prompt))
	if err != nil {
		return "", domain.ErrUpstream(err)
	}
	text := resp.Text()
	if text == "" {
		return "", domain.ErrUpstream(errors.New("anthropic: message " + resp.ID + " has no text content"))
	}
	return text, nil
}

func (p *Provider) toAPIRequest(prompt domain.Prompt) *anthropicapi.MessagesRequest {
	var content []anthropicapi.ContentPart
	if prompt.Image != nil {
		content = append(content, anthropicapi.ContentPart{
			Type: "image",
			Source: &anthropicapi.ImageSource{
				Type:      "base64",
				MediaType: prompt.Image.MediaType,
				Data:      prompt.Image.Data,
			},
		})
	}
	content = append(content, anthropicapi.ContentPart{Type: "text", Text: prompt.User})

	req := &anthropicapi.MessagesRequest{
		Model:     p.Model(prompt.Tier),
		System:    prompt.System,
		MaxTokens: p.maxTokens,
		Messages:  []anthropicapi.Message{{Role: "user", Content: content}},
	}
	if prompt.Tier != domain.TierReasoning {
		t := p.temperature
		req.Temperature = &t
	}
	return req
}

// Package openai implements domain.Agent on the OpenAI chat completions API.
package openai

import (
	"context"
	"net/http"

	openaiapi "github.com/tjfontaine/uxcritique/internal/api/openai"
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

// Provider sends prompts to OpenAI.
type Provider struct {
	client      *openaiapi.Client
	baseURL     string
	httpClient  *http.Client
	models      map[domain.Tier]string
	temperature float32
	maxTokens   int
}

// New creates a new OpenAI provider.
func New(apiKey string, opts ...ProviderOption) *Provider {
	p := &Provider{
		models: map[domain.Tier]string{
			domain.TierVision:    "gpt-4o",
			domain.TierReasoning: "o3-mini",
		},
		maxTokens: 8192,
	}

	for _, opt := range opts {
		opt(p)
	}

	var clientOpts []openaiapi.ClientOption
	if p.baseURL != "" {
		clientOpts = append(clientOpts, openaiapi.WithBaseURL(p.baseURL))
	}
	if p.httpClient != nil {
		clientOpts = append(clientOpts, openaiapi.WithHTTPClient(p.httpClient))
	}

	p.client = openaiapi.NewClient(apiKey, clientOpts...)
	return p
}

func (p *Provider) Name() string {
	return "openai"
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
	resp, err := p.client.CreateChatCompletion(ctx, p.toAPIRequest(prompt))
	if err != nil {
		return "", domain.ErrUpstream(err)
	}
	text, err := resp.Text()
	if err != nil {
		return "", domain.ErrUpstream(err)
	}
	return text, nil
}

func (p *Provider) toAPIRequest(prompt domain.Prompt) *openaiapi.ChatCompletionRequest {
	user := domain.NewTextContent(prompt.User)
	if prompt.Image != nil {
		user = domain.NewMultipartContent(
			domain.TextPart(prompt.User),
			domain.ImageURLPart(prompt.Image.DataURL(), ""),
		)
	}

	req := &openaiapi.ChatCompletionRequest{
		Model: p.Model(prompt.Tier),
		Messages: []openaiapi.ChatCompletionMessage{
			{Role: "system", Content: domain.NewTextContent(prompt.System)},
			{Role: "user", Content: user},
		},
	}

	// Reasoning models reject temperature and max_tokens.
	if prompt.Tier == domain.TierReasoning {
		req.MaxCompletionTokens = p.maxTokens
		return req
	}
	t := p.temperature
	req.Temperature = &t
	req.MaxTokens = p.maxTokens
	return req
}

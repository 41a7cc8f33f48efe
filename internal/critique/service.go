// Package critique runs the usability-evaluation stages against a model
// agent. Each stage renders its prompts, invokes the agent once per item and
// decodes the reply into a typed result.
package critique

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gopkg.in/yaml.v3"

	"github.com/tjfontaine/uxcritique/internal/cache"
	"github.com/tjfontaine/uxcritique/internal/domain"
	"github.com/tjfontaine/uxcritique/internal/prompts"
	"github.com/tjfontaine/uxcritique/internal/tokens"
)

const tracerName = "github.com/tjfontaine/uxcritique/internal/critique"

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithItemConcurrency bounds how many items of a multi-item stage run at
// once. 1 runs them in order.
func WithItemConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithCache sets the guideline edit cache.
func WithCache(c *cache.GuidelineCache) Option {
	return func(s *Service) {
		s.cache = c
	}
}

// WithTokenCounter sets the prompt token counter.
func WithTokenCounter(r *tokens.Registry) Option {
	return func(s *Service) {
		s.tokens = r
	}
}

// WithModels names the models behind each tier for logs and token counts.
// Agents that report their own models take precedence.
func WithModels(vision, reasoning string) Option {
	return func(s *Service) {
		s.models = map[domain.Tier]string{
			domain.TierVision:    vision,
			domain.TierReasoning: reasoning,
		}
	}
}

// Service runs critique stages. A Service with a nil agent answers every
// stage with a config_missing error.
type Service struct {
	agent       domain.Agent
	prompts     *prompts.Catalog
	cache       *cache.GuidelineCache
	tokens      *tokens.Registry
	tracer      trace.Tracer
	logger      *slog.Logger
	models      map[domain.Tier]string
	concurrency int
}

// New creates a Service.
func New(agent domain.Agent, catalog *prompts.Catalog, opts ...Option) *Service {
	s := &Service{
		agent:       agent,
		prompts:     catalog,
		tracer:      otel.Tracer(tracerName),
		logger:      slog.Default(),
		concurrency: 1,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.cache == nil {
		s.cache = cache.New(256, 0)
	}
	if s.tokens == nil {
		s.tokens = tokens.NewRegistry()
	}
	return s
}

// Configured reports whether an agent is available.
func (s *Service) Configured() bool {
	return s.agent != nil
}

// CacheStats exposes the guideline cache counters.
func (s *Service) CacheStats() cache.Stats {
	return s.cache.Stats()
}

type modeler interface {
	Model(domain.Tier) string
}

func (s *Service) model(tier domain.Tier) string {
	if m, ok := s.agent.(modeler); ok {
		return m.Model(tier)
	}
	if m, ok := s.models[tier]; ok {
		return m
	}
	return string(tier)
}

// invoke sends one prompt, recording its size on the current span.
func (s *Service) invoke(ctx context.Context, p domain.Prompt) (string, error) {
	if s.agent == nil {
		return "", domain.ErrConfigMissing()
	}

	model := s.model(p.Tier)
	n, estimated := s.tokens.CountPrompt(model, p.System, p.User)

	span := trace.SpanFromContext(ctx)
	span.SetAttributes(
		attribute.String("llm.model", model),
		attribute.Int("llm.prompt_tokens", n),
		attribute.Bool("llm.prompt_tokens_estimated", estimated),
	)
	s.logger.DebugContext(ctx, "invoking agent",
		slog.String("stage", p.Name),
		slog.String("model", model),
		slog.Int("prompt_tokens", n),
		slog.Bool("estimated", estimated),
		slog.Bool("image", p.Image != nil),
	)

	reply, err := s.agent.Invoke(ctx, p)
	if err != nil {
		return "", err
	}
	return reply, nil
}

// prompt renders the system and user templates of a stage.
func (s *Service) prompt(name string, tier domain.Tier, system, user string, data prompts.Data, img *domain.Image) (domain.Prompt, error) {
	sys, err := s.prompts.Render(system, data)
	if err != nil {
		return domain.Prompt{}, err
	}
	usr, err := s.prompts.Render(user, data)
	if err != nil {
		return domain.Prompt{}, err
	}
	return domain.Prompt{Name: name, System: sys, User: usr, Image: img, Tier: tier}, nil
}

// startStage opens the span for a stage.
func (s *Service) startStage(ctx context.Context, stage string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "critique."+stage, trace.WithAttributes(attrs...))
}

// endSpan records err on span, if any, and ends it.
func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// itemMessage is the text stored in a failed item's placeholder.
func itemMessage(err error) string {
	var apiErr *domain.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return err.Error()
}

// render encodes v as block-style YAML for embedding in a prompt.
func render(v any) string {
	var n yaml.Node
	if err := n.Encode(v); err != nil {
		return fmt.Sprint(v)
	}
	return domain.ValueOf(&n).YAML()
}

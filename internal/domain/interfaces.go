package domain

import (
	"context"
)

// Tier selects which configured model serves a prompt.
type Tier string

const (
	// TierVision is the multimodal model used for screenshot analysis.
	TierVision Tier = "vision"
	// TierReasoning is the model used for root-cause synthesis. No
	// temperature is sent for this tier.
	TierReasoning Tier = "reasoning"
)

// Prompt is one request/response exchange with a language model.
type Prompt struct {
	// Name identifies the stage for logs and spans.
	Name   string
	System string
	User   string
	// Image is attached to the user turn when set.
	Image *Image
	Tier  Tier
}

// Agent sends a prompt to a language model and returns its text reply.
type Agent interface {
	Invoke(ctx context.Context, p Prompt) (string, error)
}

// AgentFunc adapts a function to the Agent interface.
type AgentFunc func(ctx context.Context, p Prompt) (string, error)

// Invoke calls f.
func (f AgentFunc) Invoke(ctx context.Context, p Prompt) (string, error) {
	return f(ctx, p)
}

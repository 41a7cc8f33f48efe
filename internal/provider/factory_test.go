package provider

import (
	"testing"

	"github.com/tjfontaine/uxcritique/internal/domain"
	"github.com/tjfontaine/uxcritique/internal/pkg/config"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name     string
		cfg      config.LLMConfig
		wantName string
		wantNil  bool
		wantErr  bool
	}{
		{
			name:    "no credentials",
			cfg:     config.LLMConfig{Provider: "openai"},
			wantNil: true,
		},
		{
			name:     "openai",
			cfg:      config.LLMConfig{Provider: "openai", APIKey: "sk", VisionModel: "gpt-4o", ReasoningModel: "o3-mini"},
			wantName: "openai",
		},
		{
			name:     "provider defaults to openai",
			cfg:      config.LLMConfig{APIKey: "sk", VisionModel: "gpt-4o", ReasoningModel: "o3-mini"},
			wantName: "openai",
		},
		{
			name:     "anthropic",
			cfg:      config.LLMConfig{Provider: "anthropic", APIKey: "ak", VisionModel: "claude-a", ReasoningModel: "claude-b"},
			wantName: "anthropic",
		},
		{
			name:    "unknown",
			cfg:     config.LLMConfig{Provider: "gemini", APIKey: "g"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			agent, err := New(tt.cfg, HTTPClient())
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			if tt.wantNil {
				if agent != nil {
					t.Fatalf("agent = %v, want nil", agent)
				}
				return
			}
			if agent.Name() != tt.wantName {
				t.Errorf("Name() = %q, want %q", agent.Name(), tt.wantName)
			}
			if agent.Model(domain.TierReasoning) != tt.cfg.ReasoningModel {
				t.Errorf("Model(reasoning) = %q", agent.Model(domain.TierReasoning))
			}
		})
	}
}

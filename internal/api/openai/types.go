// Package openai provides the wire types and HTTP client for the OpenAI
// chat completions API.
package openai

import (
	"encoding/json"
	"fmt"

	"github.com/tjfontaine/uxcritique/internal/domain"
)

// ChatCompletionRequest represents an OpenAI chat completion request.
type ChatCompletionRequest struct {
	Model               string                  `json:"model"`
	Messages            []ChatCompletionMessage `json:"messages"`
	MaxTokens           int                     `json:"max_tokens,omitempty"`
	MaxCompletionTokens int                     `json:"max_completion_tokens,omitempty"`
	Temperature         *float32                `json:"temperature,omitempty"`
	Seed                *int                    `json:"seed,omitempty"`
	User                string                  `json:"user,omitempty"`
}

// ChatCompletionMessage is one turn. Content is a plain string or a list of
// text and image_url parts.
type ChatCompletionMessage struct {
	Role    string                `json:"role"`
	Content domain.MessageContent `json:"content"`
}

// ChatCompletionResponse represents an OpenAI chat completion response.
type ChatCompletionResponse struct {
	ID                string   `json:"id"`
	Object            string   `json:"object"`
	Created           int64    `json:"created"`
	Model             string   `json:"model"`
	SystemFingerprint string   `json:"system_fingerprint,omitempty"`
	Choices           []Choice `json:"choices"`
	Usage             Usage    `json:"usage,omitempty"`
}

// Text returns the content of the first choice.
func (r *ChatCompletionResponse) Text() (string, error) {
	if len(r.Choices) == 0 {
		return "", fmt.Errorf("completion %s returned no choices", r.ID)
	}
	return r.Choices[0].Message.Content.String(), nil
}

// Choice represents a completion choice.
type Choice struct {
	Index        int                   `json:"index"`
	Message      ChatCompletionMessage `json:"message"`
	FinishReason string                `json:"finish_reason"`
}

// Usage represents token usage information.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ErrorResponse represents an OpenAI API error response.
type ErrorResponse struct {
	Error *APIError `json:"error"`
}

// APIError contains error details.
type APIError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Param   string `json:"param,omitempty"`
	Code    string `json:"code,omitempty"`

	// StatusCode is the HTTP status the API answered with.
	StatusCode int `json:"-"`
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("openai %d %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("openai %d: %s", e.StatusCode, e.Message)
}

// ParseErrorResponse attempts to parse an error response from JSON.
func ParseErrorResponse(data []byte) (*APIError, error) {
	var errResp ErrorResponse
	if err := json.Unmarshal(data, &errResp); err != nil {
		return nil, err
	}
	if errResp.Error == nil {
		return nil, nil
	}
	return errResp.Error, nil
}

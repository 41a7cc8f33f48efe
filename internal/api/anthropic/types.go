// Package anthropic provides the wire types and HTTP client for the
// Anthropic Messages API.
package anthropic

import (
	"encoding/json"
	"fmt"
	"strings"
)

// MessagesRequest represents an Anthropic Messages API request.
type MessagesRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens"`
	System      string    `json:"system,omitempty"`
	Temperature *float32  `json:"temperature,omitempty"`
	Metadata    *Metadata `json:"metadata,omitempty"`
}

// Message represents a message in the conversation.
type Message struct {
	Role    string        `json:"role"`
	Content []ContentPart `json:"content"`
}

// ContentPart represents a single content block in a message.
type ContentPart struct {
	Type   string       `json:"type"` // "text" or "image"
	Text   string       `json:"text,omitempty"`
	Source *ImageSource `json:"source,omitempty"`
}

// ImageSource represents an image source.
type ImageSource struct {
	Type      string `json:"type"` // "base64"
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

// Metadata is attached to a request for abuse tracking.
type Metadata struct {
	UserID string `json:"user_id,omitempty"`
}

// MessagesResponse represents an Anthropic Messages API response.
type MessagesResponse struct {
	ID           string            `json:"id"`
	Type         string            `json:"type"`
	Role         string            `json:"role"`
	Content      []ResponseContent `json:"content"`
	Model        string            `json:"model"`
	StopReason   string            `json:"stop_reason"`
	StopSequence *string           `json:"stop_sequence,omitempty"`
	Usage        MessagesUsage     `json:"usage"`
}

// Text concatenates the text blocks of the response.
func (r *MessagesResponse) Text() string {
	var b strings.Builder
	for _, c := range r.Content {
		if c.Type == "text" {
			b.WriteString(c.Text)
		}
	}
	return b.String()
}

// ResponseContent represents content in a response.
type ResponseContent struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// MessagesUsage represents token usage in the response.
type MessagesUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// ErrorResponse represents an Anthropic API error.
type ErrorResponse struct {
	Type  string    `json:"type"`
	Error *APIError `json:"error"`
}

// APIError contains error details.
type APIError struct {
	Type    string `json:"type"`
	Message string `json:"message"`

	// StatusCode is the HTTP status the API answered with.
	StatusCode int `json:"-"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("anthropic %d %s: %s", e.StatusCode, e.Type, e.Message)
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

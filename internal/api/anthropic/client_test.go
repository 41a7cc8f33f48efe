package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCreateMessage(t *testing.T) {
	var got MessagesRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("x-api-key") != "ak" || r.Header.Get("anthropic-version") != defaultVersion {
			t.Errorf("headers = %v", r.Header)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode: %v", err)
		}
		io.WriteString(w, `{"id":"msg_1","type":"message","role":"assistant","model":"claude",
			"content":[{"type":"text","text":"a: "},{"type":"text","text":"1"}],
			"stop_reason":"end_turn","usage":{"input_tokens":5,"output_tokens":2}}`)
	}))
	defer server.Close()

	client := NewClient("ak", WithBaseURL(server.URL))
	resp, err := client.CreateMessage(context.Background(), &MessagesRequest{
		Model:     "claude",
		MaxTokens: 64,
		System:    "sys",
		Messages: []Message{{Role: "user", Content: []ContentPart{
			{Type: "image", Source: &ImageSource{Type: "base64", MediaType: "image/png", Data: "AAAA"}},
			{Type: "text", Text: "hi"},
		}}},
	})
	if err != nil {
		t.Fatalf("CreateMessage: %v", err)
	}
	if resp.Text() != "a: 1" {
		t.Errorf("Text() = %q", resp.Text())
	}
	if got.System != "sys" || len(got.Messages[0].Content) != 2 {
		t.Errorf("request = %+v", got)
	}
	if got.Messages[0].Content[0].Source.MediaType != "image/png" {
		t.Errorf("image block = %+v", got.Messages[0].Content[0])
	}
}

func TestCreateMessageAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(529)
		io.WriteString(w, `{"type":"error","error":{"type":"overloaded_error","message":"Overloaded"}}`)
	}))
	defer server.Close()

	client := NewClient("ak", WithBaseURL(server.URL))
	_, err := client.CreateMessage(context.Background(), &MessagesRequest{Model: "claude", MaxTokens: 1})

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.StatusCode != 529 || apiErr.Type != "overloaded_error" {
		t.Errorf("apiErr = %+v", apiErr)
	}
}

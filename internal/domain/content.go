package domain

import (
	"encoding/json"
	"strings"
)

// ContentType represents the type of content in a message.
type ContentType string

const (
	ContentTypeText     ContentType = "text"
	ContentTypeImage    ContentType = "image"
	ContentTypeImageURL ContentType = "image_url"
)

// ContentPart represents a single part of message content.
type ContentPart struct {
	Type ContentType `json:"type"`

	// For text content
	Text string `json:"text,omitempty"`

	// For image content (base64, Anthropic style)
	Source *ImageSource `json:"source,omitempty"`

	// For image_url content (OpenAI style)
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

// ImageSource represents base64-encoded image data (Anthropic style).
type ImageSource struct {
	Type      string `json:"type"` // "base64"
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

// ImageURL represents a URL reference to an image (OpenAI style).
type ImageURL struct {
	URL    string `json:"url"`
	Detail string `json:"detail,omitempty"` // "auto", "low", "high"
}

// Image is a screenshot resolved for a single request. Data is base64 encoded.
type Image struct {
	MediaType string
	Data      string
}

// DataURL renders the image as a data: URL.
func (img *Image) DataURL() string {
	return "data:" + img.MediaType + ";base64," + img.Data
}

// MediaTypeForFilename guesses the media type from a file extension.
// Anything that is not a JPEG is sent as PNG.
func MediaTypeForFilename(name string) string {
	lower := strings.ToLower(name)
	if strings.HasSuffix(lower, ".jpg") || strings.HasSuffix(lower, ".jpeg") {
		return "image/jpeg"
	}
	return "image/png"
}

// MessageContent can be a simple string or an array of ContentParts.
type MessageContent struct {
	Text  string        // Simple text content
	Parts []ContentPart // Rich multimodal content
}

// IsSimpleText returns true if the content is just plain text.
func (mc *MessageContent) IsSimpleText() bool {
	return len(mc.Parts) == 0
}

// String returns the text content, concatenating all text parts if multimodal.
func (mc *MessageContent) String() string {
	if mc.IsSimpleText() {
		return mc.Text
	}
	var b strings.Builder
	for _, part := range mc.Parts {
		if part.Type == ContentTypeText {
			b.WriteString(part.Text)
		}
	}
	return b.String()
}

// MarshalJSON implements json.Marshaler.
func (mc MessageContent) MarshalJSON() ([]byte, error) {
	if mc.IsSimpleText() {
		return json.Marshal(mc.Text)
	}
	return json.Marshal(mc.Parts)
}

// UnmarshalJSON implements json.Unmarshaler.
func (mc *MessageContent) UnmarshalJSON(data []byte) error {
	// Try string first
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		mc.Text = str
		mc.Parts = nil
		return nil
	}

	var parts []ContentPart
	if err := json.Unmarshal(data, &parts); err != nil {
		return err
	}
	mc.Parts = parts
	mc.Text = ""
	return nil
}

// NewTextContent creates a simple text content.
func NewTextContent(text string) MessageContent {
	return MessageContent{Text: text}
}

// NewMultipartContent creates multimodal content from parts.
func NewMultipartContent(parts ...ContentPart) MessageContent {
	return MessageContent{Parts: parts}
}

// TextPart creates a text content part.
func TextPart(text string) ContentPart {
	return ContentPart{Type: ContentTypeText, Text: text}
}

// ImagePart creates an image content part from base64 data.
func ImagePart(mediaType, base64Data string) ContentPart {
	return ContentPart{
		Type: ContentTypeImage,
		Source: &ImageSource{
			Type:      "base64",
			MediaType: mediaType,
			Data:      base64Data,
		},
	}
}

// ImageURLPart creates an image content part from a URL.
func ImageURLPart(url, detail string) ContentPart {
	return ContentPart{
		Type: ContentTypeImageURL,
		ImageURL: &ImageURL{
			URL:    url,
			Detail: detail,
		},
	}
}

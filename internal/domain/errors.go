// Package domain provides canonical types and errors for the critique service.
package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorType represents the category of an API error.
type ErrorType string

const (
	// ErrorTypeConfigMissing indicates no model credentials are configured.
	ErrorTypeConfigMissing ErrorType = "config_missing"

	// ErrorTypeImageFetch indicates every candidate image URL failed.
	ErrorTypeImageFetch ErrorType = "image_fetch"

	// ErrorTypeResponseParse indicates the agent reply was not valid structured data.
	ErrorTypeResponseParse ErrorType = "response_parse"

	// ErrorTypeRevision indicates a revised document had an unusable root.
	ErrorTypeRevision ErrorType = "revision"

	// ErrorTypeInvalidRequest indicates a malformed or invalid request.
	ErrorTypeInvalidRequest ErrorType = "invalid_request"

	// ErrorTypeUpstream indicates the model backend rejected or failed the call.
	ErrorTypeUpstream ErrorType = "upstream"

	// ErrorTypeServer indicates an internal server error.
	ErrorTypeServer ErrorType = "server"
)

// APIError represents a canonical request-level error. Handlers translate it
// into a JSON body with the matching HTTP status.
type APIError struct {
	// Type is the category of error
	Type ErrorType `json:"type"`

	// Message is the human-readable error message
	Message string `json:"error"`

	// Raw carries the offending agent reply for parse failures
	Raw string `json:"raw_output,omitempty"`

	// Attempted lists the URLs tried by the image resolver
	Attempted []string `json:"attempted_urls,omitempty"`

	cause error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *APIError) Unwrap() error {
	return e.cause
}

// HTTPStatusCode returns the appropriate HTTP status code for this error.
func (e *APIError) HTTPStatusCode() int {
	switch e.Type {
	case ErrorTypeConfigMissing:
		return http.StatusServiceUnavailable
	case ErrorTypeImageFetch:
		return http.StatusNotFound
	case ErrorTypeInvalidRequest:
		return http.StatusBadRequest
	case ErrorTypeUpstream:
		return http.StatusBadGateway
	case ErrorTypeResponseParse, ErrorTypeRevision, ErrorTypeServer:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// NewAPIError creates a new API error.
func NewAPIError(errType ErrorType, message string) *APIError {
	return &APIError{
		Type:    errType,
		Message: message,
	}
}

// WithRaw attaches the raw agent reply.
func (e *APIError) WithRaw(raw string) *APIError {
	e.Raw = raw
	return e
}

// WithAttempted attaches the list of URLs that were tried.
func (e *APIError) WithAttempted(urls []string) *APIError {
	e.Attempted = urls
	return e
}

// WithCause records the error that produced this one.
func (e *APIError) WithCause(err error) *APIError {
	e.cause = err
	return e
}

// Convenience constructors for common errors

// ErrConfigMissing reports that no model backend is configured.
func ErrConfigMissing() *APIError {
	return NewAPIError(ErrorTypeConfigMissing,
		"LLM config missing on server. Set OPENAI_API_KEY (or ANTHROPIC_API_KEY) or point OAI_CONFIG_LIST_JSON at a config list file.")
}

// ErrInvalidRequest creates an invalid request error.
func ErrInvalidRequest(message string) *APIError {
	return NewAPIError(ErrorTypeInvalidRequest, message)
}

// ErrServer creates an internal server error.
func ErrServer(message string) *APIError {
	return NewAPIError(ErrorTypeServer, message)
}

// ErrUpstream wraps a model backend failure.
func ErrUpstream(err error) *APIError {
	return NewAPIError(ErrorTypeUpstream, err.Error()).WithCause(err)
}

// ErrRevision creates a revision error.
func ErrRevision(message string) *APIError {
	return NewAPIError(ErrorTypeRevision, message)
}

// AsAPIError converts any error into an APIError. Errors that already carry
// an APIError in their chain are returned as-is; everything else becomes a
// server error.
func AsAPIError(err error) *APIError {
	if err == nil {
		return nil
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return ErrServer(err.Error()).WithCause(err)
}

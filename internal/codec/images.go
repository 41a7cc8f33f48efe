// Package codec turns model replies and screenshots into the values the
// critique stages work with.
package codec

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tjfontaine/uxcritique/internal/domain"
)

// FetchError reports that no candidate URL produced the image.
type FetchError struct {
	Attempted []string
	Err       error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("Failed to fetch image from candidates: [%s]. Error: %v", strings.Join(e.Attempted, ", "), e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// ImageResolver fetches screenshots from the static file host that serves the
// front-end. In local development the API and the front-end listen on
// different ports, so requests arriving on a dev host try the front-end dev
// origins before the API's own origin.
type ImageResolver struct {
	client     *http.Client
	maxSize    int64 // Maximum allowed image size in bytes
	timeout    time.Duration
	pathPrefix string
	devHosts   []string
	devOrigins []string
}

// ImageResolverOption configures the image resolver.
type ImageResolverOption func(*ImageResolver)

// WithImageHTTPClient sets a custom HTTP client for the resolver.
func WithImageHTTPClient(client *http.Client) ImageResolverOption {
	return func(r *ImageResolver) {
		r.client = client
	}
}

// WithMaxSize sets the maximum allowed image size.
func WithMaxSize(maxSize int64) ImageResolverOption {
	return func(r *ImageResolver) {
		r.maxSize = maxSize
	}
}

// WithAttemptTimeout bounds each candidate fetch.
func WithAttemptTimeout(d time.Duration) ImageResolverOption {
	return func(r *ImageResolver) {
		r.timeout = d
	}
}

// WithPathPrefix sets the path images are served under.
func WithPathPrefix(prefix string) ImageResolverOption {
	return func(r *ImageResolver) {
		r.pathPrefix = "/" + strings.Trim(prefix, "/")
	}
}

// WithDevFallback sets the hosts that mark a request as local development and
// the front-end origins to try first for such requests.
func WithDevFallback(hosts, origins []string) ImageResolverOption {
	return func(r *ImageResolver) {
		r.devHosts = hosts
		r.devOrigins = origins
	}
}

// NewImageResolver creates a new image resolver.
func NewImageResolver(opts ...ImageResolverOption) *ImageResolver {
	r := &ImageResolver{
		client:     &http.Client{},
		maxSize:    20 * 1024 * 1024, // 20MB default max
		timeout:    10 * time.Second,
		pathPrefix: "/stores",
		devHosts:   []string{"localhost:8000", "127.0.0.1:8000"},
		devOrigins: []string{"http://localhost:3000", "http://127.0.0.1:3000"},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// PublicPath returns the path the front-end uses for filename.
func (r *ImageResolver) PublicPath(filename string) string {
	return r.pathPrefix + "/" + url.PathEscape(filename)
}

// Candidates returns the URLs Resolve tries for filename, in order. origin is
// the scheme and host the current request arrived on.
func (r *ImageResolver) Candidates(filename, origin string) []string {
	origin = strings.TrimRight(origin, "/")
	primary := origin + r.PublicPath(filename)

	for _, host := range r.devHosts {
		if host != "" && strings.Contains(origin, host) {
			urls := make([]string, 0, len(r.devOrigins)+1)
			for _, o := range r.devOrigins {
				urls = append(urls, strings.TrimRight(o, "/")+r.PublicPath(filename))
			}
			return append(urls, primary)
		}
	}
	return []string{primary}
}

// Resolve fetches filename and returns it base64 encoded. Candidates are tried
// one at a time; the first success wins.
func (r *ImageResolver) Resolve(ctx context.Context, filename, origin string) (*domain.Image, error) {
	candidates := r.Candidates(filename, origin)

	var lastErr error
	for _, u := range candidates {
		img, err := r.fetch(ctx, u, filename)
		if err == nil {
			return img, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	if lastErr == nil {
		lastErr = errors.New("image fetch failed")
	}
	return nil, &FetchError{Attempted: candidates, Err: lastErr}
}

func (r *ImageResolver) fetch(ctx context.Context, u, filename string) (*domain.Image, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch image: status %d from %s", resp.StatusCode, u)
	}

	// Check content length if available
	if resp.ContentLength > r.maxSize {
		return nil, fmt.Errorf("image too large: %d bytes (max %d)", resp.ContentLength, r.maxSize)
	}

	mediaType := resp.Header.Get("Content-Type")
	if mediaType == "" || strings.HasPrefix(mediaType, "application/octet-stream") {
		mediaType = domain.MediaTypeForFilename(filename)
	}
	if !isSupportedMediaType(mediaType) {
		return nil, fmt.Errorf("unsupported media type: %s", mediaType)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, r.maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	if int64(len(data)) > r.maxSize {
		return nil, fmt.Errorf("image too large: exceeds %d bytes", r.maxSize)
	}

	return &domain.Image{
		MediaType: normalizeMediaType(mediaType),
		Data:      base64.StdEncoding.EncodeToString(data),
	}, nil
}

// ImageFromBase64 wraps a client-supplied image. Both bare base64 and data
// URLs are accepted; bare data takes fallbackType.
func ImageFromBase64(s, fallbackType string) (*domain.Image, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "data:") {
		return parseDataURL(s)
	}
	if _, err := base64.StdEncoding.DecodeString(s); err != nil {
		return nil, fmt.Errorf("image_base64 is not valid base64: %w", err)
	}
	return &domain.Image{MediaType: fallbackType, Data: s}, nil
}

// parseDataURL parses a data URL and extracts the base64 content.
func parseDataURL(s string) (*domain.Image, error) {
	// Format: data:image/jpeg;base64,/9j/4AAQSkZ...
	content := strings.TrimPrefix(s, "data:")

	commaIdx := strings.Index(content, ",")
	if commaIdx == -1 {
		return nil, fmt.Errorf("invalid data URL: missing comma separator")
	}

	metadata := content[:commaIdx]
	data := content[commaIdx+1:]

	parts := strings.Split(metadata, ";")
	mediaType := parts[0]
	if !isSupportedMediaType(mediaType) {
		return nil, fmt.Errorf("unsupported media type: %s", mediaType)
	}

	isBase64 := false
	for _, part := range parts[1:] {
		if part == "base64" {
			isBase64 = true
			break
		}
	}
	if !isBase64 {
		return nil, fmt.Errorf("data URL must be base64 encoded")
	}

	return &domain.Image{
		MediaType: normalizeMediaType(mediaType),
		Data:      data,
	}, nil
}

// isSupportedMediaType checks if the media type is one the vision models accept.
func isSupportedMediaType(mediaType string) bool {
	// Normalize by taking only the main type (ignore parameters like charset)
	mainType := strings.Split(mediaType, ";")[0]
	mainType = strings.TrimSpace(strings.ToLower(mainType))

	switch mainType {
	case "image/jpeg", "image/jpg", "image/png", "image/gif", "image/webp":
		return true
	default:
		return false
	}
}

// normalizeMediaType normalizes the media type to a standard format.
func normalizeMediaType(mediaType string) string {
	mainType := strings.Split(mediaType, ";")[0]
	mainType = strings.TrimSpace(strings.ToLower(mainType))

	// Normalize image/jpg to image/jpeg
	if mainType == "image/jpg" {
		return "image/jpeg"
	}
	return mainType
}

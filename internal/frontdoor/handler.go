// Package frontdoor exposes the critique stages, the guideline editor, the
// baseline evaluator and the logging endpoints over HTTP.
package frontdoor

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/tjfontaine/uxcritique/internal/actionlog"
	"github.com/tjfontaine/uxcritique/internal/codec"
	"github.com/tjfontaine/uxcritique/internal/critique"
	"github.com/tjfontaine/uxcritique/internal/domain"
	"github.com/tjfontaine/uxcritique/internal/pkg/config"
)

// HandlerConfig contains what the handlers need.
type HandlerConfig struct {
	Service  *critique.Service
	Images   *codec.ImageResolver
	Recorder actionlog.Recorder
	Baseline *actionlog.BaselineLog
	Defaults config.DefaultsConfig
	Logger   *slog.Logger
}

type Handler struct {
	svc      *critique.Service
	images   *codec.ImageResolver
	recorder actionlog.Recorder
	baseline *actionlog.BaselineLog
	defaults config.DefaultsConfig
	logger   *slog.Logger
}

func NewHandler(cfg HandlerConfig) *Handler {
	h := &Handler{
		svc:      cfg.Service,
		images:   cfg.Images,
		recorder: cfg.Recorder,
		baseline: cfg.Baseline,
		defaults: cfg.Defaults,
		logger:   cfg.Logger,
	}
	if h.recorder == nil {
		h.recorder = actionlog.Nop{}
	}
	if h.images == nil {
		h.images = codec.NewImageResolver()
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	return h
}

// Registrations lists every route the handler serves.
func (h *Handler) Registrations() []HandlerRegistration {
	return []HandlerRegistration{
		{Path: "step1", Method: http.MethodPost, Handler: h.HandleLayout},
		{Path: "step2", Method: http.MethodPost, Handler: h.HandleComponents},
		{Path: "step3", Method: http.MethodPost, Handler: h.HandleComponentAnalysis},
		{Path: "step4", Method: http.MethodPost, Handler: h.HandleSectionAnalysis},
		{Path: "step5_6", Method: http.MethodPost, Handler: h.HandleEvaluation},
		{Path: "step7", Method: http.MethodPost, Handler: h.HandleSolution},
		{Path: "update_guidelines", Method: http.MethodPost, Handler: h.HandleUpdateGuidelines},
		{Path: "baseline", Method: http.MethodGet, Handler: h.HandleBaselineProbe},
		{Path: "baseline", Method: http.MethodPost, Handler: h.HandleBaseline},
		{Path: "log-user-action", Method: http.MethodGet, Handler: h.HandleStatus},
		{Path: "log-user-action", Method: http.MethodPost, Handler: h.HandleLogUserAction},
		{Path: "log-action", Method: http.MethodPost, Handler: h.HandleLogAction},
		{Path: "constants", Method: http.MethodGet, Handler: h.HandleConstants},
		{Path: "healthz", Method: http.MethodGet, Handler: h.HandleStatus},
	}
}

// requireAgent answers 503 when no model backend is configured. It runs
// before any image fetch or model call.
func (h *Handler) requireAgent(w http.ResponseWriter, r *http.Request) bool {
	if h.svc != nil && h.svc.Configured() {
		return true
	}
	h.writeError(w, r, domain.ErrConfigMissing())
	return false
}

// requestOrigin is the scheme and host the request arrived on.
func requestOrigin(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = strings.TrimSpace(strings.Split(proto, ",")[0])
	}
	return scheme + "://" + r.Host
}

// defaultImage fetches the configured screenshot.
func (h *Handler) defaultImage(ctx context.Context, r *http.Request) (*domain.Image, error) {
	return h.images.Resolve(ctx, h.defaults.ImageFilename, requestOrigin(r))
}

// stageImage prefers the screenshot the client sent back and falls back to
// the configured one.
func (h *Handler) stageImage(ctx context.Context, r *http.Request, f *fields) (*domain.Image, error) {
	if b64 := f.String("image_base64"); b64 != "" {
		img, err := codec.ImageFromBase64(b64, domain.MediaTypeForFilename(h.defaults.ImageFilename))
		if err != nil {
			return nil, domain.ErrInvalidRequest(err.Error()).WithCause(err)
		}
		return img, nil
	}
	return h.defaultImage(ctx, r)
}

func (h *Handler) recordStep(ctx context.Context, step, task, imagePath string, result any) {
	h.recorder.Record(ctx, actionlog.StepResult(step, task, imagePath, result))
}

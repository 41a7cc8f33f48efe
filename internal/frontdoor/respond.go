package frontdoor

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/tjfontaine/uxcritique/internal/codec"
	"github.com/tjfontaine/uxcritique/internal/domain"
	"github.com/tjfontaine/uxcritique/internal/server"
)

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// toAPIError maps pipeline failures onto the canonical error. Parse failures
// keep the offending reply and fetch failures keep the URLs tried.
func toAPIError(err error) *domain.APIError {
	var apiErr *domain.APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	var parseErr *codec.ParseError
	if errors.As(err, &parseErr) {
		return domain.NewAPIError(domain.ErrorTypeResponseParse, parseErr.Error()).
			WithRaw(parseErr.Raw).
			WithCause(err)
	}
	var fetchErr *codec.FetchError
	if errors.As(err, &fetchErr) {
		return domain.NewAPIError(domain.ErrorTypeImageFetch, fetchErr.Error()).
			WithAttempted(fetchErr.Attempted).
			WithCause(err)
	}
	return domain.AsAPIError(err)
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	apiErr := toAPIError(err)
	status := apiErr.HTTPStatusCode()

	server.AddError(r.Context(), err)
	server.AddLogField(r.Context(), "error_type", string(apiErr.Type))
	if status >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "request failed",
			slog.String("request_id", server.GetRequestID(r.Context())),
			slog.String("path", r.URL.Path),
			slog.String("type", string(apiErr.Type)),
			slog.String("error", apiErr.Message),
		)
	}
	writeJSON(w, status, apiErr)
}

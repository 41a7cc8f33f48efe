package frontdoor

import (
	"fmt"
	"net/http"

	"github.com/tjfontaine/uxcritique/internal/domain"
	"github.com/tjfontaine/uxcritique/internal/server"
)

// BaselineResponse is the body of a baseline generation or revision.
type BaselineResponse struct {
	Raw         string  `json:"raw"`
	Task        *string `json:"task"`
	ImageBase64 string  `json:"image_base64"`
	RicoID      *string `json:"rico_id"`
}

// optional maps an absent value to JSON null.
func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// HandleBaselineProbe answers GET /baseline.
func (h *Handler) HandleBaselineProbe(w http.ResponseWriter, r *http.Request) {
	if !h.requireAgent(w, r) {
		return
	}
	q := r.URL.Query()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"message": "Baseline endpoint is reachable.",
		"task":    optional(q.Get("task")),
		"rico_id": optional(q.Get("rico_id")),
	})
}

// HandleBaseline generates a single-pass critique, or revises a previous one
// when both user_update and baseline_solution are sent.
func (h *Handler) HandleBaseline(w http.ResponseWriter, r *http.Request) {
	if !h.requireAgent(w, r) {
		return
	}
	ctx := r.Context()
	server.AddLogField(ctx, "stage", "baseline")

	f, err := bindFields(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	task := f.String("task")
	ricoID := f.String("rico_id")
	guidelines := f.String("guidelines_str")
	update := f.String("user_update")
	previous := f.String("baseline_solution")

	var prevDoc domain.Value
	if update != "" && previous != "" {
		prevDoc, err = domain.ParseValue(previous)
		if err != nil {
			server.AddError(ctx, err)
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"error": fmt.Sprintf("Invalid baseline_solution YAML: %v", err),
				"raw":   previous,
			})
			return
		}
	}

	img, err := h.stageImage(ctx, r, f)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if update != "" && previous != "" {
		server.AddLogField(ctx, "mode", "revise")
		revised, err := h.svc.Revise(ctx, guidelines, prevDoc, update)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		after := revised.YAML()
		if h.baseline != nil {
			h.baseline.Revision(ctx, update, previous, after)
		}
		writeJSON(w, http.StatusOK, BaselineResponse{
			Raw:         after,
			Task:        optional(task),
			ImageBase64: img.Data,
			RicoID:      optional(ricoID),
		})
		return
	}

	if previous != "" && h.baseline != nil {
		h.baseline.Initial(ctx, previous)
	}

	server.AddLogField(ctx, "mode", "generate")
	text, err := h.svc.Baseline(ctx, task, guidelines, img)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, BaselineResponse{
		Raw:         text,
		Task:        optional(task),
		ImageBase64: img.Data,
		RicoID:      optional(ricoID),
	})
}

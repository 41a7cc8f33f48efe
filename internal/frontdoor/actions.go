package frontdoor

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/tjfontaine/uxcritique/internal/actionlog"
)

type userActionRequest struct {
	ActionType string `json:"action_type"`
	Content    any    `json:"content"`
	Details    any    `json:"details"`
}

// HandleLogUserAction records an action reported by the front-end.
func (h *Handler) HandleLogUserAction(w http.ResponseWriter, r *http.Request) {
	var req userActionRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.recorder.Record(r.Context(), actionlog.Event{
		ActionType: req.ActionType,
		Step:       contentText(req.Content),
		Detail:     detailsOrEmpty(req.Details),
	})
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type logActionRequest struct {
	UserID     string `json:"userId"`
	ActionType string `json:"action_type"`
	Action     string `json:"action"`
	StepInfo   any    `json:"step_info"`
	Content    any    `json:"content"`
	Details    any    `json:"details"`
}

// HandleLogAction records an action for a named user. Older clients send
// action and content instead of action_type and step_info.
func (h *Handler) HandleLogAction(w http.ResponseWriter, r *http.Request) {
	var req logActionRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	user := req.UserID
	if user == "" {
		user = "anonymous"
	}
	actionType := req.ActionType
	if actionType == "" {
		actionType = req.Action
	}
	step := contentText(req.StepInfo)
	if step == "" {
		step = contentText(req.Content)
	}
	h.recorder.Record(r.Context(), actionlog.Event{
		UserID:     user,
		ActionType: actionType,
		Step:       step,
		Detail:     detailsOrEmpty(req.Details),
	})
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// contentText keeps string content as is and writes anything else as JSON.
func contentText(c any) string {
	switch v := c.(type) {
	case nil:
		return ""
	case string:
		return v
	}
	b, err := json.Marshal(c)
	if err != nil {
		return fmt.Sprint(c)
	}
	return string(b)
}

func detailsOrEmpty(d any) any {
	if d == nil {
		return map[string]any{}
	}
	return d
}

// HandleStatus is a liveness probe.
func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HandleConstants tells the front-end which screenshot and task to start with.
func (h *Handler) HandleConstants(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"image_filename":   h.defaults.ImageFilename,
		"image_url":        h.images.PublicPath(h.defaults.ImageFilename),
		"task_description": h.defaults.TaskDescription,
	})
}

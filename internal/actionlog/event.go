// Package actionlog keeps the per-user audit trail of pipeline results and
// front-end actions. Writing is best-effort: failures are logged and never
// reach the caller.
package actionlog

import (
	"encoding/json"
	"time"
)

// Action types written by the server. The front-end sends its own actions,
// such as table edits, through the logging endpoint.
const (
	ActionStepResult          = "step_result"
	ActionGuidelineEditPrompt = "guideline_edit_prompt"
	ActionGuidelineUpdated    = "guideline_updated"
)

// timestampLayout matches the microsecond UTC stamps of existing log files.
const timestampLayout = "2006-01-02T15:04:05.000000Z"

// Event is one line of a user's action log.
type Event struct {
	// UserID selects the log file; empty means the configured default user.
	UserID     string    `json:"-"`
	Time       time.Time `json:"-"`
	ActionType string    `json:"action_type"`
	Step       string    `json:"step"`
	Detail     any       `json:"detail"`
}

// MarshalJSON writes the line format {timestamp, action_type, step, detail}.
func (e Event) MarshalJSON() ([]byte, error) {
	ts := e.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	detail := e.Detail
	if detail == nil {
		detail = struct{}{}
	}
	return json.Marshal(struct {
		Timestamp  string `json:"timestamp"`
		ActionType string `json:"action_type"`
		Step       string `json:"step"`
		Detail     any    `json:"detail"`
	}{
		Timestamp:  ts.UTC().Format(timestampLayout),
		ActionType: e.ActionType,
		Step:       e.Step,
		Detail:     detail,
	})
}

// StepResult records the outcome of a pipeline step.
func StepResult(step, task, imagePath string, result any) Event {
	var path any
	if imagePath != "" {
		path = imagePath
	}
	return Event{
		ActionType: ActionStepResult,
		Step:       step,
		Detail: map[string]any{
			"task":      task,
			"imagePath": path,
			"result":    result,
		},
	}
}

// GuidelineEditPrompt records the instruction that produced a guideline edit.
func GuidelineEditPrompt(prompt, before, after string) Event {
	return Event{
		ActionType: ActionGuidelineEditPrompt,
		Step:       prompt,
		Detail:     guidelineChange(before, after),
	}
}

// GuidelineUpdated records a guideline change.
func GuidelineUpdated(before, after string) Event {
	return Event{
		ActionType: ActionGuidelineUpdated,
		Step:       "Guideline updated",
		Detail:     guidelineChange(before, after),
	}
}

func guidelineChange(before, after string) map[string]any {
	return map[string]any{
		"beforeGuideline": before,
		"afterGuideline":  after,
	}
}

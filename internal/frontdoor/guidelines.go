package frontdoor

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/tjfontaine/uxcritique/internal/actionlog"
	"github.com/tjfontaine/uxcritique/internal/domain"
	"github.com/tjfontaine/uxcritique/internal/server"
)

// GuidelineResponse is the edited guideline text plus the fields the client
// needs for the next step, which always come from the current request.
type GuidelineResponse struct {
	domain.GuidelineEdit
	Task         string `json:"task"`
	ImageBase64  string `json:"image_base64"`
	Step3Results string `json:"step3_results_str"`
	Step4Results string `json:"step4_results_str"`
}

// HandleUpdateGuidelines applies a free-form edit to the guidelines. The
// X-Cache header reports whether the edit was served from the cache.
func (h *Handler) HandleUpdateGuidelines(w http.ResponseWriter, r *http.Request) {
	if !h.requireAgent(w, r) {
		return
	}
	ctx := r.Context()
	server.AddLogField(ctx, "stage", "update_guidelines")

	f, err := bindFields(r)
	if err == nil {
		err = f.Require("user_update", "default_guidelines")
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	update := f.String("user_update")
	before := f.String("default_guidelines")
	edit, hit, err := h.svc.EditGuidelines(ctx, update, before)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	cacheState := "miss"
	if hit {
		cacheState = "hit"
	} else {
		h.recorder.Record(ctx, actionlog.GuidelineEditPrompt(update, before, edit.Guidelines))
		h.recorder.Record(ctx, actionlog.GuidelineUpdated(before, edit.Guidelines))
	}
	server.AddLogField(ctx, "cache", cacheState)
	stats := h.svc.CacheStats()
	server.AddLogField(ctx, "cache_entries", strconv.Itoa(stats.Len))
	server.AddLogField(ctx, "cache_hit_ratio", fmt.Sprintf("%d/%d", stats.Hits, stats.Hits+stats.Misses))
	w.Header().Set("X-Cache", cacheState)

	writeJSON(w, http.StatusOK, GuidelineResponse{
		GuidelineEdit: edit,
		Task:          f.String("task"),
		ImageBase64:   f.String("image_base64"),
		Step3Results:  f.String("step3_results_str"),
		Step4Results:  f.String("step4_results_str"),
	})
}

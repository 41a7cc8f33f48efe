package frontdoor

import (
	"net/http"

	"github.com/tjfontaine/uxcritique/internal/critique"
	"github.com/tjfontaine/uxcritique/internal/domain"
	"github.com/tjfontaine/uxcritique/internal/server"
)

// LayoutResponse is the body of a successful step 1 call.
type LayoutResponse struct {
	NonAppUI    []domain.Value                       `json:"non_app_ui"`
	AppUI       domain.Ordered[domain.SectionLayout] `json:"app_ui"`
	Raw         string                               `json:"raw"`
	Task        string                               `json:"task"`
	ImagePath   string                               `json:"image_path"`
	ImageURL    string                               `json:"image_url"`
	ImageBase64 string                               `json:"image_base64"`
}

// HandleLayout runs step 1 on the named screenshot.
func (h *Handler) HandleLayout(w http.ResponseWriter, r *http.Request) {
	if !h.requireAgent(w, r) {
		return
	}
	ctx := r.Context()
	f, err := bindFields(r)
	if err == nil {
		err = f.Require("task")
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	task := f.String("task")
	filename := f.String("image_filename")
	if filename == "" {
		filename = h.defaults.ImageFilename
	}
	server.AddLogField(ctx, "stage", "step1")
	server.AddLogField(ctx, "image", filename)

	img, err := h.images.Resolve(ctx, filename, requestOrigin(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	res, err := h.svc.Layout(ctx, task, img)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	path := h.images.PublicPath(filename)
	h.recordStep(ctx, "step1", task, path, res.Layout)

	writeJSON(w, http.StatusOK, LayoutResponse{
		NonAppUI:    res.Layout.NonAppUIItems(),
		AppUI:       res.Layout.AppUI,
		Raw:         res.Raw,
		Task:        task,
		ImagePath:   path,
		ImageURL:    path,
		ImageBase64: img.Data,
	})
}

// HandleComponents runs step 2 over the sections of app_ui.
func (h *Handler) HandleComponents(w http.ResponseWriter, r *http.Request) {
	if !h.requireAgent(w, r) {
		return
	}
	ctx := r.Context()
	server.AddLogField(ctx, "stage", "step2")

	f, err := bindFields(r)
	if err == nil {
		err = f.Require("task", "app_ui")
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	appUI, err := f.Value("app_ui")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	img, err := h.stageImage(ctx, r, f)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	task := f.String("task")
	result, err := h.svc.Components(ctx, task, img, appUI)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.recordStep(ctx, "step2", task, "", result)
	writeJSON(w, http.StatusOK, map[string]any{"result": result})
}

// HandleComponentAnalysis runs step 3 over the component inventory.
func (h *Handler) HandleComponentAnalysis(w http.ResponseWriter, r *http.Request) {
	if !h.requireAgent(w, r) {
		return
	}
	ctx := r.Context()
	server.AddLogField(ctx, "stage", "step3")

	f, err := bindFields(r)
	if err == nil {
		err = f.Require("task")
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	components, err := f.Value("app_ui_components")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	img, err := h.stageImage(ctx, r, f)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	task := f.String("task")
	result, err := h.svc.ComponentAnalysis(ctx, task, img, components)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.recordStep(ctx, "step3", task, "", result)
	writeJSON(w, http.StatusOK, map[string]any{"result": result})
}

// HandleSectionAnalysis runs step 4 over the step 3 sections.
func (h *Handler) HandleSectionAnalysis(w http.ResponseWriter, r *http.Request) {
	if !h.requireAgent(w, r) {
		return
	}
	ctx := r.Context()
	server.AddLogField(ctx, "stage", "step4")

	f, err := bindFields(r)
	if err == nil {
		err = f.Require("task", "app_ui", "step3_results")
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	appUI, err := f.Value("app_ui")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	analysis, err := f.Value("step3_results")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	img, err := h.stageImage(ctx, r, f)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	task := f.String("task")
	result, err := h.svc.SectionAnalysis(ctx, task, img, appUI, analysis)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.recordStep(ctx, "step4", task, "", result)
	writeJSON(w, http.StatusOK, map[string]any{"result": result})
}

// EvaluationResponse is the body of a step 5+6 call. Either half may hold an
// error placeholder.
type EvaluationResponse struct {
	Step5 domain.Item[domain.LayoutEvaluation]                                 `json:"step5_result"`
	Step6 domain.Item[domain.Ordered[domain.Item[domain.ComponentEvaluation]]] `json:"step6_result"`
}

// HandleEvaluation runs steps 5 and 6.
func (h *Handler) HandleEvaluation(w http.ResponseWriter, r *http.Request) {
	if !h.requireAgent(w, r) {
		return
	}
	ctx := r.Context()
	server.AddLogField(ctx, "stage", "step5_6")

	f, err := bindFields(r)
	if err == nil {
		err = f.Require("task", "step3_results_str", "step4_results_str", "guidelines_str")
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	img, err := h.stageImage(ctx, r, f)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	task := f.String("task")
	eval := h.svc.Evaluate(ctx, critique.EvaluationInput{
		Task:             task,
		Image:            img,
		ComponentResults: f.String("step3_results_str"),
		SectionResults:   f.String("step4_results_str"),
		Guidelines:       f.String("guidelines_str"),
	})
	h.recordStep(ctx, "step5", task, "", eval.Layout)
	h.recordStep(ctx, "step6", task, "", eval.Components)
	writeJSON(w, http.StatusOK, EvaluationResponse{Step5: eval.Layout, Step6: eval.Components})
}

// HandleSolution runs step 7.
func (h *Handler) HandleSolution(w http.ResponseWriter, r *http.Request) {
	if !h.requireAgent(w, r) {
		return
	}
	ctx := r.Context()
	server.AddLogField(ctx, "stage", "step7")

	f, err := bindFields(r)
	if err == nil {
		err = f.Require("task", "step3_results_str", "step4_results_str",
			"step5_results_str", "step6_results_str", "guidelines_str")
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	task := f.String("task")
	solution, err := h.svc.Solve(ctx, critique.SolutionInput{
		Task:             task,
		ComponentResults: f.String("step3_results_str"),
		SectionResults:   f.String("step4_results_str"),
		LayoutEvaluation: f.String("step5_results_str"),
		ComponentIssues:  f.String("step6_results_str"),
		Guidelines:       f.String("guidelines_str"),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.recordStep(ctx, "step7", task, "", solution)
	writeJSON(w, http.StatusOK, map[string]any{"solution": solution})
}

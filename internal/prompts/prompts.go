// Package prompts renders the instruction and user-turn text for each
// critique stage from embedded templates.
package prompts

import (
	"embed"
	"fmt"
	"strings"
	"text/template"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// Template names.
const (
	LayoutSystem              = "layout_system.tmpl"
	LayoutUser                = "layout_user.tmpl"
	ComponentsSystem          = "components_system.tmpl"
	ComponentsUser            = "components_user.tmpl"
	ComponentAnalysisSystem   = "component_analysis_system.tmpl"
	ComponentAnalysisUser     = "component_analysis_user.tmpl"
	SectionAnalysisSystem     = "section_analysis_system.tmpl"
	SectionAnalysisUser       = "section_analysis_user.tmpl"
	LayoutEvaluationSystem    = "layout_evaluation_system.tmpl"
	LayoutEvaluationUser      = "layout_evaluation_user.tmpl"
	ComponentEvaluationSystem = "component_evaluation_system.tmpl"
	ComponentEvaluationUser   = "component_evaluation_user.tmpl"
	SolutionSystem            = "solution_system.tmpl"
	CategorizeUser            = "categorize_user.tmpl"
	SolveUser                 = "solve_user.tmpl"
	GuidelineEditorSystem     = "guideline_editor_system.tmpl"
	GuidelineEditorUser       = "guideline_editor_user.tmpl"
	BaselineSystem            = "baseline_system.tmpl"
	BaselineUser              = "baseline_user.tmpl"
	ReviseUser                = "revise_user.tmpl"
)

// Data holds the values a template may reference. Each template uses only
// the fields that apply to its stage; structured fields are pre-rendered YAML.
type Data struct {
	Task       string
	Section    string
	Guidelines string

	// Structure is the layout of the screen or of one section.
	Structure  string
	Components string
	Analysis   string

	LayoutEvaluation    string
	ComponentEvaluation string
	Categories          string
	Characteristics     string

	Update   string
	Document string
	Note     string
}

// Catalog renders the embedded templates.
type Catalog struct {
	tmpl *template.Template
}

// New parses the embedded templates.
func New() (*Catalog, error) {
	tmpl, err := template.New("prompts").Option("missingkey=error").ParseFS(templateFS, "templates/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse prompt templates: %w", err)
	}
	return &Catalog{tmpl: tmpl}, nil
}

// Render executes the named template with data.
func (c *Catalog) Render(name string, data Data) (string, error) {
	var b strings.Builder
	if err := c.tmpl.ExecuteTemplate(&b, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return strings.TrimSpace(b.String()), nil
}

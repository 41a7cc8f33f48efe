package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Validator is implemented by stage results that check their own shape after
// decoding.
type Validator interface {
	Validate() error
}

// Layout is the result of layout identification. NonAppUI is whatever the
// model listed outside the app; read it through NonAppUIItems.
type Layout struct {
	NonAppUI Value                  `yaml:"non_app_ui" json:"non_app_ui"`
	AppUI    Ordered[SectionLayout] `yaml:"app_ui" json:"app_ui"`
}

// NonAppUIItems returns non_app_ui as a list, wrapping a lone entry.
func (l Layout) NonAppUIItems() []Value {
	items := l.NonAppUI.Items()
	if items == nil {
		return []Value{}
	}
	return items
}

// Validate implements Validator.
func (l Layout) Validate() error {
	if l.AppUI.Len() == 0 {
		return errors.New("app_ui has no sections")
	}
	return nil
}

// SectionLayout describes where a section sits on screen.
type SectionLayout struct {
	Position  string `yaml:"position" json:"position"`
	SizeShape string `yaml:"size_shape" json:"size_shape"`
}

// Component is one entry of a section's component inventory.
type Component struct {
	Position      string  `yaml:"position" json:"position"`
	SizeShape     string  `yaml:"size_shape" json:"size_shape"`
	SubComponents []Value `yaml:"sub_components,omitempty" json:"sub_components,omitempty"`
}

// Validate implements Validator.
func (c Component) Validate() error {
	if strings.TrimSpace(c.Position) == "" && strings.TrimSpace(c.SizeShape) == "" {
		return errors.New("missing position and size_shape")
	}
	return nil
}

// SectionComponents maps component name to component for one section.
type SectionComponents = Ordered[Component]

// Characteristics is a visual and functional description of a component or
// a whole section.
type Characteristics struct {
	VisualCharacteristics     string `yaml:"visual_characteristics" json:"visual_characteristics"`
	FunctionalCharacteristics string `yaml:"functional_characteristics" json:"functional_characteristics"`
}

// Validate implements Validator.
func (c Characteristics) Validate() error {
	if strings.TrimSpace(c.VisualCharacteristics) == "" && strings.TrimSpace(c.FunctionalCharacteristics) == "" {
		return errors.New("missing visual_characteristics and functional_characteristics")
	}
	return nil
}

// ComponentAnalysis maps component name to its characteristics.
type ComponentAnalysis = Ordered[Characteristics]

// Issue is a single usability finding.
type Issue struct {
	ExpectedStandard string `yaml:"expected_standard" json:"expected_standard"`
	IdentifiedGap    string `yaml:"identified_gap" json:"identified_gap"`
}

// LayoutEvaluation is the result of macro layout evaluation.
type LayoutEvaluation struct {
	GlobalIssues  []Issue          `yaml:"global_issues" json:"global_issues"`
	SectionIssues Ordered[[]Issue] `yaml:"section_issues" json:"section_issues"`
}

// Validate implements Validator.
func (e LayoutEvaluation) Validate() error {
	return validateIssues("global_issues", e.GlobalIssues)
}

// ComponentEvaluation holds the component-level issues of one section.
type ComponentEvaluation struct {
	ComponentIssues Ordered[[]Issue] `yaml:"component_issues" json:"component_issues"`
}

// Validate implements Validator.
func (e ComponentEvaluation) Validate() error {
	for name, issues := range e.ComponentIssues.All() {
		if err := validateIssues(name, issues); err != nil {
			return err
		}
	}
	return nil
}

func validateIssues(where string, issues []Issue) error {
	for i, is := range issues {
		if is.ExpectedStandard == "" && is.IdentifiedGap == "" {
			return fmt.Errorf("%s[%d]: empty issue", where, i)
		}
	}
	return nil
}

// CategorizedIssue groups issues that share a root cause. The last entry of
// RootCause is the final cause.
type CategorizedIssue struct {
	RootCause []string      `yaml:"root_cause" json:"root_cause"`
	Issues    []IssueRecord `yaml:"issues" json:"issues"`
}

// IssueRecord is an issue attributed to a component.
type IssueRecord struct {
	Component   string `yaml:"component" json:"component"`
	Description string `yaml:"description" json:"description"`
}

// Categories maps category name to its grouped issues.
type Categories = Ordered[CategorizedIssue]

// Validate implements Validator.
func (c CategorizedIssue) Validate() error {
	if len(c.RootCause) == 0 {
		return errors.New("root_cause is empty")
	}
	return nil
}

// CategorySolution is the remediation plan for one issue category.
type CategorySolution struct {
	// RootCause is normally a single sentence; some replies repeat the list
	// from categorization, so it is kept loose.
	RootCause       Value `yaml:"root_cause" json:"root_cause"`
	IndividualFixes []Fix `yaml:"individual_fixes" json:"individual_fixes"`
}

// Fix is a proposed change for one component.
type Fix struct {
	Component     string        `yaml:"component" json:"component"`
	Issue         string        `yaml:"issue" json:"issue"`
	FinalSolution FinalSolution `yaml:"final_solution" json:"final_solution"`
}

// FinalSolution details a fix.
type FinalSolution struct {
	ExpectedStandard string `yaml:"expected_standard" json:"expected_standard"`
	IdentifiedGap    string `yaml:"identified_gap" json:"identified_gap"`
	ProposedFix      string `yaml:"proposed_fix" json:"proposed_fix"`
}

// Solution maps category name to its remediation plan.
type Solution = Ordered[CategorySolution]

// Guideline is one numbered usability principle. ID is kept as written so
// fractional insertions like 4.1 survive.
type Guideline struct {
	ID          string `yaml:"id" json:"id"`
	Title       string `yaml:"title" json:"title"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
	Text        string `yaml:"text,omitempty" json:"text,omitempty"`
}

// Body returns the description, falling back to text.
func (g Guideline) Body() string {
	if g.Description != "" {
		return g.Description
	}
	return g.Text
}

// GuidelineSet is the guideline editor's reply.
type GuidelineSet struct {
	ChangeLog  Value       `yaml:"change_log" json:"change_log"`
	Guidelines []Guideline `yaml:"guidelines" json:"guidelines"`
}

// Validate implements Validator.
func (s GuidelineSet) Validate() error {
	if len(s.Guidelines) == 0 {
		return errors.New("guidelines is empty")
	}
	return nil
}

// FormatGuidelines renders guidelines one per line as "id. **title**: body".
func (s GuidelineSet) FormatGuidelines() string {
	lines := make([]string, 0, len(s.Guidelines))
	for _, g := range s.Guidelines {
		lines = append(lines, fmt.Sprintf("%s. **%s**: %s", g.ID, g.Title, g.Body()))
	}
	return strings.Join(lines, "\n")
}

// FormatChangeLog renders the change log as a dash list. Entries that are
// not plain text are written inline as JSON.
func (s GuidelineSet) FormatChangeLog() string {
	entries := s.ChangeLog.Items()
	lines := make([]string, 0, len(entries))
	for _, entry := range entries {
		lines = append(lines, "- "+entry.Inline())
	}
	return strings.Join(lines, "\n")
}

// GuidelineEdit is the cached outcome of a guideline edit.
type GuidelineEdit struct {
	Guidelines string `json:"guidelines"`
	ChangeLog  string `json:"change_log"`
}

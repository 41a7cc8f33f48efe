package critique

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/tjfontaine/uxcritique/internal/cache"
	"github.com/tjfontaine/uxcritique/internal/codec"
	"github.com/tjfontaine/uxcritique/internal/domain"
	"github.com/tjfontaine/uxcritique/internal/prompts"
)

// LayoutResult is the outcome of layout identification.
type LayoutResult struct {
	Layout domain.Layout
	// Raw is the reply as received.
	Raw string
}

// Layout segments the screenshot into sections.
func (s *Service) Layout(ctx context.Context, task string, img *domain.Image) (res LayoutResult, err error) {
	ctx, span := s.startStage(ctx, "layout")
	defer func() { endSpan(span, err) }()

	p, err := s.prompt("layout", domain.TierVision, prompts.LayoutSystem, prompts.LayoutUser,
		prompts.Data{Task: task}, img)
	if err != nil {
		return res, err
	}
	raw, err := s.invoke(ctx, p)
	if err != nil {
		return res, err
	}
	layout, err := codec.Decode[domain.Layout](raw, "")
	if err != nil {
		return res, err
	}
	span.SetAttributes(attribute.Int("critique.sections", layout.AppUI.Len()))
	return LayoutResult{Layout: layout, Raw: raw}, nil
}

// Components inventories the components of every section of appUI.
func (s *Service) Components(ctx context.Context, task string, img *domain.Image, appUI domain.Value) (domain.Ordered[domain.Item[domain.SectionComponents]], error) {
	if !appUI.IsMapping() || appUI.Len() == 0 {
		return domain.Ordered[domain.Item[domain.SectionComponents]]{}, domain.ErrInvalidRequest("app_ui must be a non-empty mapping of sections")
	}
	ctx, span := s.startStage(ctx, "components")
	defer span.End()

	structure := appUI.YAML()
	return eachItem(ctx, s, "components", keysOf(appUI), func(ctx context.Context, section string) (domain.SectionComponents, error) {
		p, err := s.prompt("components", domain.TierVision, prompts.ComponentsSystem, prompts.ComponentsUser,
			prompts.Data{Task: task, Section: section, Structure: structure}, img)
		if err != nil {
			return domain.SectionComponents{}, err
		}
		raw, err := s.invoke(ctx, p)
		if err != nil {
			return domain.SectionComponents{}, err
		}
		return codec.Decode[domain.SectionComponents](raw, section)
	}), nil
}

// ComponentAnalysis describes each component of every section in
// components, the inventory produced by Components.
func (s *Service) ComponentAnalysis(ctx context.Context, task string, img *domain.Image, components domain.Value) (domain.Ordered[domain.Item[domain.ComponentAnalysis]], error) {
	if !components.IsMapping() || components.Len() == 0 {
		return domain.Ordered[domain.Item[domain.ComponentAnalysis]]{}, domain.ErrInvalidRequest("No UI components provided")
	}
	ctx, span := s.startStage(ctx, "component_analysis")
	defer span.End()

	return eachItem(ctx, s, "component_analysis", keysOf(components), func(ctx context.Context, section string) (domain.ComponentAnalysis, error) {
		list, _ := components.Lookup(section)
		p, err := s.prompt("component_analysis", domain.TierVision, prompts.ComponentAnalysisSystem, prompts.ComponentAnalysisUser,
			prompts.Data{Task: task, Section: section, Components: list.YAML()}, img)
		if err != nil {
			return domain.ComponentAnalysis{}, err
		}
		raw, err := s.invoke(ctx, p)
		if err != nil {
			return domain.ComponentAnalysis{}, err
		}
		return codec.Decode[domain.ComponentAnalysis](raw, section)
	}), nil
}

// SectionAnalysis describes every section named in analysis, the output of
// ComponentAnalysis. Sections missing from appUI fail individually.
func (s *Service) SectionAnalysis(ctx context.Context, task string, img *domain.Image, appUI, analysis domain.Value) (domain.Ordered[domain.Item[domain.Characteristics]], error) {
	if !analysis.IsMapping() {
		return domain.Ordered[domain.Item[domain.Characteristics]]{}, domain.ErrInvalidRequest("step3_results must be a mapping of sections")
	}
	ctx, span := s.startStage(ctx, "section_analysis")
	defer span.End()

	return eachItem(ctx, s, "section_analysis", keysOf(analysis), func(ctx context.Context, section string) (domain.Characteristics, error) {
		structure, ok := appUI.Lookup(section)
		if !ok {
			return domain.Characteristics{}, domain.ErrInvalidRequest(fmt.Sprintf("Section '%s' not found in app_ui.", section))
		}
		components, _ := analysis.Lookup(section)
		p, err := s.prompt("section_analysis", domain.TierVision, prompts.SectionAnalysisSystem, prompts.SectionAnalysisUser,
			prompts.Data{Task: task, Section: section, Structure: structure.YAML(), Components: components.YAML()}, img)
		if err != nil {
			return domain.Characteristics{}, err
		}
		raw, err := s.invoke(ctx, p)
		if err != nil {
			return domain.Characteristics{}, err
		}
		return codec.Decode[domain.Characteristics](raw, section)
	}), nil
}

// EvaluationInput carries the earlier results as the YAML text the client
// holds.
type EvaluationInput struct {
	Task             string
	Image            *domain.Image
	ComponentResults string
	SectionResults   string
	Guidelines       string
}

// Evaluation is the combined layout and component evaluation. Either half
// may fail without the other.
type Evaluation struct {
	Layout     domain.Item[domain.LayoutEvaluation]
	Components domain.Item[domain.Ordered[domain.Item[domain.ComponentEvaluation]]]
}

// Evaluate judges the layout as a whole and then the components of each
// section against the guidelines.
func (s *Service) Evaluate(ctx context.Context, in EvaluationInput) Evaluation {
	ctx, span := s.startStage(ctx, "evaluate")
	defer span.End()

	var out Evaluation
	if layout, err := s.evaluateLayout(ctx, in); err != nil {
		out.Layout = domain.ItemError[domain.LayoutEvaluation]("Error in Step 5: " + itemMessage(err))
	} else {
		out.Layout = domain.ItemOK(layout)
	}

	if components, err := s.evaluateComponents(ctx, in); err != nil {
		out.Components = domain.ItemError[domain.Ordered[domain.Item[domain.ComponentEvaluation]]]("Error in Step 6: " + itemMessage(err))
	} else {
		out.Components = domain.ItemOK(components)
	}
	return out
}

func (s *Service) evaluateLayout(ctx context.Context, in EvaluationInput) (res domain.LayoutEvaluation, err error) {
	ctx, span := s.startStage(ctx, "layout_evaluation")
	defer func() { endSpan(span, err) }()

	sections, err := parseInput("step4_results_str", in.SectionResults)
	if err != nil {
		return res, err
	}
	p, err := s.prompt("layout_evaluation", domain.TierVision, prompts.LayoutEvaluationSystem, prompts.LayoutEvaluationUser,
		prompts.Data{Task: in.Task, Guidelines: in.Guidelines, Analysis: sections.YAML()}, in.Image)
	if err != nil {
		return res, err
	}
	raw, err := s.invoke(ctx, p)
	if err != nil {
		return res, err
	}
	return codec.Decode[domain.LayoutEvaluation](raw, "")
}

func (s *Service) evaluateComponents(ctx context.Context, in EvaluationInput) (domain.Ordered[domain.Item[domain.ComponentEvaluation]], error) {
	ctx, span := s.startStage(ctx, "component_evaluation")
	defer span.End()

	analysis, err := parseInput("step3_results_str", in.ComponentResults)
	if err != nil {
		return domain.Ordered[domain.Item[domain.ComponentEvaluation]]{}, err
	}
	if !analysis.IsMapping() {
		return domain.Ordered[domain.Item[domain.ComponentEvaluation]]{}, domain.ErrInvalidRequest("step3_results_str must be a mapping of sections")
	}

	return eachItem(ctx, s, "component_evaluation", keysOf(analysis), func(ctx context.Context, section string) (domain.ComponentEvaluation, error) {
		components, _ := analysis.Lookup(section)
		p, err := s.prompt("component_evaluation", domain.TierVision, prompts.ComponentEvaluationSystem, prompts.ComponentEvaluationUser,
			prompts.Data{Task: in.Task, Guidelines: in.Guidelines, Section: section, Components: components.YAML()}, in.Image)
		if err != nil {
			return domain.ComponentEvaluation{}, err
		}
		raw, err := s.invoke(ctx, p)
		if err != nil {
			return domain.ComponentEvaluation{}, err
		}
		return codec.Decode[domain.ComponentEvaluation](raw, section)
	}), nil
}

// SolutionInput carries every earlier result as YAML text.
type SolutionInput struct {
	Task             string
	ComponentResults string
	SectionResults   string
	LayoutEvaluation string
	ComponentIssues  string
	Guidelines       string
}

// Solve groups the evaluation findings into root-cause categories and then
// proposes fixes per category. Both calls use the reasoning tier.
func (s *Service) Solve(ctx context.Context, in SolutionInput) (sol domain.Solution, err error) {
	ctx, span := s.startStage(ctx, "solution")
	defer func() { endSpan(span, err) }()

	var componentAnalysis, sectionAnalysis, layoutEval, componentEval domain.Value
	for _, f := range []struct {
		field, text string
		out         *domain.Value
	}{
		{"step3_results_str", in.ComponentResults, &componentAnalysis},
		{"step4_results_str", in.SectionResults, &sectionAnalysis},
		{"step5_results_str", in.LayoutEvaluation, &layoutEval},
		{"step6_results_str", in.ComponentIssues, &componentEval},
	} {
		v, err := parseInput(f.field, f.text)
		if err != nil {
			return sol, domain.ErrInvalidRequest("Error in Step 7: " + itemMessage(err)).WithCause(err)
		}
		*f.out = v
	}

	data := prompts.Data{
		Task:                in.Task,
		Guidelines:          in.Guidelines,
		LayoutEvaluation:    layoutEval.YAML(),
		ComponentEvaluation: componentEval.YAML(),
	}

	categorize, err := s.prompt("categorize", domain.TierReasoning, prompts.SolutionSystem, prompts.CategorizeUser, data, nil)
	if err != nil {
		return sol, err
	}
	raw, err := s.invoke(ctx, categorize)
	if err != nil {
		return sol, err
	}
	categories, err := codec.DecodeRequired[domain.Categories](raw, "categorized_issues")
	if err != nil {
		return sol, err
	}
	span.SetAttributes(attribute.Int("critique.categories", categories.Len()))

	var characteristics domain.Ordered[domain.Value]
	characteristics.Set("section_analysis", sectionAnalysis)
	characteristics.Set("component_analysis", componentAnalysis)
	data.Categories = render(categories)
	data.Characteristics = render(characteristics)

	solve, err := s.prompt("solve", domain.TierReasoning, prompts.SolutionSystem, prompts.SolveUser, data, nil)
	if err != nil {
		return sol, err
	}
	raw, err = s.invoke(ctx, solve)
	if err != nil {
		return sol, err
	}
	return codec.Decode[domain.Solution](raw, "solution")
}

// EditGuidelines applies a free-form edit to the guideline text. Identical
// requests are served from the cache; hit reports whether this one was.
func (s *Service) EditGuidelines(ctx context.Context, update, guidelines string) (edit domain.GuidelineEdit, hit bool, err error) {
	ctx, span := s.startStage(ctx, "guideline_edit")
	defer func() {
		span.SetAttributes(attribute.Bool("cache.hit", hit))
		endSpan(span, err)
	}()

	return s.cache.GetOrCompute(ctx, cache.Key{Update: update, Guidelines: guidelines}, func(ctx context.Context) (domain.GuidelineEdit, error) {
		p, err := s.prompt("guideline_edit", domain.TierVision, prompts.GuidelineEditorSystem, prompts.GuidelineEditorUser,
			prompts.Data{Update: update, Guidelines: guidelines}, nil)
		if err != nil {
			return domain.GuidelineEdit{}, err
		}
		raw, err := s.invoke(ctx, p)
		if err != nil {
			return domain.GuidelineEdit{}, err
		}
		set, err := codec.Decode[domain.GuidelineSet](raw, "")
		if err != nil {
			return domain.GuidelineEdit{}, err
		}
		return domain.GuidelineEdit{
			Guidelines: set.FormatGuidelines(),
			ChangeLog:  set.FormatChangeLog(),
		}, nil
	})
}

// Baseline asks for a single-pass critique of the screenshot. The reply is
// returned with fences removed but otherwise unparsed.
func (s *Service) Baseline(ctx context.Context, task, guidelines string, img *domain.Image) (text string, err error) {
	ctx, span := s.startStage(ctx, "baseline")
	defer func() { endSpan(span, err) }()

	p, err := s.prompt("baseline", domain.TierVision, prompts.BaselineSystem, prompts.BaselineUser,
		prompts.Data{Task: task, Guidelines: guidelines}, img)
	if err != nil {
		return "", err
	}
	raw, err := s.invoke(ctx, p)
	if err != nil {
		return "", err
	}
	return codec.StripFences(raw), nil
}

// Revise regenerates a whole baseline document according to note. The reply
// must be a mapping or a sequence.
func (s *Service) Revise(ctx context.Context, guidelines string, previous domain.Value, note string) (doc domain.Value, err error) {
	ctx, span := s.startStage(ctx, "revise")
	defer func() { endSpan(span, err) }()

	p, err := s.prompt("revise", domain.TierVision, prompts.BaselineSystem, prompts.ReviseUser,
		prompts.Data{Guidelines: guidelines, Document: previous.YAML(), Note: note}, nil)
	if err != nil {
		return doc, err
	}
	raw, err := s.invoke(ctx, p)
	if err != nil {
		return doc, err
	}

	cleaned := trimFenceLines(raw)
	doc, err = domain.ParseValue(cleaned)
	if err != nil {
		return doc, domain.ErrRevision(fmt.Sprintf("Revision failed: Failed to parse YAML: %v", err)).WithRaw(raw).WithCause(err)
	}
	if !doc.IsMapping() && !doc.IsSequence() {
		return domain.Value{}, domain.ErrRevision("Revision failed: Invalid YAML root type: " + kindOf(doc)).WithRaw(raw)
	}
	return doc, nil
}

// trimFenceLines drops a first and a last line that open or close a fence.
func trimFenceLines(raw string) string {
	lines := strings.Split(strings.TrimSpace(raw), "\n")
	if len(lines) > 0 && strings.HasPrefix(lines[0], "```") {
		lines = lines[1:]
	}
	if len(lines) > 0 && strings.HasPrefix(lines[len(lines)-1], "```") {
		lines = lines[:len(lines)-1]
	}
	return strings.Join(lines, "\n")
}

func kindOf(v domain.Value) string {
	if v.IsZero() {
		return "null"
	}
	return strings.TrimPrefix(v.Node().ShortTag(), "!!")
}

// parseInput parses a YAML field sent back by the client.
func parseInput(field, text string) (domain.Value, error) {
	v, err := domain.ParseValue(text)
	if err != nil {
		return v, domain.ErrInvalidRequest(fmt.Sprintf("%s is not valid YAML: %v", field, err)).WithCause(err)
	}
	return v, nil
}

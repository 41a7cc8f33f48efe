// Package tokens counts prompt tokens so stage logs and spans can report
// how large each model request was.
package tokens

import (
	"strings"
)

// Counter counts the tokens of a system plus user prompt.
type Counter interface {
	CountPrompt(model, system, user string) (int, error)
	SupportsModel(model string) bool
}

// Registry picks the first registered counter that supports a model and
// falls back to an estimate.
type Registry struct {
	counters []Counter
	fallback *Estimator
}

// NewRegistry creates a registry with the tiktoken counter for OpenAI models
// and the character estimator for everything else.
func NewRegistry() *Registry {
	r := &Registry{fallback: NewEstimator()}
	r.Register(NewOpenAICounter())
	return r
}

// Register adds a token counter to the registry.
func (r *Registry) Register(counter Counter) {
	r.counters = append(r.counters, counter)
}

// CountPrompt returns the token count for a prompt and whether it is an
// estimate. Counter failures degrade to the estimate.
func (r *Registry) CountPrompt(model, system, user string) (int, bool) {
	for _, c := range r.counters {
		if !c.SupportsModel(model) {
			continue
		}
		if n, err := c.CountPrompt(model, system, user); err == nil {
			return n, false
		}
		break
	}
	n, _ := r.fallback.CountPrompt(model, system, user)
	return n, true
}

// Estimator provides token count estimation based on character count.
type Estimator struct {
	// CharsPerToken is the average characters per token (default: 4)
	CharsPerToken float64
}

// NewEstimator creates a new token estimator.
func NewEstimator() *Estimator {
	return &Estimator{CharsPerToken: 4.0}
}

// CountPrompt estimates the token count.
func (e *Estimator) CountPrompt(_, system, user string) (int, error) {
	// 4 characters of framing per message
	chars := len(system) + len(user) + 8
	return int(float64(chars) / e.CharsPerToken), nil
}

// SupportsModel returns true; the estimator is the fallback for every model.
func (e *Estimator) SupportsModel(string) bool {
	return true
}

// ModelMatcher matches model names by prefix or exact name.
type ModelMatcher struct {
	prefixes []string
	exact    []string
}

// NewModelMatcher creates a new model matcher.
func NewModelMatcher(prefixes, exact []string) *ModelMatcher {
	return &ModelMatcher{
		prefixes: prefixes,
		exact:    exact,
	}
}

// Matches returns true if the model matches any pattern.
func (m *ModelMatcher) Matches(model string) bool {
	for _, e := range m.exact {
		if model == e {
			return true
		}
	}
	for _, p := range m.prefixes {
		if strings.HasPrefix(model, p) {
			return true
		}
	}
	return false
}

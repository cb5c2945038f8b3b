package engine

import (
	"strings"

	"github.com/rs/zerolog"

	"github.com/planguard/planguard/pkg/plan"
	"github.com/planguard/planguard/pkg/policy"
)

// Engine evaluates compiled policy rules against plan resources. It holds no
// per-call mutable state: the same instance may be used for any number of
// runs, concurrently, over independent inputs.
type Engine struct {
	logger zerolog.Logger

	// truthy and falsy are the boolean-string coercion tables used by the
	// equals comparator. Keys are lowercase.
	truthy map[string]bool
	falsy  map[string]bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithBoolStrings replaces the boolean-string coercion tables. Entries are
// matched case-insensitively.
func WithBoolStrings(truthy, falsy []string) Option {
	return func(e *Engine) {
		e.truthy = make(map[string]bool, len(truthy))
		for _, s := range truthy {
			e.truthy[strings.ToLower(s)] = true
		}
		e.falsy = make(map[string]bool, len(falsy))
		for _, s := range falsy {
			e.falsy[strings.ToLower(s)] = true
		}
	}
}

// New creates an evaluation engine.
func New(logger zerolog.Logger, opts ...Option) *Engine {
	e := &Engine{
		logger: logger.With().Str("component", "policy-engine").Logger(),
		truthy: map[string]bool{"true": true, "yes": true, "1": true},
		falsy:  map[string]bool{"false": true, "no": true, "0": true},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// EvaluateAll evaluates every rule against every resource and returns the
// concatenated violations in rule order. raw is the decoded plan document;
// it may be nil, in which case cross-resource rules see empty reference and
// constant maps. The maps and the resource index are built once per run and
// shared read-only across all rules.
func (e *Engine) EvaluateAll(rules []*policy.Rule, resources []plan.Resource, raw map[string]interface{}) []policy.Violation {
	var refs plan.ReferenceMap
	var constants plan.ConstantMap
	if raw != nil {
		refs = plan.ExtractReferences(raw)
		constants = plan.ExtractConstants(raw)
	}

	index := newResourceIndex(resources)

	var violations []policy.Violation
	for _, rule := range rules {
		if rule.Forbidden || rule.Check != nil {
			violations = append(violations, e.evaluateSimple(rule, resources)...)
		}
		if len(rule.Requires) > 0 {
			violations = append(violations, e.evaluateCross(rule, index, refs, constants)...)
		}
	}

	e.logger.Debug().
		Int("rules", len(rules)).
		Int("resources", len(resources)).
		Int("violations", len(violations)).
		Msg("Evaluation completed")

	return violations
}

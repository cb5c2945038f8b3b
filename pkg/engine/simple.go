package engine

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/planguard/planguard/pkg/plan"
	"github.com/planguard/planguard/pkg/policy"
	"github.com/planguard/planguard/pkg/security"
)

// evaluateSimple applies a forbidden-resource or property rule to every
// resource whose type the rule targets, returning at most one violation per
// resource.
func (e *Engine) evaluateSimple(rule *policy.Rule, resources []plan.Resource) []policy.Violation {
	var violations []policy.Violation

	for _, resource := range resources {
		if !rule.MatchesResourceType(resource.Type) {
			continue
		}
		if v := e.checkResource(rule, resource); v != nil {
			violations = append(violations, *v)
		}
	}

	return violations
}

// checkResource evaluates one resource against a rule. Evaluation is total:
// absent properties, non-coercible operands, invalid regex patterns, and
// non-map values under has_keys all resolve to a violation, never a panic or
// an error.
func (e *Engine) checkResource(rule *policy.Rule, resource plan.Resource) *policy.Violation {
	if rule.Forbidden {
		return e.newViolation(rule, resource, rule.FormatMessage(resource.Address, security.ContextTerminal))
	}

	actual, found := plan.Resolve(resource.Values, rule.Property)
	if !found {
		message := fmt.Sprintf("%s (property '%s' not found)",
			rule.FormatMessage(resource.Address, security.ContextTerminal), rule.Property)
		return e.newViolation(rule, resource, message)
	}

	if ok, detail := e.compare(rule.Check, actual); !ok {
		message := fmt.Sprintf("%s %s",
			rule.FormatMessage(resource.Address, security.ContextTerminal), detail)
		return e.newViolation(rule, resource, message)
	}

	return nil
}

func (e *Engine) newViolation(rule *policy.Rule, resource plan.Resource, message string) *policy.Violation {
	return &policy.Violation{
		RuleID:       rule.ID,
		RuleName:     rule.Name,
		ResourceName: resource.Address,
		ResourceType: resource.Type,
		Severity:     rule.Severity,
		Message:      message,
	}
}

// compare evaluates a compiled comparator against the actual value. It
// returns whether the check passed and, on failure, a structured suffix
// naming the comparator and both values.
func (e *Engine) compare(check *policy.Check, actual interface{}) (bool, string) {
	switch check.Op {
	case policy.OpEquals:
		if e.valuesMatch(actual, check.Value) {
			return true, ""
		}
		return false, fmt.Sprintf("(expected '%s', got '%s')", formatValue(check.Value), formatValue(actual))

	case policy.OpGreaterThan, policy.OpGreaterThanOrEqual, policy.OpLessThan, policy.OpLessThanOrEqual:
		return compareOrdered(check, actual)

	case policy.OpContains:
		expected, _ := check.Value.(string)
		if containsValue(actual, expected) {
			return true, ""
		}
		return false, fmt.Sprintf("(expected value containing '%s', got '%s')", expected, formatValue(actual))

	case policy.OpIn:
		for _, candidate := range check.Values {
			if e.valuesMatch(actual, candidate) {
				return true, ""
			}
		}
		return false, fmt.Sprintf("(expected one of %v, got '%s')", check.Values, formatValue(actual))

	case policy.OpRegexMatch:
		re, err := regexp.Compile(check.Pattern)
		if err != nil {
			// A pattern that does not compile can never match.
			return false, fmt.Sprintf("(invalid pattern '%s')", check.Pattern)
		}
		if re.MatchString(stringify(actual)) {
			return true, ""
		}
		return false, fmt.Sprintf("(expected value matching '%s', got '%s')", check.Pattern, formatValue(actual))

	case policy.OpHasKeys:
		if hasKeys(actual, check.Keys) {
			return true, ""
		}
		return false, fmt.Sprintf("(expected map with keys %v, got '%s')", check.Keys, formatValue(actual))

	case policy.OpIsNotEmpty:
		if isNotEmpty(actual) {
			return true, ""
		}
		return false, fmt.Sprintf("(expected non-empty value, got '%s')", formatValue(actual))
	}

	return false, fmt.Sprintf("(unknown comparator '%s')", check.Op)
}

// compareOrdered handles the four numeric comparators. The actual value must
// be a number or a numeric string; anything else fails the comparison.
func compareOrdered(check *policy.Check, actual interface{}) (bool, string) {
	symbol := map[policy.CheckOp]string{
		policy.OpGreaterThan:        ">",
		policy.OpGreaterThanOrEqual: ">=",
		policy.OpLessThan:           "<",
		policy.OpLessThanOrEqual:    "<=",
	}[check.Op]

	value, ok := numericValue(actual)
	if !ok {
		return false, fmt.Sprintf("(expected value %s %v, got non-numeric '%s')", symbol, check.Number, formatValue(actual))
	}

	var pass bool
	switch check.Op {
	case policy.OpGreaterThan:
		pass = value > check.Number
	case policy.OpGreaterThanOrEqual:
		pass = value >= check.Number
	case policy.OpLessThan:
		pass = value < check.Number
	case policy.OpLessThanOrEqual:
		pass = value <= check.Number
	}

	if pass {
		return true, ""
	}
	return false, fmt.Sprintf("(expected value %s %v, got '%s')", symbol, check.Number, formatValue(actual))
}

// valuesMatch compares two values for equality with the coercions the equals
// comparator allows: numeric cross-type, numeric string, and boolean string
// via the engine's coercion tables.
func (e *Engine) valuesMatch(actual, expected interface{}) bool {
	if deepEqual(actual, expected) {
		return true
	}

	aNum, aIsNum := asNumber(actual)
	eNum, eIsNum := asNumber(expected)
	if aIsNum && eIsNum {
		return aNum == eNum
	}
	if aIsNum {
		if s, ok := expected.(string); ok {
			if f, err := strconv.ParseFloat(s, 64); err == nil {
				return aNum == f
			}
		}
	}
	if eIsNum {
		if s, ok := actual.(string); ok {
			if f, err := strconv.ParseFloat(s, 64); err == nil {
				return f == eNum
			}
		}
	}

	if b, ok := actual.(bool); ok {
		if s, ok := expected.(string); ok {
			return e.boolMatchesString(b, s)
		}
	}
	if b, ok := expected.(bool); ok {
		if s, ok := actual.(string); ok {
			return e.boolMatchesString(b, s)
		}
	}

	return false
}

func (e *Engine) boolMatchesString(b bool, s string) bool {
	lower := strings.ToLower(s)
	if b {
		return e.truthy[lower]
	}
	return e.falsy[lower]
}

// containsValue implements the contains comparator: substring for strings,
// element membership for slices, stringified substring otherwise.
func containsValue(actual interface{}, expected string) bool {
	switch node := actual.(type) {
	case string:
		return strings.Contains(node, expected)
	case []interface{}:
		for _, element := range node {
			if deepEqual(element, expected) {
				return true
			}
		}
		return false
	default:
		return strings.Contains(stringify(actual), expected)
	}
}

// hasKeys reports whether actual is a map containing every required key.
func hasKeys(actual interface{}, keys []string) bool {
	m, ok := actual.(map[string]interface{})
	if !ok {
		return false
	}
	for _, key := range keys {
		if _, present := m[key]; !present {
			return false
		}
	}
	return true
}

// isNotEmpty reports whether a present value is non-empty. Values with a
// length concept must be nonzero length; null is empty; any other scalar
// counts as non-empty.
func isNotEmpty(actual interface{}) bool {
	switch node := actual.(type) {
	case nil:
		return false
	case string:
		return len(node) > 0
	case []interface{}:
		return len(node) > 0
	case map[string]interface{}:
		return len(node) > 0
	default:
		return true
	}
}

// asNumber converts numeric types to float64. Strings are not numbers here;
// string coercion is handled separately where it is allowed.
func asNumber(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// numericValue parses the actual operand of an ordering comparator: a
// number, or a string that parses as one.
func numericValue(v interface{}) (float64, bool) {
	if f, ok := asNumber(v); ok {
		return f, true
	}
	if s, ok := v.(string); ok {
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return f, true
		}
	}
	return 0, false
}

// deepEqual is equality over decoded JSON trees: nils, scalars, slices, and
// maps compare structurally.
func deepEqual(a, b interface{}) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	switch av := a.(type) {
	case []interface{}:
		bv, ok := b.([]interface{})
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !deepEqual(av[i], bv[i]) {
				return false
			}
		}
		return true
	case map[string]interface{}:
		bv, ok := b.(map[string]interface{})
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, v := range av {
			bval, present := bv[k]
			if !present || !deepEqual(v, bval) {
				return false
			}
		}
		return true
	default:
		return a == b
	}
}

// formatValue renders a value for violation messages.
func formatValue(v interface{}) string {
	if v == nil {
		return "null"
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

// stringify renders a value for regex matching.
func stringify(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

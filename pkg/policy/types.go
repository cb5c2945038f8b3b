package policy

import (
	"fmt"
	"strings"

	"github.com/planguard/planguard/pkg/security"
)

// Severity represents the severity level of a policy violation.
type Severity string

const (
	// SeverityWarning is advisory; it blocks only under strict mode.
	SeverityWarning Severity = "warning"

	// SeverityError always blocks the run.
	SeverityError Severity = "error"
)

// Relationship describes how a required resource relates to the primary
// resource of a cross-resource rule.
type Relationship string

const (
	// RelReferencesPrimary matches resources the primary points to in the
	// plan's reference graph.
	RelReferencesPrimary Relationship = "references_primary"

	// RelReferencedByPrimary matches resources that point to the primary,
	// either through the reference graph or through a constant property
	// value equal to the primary's identifier.
	RelReferencedByPrimary Relationship = "referenced_by_primary"

	// RelSameNameSuffix matches resources of the target type that share the
	// primary's declared name. No plan configuration data is needed.
	RelSameNameSuffix Relationship = "same_name_suffix"
)

// CheckOp identifies the single comparator a property-based rule evaluates.
type CheckOp string

const (
	OpEquals             CheckOp = "equals"
	OpGreaterThan        CheckOp = "greater_than"
	OpGreaterThanOrEqual CheckOp = "greater_than_or_equal"
	OpLessThan           CheckOp = "less_than"
	OpLessThanOrEqual    CheckOp = "less_than_or_equal"
	OpContains           CheckOp = "contains"
	OpIn                 CheckOp = "in"
	OpRegexMatch         CheckOp = "regex_match"
	OpHasKeys            CheckOp = "has_keys"
	OpIsNotEmpty         CheckOp = "is_not_empty"
)

// Check is the compiled comparator of a property-based rule: a tag plus the
// payload the tagged operation needs. Exactly one comparator field of the
// rule spec maps to one Check; RuleSpec.Compile rejects everything else.
type Check struct {
	// Op selects the comparator.
	Op CheckOp

	// Value is the expected value for OpEquals and OpContains. For OpEquals
	// a nil Value is a legal expectation (the rule said "equals": null).
	Value interface{}

	// Number is the threshold for the four ordering comparators.
	Number float64

	// Values is the membership list for OpIn.
	Values []interface{}

	// Pattern is the unanchored pattern for OpRegexMatch.
	Pattern string

	// Keys are the required map keys for OpHasKeys.
	Keys []string
}

// RequiredResource specifies a related resource that must exist alongside a
// matching primary resource.
type RequiredResource struct {
	// ResourceType is the Terraform type of the required resource.
	ResourceType string

	// Relationship selects the matching strategy.
	Relationship Relationship

	// ReferenceProperty names the property carrying the reference. Set for
	// the two reference-based relationships, empty for same_name_suffix.
	ReferenceProperty string

	// MinCount is the minimum number of related resources required.
	MinCount int

	// MaxCount, when non-nil, is the maximum number allowed.
	MaxCount *int

	// Conditions maps property paths to values every related resource must
	// carry, compared with exact equality.
	Conditions map[string]interface{}

	// MessageSuffix is appended to violation messages for this spec.
	MessageSuffix string
}

// Rule is a compiled policy rule. It is produced by RuleSpec.Compile, which
// guarantees the mode invariants: Forbidden rules carry no Check and no
// Requires; property rules carry exactly one Check; cross-resource rules
// carry Requires and optionally a Property+Check pair.
type Rule struct {
	// ID uniquely identifies the rule.
	ID string

	// Name is the human-readable rule name.
	Name string

	// ResourceTypes are the Terraform types this rule targets. Always
	// non-empty; a single-type rule has one entry.
	ResourceTypes []string

	// Severity is error or warning.
	Severity Severity

	// Message is the violation message template. {{resource_name}} is
	// replaced with the violating resource's address.
	Message string

	// Forbidden marks any matching resource as a violation by itself.
	Forbidden bool

	// Property is the dot-notation path checked by Check.
	Property string

	// Check is the compiled comparator, nil for forbidden and
	// property-less cross-resource rules.
	Check *Check

	// Requires are the cross-resource specifications, if any.
	Requires []RequiredResource
}

// MatchesResourceType reports whether the rule targets the given type.
func (r *Rule) MatchesResourceType(resourceType string) bool {
	for _, t := range r.ResourceTypes {
		if t == resourceType {
			return true
		}
	}
	return false
}

// FormatMessage renders the rule's message template for a resource. The
// resource name is sanitized for the given output context before insertion
// so plan-controlled names cannot inject control sequences.
func (r *Rule) FormatMessage(resourceName string, context security.OutputContext) string {
	safe := security.SanitizeForOutput(resourceName, context)
	return strings.ReplaceAll(r.Message, "{{resource_name}}", safe)
}

// Violation records that a specific resource failed a specific rule. It is
// immutable once created; evaluators construct them and reporters render
// them, nothing in between mutates them.
type Violation struct {
	// RuleID is the identifier of the violated rule.
	RuleID string `json:"rule_id"`

	// RuleName is the human-readable name of the violated rule.
	RuleName string `json:"rule_name"`

	// ResourceName is the address of the violating resource.
	ResourceName string `json:"resource_name"`

	// ResourceType is the Terraform type of the violating resource.
	ResourceType string `json:"resource_type"`

	// Severity is the rule's severity.
	Severity Severity `json:"severity"`

	// Message explains the violation, including expected and actual values.
	Message string `json:"message"`

	// Location is an optional source location, reserved for HCL mapping.
	Location string `json:"location,omitempty"`
}

// IsError reports whether the violation has error severity.
func (v Violation) IsError() bool {
	return v.Severity == SeverityError
}

// IsWarning reports whether the violation has warning severity.
func (v Violation) IsWarning() bool {
	return v.Severity == SeverityWarning
}

// String returns a compact single-line form, useful in logs.
func (v Violation) String() string {
	prefix := "WARN"
	if v.IsError() {
		prefix = "ERROR"
	}
	return fmt.Sprintf("[%s] %s (%s): %s", prefix, v.ResourceName, v.ResourceType, v.Message)
}

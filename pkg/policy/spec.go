package policy

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/planguard/planguard/pkg/security"
)

// validate checks the per-field constraints of rule specs. Cross-field
// exclusivity is enforced by hand in Compile; tags cannot express it.
var validate = validator.New()

// ValidationError identifies the field or field combination that made a rule
// spec invalid.
type ValidationError struct {
	// RuleID is the id of the offending rule, if it was parseable.
	RuleID string

	// Field is the field or field combination that failed.
	Field string

	// Message describes the failure.
	Message string
}

func (e *ValidationError) Error() string {
	if e.RuleID != "" {
		return fmt.Sprintf("rule %s: %s: %s", e.RuleID, e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (s *RuleSpec) invalid(field, format string, args ...interface{}) error {
	return &ValidationError{RuleID: s.ID, Field: field, Message: fmt.Sprintf(format, args...)}
}

// RequiredResourceSpec is the wire shape of a cross-resource requirement.
type RequiredResourceSpec struct {
	ResourceType      string                 `json:"resource_type" yaml:"resource_type" validate:"required"`
	Relationship      string                 `json:"relationship" yaml:"relationship" validate:"required,oneof=references_primary referenced_by_primary same_name_suffix"`
	ReferenceProperty string                 `json:"reference_property,omitempty" yaml:"reference_property,omitempty"`
	MinCount          *int                   `json:"min_count,omitempty" yaml:"min_count,omitempty" validate:"omitempty,gte=0"`
	MaxCount          *int                   `json:"max_count,omitempty" yaml:"max_count,omitempty" validate:"omitempty,gte=1"`
	Conditions        map[string]interface{} `json:"conditions,omitempty" yaml:"conditions,omitempty"`
	MessageSuffix     string                 `json:"message_suffix,omitempty" yaml:"message_suffix,omitempty"`
}

// RuleSpec is the wire shape of a policy rule, as authored in JSON or YAML
// rule files. All comparator fields are optional; Compile enforces that
// exactly one mode is active and returns the compiled Rule.
type RuleSpec struct {
	ID                string                 `json:"id" yaml:"id" validate:"required"`
	Name              string                 `json:"name" yaml:"name" validate:"required"`
	ResourceType      string                 `json:"resource_type,omitempty" yaml:"resource_type,omitempty"`
	ResourceTypes     []string               `json:"resource_types,omitempty" yaml:"resource_types,omitempty" validate:"omitempty,min=1,dive,required"`
	Severity          string                 `json:"severity" yaml:"severity" validate:"required,oneof=error warning"`
	Property          string                 `json:"property,omitempty" yaml:"property,omitempty"`
	ResourceForbidden bool                   `json:"resource_forbidden,omitempty" yaml:"resource_forbidden,omitempty"`
	Equals            interface{}            `json:"equals,omitempty" yaml:"equals,omitempty"`
	GreaterThan       *float64               `json:"greater_than,omitempty" yaml:"greater_than,omitempty"`
	GreaterThanOrEq   *float64               `json:"greater_than_or_equal,omitempty" yaml:"greater_than_or_equal,omitempty"`
	LessThan          *float64               `json:"less_than,omitempty" yaml:"less_than,omitempty"`
	LessThanOrEq      *float64               `json:"less_than_or_equal,omitempty" yaml:"less_than_or_equal,omitempty"`
	Contains          *string                `json:"contains,omitempty" yaml:"contains,omitempty"`
	In                []interface{}          `json:"in,omitempty" yaml:"in,omitempty"`
	RegexMatch        *string                `json:"regex_match,omitempty" yaml:"regex_match,omitempty"`
	HasKeys           []string               `json:"has_keys,omitempty" yaml:"has_keys,omitempty" validate:"omitempty,min=1,dive,required"`
	IsNotEmpty        *bool                  `json:"is_not_empty,omitempty" yaml:"is_not_empty,omitempty"`
	RequiresResources []RequiredResourceSpec `json:"requires_resources,omitempty" yaml:"requires_resources,omitempty" validate:"omitempty,min=1,dive"`
	Message           string                 `json:"message" yaml:"message" validate:"required"`

	// hasEquals distinguishes an absent "equals" key from "equals": null,
	// which is a legal expected value.
	hasEquals bool
}

// UnmarshalJSON decodes a rule spec while recording whether the "equals" key
// was present at all.
func (s *RuleSpec) UnmarshalJSON(data []byte) error {
	type plain RuleSpec
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*s = RuleSpec(p)
	_, s.hasEquals = raw["equals"]
	return nil
}

// MarshalJSON emits the spec, keeping the "equals" key whenever the
// comparator is set, including for false and null expected values that
// omitempty would otherwise drop.
func (s RuleSpec) MarshalJSON() ([]byte, error) {
	type plain RuleSpec
	data, err := json.Marshal(plain(s))
	if err != nil {
		return nil, err
	}
	if !s.hasEquals {
		return data, nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	value, err := json.Marshal(s.Equals)
	if err != nil {
		return nil, err
	}
	raw["equals"] = value
	return json.Marshal(raw)
}

// SetEquals sets the equals comparator explicitly. Rule specs built in code
// rather than decoded from a file use this, since a nil Equals field alone
// is indistinguishable from "no equals comparator".
func (s *RuleSpec) SetEquals(v interface{}) {
	s.Equals = v
	s.hasEquals = true
}

// comparators returns the names of all comparator fields set on the spec.
func (s *RuleSpec) comparators() []string {
	var set []string
	if s.hasEquals {
		set = append(set, string(OpEquals))
	}
	if s.GreaterThan != nil {
		set = append(set, string(OpGreaterThan))
	}
	if s.GreaterThanOrEq != nil {
		set = append(set, string(OpGreaterThanOrEqual))
	}
	if s.LessThan != nil {
		set = append(set, string(OpLessThan))
	}
	if s.LessThanOrEq != nil {
		set = append(set, string(OpLessThanOrEqual))
	}
	if s.Contains != nil {
		set = append(set, string(OpContains))
	}
	if s.In != nil {
		set = append(set, string(OpIn))
	}
	if s.RegexMatch != nil {
		set = append(set, string(OpRegexMatch))
	}
	if s.HasKeys != nil {
		set = append(set, string(OpHasKeys))
	}
	if s.IsNotEmpty != nil {
		set = append(set, string(OpIsNotEmpty))
	}
	return set
}

// buildCheck compiles the single active comparator into a Check. The caller
// has already established that exactly one comparator is set.
func (s *RuleSpec) buildCheck() (*Check, error) {
	switch {
	case s.hasEquals:
		return &Check{Op: OpEquals, Value: s.Equals}, nil
	case s.GreaterThan != nil:
		return &Check{Op: OpGreaterThan, Number: *s.GreaterThan}, nil
	case s.GreaterThanOrEq != nil:
		return &Check{Op: OpGreaterThanOrEqual, Number: *s.GreaterThanOrEq}, nil
	case s.LessThan != nil:
		return &Check{Op: OpLessThan, Number: *s.LessThan}, nil
	case s.LessThanOrEq != nil:
		return &Check{Op: OpLessThanOrEqual, Number: *s.LessThanOrEq}, nil
	case s.Contains != nil:
		return &Check{Op: OpContains, Value: *s.Contains}, nil
	case s.In != nil:
		return &Check{Op: OpIn, Values: s.In}, nil
	case s.RegexMatch != nil:
		return &Check{Op: OpRegexMatch, Pattern: *s.RegexMatch}, nil
	case s.HasKeys != nil:
		return &Check{Op: OpHasKeys, Keys: s.HasKeys}, nil
	case s.IsNotEmpty != nil:
		if !*s.IsNotEmpty {
			return nil, s.invalid("is_not_empty", "must be true when specified")
		}
		return &Check{Op: OpIsNotEmpty}, nil
	}
	return nil, s.invalid("comparator", "no comparison operator specified")
}

// Compile validates the spec's field-exclusivity invariants eagerly and
// returns the compiled Rule. Every invalid combination fails here; nothing
// is deferred to evaluation time.
func (s *RuleSpec) Compile() (*Rule, error) {
	if err := validate.Struct(s); err != nil {
		return nil, &ValidationError{RuleID: s.ID, Field: "spec", Message: err.Error()}
	}

	// Resource type exclusivity: exactly one of the two forms.
	hasSingle := s.ResourceType != ""
	hasMultiple := len(s.ResourceTypes) > 0
	if !hasSingle && !hasMultiple {
		return nil, s.invalid("resource_type", "rule must specify either 'resource_type' or 'resource_types'")
	}
	if hasSingle && hasMultiple {
		return nil, s.invalid("resource_type", "rule cannot specify both 'resource_type' and 'resource_types'")
	}

	resourceTypes := s.ResourceTypes
	if hasSingle {
		resourceTypes = []string{s.ResourceType}
	} else {
		seen := make(map[string]bool, len(s.ResourceTypes))
		for _, t := range s.ResourceTypes {
			if seen[t] {
				return nil, s.invalid("resource_types", "contains duplicate entry %q", t)
			}
			seen[t] = true
		}
	}

	rule := &Rule{
		ID:            s.ID,
		Name:          s.Name,
		ResourceTypes: resourceTypes,
		Severity:      Severity(s.Severity),
		Message:       s.Message,
	}

	comparators := s.comparators()

	// Forbidden-resource mode: the type match alone is the violation, so no
	// property, comparator, or cross-resource spec may ride along.
	if s.ResourceForbidden {
		if s.Property != "" {
			return nil, s.invalid("resource_forbidden", "rules must not specify a property")
		}
		if len(comparators) > 0 {
			return nil, s.invalid("resource_forbidden", "rules must not specify comparison operators (found %v)", comparators)
		}
		if len(s.RequiresResources) > 0 {
			return nil, s.invalid("resource_forbidden", "rules cannot specify requires_resources")
		}
		rule.Forbidden = true
		return rule, nil
	}

	if len(s.RequiresResources) > 0 {
		requires, err := s.compileRequires()
		if err != nil {
			return nil, err
		}
		rule.Requires = requires

		// Property-less cross-resource rules carry no comparator at all.
		if s.Property == "" {
			if len(comparators) > 0 {
				return nil, s.invalid("requires_resources", "cross-resource rules without a property must not specify comparison operators (found %v)", comparators)
			}
			return rule, nil
		}
		// A property alongside requires_resources falls through to normal
		// property-rule validation.
	}

	if s.Property == "" {
		return nil, s.invalid("property", "rule must specify a property, resource_forbidden, or requires_resources")
	}
	if err := security.ValidatePropertyPath(s.Property); err != nil {
		return nil, s.invalid("property", "invalid property path: %v", err)
	}

	switch len(comparators) {
	case 0:
		return nil, s.invalid("comparator", "rule must specify exactly one comparison operator")
	case 1:
	default:
		return nil, s.invalid("comparator", "rule must specify only one comparison operator, found %v", comparators)
	}

	check, err := s.buildCheck()
	if err != nil {
		return nil, err
	}

	rule.Property = s.Property
	rule.Check = check
	return rule, nil
}

// compileRequires validates and converts the cross-resource specs.
func (s *RuleSpec) compileRequires() ([]RequiredResource, error) {
	requires := make([]RequiredResource, 0, len(s.RequiresResources))

	for i, rr := range s.RequiresResources {
		rel := Relationship(rr.Relationship)

		switch rel {
		case RelReferencesPrimary, RelReferencedByPrimary:
			if rr.ReferenceProperty == "" {
				return nil, s.invalid(fmt.Sprintf("requires_resources[%d].reference_property", i),
					"required for %q relationship", rel)
			}
		case RelSameNameSuffix:
			if rr.ReferenceProperty != "" {
				return nil, s.invalid(fmt.Sprintf("requires_resources[%d].reference_property", i),
					"not allowed for %q relationship", rel)
			}
		}

		minCount := 1
		if rr.MinCount != nil {
			minCount = *rr.MinCount
		}
		if rr.MaxCount != nil && *rr.MaxCount < minCount {
			return nil, s.invalid(fmt.Sprintf("requires_resources[%d].max_count", i),
				"max_count (%d) must be >= min_count (%d)", *rr.MaxCount, minCount)
		}

		requires = append(requires, RequiredResource{
			ResourceType:      rr.ResourceType,
			Relationship:      rel,
			ReferenceProperty: rr.ReferenceProperty,
			MinCount:          minCount,
			MaxCount:          rr.MaxCount,
			Conditions:        rr.Conditions,
			MessageSuffix:     rr.MessageSuffix,
		})
	}

	return requires, nil
}

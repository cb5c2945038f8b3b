package engine

import (
	"fmt"
	"sort"
	"strings"

	"github.com/planguard/planguard/pkg/plan"
	"github.com/planguard/planguard/pkg/policy"
	"github.com/planguard/planguard/pkg/security"
)

// resourceIndex pre-groups the plan's resources so cross-resource rules do
// not rescan the full list for every primary.
type resourceIndex struct {
	byType    map[string][]plan.Resource
	byAddress map[string]plan.Resource
}

func newResourceIndex(resources []plan.Resource) *resourceIndex {
	idx := &resourceIndex{
		byType:    make(map[string][]plan.Resource),
		byAddress: make(map[string]plan.Resource, len(resources)),
	}
	for _, r := range resources {
		idx.byType[r.Type] = append(idx.byType[r.Type], r)
		idx.byAddress[r.Address] = r
	}
	return idx
}

// evaluateCross applies a requires_resources rule: for every primary
// resource of the rule's types, each requirement must be satisfied by the
// related resources found through its relationship strategy.
func (e *Engine) evaluateCross(rule *policy.Rule, index *resourceIndex, refs plan.ReferenceMap, constants plan.ConstantMap) []policy.Violation {
	var violations []policy.Violation

	for _, resourceType := range rule.ResourceTypes {
		for _, primary := range index.byType[resourceType] {
			for i := range rule.Requires {
				violations = append(violations, e.checkRequirement(rule, &rule.Requires[i], primary, index, refs, constants)...)
			}
		}
	}

	return violations
}

// checkRequirement evaluates one requirement against one primary resource.
// A count shortfall is reported alone: conditions and the maximum are only
// meaningful once enough related resources exist.
func (e *Engine) checkRequirement(rule *policy.Rule, req *policy.RequiredResource, primary plan.Resource, index *resourceIndex, refs plan.ReferenceMap, constants plan.ConstantMap) []policy.Violation {
	related := e.findRelated(req, primary, index, refs, constants)

	if len(related) < req.MinCount {
		detail := fmt.Sprintf("Missing required %s (found %d, need %d)", req.ResourceType, len(related), req.MinCount)
		return []policy.Violation{e.crossViolation(rule, req, primary, detail)}
	}

	var violations []policy.Violation

	if req.MaxCount != nil && len(related) > *req.MaxCount {
		detail := fmt.Sprintf("Too many %s (found %d, max %d)", req.ResourceType, len(related), *req.MaxCount)
		violations = append(violations, e.crossViolation(rule, req, primary, detail))
	}

	if len(req.Conditions) > 0 {
		keys := make([]string, 0, len(req.Conditions))
		for key := range req.Conditions {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		for _, candidate := range related {
			for _, key := range keys {
				expected := req.Conditions[key]
				actual, found := plan.Resolve(candidate.Values, key)
				if found && deepEqual(actual, expected) {
					continue
				}
				detail := fmt.Sprintf("Related resource %s fails condition: %s is %s, expected %s",
					candidate.Address, key, formatValue(actual), formatValue(expected))
				violations = append(violations, e.crossViolation(rule, req, primary, detail))
			}
		}
	}

	return violations
}

func (e *Engine) crossViolation(rule *policy.Rule, req *policy.RequiredResource, primary plan.Resource, detail string) policy.Violation {
	message := fmt.Sprintf("%s: %s", rule.FormatMessage(primary.Address, security.ContextTerminal), detail)
	if req.MessageSuffix != "" {
		message += " " + req.MessageSuffix
	}
	return policy.Violation{
		RuleID:       rule.ID,
		RuleName:     rule.Name,
		ResourceName: primary.Address,
		ResourceType: primary.Type,
		Severity:     rule.Severity,
		Message:      message,
	}
}

// findRelated resolves the resources related to primary under the
// requirement's relationship strategy. Results preserve plan order and are
// deduplicated by address.
func (e *Engine) findRelated(req *policy.RequiredResource, primary plan.Resource, index *resourceIndex, refs plan.ReferenceMap, constants plan.ConstantMap) []plan.Resource {
	switch req.Relationship {
	case policy.RelReferencedByPrimary:
		return e.findReferencedByPrimary(req, primary, index, refs, constants)
	case policy.RelReferencesPrimary:
		return findReferencesPrimary(req, primary, index, refs)
	case policy.RelSameNameSuffix:
		return findSameNameSuffix(req, primary, index)
	}
	return nil
}

// findReferencedByPrimary collects resources of the required type that the
// primary points at, either through configuration references or through a
// constant value on the reference property that names the target.
func (e *Engine) findReferencedByPrimary(req *policy.RequiredResource, primary plan.Resource, index *resourceIndex, refs plan.ReferenceMap, constants plan.ConstantMap) []plan.Resource {
	seen := make(map[string]bool)
	var related []plan.Resource

	add := func(r plan.Resource) {
		if !seen[r.Address] {
			seen[r.Address] = true
			related = append(related, r)
		}
	}

	for _, dep := range refs[primary.Address] {
		if target, ok := index.byAddress[dep]; ok && target.Type == req.ResourceType {
			add(target)
		}
	}

	// A reference written as a literal string never shows up in the
	// expression graph, so fall back to matching constant values against
	// candidate identifiers.
	for _, candidate := range index.byType[req.ResourceType] {
		if seen[candidate.Address] {
			continue
		}
		if constantPointsAt(constants[candidate.Address], req.ReferenceProperty, primary) {
			add(candidate)
		}
	}

	return related
}

// constantPointsAt reports whether the candidate's constant value for the
// reference property names the primary by identifier or address.
func constantPointsAt(candidateConstants map[string]interface{}, referenceProperty string, primary plan.Resource) bool {
	value, ok := candidateConstants[referenceProperty]
	if !ok {
		return false
	}
	s, ok := value.(string)
	if !ok {
		return false
	}
	return s == resourceIdentifier(primary) || s == primary.Address || strings.Contains(s, primary.Address)
}

// findReferencesPrimary collects resources of the required type whose own
// configuration references the primary's address.
func findReferencesPrimary(req *policy.RequiredResource, primary plan.Resource, index *resourceIndex, refs plan.ReferenceMap) []plan.Resource {
	var related []plan.Resource
	for _, candidate := range index.byType[req.ResourceType] {
		for _, dep := range refs[candidate.Address] {
			if dep == primary.Address {
				related = append(related, candidate)
				break
			}
		}
	}
	return related
}

// findSameNameSuffix collects resources of the required type whose resource
// name exactly matches the primary's. Unnamed resources never match.
func findSameNameSuffix(req *policy.RequiredResource, primary plan.Resource, index *resourceIndex) []plan.Resource {
	if primary.Name == "" {
		return nil
	}
	var related []plan.Resource
	for _, candidate := range index.byType[req.ResourceType] {
		if candidate.Name == primary.Name {
			related = append(related, candidate)
		}
	}
	return related
}

// resourceIdentifier picks the value constant references are most likely to
// carry for this resource, falling back to its address.
func resourceIdentifier(r plan.Resource) string {
	for _, key := range []string{"bucket", "id", "name", "identifier", "arn"} {
		if v, ok := r.Values[key]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}
	return r.Address
}

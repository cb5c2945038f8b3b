// Package plan loads Terraform plan JSON (the output of `terraform show
// -json`) and exposes the pieces the evaluators need: normalized resources,
// bounded property-path resolution, and the reference/constant graphs
// extracted from the plan's configuration section.
package plan

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/planguard/planguard/pkg/security"
)

// Resource is a normalized resource from the plan's resource_changes list.
type Resource struct {
	// Address uniquely identifies the resource, e.g. "aws_s3_bucket.logs".
	Address string `json:"address"`

	// Type is the Terraform resource type, e.g. "aws_s3_bucket".
	Type string `json:"type"`

	// Name is the resource's declared name, e.g. "logs".
	Name string `json:"name"`

	// Values is the planned configuration tree (maps, slices, scalars).
	Values map[string]interface{} `json:"values"`
}

// Plan holds the normalized resources plus the raw decoded plan document,
// which the cross-resource evaluator mines for references and constants.
type Plan struct {
	Resources []Resource
	Raw       map[string]interface{}
}

// ReferenceMap maps a referenced resource address to the addresses of
// resources whose configuration points to it.
type ReferenceMap map[string][]string

// ConstantMap maps a resource address to its literal property values.
type ConstantMap map[string]map[string]interface{}

// utf8BOM is stripped before decoding; Windows tooling commonly emits it.
var utf8BOM = []byte{0xef, 0xbb, 0xbf}

// Load reads and normalizes a Terraform plan JSON file. Only resources being
// created, updated, or replaced are kept; deletions and no-ops never reach
// the evaluators.
func Load(path string) (*Plan, error) {
	resolved, err := security.ValidateSafePath(path, security.AllowedPlanExtensions, true)
	if err != nil {
		return nil, fmt.Errorf("security validation failed: %w", err)
	}
	if err := security.ValidateFileSize(resolved); err != nil {
		return nil, fmt.Errorf("security validation failed: %w", err)
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		return nil, fmt.Errorf("error reading plan file: %w", err)
	}

	return Parse(data)
}

// Parse decodes plan JSON bytes into a Plan.
func Parse(data []byte) (*Plan, error) {
	data = bytes.TrimPrefix(data, utf8BOM)

	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid JSON in plan file: %w", err)
	}
	if err := security.ValidateJSONDepth(raw); err != nil {
		return nil, fmt.Errorf("security validation failed: %w", err)
	}

	resources, err := normalizeResources(raw)
	if err != nil {
		return nil, err
	}

	return &Plan{Resources: resources, Raw: raw}, nil
}

// normalizeResources extracts the plan's resource_changes into Resources.
func normalizeResources(raw map[string]interface{}) ([]Resource, error) {
	changesVal, ok := raw["resource_changes"]
	if !ok {
		return nil, nil
	}
	changes, ok := changesVal.([]interface{})
	if !ok {
		return nil, fmt.Errorf("plan file 'resource_changes' must be a list")
	}

	var resources []Resource
	for _, entry := range changes {
		change, ok := entry.(map[string]interface{})
		if !ok {
			continue
		}

		if !isRelevantChange(change) {
			continue
		}

		resource := Resource{
			Address: stringField(change, "address"),
			Type:    stringField(change, "type"),
			Name:    stringField(change, "name"),
			Values:  plannedValues(change),
		}
		resources = append(resources, resource)
	}

	return resources, nil
}

// isRelevantChange reports whether a change creates, updates, or replaces a
// resource. Pure deletions and no-ops are excluded.
func isRelevantChange(change map[string]interface{}) bool {
	inner, _ := change["change"].(map[string]interface{})
	actionsVal, _ := inner["actions"].([]interface{})
	if len(actionsVal) == 0 {
		return false
	}
	if len(actionsVal) == 1 {
		if action, _ := actionsVal[0].(string); action == "delete" || action == "no-op" {
			return false
		}
	}
	return true
}

// plannedValues returns the change's "after" tree, falling back to "before"
// and then to an empty map when the plan leaves it null.
func plannedValues(change map[string]interface{}) map[string]interface{} {
	inner, _ := change["change"].(map[string]interface{})

	if after, ok := inner["after"].(map[string]interface{}); ok {
		return after
	}
	if before, ok := inner["before"].(map[string]interface{}); ok {
		return before
	}
	return map[string]interface{}{}
}

func stringField(m map[string]interface{}, key string) string {
	s, _ := m[key].(string)
	return s
}

// ResourcesOfType filters resources by type.
func ResourcesOfType(resources []Resource, resourceType string) []Resource {
	var out []Resource
	for _, r := range resources {
		if r.Type == resourceType {
			out = append(out, r)
		}
	}
	return out
}

package plan

import "strings"

// ExtractReferences builds the reference graph from the plan's configuration
// section: an adjacency map from each referenced resource address to the
// addresses of resources whose expressions point at it. Both maps produced
// by this file are derived views, rebuilt once per evaluation run.
func ExtractReferences(raw map[string]interface{}) ReferenceMap {
	refs := make(ReferenceMap)

	for _, resource := range configResources(raw) {
		address := stringField(resource, "address")
		if address == "" {
			continue
		}
		expressions, ok := resource["expressions"].(map[string]interface{})
		if !ok {
			continue
		}
		collectReferences(expressions, address, refs)
	}

	return refs
}

// ExtractConstants collects each configured resource's literal property
// values ("constant_value" leaves), keyed by address and property name.
func ExtractConstants(raw map[string]interface{}) ConstantMap {
	constants := make(ConstantMap)

	for _, resource := range configResources(raw) {
		address := stringField(resource, "address")
		if address == "" {
			continue
		}
		expressions, ok := resource["expressions"].(map[string]interface{})
		if !ok {
			continue
		}

		values := make(map[string]interface{})
		for key, expr := range expressions {
			if obj, ok := expr.(map[string]interface{}); ok {
				if constant, ok := obj["constant_value"]; ok {
					values[key] = constant
				}
			}
		}
		if len(values) > 0 {
			constants[address] = values
		}
	}

	return constants
}

// configResources navigates to configuration.root_module.resources,
// tolerating any missing or oddly shaped level.
func configResources(raw map[string]interface{}) []map[string]interface{} {
	config, ok := raw["configuration"].(map[string]interface{})
	if !ok {
		return nil
	}
	rootModule, ok := config["root_module"].(map[string]interface{})
	if !ok {
		return nil
	}
	list, ok := rootModule["resources"].([]interface{})
	if !ok {
		return nil
	}

	resources := make([]map[string]interface{}, 0, len(list))
	for _, entry := range list {
		if resource, ok := entry.(map[string]interface{}); ok {
			resources = append(resources, resource)
		}
	}
	return resources
}

// collectReferences walks an expressions tree, shape-dispatched on map vs.
// slice vs. scalar. Any object carrying a "references" list contributes
// edges; list-valued entries (block-style nested configuration) are
// descended into so deeper reference leaves are found too.
func collectReferences(expressions map[string]interface{}, dependent string, refs ReferenceMap) {
	for _, value := range expressions {
		switch node := value.(type) {
		case map[string]interface{}:
			if list, ok := node["references"].([]interface{}); ok {
				for _, entry := range list {
					ref, ok := entry.(string)
					if !ok {
						continue
					}
					target := BaseAddress(ref)
					if target == "" {
						continue
					}
					addEdge(refs, target, dependent)
				}
			}
			collectReferences(node, dependent, refs)

		case []interface{}:
			for _, item := range node {
				if obj, ok := item.(map[string]interface{}); ok {
					collectReferences(obj, dependent, refs)
				}
			}
		}
	}
}

// addEdge appends dependent to the target's list, deduplicated.
func addEdge(refs ReferenceMap, target, dependent string) {
	for _, existing := range refs[target] {
		if existing == dependent {
			return
		}
	}
	refs[target] = append(refs[target], dependent)
}

// BaseAddress strips trailing attribute segments from a Terraform reference
// string, leaving the base resource address.
//
//	aws_s3_bucket.example.id          -> aws_s3_bucket.example
//	aws_s3_bucket.example             -> aws_s3_bucket.example
//	module.vpc.aws_subnet.private.id  -> module.vpc.aws_subnet.private
func BaseAddress(reference string) string {
	if reference == "" {
		return ""
	}

	parts := strings.Split(reference, ".")
	if len(parts) < 2 {
		return ""
	}

	// Module-qualified references keep module.<name>.<type>.<name>.
	if parts[0] == "module" {
		if len(parts) >= 4 {
			return strings.Join(parts[:4], ".")
		}
		return reference
	}

	return strings.Join(parts[:2], ".")
}

package plan

import (
	"encoding/json"
	"testing"
)

const configPlan = `{
	"configuration": {
		"root_module": {
			"resources": [
				{
					"address": "aws_s3_bucket.data",
					"expressions": {
						"bucket": {"constant_value": "org-data"},
						"force_destroy": {"constant_value": false}
					}
				},
				{
					"address": "aws_s3_bucket_versioning.data",
					"expressions": {
						"bucket": {"references": ["aws_s3_bucket.data.id", "aws_s3_bucket.data"]},
						"versioning_configuration": [
							{"status": {"constant_value": "Enabled"}}
						]
					}
				},
				{
					"address": "aws_s3_bucket_policy.data",
					"expressions": {
						"bucket": {"constant_value": "org-data"}
					}
				},
				{
					"address": "aws_subnet.private",
					"expressions": {
						"vpc_id": {"references": ["module.vpc.aws_vpc.main.id"]}
					}
				}
			]
		}
	}
}`

func decodeRaw(t *testing.T, data string) map[string]interface{} {
	t.Helper()
	var raw map[string]interface{}
	if err := json.Unmarshal([]byte(data), &raw); err != nil {
		t.Fatalf("Bad test fixture: %v", err)
	}
	return raw
}

func TestExtractReferences(t *testing.T) {
	refs := ExtractReferences(decodeRaw(t, configPlan))

	t.Run("direct reference with attribute suffix", func(t *testing.T) {
		dependents := refs["aws_s3_bucket.data"]
		if len(dependents) != 1 || dependents[0] != "aws_s3_bucket_versioning.data" {
			t.Errorf("Dependents of aws_s3_bucket.data = %v", dependents)
		}
	})

	t.Run("duplicate references are deduplicated", func(t *testing.T) {
		// The fixture lists both ".id" and the bare address; one edge results.
		if got := len(refs["aws_s3_bucket.data"]); got != 1 {
			t.Errorf("Edge count = %d, want 1", got)
		}
	})

	t.Run("module-qualified reference keeps the module prefix", func(t *testing.T) {
		dependents := refs["module.vpc.aws_vpc.main"]
		if len(dependents) != 1 || dependents[0] != "aws_subnet.private" {
			t.Errorf("Dependents of module.vpc.aws_vpc.main = %v", dependents)
		}
	})

	t.Run("constant-only resources contribute no edges", func(t *testing.T) {
		for target, dependents := range refs {
			for _, d := range dependents {
				if d == "aws_s3_bucket_policy.data" {
					t.Errorf("Unexpected edge %s -> %s", target, d)
				}
			}
		}
	})
}

func TestExtractReferencesNestedBlocks(t *testing.T) {
	raw := decodeRaw(t, `{
		"configuration": {
			"root_module": {
				"resources": [{
					"address": "aws_instance.web",
					"expressions": {
						"network_interface": [
							{
								"subnet_id": {"references": ["aws_subnet.private.id"]}
							}
						]
					}
				}]
			}
		}
	}`)

	refs := ExtractReferences(raw)
	dependents := refs["aws_subnet.private"]
	if len(dependents) != 1 || dependents[0] != "aws_instance.web" {
		t.Errorf("Nested block reference not found: %v", dependents)
	}
}

func TestExtractReferencesMissingSections(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"no configuration", `{}`},
		{"no root_module", `{"configuration": {}}`},
		{"no resources", `{"configuration": {"root_module": {}}}`},
		{"resources not a list", `{"configuration": {"root_module": {"resources": 5}}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			refs := ExtractReferences(decodeRaw(t, tt.doc))
			if len(refs) != 0 {
				t.Errorf("Expected empty map, got %v", refs)
			}
		})
	}
}

func TestExtractConstants(t *testing.T) {
	constants := ExtractConstants(decodeRaw(t, configPlan))

	data := constants["aws_s3_bucket.data"]
	if data["bucket"] != "org-data" {
		t.Errorf("bucket constant = %v, want org-data", data["bucket"])
	}
	if data["force_destroy"] != false {
		t.Errorf("force_destroy constant = %v, want false", data["force_destroy"])
	}

	// Reference-valued expressions are not constants.
	if _, ok := constants["aws_subnet.private"]; ok {
		t.Error("aws_subnet.private has no constant expressions but appears in the map")
	}
}

func TestBaseAddress(t *testing.T) {
	tests := []struct {
		ref  string
		want string
	}{
		{"aws_s3_bucket.example.id", "aws_s3_bucket.example"},
		{"aws_s3_bucket.example", "aws_s3_bucket.example"},
		{"aws_s3_bucket.example.tags.Team", "aws_s3_bucket.example"},
		{"module.vpc.aws_subnet.private.id", "module.vpc.aws_subnet.private"},
		{"module.vpc", "module.vpc"},
		{"var", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			if got := BaseAddress(tt.ref); got != tt.want {
				t.Errorf("BaseAddress(%q) = %q, want %q", tt.ref, got, tt.want)
			}
		})
	}
}

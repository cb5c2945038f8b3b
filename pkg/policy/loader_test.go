package policy

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func testLogger() zerolog.Logger {
	return zerolog.New(nil).Level(zerolog.Disabled)
}

func writeRule(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write %s: %v", name, err)
	}
	return path
}

const validJSONRule = `{
	"id": "%s",
	"name": "Private buckets",
	"resource_type": "aws_s3_bucket",
	"severity": "error",
	"property": "acl",
	"equals": "private",
	"message": "Bucket {{resource_name}} must be private"
}`

func TestLoadDir(t *testing.T) {
	t.Run("loads and sorts rules by id", func(t *testing.T) {
		dir := t.TempDir()
		writeRule(t, dir, "second.json", strings.Replace(validJSONRule, "%s", "zz-rule", 1))
		writeRule(t, dir, "first.json", strings.Replace(validJSONRule, "%s", "aa-rule", 1))

		loader := NewLoader(testLogger())
		rules, err := loader.LoadDir(dir)
		if err != nil {
			t.Fatalf("LoadDir failed: %v", err)
		}
		if len(rules) != 2 {
			t.Fatalf("Loaded %d rules, want 2", len(rules))
		}
		if rules[0].ID != "aa-rule" || rules[1].ID != "zz-rule" {
			t.Errorf("Rules not sorted by id: %s, %s", rules[0].ID, rules[1].ID)
		}
	})

	t.Run("recurses into subdirectories", func(t *testing.T) {
		dir := t.TempDir()
		sub := filepath.Join(dir, "aws")
		if err := os.MkdirAll(sub, 0o755); err != nil {
			t.Fatal(err)
		}
		writeRule(t, sub, "rule.json", strings.Replace(validJSONRule, "%s", "nested", 1))

		loader := NewLoader(testLogger())
		rules, err := loader.LoadDir(dir)
		if err != nil {
			t.Fatalf("LoadDir failed: %v", err)
		}
		if len(rules) != 1 || rules[0].ID != "nested" {
			t.Errorf("Expected the nested rule, got %v", rules)
		}
	})

	t.Run("fails the whole batch on one bad file", func(t *testing.T) {
		dir := t.TempDir()
		writeRule(t, dir, "good.json", strings.Replace(validJSONRule, "%s", "good", 1))
		writeRule(t, dir, "bad.json", `{"id": "bad"}`)

		loader := NewLoader(testLogger())
		_, err := loader.LoadDir(dir)
		if err == nil {
			t.Fatal("LoadDir succeeded with a malformed rule in the batch")
		}
		if !strings.Contains(err.Error(), "bad.json") {
			t.Errorf("Error does not name the offending file: %v", err)
		}
	})

	t.Run("aggregates errors across multiple bad files", func(t *testing.T) {
		dir := t.TempDir()
		writeRule(t, dir, "bad1.json", `{not json`)
		writeRule(t, dir, "bad2.json", `{"id": "x"}`)

		loader := NewLoader(testLogger())
		_, err := loader.LoadDir(dir)
		if err == nil {
			t.Fatal("LoadDir succeeded with two malformed rules")
		}
		if !strings.Contains(err.Error(), "bad1.json") || !strings.Contains(err.Error(), "bad2.json") {
			t.Errorf("Error does not name both offending files: %v", err)
		}
	})

	t.Run("rejects duplicate rule ids across files", func(t *testing.T) {
		dir := t.TempDir()
		writeRule(t, dir, "one.json", strings.Replace(validJSONRule, "%s", "same-id", 1))
		writeRule(t, dir, "two.json", strings.Replace(validJSONRule, "%s", "same-id", 1))

		loader := NewLoader(testLogger())
		_, err := loader.LoadDir(dir)
		if err == nil {
			t.Fatal("LoadDir accepted two rules with the same id")
		}
		if !strings.Contains(err.Error(), `duplicate rule id "same-id"`) {
			t.Errorf("Error does not name the duplicate id: %v", err)
		}
	})

	t.Run("rejects an empty rules directory", func(t *testing.T) {
		loader := NewLoader(testLogger())
		if _, err := loader.LoadDir(t.TempDir()); err == nil {
			t.Error("LoadDir succeeded on a directory with no rule files")
		}
	})

	t.Run("ignores unrelated files", func(t *testing.T) {
		dir := t.TempDir()
		writeRule(t, dir, "rule.json", strings.Replace(validJSONRule, "%s", "only", 1))
		writeRule(t, dir, "README.md", "# docs")

		loader := NewLoader(testLogger())
		rules, err := loader.LoadDir(dir)
		if err != nil {
			t.Fatalf("LoadDir failed: %v", err)
		}
		if len(rules) != 1 {
			t.Errorf("Loaded %d rules, want 1", len(rules))
		}
	})
}

func TestLoadFileYAML(t *testing.T) {
	dir := t.TempDir()
	path := writeRule(t, dir, "rule.yaml", `
id: yaml-rule
name: Private buckets
resource_type: aws_s3_bucket
severity: error
property: acl
equals: private
message: Bucket {{resource_name}} must be private
`)

	loader := NewLoader(testLogger())
	rule, err := loader.LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if rule.ID != "yaml-rule" {
		t.Errorf("ID = %q, want yaml-rule", rule.ID)
	}
	if rule.Check == nil || rule.Check.Op != OpEquals || rule.Check.Value != "private" {
		t.Errorf("Check = %+v, want equals private", rule.Check)
	}
}

func TestLoadFileYAMLEqualsNull(t *testing.T) {
	dir := t.TempDir()
	path := writeRule(t, dir, "rule.yml", `
id: yaml-null
name: Null check
resource_type: aws_s3_bucket
severity: warning
property: acl
equals: null
message: acl must be unset
`)

	loader := NewLoader(testLogger())
	rule, err := loader.LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if rule.Check == nil || rule.Check.Op != OpEquals || rule.Check.Value != nil {
		t.Errorf("Check = %+v, want equals null", rule.Check)
	}
}

func TestLoadFileJSONAndYAMLAgree(t *testing.T) {
	dir := t.TempDir()
	jsonPath := writeRule(t, dir, "rule.json", `{
		"id": "parity",
		"name": "Retention",
		"resource_type": "aws_db_instance",
		"severity": "warning",
		"property": "backup_retention_period",
		"greater_than_or_equal": 7,
		"message": "m"
	}`)
	yamlPath := writeRule(t, dir, "rule.yaml", `
id: parity
name: Retention
resource_type: aws_db_instance
severity: warning
property: backup_retention_period
greater_than_or_equal: 7
message: m
`)

	loader := NewLoader(testLogger())
	fromJSON, err := loader.LoadFile(jsonPath)
	if err != nil {
		t.Fatalf("LoadFile json failed: %v", err)
	}
	fromYAML, err := loader.LoadFile(yamlPath)
	if err != nil {
		t.Fatalf("LoadFile yaml failed: %v", err)
	}

	if fromJSON.Check.Op != fromYAML.Check.Op || fromJSON.Check.Number != fromYAML.Check.Number {
		t.Errorf("JSON and YAML compiled differently: %+v vs %+v", fromJSON.Check, fromYAML.Check)
	}
}

func TestBuiltinSpecsCompile(t *testing.T) {
	specs := BuiltinSpecs()
	if len(specs) == 0 {
		t.Fatal("No builtin specs")
	}

	seen := make(map[string]bool)
	for _, spec := range specs {
		rule, err := spec.Compile()
		if err != nil {
			t.Errorf("Builtin spec %s failed to compile: %v", spec.ID, err)
			continue
		}
		if seen[rule.ID] {
			t.Errorf("Duplicate builtin rule id %s", rule.ID)
		}
		seen[rule.ID] = true
	}
}

package security

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestValidateSafePath(t *testing.T) {
	dir := t.TempDir()
	planPath := filepath.Join(dir, "plan.json")
	if err := os.WriteFile(planPath, []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Run("accepts an existing plan file", func(t *testing.T) {
		resolved, err := ValidateSafePath(planPath, AllowedPlanExtensions, true)
		if err != nil {
			t.Fatalf("ValidateSafePath failed: %v", err)
		}
		if !filepath.IsAbs(resolved) {
			t.Errorf("Resolved path is not absolute: %s", resolved)
		}
	})

	t.Run("rejections", func(t *testing.T) {
		tests := []struct {
			name      string
			path      string
			mustExist bool
		}{
			{"empty path", "", false},
			{"null byte", "plan\x00.json", false},
			{"shell metacharacter in name", filepath.Join(dir, "plan;rm.json"), false},
			{"backtick in name", filepath.Join(dir, "plan`x`.json"), false},
			{"wrong extension", filepath.Join(dir, "plan.txt"), false},
			{"traversal out of cwd", "../../../../etc/passwd.json", false},
			{"missing file", filepath.Join(dir, "absent.json"), true},
			{"overlong path", filepath.Join(dir, strings.Repeat("a", MaxPathLength)+".json"), false},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				if _, err := ValidateSafePath(tt.path, AllowedPlanExtensions, tt.mustExist); err == nil {
					t.Errorf("ValidateSafePath(%q) succeeded, want error", tt.path)
				}
			})
		}
	})

	t.Run("directory is not a file", func(t *testing.T) {
		sub := filepath.Join(dir, "sub.json")
		if err := os.MkdirAll(sub, 0o755); err != nil {
			t.Fatal(err)
		}
		if _, err := ValidateSafePath(sub, AllowedPlanExtensions, true); err == nil {
			t.Error("ValidateSafePath accepted a directory")
		}
	})

	t.Run("nil extension set skips the extension check", func(t *testing.T) {
		anyExt := filepath.Join(dir, "anything.xyz")
		if err := os.WriteFile(anyExt, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
		if _, err := ValidateSafePath(anyExt, nil, true); err != nil {
			t.Errorf("ValidateSafePath failed: %v", err)
		}
	})
}

func TestValidateSafeDirectory(t *testing.T) {
	dir := t.TempDir()

	if _, err := ValidateSafeDirectory(dir); err != nil {
		t.Errorf("ValidateSafeDirectory failed on a real directory: %v", err)
	}
	if _, err := ValidateSafeDirectory(filepath.Join(dir, "absent")); err == nil {
		t.Error("ValidateSafeDirectory accepted a missing directory")
	}

	file := filepath.Join(dir, "file.json")
	if err := os.WriteFile(file, []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := ValidateSafeDirectory(file); err == nil {
		t.Error("ValidateSafeDirectory accepted a file")
	}
}

func TestValidateFileSize(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "small.json")
	if err := os.WriteFile(path, []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := ValidateFileSize(path); err != nil {
		t.Errorf("ValidateFileSize failed on a small file: %v", err)
	}
	if err := ValidateFileSize(filepath.Join(dir, "absent.json")); err == nil {
		t.Error("ValidateFileSize accepted a missing file")
	}
}

func TestValidatePropertyPath(t *testing.T) {
	tests := []struct {
		name string
		path string
		ok   bool
	}{
		{"simple", "acl", true},
		{"nested", "versioning.0.enabled", true},
		{"deep but legal", strings.Repeat("a.", MaxPropertyDepth-1) + "a", true},
		{"empty", "", false},
		{"leading dot", ".acl", false},
		{"trailing dot", "acl.", false},
		{"double dot", "a..b", false},
		{"too deep", strings.Repeat("a.", MaxPropertyDepth) + "a", false},
		{"too long", strings.Repeat("a", MaxPropertyPathLength+1), false},
		{"control character", "a\x01b", false},
		{"delete character", "a\x7fb", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePropertyPath(tt.path)
			if (err == nil) != tt.ok {
				t.Errorf("ValidatePropertyPath(%q) = %v, want ok=%v", tt.path, err, tt.ok)
			}
		})
	}
}

func TestValidateJSONDepth(t *testing.T) {
	build := func(depth int) interface{} {
		var v interface{} = "leaf"
		for i := 0; i < depth; i++ {
			v = map[string]interface{}{"k": v}
		}
		return v
	}

	if err := ValidateJSONDepth(build(MaxJSONDepth)); err != nil {
		t.Errorf("Depth at the limit rejected: %v", err)
	}
	if err := ValidateJSONDepth(build(MaxJSONDepth + 2)); err == nil {
		t.Error("Depth beyond the limit accepted")
	}

	// Arrays count toward depth too.
	var v interface{} = "leaf"
	for i := 0; i < MaxJSONDepth+2; i++ {
		v = []interface{}{v}
	}
	if err := ValidateJSONDepth(v); err == nil {
		t.Error("Array nesting beyond the limit accepted")
	}
}

func TestSanitizeForOutput(t *testing.T) {
	t.Run("strips ANSI escapes", func(t *testing.T) {
		got := SanitizeForOutput("a \x1b[31mred\x1b[0m word", ContextTerminal)
		if got != "a red word" {
			t.Errorf("Got %q", got)
		}
	})

	t.Run("strips control characters but keeps tabs", func(t *testing.T) {
		got := SanitizeForOutput("a\x07b\tc\r\n", ContextTerminal)
		if got != "ab\tc" {
			t.Errorf("Got %q", got)
		}
	})

	t.Run("breaks workflow command sequences for github", func(t *testing.T) {
		got := SanitizeForOutput("x ::error::pwned", ContextGitHub)
		if strings.Contains(got, "::") {
			t.Errorf("Got %q, want no literal ::", got)
		}
	})

	t.Run("leaves :: alone outside github", func(t *testing.T) {
		got := SanitizeForOutput("arn::something", ContextTerminal)
		if got != "arn::something" {
			t.Errorf("Got %q", got)
		}
	})

	t.Run("truncates very long output", func(t *testing.T) {
		got := SanitizeForOutput(strings.Repeat("x", MaxOutputLength+100), ContextTerminal)
		if !strings.HasSuffix(got, "... (truncated)") {
			t.Errorf("Long output not truncated: %d chars", len(got))
		}
	})

	t.Run("empty string passes through", func(t *testing.T) {
		if got := SanitizeForOutput("", ContextJSON); got != "" {
			t.Errorf("Got %q", got)
		}
	})
}

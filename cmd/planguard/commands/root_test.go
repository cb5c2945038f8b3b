package commands

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
)

const sampleRule = `{
	"id": "private-buckets",
	"name": "Private buckets",
	"resource_type": "aws_s3_bucket",
	"severity": "error",
	"property": "acl",
	"equals": "private",
	"message": "Bucket {{resource_name}} must be private"
}`

func rulesDirWithOneRule(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "rule.json"), []byte(sampleRule), 0o644); err != nil {
		t.Fatal(err)
	}
	return dir
}

func runRoot(t *testing.T, args ...string) error {
	t.Helper()
	t.Cleanup(func() {
		rulesDir = ".planguard"
		verbose = false
	})
	cmd := newRootCommand("test", "none", "none")
	cmd.SetArgs(args)
	return cmd.ExecuteContext(context.Background())
}

func TestVerboseFlagEnablesDebugLogging(t *testing.T) {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.InfoLevel) })

	dir := rulesDirWithOneRule(t)

	if err := runRoot(t, "--verbose", "--rules-dir", dir, "validate"); err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if zerolog.GlobalLevel() != zerolog.DebugLevel {
		t.Errorf("GlobalLevel = %v, want debug", zerolog.GlobalLevel())
	}
}

func TestDefaultLogLevelUntouched(t *testing.T) {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.InfoLevel) })

	dir := rulesDirWithOneRule(t)

	if err := runRoot(t, "--rules-dir", dir, "validate"); err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if zerolog.GlobalLevel() != zerolog.InfoLevel {
		t.Errorf("GlobalLevel = %v, want info", zerolog.GlobalLevel())
	}
}

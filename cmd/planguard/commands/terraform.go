package commands

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/planguard/planguard/pkg/plan"
)

// terraformShowTimeout bounds the external conversion of a binary plan.
const terraformShowTimeout = 5 * time.Minute

// isBinaryPlan reports whether a plan path needs conversion before parsing.
func isBinaryPlan(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".tfplan")
}

// convertBinaryPlan runs `terraform show -json` on a binary plan file and
// returns the JSON document it prints.
func convertBinaryPlan(ctx context.Context, path string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, terraformShowTimeout)
	defer cancel()

	log.Debug().Str("plan", path).Msg("Converting binary plan via terraform show")

	cmd := exec.CommandContext(ctx, "terraform", "show", "-json", path)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("terraform show timed out after %s", terraformShowTimeout)
		}
		return nil, fmt.Errorf("terraform show failed: %w (%s)", err, strings.TrimSpace(stderr.String()))
	}

	return stdout.Bytes(), nil
}

// loadPlan parses a plan file, converting binary plans through terraform
// when needed.
func loadPlan(ctx context.Context, path string) (*plan.Plan, error) {
	if isBinaryPlan(path) {
		data, err := convertBinaryPlan(ctx, path)
		if err != nil {
			return nil, err
		}
		return plan.Parse(data)
	}
	return plan.Load(path)
}

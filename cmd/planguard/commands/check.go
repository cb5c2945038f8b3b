package commands

import (
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/planguard/planguard/pkg/engine"
	"github.com/planguard/planguard/pkg/policy"
	"github.com/planguard/planguard/pkg/report"
)

func newCheckCommand() *cobra.Command {
	var (
		format string
		strict bool
	)

	cmd := &cobra.Command{
		Use:   "check <plan-file>",
		Short: "Check a Terraform plan against policy rules",
		Long: `Check a Terraform plan against the rules in the rules directory.

The plan may be the JSON output of 'terraform show -json' or a binary plan
file (.tfplan); binary plans are converted by invoking terraform.

Exit codes:
  0  no violations
  1  at least one error violation (or any violation with --strict)
  2  rules or plan could not be loaded`,
		Example: `  # Check a plan JSON with rules from .planguard/
  planguard check plan.json

  # Check a binary plan with rules from a shared directory
  planguard check release.tfplan --rules-dir ./policy

  # Emit GitHub Actions annotations and fail on warnings too
  planguard check plan.json --format github --strict`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reporter, err := report.New(report.Format(format))
			if err != nil {
				return &ExitError{Code: ExitLoadFailure, Err: err}
			}

			loader := policy.NewLoader(log.Logger)
			rules, err := loader.LoadDir(rulesDir)
			if err != nil {
				return &ExitError{Code: ExitLoadFailure, Err: err}
			}

			p, err := loadPlan(cmd.Context(), args[0])
			if err != nil {
				return &ExitError{Code: ExitLoadFailure, Err: err}
			}

			log.Info().
				Int("rules", len(rules)).
				Int("resources", len(p.Resources)).
				Str("plan", args[0]).
				Msg("Checking plan")

			eng := engine.New(log.Logger)
			violations := eng.EvaluateAll(rules, p.Resources, p.Raw)

			if err := reporter.Report(os.Stdout, violations); err != nil {
				return &ExitError{Code: ExitLoadFailure, Err: err}
			}

			return violationExit(violations, strict)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "terminal", "report format (terminal, github, json)")
	cmd.Flags().BoolVar(&strict, "strict", false, "treat warnings as failures")

	return cmd
}

// violationExit maps a rendered violation list to the process exit code.
func violationExit(violations []policy.Violation, strict bool) error {
	if len(violations) == 0 {
		return nil
	}
	if strict {
		return &ExitError{Code: ExitViolations}
	}
	for _, v := range violations {
		if v.IsError() {
			return &ExitError{Code: ExitViolations}
		}
	}
	return nil
}

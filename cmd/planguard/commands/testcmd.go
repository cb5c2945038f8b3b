package commands

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/planguard/planguard/pkg/engine"
	"github.com/planguard/planguard/pkg/policy"
)

func newTestCommand() *cobra.Command {
	var (
		ruleFile string
		planFile string
	)

	cmd := &cobra.Command{
		Use:   "test",
		Short: "Test a single rule file against a sample plan",
		Long: `Test one rule file against a sample plan and print per-rule results.

Unlike 'check', this evaluates exactly the rule you name, which makes it
useful while authoring rules: point it at a plan that should pass and one
that should fail and iterate until both agree.`,
		Example: `  # Exercise a new rule against a known-bad plan
  planguard test --rule rules/s3-versioning.json --plan testdata/bad.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			loader := policy.NewLoader(log.Logger)
			rule, err := loader.LoadFile(ruleFile)
			if err != nil {
				return &ExitError{Code: ExitLoadFailure, Err: err}
			}

			p, err := loadPlan(cmd.Context(), planFile)
			if err != nil {
				return &ExitError{Code: ExitLoadFailure, Err: err}
			}

			eng := engine.New(log.Logger)
			violations := eng.EvaluateAll([]*policy.Rule{rule}, p.Resources, p.Raw)

			if len(violations) == 0 {
				fmt.Printf("PASS %s: no violations across %d resource(s)\n", rule.ID, len(p.Resources))
				return nil
			}

			fmt.Printf("FAIL %s: %d violation(s)\n", rule.ID, len(violations))
			for _, v := range violations {
				fmt.Printf("  %s\n", v.String())
			}
			return violationExit(violations, true)
		},
	}

	cmd.Flags().StringVar(&ruleFile, "rule", "", "rule file to test")
	cmd.Flags().StringVar(&planFile, "plan", "", "plan file to test against")
	_ = cmd.MarkFlagRequired("rule")
	_ = cmd.MarkFlagRequired("plan")

	return cmd
}

package commands

import (
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/planguard/planguard/pkg/engine"
	"github.com/planguard/planguard/pkg/policy"
	"github.com/planguard/planguard/pkg/report"
)

func newWatchCommand() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "watch <plan-file>",
		Short: "Re-check a plan whenever the rules directory changes",
		Long: `Check a plan once, then keep watching the rules directory and re-check
the same plan whenever a rule file is created, modified, or removed. Useful
while authoring rules against a representative plan. Stops on interrupt.`,
		Example: `  # Iterate on rules against a captured plan
  planguard watch testdata/staging-plan.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reporter, err := report.New(report.Format(format))
			if err != nil {
				return &ExitError{Code: ExitLoadFailure, Err: err}
			}

			p, err := loadPlan(cmd.Context(), args[0])
			if err != nil {
				return &ExitError{Code: ExitLoadFailure, Err: err}
			}

			eng := engine.New(log.Logger)
			runCheck := func(rules []*policy.Rule) error {
				violations := eng.EvaluateAll(rules, p.Resources, p.Raw)
				return reporter.Report(os.Stdout, violations)
			}

			loader := policy.NewLoader(log.Logger)
			rules, err := loader.LoadDir(rulesDir)
			if err != nil {
				return &ExitError{Code: ExitLoadFailure, Err: err}
			}
			if err := runCheck(rules); err != nil {
				return &ExitError{Code: ExitLoadFailure, Err: err}
			}

			if err := loader.Watch(cmd.Context(), rulesDir, runCheck); err != nil {
				return &ExitError{Code: ExitLoadFailure, Err: err}
			}
			defer func() { _ = loader.StopWatching() }()

			<-cmd.Context().Done()
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "terminal", "report format (terminal, github, json)")

	return cmd
}

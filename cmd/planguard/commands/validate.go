package commands

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/planguard/planguard/pkg/policy"
)

func newValidateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the rules directory without checking a plan",
		Long: `Load and compile every rule in the rules directory, reporting all
malformed rules at once. Loading is fail-closed: a single malformed file
fails the whole batch, so this is the command to run in CI after editing
rules.`,
		Example: `  # Validate the default rules directory
  planguard validate

  # Validate a shared policy repository
  planguard validate --rules-dir ./policy`,
		RunE: func(cmd *cobra.Command, args []string) error {
			loader := policy.NewLoader(log.Logger)
			rules, err := loader.LoadDir(rulesDir)
			if err != nil {
				return &ExitError{Code: ExitLoadFailure, Err: err}
			}

			fmt.Printf("%d rule(s) valid\n", len(rules))
			if verbose {
				for _, rule := range rules {
					fmt.Printf("  %s: %s [%s]\n", rule.ID, rule.Name, rule.Severity)
				}
			}
			return nil
		},
	}

	return cmd
}

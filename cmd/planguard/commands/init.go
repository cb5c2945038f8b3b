package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/planguard/planguard/pkg/policy"
)

func newInitCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a rules directory with starter rules",
		Long: `Create the rules directory and write a starter set of rules into it,
one JSON file per rule. The starter rules cover common AWS hygiene checks
and are meant to be edited, not treated as a baseline.`,
		Example: `  # Seed .planguard/ in the current repository
  planguard init

  # Re-seed, overwriting edited starter files
  planguard init --force`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := os.MkdirAll(rulesDir, 0o755); err != nil {
				return &ExitError{Code: ExitLoadFailure, Err: fmt.Errorf("creating %s: %w", rulesDir, err)}
			}

			written := 0
			for _, spec := range policy.BuiltinSpecs() {
				path := filepath.Join(rulesDir, spec.ID+".json")
				if !force {
					if _, err := os.Stat(path); err == nil {
						log.Warn().Str("rule", spec.ID).Msg("Rule file exists, skipping (use --force to overwrite)")
						continue
					}
				}

				data, err := json.MarshalIndent(spec, "", "  ")
				if err != nil {
					return &ExitError{Code: ExitLoadFailure, Err: err}
				}
				if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
					return &ExitError{Code: ExitLoadFailure, Err: fmt.Errorf("writing %s: %w", path, err)}
				}
				written++
			}

			log.Info().Int("rules", written).Str("dir", rulesDir).Msg("Rules directory initialized")
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing rule files")

	return cmd
}

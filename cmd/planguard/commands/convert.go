package commands

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newConvertCommand() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "convert <plan-file>",
		Short: "Convert a binary Terraform plan to JSON",
		Long: `Convert a binary Terraform plan (.tfplan) to its JSON representation by
invoking 'terraform show -json'. The same conversion runs implicitly when
'check' is handed a binary plan; this command exposes it for pipelines that
want to archive the JSON.`,
		Example: `  # Write the JSON next to the binary plan
  planguard convert release.tfplan -o release.json

  # Print to stdout
  planguard convert release.tfplan`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := convertBinaryPlan(cmd.Context(), args[0])
			if err != nil {
				return &ExitError{Code: ExitLoadFailure, Err: err}
			}

			if output == "" {
				_, err := os.Stdout.Write(data)
				return err
			}

			if err := os.WriteFile(output, data, 0o644); err != nil {
				return &ExitError{Code: ExitLoadFailure, Err: fmt.Errorf("writing %s: %w", output, err)}
			}
			log.Info().Str("output", output).Msg("Plan converted")
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")

	return cmd
}

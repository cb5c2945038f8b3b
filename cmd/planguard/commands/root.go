package commands

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// Exit codes. Violations and loading failures are distinguishable so CI
// pipelines can tell a blocked plan from a broken setup.
const (
	ExitOK          = 0
	ExitViolations  = 1
	ExitLoadFailure = 2
)

var (
	// Global flags
	rulesDir string
	verbose  bool
)

// ExitError carries a process exit code out of a command. Err may be nil
// when the failure was already reported (e.g. violations already rendered).
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("exit code %d", e.Code)
}

func (e *ExitError) Unwrap() error { return e.Err }

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "planguard",
		Short: "Planguard - Terraform plan policy checks",
		Long: `Planguard evaluates Terraform plan JSON against organization policy rules.

Rules are one-per-file JSON or YAML documents that either forbid a resource
type, compare a resource property against an expected value, or require that
companion resources exist alongside a primary resource.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose {
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
			}
		},
	}

	// Persistent flags available to all commands
	rootCmd.PersistentFlags().StringVarP(&rulesDir, "rules-dir", "r", ".planguard", "directory containing rule files")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")

	// Add subcommands
	rootCmd.AddCommand(newCheckCommand())
	rootCmd.AddCommand(newTestCommand())
	rootCmd.AddCommand(newConvertCommand())
	rootCmd.AddCommand(newInitCommand())
	rootCmd.AddCommand(newValidateCommand())
	rootCmd.AddCommand(newExplainCommand())
	rootCmd.AddCommand(newWatchCommand())

	return rootCmd
}

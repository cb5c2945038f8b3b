// Package report renders evaluation results for humans, CI systems, and
// machines. Reporters consume the violation list produced by pkg/engine and
// write to an io.Writer; they never re-evaluate anything.
package report

import (
	"fmt"
	"io"

	"github.com/planguard/planguard/pkg/policy"
)

// Format names a reporter implementation.
type Format string

const (
	FormatTerminal Format = "terminal"
	FormatGitHub   Format = "github"
	FormatJSON     Format = "json"
)

// Reporter renders a violation list to a writer.
type Reporter interface {
	Report(w io.Writer, violations []policy.Violation) error
}

// New returns the reporter for a format name.
func New(format Format) (Reporter, error) {
	switch format {
	case FormatTerminal, "":
		return &TerminalReporter{}, nil
	case FormatGitHub:
		return &GitHubReporter{}, nil
	case FormatJSON:
		return &JSONReporter{}, nil
	default:
		return nil, fmt.Errorf("unknown report format %q (want terminal, github, or json)", format)
	}
}

// countBySeverity splits a violation list into error and warning counts.
func countBySeverity(violations []policy.Violation) (errors, warnings int) {
	for _, v := range violations {
		if v.IsError() {
			errors++
		} else {
			warnings++
		}
	}
	return errors, warnings
}

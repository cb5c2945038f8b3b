package report

import (
	"fmt"
	"io"

	"github.com/planguard/planguard/pkg/policy"
	"github.com/planguard/planguard/pkg/security"
)

// TerminalReporter renders violations for an interactive shell: errors
// first, then warnings, then a one-line summary.
type TerminalReporter struct{}

func (r *TerminalReporter) Report(w io.Writer, violations []policy.Violation) error {
	errors, warnings := countBySeverity(violations)

	if len(violations) == 0 {
		_, err := fmt.Fprintln(w, "All policy checks passed.")
		return err
	}

	if errors > 0 {
		if _, err := fmt.Fprintf(w, "Errors (%d):\n", errors); err != nil {
			return err
		}
		if err := r.writeSection(w, violations, policy.SeverityError); err != nil {
			return err
		}
	}

	if warnings > 0 {
		if errors > 0 {
			if _, err := fmt.Fprintln(w); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintf(w, "Warnings (%d):\n", warnings); err != nil {
			return err
		}
		if err := r.writeSection(w, violations, policy.SeverityWarning); err != nil {
			return err
		}
	}

	_, err := fmt.Fprintf(w, "\n%d violation(s): %d error(s), %d warning(s)\n",
		len(violations), errors, warnings)
	return err
}

func (r *TerminalReporter) writeSection(w io.Writer, violations []policy.Violation, severity policy.Severity) error {
	for _, v := range violations {
		if v.Severity != severity {
			continue
		}
		message := security.SanitizeForOutput(v.Message, security.ContextTerminal)
		if _, err := fmt.Fprintf(w, "  [%s] %s\n", v.RuleID, message); err != nil {
			return err
		}
	}
	return nil
}

package report

import (
	"fmt"
	"io"

	"github.com/planguard/planguard/pkg/policy"
	"github.com/planguard/planguard/pkg/security"
)

// GitHubReporter emits GitHub Actions workflow commands so violations show
// up as inline annotations on pull requests. Message text is sanitized to
// stop resource values from injecting their own workflow commands.
type GitHubReporter struct{}

func (r *GitHubReporter) Report(w io.Writer, violations []policy.Violation) error {
	for _, v := range violations {
		command := "warning"
		if v.IsError() {
			command = "error"
		}
		title := security.SanitizeForOutput(fmt.Sprintf("%s (%s)", v.RuleName, v.RuleID), security.ContextGitHub)
		message := security.SanitizeForOutput(v.Message, security.ContextGitHub)
		if _, err := fmt.Fprintf(w, "::%s title=%s::%s\n", command, title, message); err != nil {
			return err
		}
	}

	errors, warnings := countBySeverity(violations)
	summary := fmt.Sprintf("policy check: %d violation(s), %d error(s), %d warning(s)",
		len(violations), errors, warnings)
	command := "notice"
	if errors > 0 {
		command = "error"
	}
	_, err := fmt.Fprintf(w, "::%s::%s\n", command, summary)
	return err
}

package report

import (
	"encoding/json"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/planguard/planguard/pkg/policy"
)

// JSONReporter emits a machine-readable document with a unique report ID,
// suitable for archiving or piping into other tooling.
type JSONReporter struct {
	// Now overrides the timestamp source in tests.
	Now func() time.Time
}

type jsonReport struct {
	ReportID    string             `json:"report_id"`
	GeneratedAt time.Time          `json:"generated_at"`
	Violations  []policy.Violation `json:"violations"`
	Summary     jsonSummary        `json:"summary"`
}

type jsonSummary struct {
	TotalViolations int  `json:"total_violations"`
	Errors          int  `json:"errors"`
	Warnings        int  `json:"warnings"`
	Passed          bool `json:"passed"`
}

func (r *JSONReporter) Report(w io.Writer, violations []policy.Violation) error {
	now := time.Now
	if r.Now != nil {
		now = r.Now
	}
	if violations == nil {
		violations = []policy.Violation{}
	}

	errors, warnings := countBySeverity(violations)
	doc := jsonReport{
		ReportID:    uuid.NewString(),
		GeneratedAt: now().UTC(),
		Violations:  violations,
		Summary: jsonSummary{
			TotalViolations: len(violations),
			Errors:          errors,
			Warnings:        warnings,
			Passed:          len(violations) == 0,
		},
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

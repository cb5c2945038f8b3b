package commands

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/planguard/planguard/pkg/policy"
)

func newExplainCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "explain <rule-id>",
		Short: "Show what a rule checks and when it fires",
		Example: `  # Describe a rule from the default rules directory
  planguard explain require-s3-versioning`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			loader := policy.NewLoader(log.Logger)
			rules, err := loader.LoadDir(rulesDir)
			if err != nil {
				return &ExitError{Code: ExitLoadFailure, Err: err}
			}

			for _, rule := range rules {
				if rule.ID == args[0] {
					explainRule(rule)
					return nil
				}
			}
			return &ExitError{Code: ExitLoadFailure, Err: fmt.Errorf("no rule with id %q in %s", args[0], rulesDir)}
		},
	}

	return cmd
}

func explainRule(rule *policy.Rule) {
	fmt.Printf("%s: %s\n", rule.ID, rule.Name)
	fmt.Printf("  severity:       %s\n", rule.Severity)
	fmt.Printf("  resource types: %s\n", strings.Join(rule.ResourceTypes, ", "))
	fmt.Printf("  message:        %s\n", rule.Message)

	switch {
	case rule.Forbidden:
		fmt.Println("  fires when:     any resource of a matching type is created or updated")
	case rule.Check != nil:
		fmt.Printf("  fires when:     property '%s' fails the %s check (%s)\n",
			rule.Property, rule.Check.Op, describeCheck(rule.Check))
	}

	for _, req := range rule.Requires {
		fmt.Printf("  requires:       %s (%s", req.ResourceType, req.Relationship)
		if req.ReferenceProperty != "" {
			fmt.Printf(" via '%s'", req.ReferenceProperty)
		}
		fmt.Printf("), at least %d", req.MinCount)
		if req.MaxCount != nil {
			fmt.Printf(", at most %d", *req.MaxCount)
		}
		fmt.Println()
		paths := make([]string, 0, len(req.Conditions))
		for path := range req.Conditions {
			paths = append(paths, path)
		}
		sort.Strings(paths)
		for _, path := range paths {
			fmt.Printf("    condition:    %s == %v\n", path, req.Conditions[path])
		}
	}
}

func describeCheck(check *policy.Check) string {
	switch check.Op {
	case policy.OpEquals:
		return fmt.Sprintf("expected %v", check.Value)
	case policy.OpGreaterThan:
		return fmt.Sprintf("must be > %v", check.Number)
	case policy.OpGreaterThanOrEqual:
		return fmt.Sprintf("must be >= %v", check.Number)
	case policy.OpLessThan:
		return fmt.Sprintf("must be < %v", check.Number)
	case policy.OpLessThanOrEqual:
		return fmt.Sprintf("must be <= %v", check.Number)
	case policy.OpContains:
		return fmt.Sprintf("must contain %v", check.Value)
	case policy.OpIn:
		return fmt.Sprintf("must be one of %v", check.Values)
	case policy.OpRegexMatch:
		return fmt.Sprintf("must match %s", check.Pattern)
	case policy.OpHasKeys:
		return fmt.Sprintf("must be a map with keys %v", check.Keys)
	case policy.OpIsNotEmpty:
		return "must be non-empty"
	}
	return string(check.Op)
}

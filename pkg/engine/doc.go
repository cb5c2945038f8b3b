// Package engine evaluates compiled policy rules against the resources of a
// Terraform plan.
//
// The engine performs no I/O: callers load and compile rules (pkg/policy),
// parse the plan (pkg/plan), and hand both to EvaluateAll, which returns an
// ordered list of violations. Single-resource rules compare one property per
// resource; cross-resource rules relate a primary resource to required
// companion resources through the plan's configuration reference graph.
//
// Evaluation is total. Absent properties, non-coercible operands, and
// malformed patterns produce violations or non-matches, never errors, so one
// bad resource cannot abort a run.
package engine

// Package policy defines the rule model for planguard.
//
// A rule targets one or more Terraform resource types and operates in one of
// four modes:
//
//  1. Property check - a dot-notation property path plus exactly one
//     comparator (equals, greater_than, greater_than_or_equal, less_than,
//     less_than_or_equal, contains, in, regex_match, has_keys, is_not_empty)
//  2. Forbidden resource - any use of the resource type is a violation
//  3. Cross-resource - a list of required related resources that must exist
//     alongside each matching primary resource
//  4. Property check combined with cross-resource requirements
//
// Rules are authored as JSON or YAML documents (RuleSpec) and compiled into
// the tagged Rule form. Compilation is eager and fail-closed: every
// field-exclusivity invariant is checked up front, so an invalid combination
// never reaches an evaluator.
//
// The Loader discovers rule files recursively, compiles the whole batch, and
// fails the batch if any single file is malformed. It can also watch a rules
// directory and hand freshly compiled batches to a callback on change.
//
// Violation is the uniform output record produced by the evaluators in
// pkg/engine and consumed by the reporters in pkg/report.
package policy

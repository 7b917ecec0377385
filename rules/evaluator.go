package rules

// Evaluator applies one category's checking algorithm to a batch of rules.
// Implementations return at most one result per rule, in input order, and
// must skip (not fail) rules whose check type they do not recognize.
type Evaluator interface {
	Evaluate(rules []Rule, records []Record) []CheckResult
}

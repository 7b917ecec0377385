package rules

// valueEquals is the comparison used by attribute-equality checks. It is a
// package variable so tests can count how many comparisons actually run.
var valueEquals = func(got any, present bool, want string) bool {
	if !present {
		return false
	}
	s, ok := got.(string)
	return ok && s == want
}

// EqualityEvaluator handles location rules: every filter of every rule must
// match its record property by exact string equality, with no type
// coercion and no case folding.
//
// The first mismatch anywhere in the record-by-filter iteration fails the
// rule and ends its evaluation entirely; remaining filters for that record
// and all later records are never inspected.
type EqualityEvaluator struct{}

// Evaluate produces one result per rule, in input order. A rule with no
// filters trivially passes.
func (EqualityEvaluator) Evaluate(rules []Rule, records []Record) []CheckResult {
	results := make([]CheckResult, 0, len(rules))
	for _, rule := range rules {
		passed := true
	scan:
		for _, rec := range records {
			for _, filter := range rule.Filters {
				v, ok := rec.Get(filter.Property)
				if !valueEquals(v, ok, filter.Value) {
					passed = false
					break scan
				}
			}
		}

		result := CheckResult{Name: rule.Name, Status: StatusPassed}
		if !passed {
			result.Status = StatusFailed
			result.Message = rule.FailureMessage
		}
		results = append(results, result)
	}
	return results
}

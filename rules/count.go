package rules

import (
	"fmt"
	"strconv"
	"strings"
)

// CountEvaluator handles performance rules of type CountOnly: it counts
// the records whose first-filter property is present and truthy, then
// compares the count against the filter value parsed as an integer
// threshold. The rule fails when the count exceeds the threshold.
type CountEvaluator struct{}

// Evaluate produces one result per CountOnly rule. Rules with no filters
// or a non-numeric threshold fail individually; they never abort the run.
func (CountEvaluator) Evaluate(rules []Rule, records []Record) []CheckResult {
	var results []CheckResult
	for _, rule := range rules {
		if rule.CheckType != CheckTypeCountOnly {
			continue
		}

		if len(rule.Filters) == 0 {
			results = append(results, CheckResult{
				Name:    rule.Name,
				Status:  StatusFailed,
				Message: fmt.Sprintf("invalid rule definition: %q has no filters, CountOnly requires a property filter", rule.Name),
			})
			continue
		}

		filter := rule.Filters[0]
		threshold, err := strconv.Atoi(strings.TrimSpace(filter.Value))
		if err != nil {
			results = append(results, CheckResult{
				Name:    rule.Name,
				Status:  StatusFailed,
				Message: fmt.Sprintf("invalid threshold: %q is not an integer", filter.Value),
			})
			continue
		}

		count := 0
		for _, rec := range records {
			if rec.Truthy(filter.Property) {
				count++
			}
		}

		result := CheckResult{
			Name:   rule.Name,
			Status: StatusPassed,
			Result: &count,
		}
		if count > threshold {
			result.Status = StatusFailed
			result.Message = rule.FailureMessage
		}
		results = append(results, result)
	}
	return results
}

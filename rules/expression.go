package rules

import (
	"fmt"

	"github.com/google/cel-go/cel"
)

// expressionCostLimit bounds CEL evaluation cost so a hostile or runaway
// expression cannot exhaust the process.
const expressionCostLimit = 1000000

// ExpressionEvaluator handles custom rules of type Expression. The rule's
// ResultCondition is compiled as a CEL expression over a single `record`
// variable and evaluated against each record in order; the rule fails on
// the first record for which the expression is not true, mirroring the
// short-circuit of the equality evaluator.
type ExpressionEvaluator struct {
	env *cel.Env
}

// NewExpressionEvaluator builds the CEL environment shared by all
// expression checks in a run.
func NewExpressionEvaluator() (*ExpressionEvaluator, error) {
	env, err := cel.NewEnv(
		cel.Variable("record", cel.DynType),
	)
	if err != nil {
		return nil, fmt.Errorf("create CEL environment: %w", err)
	}
	return &ExpressionEvaluator{env: env}, nil
}

// Evaluate produces one result per Expression rule. Compile and eval
// errors fail the individual rule; they never abort the run.
func (e *ExpressionEvaluator) Evaluate(rules []Rule, records []Record) []CheckResult {
	var results []CheckResult
	for _, rule := range rules {
		if rule.CheckType != CheckTypeExpression {
			continue
		}
		results = append(results, e.evaluateRule(rule, records))
	}
	return results
}

func (e *ExpressionEvaluator) evaluateRule(rule Rule, records []Record) CheckResult {
	failed := func(msg string) CheckResult {
		return CheckResult{Name: rule.Name, Status: StatusFailed, Message: msg}
	}

	if rule.ResultCondition == "" {
		return failed(fmt.Sprintf("invalid rule definition: %q has no expression", rule.Name))
	}

	ast, issues := e.env.Compile(rule.ResultCondition)
	if issues != nil && issues.Err() != nil {
		return failed(fmt.Sprintf("expression compile error: %v", issues.Err()))
	}

	prog, err := e.env.Program(ast, cel.CostLimit(expressionCostLimit))
	if err != nil {
		return failed(fmt.Sprintf("expression program error: %v", err))
	}

	for _, rec := range records {
		out, _, err := prog.Eval(map[string]any{"record": map[string]any(rec)})
		if err != nil {
			return failed(fmt.Sprintf("expression evaluation error: %v", err))
		}
		if matched, ok := out.Value().(bool); !ok || !matched {
			return failed(rule.FailureMessage)
		}
	}

	return CheckResult{Name: rule.Name, Status: StatusPassed}
}

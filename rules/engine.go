package rules

import "fmt"

// resultOrder is the order in which category results are emitted:
// performance first, then location, then custom. Views and family rules
// have no built-in evaluator and are silently skipped unless a caller
// registers one.
var resultOrder = []Category{
	CategoryPerformance,
	CategoryLocation,
	CategoryCustom,
	CategoryViews,
	CategoryFamily,
}

// Engine runs the full validation pipeline: parse, categorize, evaluate
// each populated category with its registered evaluator, and concatenate
// the results in the fixed category order.
//
// An Engine is a pure function of its inputs: it keeps no per-run state,
// performs no I/O and never mutates the record set, so a single instance
// may be shared across goroutines.
type Engine struct {
	evaluators map[Category]Evaluator
}

// NewEngine builds an engine with the built-in evaluators registered.
func NewEngine() (*Engine, error) {
	expr, err := NewExpressionEvaluator()
	if err != nil {
		return nil, fmt.Errorf("create engine: %w", err)
	}
	return &Engine{
		evaluators: map[Category]Evaluator{
			CategoryPerformance: CountEvaluator{},
			CategoryLocation:    EqualityEvaluator{},
			CategoryCustom:      expr,
		},
	}, nil
}

// Register installs (or replaces) the evaluator for a category. Categories
// without an evaluator produce no results.
func (e *Engine) Register(cat Category, ev Evaluator) {
	e.evaluators[cat] = ev
}

// Run parses the rule XML and evaluates every categorized rule against the
// records. Parse failure is fatal and yields no partial results; rule
// content problems surface as individual Failed results instead.
func (e *Engine) Run(xmlText []byte, records []Record) ([]CheckResult, error) {
	rs, err := ParseRuleSet(xmlText)
	if err != nil {
		return nil, err
	}
	return e.RunRuleSet(rs, records), nil
}

// RunRuleSet evaluates an already-parsed rule set. Hosts that cache parsed
// rule sets call this directly to skip reparsing.
//
// Results keep each rule's document order within its category, category
// blocks follow resultOrder, and the parser's synthetic failures for
// uncategorizable checks come last.
func (e *Engine) RunRuleSet(rs *RuleSet, records []Record) []CheckResult {
	results := make([]CheckResult, 0, rs.NumRules()+len(rs.Invalid))
	for _, cat := range resultOrder {
		ev, ok := e.evaluators[cat]
		if !ok {
			continue
		}
		results = append(results, ev.Evaluate(rs.Categories[cat], records)...)
	}
	return append(results, rs.Invalid...)
}

package rules

// Category buckets rules by which aspect of the model they inspect.
// Assignment is a pure function of the rule name (see Categorize).
type Category string

const (
	CategoryPerformance Category = "performance"
	CategoryLocation    Category = "location"
	CategoryViews       Category = "views"
	CategoryFamily      Category = "family"
	CategoryCustom      Category = "custom"
)

// Check types recognized by the built-in evaluators. Rules carrying any
// other check type are parsed and categorized but produce no result.
const (
	CheckTypeCountOnly         = "CountOnly"
	CheckTypeAttributeEquality = "AttributeEquality"
	CheckTypeExpression        = "Expression"
)

// Result statuses.
const (
	StatusPassed = "Passed"
	StatusFailed = "Failed"
)

// Rule is one validation requirement extracted from the XML rule file.
// Rules are immutable once parsed and scoped to a single validation run.
type Rule struct {
	Name            string
	Description     string
	CheckType       string
	ResultCondition string // CEL source for Expression checks, unused otherwise
	FailureMessage  string
	Filters         []Filter
}

// Filter narrows what a rule checks: a property/condition/value triple.
// Value is compared as an exact string, except for CountOnly checks which
// parse it as an integer threshold.
type Filter struct {
	Property  string
	Condition string
	Value     string
}

// Record is one flattened model object: a property bag keyed by property
// name. Records are read-only inputs; no evaluator mutates them.
type Record map[string]any

// Get looks up a property. A missing key is absence, not an error.
func (r Record) Get(key string) (any, bool) {
	v, ok := r[key]
	return v, ok
}

// Truthy reports whether the property is present with a meaningful value:
// nil, false, the empty string, numeric zero and empty collections all
// count as absent. Any other present value counts.
func (r Record) Truthy(key string) bool {
	v, ok := r[key]
	if !ok || v == nil {
		return false
	}
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return t != ""
	case int:
		return t != 0
	case int32:
		return t != 0
	case int64:
		return t != 0
	case uint:
		return t != 0
	case uint64:
		return t != 0
	case float32:
		return t != 0
	case float64:
		// JSON decoding yields float64 for every number.
		return t != 0
	case []any:
		return len(t) > 0
	case []string:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	default:
		return true
	}
}

// CheckResult is the outcome of evaluating one rule against the record
// set. Result carries the measured count for count-style checks and is
// nil for all other checks.
type CheckResult struct {
	Name    string `json:"name"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Result  *int   `json:"result,omitempty"`
}

// Passed reports whether the check passed.
func (c CheckResult) Passed() bool {
	return c.Status == StatusPassed
}

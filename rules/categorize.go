package rules

import "strings"

// categoryMatchers is the priority order for name-based categorization.
// The first substring found in the (lowercased) rule name wins, so a name
// containing both "performance" and "location" is a performance rule.
// This ordering is contractual: downstream consumers depend on it, so new
// entries may only be appended, never reordered.
var categoryMatchers = []struct {
	substr   string
	category Category
}{
	{"performance", CategoryPerformance},
	{"location", CategoryLocation},
	{"view", CategoryViews},
	{"family", CategoryFamily},
}

// Categorize assigns a rule name to exactly one category. Names matching
// no known substring fall through to CategoryCustom.
func Categorize(name string) Category {
	lower := strings.ToLower(name)
	for _, m := range categoryMatchers {
		if strings.Contains(lower, m.substr) {
			return m.category
		}
	}
	return CategoryCustom
}

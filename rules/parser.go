package rules

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
)

// ErrMalformedInput is returned when the rule XML cannot be parsed at all.
// Nothing can be validated without a parseable rule set, so callers should
// treat it as fatal for the run.
var ErrMalformedInput = errors.New("malformed rule XML")

// RuleSet is the parsed form of one XML rule file: rules grouped by
// category in document order, plus synthetic failures for checks that
// could not be categorized.
type RuleSet struct {
	// Categories maps each category to its rules, preserving the order
	// in which the Check elements appeared in the document.
	Categories map[Category][]Rule

	// Invalid holds one pre-failed result per Check element that had no
	// CheckName. Such a check cannot be categorized, but one bad rule
	// must not abort the whole run.
	Invalid []CheckResult
}

// Rules returns the rules assigned to the given category.
func (rs *RuleSet) Rules(cat Category) []Rule {
	return rs.Categories[cat]
}

// NumRules returns the total number of categorized rules.
func (rs *RuleSet) NumRules() int {
	n := 0
	for _, list := range rs.Categories {
		n += len(list)
	}
	return n
}

type filterElement struct {
	Property  string `xml:"Property,attr"`
	Condition string `xml:"Condition,attr"`
	Value     string `xml:"Value,attr"`
}

type checkElement struct {
	CheckName       string          `xml:"CheckName,attr"`
	Description     string          `xml:"Description,attr"`
	CheckType       string          `xml:"CheckType,attr"`
	ResultCondition string          `xml:"ResultCondition,attr"`
	FailureMessage  string          `xml:"FailureMessage,attr"`
	Filters         []filterElement `xml:"Filter"`
	Nested          []checkElement  `xml:"Check"`
}

// ParseRuleSet extracts every Check element, wherever it appears under the
// root, into a categorized RuleSet. Attribute extraction is the only
// validation performed here; rule content problems are deferred to the
// evaluators.
func ParseRuleSet(xmlText []byte) (*RuleSet, error) {
	rs := &RuleSet{Categories: make(map[Category][]Rule)}

	dec := xml.NewDecoder(bytes.NewReader(xmlText))
	sawRoot := false
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
		}

		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		sawRoot = true
		if start.Name.Local != "Check" {
			continue
		}

		var elem checkElement
		if err := dec.DecodeElement(&elem, &start); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
		}
		rs.addCheck(elem)
	}

	if !sawRoot {
		return nil, fmt.Errorf("%w: no root element", ErrMalformedInput)
	}

	return rs, nil
}

// addCheck files one decoded Check element, then recurses into any Check
// elements nested inside it. DecodeElement consumes the whole subtree, so
// without the recursion a nested check would be silently dropped; every
// descendant counts, at any depth.
func (rs *RuleSet) addCheck(elem checkElement) {
	if elem.CheckName == "" {
		rs.Invalid = append(rs.Invalid, CheckResult{
			Name:    "(unnamed)",
			Status:  StatusFailed,
			Message: "unnamed rule, cannot categorize",
		})
	} else {
		rule := Rule{
			Name:            elem.CheckName,
			Description:     elem.Description,
			CheckType:       elem.CheckType,
			ResultCondition: elem.ResultCondition,
			FailureMessage:  elem.FailureMessage,
		}
		for _, f := range elem.Filters {
			rule.Filters = append(rule.Filters, Filter{
				Property:  f.Property,
				Condition: f.Condition,
				Value:     f.Value,
			})
		}
		cat := Categorize(rule.Name)
		rs.Categories[cat] = append(rs.Categories[cat], rule)
	}

	for _, nested := range elem.Nested {
		rs.addCheck(nested)
	}
}

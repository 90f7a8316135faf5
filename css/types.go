package css

import (
	"slices"
	"strings"
)

// Declaration is a single "property: value" pair.
type Declaration struct {
	Property string
	Value    string
}

// Rule is a ruleset read back from CSS text.
type Rule struct {
	Selector     string
	Declarations []Declaration
}

// Value returns the last value set for property.
func (r Rule) Value(property string) (string, bool) {
	for i := len(r.Declarations) - 1; i >= 0; i-- {
		if strings.EqualFold(r.Declarations[i].Property, property) {
			return r.Declarations[i].Value, true
		}
	}
	return "", false
}

// Stylesheet is the result of reading CSS text back.
type Stylesheet struct {
	Rules    []Rule
	Comments int
	Warnings []string
}

// RulesBySelector returns all rules with exactly matching selector.
func (s *Stylesheet) RulesBySelector(selector string) []Rule {
	var matches []Rule
	for _, r := range s.Rules {
		if r.Selector == selector {
			matches = append(matches, r)
		}
	}
	return matches
}

// Declarations returns total number of declarations in all rules.
func (s *Stylesheet) Declarations() int {
	n := 0
	for _, r := range s.Rules {
		n += len(r.Declarations)
	}
	return n
}

// Conflicts lists "selector: property" pairs for selectors repeated in several
// rules where a later rule sets property to a different value.
func (s *Stylesheet) Conflicts() []string {
	var (
		seen      = make(map[string]bool)
		conflicts []string
	)
	for _, rule := range s.Rules {
		if seen[rule.Selector] {
			continue
		}
		seen[rule.Selector] = true

		rules := s.RulesBySelector(rule.Selector)
		for i, earlier := range rules[:len(rules)-1] {
			for _, d := range earlier.Declarations {
				for _, later := range rules[i+1:] {
					v, ok := later.Value(d.Property)
					if !ok || v == d.Value {
						continue
					}
					c := rule.Selector + ": " + strings.ToLower(d.Property)
					if !slices.Contains(conflicts, c) {
						conflicts = append(conflicts, c)
					}
					break
				}
			}
		}
	}
	return conflicts
}

package screening

import (
	"fmt"

	"panelfit/domain/panel"
)

// AllVariables makes a range rule apply to every schema variable.
const AllVariables = "*"

// RangeRule is an inclusive plausibility range for one variable.
// A nil bound is open.
type RangeRule struct {
	Variable string   `yaml:"variable" validate:"required"`
	Min      *float64 `yaml:"min"`
	Max      *float64 `yaml:"max"`
}

func (r RangeRule) contains(v float64) bool {
	if r.Min != nil && !(v >= *r.Min) {
		return false
	}
	if r.Max != nil && !(v <= *r.Max) {
		return false
	}
	return true
}

// ApplyRanges drops rows violating any rule.
func ApplyRanges(g panel.Group, rules []RangeRule) (panel.Group, int, error) {
	if len(rules) == 0 {
		return g, 0, nil
	}

	keep := make([]bool, g.Len())
	for i := range keep {
		keep[i] = true
	}

	for _, rule := range rules {
		if rule.Min != nil && rule.Max != nil && *rule.Min > *rule.Max {
			return panel.Group{}, 0, fmt.Errorf("range rule for %q has min > max", rule.Variable)
		}
		vars := []string{rule.Variable}
		if rule.Variable == AllVariables {
			vars = g.Schema.Variables()
		}
		for _, v := range vars {
			col, err := g.Column(v)
			if err != nil {
				return panel.Group{}, 0, err
			}
			for i, x := range col {
				if !rule.contains(x) {
					keep[i] = false
				}
			}
		}
	}

	filtered := g.Keep(keep)
	return filtered, g.Len() - filtered.Len(), nil
}

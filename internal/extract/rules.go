package extract

import (
	"regexp"
	"sort"
)

// Rule is one prioritized pattern. The pattern must match the whole input
// (full match) for the rule to win; Apply converts the capture groups into
// schema field assignments.
type Rule struct {
	Name     string
	Priority int
	Pattern  *regexp.Regexp
	Apply    func(groups []string) map[string]string
}

// RuleSet is an ordered collection of rules. Evaluation is deterministic:
// rules are tried in ascending priority; the first priority level with any
// full match wins, and within that level the pattern with the most capture
// groups is chosen. Lower priority value means tried earlier.
type RuleSet []Rule

// Evaluate runs the set against the input. The second return value is
// false when no rule produced a full match.
func (rs RuleSet) Evaluate(input string) (map[string]string, string, bool) {
	if input == "" {
		return nil, "", false
	}

	ordered := make([]Rule, len(rs))
	copy(ordered, rs)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority < ordered[j].Priority
	})

	for i := 0; i < len(ordered); {
		// Gather every rule sharing this priority level.
		j := i
		for j < len(ordered) && ordered[j].Priority == ordered[i].Priority {
			j++
		}

		var best *Rule
		var bestGroups []string
		for k := i; k < j; k++ {
			groups := ordered[k].Pattern.FindStringSubmatch(input)
			if groups == nil || groups[0] != input {
				continue
			}
			if best == nil || ordered[k].Pattern.NumSubexp() > best.Pattern.NumSubexp() {
				rule := ordered[k]
				best = &rule
				bestGroups = groups
			}
		}
		if best != nil {
			return best.Apply(bestGroups), best.Name, true
		}
		i = j
	}

	return nil, "", false
}

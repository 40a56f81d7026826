package extract

import (
	"regexp"
	"strings"

	"github.com/mpetrenko/RecordHarvester/pkg/records"
)

// Organization markers. Owner strings containing any of these are treated
// as organizations rather than split into person name components.
const orgMarkerAlts = `trust|trustee|living|revocable|llc|inc|incorporated|corp|corporation|company|ltd|bank|association|assn|properties|investments|partners|partnership|fund|holdings`

var orgMarker = regexp.MustCompile(`(?i)\b(` + orgMarkerAlts + `)\b`)

const (
	namePart = `[A-Za-z][A-Za-z'.-]*`
	midPart  = `(?:\s+[A-Za-z]\.?)?`
)

// nameRules decompose an owner string into person name components, in
// priority order. All patterns run against a whitespace-collapsed input;
// casing is normalized afterwards so the patterns stay case-insensitive.
//
// Priority levels:
//
//	0  organization detection
//	1  couple forms ("Smith, John & Jane" / "John Smith & Jane Doe")
//	2  single person, family-first ("Smith, John")
//	3  single person, given-first ("John Smith", middle tolerated)
var nameRules = RuleSet{
	{
		Name:     "organization",
		Priority: 0,
		Pattern:  regexp.MustCompile(`(?i)^.*\b(?:` + orgMarkerAlts + `)\b.*$`),
		Apply: func(groups []string) map[string]string {
			return map[string]string{
				records.FieldEntityType:   string(records.EntityOrganization),
				records.FieldOrganization: titleCase(collapseSpace(groups[0])),
			}
		},
	},
	{
		Name:     "couple_shared_family",
		Priority: 1,
		Pattern:  regexp.MustCompile(`(?i)^(` + namePart + `),\s*(` + namePart + `)` + midPart + `\s*(?:&|\band\b)\s*(` + namePart + `)` + midPart + `$`),
		Apply: func(groups []string) map[string]string {
			family := titleCase(groups[1])
			return map[string]string{
				records.FieldEntityType:   string(records.EntityPerson),
				records.FieldFamilyName:   family,
				records.FieldGivenName:    titleCase(groups[2]),
				records.FieldCoGivenName:  titleCase(groups[3]),
				records.FieldCoFamilyName: family,
			}
		},
	},
	{
		Name:     "couple_two_families",
		Priority: 1,
		Pattern:  regexp.MustCompile(`(?i)^(` + namePart + `)` + midPart + `\s+(` + namePart + `)\s*(?:&|\band\b)\s*(` + namePart + `)` + midPart + `\s+(` + namePart + `)$`),
		Apply: func(groups []string) map[string]string {
			return map[string]string{
				records.FieldEntityType:   string(records.EntityPerson),
				records.FieldGivenName:    titleCase(groups[1]),
				records.FieldFamilyName:   titleCase(groups[2]),
				records.FieldCoGivenName:  titleCase(groups[3]),
				records.FieldCoFamilyName: titleCase(groups[4]),
			}
		},
	},
	{
		Name:     "family_comma_given",
		Priority: 2,
		Pattern:  regexp.MustCompile(`(?i)^(` + namePart + `),\s*(` + namePart + `)` + midPart + `$`),
		Apply: func(groups []string) map[string]string {
			return map[string]string{
				records.FieldEntityType: string(records.EntityPerson),
				records.FieldFamilyName: titleCase(groups[1]),
				records.FieldGivenName:  titleCase(groups[2]),
			}
		},
	},
	{
		Name:     "given_family",
		Priority: 3,
		Pattern:  regexp.MustCompile(`(?i)^(` + namePart + `)` + midPart + `\s+(` + namePart + `)$`),
		Apply: func(groups []string) map[string]string {
			return map[string]string{
				records.FieldEntityType: string(records.EntityPerson),
				records.FieldGivenName:  titleCase(groups[1]),
				records.FieldFamilyName: titleCase(groups[2]),
			}
		},
	},
}

// parseOwnerName resolves an owner string into name-component assignments.
// The cleaned current_owners value is always included when the input is
// non-empty, even if no decomposition rule matches.
func parseOwnerName(raw string) (map[string]string, bool) {
	cleaned := collapseSpace(raw)
	if cleaned == "" || !wordsOnly.MatchString(cleaned) {
		return nil, false
	}

	assignments, _, ok := nameRules.Evaluate(cleaned)
	if !ok {
		// The owners string itself is still a resolvable field; only
		// its decomposition failed.
		return map[string]string{
			records.FieldCurrentOwners: titleCase(cleaned),
		}, true
	}

	assignments[records.FieldCurrentOwners] = titleCase(cleaned)
	return assignments, true
}

// Noise words ignored when tokenizing owner and buyer strings for
// cross-field matching.
var stopTokens = map[string]bool{
	"the": true, "and": true, "et": true, "al": true, "jr": true,
	"sr": true, "i": true, "ii": true, "iii": true, "iv": true, "v": true,
	"ua": true, "fbo": true, "buyer": true, "seller": true, "family": true,
}

var (
	parenthetical = regexp.MustCompile(`\([^)]*\)`)
	bareNumber    = regexp.MustCompile(`\b\d{2,4}\b`)
	wordsOnly     = regexp.MustCompile(`[A-Za-z]+`)
	segmentSplit  = regexp.MustCompile(`\s*(?:,|&|\band\b)\s*`)
)

// cleanPersonSegment strips parentheticals, organization noise words and
// bare numbers from one name segment.
func cleanPersonSegment(seg string) string {
	seg = parenthetical.ReplaceAllString(seg, " ")
	seg = orgMarker.ReplaceAllString(seg, " ")
	seg = bareNumber.ReplaceAllString(seg, " ")
	return collapseSpace(seg)
}

// personSegments splits a multi-person string into cleaned segments.
func personSegments(s string) []string {
	if s == "" {
		return nil
	}
	var keep []string
	for _, part := range segmentSplit.Split(s, -1) {
		cleaned := cleanPersonSegment(part)
		if wordsOnly.MatchString(cleaned) {
			keep = append(keep, cleaned)
		}
	}
	return keep
}

// tokenSet folds a string to its significant name tokens.
func tokenSet(s string) map[string]bool {
	tokens := make(map[string]bool)
	for _, tok := range strings.Fields(foldKey(s)) {
		if len(tok) > 1 && !stopTokens[tok] {
			tokens[tok] = true
		}
	}
	return tokens
}

// personTokens folds every person segment of s into one token set.
func personTokens(s string) map[string]bool {
	tokens := make(map[string]bool)
	for _, seg := range personSegments(s) {
		for tok := range tokenSet(seg) {
			tokens[tok] = true
		}
	}
	return tokens
}

// firstNames returns the leading word of each person segment.
func firstNames(s string) map[string]bool {
	out := make(map[string]bool)
	for _, seg := range personSegments(s) {
		words := significantWords(seg)
		if len(words) > 0 && len(words[0]) >= 2 {
			out[words[0]] = true
		}
	}
	return out
}

// lastNames returns the trailing word of each person segment.
func lastNames(s string) map[string]bool {
	out := make(map[string]bool)
	for _, seg := range personSegments(s) {
		words := significantWords(seg)
		if len(words) > 0 && len(words[len(words)-1]) >= 3 {
			out[words[len(words)-1]] = true
		}
	}
	return out
}

func significantWords(seg string) []string {
	var words []string
	for _, w := range wordsOnly.FindAllString(seg, -1) {
		lw := strings.ToLower(w)
		if !stopTokens[lw] {
			words = append(words, lw)
		}
	}
	return words
}

func isSubset(sub, super map[string]bool) bool {
	if len(sub) == 0 {
		return false
	}
	for tok := range sub {
		if !super[tok] {
			return false
		}
	}
	return true
}

func setsEqual(a, b map[string]bool) bool {
	if len(a) != len(b) || len(a) == 0 {
		return false
	}
	return isSubset(a, b)
}

func overlapCount(a, b map[string]bool) int {
	n := 0
	for tok := range a {
		if b[tok] {
			n++
		}
	}
	return n
}

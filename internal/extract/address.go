package extract

import (
	"regexp"

	"github.com/mpetrenko/RecordHarvester/pkg/records"
)

// addressRules decompose a one-line address into street / city / state /
// postal-code parts, in priority order. The most complete forms are tried
// first; partial forms still resolve what they can.
//
// Priority levels:
//
//	0  street, city, state, zip ("123 Main St, Springfield, IL 62704")
//	1  street, city, state      ("123 Main St, Springfield, IL")
//	2  city, state, zip         ("Springfield, IL 62704")
//	3  bare street              ("123 Main St")
var addressRules = RuleSet{
	{
		Name:     "street_city_state_zip",
		Priority: 0,
		Pattern:  regexp.MustCompile(`^(\d+[^,]*),\s*([^,]+?),\s*([A-Za-z.]{2,}?),?\s+(\d{5}(?:-\d{4})?)$`),
		Apply: func(groups []string) map[string]string {
			return map[string]string{
				records.FieldStreet:     titleCase(collapseSpace(groups[1])),
				records.FieldCity:       titleCase(collapseSpace(groups[2])),
				records.FieldState:      normalizeState(groups[3]),
				records.FieldPostalCode: normalizePostal(groups[4]),
			}
		},
	},
	{
		Name:     "street_city_state",
		Priority: 1,
		Pattern:  regexp.MustCompile(`^(\d+[^,]*),\s*([^,]+?),\s*([A-Za-z. ]{2,})$`),
		Apply: func(groups []string) map[string]string {
			return map[string]string{
				records.FieldStreet: titleCase(collapseSpace(groups[1])),
				records.FieldCity:   titleCase(collapseSpace(groups[2])),
				records.FieldState:  normalizeState(groups[3]),
			}
		},
	},
	{
		Name:     "city_state_zip",
		Priority: 2,
		Pattern:  regexp.MustCompile(`^([^,]+?),\s*([A-Za-z.]{2,}?),?\s+(\d{5}(?:-\d{4})?)$`),
		Apply: func(groups []string) map[string]string {
			return map[string]string{
				records.FieldCity:       titleCase(collapseSpace(groups[1])),
				records.FieldState:      normalizeState(groups[2]),
				records.FieldPostalCode: normalizePostal(groups[3]),
			}
		},
	},
	{
		Name:     "bare_street",
		Priority: 3,
		Pattern:  regexp.MustCompile(`^(\d+\s+[^,]+)$`),
		Apply: func(groups []string) map[string]string {
			return map[string]string{
				records.FieldStreet: titleCase(collapseSpace(groups[1])),
			}
		},
	},
}

// parseAddress resolves a one-line address into part assignments.
func parseAddress(raw string) (map[string]string, bool) {
	cleaned := collapseSpace(raw)
	if cleaned == "" {
		return nil, false
	}
	assignments, _, ok := addressRules.Evaluate(cleaned)
	if !ok {
		return nil, false
	}
	// A postal code that failed validation is Unknown, not garbage.
	if zip, present := assignments[records.FieldPostalCode]; present && zip == "" {
		delete(assignments, records.FieldPostalCode)
	}
	return assignments, true
}

package extract

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	spaceRun    = regexp.MustCompile(`\s+`)
	nonWordChar = regexp.MustCompile(`[^\w\s]`)
	moneyChars  = regexp.MustCompile(`[^\d.]`)
	datePattern = regexp.MustCompile(`([A-Za-z.]+)\s+(\d{1,2}),\s*(\d{4})`)
	zipPattern  = regexp.MustCompile(`^\d{5}(-\d{4})?$`)
)

// collapseSpace trims and squeezes whitespace runs to single spaces.
func collapseSpace(s string) string {
	return strings.TrimSpace(spaceRun.ReplaceAllString(s, " "))
}

// titleCase normalizes a name or place to title case. A fresh caser is
// created per call; cases.Caser carries transform state and must not be
// shared across goroutines.
func titleCase(s string) string {
	return cases.Title(language.AmericanEnglish).String(strings.ToLower(s))
}

// foldKey lowers, strips punctuation and squeezes spaces. Used for identity
// comparison, never for display.
func foldKey(s string) string {
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, "&", " and ")
	s = nonWordChar.ReplaceAllString(s, " ")
	return collapseSpace(s)
}

// maxMoney bounds accepted amounts. Anything larger is scrape noise, and
// the cap keeps the float-to-int64 conversion exact.
const maxMoney = 1e15

// normalizeMoney turns "$1,234,567" into "1234567". "N/A", inputs without
// digits and amounts outside [0, maxMoney] normalize to "".
func normalizeMoney(s string) string {
	if s == "" || strings.Contains(strings.ToUpper(s), "N/A") {
		return ""
	}
	cleaned := moneyChars.ReplaceAllString(s, "")
	if cleaned == "" {
		return ""
	}
	value, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || value < 0 || value > maxMoney {
		return ""
	}
	return strconv.FormatInt(int64(value), 10)
}

var monthNames = map[string]string{
	"jan": "January", "feb": "February", "mar": "March", "apr": "April",
	"may": "May", "jun": "June", "jul": "July", "aug": "August",
	"sep": "September", "sept": "September", "oct": "October",
	"nov": "November", "dec": "December",
	"january": "January", "february": "February", "march": "March",
	"april": "April", "june": "June", "july": "July", "august": "August",
	"september": "September", "october": "October", "november": "November",
	"december": "December",
}

// saleDate is a parsed purchase date with its display split.
type saleDate struct {
	ISO   string // 2006-01-02
	Month string // full month name
	Year  string
}

// parseSaleDate understands the site's date renderings ("Sept. 3, 2019",
// "Sep 3, 2019", "September 3, 2019"). Unparseable input returns ok=false.
func parseSaleDate(s string) (saleDate, bool) {
	m := datePattern.FindStringSubmatch(s)
	if m == nil {
		return saleDate{}, false
	}

	monthToken := strings.ToLower(strings.TrimSuffix(m[1], "."))
	month, ok := monthNames[monthToken]
	if !ok {
		return saleDate{}, false
	}

	day, err := strconv.Atoi(m[2])
	if err != nil || day < 1 || day > 31 {
		return saleDate{}, false
	}
	year, err := strconv.Atoi(m[3])
	if err != nil {
		return saleDate{}, false
	}

	parsed, err := time.Parse("January 2 2006", month+" "+m[2]+" "+m[3])
	if err != nil {
		return saleDate{}, false
	}

	return saleDate{
		ISO:   parsed.Format("2006-01-02"),
		Month: month,
		Year:  strconv.Itoa(year),
	}, true
}

// stateNames maps USPS abbreviations to full state names. Full names pass
// through normalizeState unchanged (title-cased).
var stateNames = map[string]string{
	"AL": "Alabama", "AK": "Alaska", "AZ": "Arizona", "AR": "Arkansas",
	"CA": "California", "CO": "Colorado", "CT": "Connecticut",
	"DE": "Delaware", "FL": "Florida", "GA": "Georgia", "HI": "Hawaii",
	"ID": "Idaho", "IL": "Illinois", "IN": "Indiana", "IA": "Iowa",
	"KS": "Kansas", "KY": "Kentucky", "LA": "Louisiana", "ME": "Maine",
	"MD": "Maryland", "MA": "Massachusetts", "MI": "Michigan",
	"MN": "Minnesota", "MS": "Mississippi", "MO": "Missouri",
	"MT": "Montana", "NE": "Nebraska", "NV": "Nevada",
	"NH": "New Hampshire", "NJ": "New Jersey", "NM": "New Mexico",
	"NY": "New York", "NC": "North Carolina", "ND": "North Dakota",
	"OH": "Ohio", "OK": "Oklahoma", "OR": "Oregon", "PA": "Pennsylvania",
	"RI": "Rhode Island", "SC": "South Carolina", "SD": "South Dakota",
	"TN": "Tennessee", "TX": "Texas", "UT": "Utah", "VT": "Vermont",
	"VA": "Virginia", "WA": "Washington", "WV": "West Virginia",
	"WI": "Wisconsin", "WY": "Wyoming", "DC": "District Of Columbia",
}

// normalizeState expands USPS abbreviations to full state names and
// title-cases everything else, matching the exported dataset convention.
func normalizeState(s string) string {
	cleaned := strings.ToUpper(strings.TrimSuffix(collapseSpace(s), "."))
	if full, ok := stateNames[cleaned]; ok {
		return full
	}
	return titleCase(s)
}

// normalizePostal keeps 5-digit and ZIP+4 codes, rejecting anything else.
func normalizePostal(s string) string {
	cleaned := collapseSpace(s)
	if zipPattern.MatchString(cleaned) {
		return cleaned
	}
	return ""
}

package core

// convert.go turns raw spreadsheet cells into typed values.
//
// Exam files come from several ministries' exports, so the same column can hold
// "15-janv-24", "15/01/24", "2024-01-15" or an Excel serial day number. Every
// parser here returns (value, ok) and never panics on bad input.

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

// TwoDigitYearPivot follows the POSIX %y rule: years below the pivot are 20xx,
// the pivot and above are 19xx.
const TwoDigitYearPivot = 69

// Excel serial day numbers accepted as dates (1954-10-03 .. 2119-01-11).
const (
	minExcelSerial = 20000
	maxExcelSerial = 80000
)

var (
	monthNameDate = regexp.MustCompile(`^(\d{1,2})[-\s]([\p{L}.]+)[-\s](\d{4}|\d{2})$`)
	slashDate     = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})/(\d{2})$`)

	genericDateLayouts = []string{
		"2006-01-02",
		"2006-01-02 15:04:05",
		time.RFC3339,
		"02/01/2006",
		"2/1/2006",
		"02-01-2006",
		"2-1-2006",
		"02.01.2006",
		"2006/01/02",
	}
)

// monthAbbrev maps folded French and English month names to months.
var monthAbbrev = map[string]time.Month{
	"janv": time.January, "jan": time.January, "janvier": time.January, "january": time.January,
	"fevr": time.February, "fev": time.February, "fevrier": time.February, "feb": time.February, "february": time.February,
	"mars": time.March, "mar": time.March, "march": time.March,
	"avr": time.April, "avril": time.April, "apr": time.April, "april": time.April,
	"mai": time.May, "may": time.May,
	"juin": time.June, "jun": time.June, "june": time.June,
	"juil": time.July, "juillet": time.July, "jul": time.July, "july": time.July,
	"aout": time.August, "aug": time.August, "august": time.August,
	"sept": time.September, "sep": time.September, "septembre": time.September, "september": time.September,
	"oct": time.October, "octobre": time.October, "october": time.October,
	"nov": time.November, "novembre": time.November, "november": time.November,
	"dec": time.December, "decembre": time.December, "december": time.December,
}

// missingTokens are cell values that mean "no value" in exported sheets.
var missingTokens = map[string]bool{
	"":     true,
	"nan":  true,
	"null": true,
	"none": true,
	"nat":  true,
	"n/a":  true,
	"#n/a": true,
}

// CleanCell removes common spreadsheet artifacts from a cell value:
// - Trims whitespace, including non-breaking spaces
// - Removes Excel formula prefix (="...")
// - Removes surrounding quotes
func CleanCell(s string) string {
	s = strings.TrimSpace(strings.ReplaceAll(s, " ", " "))

	if strings.HasPrefix(s, "=\"") && strings.HasSuffix(s, "\"") {
		s = s[2 : len(s)-1]
	} else if strings.HasPrefix(s, "=") {
		s = s[1:]
	}

	return strings.TrimSpace(strings.Trim(s, `"'`))
}

// IsMissing reports whether a raw cell holds no usable value.
func IsMissing(s string) bool {
	return missingTokens[strings.ToLower(CleanCell(s))]
}

// ParseDate parses a birth date cell. It tries, in order: day-monthname-year
// ("15-janv-24"), day/month/two-digit-year ("15/01/24"), then a generic set of
// numeric layouts and Excel serial numbers. ok is false when nothing matches.
func ParseDate(s string) (time.Time, bool) {
	s = CleanCell(s)
	if IsMissing(s) {
		return time.Time{}, false
	}

	if m := monthNameDate.FindStringSubmatch(s); m != nil {
		month, ok := monthAbbrev[strings.Trim(strings.ToLower(foldLatin(m[2])), ".")]
		if !ok {
			return time.Time{}, false
		}
		return civilDate(m[3], int(month), m[1])
	}

	if m := slashDate.FindStringSubmatch(s); m != nil {
		month, _ := strconv.Atoi(m[2])
		return civilDate(m[3], month, m[1])
	}

	for _, layout := range genericDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
		}
	}

	if serial, err := strconv.ParseFloat(s, 64); err == nil && serial >= minExcelSerial && serial <= maxExcelSerial {
		if t, err := excelize.ExcelDateToTime(serial, false); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
		}
	}

	return time.Time{}, false
}

// ExpandTwoDigitYear maps a two-digit year onto a full year using TwoDigitYearPivot.
func ExpandTwoDigitYear(yy int) int {
	if yy < TwoDigitYearPivot {
		return 2000 + yy
	}
	return 1900 + yy
}

// civilDate builds a UTC midnight date, rejecting impossible days such as 31/02.
func civilDate(yearStr string, month int, dayStr string) (time.Time, bool) {
	year, err := strconv.Atoi(yearStr)
	if err != nil {
		return time.Time{}, false
	}
	if len(yearStr) == 2 {
		year = ExpandTwoDigitYear(year)
	}
	day, err := strconv.Atoi(dayStr)
	if err != nil || month < 1 || month > 12 || day < 1 {
		return time.Time{}, false
	}

	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Day() != day || int(t.Month()) != month {
		return time.Time{}, false
	}
	return t, true
}

// BirthYearDate returns January 1st of a year given as text.
func BirthYearDate(s string) (time.Time, bool) {
	f, ok := ParseDecimal(s)
	if !ok || f != math.Trunc(f) || f < 1900 || f > 2100 {
		return time.Time{}, false
	}
	return time.Date(int(f), time.January, 1, 0, 0, 0, 0, time.UTC), true
}

// ParseDecimal parses a number written with either a comma or a period as the
// decimal separator. Spaces used as thousands separators are ignored.
func ParseDecimal(s string) (float64, bool) {
	s = CleanCell(s)
	if IsMissing(s) {
		return 0, false
	}

	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, ",", ".")

	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// cleanIdentifier drops the ".0" a numeric identifier picks up when a sheet
// stores it as a float.
func cleanIdentifier(s string) string {
	if whole, frac, ok := strings.Cut(s, "."); ok && strings.Trim(frac, "0") == "" && isDigits(whole) {
		return whole
	}
	return s
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

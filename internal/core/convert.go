package core

// convert.go turns messy spreadsheet cells into canonical Go values.
//
// Cells arrive with the usual export artifacts: Excel formula prefixes
// (="value"), stray quotes, thousands separators, and a zoo of date layouts.
// The parsers here accept those shapes and report ok=false for anything
// else so the validator can name the offending value.

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// integerRegex matches a whole number, optionally written with a zero
// fractional part as spreadsheets like to do ("3.0"). Commas must group
// thousands.
var integerRegex = regexp.MustCompile(`^[+-]?(\d{1,3}(,\d{3})+|\d+)(\.0*)?$`)

var (
	twoDigitYearLayouts = []string{
		"1/2/06", "01/02/06", "1-2-06", "1.2.06", "01.02.06",
	}
	fourDigitYearLayouts = []string{
		"2006-01-02", "2006/01/02", "2006.01.02",
		"1/2/2006", "01/02/2006", "1-2-2006", "01-02-2006", "1.2.2006", "01.02.2006",
		"Jan 2, 2006", "2 Jan 2006", "January 2, 2006",
		"20060102",
		time.RFC3339,
	}
)

// ParseInteger parses a whole number. Thousands separators are accepted;
// fractions other than .0 are not.
func ParseInteger(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if !integerRegex.MatchString(s) {
		return 0, false
	}
	s = strings.ReplaceAll(s, ",", "")
	if dot := strings.IndexByte(s, '.'); dot >= 0 {
		s = s[:dot]
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// ParseDate parses a calendar date in one of the supported layouts.
// Two-digit years follow the time package: 69-99 are 19xx, 00-68 are 20xx.
// The result never depends on the current date. Spreadsheet serial numbers
// (days since 1899-12-30) are accepted too.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	for _, layout := range fourDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return truncateDay(t), true
		}
	}

	for _, layout := range twoDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}

	if serial, err := strconv.ParseFloat(s, 64); err == nil && serial > 0 && serial < 2958466 {
		epoch := time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)
		return epoch.AddDate(0, 0, int(math.Floor(serial))), true
	}

	return time.Time{}, false
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// CleanCell removes common export artifacts from a cell value:
//   - surrounding whitespace
//   - an Excel formula prefix (="...")
//   - surrounding quotes
func CleanCell(s string) string {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "=\"") && strings.HasSuffix(s, "\"") {
		s = s[2 : len(s)-1]
	} else if strings.HasPrefix(s, "=") {
		s = s[1:]
	}

	s = strings.Trim(s, `"'`)
	return strings.TrimSpace(s)
}

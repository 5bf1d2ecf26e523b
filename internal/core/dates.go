package core

// dates.go normalizes the many ways a sale date shows up in spreadsheets
// into the canonical DD-MM-YYYY form.
//
// Resolution order (first match wins):
//  1. Spreadsheet serial numbers (days since 1899-12-30)
//  2. Six numeric patterns, always reading D/M/YYYY as day-first
//  3. A fixed set of textual layouts
//  4. Otherwise the input is returned untouched so validation can flag it

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// CanonicalDateLayout is the output format of NormalizeDate.
const CanonicalDateLayout = "02-01-2006"

// canonicalDateRegex is the exact shape a validated date must have.
var canonicalDateRegex = regexp.MustCompile(`^\d{2}-\d{2}-\d{4}$`)

// serialEpoch is day zero of the spreadsheet serial date system. Using Dec 30
// absorbs the 1900 leap-year bug so that serial 1 lands on 1900-01-01.
var serialEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)

// Accepted year range for pattern matches.
const (
	minDateYear = 1900
	maxDateYear = 2100
)

// datePattern is one numeric date shape and the positions of its parts.
type datePattern struct {
	regex                   *regexp.Regexp
	yearIdx, monIdx, dayIdx int
}

// datePatterns are tried in priority order. Matches are not anchored, so a
// date embedded in surrounding text is still picked up.
var datePatterns = []datePattern{
	{regexp.MustCompile(`(\d{4})-(\d{1,2})-(\d{1,2})`), 1, 2, 3},
	{regexp.MustCompile(`(\d{1,2})-(\d{1,2})-(\d{4})`), 3, 2, 1},
	{regexp.MustCompile(`(\d{1,2})/(\d{1,2})/(\d{4})`), 3, 2, 1},
	{regexp.MustCompile(`(\d{4})/(\d{1,2})/(\d{1,2})`), 1, 2, 3},
	{regexp.MustCompile(`(\d{1,2})\.(\d{1,2})\.(\d{4})`), 3, 2, 1},
	{regexp.MustCompile(`(\d{4})\.(\d{1,2})\.(\d{1,2})`), 1, 2, 3},
}

// fallbackDateLayouts are tried when no numeric pattern matched.
var fallbackDateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	time.RFC1123,
	time.RFC1123Z,
	time.RFC850,
	time.ANSIC,
	"Jan 2, 2006",
	"January 2, 2006",
	"2 Jan 2006",
	"2 January 2006",
	"Mon, 2 Jan 2006",
	"Jan 2 2006",
	"2006년 1월 2일",
	"2006년 01월 02일",
}

// NormalizeDate converts a raw date representation into DD-MM-YYYY.
// It never fails: unrecognized input is returned unchanged.
func NormalizeDate(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return raw
	}

	if t, ok := fromSerial(s); ok {
		return t.Format(CanonicalDateLayout)
	}

	for _, p := range datePatterns {
		m := p.regex.FindStringSubmatch(s)
		if m == nil {
			continue
		}
		year, _ := strconv.Atoi(m[p.yearIdx])
		month, _ := strconv.Atoi(m[p.monIdx])
		day, _ := strconv.Atoi(m[p.dayIdx])
		if t, ok := calendarDate(year, month, day); ok {
			return t.Format(CanonicalDateLayout)
		}
	}

	for _, layout := range fallbackDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(CanonicalDateLayout)
		}
	}

	return raw
}

// IsCanonicalDate reports whether s is exactly in DD-MM-YYYY shape.
func IsCanonicalDate(s string) bool {
	return canonicalDateRegex.MatchString(s)
}

// fromSerial interprets s as a spreadsheet serial day count. The fractional
// part (time of day) is ignored.
func fromSerial(s string) (time.Time, bool) {
	n, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) || n <= 1 {
		return time.Time{}, false
	}
	days := math.Floor(n)
	// Beyond year 9999 the canonical layout no longer has four year digits.
	if days > 2958465 {
		return time.Time{}, false
	}
	return serialEpoch.AddDate(0, 0, int(days)), true
}

// calendarDate builds a date from parts, rejecting out-of-range values and
// combinations that do not round-trip (e.g. 31 April).
func calendarDate(year, month, day int) (time.Time, bool) {
	if year < minDateYear || year > maxDateYear || month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, false
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Year() != year || int(t.Month()) != month || t.Day() != day {
		return time.Time{}, false
	}
	return t, true
}

package ingest

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/EthanVT97/rangoon-version1.0.0.1/internal/row"
)

// DateLayout is the canonical date format sent to ERPNext
const DateLayout = "2006-01-02"

// Transform coerces a mapped cell value. ok=false means "no value": the
// canonical field is left out of the mapped row.
type Transform func(v row.Value) (out row.Value, ok bool)

var (
	canonicalDate = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	nonNumeric    = regexp.MustCompile(`[^\d.-]`)
	numericPrefix = regexp.MustCompile(`^-?(\d+(\.\d*)?|\.\d+)`)
)

// fallback layouts tried in order after the fast paths
var dateLayouts = []string{
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-1-2",
	"2006/01/02",
	"2006/1/2",
	"01/02/2006",
	"1/2/2006",
	"01/02/06",
	"1/2/06",
	"01-02-06",
	"1-2-06",
	"01-02-2006",
	"02.01.2006",
	"2.1.2006",
	"02.01.06",
	"January 2, 2006",
	"Jan 2, 2006",
	"2 January 2006",
	"2 Jan 2006",
	"02-Jan-2006",
	"02-Jan-06",
	"Mon, 02 Jan 2006",
	"Mon Jan 2 2006",
	time.RFC1123,
	time.RFC1123Z,
}

// ParseDate parses a human or spreadsheet-entered date. Besides the layouts
// above it accepts Excel serial day numbers.
func ParseDate(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}

	if canonicalDate.MatchString(value) {
		t, err := time.Parse(DateLayout, value)
		return t, err == nil
	}

	if date, ok := parseDateFastDDMMYYYY(value); ok {
		return date, true
	}
	if date, ok := parseDateFastDDMMYY(value); ok {
		return date, true
	}

	if date, ok := parseExcelSerial(value); ok {
		return date, true
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// NormalizeDate returns value as YYYY-MM-DD
func NormalizeDate(value string) (string, bool) {
	if canonicalDate.MatchString(value) {
		return value, true
	}
	t, ok := ParseDate(value)
	if !ok {
		return "", false
	}
	return t.Format(DateLayout), true
}

// parseDateFastDDMMYYYY parses DD.MM.YYYY format (10 chars: "31.01.2026")
func parseDateFastDDMMYYYY(value string) (time.Time, bool) {
	if len(value) != 10 || value[2] != '.' || value[5] != '.' {
		return time.Time{}, false
	}
	if !allDigits(value[0:2]) || !allDigits(value[3:5]) || !allDigits(value[6:10]) {
		return time.Time{}, false
	}

	day := int(value[0]-'0')*10 + int(value[1]-'0')
	month := int(value[3]-'0')*10 + int(value[4]-'0')
	year := int(value[6]-'0')*1000 + int(value[7]-'0')*100 + int(value[8]-'0')*10 + int(value[9]-'0')
	if year < 1900 || year > 2100 {
		return time.Time{}, false
	}
	return makeDate(year, month, day)
}

// parseDateFastDDMMYY parses DD.MM.YY format (8 chars: "31.01.26").
// Year interpretation: <30 -> 2000+, >=30 -> 1900+
func parseDateFastDDMMYY(value string) (time.Time, bool) {
	if len(value) != 8 || value[2] != '.' || value[5] != '.' {
		return time.Time{}, false
	}
	if !allDigits(value[0:2]) || !allDigits(value[3:5]) || !allDigits(value[6:8]) {
		return time.Time{}, false
	}

	day := int(value[0]-'0')*10 + int(value[1]-'0')
	month := int(value[3]-'0')*10 + int(value[4]-'0')
	yy := int(value[6]-'0')*10 + int(value[7]-'0')
	year := 1900 + yy
	if yy < 30 {
		year = 2000 + yy
	}
	return makeDate(year, month, day)
}

// parseExcelSerial accepts the day numbers Excel stores for dates when a cell
// has no date format (e.g. "45678" or "45678.5")
func parseExcelSerial(value string) (time.Time, bool) {
	if len(value) < 3 || len(value) > 12 || !allDigits(strings.Replace(value, ".", "", 1)) {
		return time.Time{}, false
	}
	serial, err := strconv.ParseFloat(value, 64)
	if err != nil || serial < 1 || serial > 2958465 {
		return time.Time{}, false
	}
	t, err := excelize.ExcelDateToTime(serial, false)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func makeDate(year, month, day int) (time.Time, bool) {
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, false
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	// reject 31.02 and friends instead of letting time.Date roll over
	if t.Day() != day {
		return time.Time{}, false
	}
	return t, true
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// ParseLooseFloat strips everything except digits, '.' and '-' and parses
// the longest numeric prefix of the rest, so "1.2.3" is 1.2
func ParseLooseFloat(s string) (float64, bool) {
	prefix := numericPrefix.FindString(nonNumeric.ReplaceAllString(s, ""))
	if prefix == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(prefix, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// DateTransform normalizes a date cell to YYYY-MM-DD
func DateTransform(v row.Value) (row.Value, bool) {
	switch v.Kind() {
	case row.KindString:
		s, _ := v.Str()
		if out, ok := NormalizeDate(s); ok {
			return row.String(out), true
		}
	case row.KindNumber:
		if t, ok := parseExcelSerial(v.Text()); ok {
			return row.String(t.Format(DateLayout)), true
		}
	}
	return row.Value{}, false
}

// FloatTransform converts a cell to a number
func FloatTransform(v row.Value) (row.Value, bool) {
	switch v.Kind() {
	case row.KindNumber:
		return v, true
	case row.KindString:
		s, _ := v.Str()
		if f, ok := ParseLooseFloat(s); ok {
			return row.Number(f), true
		}
	}
	return row.Value{}, false
}

// IntTransform converts a cell to a whole number, truncating any fraction
func IntTransform(v row.Value) (row.Value, bool) {
	f, ok := FloatTransform(v)
	if !ok {
		return row.Value{}, false
	}
	n, _ := f.Num()
	return row.Number(math.Trunc(n)), true
}

// FlagTransform maps yes/true/1 to 1 and any other text to 0
func FlagTransform(v row.Value) (row.Value, bool) {
	switch v.Kind() {
	case row.KindBool:
		b, _ := v.BoolVal()
		if b {
			return row.Number(1), true
		}
		return row.Number(0), true
	case row.KindNumber:
		return v, true
	case row.KindString:
		s, _ := v.Str()
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "yes", "1", "true":
			return row.Number(1), true
		}
		return row.Number(0), true
	}
	return row.Value{}, false
}

package autofix

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/EthanVT97/rangoon-version1.0.0.1/internal/ingest"
	"github.com/EthanVT97/rangoon-version1.0.0.1/internal/row"
)

// FixFunc returns the corrected row, or nil when it cannot act on message.
// It receives a private copy and may modify it in place.
type FixFunc func(r *row.Row, message string) *row.Row

// Strategy is one pattern-matched remediation rule
type Strategy struct {
	Pattern     *regexp.Regexp
	Description string
	Fix         FixFunc
}

const (
	DescMandatoryDefaults = "Add default values for mandatory fields"
	DescUniqueNames       = "Generate unique names for duplicates"
	DescDateFormat        = "Convert dates to proper format"
	DescNumberFormat      = "Convert strings to proper numbers"
	DescPermissionRetry   = "Retry with administrative privileges"
)

var (
	mandatoryPattern = regexp.MustCompile(`(?i)field.*is mandatory`)
	mandatoryField   = regexp.MustCompile(`(?i)field ['"]?([^'"]+)['"]? is mandatory`)
	valueMissing     = regexp.MustCompile(`(?i)value missing for [^:]+:\s*([^<\n]+)`)
)

var mandatoryDefaults = map[string]row.Value{
	"naming_series":                 row.String("AUTO"),
	"currency":                      row.String("USD"),
	"company":                       row.String("Default Company"),
	"customer_group":                row.String("All Customer Groups"),
	"territory":                     row.String("All Territories"),
	"item_group":                    row.String("All Item Groups"),
	"stock_uom":                     row.String("Nos"),
	"is_stock_item":                 row.Number(1),
	"include_item_in_manufacturing": row.Number(0),
	"maintain_stock":                row.Number(1),
	"disabled":                      row.Number(0),
	"has_batch_no":                  row.Number(0),
	"has_serial_no":                 row.Number(0),
	"is_purchase_item":              row.Number(1),
	"is_sales_item":                 row.Number(1),
}

var (
	nameFields    = []string{"name", "item_code", "customer_name"}
	dateFields    = []string{"posting_date", "due_date", "transaction_date", "delivery_date"}
	numericFields = []string{"rate", "amount", "qty", "quantity", "price", "cost"}
)

// DefaultStrategies returns the built-in strategies in priority order.
// now drives the duplicate-name suffix and the date fallback.
func DefaultStrategies(now func() time.Time) []Strategy {
	if now == nil {
		now = time.Now
	}
	return []Strategy{
		{
			Pattern:     mandatoryPattern,
			Description: DescMandatoryDefaults,
			Fix:         fixMandatory,
		},
		{
			Pattern:     regexp.MustCompile(`(?i)duplicate|already exists`),
			Description: DescUniqueNames,
			Fix: func(r *row.Row, _ string) *row.Row {
				return fixDuplicateName(r, now())
			},
		},
		{
			Pattern:     regexp.MustCompile(`(?i)invalid date|date format`),
			Description: DescDateFormat,
			Fix: func(r *row.Row, _ string) *row.Row {
				return fixDates(r, now())
			},
		},
		{
			Pattern:     regexp.MustCompile(`(?i)invalid number|not a valid float`),
			Description: DescNumberFormat,
			Fix:         fixNumbers,
		},
		{
			Pattern:     regexp.MustCompile(`(?i)permission denied|not permitted`),
			Description: DescPermissionRetry,
			Fix: func(r *row.Row, _ string) *row.Row {
				return r
			},
		},
	}
}

func fixMandatory(r *row.Row, message string) *row.Row {
	m := mandatoryField.FindStringSubmatch(message)
	if m == nil {
		return nil
	}
	field := strings.ToLower(strings.TrimSpace(m[1]))
	def, ok := mandatoryDefaults[field]
	if !ok {
		return nil
	}
	r.Set(field, def)
	return r
}

// fixDuplicateName suffixes the first non-empty name-like field whatever the
// entity type, e.g. customer_name on an Item row.
func fixDuplicateName(r *row.Row, now time.Time) *row.Row {
	for _, field := range nameFields {
		v, ok := r.Get(field)
		if !ok || v.IsEmpty() {
			continue
		}
		r.Set(field, row.String(fmt.Sprintf("%s_%d", v.Text(), now.UnixMilli())))
		return r
	}
	return nil
}

func fixDates(r *row.Row, now time.Time) *row.Row {
	changed := false
	for _, field := range dateFields {
		v, ok := r.Get(field)
		if !ok || v.IsEmpty() {
			continue
		}
		if out, ok := ingest.DateTransform(v); ok {
			r.Set(field, out)
		} else {
			r.Set(field, row.String(now.Format(ingest.DateLayout)))
		}
		changed = true
	}
	if !changed {
		return nil
	}
	return r
}

func fixNumbers(r *row.Row, _ string) *row.Row {
	changed := false
	for _, field := range numericFields {
		v, ok := r.Get(field)
		if !ok {
			continue
		}
		s, isString := v.Str()
		if !isString || s == "" {
			continue
		}
		if f, ok := ingest.ParseLooseFloat(s); ok {
			r.Set(field, row.Number(f))
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return r
}

// FieldFromMessage extracts the offending field name from a remote error
// message, or "" when the message names none.
func FieldFromMessage(message string) string {
	if m := mandatoryField.FindStringSubmatch(message); m != nil {
		return strings.ToLower(strings.TrimSpace(m[1]))
	}
	if m := valueMissing.FindStringSubmatch(message); m != nil {
		return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(m[1])), " ", "_")
	}
	return ""
}

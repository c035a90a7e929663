package ingest

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/EthanVT97/rangoon-version1.0.0.1/internal/entity"
	"github.com/EthanVT97/rangoon-version1.0.0.1/internal/row"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Validator checks mapped rows against the entity schemas. It reports every
// violation in every row; nothing short-circuits after the first error.
type Validator struct{}

// NewValidator creates a validator
func NewValidator() *Validator {
	return &Validator{}
}

// Validate checks rows for entity type t
func (v *Validator) Validate(t entity.Type, rows []*row.Row) Result {
	res := Result{Errors: []Issue{}, Warnings: []Issue{}}

	rules, ok := schemas[t]
	if !ok {
		res.Errors = append(res.Errors, Issue{Field: "module", Message: fmt.Sprintf("Unsupported module: %s", t)})
		return res
	}
	if len(rows) == 0 {
		res.Errors = append(res.Errors, Issue{Field: "data", Message: "No data found in file"})
		return res
	}

	columns := columnSet(rows)
	known := make(map[string]bool, len(rules))
	var missing []string
	for _, rule := range rules {
		known[rule.Field] = true
		if rule.Required && !columns.has(rule.Field) {
			missing = append(missing, rule.Field)
		}
	}
	if len(missing) > 0 {
		res.Errors = append(res.Errors, Issue{
			Row:     1,
			Field:   strings.Join(missing, ", "),
			Message: "Missing required columns: " + strings.Join(missing, ", "),
		})
	}
	for _, col := range columns.order {
		if !known[col] {
			res.Warnings = append(res.Warnings, Issue{
				Row:     1,
				Field:   col,
				Message: fmt.Sprintf("Column %q is not part of the %s schema and will be sent as-is", col, t),
			})
		}
	}

	for i, r := range rows {
		rowNum := RowNumber(i)
		for _, rule := range rules {
			res.Errors = append(res.Errors, checkField(rule, r, rowNum)...)
		}
	}

	res.IsValid = len(res.Errors) == 0
	return res
}

func checkField(rule FieldRule, r *row.Row, rowNum int) []Issue {
	value, _ := r.Get(rule.Field)
	if value.IsEmpty() {
		if rule.Required {
			return []Issue{{
				Row:      rowNum,
				Field:    rule.Field,
				Message:  rule.Field + " is required",
				Value:    value.Text(),
				Expected: string(rule.Type),
			}}
		}
		return nil
	}

	if !matchesType(value, rule.Type) {
		return []Issue{{
			Row:      rowNum,
			Field:    rule.Field,
			Message:  fmt.Sprintf("%s must be of type %s (got %s %q)", rule.Field, rule.Type, value.Kind(), value.Text()),
			Value:    value.Text(),
			Expected: string(rule.Type),
		}}
	}

	s, isString := value.Str()
	if !isString {
		return nil
	}
	var issues []Issue
	n := utf8.RuneCountInString(s)
	if rule.MinLength > 0 && n < rule.MinLength {
		issues = append(issues, Issue{
			Row: rowNum, Field: rule.Field, Value: s, Expected: string(rule.Type),
			Message: fmt.Sprintf("%s must be at least %d characters", rule.Field, rule.MinLength),
		})
	}
	if rule.MaxLength > 0 && n > rule.MaxLength {
		issues = append(issues, Issue{
			Row: rowNum, Field: rule.Field, Value: s, Expected: string(rule.Type),
			Message: fmt.Sprintf("%s must not exceed %d characters", rule.Field, rule.MaxLength),
		})
	}
	if rule.Pattern != nil && !rule.Pattern.MatchString(s) {
		issues = append(issues, Issue{
			Row: rowNum, Field: rule.Field, Value: s, Expected: string(rule.Type),
			Message: fmt.Sprintf("%s format is invalid", rule.Field),
		})
	}
	return issues
}

// matchesType checks v against the closed value space. Numbers accept
// booleans and numeric strings; a blank string counts as zero.
func matchesType(v row.Value, t FieldType) bool {
	switch t {
	case TypeString:
		return v.Kind() == row.KindString
	case TypeNumber:
		switch v.Kind() {
		case row.KindNumber:
			n, _ := v.Num()
			return !math.IsNaN(n) && !math.IsInf(n, 0)
		case row.KindBool:
			return true
		case row.KindString:
			s, _ := v.Str()
			s = strings.TrimSpace(s)
			if s == "" {
				return true
			}
			f, err := strconv.ParseFloat(s, 64)
			return err == nil && !math.IsNaN(f) && !math.IsInf(f, 0)
		}
		return false
	case TypeDate:
		switch v.Kind() {
		case row.KindString:
			s, _ := v.Str()
			_, ok := ParseDate(s)
			return ok
		case row.KindNumber:
			_, ok := parseExcelSerial(v.Text())
			return ok
		}
		return false
	case TypeEmail:
		s, ok := v.Str()
		return ok && emailPattern.MatchString(s)
	}
	return true
}

type orderedSet struct {
	order []string
	seen  map[string]bool
}

func (s *orderedSet) has(k string) bool { return s.seen[k] }

// columnSet starts from row 1's keys and adds keys first seen in later rows
func columnSet(rows []*row.Row) *orderedSet {
	set := &orderedSet{seen: make(map[string]bool)}
	for _, r := range rows {
		for _, k := range r.Keys() {
			if !set.seen[k] {
				set.seen[k] = true
				set.order = append(set.order, k)
			}
		}
	}
	return set
}

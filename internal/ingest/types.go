package ingest

import (
	"fmt"

	"github.com/EthanVT97/rangoon-version1.0.0.1/internal/row"
)

// Parsed is the result of reading the first sheet of a spreadsheet
type Parsed struct {
	Rows     []*row.Row `json:"rows"`
	RowCount int        `json:"rowCount"`
	Columns  []string   `json:"columns"`
}

// ParseError reports content that is not a readable spreadsheet
type ParseError struct {
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse error: %s: %v", e.Reason, e.Err)
	}
	return "parse error: " + e.Reason
}

func (e *ParseError) Unwrap() error { return e.Err }

// Issue is a single validation error or warning.
// Row is the 1-based spreadsheet row (header is row 1); zero means the issue
// is not tied to a row.
type Issue struct {
	Row      int    `json:"row,omitempty"`
	Field    string `json:"field"`
	Message  string `json:"message"`
	Value    string `json:"value,omitempty"`
	Expected string `json:"expected,omitempty"`
}

// Result is the outcome of validating a set of rows
type Result struct {
	IsValid  bool    `json:"isValid"`
	Errors   []Issue `json:"errors"`
	Warnings []Issue `json:"warnings"`
}

// RowNumber converts a zero-based data index into the spreadsheet row number
func RowNumber(index int) int {
	return index + 2
}

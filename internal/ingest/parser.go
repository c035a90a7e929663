package ingest

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"

	"github.com/EthanVT97/rangoon-version1.0.0.1/internal/row"
)

// CSVOptions controls parsing of delimited text uploads
type CSVOptions struct {
	Encoding  string // "utf-8" (default) or "windows-1251"
	Delimiter string // "," (default) or ";"
}

// Validate normalizes defaults and rejects unsupported values
func (o *CSVOptions) Validate() error {
	if o.Encoding == "" {
		o.Encoding = "utf-8"
	}
	if o.Delimiter == "" {
		o.Delimiter = ","
	}
	if o.Encoding != "utf-8" && o.Encoding != "windows-1251" {
		return fmt.Errorf("encoding must be 'utf-8' or 'windows-1251'")
	}
	if o.Delimiter != ";" && o.Delimiter != "," {
		return fmt.Errorf("delimiter must be ';' or ','")
	}
	return nil
}

// Parser turns uploaded spreadsheets into ordered row maps
type Parser struct{}

// NewParser creates a new parser
func NewParser() *Parser {
	return &Parser{}
}

// IsSpreadsheet reports whether the file name has an extension the parser reads
func IsSpreadsheet(filename string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx", ".xlsm", ".xls", ".csv":
		return true
	}
	return false
}

// ParseFile picks the decoder from the file extension
func (p *Parser) ParseFile(filename string, content []byte, opts CSVOptions) (*Parsed, error) {
	if strings.EqualFold(filepath.Ext(filename), ".csv") {
		return p.ParseCSV(bytes.NewReader(content), opts)
	}
	return p.Parse(content)
}

// Parse reads the first sheet of an xlsx workbook. Row 1 is the header.
func (p *Parser) Parse(content []byte) (*Parsed, error) {
	if len(content) == 0 {
		return nil, &ParseError{Reason: "file is empty"}
	}

	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, &ParseError{Reason: "not a valid spreadsheet", Err: err}
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, &ParseError{Reason: "workbook has no sheets"}
	}

	records, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, &ParseError{Reason: fmt.Sprintf("failed to read sheet %q", sheets[0]), Err: err}
	}

	return buildParsed(records), nil
}

// ParseCSV reads a delimited text file with a header line
func (p *Parser) ParseCSV(r io.Reader, opts CSVOptions) (*Parsed, error) {
	if err := opts.Validate(); err != nil {
		return nil, &ParseError{Reason: err.Error()}
	}

	var reader io.Reader = r
	if opts.Encoding == "windows-1251" {
		reader = charmap.Windows1251.NewDecoder().Reader(r)
	}

	csvReader := csv.NewReader(reader)
	csvReader.Comma = rune(opts.Delimiter[0])
	csvReader.LazyQuotes = true
	csvReader.TrimLeadingSpace = true
	csvReader.FieldsPerRecord = -1

	records, err := csvReader.ReadAll()
	if err != nil {
		return nil, &ParseError{Reason: "csv read error", Err: err}
	}
	if len(records) > 0 && len(records[0]) > 0 {
		records[0][0] = strings.TrimPrefix(records[0][0], "\ufeff")
	}

	return buildParsed(records), nil
}

// buildParsed keys every data row by the header row. Cells past the end of a
// short row become null so every row carries every column.
func buildParsed(records [][]string) *Parsed {
	parsed := &Parsed{Rows: []*row.Row{}, Columns: []string{}}
	if len(records) == 0 {
		return parsed
	}

	width := len(records[0])
	for _, rec := range records[1:] {
		if len(rec) > width {
			width = len(rec)
		}
	}

	header := make([]string, width)
	for i := range header {
		if i < len(records[0]) {
			header[i] = records[0][i]
		}
	}
	parsed.Columns = headerKeys(header)

	for _, rec := range records[1:] {
		r := row.New()
		for i, key := range parsed.Columns {
			if i < len(rec) && strings.TrimSpace(rec[i]) != "" {
				r.Set(key, row.String(strings.TrimSpace(rec[i])))
			} else {
				r.Set(key, row.Null())
			}
		}
		if r.IsBlank() {
			continue
		}
		parsed.Rows = append(parsed.Rows, r)
	}

	parsed.RowCount = len(parsed.Rows)
	return parsed
}

// headerKeys trims header cells, names blank ones __EMPTY, __EMPTY_1, ... and
// suffixes repeated names with _1, _2, ...
func headerKeys(header []string) []string {
	keys := make([]string, len(header))
	seen := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.TrimSpace(h)
		if name == "" {
			name = "__EMPTY"
		}
		key := name
		if n, ok := seen[name]; ok {
			for {
				key = name + "_" + strconv.Itoa(n)
				n++
				if _, taken := seen[key]; !taken {
					break
				}
			}
			seen[name] = n
		} else {
			seen[name] = 1
		}
		seen[key] = max(seen[key], 1)
		keys[i] = key
	}
	return keys
}

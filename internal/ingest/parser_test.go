package ingest

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"

	"github.com/EthanVT97/rangoon-version1.0.0.1/internal/row"
)

// workbook builds an xlsx whose first sheet holds cells (row-major, "" = no cell)
func workbook(t *testing.T, cells [][]string) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for r, rec := range cells {
		for c, v := range rec {
			if v == "" {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			require.NoError(t, err)
			require.NoError(t, f.SetCellValue("Sheet1", cell, v))
		}
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func TestParseXLSX(t *testing.T) {
	content := workbook(t, [][]string{
		{"Item Code", "Item Name", "Item Group"},
		{"A-1", "Widget", "Products"},
		{"A-2", "", "Products"},
	})

	parsed, err := NewParser().Parse(content)
	require.NoError(t, err)

	assert.Equal(t, []string{"Item Code", "Item Name", "Item Group"}, parsed.Columns)
	require.Equal(t, 2, parsed.RowCount)
	require.Len(t, parsed.Rows, 2)

	first := parsed.Rows[0]
	assert.Equal(t, []string{"Item Code", "Item Name", "Item Group"}, first.Keys())
	v, _ := first.Get("Item Name")
	assert.Equal(t, "Widget", v.Text())

	// blank cell is kept as an explicit null
	v, ok := parsed.Rows[1].Get("Item Name")
	require.True(t, ok)
	assert.True(t, v.IsNull())
}

func TestParseShortRowsAndBlankRows(t *testing.T) {
	content := workbook(t, [][]string{
		{"a", "b", "c"},
		{"1"},
		{},
		{"2", "", "3"},
	})

	parsed, err := NewParser().Parse(content)
	require.NoError(t, err)
	require.Equal(t, 2, parsed.RowCount)

	for _, r := range parsed.Rows {
		assert.Equal(t, 3, r.Len())
	}
	c, ok := parsed.Rows[0].Get("c")
	require.True(t, ok)
	assert.True(t, c.IsNull())
	c, _ = parsed.Rows[1].Get("c")
	assert.Equal(t, "3", c.Text())
}

func TestParseHeaderOnly(t *testing.T) {
	parsed, err := NewParser().Parse(workbook(t, [][]string{{"item_code", "item_name"}}))
	require.NoError(t, err)
	assert.Equal(t, 0, parsed.RowCount)
	assert.Empty(t, parsed.Rows)
	assert.Equal(t, []string{"item_code", "item_name"}, parsed.Columns)
}

func TestParseRejectsInvalidContent(t *testing.T) {
	tests := []struct {
		name    string
		content []byte
	}{
		{name: "empty", content: nil},
		{name: "not a zip container", content: []byte("definitely not a workbook")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewParser().Parse(tt.content)
			require.Error(t, err)
			var pe *ParseError
			assert.True(t, errors.As(err, &pe))
		})
	}
}

func TestHeaderKeys(t *testing.T) {
	got := headerKeys([]string{"a", "", "a", "", " b ", "a"})
	assert.Equal(t, []string{"a", "__EMPTY", "a_1", "__EMPTY_1", "b", "a_2"}, got)
}

func TestParseCSV(t *testing.T) {
	tests := []struct {
		name    string
		input   []byte
		opts    CSVOptions
		columns []string
		first   string
	}{
		{
			name:    "utf-8 with BOM",
			input:   []byte("\ufeffcustomer_name,territory\nAcme,Yangon\n"),
			columns: []string{"customer_name", "territory"},
			first:   "Acme",
		},
		{
			name:    "semicolon delimiter",
			input:   []byte("customer_name;territory\n\"Acme; Ltd\";Yangon\n"),
			opts:    CSVOptions{Delimiter: ";"},
			columns: []string{"customer_name", "territory"},
			first:   "Acme; Ltd",
		},
		{
			name: "windows-1251",
			input: func() []byte {
				b, err := charmap.Windows1251.NewEncoder().Bytes([]byte("customer_name;territory\nТест;Москва\n"))
				if err != nil {
					panic(err)
				}
				return b
			}(),
			opts:    CSVOptions{Encoding: "windows-1251", Delimiter: ";"},
			columns: []string{"customer_name", "territory"},
			first:   "Тест",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parsed, err := NewParser().ParseCSV(bytes.NewReader(tt.input), tt.opts)
			require.NoError(t, err)
			assert.Equal(t, tt.columns, parsed.Columns)
			require.Equal(t, 1, parsed.RowCount)
			v, _ := parsed.Rows[0].Get("customer_name")
			assert.Equal(t, tt.first, v.Text())
		})
	}
}

func TestParseCSVRejectsBadOptions(t *testing.T) {
	_, err := NewParser().ParseCSV(bytes.NewReader([]byte("a\n1\n")), CSVOptions{Delimiter: "|"})
	var pe *ParseError
	require.True(t, errors.As(err, &pe))
	assert.Contains(t, pe.Reason, "delimiter")
}

func TestParseFileDispatchesOnExtension(t *testing.T) {
	p := NewParser()

	parsed, err := p.ParseFile("customers.CSV", []byte("customer_name\nAcme\n"), CSVOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, parsed.RowCount)

	parsed, err = p.ParseFile("customers.xlsx", workbook(t, [][]string{{"customer_name"}, {"Acme"}}), CSVOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, parsed.RowCount)
}

func TestTemplateRoundTrip(t *testing.T) {
	for _, tpl := range Templates() {
		t.Run(string(tpl.Entity), func(t *testing.T) {
			content, err := tpl.Build()
			require.NoError(t, err)

			f, err := excelize.OpenReader(bytes.NewReader(content))
			require.NoError(t, err)
			defer f.Close()
			assert.Equal(t, []string{string(tpl.Entity)}, f.GetSheetList())

			parsed, err := NewParser().Parse(content)
			require.NoError(t, err)
			assert.Equal(t, tpl.Columns, parsed.Columns)
			assert.Equal(t, len(tpl.Sample), parsed.RowCount)
		})
	}
}

func TestGenerateTemplateWritesExactHeaders(t *testing.T) {
	sample := row.FromPairs("qty", 5, "customer", "CUST-9")
	content, err := GenerateTemplate("Orders", []string{"customer", "qty"}, []*row.Row{sample})
	require.NoError(t, err)

	parsed, err := NewParser().Parse(content)
	require.NoError(t, err)
	assert.Equal(t, []string{"customer", "qty"}, parsed.Columns)
	require.Equal(t, 1, parsed.RowCount)
	v, _ := parsed.Rows[0].Get("qty")
	assert.Equal(t, "5", v.Text())
}

package ingest

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/EthanVT97/rangoon-version1.0.0.1/internal/entity"
	"github.com/EthanVT97/rangoon-version1.0.0.1/internal/row"
)

// Template is the downloadable blank workbook for one entity type
type Template struct {
	Entity   entity.Type `json:"module"`
	FileName string      `json:"templateName"`
	Columns  []string    `json:"columns"`
	Sample   []*row.Row  `json:"sampleData"`
}

var templates = []Template{
	{
		Entity:   entity.Item,
		FileName: "Item_Template.xlsx",
		Columns:  []string{"item_code", "item_name", "item_group", "stock_uom", "description", "standard_rate", "opening_stock", "valuation_rate"},
		Sample: []*row.Row{row.FromPairs(
			"item_code", "ITEM-001",
			"item_name", "Sample Product",
			"item_group", "Products",
			"stock_uom", "Nos",
			"description", "Sample product description",
			"standard_rate", 1000,
			"opening_stock", 10,
			"valuation_rate", 800,
		)},
	},
	{
		Entity:   entity.Customer,
		FileName: "Customer_Template.xlsx",
		Columns:  []string{"customer_name", "customer_type", "customer_group", "territory", "mobile_no", "email_id"},
		Sample: []*row.Row{row.FromPairs(
			"customer_name", "Sample Customer",
			"customer_type", "Company",
			"customer_group", "Commercial",
			"territory", "All Territories",
			"mobile_no", "+95912345678",
			"email_id", "customer@example.com",
		)},
	},
	{
		Entity:   entity.SalesOrder,
		FileName: "SalesOrder_Template.xlsx",
		Columns:  []string{"customer", "delivery_date", "item_code", "qty", "rate"},
		Sample: []*row.Row{row.FromPairs(
			"customer", "CUST-001",
			"delivery_date", "2025-10-31",
			"item_code", "ITEM-001",
			"qty", 5,
			"rate", 1000,
		)},
	},
	{
		Entity:   entity.SalesInvoice,
		FileName: "SalesInvoice_Template.xlsx",
		Columns:  []string{"customer", "posting_date", "item_code", "qty", "rate", "update_stock"},
		Sample: []*row.Row{row.FromPairs(
			"customer", "CUST-001",
			"posting_date", "2025-09-30",
			"item_code", "ITEM-001",
			"qty", 3,
			"rate", 1000,
			"update_stock", 1,
		)},
	},
	{
		Entity:   entity.PaymentEntry,
		FileName: "PaymentEntry_Template.xlsx",
		Columns:  []string{"payment_type", "party_type", "party", "paid_amount", "received_amount", "posting_date", "mode_of_payment"},
		Sample: []*row.Row{row.FromPairs(
			"payment_type", "Receive",
			"party_type", "Customer",
			"party", "CUST-001",
			"paid_amount", 5000,
			"received_amount", 5000,
			"posting_date", "2025-09-30",
			"mode_of_payment", "Cash",
		)},
	},
}

// Templates lists the templates of every supported entity type
func Templates() []Template {
	out := make([]Template, len(templates))
	copy(out, templates)
	return out
}

// TemplateFor returns the template of t
func TemplateFor(t entity.Type) (Template, bool) {
	for _, tpl := range templates {
		if tpl.Entity == t {
			return tpl, true
		}
	}
	return Template{}, false
}

// Build renders the template workbook. Required columns get a highlighted header.
func (t Template) Build() ([]byte, error) {
	required := make(map[string]bool)
	for _, f := range RequiredFields(t.Entity) {
		required[f] = true
	}
	return buildWorkbook(string(t.Entity), t.Columns, t.Sample, required)
}

// GenerateTemplate writes a single-sheet workbook whose first row is exactly
// columns, followed by the sample rows
func GenerateTemplate(sheet string, columns []string, samples []*row.Row) ([]byte, error) {
	return buildWorkbook(sheet, columns, samples, nil)
}

func buildWorkbook(sheet string, columns []string, samples []*row.Row, required map[string]bool) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("header style: %w", err)
	}
	requiredStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"C65911"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("required style: %w", err)
	}

	for i, col := range columns {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(sheet, cell, col); err != nil {
			return nil, err
		}
		style := headerStyle
		if required[col] {
			style = requiredStyle
		}
		if err := f.SetCellStyle(sheet, cell, cell, style); err != nil {
			return nil, err
		}
		colName, _ := excelize.ColumnNumberToName(i + 1)
		_ = f.SetColWidth(sheet, colName, colName, 20)
	}

	for r, sample := range samples {
		for i, col := range columns {
			v, ok := sample.Get(col)
			if !ok || v.IsNull() {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(i+1, r+2)
			if err != nil {
				return nil, err
			}
			if err := f.SetCellValue(sheet, cell, cellValue(v)); err != nil {
				return nil, err
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func cellValue(v row.Value) interface{} {
	switch v.Kind() {
	case row.KindNumber:
		n, _ := v.Num()
		return n
	case row.KindBool:
		b, _ := v.BoolVal()
		return b
	}
	return v.Text()
}

package ingest

import (
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/EthanVT97/rangoon-version1.0.0.1/internal/entity"
	"github.com/EthanVT97/rangoon-version1.0.0.1/internal/logging"
	"github.com/EthanVT97/rangoon-version1.0.0.1/internal/row"
)

// FieldMapping maps a set of accepted spreadsheet headers onto one canonical
// ERPNext field. Headers are tried in order; the first non-empty value wins.
type FieldMapping struct {
	Headers   []string
	Field     string
	Transform Transform
}

var mappings = map[entity.Type][]FieldMapping{
	entity.Item: {
		{Headers: []string{"Item Code", "item_code"}, Field: "item_code"},
		{Headers: []string{"Item Name", "item_name"}, Field: "item_name"},
		{Headers: []string{"Item Group", "item_group"}, Field: "item_group"},
		{Headers: []string{"Default Unit of Measure", "stock_uom", "Stock UOM"}, Field: "stock_uom"},
		{Headers: []string{"Description", "description"}, Field: "description"},
		{Headers: []string{"Standard Rate", "standard_rate", "Rate"}, Field: "standard_rate", Transform: FloatTransform},
		{Headers: []string{"Opening Stock", "opening_stock"}, Field: "opening_stock", Transform: IntTransform},
		{Headers: []string{"Valuation Rate", "valuation_rate"}, Field: "valuation_rate", Transform: FloatTransform},
		{Headers: []string{"Maintain Stock", "maintain_stock", "is_stock_item"}, Field: "is_stock_item", Transform: FlagTransform},
		{Headers: []string{"Default Warehouse (Item Defaults)", "default_warehouse"}, Field: "default_warehouse"},
		{Headers: []string{"Default Income Account (Item Defaults)", "income_account"}, Field: "income_account"},
	},
	entity.Customer: {
		{Headers: []string{"Customer Name", "customer_name"}, Field: "customer_name"},
		{Headers: []string{"Customer Type", "customer_type"}, Field: "customer_type"},
		{Headers: []string{"Customer Group", "customer_group"}, Field: "customer_group"},
		{Headers: []string{"Territory", "territory"}, Field: "territory"},
		{Headers: []string{"Mobile No", "mobile_no", "Mobile"}, Field: "mobile_no"},
		{Headers: []string{"Email Id", "email_id", "Email"}, Field: "email_id"},
	},
	entity.SalesOrder: {
		{Headers: []string{"Customer", "customer"}, Field: "customer"},
		{Headers: []string{"Delivery Date", "delivery_date"}, Field: "delivery_date", Transform: DateTransform},
		{Headers: []string{"Item Code", "item_code", "Item Code (Items)"}, Field: "item_code"},
		{Headers: []string{"Qty", "qty", "Quantity", "Quantity (Items)"}, Field: "qty", Transform: FloatTransform},
		{Headers: []string{"Rate", "rate", "Rate (Items)"}, Field: "rate", Transform: FloatTransform},
	},
	entity.SalesInvoice: {
		{Headers: []string{"Customer", "customer"}, Field: "customer"},
		{Headers: []string{"Customer Name", "customer_name"}, Field: "customer_name"},
		{Headers: []string{"ID", "id"}, Field: "id"},
		{Headers: []string{"Company", "company"}, Field: "company"},
		{Headers: []string{"Date", "posting_date", "Posting Date"}, Field: "posting_date", Transform: DateTransform},
		{Headers: []string{"Payment Due Date", "due_date", "Due Date"}, Field: "due_date", Transform: DateTransform},
		{Headers: []string{"Currency", "currency"}, Field: "currency"},
		{Headers: []string{"Exchange Rate", "exchange_rate"}, Field: "exchange_rate", Transform: FloatTransform},
		{Headers: []string{"Cost Center (Items)", "cost_center"}, Field: "cost_center"},
		{Headers: []string{"Item Name (Items)", "Item Code", "item_code"}, Field: "item_code"},
		{Headers: []string{"Quantity (Items)", "Qty", "qty", "Quantity"}, Field: "qty", Transform: FloatTransform},
		{Headers: []string{"Rate (Items)", "Rate", "rate"}, Field: "rate", Transform: FloatTransform},
		{Headers: []string{"Income Account (Items)", "income_account"}, Field: "income_account"},
		{Headers: []string{"Room", "room"}, Field: "room", Transform: FloatTransform},
		{Headers: []string{"Confirmation", "confirmation"}, Field: "confirmation", Transform: FloatTransform},
		{Headers: []string{"Update Stock", "update_stock"}, Field: "update_stock", Transform: FlagTransform},
	},
	entity.PaymentEntry: {
		{Headers: []string{"Payment Type", "payment_type"}, Field: "payment_type"},
		{Headers: []string{"Party Type", "party_type"}, Field: "party_type"},
		{Headers: []string{"Party", "party"}, Field: "party"},
		{Headers: []string{"Posting Date", "posting_date", "Date"}, Field: "posting_date", Transform: DateTransform},
		{Headers: []string{"Account Paid From", "paid_from"}, Field: "paid_from"},
		{Headers: []string{"Account Paid To", "paid_to"}, Field: "paid_to"},
		{Headers: []string{"Paid Amount", "paid_amount"}, Field: "paid_amount", Transform: FloatTransform},
		{Headers: []string{"Received Amount", "received_amount"}, Field: "received_amount", Transform: FloatTransform},
		{Headers: []string{"Name (Payment References)", "reference_name"}, Field: "reference_name"},
		{Headers: []string{"Type (Payment References)", "reference_type"}, Field: "reference_type"},
		{Headers: []string{"Allocated (Payment References)", "allocated_amount"}, Field: "allocated_amount", Transform: FloatTransform},
		{Headers: []string{"Mode of Payment", "mode_of_payment"}, Field: "mode_of_payment"},
	},
}

// Mapper renames spreadsheet headers (ERPNext export labels or template
// field names) to the canonical fields the validator and client expect.
type Mapper struct {
	log logrus.FieldLogger
}

// NewMapper creates a mapper. A nil logger discards warnings.
func NewMapper(log logrus.FieldLogger) *Mapper {
	if log == nil {
		log = logging.Discard()
	}
	return &Mapper{log: log}
}

// Lookup returns the rule that accepts header, matching case-insensitively
// and ignoring a trailing " *" marker
func (m *Mapper) Lookup(t entity.Type, header string) (FieldMapping, bool) {
	header = cleanHeader(header)
	for _, rule := range mappings[t] {
		for _, h := range rule.Headers {
			if strings.EqualFold(h, header) {
				return rule, true
			}
		}
	}
	return FieldMapping{}, false
}

// Unmapped lists the columns that no rule of t consumes. Mapping drops
// them, so callers report them to the user. Unsupported types return nil.
func (m *Mapper) Unmapped(t entity.Type, columns []string) []string {
	if _, ok := mappings[t]; !ok {
		return nil
	}
	var out []string
	for _, col := range columns {
		if cleanHeader(col) == "" {
			continue
		}
		if _, ok := m.Lookup(t, col); !ok {
			out = append(out, col)
		}
	}
	return out
}

// MapRow builds the canonical row for t. Fields without input are absent.
// An unsupported type returns raw unchanged.
func (m *Mapper) MapRow(t entity.Type, raw *row.Row) *row.Row {
	rules, ok := mappings[t]
	if !ok {
		m.log.WithField("module", string(t)).Warn("no field mappings defined for module")
		return raw
	}

	out := row.New()
	for _, rule := range rules {
		v, found := pick(raw, rule.Headers)
		if !found {
			continue
		}
		if rule.Transform != nil {
			v, found = rule.Transform(v)
			if !found {
				continue
			}
		}
		out.Set(rule.Field, v)
	}
	return out
}

// MapRows maps every row
func (m *Mapper) MapRows(t entity.Type, rows []*row.Row) []*row.Row {
	if _, ok := mappings[t]; !ok {
		m.log.WithField("module", string(t)).Warn("no field mappings defined for module")
		return rows
	}
	out := make([]*row.Row, len(rows))
	for i, r := range rows {
		out[i] = m.MapRow(t, r)
	}
	return out
}

// pick returns the first non-empty value among headers. Each header is tried
// by exact key first, then case-insensitively with a trailing " *" marker
// (as written by the template generator) ignored.
func pick(raw *row.Row, headers []string) (row.Value, bool) {
	for _, h := range headers {
		if v, ok := raw.Get(h); ok && !v.IsEmpty() {
			return v, true
		}
		for _, key := range raw.Keys() {
			if key == h || !strings.EqualFold(cleanHeader(key), h) {
				continue
			}
			if v, _ := raw.Get(key); !v.IsEmpty() {
				return v, true
			}
		}
	}
	return row.Value{}, false
}

func cleanHeader(h string) string {
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(h), "*"))
}

package ingest

import (
	"regexp"

	"github.com/EthanVT97/rangoon-version1.0.0.1/internal/entity"
)

// FieldType is the value class a schema field expects
type FieldType string

const (
	TypeString FieldType = "string"
	TypeNumber FieldType = "number"
	TypeDate   FieldType = "date"
	TypeEmail  FieldType = "email"
)

// FieldRule describes one canonical field of an entity schema.
// MinLength, MaxLength and Pattern apply to string values only.
type FieldRule struct {
	Field     string
	Required  bool
	Type      FieldType
	MinLength int
	MaxLength int
	Pattern   *regexp.Regexp
}

var schemas = map[entity.Type][]FieldRule{
	entity.Item: {
		{Field: "item_code", Required: true, Type: TypeString, MinLength: 1},
		{Field: "item_name", Required: true, Type: TypeString, MinLength: 1},
		{Field: "item_group", Required: true, Type: TypeString},
		{Field: "stock_uom", Required: true, Type: TypeString},
		{Field: "standard_rate", Type: TypeNumber},
		{Field: "opening_stock", Type: TypeNumber},
		{Field: "valuation_rate", Type: TypeNumber},
	},
	entity.Customer: {
		{Field: "customer_name", Required: true, Type: TypeString, MinLength: 1},
		{Field: "customer_type", Required: true, Type: TypeString},
		{Field: "customer_group", Required: true, Type: TypeString},
		{Field: "territory", Required: true, Type: TypeString},
		{Field: "email_id", Type: TypeEmail},
		{Field: "mobile_no", Type: TypeString},
	},
	entity.SalesOrder: {
		{Field: "customer", Required: true, Type: TypeString},
		{Field: "delivery_date", Required: true, Type: TypeDate},
		{Field: "item_code", Required: true, Type: TypeString},
		{Field: "qty", Required: true, Type: TypeNumber},
		{Field: "rate", Required: true, Type: TypeNumber},
	},
	entity.SalesInvoice: {
		{Field: "customer", Required: true, Type: TypeString},
		{Field: "due_date", Type: TypeDate},
		{Field: "item_code", Required: true, Type: TypeString},
		{Field: "qty", Required: true, Type: TypeNumber},
		{Field: "rate", Required: true, Type: TypeNumber},
	},
	entity.PaymentEntry: {
		{Field: "payment_type", Required: true, Type: TypeString},
		{Field: "party_type", Required: true, Type: TypeString},
		{Field: "party", Required: true, Type: TypeString},
		{Field: "paid_amount", Required: true, Type: TypeNumber},
		{Field: "received_amount", Required: true, Type: TypeNumber},
	},
}

// Schema returns the field rules for t in declared order
func Schema(t entity.Type) ([]FieldRule, bool) {
	rules, ok := schemas[t]
	if !ok {
		return nil, false
	}
	out := make([]FieldRule, len(rules))
	copy(out, rules)
	return out, true
}

// RequiredFields lists the required canonical fields of t
func RequiredFields(t entity.Type) []string {
	var out []string
	for _, rule := range schemas[t] {
		if rule.Required {
			out = append(out, rule.Field)
		}
	}
	return out
}

// Package entity defines the ERPNext document types the importer can create.
package entity

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknown is returned for entity types outside the supported set
var ErrUnknown = errors.New("unsupported module")

// Type is an ERPNext doctype name, e.g. "Sales Order"
type Type string

const (
	Item         Type = "Item"
	Customer     Type = "Customer"
	SalesOrder   Type = "Sales Order"
	SalesInvoice Type = "Sales Invoice"
	PaymentEntry Type = "Payment Entry"
)

var all = []Type{Item, Customer, SalesOrder, SalesInvoice, PaymentEntry}

// All returns the supported types in display order
func All() []Type {
	out := make([]Type, len(all))
	copy(out, all)
	return out
}

// Parse resolves a module name. Matching ignores case, surrounding spaces and
// accepts snake or kebab case ("sales_order").
func Parse(s string) (Type, error) {
	norm := normalize(s)
	for _, t := range all {
		if normalize(string(t)) == norm {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrUnknown, s)
}

// Valid reports whether t is one of the supported types
func (t Type) Valid() bool {
	for _, x := range all {
		if x == t {
			return true
		}
	}
	return false
}

// Endpoint returns the REST resource path for creating documents of type t
func (t Type) Endpoint() string {
	return "/api/resource/" + string(t)
}

// Slug returns a file-name friendly form, e.g. "SalesOrder"
func (t Type) Slug() string {
	return strings.ReplaceAll(string(t), " ", "")
}

func normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.NewReplacer("_", "", "-", "", " ", "").Replace(s)
	return s
}

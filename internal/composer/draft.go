package composer

import (
	"fmt"
	"procurement-service/internal/refdata"
	"strconv"
)

// LineItem is one editable row of a draft. Numeric fields stay strings while
// the user types; Normalize converts them for submission.
type LineItem struct {
	ProductID   string `json:"product_id"`
	Quantity    string `json:"quantity"`
	UnitCost    string `json:"unit_cost"`
	ProductName string `json:"product_name,omitempty"`
}

// complete reports whether all three input fields are filled in
func (li LineItem) complete() bool {
	return li.ProductID != "" && li.Quantity != "" && li.UnitCost != ""
}

// Draft is the in-progress purchase order. Items is never empty.
type Draft struct {
	SupplierID       string     `json:"supplier_id"`
	ExpectedDelivery string     `json:"expected_delivery"`
	Note             string     `json:"note"`
	Items            []LineItem `json:"items"`
}

// NewDraft returns an empty draft with one blank line item
func NewDraft() Draft {
	return Draft{Items: []LineItem{{}}}
}

// Clone returns a deep copy of the draft
func (d Draft) Clone() Draft {
	items := make([]LineItem, len(d.Items))
	copy(items, d.Items)
	d.Items = items
	return d
}

// Field names an editable line item field, using the form control names
type Field string

const (
	FieldProduct  Field = "product_id"
	FieldQuantity Field = "quantity"
	FieldUnitCost Field = "unit_cost"
)

// ParseField validates a field name coming from a client
func ParseField(s string) (Field, error) {
	switch f := Field(s); f {
	case FieldProduct, FieldQuantity, FieldUnitCost:
		return f, nil
	default:
		return "", fmt.Errorf("unknown line item field %q", s)
	}
}

// onProductSelected sets the product and, when the product is known, defaults
// the unit cost and display name from the catalog. It is the only transition
// that writes UnitCost besides onUnitCostEdited.
func onProductSelected(item LineItem, value string, catalog *refdata.Catalog) LineItem {
	item.ProductID = value
	if p, ok := catalog.ProductByValue(value); ok {
		item.UnitCost = strconv.FormatFloat(p.UnitCost, 'f', -1, 64)
		item.ProductName = p.Name
		return item
	}
	item.ProductName = ""
	return item
}

func onQuantityEdited(item LineItem, value string) LineItem {
	item.Quantity = value
	return item
}

func onUnitCostEdited(item LineItem, value string) LineItem {
	item.UnitCost = value
	return item
}

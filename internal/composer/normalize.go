package composer

import (
	"errors"
	"procurement-service/internal/model"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Validation messages shown in place of the form
const (
	MsgSelectSupplier   = "Please select a supplier"
	MsgSetDelivery      = "Please set an expected delivery date"
	MsgInvalidDelivery  = "Please enter the expected delivery date as YYYY-MM-DD"
	MsgInvalidLineItems = "Please fill in all item details with valid quantities and costs"
)

const dateLayout = "2006-01-02"

// ErrValidation matches every *ValidationError
var ErrValidation = errors.New("purchase order validation failed")

// ValidationError names the first rule a draft violates
type ValidationError struct {
	Field   string
	Index   int // line item position, -1 for order-level fields
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Normalize validates the draft and builds the create request. Rules are
// checked in order and the first violation is returned: supplier, expected
// delivery date, then every line item.
func Normalize(d Draft) (model.CreatePurchaseOrderRequest, error) {
	supplierID, err := strconv.Atoi(strings.TrimSpace(d.SupplierID))
	if err != nil {
		return model.CreatePurchaseOrderRequest{}, &ValidationError{Field: "supplier_id", Index: -1, Message: MsgSelectSupplier}
	}

	delivery := strings.TrimSpace(d.ExpectedDelivery)
	if delivery == "" {
		return model.CreatePurchaseOrderRequest{}, &ValidationError{Field: "expected_delivery", Index: -1, Message: MsgSetDelivery}
	}
	deliveryDate, err := time.Parse(dateLayout, delivery)
	if err != nil {
		return model.CreatePurchaseOrderRequest{}, &ValidationError{Field: "expected_delivery", Index: -1, Message: MsgInvalidDelivery}
	}

	items := make([]model.CreatePurchaseOrderItem, 0, len(d.Items))
	for i, li := range d.Items {
		item, ok := normalizeLineItem(li)
		if !ok {
			return model.CreatePurchaseOrderRequest{}, &ValidationError{Field: "items", Index: i, Message: MsgInvalidLineItems}
		}
		items = append(items, item)
	}
	if len(items) == 0 {
		return model.CreatePurchaseOrderRequest{}, &ValidationError{Field: "items", Index: 0, Message: MsgInvalidLineItems}
	}

	return model.CreatePurchaseOrderRequest{
		SupplierID:       supplierID,
		ExpectedDelivery: deliveryDate.Format(dateLayout),
		Notes:            d.Note,
		Items:            items,
	}, nil
}

func normalizeLineItem(li LineItem) (model.CreatePurchaseOrderItem, bool) {
	productID, err := strconv.Atoi(strings.TrimSpace(li.ProductID))
	if err != nil {
		return model.CreatePurchaseOrderItem{}, false
	}
	quantity, ok := parseQuantity(li.Quantity)
	if !ok {
		return model.CreatePurchaseOrderItem{}, false
	}
	unitCost, ok := parseUnitCost(li.UnitCost)
	if !ok {
		return model.CreatePurchaseOrderItem{}, false
	}
	return model.CreatePurchaseOrderItem{
		ProductID: productID,
		Quantity:  quantity,
		UnitCost:  unitCost.InexactFloat64(),
	}, true
}

// parseQuantity accepts a strictly positive integer
func parseQuantity(s string) (int, bool) {
	q, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || q <= 0 {
		return 0, false
	}
	return q, true
}

// parseUnitCost accepts a strictly positive decimal
func parseUnitCost(s string) (decimal.Decimal, bool) {
	c, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil || !c.IsPositive() {
		return decimal.Zero, false
	}
	return c, true
}

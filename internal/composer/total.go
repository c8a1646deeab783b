package composer

import "github.com/shopspring/decimal"

// ComputeTotal sums quantity times unit cost over the items. Items whose quantity
// or unit cost does not parse as a positive number contribute zero.
func ComputeTotal(items []LineItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		q, ok := parseQuantity(item.Quantity)
		if !ok {
			continue
		}
		c, ok := parseUnitCost(item.UnitCost)
		if !ok {
			continue
		}
		total = total.Add(decimal.NewFromInt(int64(q)).Mul(c))
	}
	return total
}

// FormatTotal renders a total with two decimals
func FormatTotal(total decimal.Decimal) string {
	return total.StringFixed(2)
}

package model

// Supplier is the supplier reference data served by the inventory API
type Supplier struct {
	SupplierID int    `json:"supplier_id"`
	Name       string `json:"name"`
	Email      string `json:"email,omitempty"`
	Phone      string `json:"phone,omitempty"`
}

// Product is the product reference data served by the inventory API
type Product struct {
	ProductID    int     `json:"product_id"`
	Name         string  `json:"name"`
	SKU          string  `json:"sku"`
	UnitCost     float64 `json:"unit_cost"`
	ReorderLevel int     `json:"reorder_level"`
}

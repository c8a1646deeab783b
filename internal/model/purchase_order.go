package model

// Purchase order statuses known to the inventory API. Other values may appear
// and are rendered generically.
const (
	StatusPending   = "pending"
	StatusApproved  = "approved"
	StatusShipped   = "shipped"
	StatusReceived  = "received"
	StatusCancelled = "cancelled"
)

// PurchaseOrder is the listing form of a server-owned purchase order
type PurchaseOrder struct {
	POID             int      `json:"po_id"`
	SupplierID       int      `json:"supplier_id"`
	SupplierName     string   `json:"supplier_name,omitempty"`
	OrderDate        string   `json:"order_date"`
	ExpectedDelivery *string  `json:"expected_delivery,omitempty"`
	Status           string   `json:"status"`
	Notes            *string  `json:"notes,omitempty"`
	ItemCount        *int     `json:"item_count,omitempty"`
	TotalValue       *float64 `json:"total_value,omitempty"`
}

// StatusHistoryEntry is one recorded status transition of a purchase order.
// A nil OldStatus means the order was just created; a nil ChangedBy means the
// change was system-initiated.
type StatusHistoryEntry struct {
	HistoryID     int     `json:"history_id"`
	POID          int     `json:"po_id"`
	OldStatus     *string `json:"old_status"`
	NewStatus     string  `json:"new_status"`
	ChangedBy     *int    `json:"changed_by"`
	ChangedByName *string `json:"changed_by_name"`
	ChangedAt     string  `json:"changed_at"`
	Notes         *string `json:"notes"`
}

// CreatePurchaseOrderRequest is the body of POST /purchase-orders.
// The API names the free-text field "notes".
type CreatePurchaseOrderRequest struct {
	SupplierID       int                       `json:"supplier_id"`
	ExpectedDelivery string                    `json:"expected_delivery"`
	Notes            string                    `json:"notes"`
	Items            []CreatePurchaseOrderItem `json:"items"`
}

// CreatePurchaseOrderItem is one normalized line of a create request
type CreatePurchaseOrderItem struct {
	ProductID int     `json:"product_id"`
	Quantity  int     `json:"quantity"`
	UnitCost  float64 `json:"unit_cost"`
}

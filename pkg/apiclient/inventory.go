package apiclient

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"procurement-service/internal/model"
	"strconv"
)

// ListSuppliers fetches GET /suppliers
func (c *Client) ListSuppliers(ctx context.Context) ([]model.Supplier, error) {
	var suppliers []model.Supplier
	if err := c.do(ctx, "list_suppliers", http.MethodGet, "/suppliers", nil, nil, &suppliers); err != nil {
		return nil, err
	}
	if suppliers == nil {
		suppliers = []model.Supplier{}
	}
	return suppliers, nil
}

// ListProducts fetches GET /products
func (c *Client) ListProducts(ctx context.Context) ([]model.Product, error) {
	var products []model.Product
	if err := c.do(ctx, "list_products", http.MethodGet, "/products", nil, nil, &products); err != nil {
		return nil, err
	}
	if products == nil {
		products = []model.Product{}
	}
	return products, nil
}

// ListPurchaseOrders fetches GET /purchase-orders?limit=N. A non-positive limit
// omits the parameter.
func (c *Client) ListPurchaseOrders(ctx context.Context, limit int) ([]model.PurchaseOrder, error) {
	query := url.Values{}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}

	var orders []model.PurchaseOrder
	if err := c.do(ctx, "list_purchase_orders", http.MethodGet, "/purchase-orders", query, nil, &orders); err != nil {
		return nil, err
	}
	if orders == nil {
		orders = []model.PurchaseOrder{}
	}
	return orders, nil
}

// CreatePurchaseOrder posts one normalized order to POST /purchase-orders
func (c *Client) CreatePurchaseOrder(ctx context.Context, req model.CreatePurchaseOrderRequest) (*model.PurchaseOrder, error) {
	var created model.PurchaseOrder
	if err := c.do(ctx, "create_purchase_order", http.MethodPost, "/purchase-orders", nil, req, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// GetPurchaseOrderHistory fetches GET /purchase-orders/{id}/history
func (c *Client) GetPurchaseOrderHistory(ctx context.Context, poID int) ([]model.StatusHistoryEntry, error) {
	path := fmt.Sprintf("/purchase-orders/%d/history", poID)

	var entries []model.StatusHistoryEntry
	if err := c.do(ctx, "get_purchase_order_history", http.MethodGet, path, nil, nil, &entries); err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []model.StatusHistoryEntry{}
	}
	return entries, nil
}

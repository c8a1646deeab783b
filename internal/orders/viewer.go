package orders

import (
	"context"
	"fmt"
	"procurement-service/internal/model"
	"procurement-service/pkg/logger"
	"procurement-service/prometheus"
	"strconv"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"go.uber.org/zap"
)

// Source is the part of the inventory API the viewer reads from
type Source interface {
	ListPurchaseOrders(ctx context.Context, limit int) ([]model.PurchaseOrder, error)
	GetPurchaseOrderHistory(ctx context.Context, poID int) ([]model.StatusHistoryEntry, error)
}

// Style buckets for status badges
const (
	StylePending   = "pending"
	StyleReceived  = "received"
	StyleCancelled = "cancelled"
	StyleOther     = "other"
)

const (
	labelCreated = "Created"
	labelSystem  = "System"
	labelNoNote  = "-"
)

// Row is one rendered line of the recent orders table
type Row struct {
	POID        int    `json:"po_id"`
	Supplier    string `json:"supplier"`
	OrderDate   string `json:"order_date"`
	Status      string `json:"status"`
	StatusLabel string `json:"status_label"`
	StatusStyle string `json:"status_style"`
}

// HistoryRow is one rendered status transition
type HistoryRow struct {
	HistoryID  int    `json:"history_id"`
	From       string `json:"from"`
	To         string `json:"to"`
	ToStyle    string `json:"to_style"`
	ChangedBy  string `json:"changed_by"`
	ChangedAt  string `json:"changed_at"`
	Note       string `json:"note"`
	IsCreation bool   `json:"is_creation"`
	IsSystem   bool   `json:"is_system"`
}

// History is the open detail view of one order
type History struct {
	POID int          `json:"po_id"`
	Rows []HistoryRow `json:"rows"`
}

// Viewer keeps the recent orders list and the currently open history view
type Viewer struct {
	mu sync.Mutex

	source Source
	limit  int

	orders  []model.PurchaseOrder
	history *History
}

// NewViewer creates a viewer that lists up to limit recent orders
func NewViewer(source Source, limit int) *Viewer {
	return &Viewer{source: source, limit: limit}
}

// Refresh re-fetches the recent orders list. A failed fetch leaves the list
// empty and is not reported to the caller.
func (v *Viewer) Refresh(ctx context.Context) {
	log := logger.FromStdContext(ctx)

	orders, err := v.source.ListPurchaseOrders(ctx, v.limit)
	if err != nil {
		prometheus.RecordOrderListDegraded()
		log.Warn("Could not load recent purchase orders, showing none", zap.Error(err))
		orders = []model.PurchaseOrder{}
	}

	v.mu.Lock()
	v.orders = orders
	v.mu.Unlock()

	if err == nil {
		log.Debug("Recent purchase orders loaded", zap.Int("count", len(orders)))
	}
}

// Orders returns the raw recent orders in the order the API sent them
func (v *Viewer) Orders() []model.PurchaseOrder {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]model.PurchaseOrder, len(v.orders))
	copy(out, v.orders)
	return out
}

// Rows renders the recent orders table
func (v *Viewer) Rows() []Row {
	v.mu.Lock()
	defer v.mu.Unlock()

	rows := make([]Row, 0, len(v.orders))
	for _, o := range v.orders {
		rows = append(rows, Row{
			POID:        o.POID,
			Supplier:    supplierLabel(o),
			OrderDate:   o.OrderDate,
			Status:      o.Status,
			StatusLabel: StatusLabel(o.Status),
			StatusStyle: StatusStyle(o.Status),
		})
	}
	return rows
}

// ViewHistory fetches the status history of one order and opens it. On
// failure the previous view state is left untouched.
func (v *Viewer) ViewHistory(ctx context.Context, poID int) (*History, error) {
	log := logger.FromStdContext(ctx).With(zap.Int("po_id", poID))

	entries, err := v.source.GetPurchaseOrderHistory(ctx, poID)
	if err != nil {
		prometheus.RecordHistoryView("error")
		log.Error("Failed to load purchase order history", zap.Error(err))
		return nil, fmt.Errorf("get history of purchase order %d: %w", poID, err)
	}

	history := &History{POID: poID, Rows: make([]HistoryRow, 0, len(entries))}
	for _, e := range entries {
		history.Rows = append(history.Rows, historyRow(e))
	}

	v.mu.Lock()
	v.history = history
	v.mu.Unlock()

	prometheus.RecordHistoryView("success")
	log.Info("Purchase order history opened", zap.Int("entries", len(entries)))
	return cloneHistory(history), nil
}

// OpenHistory returns the open history view, or nil when none is open
func (v *Viewer) OpenHistory() *History {
	v.mu.Lock()
	defer v.mu.Unlock()
	return cloneHistory(v.history)
}

// CloseHistory discards the fetched history
func (v *Viewer) CloseHistory() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.history = nil
}

// StatusLabel upper-cases the first letter of a raw status
func StatusLabel(status string) string {
	if status == "" {
		return ""
	}
	r, size := utf8.DecodeRuneInString(status)
	return string(unicode.ToUpper(r)) + status[size:]
}

// StatusStyle maps a raw status to its badge bucket
func StatusStyle(status string) string {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case model.StatusPending:
		return StylePending
	case model.StatusReceived:
		return StyleReceived
	case model.StatusCancelled:
		return StyleCancelled
	default:
		return StyleOther
	}
}

func supplierLabel(o model.PurchaseOrder) string {
	if o.SupplierName != "" {
		return o.SupplierName
	}
	return "Supplier #" + strconv.Itoa(o.SupplierID)
}

func historyRow(e model.StatusHistoryEntry) HistoryRow {
	row := HistoryRow{
		HistoryID: e.HistoryID,
		From:      labelCreated,
		To:        e.NewStatus,
		ToStyle:   StatusStyle(e.NewStatus),
		ChangedBy: labelSystem,
		ChangedAt: e.ChangedAt,
		Note:      labelNoNote,
	}

	if e.OldStatus != nil {
		row.From = *e.OldStatus
	} else {
		row.IsCreation = true
	}

	if e.ChangedByName != nil && *e.ChangedByName != "" {
		row.ChangedBy = *e.ChangedByName
	} else {
		row.IsSystem = true
	}

	if e.Notes != nil && *e.Notes != "" {
		row.Note = *e.Notes
	}
	return row
}

func cloneHistory(h *History) *History {
	if h == nil {
		return nil
	}
	rows := make([]HistoryRow, len(h.Rows))
	copy(rows, h.Rows)
	return &History{POID: h.POID, Rows: rows}
}

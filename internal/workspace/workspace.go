package workspace

import (
	"context"
	"errors"
	"procurement-service/internal/composer"
	"procurement-service/internal/model"
	"procurement-service/internal/orders"
	"procurement-service/internal/refdata"
	"procurement-service/pkg/logger"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// MsgHistoryFailed is the page banner shown when a history fetch fails
const MsgHistoryFailed = "Failed to load purchase order history."

// ErrFormUnavailable is returned by Submit while reference data is missing
var ErrFormUnavailable = errors.New("order form unavailable until suppliers and products are loaded")

// API is everything a workspace needs from the inventory service
type API interface {
	refdata.Source
	composer.OrderCreator
	orders.Source
}

// Options configures a workspace
type Options struct {
	RecentOrdersLimit int
	BannerTTL         time.Duration
	Now               func() time.Time
}

// Workspace is the purchase order page state of one browser session
type Workspace struct {
	loader   *refdata.Loader
	composer *composer.Composer
	viewer   *orders.Viewer

	// loadMu serializes reference loads
	loadMu sync.Mutex

	mu         sync.Mutex
	loaded     bool
	catalog    *refdata.Catalog
	loadErr    string
	historyErr string
	loadedAt   time.Time
	now        func() time.Time
}

// New wires a composer, a viewer and a reference loader over one API
func New(api API, opts Options) *Workspace {
	if opts.Now == nil {
		opts.Now = time.Now
	}

	w := &Workspace{
		loader: refdata.NewLoader(api),
		viewer: orders.NewViewer(api, opts.RecentOrdersLimit),
		now:    opts.Now,
	}
	w.composer = composer.New(api, composer.Options{
		BannerTTL: opts.BannerTTL,
		Now:       opts.Now,
		// the order already exists upstream, so the list refresh outlives the request
		OnSubmitted: func(ctx context.Context, _ *model.PurchaseOrder) {
			w.viewer.Refresh(context.WithoutCancel(ctx))
		},
	})
	return w
}

// Composer exposes the draft editor
func (w *Workspace) Composer() *composer.Composer {
	return w.composer
}

// Viewer exposes the recent orders and history view
func (w *Workspace) Viewer() *orders.Viewer {
	return w.viewer
}

// EnsureLoaded runs the first Load of the workspace. Later calls do nothing,
// including after a failed load; Reload retries explicitly.
func (w *Workspace) EnsureLoaded(ctx context.Context) error {
	w.loadMu.Lock()
	defer w.loadMu.Unlock()

	w.mu.Lock()
	loaded := w.loaded
	w.mu.Unlock()
	if loaded {
		return nil
	}
	return w.loadLocked(ctx)
}

// Reload re-fetches reference data and recent orders
func (w *Workspace) Reload(ctx context.Context) error {
	w.loadMu.Lock()
	defer w.loadMu.Unlock()
	return w.loadLocked(ctx)
}

// loadLocked fetches reference data and recent orders concurrently and waits
// for both. Only the reference load can fail the page.
func (w *Workspace) loadLocked(ctx context.Context) error {
	log := logger.FromStdContext(ctx)

	var (
		g       errgroup.Group
		catalog *refdata.Catalog
	)
	g.Go(func() error {
		var err error
		catalog, err = w.loader.Load(ctx)
		return err
	})
	g.Go(func() error {
		w.viewer.Refresh(ctx)
		return nil
	})
	err := g.Wait()

	w.mu.Lock()
	w.loaded = true
	w.loadedAt = w.now()
	w.historyErr = ""
	if err != nil {
		w.catalog = nil
		w.loadErr = loadMessage(err)
	} else {
		w.catalog = catalog
		w.loadErr = ""
	}
	w.mu.Unlock()

	w.composer.SetCatalog(catalog)

	if err != nil {
		log.Warn("Purchase order page loaded without reference data", zap.Error(err))
		return err
	}
	log.Info("Purchase order page loaded", zap.String("summary", catalog.Summary()))
	return nil
}

// Ready reports whether the order form can be used
func (w *Workspace) Ready() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.catalog != nil
}

// Submit sends the draft once the form is ready
func (w *Workspace) Submit(ctx context.Context) (*model.PurchaseOrder, error) {
	if !w.Ready() {
		return nil, ErrFormUnavailable
	}
	return w.composer.Submit(ctx)
}

// ViewHistory opens the status history of one order. A failure sets the page
// banner and leaves the view closed.
func (w *Workspace) ViewHistory(ctx context.Context, poID int) (*orders.History, error) {
	h, err := w.viewer.ViewHistory(ctx, poID)

	w.mu.Lock()
	defer w.mu.Unlock()
	if err != nil {
		w.historyErr = MsgHistoryFailed
		return nil, err
	}
	w.historyErr = ""
	return h, nil
}

// CloseHistory closes the history view
func (w *Workspace) CloseHistory() {
	w.viewer.CloseHistory()
}

// View is the complete rendering state of the purchase order page
type View struct {
	Loaded       bool             `json:"loaded"`
	Ready        bool             `json:"ready"`
	Error        string           `json:"error,omitempty"`
	Info         string           `json:"info,omitempty"`
	LoadedAt     *time.Time       `json:"loaded_at,omitempty"`
	Suppliers    []model.Supplier `json:"suppliers"`
	Products     []model.Product  `json:"products"`
	Composer     composer.View    `json:"composer"`
	RecentOrders []orders.Row     `json:"recent_orders"`
	History      *orders.History  `json:"history,omitempty"`
}

// View snapshots the page
func (w *Workspace) View() View {
	w.mu.Lock()
	v := View{
		Loaded:    w.loaded,
		Ready:     w.catalog != nil,
		Suppliers: []model.Supplier{},
		Products:  []model.Product{},
	}
	switch {
	case w.loadErr != "":
		v.Error = w.loadErr
	case w.historyErr != "":
		v.Error = w.historyErr
	}
	if w.catalog != nil {
		v.Info = w.catalog.Summary()
		v.Suppliers = append(v.Suppliers, w.catalog.Suppliers...)
		v.Products = append(v.Products, w.catalog.Products...)
	}
	if w.loaded {
		at := w.loadedAt
		v.LoadedAt = &at
	}
	w.mu.Unlock()

	v.Composer = w.composer.View()
	v.RecentOrders = w.viewer.Rows()
	v.History = w.viewer.OpenHistory()
	return v
}

func loadMessage(err error) string {
	var loadErr *refdata.LoadError
	if errors.As(err, &loadErr) {
		return loadErr.Message()
	}
	return "Failed to load suppliers or products. " + err.Error()
}

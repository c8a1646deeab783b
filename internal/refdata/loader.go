package refdata

import (
	"context"
	"errors"
	"fmt"
	"procurement-service/internal/model"
	"procurement-service/pkg/apiclient"
	"procurement-service/pkg/logger"
	"procurement-service/prometheus"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Source is the part of the inventory API the loader needs
type Source interface {
	ListSuppliers(ctx context.Context) ([]model.Supplier, error)
	ListProducts(ctx context.Context) ([]model.Product, error)
}

// Catalog holds the supplier and product reference data in API order,
// plus lookup tables keyed by identifier.
type Catalog struct {
	Suppliers []model.Supplier
	Products  []model.Product

	suppliersByID map[int]model.Supplier
	productsByID  map[int]model.Product
}

// NewCatalog indexes the given collections
func NewCatalog(suppliers []model.Supplier, products []model.Product) *Catalog {
	c := &Catalog{
		Suppliers:     suppliers,
		Products:      products,
		suppliersByID: make(map[int]model.Supplier, len(suppliers)),
		productsByID:  make(map[int]model.Product, len(products)),
	}
	for _, s := range suppliers {
		c.suppliersByID[s.SupplierID] = s
	}
	for _, p := range products {
		c.productsByID[p.ProductID] = p
	}
	return c
}

// Supplier looks up a supplier by id
func (c *Catalog) Supplier(id int) (model.Supplier, bool) {
	if c == nil {
		return model.Supplier{}, false
	}
	s, ok := c.suppliersByID[id]
	return s, ok
}

// Product looks up a product by id
func (c *Catalog) Product(id int) (model.Product, bool) {
	if c == nil {
		return model.Product{}, false
	}
	p, ok := c.productsByID[id]
	return p, ok
}

// ProductByValue looks up a product by the string value of a selection control
func (c *Catalog) ProductByValue(value string) (model.Product, bool) {
	id, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return model.Product{}, false
	}
	return c.Product(id)
}

// Summary describes what was loaded, for the informational banner
func (c *Catalog) Summary() string {
	switch {
	case len(c.Suppliers) == 0 && len(c.Products) == 0:
		return "No suppliers or products found"
	case len(c.Suppliers) == 0:
		return "No suppliers found"
	case len(c.Products) == 0:
		return "No products found"
	default:
		return fmt.Sprintf("Loaded %d suppliers and %d products", len(c.Suppliers), len(c.Products))
	}
}

// LoadError reports a failed reference load. Both collections are required,
// so any single failure fails the whole load.
type LoadError struct {
	Err error
}

func (e *LoadError) Error() string {
	return "load reference data: " + e.Err.Error()
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// Message renders the error for the page banner
func (e *LoadError) Message() string {
	msg := "Failed to load suppliers or products. "
	if srvErr, ok := apiclient.AsServerError(e.Err); ok {
		return msg + fmt.Sprintf("Server responded with %d: %s", srvErr.StatusCode, srvErr.Message())
	}
	if apiclient.IsNetworkError(e.Err) {
		return msg + "No response from server. Check if the API is running."
	}
	return msg + e.Err.Error()
}

// Loader fetches reference data for the order form
type Loader struct {
	source Source
}

// NewLoader creates a loader over the given source
func NewLoader(source Source) *Loader {
	return &Loader{source: source}
}

// Load requests suppliers and products concurrently and waits for both
func (l *Loader) Load(ctx context.Context) (*Catalog, error) {
	log := logger.FromStdContext(ctx)
	log.Info("Loading suppliers and products")

	var (
		suppliers []model.Supplier
		products  []model.Product
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		suppliers, err = l.source.ListSuppliers(gctx)
		if err != nil {
			return fmt.Errorf("list suppliers: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		products, err = l.source.ListProducts(gctx)
		if err != nil {
			return fmt.Errorf("list products: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		prometheus.RecordReferenceLoadFailure()
		log.Error("Failed to load reference data", zap.Error(err))
		return nil, &LoadError{Err: err}
	}

	catalog := NewCatalog(suppliers, products)
	log.Info("Reference data loaded",
		zap.Int("suppliers", len(suppliers)),
		zap.Int("products", len(products)))
	return catalog, nil
}

// IsLoadError reports whether err came from a failed reference load
func IsLoadError(err error) bool {
	var loadErr *LoadError
	return errors.As(err, &loadErr)
}

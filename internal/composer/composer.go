package composer

import (
	"context"
	"errors"
	"fmt"
	"procurement-service/internal/model"
	"procurement-service/internal/refdata"
	"procurement-service/pkg/apiclient"
	"procurement-service/pkg/logger"
	"procurement-service/prometheus"
	"slices"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// State is the lifecycle position of the current draft
type State int

const (
	StateEmpty State = iota
	StateEditing
	StateSubmitting
	StateSubmittedSuccess
	StateSubmittedFailure
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateEditing:
		return "editing"
	case StateSubmitting:
		return "submitting"
	case StateSubmittedSuccess:
		return "submitted_success"
	case StateSubmittedFailure:
		return "submitted_failure"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// MarshalText renders the state name in JSON views
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// MsgSubmitted is the success banner text
const MsgSubmitted = "Purchase order submitted successfully!"

var (
	// ErrSubmitInFlight is returned when Submit is called while a previous
	// submission has not completed
	ErrSubmitInFlight = errors.New("purchase order submission already in progress")

	// ErrIndexOutOfRange is a caller contract violation on line item positions
	ErrIndexOutOfRange = errors.New("line item index out of range")
)

// OrderCreator posts a normalized purchase order
type OrderCreator interface {
	CreatePurchaseOrder(ctx context.Context, req model.CreatePurchaseOrderRequest) (*model.PurchaseOrder, error)
}

// Options tunes a Composer
type Options struct {
	// BannerTTL is how long the success banner stays before the composer
	// returns to StateEmpty
	BannerTTL time.Duration
	// Now defaults to time.Now
	Now func() time.Time
	// OnSubmitted runs after a successful submit, outside the composer lock
	OnSubmitted func(ctx context.Context, order *model.PurchaseOrder)
}

// Composer owns one purchase order draft and its submission lifecycle
type Composer struct {
	mu sync.Mutex

	creator OrderCreator
	opts    Options

	catalog *refdata.Catalog
	draft   Draft
	state   State

	errMsg       string
	successMsg   string
	successUntil time.Time
}

// New creates a composer with an empty draft
func New(creator OrderCreator, opts Options) *Composer {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Composer{
		creator: creator,
		opts:    opts,
		draft:   NewDraft(),
		state:   StateEmpty,
	}
}

// SetCatalog supplies the products used for unit cost defaults
func (c *Composer) SetCatalog(catalog *refdata.Catalog) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.catalog = catalog
}

// SetSupplier assigns the supplier selection. Validation is deferred to Submit.
func (c *Composer) SetSupplier(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.touchLocked()
	c.draft.SupplierID = id
}

// SetExpectedDelivery assigns the expected delivery date (YYYY-MM-DD)
func (c *Composer) SetExpectedDelivery(date string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.touchLocked()
	c.draft.ExpectedDelivery = date
}

// SetNote assigns the free-text note
func (c *Composer) SetNote(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.touchLocked()
	c.draft.Note = text
}

// AddLineItem appends a blank line item
func (c *Composer) AddLineItem() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.touchLocked()
	c.draft.Items = append(c.draft.Items, LineItem{})
}

// UpdateLineItem replaces one field of the item at index
func (c *Composer) UpdateLineItem(index int, field Field, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkIndexLocked(index); err != nil {
		return err
	}

	item := c.draft.Items[index]
	switch field {
	case FieldProduct:
		item = onProductSelected(item, value, c.catalog)
	case FieldQuantity:
		item = onQuantityEdited(item, value)
	case FieldUnitCost:
		item = onUnitCostEdited(item, value)
	default:
		return fmt.Errorf("unknown line item field %q", field)
	}

	c.touchLocked()
	c.draft.Items[index] = item
	return nil
}

// RemoveLineItem deletes the item at index. The last remaining item is kept.
func (c *Composer) RemoveLineItem(index int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkIndexLocked(index); err != nil {
		return err
	}
	if len(c.draft.Items) == 1 {
		return nil
	}

	c.touchLocked()
	c.draft.Items = slices.Delete(c.draft.Items, index, index+1)
	return nil
}

// Total is the derived order total of the current draft
func (c *Composer) Total() decimal.Decimal {
	c.mu.Lock()
	defer c.mu.Unlock()
	return ComputeTotal(c.draft.Items)
}

// Cancel discards the draft and any banner
func (c *Composer) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetLocked()
	// an in-flight submit settles the state when it returns
	if c.state != StateSubmitting {
		c.state = StateEmpty
	}
}

// Submit validates the draft and, if valid, creates the purchase order.
// Validation failures return a *ValidationError and send nothing.
func (c *Composer) Submit(ctx context.Context) (*model.PurchaseOrder, error) {
	log := logger.FromStdContext(ctx)

	c.mu.Lock()
	c.expireBannerLocked()
	if c.state == StateSubmitting {
		c.mu.Unlock()
		prometheus.RecordSubmission("in_flight")
		log.Warn("Purchase order submit ignored, previous submit still in flight")
		return nil, ErrSubmitInFlight
	}

	req, err := Normalize(c.draft)
	if err != nil {
		c.successMsg = ""
		c.errMsg = err.Error()
		if c.state == StateEmpty {
			c.state = StateEditing
		}
		c.mu.Unlock()
		prometheus.RecordSubmission("validation")
		log.Info("Purchase order draft rejected", zap.String("reason", err.Error()))
		return nil, err
	}

	c.state = StateSubmitting
	c.errMsg = ""
	c.successMsg = ""
	c.mu.Unlock()

	log.Info("Submitting purchase order",
		zap.Int("supplier_id", req.SupplierID),
		zap.String("expected_delivery", req.ExpectedDelivery),
		zap.Int("items", len(req.Items)))

	created, err := c.creator.CreatePurchaseOrder(ctx, req)

	c.mu.Lock()
	if err != nil {
		c.state = StateSubmittedFailure
		c.errMsg = SubmissionMessage(err)
		c.mu.Unlock()
		prometheus.RecordSubmission(submissionOutcome(err))
		log.Error("Failed to submit purchase order", zap.Error(err))
		return nil, fmt.Errorf("create purchase order: %w", err)
	}
	c.draft = NewDraft()
	c.state = StateSubmittedSuccess
	c.successMsg = MsgSubmitted
	c.successUntil = c.opts.Now().Add(c.opts.BannerTTL)
	c.mu.Unlock()

	prometheus.RecordSubmission("success")
	if created != nil {
		log.Info("Purchase order created", zap.Int("po_id", created.POID))
	}

	if c.opts.OnSubmitted != nil {
		c.opts.OnSubmitted(ctx, created)
	}
	return created, nil
}

// SubmissionMessage renders a failed create request for the error banner
func SubmissionMessage(err error) string {
	const prefix = "Failed to submit purchase order. "
	if srvErr, ok := apiclient.AsServerError(err); ok {
		return prefix + srvErr.Message()
	}
	if apiclient.IsNetworkError(err) {
		return prefix + "No response from server. Check if the API is running."
	}
	return prefix + "Unexpected response from server."
}

func submissionOutcome(err error) string {
	if apiclient.IsNetworkError(err) {
		return "network"
	}
	return "server"
}

// View is a rendering snapshot of the composer
type View struct {
	State     State      `json:"state"`
	Draft     Draft      `json:"draft"`
	Total     string     `json:"total"`
	Error     string     `json:"error,omitempty"`
	Success   string     `json:"success,omitempty"`
	CanSubmit bool       `json:"can_submit"`
	Lines     []LineView `json:"lines"`
}

// LineView adds the derived line total to a line item
type LineView struct {
	LineItem
	LineTotal string `json:"line_total"`
}

// View returns the current snapshot. The total is recomputed on every call.
func (c *Composer) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.expireBannerLocked()

	draft := c.draft.Clone()
	lines := make([]LineView, len(draft.Items))
	for i, item := range draft.Items {
		lines[i] = LineView{LineItem: item, LineTotal: FormatTotal(ComputeTotal([]LineItem{item}))}
	}

	return View{
		State:     c.state,
		Draft:     draft,
		Total:     FormatTotal(ComputeTotal(draft.Items)),
		Error:     c.errMsg,
		Success:   c.successMsg,
		CanSubmit: canSubmit(draft),
		Lines:     lines,
	}
}

// Draft returns a copy of the current draft
func (c *Composer) Draft() Draft {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.draft.Clone()
}

// State returns the current lifecycle state
func (c *Composer) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.expireBannerLocked()
	return c.state
}

// canSubmit mirrors the enabled rule of the submit control: a supplier is
// chosen and every line has all three fields filled in.
func canSubmit(d Draft) bool {
	if d.SupplierID == "" {
		return false
	}
	for _, item := range d.Items {
		if !item.complete() {
			return false
		}
	}
	return true
}

func (c *Composer) checkIndexLocked(index int) error {
	if index < 0 || index >= len(c.draft.Items) {
		return fmt.Errorf("%w: %d (have %d items)", ErrIndexOutOfRange, index, len(c.draft.Items))
	}
	return nil
}

// touchLocked records a user edit
func (c *Composer) touchLocked() {
	c.expireBannerLocked()
	c.errMsg = ""
	c.successMsg = ""
	if c.state != StateSubmitting {
		c.state = StateEditing
	}
}

func (c *Composer) expireBannerLocked() {
	if c.state == StateSubmittedSuccess && !c.opts.Now().Before(c.successUntil) {
		c.state = StateEmpty
		c.successMsg = ""
	}
}

func (c *Composer) resetLocked() {
	c.draft = NewDraft()
	c.errMsg = ""
	c.successMsg = ""
}

package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"procurement-service/internal/composer"
	"procurement-service/internal/model"
	"procurement-service/internal/orders"
	"procurement-service/internal/session"
	"procurement-service/pkg/apiclient"
	"procurement-service/pkg/config"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSigningKey = "test-signing-key"

// fakeInventory is an in-process stand-in for the inventory REST API
type fakeInventory struct {
	mu sync.Mutex

	suppliersStatus int
	ordersStatus    int
	createStatus    int
	createDetail    string
	historyStatus   int
	unauthorized    bool

	orders      []model.PurchaseOrder
	created     []model.CreatePurchaseOrderRequest
	authHeaders []string
}

func (f *fakeInventory) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.authHeaders = append(f.authHeaders, r.Header.Get("Authorization"))
	if f.unauthorized {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Could not validate credentials"})
		return
	}

	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/suppliers":
		if f.suppliersStatus != 0 {
			writeJSON(w, f.suppliersStatus, map[string]string{"detail": "suppliers unavailable"})
			return
		}
		writeJSON(w, http.StatusOK, []model.Supplier{{SupplierID: 3, Name: "Acme"}})
	case r.Method == http.MethodGet && r.URL.Path == "/products":
		writeJSON(w, http.StatusOK, []model.Product{{ProductID: 7, Name: "Bolt", SKU: "B-7", UnitCost: 12.5}})
	case r.Method == http.MethodGet && r.URL.Path == "/purchase-orders":
		if f.ordersStatus != 0 {
			w.WriteHeader(f.ordersStatus)
			return
		}
		writeJSON(w, http.StatusOK, f.orders)
	case r.Method == http.MethodPost && r.URL.Path == "/purchase-orders":
		if f.createStatus != 0 {
			writeJSON(w, f.createStatus, map[string]string{"detail": f.createDetail})
			return
		}
		var req model.CreatePurchaseOrderRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		f.created = append(f.created, req)
		po := model.PurchaseOrder{POID: 500 + len(f.created), SupplierID: req.SupplierID, SupplierName: "Acme", Status: model.StatusPending}
		f.orders = append([]model.PurchaseOrder{po}, f.orders...)
		writeJSON(w, http.StatusCreated, po)
	case r.Method == http.MethodGet && r.URL.Path == "/purchase-orders/42/history":
		if f.historyStatus != 0 {
			w.WriteHeader(f.historyStatus)
			return
		}
		writeJSON(w, http.StatusOK, []model.StatusHistoryEntry{
			{HistoryID: 1, POID: 42, NewStatus: "pending", ChangedAt: "2024-05-30T10:00:00"},
		})
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

// update mutates the fake under its lock
func (f *fakeInventory) update(fn func(f *fakeInventory)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

func (f *fakeInventory) createdRequests() []model.CreatePurchaseOrderRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.CreatePurchaseOrderRequest, len(f.created))
	copy(out, f.created)
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type testApp struct {
	e        *echo.Echo
	h        *Handler
	store    *session.MemoryStore
	upstream *fakeInventory
	token    string
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	upstream := &fakeInventory{}
	srv := httptest.NewServer(upstream)
	t.Cleanup(srv.Close)

	cfg := &config.Config{
		ServiceName: "procurement-service",
		Composer:    config.ComposerConfig{RecentOrdersLimit: 5, SuccessBannerTTL: 3 * time.Second},
		Session:     config.SessionConfig{Store: config.SessionStoreMemory, CookieName: "po_session", TTL: time.Hour},
		JWT:         config.JWTConfig{SigningKey: testSigningKey},
	}
	store := session.NewMemoryStore()
	h := New(cfg, store, apiclient.NewClient(srv.URL, 5*time.Second))

	e := echo.New()
	h.Register(e)
	return &testApp{e: e, h: h, store: store, upstream: upstream}
}

func signedToken(t *testing.T) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwtClaims{
		Email:  "buyer@example.com",
		UserID: 12,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte(testSigningKey))
	require.NoError(t, err)
	return token
}

type jwtClaims struct {
	Email  string `json:"email"`
	UserID uint   `json:"user_id"`
	jwt.RegisteredClaims
}

func (a *testApp) do(t *testing.T, method, path string, body any, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()

	var r io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	return rec
}

func (a *testApp) login(t *testing.T) *http.Cookie {
	t.Helper()
	a.token = signedToken(t)
	rec := a.do(t, http.MethodPost, "/session", echo.Map{"access_token": a.token}, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	for _, c := range rec.Result().Cookies() {
		if c.Name == "po_session" {
			return c
		}
	}
	t.Fatal("session cookie not set")
	return nil
}

type pageBody struct {
	Loaded       bool                 `json:"loaded"`
	Ready        bool                 `json:"ready"`
	Error        string               `json:"error"`
	Info         string               `json:"info"`
	Suppliers    []model.Supplier     `json:"suppliers"`
	Products     []model.Product      `json:"products"`
	RecentOrders []orders.Row         `json:"recent_orders"`
	History      *orders.History      `json:"history"`
	CreatedOrder *model.PurchaseOrder `json:"created_order"`
	Composer     struct {
		State     string         `json:"state"`
		Draft     composer.Draft `json:"draft"`
		Total     string         `json:"total"`
		Error     string         `json:"error"`
		Success   string         `json:"success"`
		CanSubmit bool           `json:"can_submit"`
	} `json:"composer"`
}

func decodePage(t *testing.T, rec *httptest.ResponseRecorder) pageBody {
	t.Helper()
	var body pageBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}

func assertSessionExpired(t *testing.T, rec *httptest.ResponseRecorder) {
	t.Helper()
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"session expired","redirect":"/login"}`, rec.Body.String())
}

func fillDraft(t *testing.T, a *testApp, cookie *http.Cookie) {
	t.Helper()
	steps := []struct {
		method, path string
		body         any
	}{
		{http.MethodPut, "/api/purchase-orders/draft/supplier", echo.Map{"supplier_id": "3"}},
		{http.MethodPut, "/api/purchase-orders/draft/expected-delivery", echo.Map{"expected_delivery": "2024-06-01"}},
		{http.MethodPatch, "/api/purchase-orders/draft/items/0", echo.Map{"field": "product_id", "value": "7"}},
		{http.MethodPatch, "/api/purchase-orders/draft/items/0", echo.Map{"field": "quantity", "value": "5"}},
	}
	for _, s := range steps {
		rec := a.do(t, s.method, s.path, s.body, cookie)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}
}

func TestHealth(t *testing.T) {
	a := newTestApp(t)

	rec := a.do(t, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestPageRequiresSession(t *testing.T) {
	a := newTestApp(t)

	assertSessionExpired(t, a.do(t, http.MethodGet, "/api/purchase-orders/page", nil, nil))
	assertSessionExpired(t, a.do(t, http.MethodGet, "/api/purchase-orders/page", nil, &http.Cookie{Name: "po_session", Value: "nope"}))
}

func TestCreateSessionRejectsBadToken(t *testing.T) {
	a := newTestApp(t)

	rec := a.do(t, http.MethodPost, "/session", echo.Map{"access_token": "garbage"}, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"Invalid access token"}`, rec.Body.String())
}

func TestSubmitFlow(t *testing.T) {
	a := newTestApp(t)
	a.upstream.update(func(f *fakeInventory) {
		f.orders = []model.PurchaseOrder{{POID: 41, SupplierID: 3, SupplierName: "Acme", Status: "received"}}
	})
	cookie := a.login(t)

	rec := a.do(t, http.MethodGet, "/api/purchase-orders/page", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	page := decodePage(t, rec)
	assert.True(t, page.Ready)
	assert.Equal(t, "Loaded 1 suppliers and 1 products", page.Info)
	require.Len(t, page.RecentOrders, 1)
	assert.Equal(t, "Received", page.RecentOrders[0].StatusLabel)
	assert.Equal(t, "empty", page.Composer.State)

	fillDraft(t, a, cookie)

	rec = a.do(t, http.MethodGet, "/api/purchase-orders/page", nil, cookie)
	page = decodePage(t, rec)
	assert.Equal(t, "12.5", page.Composer.Draft.Items[0].UnitCost)
	assert.Equal(t, "62.50", page.Composer.Total)
	assert.True(t, page.Composer.CanSubmit)

	rec = a.do(t, http.MethodPost, "/api/purchase-orders/draft/submit", nil, cookie)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	page = decodePage(t, rec)
	require.NotNil(t, page.CreatedOrder)
	assert.Equal(t, 501, page.CreatedOrder.POID)
	assert.Equal(t, "submitted_success", page.Composer.State)
	assert.Equal(t, composer.MsgSubmitted, page.Composer.Success)
	assert.Equal(t, composer.NewDraft(), page.Composer.Draft)
	require.Len(t, page.RecentOrders, 2)
	assert.Equal(t, 501, page.RecentOrders[0].POID)

	created := a.upstream.createdRequests()
	require.Len(t, created, 1)
	assert.Equal(t, model.CreatePurchaseOrderRequest{
		SupplierID:       3,
		ExpectedDelivery: "2024-06-01",
		Notes:            "",
		Items:            []model.CreatePurchaseOrderItem{{ProductID: 7, Quantity: 5, UnitCost: 12.5}},
	}, created[0])

	a.upstream.update(func(f *fakeInventory) {
		require.NotEmpty(t, f.authHeaders)
		for _, h := range f.authHeaders {
			assert.Equal(t, "Bearer "+a.token, h)
		}
	})
}

func TestSubmitValidationFailure(t *testing.T) {
	a := newTestApp(t)
	cookie := a.login(t)

	rec := a.do(t, http.MethodPost, "/api/purchase-orders/draft/submit", nil, cookie)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	page := decodePage(t, rec)
	assert.Equal(t, composer.MsgSelectSupplier, page.Composer.Error)
	assert.Empty(t, a.upstream.createdRequests())
}

func TestSubmitServerFailure(t *testing.T) {
	a := newTestApp(t)
	a.upstream.update(func(f *fakeInventory) {
		f.createStatus = http.StatusBadRequest
		f.createDetail = "Supplier is inactive"
	})
	cookie := a.login(t)
	fillDraft(t, a, cookie)

	rec := a.do(t, http.MethodPost, "/api/purchase-orders/draft/submit", nil, cookie)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	page := decodePage(t, rec)
	assert.Equal(t, "submitted_failure", page.Composer.State)
	assert.Equal(t, "Failed to submit purchase order. Supplier is inactive", page.Composer.Error)
	assert.Equal(t, "3", page.Composer.Draft.SupplierID, "draft is preserved")
}

func TestOrdersFailureKeepsFormUsable(t *testing.T) {
	a := newTestApp(t)
	a.upstream.update(func(f *fakeInventory) { f.ordersStatus = http.StatusInternalServerError })
	cookie := a.login(t)

	rec := a.do(t, http.MethodGet, "/api/purchase-orders/page", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	page := decodePage(t, rec)
	assert.True(t, page.Ready)
	assert.Empty(t, page.Error)
	assert.Empty(t, page.RecentOrders)

	fillDraft(t, a, cookie)
	rec = a.do(t, http.MethodPost, "/api/purchase-orders/draft/submit", nil, cookie)
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestReferenceFailureBlocksForm(t *testing.T) {
	a := newTestApp(t)
	a.upstream.update(func(f *fakeInventory) { f.suppliersStatus = http.StatusInternalServerError })
	cookie := a.login(t)

	rec := a.do(t, http.MethodGet, "/api/purchase-orders/page", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	page := decodePage(t, rec)
	assert.False(t, page.Ready)
	assert.Equal(t, "Failed to load suppliers or products. Server responded with 500: suppliers unavailable", page.Error)

	rec = a.do(t, http.MethodPost, "/api/purchase-orders/draft/submit", nil, cookie)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = a.do(t, http.MethodPost, "/api/purchase-orders/page/reload", nil, cookie)
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	a.upstream.update(func(f *fakeInventory) { f.suppliersStatus = 0 })

	rec = a.do(t, http.MethodPost, "/api/purchase-orders/page/reload", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decodePage(t, rec).Ready)
}

func TestHistory(t *testing.T) {
	a := newTestApp(t)
	cookie := a.login(t)

	rec := a.do(t, http.MethodGet, "/api/purchase-orders/42/history", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	page := decodePage(t, rec)
	require.NotNil(t, page.History)
	require.Len(t, page.History.Rows, 1)
	assert.Equal(t, "Created", page.History.Rows[0].From)
	assert.Equal(t, "System", page.History.Rows[0].ChangedBy)
	assert.Equal(t, "-", page.History.Rows[0].Note)

	rec = a.do(t, http.MethodDelete, "/api/purchase-orders/history", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, decodePage(t, rec).History)

	a.upstream.update(func(f *fakeInventory) { f.historyStatus = http.StatusInternalServerError })

	rec = a.do(t, http.MethodGet, "/api/purchase-orders/42/history", nil, cookie)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	page = decodePage(t, rec)
	assert.Equal(t, "Failed to load purchase order history.", page.Error)
	assert.Nil(t, page.History)

	rec = a.do(t, http.MethodGet, "/api/purchase-orders/abc/history", nil, cookie)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLineItemContractViolations(t *testing.T) {
	a := newTestApp(t)
	cookie := a.login(t)

	rec := a.do(t, http.MethodPatch, "/api/purchase-orders/draft/items/5", echo.Map{"field": "quantity", "value": "1"}, cookie)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(t, http.MethodPatch, "/api/purchase-orders/draft/items/0", echo.Map{"field": "price", "value": "1"}, cookie)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(t, http.MethodDelete, "/api/purchase-orders/draft/items/x", nil, cookie)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(t, http.MethodPost, "/api/purchase-orders/draft/items", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodePage(t, rec).Composer.Draft.Items, 2)

	rec = a.do(t, http.MethodDelete, "/api/purchase-orders/draft/items/1", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodePage(t, rec).Composer.Draft.Items, 1)
}

func TestUpstreamUnauthorizedEndsSession(t *testing.T) {
	a := newTestApp(t)
	cookie := a.login(t)
	a.upstream.update(func(f *fakeInventory) { f.unauthorized = true })

	assertSessionExpired(t, a.do(t, http.MethodGet, "/api/purchase-orders/page", nil, cookie))

	_, err := a.store.Get(context.Background(), cookie.Value)
	assert.ErrorIs(t, err, session.ErrNotFound)
	assert.Equal(t, 0, a.h.registry.Len())

	assertSessionExpired(t, a.do(t, http.MethodGet, "/api/purchase-orders/page", nil, cookie))
}

func TestLogout(t *testing.T) {
	a := newTestApp(t)
	cookie := a.login(t)

	rec := a.do(t, http.MethodGet, "/api/purchase-orders/page", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, a.h.registry.Len())

	rec = a.do(t, http.MethodDelete, "/session", nil, cookie)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 0, a.h.registry.Len())

	assertSessionExpired(t, a.do(t, http.MethodGet, "/api/purchase-orders/page", nil, cookie))
}

func TestCancel(t *testing.T) {
	a := newTestApp(t)
	cookie := a.login(t)
	fillDraft(t, a, cookie)

	rec := a.do(t, http.MethodPost, "/api/purchase-orders/draft/cancel", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	page := decodePage(t, rec)
	assert.Equal(t, "empty", page.Composer.State)
	assert.Equal(t, composer.NewDraft(), page.Composer.Draft)
}

func TestExpiredSessionReleasesWorkspace(t *testing.T) {
	a := newTestApp(t)
	a.h.cfg.Session.TTL = 200 * time.Millisecond
	cookie := a.login(t)

	rec := a.do(t, http.MethodPut, "/api/purchase-orders/draft/note", echo.Map{"note": "rush"}, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 1, a.h.registry.Len())

	time.Sleep(300 * time.Millisecond)

	assertSessionExpired(t, a.do(t, http.MethodGet, "/api/purchase-orders/page", nil, cookie))
	assert.Equal(t, 0, a.h.registry.Len())
}

func TestEvictedSessionReleasesWorkspace(t *testing.T) {
	a := newTestApp(t)
	cookie := a.login(t)

	rec := a.do(t, http.MethodGet, "/api/purchase-orders/page", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 1, a.h.registry.Len())

	require.NoError(t, a.store.Delete(context.Background(), cookie.Value))

	assertSessionExpired(t, a.do(t, http.MethodGet, "/api/purchase-orders/page", nil, cookie))
	assert.Equal(t, 0, a.h.registry.Len())
}

func TestSweepReleasesIdleExpiredSessions(t *testing.T) {
	a := newTestApp(t)
	cookie := a.login(t)

	rec := a.do(t, http.MethodGet, "/api/purchase-orders/page", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)

	a.h.Sweep(context.Background())
	assert.Equal(t, 1, a.h.registry.Len(), "live session kept")

	later := time.Now().Add(2 * time.Hour)
	a.h.now = func() time.Time { return later }
	a.h.Sweep(context.Background())
	assert.Equal(t, 0, a.h.registry.Len())
}

func TestRunSweeperStopsWithContext(t *testing.T) {
	a := newTestApp(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		a.h.RunSweeper(ctx, 10*time.Millisecond)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}

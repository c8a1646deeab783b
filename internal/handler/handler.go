package handler

import (
	"context"
	"errors"
	"net/http"
	mid "procurement-service/internal/middleware"
	"procurement-service/internal/model"
	"procurement-service/internal/session"
	"procurement-service/internal/workspace"
	"procurement-service/pkg/apiclient"
	"procurement-service/pkg/config"
	"procurement-service/pkg/logger"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// Handler serves the purchase order page API
type Handler struct {
	cfg      *config.Config
	store    session.Store
	registry *workspace.Registry
	now      func() time.Time
}

// New wires the handlers. Each session gets its own workspace talking to the
// inventory API with the session token; a 401 from the API ends the session.
func New(cfg *config.Config, store session.Store, client *apiclient.Client) *Handler {
	h := &Handler{
		cfg:   cfg,
		store: store,
		now:   time.Now,
	}
	h.registry = workspace.NewRegistry(func(sess *model.Session) *workspace.Workspace {
		sessionID := sess.ID
		api := client.WithToken(sess.AccessToken, func() {
			h.endSession(context.Background(), sessionID)
		})
		return workspace.New(api, workspace.Options{
			RecentOrdersLimit: cfg.Composer.RecentOrdersLimit,
			BannerTTL:         cfg.Composer.SuccessBannerTTL,
		})
	})
	return h
}

// Register mounts all routes on e
func (h *Handler) Register(e *echo.Echo) {
	e.GET("/health", h.Health)

	e.POST("/session", h.CreateSession)
	e.DELETE("/session", h.DeleteSession)

	po := e.Group("/api/purchase-orders", mid.SessionMiddleware(h.store, h.cfg.Session.CookieName,
		mid.OnSessionGone(h.registry.Drop)))
	po.GET("/page", h.GetPage)
	po.POST("/page/reload", h.ReloadPage)

	po.PUT("/draft/supplier", h.SetSupplier)
	po.PUT("/draft/expected-delivery", h.SetExpectedDelivery)
	po.PUT("/draft/note", h.SetNote)
	po.POST("/draft/items", h.AddLineItem)
	po.PATCH("/draft/items/:index", h.UpdateLineItem)
	po.DELETE("/draft/items/:index", h.RemoveLineItem)
	po.POST("/draft/submit", h.Submit)
	po.POST("/draft/cancel", h.Cancel)

	po.GET("/:id/history", h.ViewHistory)
	po.DELETE("/history", h.CloseHistory)
}

// Health reports liveness
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{
		"status":    "ok",
		"service":   h.cfg.ServiceName,
		"sessions":  h.registry.Len(),
		"timestamp": h.now().UTC().Format(time.RFC3339),
	})
}

// pageResponse is the body of every purchase order page endpoint
type pageResponse struct {
	workspace.View
	CreatedOrder *model.PurchaseOrder `json:"created_order,omitempty"`
}

// sessionWorkspace returns the session workspace, loading it on first use. A failed
// reference load is rendered in the page, not returned.
func (h *Handler) sessionWorkspace(c echo.Context) (*workspace.Workspace, error) {
	sess, ok := mid.SessionFromContext(c)
	if !ok {
		return nil, apiclient.ErrSessionExpired
	}
	ws := h.registry.Get(sess)
	if err := ws.EnsureLoaded(c.Request().Context()); errors.Is(err, apiclient.ErrSessionExpired) {
		return nil, err
	}
	return ws, nil
}

func (h *Handler) page(c echo.Context, status int, ws *workspace.Workspace) error {
	return c.JSON(status, pageResponse{View: ws.View()})
}

// upstreamFailure replies to an error returned by the inventory API
func (h *Handler) upstreamFailure(c echo.Context, ws *workspace.Workspace, err error) error {
	if errors.Is(err, apiclient.ErrSessionExpired) {
		return h.sessionLost(c)
	}
	return h.page(c, http.StatusBadGateway, ws)
}

// sessionLost ends the current session after the API rejected its token
func (h *Handler) sessionLost(c echo.Context) error {
	if sess, ok := mid.SessionFromContext(c); ok {
		h.endSession(c.Request().Context(), sess.ID)
	}
	h.clearCookie(c)
	return mid.SessionExpired(c)
}

// endSession forgets the session and its workspace
func (h *Handler) endSession(ctx context.Context, sessionID string) {
	h.registry.Drop(sessionID)
	if err := h.store.Delete(ctx, sessionID); err != nil {
		logger.FromStdContext(ctx).Error("Failed to delete session", zap.Error(err))
	}
}

// withWorkspace resolves the workspace and maps a lost session to the login
// redirect
func (h *Handler) withWorkspace(c echo.Context, fn func(ws *workspace.Workspace) error) error {
	ws, err := h.sessionWorkspace(c)
	if err != nil {
		return h.sessionLost(c)
	}
	return fn(ws)
}

// Sweep releases the workspaces of expired sessions and purges the store
// when it supports it
func (h *Handler) Sweep(ctx context.Context) {
	log := logger.FromStdContext(ctx)

	dropped := h.registry.Sweep(h.now())
	var purged int64
	if p, ok := h.store.(session.Purger); ok {
		n, err := p.PurgeExpired(ctx)
		if err != nil {
			log.Warn("Failed to purge expired sessions", zap.Error(err))
		}
		purged = n
	}
	if dropped > 0 || purged > 0 {
		log.Info("Expired sessions swept",
			zap.Int("workspaces", dropped),
			zap.Int64("sessions", purged))
	}
}

// RunSweeper calls Sweep every interval until ctx is done
func (h *Handler) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.Sweep(ctx)
		}
	}
}

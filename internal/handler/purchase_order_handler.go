package handler

import (
	"errors"
	"net/http"
	"procurement-service/internal/composer"
	"procurement-service/internal/workspace"
	"procurement-service/pkg/logger"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// SupplierRequest selects the draft supplier
type SupplierRequest struct {
	SupplierID string `json:"supplier_id"`
}

// ExpectedDeliveryRequest sets the draft delivery date
type ExpectedDeliveryRequest struct {
	ExpectedDelivery string `json:"expected_delivery"`
}

// NoteRequest sets the draft note
type NoteRequest struct {
	Note string `json:"note"`
}

// LineItemRequest edits one field of a line item
type LineItemRequest struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

// GetPage renders the purchase order page, loading it on first visit
func (h *Handler) GetPage(c echo.Context) error {
	return h.withWorkspace(c, func(ws *workspace.Workspace) error {
		return h.page(c, http.StatusOK, ws)
	})
}

// ReloadPage re-fetches suppliers, products and recent orders
func (h *Handler) ReloadPage(c echo.Context) error {
	log := logger.FromContext(c)
	return h.withWorkspace(c, func(ws *workspace.Workspace) error {
		if err := ws.Reload(c.Request().Context()); err != nil {
			log.Warn("Purchase order page reload failed", zap.Error(err))
			return h.upstreamFailure(c, ws, err)
		}
		return h.page(c, http.StatusOK, ws)
	})
}

// SetSupplier handles the supplier selection
func (h *Handler) SetSupplier(c echo.Context) error {
	var req SupplierRequest
	if err := c.Bind(&req); err != nil {
		return invalidRequest(c, err)
	}
	return h.withWorkspace(c, func(ws *workspace.Workspace) error {
		ws.Composer().SetSupplier(req.SupplierID)
		return h.page(c, http.StatusOK, ws)
	})
}

// SetExpectedDelivery handles the delivery date input
func (h *Handler) SetExpectedDelivery(c echo.Context) error {
	var req ExpectedDeliveryRequest
	if err := c.Bind(&req); err != nil {
		return invalidRequest(c, err)
	}
	return h.withWorkspace(c, func(ws *workspace.Workspace) error {
		ws.Composer().SetExpectedDelivery(req.ExpectedDelivery)
		return h.page(c, http.StatusOK, ws)
	})
}

// SetNote handles the note input
func (h *Handler) SetNote(c echo.Context) error {
	var req NoteRequest
	if err := c.Bind(&req); err != nil {
		return invalidRequest(c, err)
	}
	return h.withWorkspace(c, func(ws *workspace.Workspace) error {
		ws.Composer().SetNote(req.Note)
		return h.page(c, http.StatusOK, ws)
	})
}

// AddLineItem appends a blank line item
func (h *Handler) AddLineItem(c echo.Context) error {
	return h.withWorkspace(c, func(ws *workspace.Workspace) error {
		ws.Composer().AddLineItem()
		return h.page(c, http.StatusOK, ws)
	})
}

// UpdateLineItem edits one field of the line item at :index
func (h *Handler) UpdateLineItem(c echo.Context) error {
	log := logger.FromContext(c)

	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		return invalidRequest(c, err)
	}
	var req LineItemRequest
	if err := c.Bind(&req); err != nil {
		return invalidRequest(c, err)
	}
	field, err := composer.ParseField(req.Field)
	if err != nil {
		return invalidRequest(c, err)
	}

	return h.withWorkspace(c, func(ws *workspace.Workspace) error {
		if err := ws.Composer().UpdateLineItem(index, field, req.Value); err != nil {
			log.Warn("Line item update rejected", zap.Int("index", index), zap.Error(err))
			return c.JSON(http.StatusBadRequest, echo.Map{
				"error": err.Error(),
			})
		}
		return h.page(c, http.StatusOK, ws)
	})
}

// RemoveLineItem deletes the line item at :index
func (h *Handler) RemoveLineItem(c echo.Context) error {
	log := logger.FromContext(c)

	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		return invalidRequest(c, err)
	}

	return h.withWorkspace(c, func(ws *workspace.Workspace) error {
		if err := ws.Composer().RemoveLineItem(index); err != nil {
			log.Warn("Line item removal rejected", zap.Int("index", index), zap.Error(err))
			return c.JSON(http.StatusBadRequest, echo.Map{
				"error": err.Error(),
			})
		}
		return h.page(c, http.StatusOK, ws)
	})
}

// Submit validates and sends the draft
func (h *Handler) Submit(c echo.Context) error {
	return h.withWorkspace(c, func(ws *workspace.Workspace) error {
		created, err := ws.Submit(c.Request().Context())
		switch {
		case err == nil:
			return c.JSON(http.StatusCreated, pageResponse{View: ws.View(), CreatedOrder: created})
		case errors.Is(err, composer.ErrValidation):
			return h.page(c, http.StatusUnprocessableEntity, ws)
		case errors.Is(err, composer.ErrSubmitInFlight):
			return c.JSON(http.StatusConflict, echo.Map{
				"error": err.Error(),
			})
		case errors.Is(err, workspace.ErrFormUnavailable):
			return c.JSON(http.StatusConflict, echo.Map{
				"error": err.Error(),
			})
		default:
			return h.upstreamFailure(c, ws, err)
		}
	})
}

// Cancel discards the draft
func (h *Handler) Cancel(c echo.Context) error {
	return h.withWorkspace(c, func(ws *workspace.Workspace) error {
		ws.Composer().Cancel()
		return h.page(c, http.StatusOK, ws)
	})
}

// ViewHistory opens the status history of order :id
func (h *Handler) ViewHistory(c echo.Context) error {
	poID, err := strconv.Atoi(c.Param("id"))
	if err != nil || poID <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error": "Invalid purchase order ID",
		})
	}

	return h.withWorkspace(c, func(ws *workspace.Workspace) error {
		if _, err := ws.ViewHistory(c.Request().Context(), poID); err != nil {
			return h.upstreamFailure(c, ws, err)
		}
		return h.page(c, http.StatusOK, ws)
	})
}

// CloseHistory closes the history view
func (h *Handler) CloseHistory(c echo.Context) error {
	return h.withWorkspace(c, func(ws *workspace.Workspace) error {
		ws.CloseHistory()
		return h.page(c, http.StatusOK, ws)
	})
}

func invalidRequest(c echo.Context, err error) error {
	logger.FromContext(c).Error("Invalid request data", zap.Error(err))
	return c.JSON(http.StatusBadRequest, echo.Map{
		"error": "Invalid request data",
	})
}

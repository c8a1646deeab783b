package handler

import (
	"errors"
	"net/http"
	"procurement-service/internal/session"
	"procurement-service/pkg/jwtutil"
	"procurement-service/pkg/logger"
	"procurement-service/prometheus"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// SessionRequest carries the bearer token obtained from the login page
type SessionRequest struct {
	AccessToken string `json:"access_token"`
}

// CreateSession exchanges a bearer token for a session cookie
func (h *Handler) CreateSession(c echo.Context) error {
	log := logger.FromContext(c)

	var req SessionRequest
	if err := c.Bind(&req); err != nil {
		log.Error("Invalid request data", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error": "Invalid request data",
		})
	}

	claims, err := jwtutil.ParseClaims(req.AccessToken, h.cfg.JWT.SigningKey)
	if err != nil {
		prometheus.RecordAuth(false)
		log.Warn("Rejected access token", zap.Error(err))
		return c.JSON(http.StatusUnauthorized, echo.Map{
			"error": "Invalid access token",
		})
	}

	sess := session.New(req.AccessToken, claims.UserID, claims.Email, claims.Expiry(), h.cfg.Session.TTL, h.now())
	if err := h.store.Create(c.Request().Context(), sess); err != nil {
		log.Error("Failed to create session", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"error": "Failed to create session",
		})
	}
	prometheus.RecordAuth(true)

	c.SetCookie(&http.Cookie{
		Name:     h.cfg.Session.CookieName,
		Value:    sess.ID,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		Secure:   h.cfg.Server.Env == "production",
		SameSite: http.SameSiteLaxMode,
	})

	log.Info("Session created",
		zap.Uint("user_id", sess.UserID),
		zap.Time("expires_at", sess.ExpiresAt))
	return c.JSON(http.StatusCreated, echo.Map{
		"user_id":    sess.UserID,
		"email":      sess.Email,
		"expires_at": sess.ExpiresAt,
	})
}

// DeleteSession logs out: the session and its workspace are discarded
func (h *Handler) DeleteSession(c echo.Context) error {
	log := logger.FromContext(c)

	cookie, err := c.Cookie(h.cfg.Session.CookieName)
	if err != nil && !errors.Is(err, http.ErrNoCookie) {
		log.Warn("Unreadable session cookie", zap.Error(err))
	}
	if err == nil && cookie.Value != "" {
		h.endSession(c.Request().Context(), cookie.Value)
		log.Info("Session deleted")
	}

	h.clearCookie(c)
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) clearCookie(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     h.cfg.Session.CookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
	})
}

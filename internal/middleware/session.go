package middleware

import (
	"errors"
	"net/http"
	"procurement-service/internal/model"
	"procurement-service/internal/session"
	"procurement-service/pkg/logger"
	"procurement-service/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const (
	sessionKey = "session"

	// LoginPath is where the client is sent once its session is gone
	LoginPath = "/login"
)

// SessionExpired replies with the redirect body the client uses to go back
// to the login page
func SessionExpired(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, echo.Map{
		"error":    "session expired",
		"redirect": LoginPath,
	})
}

// SessionOption customizes SessionMiddleware
type SessionOption func(*sessionOptions)

type sessionOptions struct {
	onGone func(sessionID string)
}

// OnSessionGone runs fn with the cookie value of a session the store no
// longer knows, so state kept for it can be released
func OnSessionGone(fn func(sessionID string)) SessionOption {
	return func(o *sessionOptions) {
		o.onGone = fn
	}
}

// SessionMiddleware resolves the session cookie to a live session
func SessionMiddleware(store session.Store, cookieName string, opts ...SessionOption) echo.MiddlewareFunc {
	var o sessionOptions
	for _, opt := range opts {
		opt(&o)
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			log := logger.FromContext(c)

			cookie, err := c.Cookie(cookieName)
			if err != nil || cookie.Value == "" {
				prometheus.RecordAuth(false)
				log.Warn("Missing session cookie")
				return SessionExpired(c)
			}

			sess, err := store.Get(c.Request().Context(), cookie.Value)
			if errors.Is(err, session.ErrNotFound) {
				prometheus.RecordAuth(false)
				log.Warn("Unknown or expired session")
				if o.onGone != nil {
					o.onGone(cookie.Value)
				}
				return SessionExpired(c)
			}
			if err != nil {
				prometheus.RecordAuth(false)
				log.Error("Failed to load session", zap.Error(err))
				return c.JSON(http.StatusInternalServerError, echo.Map{
					"error": "Failed to load session",
				})
			}

			prometheus.RecordAuth(true)

			c.Set(sessionKey, sess)
			log = log.With(zap.Uint("user_id", sess.UserID))
			c.Set("logger", log)
			c.SetRequest(c.Request().WithContext(logger.WithLogger(c.Request().Context(), log)))

			return next(c)
		}
	}
}

// SessionFromContext returns the session resolved by SessionMiddleware
func SessionFromContext(c echo.Context) (*model.Session, bool) {
	sess, ok := c.Get(sessionKey).(*model.Session)
	return sess, ok
}

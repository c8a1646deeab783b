package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"procurement-service/internal/handler"
	mid "procurement-service/internal/middleware"
	"procurement-service/internal/session"
	"procurement-service/pkg/apiclient"
	"procurement-service/pkg/config"
	"procurement-service/pkg/database"
	"procurement-service/pkg/logger"
	"procurement-service/prometheus"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	appConfig, err := config.Load()
	if err != nil {
		// Can't use structured logger yet since it's not initialized
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	logger.InitLogger(appConfig)
	log := logger.GetLogger()
	defer log.Sync()

	log.Info("Starting procurement-service",
		zap.String("environment", appConfig.Server.Env),
		zap.String("port", appConfig.Server.Port))

	// Initialize Prometheus metrics
	prometheus.InitMetrics(appConfig)
	log.Info("Prometheus metrics initialized",
		zap.String("metrics_prefix", appConfig.Metrics.Prefix))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := newSessionStore(ctx, appConfig, log)
	if err != nil {
		log.Fatal("Failed to initialize session store", zap.Error(err))
	}

	client := apiclient.NewClient(appConfig.API.BaseURL, appConfig.API.Timeout)
	log.Info("Inventory API client initialized",
		zap.String("base_url", client.BaseURL),
		zap.Duration("timeout", appConfig.API.Timeout))

	// Initialize Echo instance
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Recover())
	e.Use(mid.RequestIDMiddleware)
	e.Use(logger.Middleware())
	e.Use(mid.MetricsMiddleware)

	// Metrics endpoint
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	h := handler.New(appConfig, store, client)
	h.Register(e)
	go h.RunSweeper(ctx, appConfig.Session.SweepInterval)

	// Start server
	port := appConfig.Server.Port
	go func() {
		log.Info("Starting server", zap.String("port", port))
		if err := e.Start(":" + port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("Server shutdown failed", zap.Error(err))
	}
}

func newSessionStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (session.Store, error) {
	if cfg.Session.Store != config.SessionStorePostgres {
		log.Info("Using in-memory session store")
		return session.NewMemoryStore(), nil
	}

	db, err := database.InitDB(cfg)
	if err != nil {
		return nil, err
	}
	log.Info("Database connection established")

	store := session.NewGormStore(db)

	start := time.Now()
	log.Info("Starting database migration...")
	if err := store.Migrate(ctx); err != nil {
		log.Error("Database migration failed", zap.Error(err))
		return nil, err
	}
	log.Info("Database migration completed successfully",
		zap.Duration("duration", time.Since(start)))

	if purged, err := store.PurgeExpired(ctx); err != nil {
		log.Warn("Failed to purge expired sessions", zap.Error(err))
	} else {
		log.Info("Expired sessions purged", zap.Int64("count", purged))
	}
	return store, nil
}

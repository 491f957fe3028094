package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gallery/internal/api"
	"gallery/internal/auth"
	"gallery/internal/blob"
	"gallery/internal/config"
	"gallery/internal/gallery"
	"gallery/internal/logger"
	"gallery/internal/storage"
	"gallery/internal/web"

	"github.com/joho/godotenv"
)

func main() {
	// A missing .env file is fine; the environment may already be set.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	appLogger := logger.InitLogger(cfg.Environment, cfg.LogJSON)

	authService, err := auth.NewAuthService(cfg.Auth)
	if err != nil {
		appLogger.Error("failed to initialize auth", "error", err)
		os.Exit(1)
	}

	store := newStore(appLogger, cfg.Blob)
	images := gallery.NewImageService(store, cfg.ListTimeout, appLogger)

	db, err := storage.NewDB(cfg.AuditDBPath, cfg.AuditRetention)
	if err != nil {
		appLogger.Error("failed to initialize database", "path", cfg.AuditDBPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	pages, err := web.NewServer(authService, images, db, appLogger)
	if err != nil {
		appLogger.Error("failed to initialize pages", "error", err)
		os.Exit(1)
	}

	mux := http.NewServeMux()
	api.NewServer(authService, images, db, appLogger).Routes(mux)
	pages.Routes(mux)
	if local, ok := store.(*blob.LocalStore); ok {
		mux.Handle("GET "+blob.MediaPrefix+"{name}", local)
	}

	handler := api.Middleware(appLogger, authService.Guard(mux))

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		appLogger.Info("starting gallery server",
			"port", cfg.Port,
			"environment", cfg.Environment,
			"blob_provider", cfg.Blob.Provider,
			"storage_configured", images.Configured(),
			"audit_db", cfg.AuditDBPath,
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		appLogger.Error("shutdown error", "error", err)
	}
	appLogger.Info("server stopped")
}

// newStore returns nil when the provider is not configured. The server still
// starts and the image endpoints report the missing configuration.
func newStore(appLogger *slog.Logger, cfg config.BlobConfig) blob.Store {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	store, err := blob.NewStore(ctx, cfg)
	if err != nil {
		if errors.Is(err, blob.ErrNotConfigured) {
			appLogger.Warn("blob storage not configured", "provider", cfg.Provider, "error", err)
		} else {
			appLogger.Error("failed to initialize blob storage", "provider", cfg.Provider, "error", err)
		}
		return nil
	}
	return store
}

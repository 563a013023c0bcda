// Package main is the entry point for the Folio CMS server. It loads
// configuration, connects to PostgreSQL, Valkey and object storage, and
// serves the REST API and the admin UI with graceful shutdown.
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

	"folio/internal/auth"
	"folio/internal/blocks"
	"folio/internal/cache"
	"folio/internal/config"
	"folio/internal/database"
	"folio/internal/handlers"
	"folio/internal/metrics"
	"folio/internal/middleware"
	"folio/internal/render"
	"folio/internal/router"
	"folio/internal/session"
	"folio/internal/storage"
	"folio/internal/store"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	slog.Info("configuration loaded", "env", cfg.Env, "addr", cfg.Addr())

	ctx := context.Background()
	db, err := database.Connect(ctx, cfg.DSN())
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := database.Migrate(ctx, db); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	valkey, err := cache.ConnectValkey(ctx, cfg.ValkeyHost+":"+cfg.ValkeyPort, cfg.ValkeyPassword)
	if err != nil {
		slog.Error("failed to connect to valkey", "error", err)
		os.Exit(1)
	}
	defer valkey.Close()

	secureCookies := !cfg.IsDev()
	sessions := session.NewStore(valkey, secureCookies)
	pageCache := cache.NewPageCache(valkey, cache.DefaultPageTTL)

	// A nil *storage.Client must not become a non-nil Objects.
	var objects storage.Objects
	bucket, err := storage.New(storage.Options{
		Endpoint:  cfg.S3Endpoint,
		Region:    cfg.S3Region,
		AccessKey: cfg.S3AccessKey,
		SecretKey: cfg.S3SecretKey,
		Bucket:    cfg.S3Bucket,
		PublicURL: cfg.S3PublicURL,
	})
	switch {
	case err != nil:
		slog.Error("failed to initialize S3 storage", "error", err)
		os.Exit(1)
	case bucket != nil:
		objects = bucket
		slog.Info("s3 storage connected", "endpoint", cfg.S3Endpoint, "bucket", cfg.S3Bucket)
	default:
		slog.Warn("s3 storage not configured, media uploads disabled")
	}

	renderer, err := render.New()
	if err != nil {
		slog.Error("failed to initialize template renderer", "error", err)
		os.Exit(1)
	}

	users := store.NewUserStore(db)
	content := handlers.NewContent(
		store.NewPostStore(db),
		store.NewPageStore(db),
		users,
		store.NewMediaStore(db),
		objects,
		pageCache,
	)

	m := metrics.New("cms")
	registry := blocks.Default()
	issuer := auth.NewIssuer(cfg.Secret, cfg.TokenTTL)
	maxUpload := cfg.MaxUploadMiB << 20

	// 30 batches a minute per visitor is well above what site.js sends.
	limiter := middleware.NewRateLimiter(30, time.Minute)
	defer limiter.Stop()

	r := router.New(router.Deps{
		Sessions:      sessions,
		Issuer:        issuer,
		Metrics:       m,
		CORSOrigins:   cfg.AllowedOrigins(),
		SecureCookies: secureCookies,
		EventLimiter:  limiter,
	}, router.Handlers{
		API:       handlers.NewAPI(content, issuer, registry, m, maxUpload),
		Analytics: handlers.NewAnalytics(m),
		Admin:     handlers.NewAdmin(renderer, content, registry, maxUpload),
		Auth:      handlers.NewAuth(renderer, sessions, users),
	})

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	serve(srv)
}

// serve runs srv until SIGINT or SIGTERM, then drains connections for up
// to 30 seconds.
func serve(srv *http.Server) {
	go func() {
		slog.Info("server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("shutdown signal received", "signal", sig)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped gracefully")
}

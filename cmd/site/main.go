// Package main is the entry point for the public site. It renders the home
// page and posts from the CMS API, caches rendered fragments in Valkey and
// keeps serving the last good content while the CMS is down.
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

	"folio/internal/cache"
	"folio/internal/cmsclient"
	"folio/internal/config"
	"folio/internal/metrics"
	"folio/internal/offline"
	"folio/internal/site"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	cfg, err := config.LoadSite()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	slog.Info("configuration loaded", "env", cfg.Env, "addr", cfg.Addr(), "cms", cfg.CMSBaseURL())

	m := metrics.New("site")
	httpClient := cmsclient.NewHTTPClient(cfg.FetchTimeout, m)
	client := cmsclient.New(cfg.CMSBaseURL(), httpClient)

	// The page cache is optional; without Valkey every request renders.
	var pages *cache.PageCache
	valkey, err := cache.ConnectValkey(context.Background(), cfg.ValkeyHost+":"+cfg.ValkeyPort, cfg.ValkeyPassword)
	if err != nil {
		slog.Warn("valkey unavailable, page cache disabled", "error", err)
	} else {
		defer valkey.Close()
		pages = cache.NewPageCache(valkey, cache.DefaultPageTTL)
	}

	s, err := site.New(client, pages, cfg.StaleTTL)
	if err != nil {
		slog.Error("failed to initialize site", "error", err)
		os.Exit(1)
	}

	beacons, err := cmsclient.AnalyticsProxy(cfg.CMSBaseURL(), httpClient.Transport)
	if err != nil {
		slog.Error("failed to initialize analytics proxy", "error", err)
		os.Exit(1)
	}

	r, err := s.Routes(m, offline.Default(), beacons)
	if err != nil {
		slog.Error("failed to build routes", "error", err)
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("site starting", "addr", cfg.Addr())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("site failed to start", "error", err)
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
		slog.Error("site forced to shutdown", "error", err)
		os.Exit(1)
	}
	slog.Info("site stopped gracefully")
}

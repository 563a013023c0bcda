package site

import (
	"fmt"
	"io/fs"
	"net/http"

	"github.com/go-chi/chi/v5"

	"folio/internal/metrics"
	"folio/internal/middleware"
	"folio/internal/offline"
	"folio/web"
)

// Routes returns the public site router. analytics receives the beacons
// posted to /api/analytics; nil disables the endpoint.
func (s *Site) Routes(m *metrics.Metrics, policy *offline.Policy, analytics http.Handler) (chi.Router, error) {
	static, err := fs.Sub(web.StaticFS, "static")
	if err != nil {
		return nil, fmt.Errorf("static assets: %w", err)
	}
	worker, err := policy.Handler()
	if err != nil {
		return nil, fmt.Errorf("service worker: %w", err)
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.Observe(m))
	r.Use(middleware.SecureHeaders)
	r.Use(WithNotices)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})
	r.Method(http.MethodGet, "/metrics", m.Handler())

	r.Method(http.MethodGet, "/sw.js", worker)
	r.Get("/offline.html", serveFile(static, "offline.html"))
	r.Get("/manifest.json", serveFile(static, "manifest.json"))
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServerFS(static)))

	if analytics != nil {
		r.Method(http.MethodPost, "/api/analytics", analytics)
	}

	r.Get("/", s.Home)
	r.Get("/posts/{slug}", s.Post)
	r.NotFound(s.NotFound)
	return r, nil
}

func serveFile(fsys fs.FS, name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		http.ServeFileFS(w, r, fsys, name)
	}
}

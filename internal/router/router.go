// Package router sets up the CMS routes and middleware chains: the REST
// API, the admin UI and the operational endpoints.
package router

import (
	"io/fs"
	"net/http"

	"github.com/go-chi/chi/v5"

	"folio/internal/auth"
	"folio/internal/handlers"
	"folio/internal/metrics"
	"folio/internal/middleware"
	"folio/internal/session"
	"folio/web"
)

// Deps carries the shared services the middleware needs.
type Deps struct {
	Sessions      *session.Store
	Issuer        *auth.Issuer
	Metrics       *metrics.Metrics
	CORSOrigins   []string
	SecureCookies bool
	EventLimiter  *middleware.RateLimiter // nil disables rate limiting
}

// Handlers groups the handler sets mounted by New.
type Handlers struct {
	API       *handlers.API
	Analytics *handlers.Analytics
	Admin     *handlers.Admin
	Auth      *handlers.Auth
}

// New creates the CMS router.
func New(d Deps, h Handlers) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.Observe(d.Metrics))
	r.Use(middleware.SecureHeaders)
	r.Use(middleware.CORS(d.CORSOrigins))
	r.Use(middleware.LoadSession(d.Sessions))

	r.Get("/health", healthHandler)
	r.Method(http.MethodGet, "/metrics", d.Metrics.Handler())

	static, _ := fs.Sub(web.StaticFS, "static")
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServerFS(static)))

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.LoadToken(d.Issuer))

		r.Post("/users/login", h.API.Login)
		r.Get("/users/me", h.API.Me)
		r.Get("/blocks", h.API.Blocks)

		r.Group(func(r chi.Router) {
			if d.EventLimiter != nil {
				r.Use(d.EventLimiter.Middleware)
			}
			r.Post("/analytics", h.Analytics.Collect)
		})

		r.Get("/{collection}", h.API.List)
		r.Get("/{collection}/{id}", h.API.Find)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAPIUser)
			r.Post("/{collection}", h.API.Create)
			r.Patch("/{collection}/{id}", h.API.Update)
			r.Delete("/{collection}/{id}", h.API.Delete)
		})
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(middleware.NewCSRF(d.SecureCookies))

		r.Get("/login", h.Auth.LoginPage)
		r.Post("/login", h.Auth.LoginSubmit)
		r.Post("/logout", h.Auth.Logout)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth)
			r.Get("/2fa", h.Auth.TwoFA)
			r.Post("/2fa", h.Auth.TwoFASubmit)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth)
			r.Use(middleware.Require2FA)

			r.Get("/", h.Admin.Dashboard)

			r.Get("/pages/{id}/layout", h.Admin.LayoutEditor)
			r.Post("/pages/{id}/layout/{op}", h.Admin.LayoutOp)
			r.Post("/users/{id}/reset-2fa", h.Admin.ResetTwoFA)

			r.Get("/{collection}", h.Admin.List)
			r.Post("/{collection}", h.Admin.Save)
			r.Get("/{collection}/new", h.Admin.New)
			r.Get("/{collection}/{id}", h.Admin.Edit)
			r.Post("/{collection}/{id}", h.Admin.Save)
			r.Delete("/{collection}/{id}", h.Admin.Delete)
		})
	})

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/admin", http.StatusFound)
	})

	return r
}

// healthHandler returns a simple JSON health check response.
func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

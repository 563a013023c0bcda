// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"folio/internal/auth"
	"folio/internal/session"
)

type contextKey string

const (
	sessionKey contextKey = "session"
	claimsKey  contextKey = "claims"
	csrfKey    contextKey = "csrf"
)

// LoadSession loads the admin session, if any, into the request context.
// It never rejects a request; RequireAuth does that.
func LoadSession(store *session.Store) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			data, err := store.Get(r.Context(), r)
			if err != nil {
				slog.Warn("load session failed", "error", err)
			}
			if data != nil {
				r = r.WithContext(WithSession(r.Context(), data))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAuth redirects requests without a session to the login page.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if SessionFromCtx(r.Context()) == nil {
			http.Redirect(w, r, "/admin/login", http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Require2FA sends signed-in users who have not passed the second factor
// to the 2FA page.
func Require2FA(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if sess := SessionFromCtx(r.Context()); sess != nil && !sess.TwoFADone {
			http.Redirect(w, r, "/admin/2fa", http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// WithSession returns a copy of ctx carrying data.
func WithSession(ctx context.Context, data *session.Data) context.Context {
	return context.WithValue(ctx, sessionKey, data)
}

// SessionFromCtx returns the admin session, or nil.
func SessionFromCtx(ctx context.Context) *session.Data {
	data, _ := ctx.Value(sessionKey).(*session.Data)
	return data
}

// LoadToken verifies an API token from the Authorization header and puts
// its claims in the request context. Invalid tokens are ignored so that
// public reads keep working; RequireAPIUser rejects the write.
func LoadToken(iss *auth.Issuer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if raw := auth.FromRequest(r); raw != "" {
				claims, err := iss.Parse(raw)
				if err != nil {
					slog.Debug("api token rejected", "error", err)
				} else {
					r = r.WithContext(context.WithValue(r.Context(), claimsKey, claims))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClaimsFromCtx returns the verified API token claims, or nil.
func ClaimsFromCtx(ctx context.Context) *auth.Claims {
	c, _ := ctx.Value(claimsKey).(*auth.Claims)
	return c
}

// RequireAPIUser answers 401 unless the request carries a valid API token
// or a fully authenticated admin session.
func RequireAPIUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ClaimsFromCtx(r.Context()) != nil {
			next.ServeHTTP(w, r)
			return
		}
		if sess := SessionFromCtx(r.Context()); sess != nil && sess.TwoFADone {
			next.ServeHTTP(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"errors":[{"message":"You are not allowed to perform this action."}]}`))
	})
}

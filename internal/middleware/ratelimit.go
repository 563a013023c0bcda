// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package middleware

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

type window struct {
	mu   sync.Mutex
	hits []time.Time
}

// RateLimiter limits requests per client IP over a sliding window.
type RateLimiter struct {
	mu      sync.Mutex
	clients map[string]*window
	limit   int
	period  time.Duration
	stop    chan struct{}
}

// NewRateLimiter allows limit requests per period per client and starts a
// goroutine that forgets idle clients. Call Stop when done.
func NewRateLimiter(limit int, period time.Duration) *RateLimiter {
	rl := &RateLimiter{
		clients: make(map[string]*window),
		limit:   limit,
		period:  period,
		stop:    make(chan struct{}),
	}
	go rl.sweep(5 * time.Minute)
	return rl
}

// Stop ends the cleanup goroutine.
func (rl *RateLimiter) Stop() {
	close(rl.stop)
}

func (rl *RateLimiter) allow(key string) bool {
	rl.mu.Lock()
	win, ok := rl.clients[key]
	if !ok {
		win = &window{}
		rl.clients[key] = win
	}
	rl.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-rl.period)

	win.mu.Lock()
	defer win.mu.Unlock()

	kept := win.hits[:0]
	for _, ts := range win.hits {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	win.hits = kept

	if len(win.hits) >= rl.limit {
		return false
	}
	win.hits = append(win.hits, now)
	return true
}

func (rl *RateLimiter) sweep(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			rl.forgetIdle()
		case <-rl.stop:
			return
		}
	}
}

func (rl *RateLimiter) forgetIdle() {
	cutoff := time.Now().Add(-rl.period)

	rl.mu.Lock()
	defer rl.mu.Unlock()
	for key, win := range rl.clients {
		win.mu.Lock()
		idle := len(win.hits) == 0 || !win.hits[len(win.hits)-1].After(cutoff)
		win.mu.Unlock()
		if idle {
			delete(rl.clients, key)
		}
	}
}

// Middleware answers 429 once a client exceeds the limit.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.allow(ClientIP(r)) {
			w.Header().Set("Retry-After", "60")
			http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ClientIP returns the caller's address. Behind the site's reverse proxy
// that is the last X-Forwarded-For entry, the one the proxy appended;
// earlier entries come from the client and are ignored.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if i := strings.LastIndexByte(xff, ','); i >= 0 {
			xff = xff[i+1:]
		}
		if ip := strings.TrimSpace(xff); ip != "" {
			return ip
		}
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

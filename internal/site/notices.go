package site

import (
	"context"
	"net/http"
	"slices"
	"sync"
)

// Notice is a message shown to the visitor above the page content.
type Notice struct {
	Level   string // "error" or "info"
	Message string
}

// Notices collects the notices raised while handling one request. It
// replaces a page-global toast function: handlers add to it and the
// layout renders what was collected.
type Notices struct {
	mu    sync.Mutex
	items []Notice
}

// Add records a notice. Repeated messages are kept once.
func (n *Notices) Add(level, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if slices.Contains(n.items, Notice{level, message}) {
		return
	}
	n.items = append(n.items, Notice{Level: level, Message: message})
}

// Items returns the collected notices in the order they were added.
func (n *Notices) Items() []Notice {
	n.mu.Lock()
	defer n.mu.Unlock()
	return slices.Clone(n.items)
}

// Empty reports whether nothing was collected.
func (n *Notices) Empty() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.items) == 0
}

type noticesKey struct{}

// WithNotices gives every request its own collector.
func WithNotices(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), noticesKey{}, &Notices{})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// NoticesFrom returns the request's collector. Outside WithNotices it
// returns a fresh one so callers never need a nil check.
func NoticesFrom(ctx context.Context) *Notices {
	if n, ok := ctx.Value(noticesKey{}).(*Notices); ok {
		return n
	}
	return &Notices{}
}

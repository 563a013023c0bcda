package cache

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Stale keeps the last successful value per key in process memory so a
// caller can fall back to it when the source is unreachable.
type Stale[T any] struct {
	c *gocache.Cache
}

// NewStale creates a stale store whose entries expire after ttl.
func NewStale[T any](ttl time.Duration) *Stale[T] {
	return &Stale[T]{c: gocache.New(ttl, ttl/2+time.Minute)}
}

// Remember records v as the latest good value for key.
func (s *Stale[T]) Remember(key string, v T) {
	s.c.SetDefault(key, v)
}

// Recall returns the last value remembered for key.
func (s *Stale[T]) Recall(key string) (T, bool) {
	var zero T
	v, ok := s.c.Get(key)
	if !ok {
		return zero, false
	}
	t, ok := v.(T)
	if !ok {
		return zero, false
	}
	return t, true
}

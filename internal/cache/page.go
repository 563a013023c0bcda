// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package cache

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	pageKeyPrefix = "page:"

	// DefaultPageTTL is how long a rendered page stays cached.
	DefaultPageTTL = 2 * time.Minute
)

// HomeKey is the cache key of the rendered home page.
const HomeKey = "home"

// PostKey returns the cache key of a rendered post page.
func PostKey(slug string) string {
	return "post:" + slug
}

// PageCache stores rendered site pages in Valkey. The site writes to it;
// the CMS removes entries when the content behind them changes. A nil
// *PageCache is valid and caches nothing.
type PageCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewPageCache creates a page cache on client. A zero ttl uses
// DefaultPageTTL.
func NewPageCache(client *redis.Client, ttl time.Duration) *PageCache {
	if ttl <= 0 {
		ttl = DefaultPageTTL
	}
	return &PageCache{client: client, ttl: ttl}
}

// Get returns the cached page for key.
func (pc *PageCache) Get(ctx context.Context, key string) ([]byte, bool) {
	if pc == nil {
		return nil, false
	}
	val, err := pc.client.Get(ctx, pageKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		slog.Warn("page cache get failed", "key", key, "error", err)
		return nil, false
	}
	return val, true
}

// Set stores a rendered page under key.
func (pc *PageCache) Set(ctx context.Context, key string, body []byte) {
	if pc == nil {
		return
	}
	if err := pc.client.Set(ctx, pageKeyPrefix+key, body, pc.ttl).Err(); err != nil {
		slog.Warn("page cache set failed", "key", key, "error", err)
	}
}

// Invalidate removes the given keys.
func (pc *PageCache) Invalidate(ctx context.Context, keys ...string) {
	if pc == nil || len(keys) == 0 {
		return
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = pageKeyPrefix + k
	}
	if err := pc.client.Del(ctx, full...).Err(); err != nil {
		slog.Warn("page cache invalidate failed", "keys", keys, "error", err)
		return
	}
	slog.Debug("page cache invalidated", "keys", keys)
}

// InvalidatePost removes a post page and the home page, which lists
// featured posts.
func (pc *PageCache) InvalidatePost(ctx context.Context, slugs ...string) {
	keys := []string{HomeKey}
	for _, s := range slugs {
		if s != "" {
			keys = append(keys, PostKey(s))
		}
	}
	pc.Invalidate(ctx, keys...)
}

// InvalidateAll removes every cached page.
func (pc *PageCache) InvalidateAll(ctx context.Context) {
	if pc == nil {
		return
	}
	iter := pc.client.Scan(ctx, 0, pageKeyPrefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		slog.Warn("page cache scan failed", "error", err)
		return
	}
	if len(keys) == 0 {
		return
	}
	if err := pc.client.Del(ctx, keys...).Err(); err != nil {
		slog.Warn("page cache clear failed", "error", err)
		return
	}
	slog.Info("page cache cleared", "deleted", len(keys))
}

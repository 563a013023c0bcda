// Package cache holds the caches shared by the CMS and the site: a
// Valkey-backed store of rendered pages and an in-process store of the
// last good upstream responses.
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// ConnectValkey opens a client for addr and pings it once.
func ConnectValkey(ctx context.Context, addr, password string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("valkey ping %s: %w", addr, err)
	}

	slog.Info("valkey connected", "addr", addr)
	return client, nil
}

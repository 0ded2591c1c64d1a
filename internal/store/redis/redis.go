// Package redis is a Redis-backed [store.LiveCache]. Snapshots are stored as
// JSON under one key per session and expire after a fixed TTL, so sessions
// that end without cleanup disappear on their own.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/MrWong99/fluentia/internal/store"
)

// DefaultTTL is used when no TTL is configured.
const DefaultTTL = 30 * time.Minute

const keyPrefix = "fluentia:live:"

// Compile-time interface check.
var _ store.LiveCache = (*Cache)(nil)

// Cache stores live feedback snapshots in Redis. It is safe for concurrent
// use.
type Cache struct {
	client *goredis.Client
	ttl    time.Duration
}

// New wraps an existing client. A ttl of zero selects [DefaultTTL].
func New(client *goredis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{client: client, ttl: ttl}
}

// Open connects to the Redis server described by url, for example
// "redis://localhost:6379/0".
func Open(url string, ttl time.Duration) (*Cache, error) {
	opt, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis cache: parse url: %w", err)
	}
	slog.Info("connecting live cache", "redis", opt.Addr, "db", opt.DB)
	return New(goredis.NewClient(opt), ttl), nil
}

func key(sessionID string) string {
	return keyPrefix + sessionID
}

// PutLive implements [store.LiveCache.PutLive].
func (c *Cache) PutLive(ctx context.Context, snap store.LiveSnapshot) error {
	if snap.UpdatedAt.IsZero() {
		snap.UpdatedAt = time.Now().UTC()
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("redis cache: marshal: %w", err)
	}
	if err := c.client.Set(ctx, key(snap.SessionID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis cache: set %q: %w", snap.SessionID, err)
	}
	return nil
}

// Live implements [store.LiveCache.Live].
func (c *Cache) Live(ctx context.Context, sessionID string) (store.LiveSnapshot, error) {
	b, err := c.client.Get(ctx, key(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return store.LiveSnapshot{}, store.ErrNotFound
		}
		return store.LiveSnapshot{}, fmt.Errorf("redis cache: get %q: %w", sessionID, err)
	}
	var snap store.LiveSnapshot
	if err := json.Unmarshal(b, &snap); err != nil {
		return store.LiveSnapshot{}, fmt.Errorf("redis cache: unmarshal %q: %w", sessionID, err)
	}
	return snap, nil
}

// Ping checks that the server answers.
func (c *Cache) Ping(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis cache: ping: %w", err)
	}
	return nil
}

// Close closes the underlying client.
func (c *Cache) Close() error {
	return c.client.Close()
}

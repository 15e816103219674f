// Package cache provides a short-lived Redis cache for scrape responses.
// Identical queries arriving within the TTL are served from Redis instead of
// re-hitting the job boards. The cache is best-effort: Redis failures degrade
// to cache misses and are logged, never surfaced to callers.
package cache

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultTTL is how long a cached scrape response stays fresh.
const DefaultTTL = 300 * time.Second

// Cache wraps a Redis client for query-response caching. A nil *Cache is a
// valid no-op cache, so callers never have to branch on whether caching is
// configured.
type Cache struct {
	rdb *redis.Client
	ttl time.Duration
}

// New parses redisURL, verifies connectivity, and returns a Cache. An empty
// redisURL returns (nil, nil): caching disabled.
func New(ctx context.Context, redisURL string, ttl time.Duration) (*Cache, error) {
	if redisURL == "" {
		return nil, nil
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("redis.ParseURL(%q): %w", redisURL, err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{rdb: client, ttl: ttl}, nil
}

// Close releases the underlying Redis connection.
func (c *Cache) Close() error {
	if c == nil {
		return nil
	}
	return c.rdb.Close()
}

// Get returns the cached response body for key, or nil on a miss.
func (c *Cache) Get(ctx context.Context, key string) []byte {
	if c == nil {
		return nil
	}
	body, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.Printf("[cache] Get %s: %v", key, err)
		}
		return nil
	}
	return body
}

// Set stores body under key with the configured TTL.
func (c *Cache) Set(ctx context.Context, key string, body []byte) {
	if c == nil {
		return
	}
	if err := c.rdb.Set(ctx, key, body, c.ttl).Err(); err != nil {
		log.Printf("[cache] Set %s: %v", key, err)
	}
}

// Key canonicalizes query parameters into a stable cache key. Parameters are
// sorted by name so equivalent queries with different parameter order hit the
// same entry.
func Key(params map[string]string) string {
	names := make([]string, 0, len(params))
	for name := range params {
		if params[name] == "" {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("scrape:")
	for i, name := range names {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(name)
		b.WriteByte('=')
		b.WriteString(params[name])
	}
	return b.String()
}

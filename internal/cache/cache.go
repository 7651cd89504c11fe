// Package cache implements the Menu Read Cache (C3): a Redis-backed,
// tenant-scoped, version-invalidated cache for catalog reads, adapted from
// developerUdaya-golang-backend-skorpion/pkg/cache/redis.go's degrade-on-
// failure pattern.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/cypherarest/poscore/internal/logger"
)

// TTL bounds staleness in the face of missed invalidations (§4.3).
const TTL = 5 * time.Minute

// Cache wraps a redis.Client. A nil underlying client (construction failure)
// degrades every call to a miss rather than panicking, so callers always
// fall back to the database.
type Cache struct {
	client *redis.Client
}

// New connects to addr and pings it once; on failure it logs and returns a
// Cache that always misses, so the Menu Read Cache degrades to direct DB
// reads per §4.3 rather than failing requests.
func New(addr, password string, db int) *Cache {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("cache unavailable at startup, degrading to direct DB reads", zap.Error(err))
		return &Cache{client: nil}
	}
	return &Cache{client: client}
}

// entry is the envelope stored in Redis: the restaurant-scoped
// catalog_version the payload was computed at, plus the payload itself.
type entry struct {
	CatalogVersion int64           `json:"catalog_version"`
	Payload        json.RawMessage `json:"payload"`
}

// Key builds the cache key `(restaurant_id, entity, optional_filter_hash)`
// named in §4.3.
func Key(restaurantID, entity, filterHash string) string {
	if filterHash == "" {
		return fmt.Sprintf("menu:%s:%s", restaurantID, entity)
	}
	return fmt.Sprintf("menu:%s:%s:%s", restaurantID, entity, filterHash)
}

// Get returns the cached payload only if present and its stored
// catalog_version matches currentVersion (§4.3: "stale entries are ignored
// on read"). ok is false on a miss, a version mismatch, or cache
// unavailability — all three are treated identically by callers.
func (c *Cache) Get(ctx context.Context, key string, currentVersion int64) (payload json.RawMessage, ok bool) {
	if c.client == nil {
		return nil, false
	}

	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			logger.Warn("cache read failed, degrading to direct DB read", zap.Error(err))
		}
		return nil, false
	}

	var e entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, false
	}
	if e.CatalogVersion != currentVersion {
		return nil, false
	}
	return e.Payload, true
}

// Set lazily overwrites the entry at key with payload stamped at
// catalogVersion, bounded by TTL.
func (c *Cache) Set(ctx context.Context, key string, catalogVersion int64, payload json.RawMessage) {
	if c.client == nil {
		return
	}

	raw, err := json.Marshal(entry{CatalogVersion: catalogVersion, Payload: payload})
	if err != nil {
		logger.Warn("cache encode failed", zap.Error(err))
		return
	}
	if err := c.client.Set(ctx, key, raw, TTL).Err(); err != nil {
		logger.Warn("cache write failed, continuing without cache", zap.Error(err))
	}
}

// Available reports whether the cache connection is usable, used by the
// HTTP layer to set the `X-Cache: bypass` response header on degrade (§4.3).
func (c *Cache) Available() bool {
	return c.client != nil
}

func (c *Cache) Close() error {
	if c.client == nil {
		return nil
	}
	return c.client.Close()
}

package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/noah-isme/toko-pricing/internal/obs"
)

const (
	keyPrefix = "catalog:"
	// sharedLoadTimeout bounds a coalesced load once it is detached from the
	// caller that started it.
	sharedLoadTimeout = 5 * time.Second
)

// Cache stores catalog rows in Redis as JSON. Concurrent misses for the same
// key share one load.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	flight singleflight.Group
}

// NewCache constructs a cache helper. A nil client or non-positive ttl disables caching.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

func (c *Cache) enabled() bool {
	return c != nil && c.client != nil && c.ttl > 0
}

// GetJSON decodes the value at key into dst and reports whether it existed.
func (c *Cache) GetJSON(ctx context.Context, key string, dst any) (bool, error) {
	if !c.enabled() || key == "" {
		return false, nil
	}
	data, err := c.client.Get(ctx, key).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return false, nil
	case err != nil:
		return false, err
	}
	return true, json.Unmarshal(data, dst)
}

// SetJSON stores v under key for the configured TTL.
func (c *Cache) SetJSON(ctx context.Context, key string, v any) error {
	if !c.enabled() || key == "" {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, data, c.ttl).Err()
}

// CachedLookup is a read-through cache in front of another Lookup.
// Misses are never cached and cache failures fall through to Next.
type CachedLookup struct {
	Next   Lookup
	Cache  *Cache
	Logger zerolog.Logger
}

// ShopKey returns the cache key for a shop name.
func ShopKey(name string) string { return keyPrefix + "shop:" + name }

// ProductKey returns the cache key for a product id.
func ProductKey(id int64) string { return keyPrefix + "product:" + strconv.FormatInt(id, 10) }

// FindShopByName implements Lookup.
func (c CachedLookup) FindShopByName(ctx context.Context, name string) (Shop, error) {
	return readThrough(ctx, c, "shop", ShopKey(name), func(ctx context.Context) (Shop, error) {
		return c.Next.FindShopByName(ctx, name)
	})
}

// FindProductByID implements Lookup.
func (c CachedLookup) FindProductByID(ctx context.Context, id int64) (Product, error) {
	return readThrough(ctx, c, "product", ProductKey(id), func(ctx context.Context) (Product, error) {
		return c.Next.FindProductByID(ctx, id)
	})
}

func readThrough[T any](ctx context.Context, c CachedLookup, kind, key string, load func(context.Context) (T, error)) (T, error) {
	var cached T
	hit, err := c.Cache.GetJSON(ctx, key, &cached)
	switch {
	case err != nil:
		obs.ObserveCatalogCache(kind, "error")
		c.Logger.Warn().Err(err).Str("key", key).Msg("catalog cache read")
	case hit:
		obs.ObserveCatalogCache(kind, "hit")
		return cached, nil
	default:
		obs.ObserveCatalogCache(kind, "miss")
	}

	if !c.Cache.enabled() {
		return load(ctx)
	}
	// The shared load must not inherit one caller's cancellation; each caller
	// waits on its own context instead.
	ch := c.Cache.flight.DoChan(key, func() (any, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedLoadTimeout)
		defer cancel()
		row, err := load(loadCtx)
		if err != nil {
			return row, err
		}
		if err := c.Cache.SetJSON(loadCtx, key, row); err != nil {
			c.Logger.Warn().Err(err).Str("key", key).Msg("catalog cache write")
		}
		return row, nil
	})
	var zero T
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(T), nil
	}
}

package ratelimit

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	limiter "github.com/ulule/limiter/v3"
	limiterredis "github.com/ulule/limiter/v3/drivers/store/redis"
)

// FixedWindow is a Limiter backed by a ulule/limiter store.
type FixedWindow struct {
	Store limiter.Store
}

// NewFixedWindow builds a FixedWindow over Redis using prefix for its keys.
func NewFixedWindow(client *redis.Client, prefix string) (*FixedWindow, error) {
	if client == nil {
		return nil, errors.New("ratelimit: redis client is required")
	}
	store, err := limiterredis.NewStoreWithOptions(client, limiter.StoreOptions{Prefix: prefix})
	if err != nil {
		return nil, err
	}
	return &FixedWindow{Store: store}, nil
}

// Allow implements Limiter.
func (l *FixedWindow) Allow(ctx context.Context, key string, window time.Duration, max int) (bool, int, time.Time, error) {
	if l == nil || l.Store == nil || max <= 0 || window <= 0 {
		return true, max, time.Now().Add(window), nil
	}
	res, err := l.Store.Get(ctx, key, limiter.Rate{Period: window, Limit: int64(max)})
	if err != nil {
		return false, 0, time.Now().Add(window), err
	}
	return !res.Reached, int(res.Remaining), time.Unix(res.Reset, 0), nil
}

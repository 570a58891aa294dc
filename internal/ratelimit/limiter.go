// Package ratelimit throttles pricing requests per client.
package ratelimit

import (
	"context"
	"time"
)

// Limiter registers one event for key and reports whether it fits in max
// events per window.
type Limiter interface {
	Allow(ctx context.Context, key string, window time.Duration, max int) (allowed bool, remaining int, reset time.Time, err error)
}

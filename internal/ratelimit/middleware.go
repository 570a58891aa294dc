package ratelimit

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/noah-isme/toko-pricing/internal/common"
)

// Config describes how to derive a rate limit key and thresholds.
type Config struct {
	Key    func(*http.Request) string
	Window time.Duration
	Max    int
}

// ByClientIP keys requests by the caller address.
func ByClientIP(prefix string) func(*http.Request) string {
	return func(r *http.Request) string { return prefix + common.ClientIP(r) }
}

// Handler enforces a per-key quota in front of the quote endpoint. A limiter
// error lets the request through and is passed to OnError.
type Handler struct {
	Limiter Limiter
	Config  Config
	OnError func(error)
	Now     func() time.Time
}

// Middleware implements the http.Handler middleware interface.
func (h Handler) Middleware(next http.Handler) http.Handler {
	if h.Limiter == nil || h.Config.Key == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowed, remaining, resetAt, err := h.Limiter.Allow(r.Context(), h.Config.Key(r), h.Config.Window, h.Config.Max)
		if err != nil {
			if h.OnError != nil {
				h.OnError(err)
			}
			next.ServeHTTP(w, r)
			return
		}
		h.annotate(w.Header(), remaining, resetAt)
		if allowed {
			next.ServeHTTP(w, r)
			return
		}
		w.Header().Set("Retry-After", strconv.Itoa(h.retryAfter(resetAt)))
		common.JSONError(w, http.StatusTooManyRequests, "RATE_LIMITED", "rate limit exceeded")
	})
}

func (h Handler) annotate(dst http.Header, remaining int, resetAt time.Time) {
	dst.Set("X-RateLimit-Limit", strconv.Itoa(max(h.Config.Max, 0)))
	dst.Set("X-RateLimit-Remaining", strconv.Itoa(max(remaining, 0)))
	dst.Set("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))
}

// retryAfter rounds up so clients never retry inside the same window.
func (h Handler) retryAfter(resetAt time.Time) int {
	now := time.Now
	if h.Now != nil {
		now = h.Now
	}
	wait := resetAt.Sub(now()).Seconds()
	if wait <= 0 {
		return 0
	}
	return int(math.Ceil(wait))
}

// Package health serves liveness and readiness probes.
package health

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/toko-pricing/internal/common"
)

const (
	defaultDBTimeout    = 500 * time.Millisecond
	defaultRedisTimeout = 300 * time.Millisecond
	statusOK            = "ok"
)

var draining atomic.Bool

// SetReady toggles readiness. The API flips it off before shutting down so
// load balancers stop routing quotes to the instance.
func SetReady(v bool) { draining.Store(!v) }

// Checker represents dependencies that can be probed for readiness.
type Checker interface {
	PingDB(ctx context.Context, timeout time.Duration) error
	PingRedis(ctx context.Context, timeout time.Duration) error
}

// Handler exposes HTTP handlers for health endpoints.
type Handler struct {
	Checker      Checker
	DBTimeout    time.Duration
	RedisTimeout time.Duration
}

// Live reports that the process is serving.
func (Handler) Live(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(statusOK))
}

// Ready probes Postgres and Redis concurrently and answers 503 unless both
// respond.
func (h Handler) Ready(w http.ResponseWriter, r *http.Request) {
	switch {
	case draining.Load():
		common.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "shutting down"})
		return
	case h.Checker == nil:
		common.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "dependencies unavailable"})
		return
	}

	probes := map[string]func(context.Context) error{
		"db": func(ctx context.Context) error {
			return h.Checker.PingDB(ctx, orDefault(h.DBTimeout, defaultDBTimeout))
		},
		"redis": func(ctx context.Context) error {
			return h.Checker.PingRedis(ctx, orDefault(h.RedisTimeout, defaultRedisTimeout))
		},
	}

	var (
		mu     sync.Mutex
		report = make(map[string]string, len(probes))
		code   = http.StatusOK
	)
	var g errgroup.Group
	for name, probe := range probes {
		g.Go(func() error {
			result := statusOK
			if err := probe(r.Context()); err != nil {
				result = err.Error()
			}
			mu.Lock()
			defer mu.Unlock()
			report[name] = result
			if result != statusOK {
				code = http.StatusServiceUnavailable
			}
			return nil
		})
	}
	_ = g.Wait()
	common.JSON(w, code, report)
}

func orDefault(d, fallback time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return fallback
}

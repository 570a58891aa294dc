// Package server assembles the HTTP router for the pricing API.
package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-pricing/internal/auth"
	"github.com/noah-isme/toko-pricing/internal/health"
	"github.com/noah-isme/toko-pricing/internal/obs"
	"github.com/noah-isme/toko-pricing/internal/pricing"
	"github.com/noah-isme/toko-pricing/internal/ratelimit"
	"github.com/noah-isme/toko-pricing/internal/security"
)

// Options carries the handlers and toggles the router is built from.
type Options struct {
	Logger zerolog.Logger

	// Metrics enables request metrics and the /metrics endpoint when set.
	Metrics  *obs.HTTPMetrics
	Gatherer prometheus.Gatherer
	Tracing  bool

	CORSOrigins    []string
	RequestTimeout time.Duration
	BodyLimit      int64
	Headers        security.Headers

	Pricing   *pricing.Handler
	Auth      auth.Middleware
	RateLimit ratelimit.Handler
	Health    health.Handler

	Pprof PprofOptions
}

// NewRouter wires middleware and routes. The discount endpoint is served at
// both /apply-discounts and /api/v1/apply-discounts.
func NewRouter(o Options) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if o.Tracing {
		r.Use(obs.TracingMiddleware)
	}
	if o.Metrics != nil {
		r.Use(obs.HTTPObs{Metrics: o.Metrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: o.Logger, Quiet: []string{"/health/live", "/health/ready", "/metrics"}}.Middleware)
	r.Use(o.Headers.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins(o.CORSOrigins),
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		MaxAge:         300,
	}))

	if o.Metrics != nil {
		gatherer := o.Gatherer
		if gatherer == nil {
			gatherer = prometheus.DefaultGatherer
		}
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}
	if o.Pprof.Enabled {
		r.Mount("/debug/pprof", protectPprof(newPprofMux(), o.Pprof.User, o.Pprof.Pass))
	}
	r.Get("/health/live", o.Health.Live)
	r.Get("/health/ready", o.Health.Ready)

	pricingRoutes := func(pr chi.Router) {
		if o.RequestTimeout > 0 {
			pr.Use(middleware.Timeout(o.RequestTimeout))
		}
		pr.Use(o.RateLimit.Middleware)
		pr.Use(security.BodyLimit{Max: o.BodyLimit}.Middleware)
		pr.Use(o.Auth.RequireAuth)
		pr.Post("/apply-discounts", o.Pricing.ApplyDiscounts)
	}
	r.Group(pricingRoutes)
	r.Route("/api/v1", func(v chi.Router) { v.Group(pricingRoutes) })

	return r
}

func allowedOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}

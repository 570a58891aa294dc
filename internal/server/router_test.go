package server_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-pricing/internal/auth"
	"github.com/noah-isme/toko-pricing/internal/catalog"
	"github.com/noah-isme/toko-pricing/internal/health"
	"github.com/noah-isme/toko-pricing/internal/obs"
	"github.com/noah-isme/toko-pricing/internal/pricing"
	"github.com/noah-isme/toko-pricing/internal/ratelimit"
	"github.com/noah-isme/toko-pricing/internal/security"
	"github.com/noah-isme/toko-pricing/internal/server"
	"github.com/noah-isme/toko-pricing/internal/voucher"
)

const secret = "router-test-secret"

var today = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

type fakeChecker struct{}

func (fakeChecker) PingDB(_ context.Context, _ time.Duration) error    { return nil }
func (fakeChecker) PingRedis(_ context.Context, _ time.Duration) error { return nil }

type harness struct {
	handler http.Handler
	token   string
	mr      *miniredis.Miniredis
}

func newHarness(t *testing.T, mutate func(*server.Options)) harness {
	t.Helper()
	verifier, err := auth.NewVerifier(auth.Config{Secret: secret})
	require.NoError(t, err)
	token, err := verifier.IssueToken("user-1", time.Hour)
	require.NoError(t, err)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	engine := &pricing.Engine{
		Catalog: catalog.NewStatic(
			[]catalog.Shop{{ID: 1, Name: "Acme"}},
			[]catalog.Product{{ID: 1, Price: decimal.NewFromInt(10), MaximumDiscountPercent: decimal.NewFromInt(50)}},
		),
		Discounts: voucher.NewStatic(voucher.Record{
			Code: "SAVE20", Scope: voucher.ScopeProduct, TargetID: 1,
			DiscountPercent: decimal.NewFromInt(20), MinimumAmount: 2, ExpirationDate: today.AddDate(0, 0, 1),
		}),
		Now:      func() time.Time { return today },
		Location: time.UTC,
	}

	registry := prometheus.NewRegistry()
	opts := server.Options{
		Logger:         zerolog.Nop(),
		Metrics:        obs.NewHTTPMetrics("router_test", nil, registry),
		Gatherer:       registry,
		RequestTimeout: time.Second,
		BodyLimit:      1 << 10,
		Headers:        security.Headers{Enable: true},
		Pricing:        &pricing.Handler{Engine: engine, Logger: zerolog.Nop()},
		Auth:           auth.Middleware{Parser: verifier, Logger: zerolog.Nop()},
		RateLimit: ratelimit.Handler{
			Limiter: ratelimit.SlidingWindow{Client: client, Prefix: "test:rl:"},
			Config:  ratelimit.Config{Key: ratelimit.ByClientIP("ip:"), Window: time.Minute, Max: 100},
		},
		Health: health.Handler{Checker: fakeChecker{}},
		Pprof:  server.PprofOptions{Enabled: true, User: "ops", Pass: "hunter2"},
	}
	if mutate != nil {
		mutate(&opts)
	}
	return harness{handler: server.NewRouter(opts), token: token, mr: mr}
}

const cartBody = `{"cart":[{"product_id":1,"shop":"Acme","amount":3,"name":"Widget","image":"w.png"}],"used_discounts":[],"new_discount_code":"SAVE20"}`

func (h harness) apply(t *testing.T, path, body string, authed bool) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "203.0.113.9:5000"
	if authed {
		req.Header.Set("Authorization", "Bearer "+h.token)
	}
	rr := httptest.NewRecorder()
	h.handler.ServeHTTP(rr, req)
	return rr
}

func TestApplyDiscountsRoutes(t *testing.T) {
	h := newHarness(t, nil)
	for _, path := range []string{"/apply-discounts", "/api/v1/apply-discounts"} {
		rr := h.apply(t, path, cartBody, true)
		require.Equal(t, http.StatusOK, rr.Code, path)
		var body map[string]any
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
		require.Equal(t, 24.0, body["discountedTotalPrice"])
		require.Equal(t, 30.0, body["originalTotalPrice"])
		require.Equal(t, "no-store", rr.Header().Get("Cache-Control"))
		require.NotEmpty(t, rr.Header().Get("X-RateLimit-Remaining"))
	}
}

func TestApplyDiscountsRequiresToken(t *testing.T) {
	h := newHarness(t, nil)
	rr := h.apply(t, "/apply-discounts", cartBody, false)
	require.Equal(t, http.StatusUnauthorized, rr.Code)
	require.Contains(t, rr.Body.String(), "UNAUTHORIZED")
}

func TestApplyDiscountsBusinessErrorIs400(t *testing.T) {
	h := newHarness(t, nil)
	rr := h.apply(t, "/apply-discounts", `{"cart":[{"product_id":1,"shop":"Acme","amount":1}],"used_discounts":["SAVE20","SAVE20"]}`, true)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Contains(t, rr.Body.String(), "Cannot use the same discount code more than once")
}

func TestApplyDiscountsBodyLimit(t *testing.T) {
	h := newHarness(t, nil)
	rr := h.apply(t, "/apply-discounts", `{"cart":[{"name":"`+strings.Repeat("x", 2048)+`"}]}`, true)
	require.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
}

func TestApplyDiscountsRateLimited(t *testing.T) {
	h := newHarness(t, func(o *server.Options) { o.RateLimit.Config.Max = 1 })
	require.Equal(t, http.StatusOK, h.apply(t, "/apply-discounts", cartBody, true).Code)
	rr := h.apply(t, "/apply-discounts", cartBody, true)
	require.Equal(t, http.StatusTooManyRequests, rr.Code)
	require.NotEmpty(t, rr.Header().Get("Retry-After"))
}

func TestHealthAndMetricsEndpoints(t *testing.T) {
	h := newHarness(t, nil)

	rr := httptest.NewRecorder()
	h.handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	h.handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	h.apply(t, "/apply-discounts", cartBody, true)
	rr = httptest.NewRecorder()
	h.handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `router_test_http_requests_total{method="POST",route="/apply-discounts",status="200"} 1`)
}

func TestPprofRequiresBasicAuth(t *testing.T) {
	h := newHarness(t, nil)

	rr := httptest.NewRecorder()
	h.handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/debug/pprof/", nil))
	require.Equal(t, http.StatusUnauthorized, rr.Code)

	req := httptest.NewRequest(http.MethodGet, "/debug/pprof/", nil)
	req.SetBasicAuth("ops", "hunter2")
	rr = httptest.NewRecorder()
	h.handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
}

func TestCORSPreflight(t *testing.T) {
	h := newHarness(t, func(o *server.Options) { o.CORSOrigins = []string{"http://shop.example"} })
	req := httptest.NewRequest(http.MethodOptions, "/apply-discounts", nil)
	req.Header.Set("Origin", "http://shop.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr := httptest.NewRecorder()
	h.handler.ServeHTTP(rr, req)
	require.Equal(t, "http://shop.example", rr.Header().Get("Access-Control-Allow-Origin"))
}

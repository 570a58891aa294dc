package obs_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-pricing/internal/common"
	"github.com/noah-isme/toko-pricing/internal/obs"
)

func TestDomainMetricsRecordOutcomes(t *testing.T) {
	obs.MustRegisterDomainMetrics("pricing_test", prometheus.NewRegistry())

	before := testutil.ToFloat64(obs.PricingQuotesTotal.WithLabelValues("ok"))
	obs.ObservePricingQuote("ok")
	obs.ObserveDiscountApplied("shop")
	obs.ObserveAuditEvent("processed")
	require.Equal(t, before+1, testutil.ToFloat64(obs.PricingQuotesTotal.WithLabelValues("ok")))
	require.GreaterOrEqual(t, testutil.ToFloat64(obs.PricingDiscountsApplied.WithLabelValues("shop")), 1.0)
	require.GreaterOrEqual(t, testutil.ToFloat64(obs.AuditEventsTotal.WithLabelValues("processed")), 1.0)
}

func TestRequestLoggerLevelFollowsStatus(t *testing.T) {
	var buf bytes.Buffer
	logger := obs.RequestLogger{Logger: zerolog.New(&buf)}
	handler := logger.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))

	req := httptest.NewRequest(http.MethodPost, "/apply-discounts", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.9")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "warn", entry["level"])
	require.Equal(t, float64(http.StatusBadRequest), entry["status"])
	require.Equal(t, "/apply-discounts", entry["route"])
	require.Equal(t, "203.0.113.9", entry["client_ip"])
	require.Equal(t, "http_request", entry["message"])
}

func TestRequestLoggerRecordsSubjectSetDownstream(t *testing.T) {
	var buf bytes.Buffer
	handler := obs.RequestLogger{Logger: zerolog.New(&buf)}.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = common.WithSubject(r.Context(), "user-42")
		w.WriteHeader(http.StatusOK)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/apply-discounts", nil))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "info", entry["level"])
	require.Equal(t, "user-42", entry["subject"])
}

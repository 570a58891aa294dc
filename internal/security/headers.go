package security

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

const defaultHSTSMaxAge = 365 * 24 * time.Hour

// Headers decorates API responses with hardening headers. HSTS is only sent
// on requests that arrived over TLS, directly or through a proxy that sets
// X-Forwarded-Proto.
type Headers struct {
	Enable                bool
	EnableHSTS            bool
	HSTSMaxAge            int
	HSTSIncludeSubdomains bool
}

// static headers for JSON quote responses. Quotes depend on live discount
// state and must not be cached by intermediaries.
var apiHeaders = [][2]string{
	{"X-Content-Type-Options", "nosniff"},
	{"X-Frame-Options", "DENY"},
	{"Referrer-Policy", "no-referrer"},
	{"Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'"},
	{"Cache-Control", "no-store"},
}

// Middleware adds the configured headers before the next handler runs.
func (h Headers) Middleware(next http.Handler) http.Handler {
	if !h.Enable {
		return next
	}
	hsts := h.hstsValue()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		dst := w.Header()
		for _, kv := range apiHeaders {
			dst.Set(kv[0], kv[1])
		}
		if hsts != "" && isHTTPS(r) {
			dst.Set("Strict-Transport-Security", hsts)
		}
		next.ServeHTTP(w, r)
	})
}

func (h Headers) hstsValue() string {
	if !h.EnableHSTS {
		return ""
	}
	seconds := int64(defaultHSTSMaxAge / time.Second)
	if h.HSTSMaxAge > 0 {
		seconds = int64(h.HSTSMaxAge)
	}
	value := fmt.Sprintf("max-age=%d", seconds)
	if h.HSTSIncludeSubdomains {
		value += "; includeSubDomains"
	}
	return value
}

func isHTTPS(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	return strings.EqualFold(strings.TrimSpace(r.Header.Get("X-Forwarded-Proto")), "https")
}

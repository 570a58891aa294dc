package auth

import (
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-pricing/internal/common"
)

// TokenParser resolves a bearer token to its subject. *Verifier satisfies it.
type TokenParser interface {
	ParseAccessToken(token string) (string, error)
}

// Middleware guards handlers behind a bearer token.
type Middleware struct {
	Parser TokenParser
	Logger zerolog.Logger
}

// RequireAuth rejects requests without a valid bearer token and stores the
// token subject on the request context otherwise.
func (m Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractToken(r)
		if token == "" || m.Parser == nil {
			unauthorized(w)
			return
		}
		subject, err := m.Parser.ParseAccessToken(token)
		if err != nil {
			m.Logger.Debug().Err(err).Str("path", r.URL.Path).Msg("rejected bearer token")
			unauthorized(w)
			return
		}
		next.ServeHTTP(w, r.WithContext(common.WithSubject(r.Context(), subject)))
	})
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="pricing"`)
	common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid token")
}

func extractToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}

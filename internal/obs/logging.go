package obs

import (
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/toko-pricing/internal/common"
)

// NewLogger builds the process logger writing to stdout. Format "console" or
// "text" selects the human readable writer; anything else emits JSON.
func NewLogger(format, level string) zerolog.Logger {
	return newLogger(os.Stdout, format, level)
}

func newLogger(w io.Writer, format, level string) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	switch strings.ToLower(strings.TrimSpace(format)) {
	case "console", "text":
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).With().Timestamp().Logger()
}

// RequestLogger emits one "http_request" line per request. Requests whose
// route is listed in Quiet are logged at debug level unless they fail.
type RequestLogger struct {
	Logger zerolog.Logger
	Quiet  []string
}

// Middleware implements chi middleware for structured request logs. The
// request-scoped logger is stored in the context for zerolog.Ctx.
func (l RequestLogger) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := NewStatusRecorder(w)
		reqLog := l.Logger.With().Str("request_id", middleware.GetReqID(r.Context())).Logger()
		ctx, subject := common.WithSubjectSlot(reqLog.WithContext(r.Context()))

		next.ServeHTTP(rec, r.WithContext(ctx))

		route := routeOf(r, r.URL.Path)
		evt := reqLog.WithLevel(l.level(route, rec.Status())).
			Str("method", r.Method).
			Str("route", route).
			Str("path", r.URL.Path).
			Int("status", rec.Status()).
			Int64("duration_ms", time.Since(start).Milliseconds()).
			Int64("bytes", rec.BytesWritten())
		if sc := trace.SpanContextFromContext(r.Context()); sc.IsValid() {
			evt = evt.Str("trace_id", sc.TraceID().String()).Str("span_id", sc.SpanID().String())
		}
		optional := [][2]string{
			{"subject", *subject},
			{"host", strings.TrimSpace(r.Host)},
			{"client_ip", common.ClientIP(r)},
			{"user_agent", strings.TrimSpace(r.UserAgent())},
		}
		for _, kv := range optional {
			if kv[1] != "" {
				evt = evt.Str(kv[0], kv[1])
			}
		}
		evt.Msg("http_request")
	})
}

func (l RequestLogger) level(route string, status int) zerolog.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return zerolog.ErrorLevel
	case status >= http.StatusBadRequest:
		return zerolog.WarnLevel
	}
	for _, q := range l.Quiet {
		if q == route {
			return zerolog.DebugLevel
		}
	}
	return zerolog.InfoLevel
}

package middleware

import (
	"log/slog"
	"net/http"
	"time"
)

// responseTrace captures the status and body size a handler produced.
type responseTrace struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (t *responseTrace) WriteHeader(code int) {
	t.status = code
	t.ResponseWriter.WriteHeader(code)
}

func (t *responseTrace) Write(p []byte) (int, error) {
	n, err := t.ResponseWriter.Write(p)
	t.bytes += n
	return n, err
}

// RequestLogger logs one line per request. Errors log at error, client
// failures at warn, everything else at info; health probes are demoted to
// debug so uptime checks do not drown the log.
func RequestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			trace := &responseTrace{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(trace, r)

			attrs := []slog.Attr{
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", trace.status),
				slog.Int("bytes", trace.bytes),
				slog.Int64("dur_ms", time.Since(start).Milliseconds()),
				slog.String("ip", RealIP(r)),
			}

			level := slog.LevelInfo
			switch {
			case trace.status >= 500:
				level = slog.LevelError
			case trace.status >= 400:
				level = slog.LevelWarn
			case r.URL.Path == "/health":
				level = slog.LevelDebug
			}
			logger.LogAttrs(r.Context(), level, "request", attrs...)
		})
	}
}

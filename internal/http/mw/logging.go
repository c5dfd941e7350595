package mw

import (
	"log/slog"
	"net/http"
	"time"
)

// loggingResponseWriter wraps http.ResponseWriter to capture the status code.
type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func newLoggingResponseWriter(w http.ResponseWriter) *loggingResponseWriter {
	return &loggingResponseWriter{w, http.StatusOK}
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

// RequestLogging returns a Chi middleware that logs HTTP requests and responses.
func RequestLogging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			lrw := newLoggingResponseWriter(w)
			next.ServeHTTP(lrw, r)

			logger.Debug("http: request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", lrw.statusCode,
				"remote_addr", r.RemoteAddr,
				"duration", time.Since(start),
			)
		})
	}
}

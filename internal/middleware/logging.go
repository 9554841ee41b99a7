// Package middleware holds HTTP middleware shared by all routes.
package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"workflow-engine/internal/common/logging"
)

type contextKey string

const requestIDKey contextKey = "request_id"

// RequestIDHeader carries the per-request correlation id.
const RequestIDHeader = "X-Request-ID"

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// RequestID assigns every request a correlation id, honoring one supplied
// by the caller, and echoes it on the response.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		ctx := context.WithValue(r.Context(), requestIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID returns the correlation id set by RequestID, or "".
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// Logging logs every request with method, path, status and duration.
func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapped := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start)

		fields := []logging.Field{
			{Key: "method", Value: r.Method},
			{Key: "path", Value: r.URL.Path},
			{Key: "status", Value: wrapped.statusCode},
			{Key: "duration_ms", Value: duration.Milliseconds()},
			{Key: "remote_addr", Value: r.RemoteAddr},
		}
		if id := GetRequestID(r.Context()); id != "" {
			fields = append(fields, logging.Field{Key: "request_id", Value: id})
		}
		if r.URL.RawQuery != "" {
			fields = append(fields, logging.Field{Key: "query", Value: r.URL.RawQuery})
		}

		switch {
		case wrapped.statusCode >= 500:
			logging.Error("HTTP request completed", nil, fields...)
		case wrapped.statusCode >= 400:
			logging.Warn("HTTP request completed", fields...)
		default:
			logging.Info("HTTP request completed", fields...)
		}
	})
}

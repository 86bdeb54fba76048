package middleware

import (
	"net/http"
	"time"

	"merchpos/internal/metrics"
)

// Metrics records request counts and latency by route pattern.
// It must wrap the ServeMux so the matched pattern is available after dispatch.
func Metrics(m *metrics.Metrics, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)
		m.ObserveHTTP(r.Method, r.Pattern, wrapped.status, time.Since(start))
	})
}

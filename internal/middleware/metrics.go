package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/larderhq/larder/internal/metrics"
)

// Metrics returns middleware that records request counts, durations, and
// the in-flight gauge for every request.
func Metrics(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			m.RequestStarted()
			defer m.RequestDone()

			next.ServeHTTP(rec, r)

			m.RecordRequest(r.Method, normalizePath(r.URL.Path), rec.status, time.Since(start))
		})
	}
}

// normalizePath collapses per-entity URLs so metric label sets stay bounded.
func normalizePath(path string) string {
	switch {
	case strings.HasPrefix(path, "/items/"):
		if strings.HasSuffix(path, "/edit") {
			return "/items/{id}/edit"
		}
		return "/items/{id}"
	case strings.HasPrefix(path, "/api/v1/items/"):
		return "/api/v1/items/{id}"
	case strings.HasPrefix(path, "/api/push/subscriptions/"):
		return "/api/push/subscriptions/{id}"
	case strings.HasPrefix(path, "/api/backups/"):
		switch path {
		case "/api/backups/status", "/api/backups/run", "/api/backups/passphrase", "/api/backups/settings":
			return path
		}
		if strings.HasSuffix(path, "/restore") {
			return "/api/backups/{id}/restore"
		}
		if strings.HasSuffix(path, "/download") {
			return "/api/backups/{id}/download"
		}
		return "/api/backups/{id}"
	default:
		return path
	}
}

package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"photoshelf/internal/metrics"
)

// MetricsConfig holds configuration for the metrics middleware
type MetricsConfig struct {
	// SkipPaths are path prefixes that are not recorded
	SkipPaths []string
}

// DefaultMetricsConfig leaves out scrapes and probes.
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		SkipPaths: []string{"/metrics", "/health", "/healthz", "/livez", "/readyz"},
	}
}

func (c MetricsConfig) skips(path string) bool {
	for _, prefix := range c.SkipPaths {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// Metrics counts requests and their latency per method, route and status.
func Metrics(config MetricsConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if config.skips(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			metrics.HTTPRequestsInFlight.Inc()
			defer metrics.HTTPRequestsInFlight.Dec()

			rw := newResponseWriter(w)
			start := time.Now()
			next.ServeHTTP(rw, r)

			route := normalizePath(r.URL.Path)
			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rw.statusCode)).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		})
	}
}

// normalizePath turns a request path into a low-cardinality route label.
//
//	/api/photos/0190.../title -> /api/photos/{id}/title
//	/uploads/thumb/ab12.jpeg  -> /uploads/thumb/{file}
func normalizePath(path string) string {
	seg := strings.Split(strings.Trim(path, "/"), "/")

	switch {
	case len(seg) >= 3 && seg[0] == "api" && seg[1] == "photos":
		seg[2] = "{id}"
		seg = seg[:min(len(seg), 4)]
	case len(seg) >= 2 && seg[0] == "uploads":
		seg = append(seg[:min(len(seg)-1, 2)], "{file}")
	case len(seg) > 3:
		seg = append(seg[:3], "{path}")
	}
	return "/" + strings.Join(seg, "/")
}

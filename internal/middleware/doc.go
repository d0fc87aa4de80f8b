// Package middleware wraps the Photoshelf router with access logging in
// W3C Extended Log Format, per-route Prometheus metrics and gzip for API
// responses. Stored photos and archive downloads pass through uncompressed.
package middleware

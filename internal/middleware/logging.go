package middleware

import (
	"log"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// responseWriter records the status and body size for the access log.
type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int64
	wroteHeader  bool
}

func newResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
}

func (rw *responseWriter) WriteHeader(code int) {
	if rw.wroteHeader {
		return
	}
	rw.statusCode = code
	rw.wroteHeader = true
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += int64(n)
	return n, err
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// LoggingConfig holds configuration for the logging middleware
type LoggingConfig struct {
	// SkipPaths are path prefixes that are never logged
	SkipPaths []string
	// SkipExtensions are file extensions skipped unless LogStaticFiles is set
	SkipExtensions  []string
	LogStaticFiles  bool
	LogHealthChecks bool
}

// DefaultLoggingConfig leaves out requests for stored photos and videos,
// which a single gallery page issues by the hundred.
func DefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		SkipExtensions:  []string{".jpg", ".jpeg", ".png", ".gif", ".mp4", ".mov", ".ogv", ".webm", ".ico"},
		LogHealthChecks: true,
	}
}

func (c LoggingConfig) skips(path string) bool {
	for _, prefix := range c.SkipPaths {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	if !c.LogHealthChecks && healthCheckPaths[path] {
		return true
	}
	if c.LogStaticFiles {
		return false
	}
	lower := strings.ToLower(path)
	for _, ext := range c.SkipExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

var healthCheckPaths = map[string]bool{
	"/health":  true,
	"/healthz": true,
	"/livez":   true,
	"/readyz":  true,
}

// accessEntry is one finished request.
type accessEntry struct {
	at       time.Time
	r        *http.Request
	rw       *responseWriter
	duration time.Duration
}

// w3cColumn is one field of the W3C Extended Log Format line.
type w3cColumn struct {
	name  string
	value func(e *accessEntry) string
}

var w3cColumns = []w3cColumn{
	{"date", func(e *accessEntry) string { return e.at.Format("2006-01-02") }},
	{"time", func(e *accessEntry) string { return e.at.Format("15:04:05") }},
	{"c-ip", func(e *accessEntry) string { return sanitizeLogField(getClientIP(e.r)) }},
	{"cs-method", func(e *accessEntry) string { return sanitizeLogField(e.r.Method) }},
	{"cs-uri-stem", func(e *accessEntry) string { return sanitizeLogField(e.r.URL.Path) }},
	{"cs-uri-query", func(e *accessEntry) string { return orDash(sanitizeLogField(e.r.URL.RawQuery)) }},
	{"sc-status", func(e *accessEntry) string { return strconv.Itoa(e.rw.statusCode) }},
	{"sc-bytes", func(e *accessEntry) string { return strconv.FormatInt(e.rw.bytesWritten, 10) }},
	{"cs-bytes", func(e *accessEntry) string { return strconv.FormatInt(max(e.r.ContentLength, 0), 10) }},
	{"time-taken", func(e *accessEntry) string { return strconv.FormatInt(e.duration.Milliseconds(), 10) }},
	{"cs(Content-Encoding)", func(e *accessEntry) string { return orDash(e.rw.Header().Get("Content-Encoding")) }},
	{"cs(User-Agent)", func(e *accessEntry) string {
		return orDash(escapeW3CField(sanitizeLogField(e.r.Header.Get("User-Agent"))))
	}},
	{"cs(Referer)", func(e *accessEntry) string {
		return orDash(escapeW3CField(sanitizeLogField(e.r.Header.Get("Referer"))))
	}},
}

// w3cFields is the #Fields directive matching w3cColumns.
var w3cFields = func() string {
	names := make([]string, len(w3cColumns))
	for i, c := range w3cColumns {
		names[i] = c.name
	}
	return strings.Join(names, " ")
}()

// W3CLogger writes access lines in W3C Extended Log Format
type W3CLogger struct {
	config      LoggingConfig
	serviceName string
}

// NewW3CLogger creates a new W3C format logger
func NewW3CLogger(config LoggingConfig, serviceName string) *W3CLogger {
	return &W3CLogger{config: config, serviceName: serviceName}
}

// writeHeader emits the directives that describe the following lines.
func (l *W3CLogger) writeHeader() {
	log.Printf("#Software: %s", l.serviceName)
	log.Printf("#Fields: %s", w3cFields)
}

func (l *W3CLogger) logRequest(e *accessEntry) {
	fields := make([]string, len(w3cColumns))
	for i, c := range w3cColumns {
		fields[i] = c.value(e)
	}
	// Every request-derived field went through sanitizeLogField.
	log.Println(strings.Join(fields, " ")) //nolint:gosec // G706
}

// Logger returns HTTP logging middleware using W3C Extended Log Format
func Logger(config LoggingConfig) func(http.Handler) http.Handler {
	logger := NewW3CLogger(config, "Photoshelf/1.0")
	logger.writeHeader()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if config.skips(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			rw := newResponseWriter(w)
			next.ServeHTTP(rw, r)

			logger.logRequest(&accessEntry{
				at:       time.Now().UTC(),
				r:        r,
				rw:       rw,
				duration: time.Since(start),
			})
		})
	}
}

// sanitizeLogField keeps client-controlled text from forging log lines:
// newlines become spaces, other control characters except tab are dropped.
func sanitizeLogField(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\n' || r == '\r':
			return ' '
		case r == '\t':
			return r
		case r < 0x20:
			return -1
		}
		return r
	}, s)
}

// getClientIP prefers the proxy headers over the socket address.
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// escapeW3CField quotes values containing whitespace or quotes.
func escapeW3CField(s string) string {
	if !strings.ContainsAny(s, " \t\"") {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

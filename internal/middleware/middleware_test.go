package middleware

import (
	"bytes"
	"compress/gzip"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"photoshelf/internal/metrics"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

// =============================================================================
// Logging Middleware Tests
// =============================================================================

func TestResponseWriterCapturesStatusAndBytes(t *testing.T) {
	w := httptest.NewRecorder()
	rw := newResponseWriter(w)

	if rw.statusCode != http.StatusOK {
		t.Errorf("Expected default status 200, got %d", rw.statusCode)
	}

	rw.WriteHeader(http.StatusCreated)
	rw.WriteHeader(http.StatusInternalServerError)
	if rw.statusCode != http.StatusCreated {
		t.Errorf("Expected first status code to stick, got %d", rw.statusCode)
	}

	n, err := rw.Write([]byte("hello"))
	if err != nil || n != 5 {
		t.Fatalf("Write() = %d, %v", n, err)
	}
	if rw.bytesWritten != 5 {
		t.Errorf("Expected 5 bytes written, got %d", rw.bytesWritten)
	}
}

func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()

	var buf bytes.Buffer
	prevOut, prevFlags := log.Writer(), log.Flags()
	log.SetOutput(&buf)
	log.SetFlags(0)
	t.Cleanup(func() {
		log.SetOutput(prevOut)
		log.SetFlags(prevFlags)
	})
	return &buf
}

func TestLoggerMiddleware(t *testing.T) {
	tests := []struct {
		name          string
		path          string
		config        LoggingConfig
		expectLogging bool
	}{
		{
			name:          "Logs API requests",
			path:          "/api/photos/abc",
			config:        DefaultLoggingConfig(),
			expectLogging: true,
		},
		{
			name:          "Skips stored images by default",
			path:          "/uploads/thumb/abc.jpeg",
			config:        DefaultLoggingConfig(),
			expectLogging: false,
		},
		{
			name:          "Logs stored images when enabled",
			path:          "/uploads/thumb/abc.jpeg",
			config:        LoggingConfig{LogStaticFiles: true, SkipExtensions: []string{".jpeg"}},
			expectLogging: true,
		},
		{
			name:          "Skips health checks when disabled",
			path:          "/health",
			config:        LoggingConfig{LogHealthChecks: false},
			expectLogging: false,
		},
		{
			name:          "Skips configured paths",
			path:          "/metrics",
			config:        LoggingConfig{SkipPaths: []string{"/metrics"}, LogHealthChecks: true},
			expectLogging: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := captureLog(t)

			handler := Logger(tt.config)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte("ok"))
			}))

			req := httptest.NewRequest(http.MethodGet, tt.path, http.NoBody)
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Code != http.StatusOK {
				t.Errorf("Expected status 200, got %d", w.Code)
			}

			logged := strings.Contains(buf.String(), " "+tt.path+" ")
			if logged != tt.expectLogging {
				t.Errorf("Expected logging=%v, got %v; log: %q", tt.expectLogging, logged, buf.String())
			}
			if !strings.Contains(buf.String(), "#Fields: "+w3cFields) {
				t.Error("Expected W3C field directive")
			}
		})
	}
}

func TestLoggerRecordsUploadSize(t *testing.T) {
	buf := captureLog(t)

	handler := Logger(DefaultLoggingConfig())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/photos", strings.NewReader(strings.Repeat("x", 1234)))
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if !strings.Contains(buf.String(), " POST /api/photos - 201 0 1234 ") {
		t.Errorf("Expected status, response and request sizes in log line, got %q", buf.String())
	}
}

func TestSanitizeLogField(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain", "plain"},
		{"line\nbreak", "line break"},
		{"nul\x00byte", "nulbyte"},
		{"\x1b[31mred", "[31mred"},
		{"tab\tkept", "tab\tkept"},
	}
	for _, tt := range tests {
		if got := sanitizeLogField(tt.in); got != tt.want {
			t.Errorf("sanitizeLogField(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestGetClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	req.RemoteAddr = "10.0.0.5:4321"
	if got := getClientIP(req); got != "10.0.0.5" {
		t.Errorf("Expected remote address, got %q", got)
	}

	req.Header.Set("X-Real-IP", "10.0.0.6")
	if got := getClientIP(req); got != "10.0.0.6" {
		t.Errorf("Expected X-Real-IP, got %q", got)
	}

	req.Header.Set("X-Forwarded-For", "192.168.1.1, 10.0.0.1")
	if got := getClientIP(req); got != "192.168.1.1" {
		t.Errorf("Expected first X-Forwarded-For entry, got %q", got)
	}
}

// =============================================================================
// Compression Middleware Tests
// =============================================================================

func TestCompressionMiddleware(t *testing.T) {
	tests := []struct {
		name              string
		path              string
		responseBody      string
		contentType       string
		acceptEncoding    string
		expectCompression bool
	}{
		{
			name:              "Compresses JSON",
			path:              "/api/photos/abc",
			responseBody:      strings.Repeat(`{"key":"value"}`, 200),
			contentType:       "application/json",
			acceptEncoding:    "gzip",
			expectCompression: true,
		},
		{
			name:              "Doesn't compress small responses",
			path:              "/api/photos/abc",
			responseBody:      `{"status":"ok"}`,
			contentType:       "application/json",
			acceptEncoding:    "gzip",
			expectCompression: false,
		},
		{
			name:              "Doesn't compress images",
			path:              "/api/photos/abc",
			responseBody:      strings.Repeat("data", 500),
			contentType:       "image/jpeg",
			acceptEncoding:    "gzip",
			expectCompression: false,
		},
		{
			name:              "Skips stored files",
			path:              "/uploads/big/abc.txt",
			responseBody:      strings.Repeat("text ", 500),
			contentType:       "text/plain",
			acceptEncoding:    "gzip",
			expectCompression: false,
		},
		{
			name:              "Skips downloads",
			path:              "/api/photos/abc/archive",
			responseBody:      strings.Repeat("text ", 500),
			contentType:       "text/plain",
			acceptEncoding:    "gzip",
			expectCompression: false,
		},
		{
			name:              "Respects client without gzip support",
			path:              "/api/photos/abc",
			responseBody:      strings.Repeat(`{"key":"value"}`, 200),
			contentType:       "application/json",
			acceptEncoding:    "",
			expectCompression: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := Compression(DefaultCompressionConfig())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", tt.contentType)
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write([]byte(tt.responseBody))
			}))

			req := httptest.NewRequest(http.MethodGet, tt.path, http.NoBody)
			if tt.acceptEncoding != "" {
				req.Header.Set("Accept-Encoding", tt.acceptEncoding)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Code != http.StatusOK {
				t.Errorf("Expected status 200, got %d", w.Code)
			}

			isCompressed := w.Header().Get("Content-Encoding") == "gzip"
			if isCompressed != tt.expectCompression {
				t.Fatalf("Expected compression=%v, got compression=%v", tt.expectCompression, isCompressed)
			}

			body := w.Body.Bytes()
			if isCompressed {
				gr, err := gzip.NewReader(w.Body)
				if err != nil {
					t.Fatalf("Failed to create gzip reader: %v", err)
				}
				defer gr.Close()
				if body, err = io.ReadAll(gr); err != nil {
					t.Fatalf("Failed to decompress: %v", err)
				}
			}
			if string(body) != tt.responseBody {
				t.Error("Response body doesn't match original")
			}
		})
	}
}

func TestCompressionWithMultipleWrites(t *testing.T) {
	handler := Compression(DefaultCompressionConfig())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		for i := 0; i < 100; i++ {
			_, _ = w.Write([]byte(`{"chunk":"aaaaaaaaaaaaaaaaaaaa"}`))
		}
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/stats", http.NoBody)
	req.Header.Set("Accept-Encoding", "gzip")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Header().Get("Content-Encoding") != "gzip" {
		t.Fatal("Expected gzip encoding")
	}
	gr, err := gzip.NewReader(w.Body)
	if err != nil {
		t.Fatalf("Failed to create gzip reader: %v", err)
	}
	defer gr.Close()
	data, err := io.ReadAll(gr)
	if err != nil {
		t.Fatalf("Failed to decompress: %v", err)
	}
	if len(data) != 100*len(`{"chunk":"aaaaaaaaaaaaaaaaaaaa"}`) {
		t.Errorf("Unexpected decompressed length %d", len(data))
	}
}

// =============================================================================
// Metrics Middleware Tests
// =============================================================================

func TestMetricsMiddleware(t *testing.T) {
	tests := []struct {
		path   string
		status int
	}{
		{"/metrics", http.StatusOK},
		{"/health", http.StatusOK},
		{"/api/photos/abc", http.StatusNotFound},
		{"/api/photos", http.StatusCreated},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			called := false
			handler := Metrics(DefaultMetricsConfig())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				called = true
				w.WriteHeader(tt.status)
			}))

			req := httptest.NewRequest(http.MethodGet, tt.path, http.NoBody)
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if !called {
				t.Error("Expected handler to be called")
			}
			if w.Code != tt.status {
				t.Errorf("Expected status %d, got %d", tt.status, w.Code)
			}
		})
	}
}

func TestMetricsMiddlewareLabelsByRoute(t *testing.T) {
	counter := metrics.HTTPRequestsTotal.WithLabelValues(http.MethodDelete, "/api/photos/{id}", "404")
	before := testutil.ToFloat64(counter)

	handler := Metrics(DefaultMetricsConfig())(http.NotFoundHandler())
	for _, id := range []string{"one", "two"} {
		req := httptest.NewRequest(http.MethodDelete, "/api/photos/"+id, http.NoBody)
		handler.ServeHTTP(httptest.NewRecorder(), req)
	}

	if got := testutil.ToFloat64(counter) - before; got != 2 {
		t.Errorf("Expected both requests under one label, counted %v", got)
	}
}

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		path     string
		expected string
	}{
		{"/", "/"},
		{"/health", "/health"},
		{"/api/photos", "/api/photos"},
		{"/api/photos/0190f1c2-aaaa", "/api/photos/{id}"},
		{"/api/photos/0190f1c2-aaaa/title", "/api/photos/{id}/title"},
		{"/api/photos/0190f1c2-aaaa/archive", "/api/photos/{id}/archive"},
		{"/uploads/thumb/ab12.jpeg", "/uploads/thumb/{file}"},
		{"/uploads/big/ab12.jpg", "/uploads/big/{file}"},
		{"/uploads/stray.txt", "/uploads/{file}"},
		{"/a/b/c/d/e", "/a/b/c/{path}"},
	}

	for _, tt := range tests {
		if got := normalizePath(tt.path); got != tt.expected {
			t.Errorf("normalizePath(%q) = %q, want %q", tt.path, got, tt.expected)
		}
	}
}

func BenchmarkCompressionMiddleware(b *testing.B) {
	body := []byte(strings.Repeat(`{"key":"value"}`, 200))
	handler := Compression(DefaultCompressionConfig())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(body)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/stats", http.NoBody)
	req.Header.Set("Accept-Encoding", "gzip")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		handler.ServeHTTP(httptest.NewRecorder(), req)
	}
}

func TestAcceptsGzip(t *testing.T) {
	tests := []struct {
		header string
		want   bool
	}{
		{"gzip", true},
		{"deflate, gzip;q=0.8", true},
		{"GZIP", true},
		{"gzip;q=0", false},
		{"gzip; q=0.0", false},
		{"br, deflate", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := acceptsGzip(tt.header); got != tt.want {
			t.Errorf("acceptsGzip(%q) = %v, want %v", tt.header, got, tt.want)
		}
	}
}

func TestCompressionKeepsStatusOfEmptyResponse(t *testing.T) {
	handler := Compression(DefaultCompressionConfig())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodDelete, "/api/photos/abc", http.NoBody)
	req.Header.Set("Accept-Encoding", "gzip")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("Expected status 204, got %d", w.Code)
	}
	if w.Header().Get("Content-Encoding") != "" {
		t.Error("Empty response must not be gzipped")
	}
}

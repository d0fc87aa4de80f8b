package middleware

import (
	"compress/gzip"
	"io"
	"mime"
	"net/http"
	"slices"
	"strings"
	"sync"
)

// CompressionConfig holds configuration for the compression middleware
type CompressionConfig struct {
	// MinSize is the smallest body, in bytes, worth compressing
	MinSize int
	// Level is the gzip level (gzip.BestSpeed to gzip.BestCompression)
	Level int
	// CompressibleTypes lists the media types that are compressed
	CompressibleTypes []string
	// SkipPaths are path prefixes that are never compressed
	SkipPaths []string
	// SkipSuffixes are path suffixes that are never compressed
	SkipSuffixes []string
}

// DefaultCompressionConfig compresses API JSON only. Stored photos and
// downloads are already compressed media.
func DefaultCompressionConfig() CompressionConfig {
	return CompressionConfig{
		MinSize: 1024,
		Level:   gzip.DefaultCompression,
		CompressibleTypes: []string{
			"application/json",
			"application/problem+json",
			"text/plain",
			"text/html",
		},
		SkipPaths:    []string{"/uploads/", "/metrics"},
		SkipSuffixes: []string{"/archive"},
	}
}

func (c CompressionConfig) skips(r *http.Request) bool {
	if r.Header.Get("Upgrade") != "" || r.Header.Get("Accept") == "text/event-stream" {
		return true
	}
	for _, prefix := range c.SkipPaths {
		if strings.HasPrefix(r.URL.Path, prefix) {
			return true
		}
	}
	for _, suffix := range c.SkipSuffixes {
		if strings.HasSuffix(r.URL.Path, suffix) {
			return true
		}
	}
	return false
}

// acceptsGzip reports whether Accept-Encoding allows gzip with a non-zero
// quality.
func acceptsGzip(header string) bool {
	for _, part := range strings.Split(header, ",") {
		coding, params, _ := strings.Cut(strings.TrimSpace(part), ";")
		if !strings.EqualFold(strings.TrimSpace(coding), "gzip") {
			continue
		}
		q := strings.ReplaceAll(strings.TrimSpace(params), " ", "")
		return q != "q=0" && q != "q=0.0" && q != "q=0.00" && q != "q=0.000"
	}
	return false
}

var gzipPools sync.Map // level -> *sync.Pool

func gzipPool(level int) *sync.Pool {
	if p, ok := gzipPools.Load(level); ok {
		return p.(*sync.Pool)
	}
	p, _ := gzipPools.LoadOrStore(level, &sync.Pool{
		New: func() interface{} {
			w, err := gzip.NewWriterLevel(io.Discard, level)
			if err != nil {
				w = gzip.NewWriter(io.Discard)
			}
			return w
		},
	})
	return p.(*sync.Pool)
}

type compressState int

const (
	statePending compressState = iota
	statePlain
	stateGzip
)

// compressWriter holds the first MinSize bytes back until it knows whether
// the response is worth compressing.
type compressWriter struct {
	http.ResponseWriter
	config  CompressionConfig
	state   compressState
	status  int
	pending []byte
	gz      *gzip.Writer
}

func newCompressWriter(w http.ResponseWriter, config CompressionConfig) *compressWriter {
	return &compressWriter{ResponseWriter: w, config: config, status: http.StatusOK}
}

func (c *compressWriter) WriteHeader(status int) {
	if c.state == statePending {
		c.status = status
	}
}

func (c *compressWriter) Write(p []byte) (int, error) {
	switch c.state {
	case stateGzip:
		return c.gz.Write(p)
	case statePlain:
		return c.ResponseWriter.Write(p)
	}

	c.pending = append(c.pending, p...)
	if len(c.pending) <= c.config.MinSize {
		return len(p), nil
	}
	if err := c.decide(); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (c *compressWriter) compressible() bool {
	mediaType, _, err := mime.ParseMediaType(c.Header().Get("Content-Type"))
	if err != nil {
		return false
	}
	return slices.Contains(c.config.CompressibleTypes, mediaType)
}

// decide picks plain or gzip output and flushes what was held back.
func (c *compressWriter) decide() error {
	h := c.Header()
	if len(c.pending) >= c.config.MinSize && h.Get("Content-Encoding") == "" && c.compressible() {
		c.state = stateGzip
		h.Del("Content-Length")
		h.Set("Content-Encoding", "gzip")
		h.Add("Vary", "Accept-Encoding")
		c.gz = gzipPool(c.config.Level).Get().(*gzip.Writer)
		c.gz.Reset(c.ResponseWriter)
		c.ResponseWriter.WriteHeader(c.status)
	} else {
		c.state = statePlain
		c.ResponseWriter.WriteHeader(c.status)
	}

	pending := c.pending
	c.pending = nil
	if len(pending) == 0 {
		return nil
	}
	if c.state == stateGzip {
		_, err := c.gz.Write(pending)
		return err
	}
	_, err := c.ResponseWriter.Write(pending)
	return err
}

// Close writes anything still held back and returns the gzip writer to
// its pool.
func (c *compressWriter) Close() error {
	if c.state == statePending {
		if err := c.decide(); err != nil {
			return err
		}
	}
	if c.gz == nil {
		return nil
	}
	err := c.gz.Close()
	gzipPool(c.config.Level).Put(c.gz)
	c.gz = nil
	return err
}

// Flush implements http.Flusher
func (c *compressWriter) Flush() {
	if c.state == statePending {
		_ = c.decide()
	}
	if c.gz != nil {
		_ = c.gz.Flush()
	}
	if f, ok := c.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Compression returns a middleware that gzips compressible responses for
// clients that accept it.
func Compression(config CompressionConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !acceptsGzip(r.Header.Get("Accept-Encoding")) || config.skips(r) {
				next.ServeHTTP(w, r)
				return
			}

			cw := newCompressWriter(w, config)
			defer func() { _ = cw.Close() }()
			next.ServeHTTP(cw, r)
		})
	}
}

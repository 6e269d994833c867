package middleware

import (
	"bytes"
	"compress/gzip"
	"io"
	"net/http"
	"strings"
	"sync"
)

// GzipConfig holds response compression configuration
type GzipConfig struct {
	Enabled       bool
	MinLength     int // bytes; smaller bodies are sent as-is
	Level         int // 1-9
	ExcludedPaths []string
}

// DefaultGzipConfig compresses JSON listings such as callback histories
func DefaultGzipConfig() *GzipConfig {
	return &GzipConfig{
		Enabled:       true,
		MinLength:     1024,
		Level:         gzip.DefaultCompression,
		ExcludedPaths: []string{"/metrics", "/health"},
	}
}

// Gzip compresses JSON responses for clients that accept it
type Gzip struct {
	config  *GzipConfig
	writers sync.Pool
}

// NewGzip creates a new Gzip middleware
func NewGzip(cfg *GzipConfig) *Gzip {
	if cfg == nil {
		cfg = DefaultGzipConfig()
	}
	level := cfg.Level
	if level != gzip.DefaultCompression && (level < gzip.BestSpeed || level > gzip.BestCompression) {
		level = gzip.DefaultCompression
	}

	g := &Gzip{config: cfg}
	g.writers.New = func() interface{} {
		w, err := gzip.NewWriterLevel(io.Discard, level)
		if err != nil {
			return nil
		}
		return w
	}
	return g
}

// bufferedWriter holds the body until the handler returns so the size
// threshold can be applied
type bufferedWriter struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (b *bufferedWriter) WriteHeader(code int) {
	if b.status == 0 {
		b.status = code
	}
}

func (b *bufferedWriter) Write(p []byte) (int, error) {
	return b.body.Write(p)
}

func isJSON(contentType string) bool {
	if idx := strings.Index(contentType, ";"); idx != -1 {
		contentType = contentType[:idx]
	}
	return strings.EqualFold(strings.TrimSpace(contentType), "application/json")
}

func (g *Gzip) finish(bw *bufferedWriter) error {
	w := bw.ResponseWriter
	status := bw.status
	if status == 0 {
		status = http.StatusOK
	}
	data := bw.body.Bytes()

	if len(data) < g.config.MinLength || !isJSON(w.Header().Get("Content-Type")) {
		w.WriteHeader(status)
		_, err := w.Write(data)
		return err
	}

	zw, ok := g.writers.Get().(*gzip.Writer)
	if !ok || zw == nil {
		w.WriteHeader(status)
		_, err := w.Write(data)
		return err
	}
	defer func() {
		zw.Reset(io.Discard)
		g.writers.Put(zw)
	}()

	w.Header().Set("Content-Encoding", "gzip")
	w.Header().Del("Content-Length")
	w.Header().Add("Vary", "Accept-Encoding")
	w.WriteHeader(status)

	zw.Reset(w)
	if _, err := zw.Write(data); err != nil {
		return err
	}
	return zw.Close()
}

// Middleware returns the gzip compression middleware handler
func (g *Gzip) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !g.config.Enabled || !strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
			next.ServeHTTP(w, r)
			return
		}
		for _, path := range g.config.ExcludedPaths {
			if strings.HasPrefix(r.URL.Path, path) {
				next.ServeHTTP(w, r)
				return
			}
		}

		bw := &bufferedWriter{ResponseWriter: w}
		next.ServeHTTP(bw, r)
		//nolint:errcheck // client went away; nothing left to report to
		_ = g.finish(bw)
	})
}

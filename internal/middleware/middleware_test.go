package middleware

import (
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/thenexusengine/tne_adtalos/pkg/logger"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestSizeLimiter(t *testing.T) {
	sl := NewSizeLimiter(&SizeLimitConfig{Enabled: true, MaxBodySize: 16, MaxURLLength: 40})
	handler := sl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := io.ReadAll(r.Body); err != nil {
			http.Error(w, err.Error(), http.StatusRequestEntityTooLarge)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name     string
		url      string
		body     string
		expected int
	}{
		{"small request", "/v1/ads/load", `{"a":1}`, http.StatusOK},
		{"long url", "/v1/ads?placement_id=" + strings.Repeat("x", 40), "", http.StatusRequestURITooLong},
		{"large body", "/v1/ads/load", strings.Repeat("x", 17), http.StatusRequestEntityTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, tt.url, strings.NewReader(tt.body))
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)
			if rr.Code != tt.expected {
				t.Errorf("Expected status %d, got %d", tt.expected, rr.Code)
			}
		})
	}
}

func TestSizeLimiter_ChunkedBodyCapped(t *testing.T) {
	sl := NewSizeLimiter(&SizeLimitConfig{Enabled: true, MaxBodySize: 8, MaxURLLength: 100})
	var readErr error
	handler := sl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, readErr = io.ReadAll(r.Body)
	}))

	req := httptest.NewRequest(http.MethodPost, "/v1/ads/load", strings.NewReader(strings.Repeat("x", 32)))
	req.ContentLength = -1
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if readErr == nil {
		t.Error("Expected reading an oversized chunked body to fail")
	}
}

func TestSizeLimiter_Disabled(t *testing.T) {
	sl := NewSizeLimiter(nil)
	sl.SetEnabled(false)
	sl.SetMaxBodySize(1)

	req := httptest.NewRequest(http.MethodPost, "/v1/ads/load", strings.NewReader("larger than one byte"))
	rr := httptest.NewRecorder()
	sl.Middleware(okHandler).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("Expected status 200 when disabled, got %d", rr.Code)
	}
	if cfg := sl.GetConfig(); cfg.MaxBodySize != 1 || cfg.Enabled {
		t.Errorf("Expected updated config, got %+v", cfg)
	}
}

type failureCounter struct{ n int }

func (f *failureCounter) IncAuthFailures() { f.n++ }

func TestAuth(t *testing.T) {
	auth := NewAuth(&AuthConfig{
		Enabled:     true,
		APIKeys:     ParseAPIKeys(" key-1 ,, key-2 "),
		BypassPaths: []string{"/health"},
	})
	failures := &failureCounter{}
	auth.SetMetrics(failures)
	handler := auth.Middleware(okHandler)

	tests := []struct {
		name     string
		path     string
		header   string
		value    string
		expected int
	}{
		{"valid key", "/v1/ads/load", "X-API-Key", "key-2", http.StatusOK},
		{"bearer token", "/v1/ads/load", "Authorization", "Bearer key-1", http.StatusOK},
		{"missing key", "/v1/ads/load", "", "", http.StatusUnauthorized},
		{"wrong key", "/v1/ads/load", "X-API-Key", "nope", http.StatusForbidden},
		{"bypass path", "/health", "", "", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, tt.path, nil)
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)
			if rr.Code != tt.expected {
				t.Errorf("Expected status %d, got %d", tt.expected, rr.Code)
			}
		})
	}

	if failures.n != 2 {
		t.Errorf("Expected 2 auth failures, got %d", failures.n)
	}
}

func TestAuth_DisabledByDefault(t *testing.T) {
	auth := NewAuth(nil)
	if auth.IsEnabled() {
		t.Fatal("Expected auth to be disabled by default")
	}

	rr := httptest.NewRecorder()
	auth.Middleware(okHandler).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/destroy", nil))
	if rr.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rr.Code)
	}
}

func TestParseAPIKeys_Empty(t *testing.T) {
	if keys := ParseAPIKeys(""); len(keys) != 0 {
		t.Errorf("Expected no keys, got %v", keys)
	}
}

func TestRequestLog(t *testing.T) {
	logger.Init(logger.Config{Level: "error"})

	var seen string
	handler := RequestLog(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = r.Context().Value(logger.RequestIDKey).(string)
		w.WriteHeader(http.StatusAccepted)
	}))

	t.Run("generates id", func(t *testing.T) {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/ads", nil))
		id := rr.Header().Get(RequestIDHeader)
		if id == "" || id != seen {
			t.Errorf("Expected generated id on response and context, got %q / %q", id, seen)
		}
		if rr.Code != http.StatusAccepted {
			t.Errorf("Expected status 202, got %d", rr.Code)
		}
	})

	t.Run("keeps caller id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/v1/ads", nil)
		req.Header.Set(RequestIDHeader, "req-42")
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		if rr.Header().Get(RequestIDHeader) != "req-42" || seen != "req-42" {
			t.Errorf("Expected caller id to be kept, got %q", rr.Header().Get(RequestIDHeader))
		}
	})
}

func TestGzip(t *testing.T) {
	body := `{"callbacks":"` + strings.Repeat("loaded,", 400) + `"}`
	jsonHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		io.WriteString(w, body)
	})
	g := NewGzip(nil)
	handler := g.Middleware(jsonHandler)

	t.Run("compresses large json", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/v1/callbacks", nil)
		req.Header.Set("Accept-Encoding", "gzip")
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		if rr.Header().Get("Content-Encoding") != "gzip" {
			t.Fatal("Expected gzip encoding")
		}
		zr, err := gzip.NewReader(rr.Body)
		if err != nil {
			t.Fatalf("Failed to open gzip body: %v", err)
		}
		decoded, err := io.ReadAll(zr)
		if err != nil {
			t.Fatalf("Failed to read gzip body: %v", err)
		}
		if string(decoded) != body {
			t.Error("Expected decoded body to match")
		}
	})

	t.Run("skips clients without gzip", func(t *testing.T) {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/callbacks", nil))
		if rr.Header().Get("Content-Encoding") != "" || rr.Body.String() != body {
			t.Error("Expected plain response")
		}
	})

	t.Run("skips small bodies", func(t *testing.T) {
		small := g.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			io.WriteString(w, `{"ok":true}`)
		}))
		req := httptest.NewRequest(http.MethodGet, "/v1/version", nil)
		req.Header.Set("Accept-Encoding", "gzip")
		rr := httptest.NewRecorder()
		small.ServeHTTP(rr, req)
		if rr.Header().Get("Content-Encoding") != "" || rr.Body.String() != `{"ok":true}` {
			t.Error("Expected small body to pass through uncompressed")
		}
		if rr.Code != http.StatusOK {
			t.Errorf("Expected status 200, got %d", rr.Code)
		}
	})
}

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type rejectCounter struct{ n int }

func (r *rejectCounter) IncRateLimitRejected() { r.n++ }

func newTestLimiter(rps, burst int) *RateLimiter {
	return NewRateLimiter(&RateLimitConfig{
		Enabled:           true,
		RequestsPerSecond: rps,
		BurstSize:         burst,
		Paths:             []string{"/v1/ads/load"},
	})
}

func TestRateLimiter_RejectsAfterBurst(t *testing.T) {
	rl := newTestLimiter(1, 2)
	defer rl.Stop()
	counter := &rejectCounter{}
	rl.SetMetrics(counter)
	handler := rl.Middleware(okHandler)

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/ads/load", nil))
		codes = append(codes, rr.Code)
		if i == 2 {
			if rr.Header().Get("Retry-After") != "1" || rr.Header().Get("X-RateLimit-Remaining") != "0" {
				t.Errorf("Expected rate limit headers, got %v", rr.Header())
			}
			if rr.Header().Get("Content-Type") != "application/json" {
				t.Errorf("Expected JSON error, got %q", rr.Header().Get("Content-Type"))
			}
		}
	}

	expected := []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}
	for i := range expected {
		if codes[i] != expected[i] {
			t.Errorf("Request %d: expected status %d, got %d", i, expected[i], codes[i])
		}
	}
	if counter.n != 1 {
		t.Errorf("Expected 1 rejection recorded, got %d", counter.n)
	}
}

func TestRateLimiter_OnlyLimitsConfiguredPaths(t *testing.T) {
	rl := newTestLimiter(1, 1)
	defer rl.Stop()
	handler := rl.Middleware(okHandler)

	for i := 0; i < 5; i++ {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/callbacks", nil))
		if rr.Code != http.StatusOK {
			t.Fatalf("Expected unlimited path to pass, got %d", rr.Code)
		}
	}
	if rl.Clients() != 0 {
		t.Errorf("Expected no buckets for unlimited paths, got %d", rl.Clients())
	}
}

func TestRateLimiter_SeparateClients(t *testing.T) {
	rl := newTestLimiter(1, 1)
	defer rl.Stop()
	handler := rl.Middleware(okHandler)

	send := func(remote, key string) int {
		req := httptest.NewRequest(http.MethodPost, "/v1/ads/load", nil)
		req.RemoteAddr = remote
		if key != "" {
			req.Header.Set("X-API-Key", key)
		}
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		return rr.Code
	}

	if send("10.0.0.1:1000", "") != http.StatusOK || send("10.0.0.2:1000", "") != http.StatusOK {
		t.Fatal("Expected first request from each address to pass")
	}
	if send("10.0.0.1:2000", "") != http.StatusTooManyRequests {
		t.Error("Expected the same address on another port to share a bucket")
	}
	if send("10.0.0.1:1000", "key-a") != http.StatusOK {
		t.Error("Expected an API key to get its own bucket")
	}
	if rl.Clients() != 3 {
		t.Errorf("Expected 3 tracked clients, got %d", rl.Clients())
	}
}

func TestRateLimiter_Disabled(t *testing.T) {
	rl := newTestLimiter(1, 1)
	defer rl.Stop()
	rl.SetEnabled(false)
	handler := rl.Middleware(okHandler)

	for i := 0; i < 3; i++ {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/ads/load", nil))
		if rr.Code != http.StatusOK {
			t.Fatalf("Expected disabled limiter to pass, got %d", rr.Code)
		}
	}
}

func TestRateLimiter_EvictIdle(t *testing.T) {
	rl := NewRateLimiter(&RateLimitConfig{Enabled: true, RequestsPerSecond: 1, BurstSize: 1, IdleTTL: time.Minute})
	defer rl.Stop()

	now := time.Now()
	rl.allow("a", now.Add(-2*time.Minute))
	rl.allow("b", now)
	rl.evictIdle(now)

	if rl.Clients() != 1 {
		t.Errorf("Expected the idle client to be evicted, got %d clients", rl.Clients())
	}
}

func TestRateLimiter_ClientID(t *testing.T) {
	rl := NewRateLimiter(&RateLimitConfig{
		Enabled:        true,
		TrustedProxies: ParseTrustedProxies("10.0.0.0/8, 192.168.1.1"),
	})
	defer rl.Stop()

	tests := []struct {
		name     string
		remote   string
		headers  map[string]string
		expected string
	}{
		{"direct client", "203.0.113.5:443", nil, "203.0.113.5"},
		{"untrusted peer ignores xff", "203.0.113.5:443", map[string]string{"X-Forwarded-For": "1.2.3.4"}, "203.0.113.5"},
		{"trusted proxy uses xff", "10.1.2.3:443", map[string]string{"X-Forwarded-For": "1.2.3.4"}, "1.2.3.4"},
		{"rightmost untrusted hop", "10.1.2.3:443", map[string]string{"X-Forwarded-For": "9.9.9.9, 1.2.3.4, 192.168.1.1"}, "1.2.3.4"},
		{"real ip fallback", "192.168.1.1:80", map[string]string{"X-Real-IP": "5.6.7.8"}, "5.6.7.8"},
		{"ipv6 peer", "[2001:db8::1]:443", nil, "2001:db8::1"},
		{"api key wins", "203.0.113.5:443", map[string]string{"X-API-Key": "k"}, "key:k"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/v1/ads/load", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			if got := rl.clientID(req); got != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestParseTrustedProxies(t *testing.T) {
	nets := ParseTrustedProxies("10.0.0.0/8, 192.168.1.1, ::1, not-an-ip,")
	if len(nets) != 3 {
		t.Fatalf("Expected 3 networks, got %d", len(nets))
	}
	if ones, _ := nets[1].Mask.Size(); ones != 32 {
		t.Errorf("Expected a /32 for a bare IPv4 address, got /%d", ones)
	}
	if ones, _ := nets[2].Mask.Size(); ones != 128 {
		t.Errorf("Expected a /128 for a bare IPv6 address, got /%d", ones)
	}
}

package middleware

import (
	"net/http"
	"sync"

	"github.com/thenexusengine/tne_adtalos/internal/config"
)

// SizeLimitConfig holds request size limit configuration
type SizeLimitConfig struct {
	Enabled      bool
	MaxBodySize  int64 // bytes
	MaxURLLength int
}

// DefaultSizeLimitConfig returns limits sized for control-plane JSON bodies
func DefaultSizeLimitConfig() *SizeLimitConfig {
	return &SizeLimitConfig{
		Enabled:      true,
		MaxBodySize:  config.DefaultMaxBodySize,
		MaxURLLength: config.DefaultMaxURLLength,
	}
}

// SizeLimiter rejects oversized URLs and bodies
type SizeLimiter struct {
	config *SizeLimitConfig
	mu     sync.RWMutex
}

// NewSizeLimiter creates a new size limiter
func NewSizeLimiter(cfg *SizeLimitConfig) *SizeLimiter {
	if cfg == nil {
		cfg = DefaultSizeLimitConfig()
	}
	return &SizeLimiter{config: cfg}
}

// Middleware returns the size limiting middleware handler
func (sl *SizeLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sl.mu.RLock()
		enabled := sl.config.Enabled
		maxURLLength := sl.config.MaxURLLength
		maxBodySize := sl.config.MaxBodySize
		sl.mu.RUnlock()

		if !enabled {
			next.ServeHTTP(w, r)
			return
		}

		if len(r.URL.String()) > maxURLLength {
			writeError(w, http.StatusRequestURITooLong, "URL too long")
			return
		}

		if r.ContentLength > maxBodySize {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}

		// Chunked bodies carry no Content-Length; cap the reader as well
		if r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
		}

		next.ServeHTTP(w, r)
	})
}

// SetMaxBodySize sets the max body size
func (sl *SizeLimiter) SetMaxBodySize(size int64) {
	sl.mu.Lock()
	defer sl.mu.Unlock()
	sl.config.MaxBodySize = size
}

// SetEnabled enables or disables size limiting
func (sl *SizeLimiter) SetEnabled(enabled bool) {
	sl.mu.Lock()
	defer sl.mu.Unlock()
	sl.config.Enabled = enabled
}

// GetConfig returns a copy of the current configuration
func (sl *SizeLimiter) GetConfig() SizeLimitConfig {
	sl.mu.RLock()
	defer sl.mu.RUnlock()
	return *sl.config
}

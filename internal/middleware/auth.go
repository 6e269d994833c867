// Package middleware provides HTTP middleware for the bridge control plane
package middleware

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
	"sync"

	"github.com/thenexusengine/tne_adtalos/pkg/logger"
)

// AuthConfig holds control-plane authentication configuration
type AuthConfig struct {
	Enabled     bool
	APIKeys     []string
	HeaderName  string   // default X-API-Key
	BypassPaths []string // path prefixes served without a key
}

// DefaultAuthConfig returns a disabled config that bypasses health and metrics
func DefaultAuthConfig() *AuthConfig {
	return &AuthConfig{
		HeaderName:  "X-API-Key",
		BypassPaths: []string{"/health", "/metrics", "/v1/version"},
	}
}

// ParseAPIKeys splits a comma-separated key list, ignoring blanks
func ParseAPIKeys(value string) []string {
	var keys []string
	for _, k := range strings.Split(value, ",") {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}

// AuthMetrics counts rejected requests
type AuthMetrics interface {
	IncAuthFailures()
}

// Auth provides API key authentication middleware
type Auth struct {
	mu      sync.RWMutex
	config  *AuthConfig
	metrics AuthMetrics
}

// NewAuth creates a new Auth middleware
func NewAuth(cfg *AuthConfig) *Auth {
	if cfg == nil {
		cfg = DefaultAuthConfig()
	}
	if cfg.HeaderName == "" {
		cfg.HeaderName = "X-API-Key"
	}
	return &Auth{config: cfg}
}

// SetMetrics sets the failure counter
func (a *Auth) SetMetrics(m AuthMetrics) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.metrics = m
}

// Middleware returns the authentication middleware handler
func (a *Auth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		a.mu.RLock()
		enabled := a.config.Enabled
		bypassPaths := a.config.BypassPaths
		headerName := a.config.HeaderName
		a.mu.RUnlock()

		if !enabled {
			next.ServeHTTP(w, r)
			return
		}

		for _, path := range bypassPaths {
			if strings.HasPrefix(r.URL.Path, path) {
				next.ServeHTTP(w, r)
				return
			}
		}

		apiKey := r.Header.Get(headerName)
		if apiKey == "" {
			if authHeader := r.Header.Get("Authorization"); strings.HasPrefix(authHeader, "Bearer ") {
				apiKey = strings.TrimPrefix(authHeader, "Bearer ")
			}
		}

		if apiKey == "" {
			a.recordFailure(r, "missing")
			writeError(w, http.StatusUnauthorized, "missing API key")
			return
		}
		if !a.valid(apiKey) {
			a.recordFailure(r, "invalid")
			writeError(w, http.StatusForbidden, "invalid API key")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// valid compares against every key in constant time
func (a *Auth) valid(key string) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	ok := false
	for _, k := range a.config.APIKeys {
		if subtle.ConstantTimeCompare([]byte(k), []byte(key)) == 1 {
			ok = true
		}
	}
	return ok
}

func (a *Auth) recordFailure(r *http.Request, reason string) {
	logger.HTTP().Warn().Str("path", r.URL.Path).Str("reason", reason).Msg("control plane auth failed")
	a.mu.RLock()
	m := a.metrics
	a.mu.RUnlock()
	if m != nil {
		m.IncAuthFailures()
	}
}

// SetEnabled enables or disables authentication
func (a *Auth) SetEnabled(enabled bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.config.Enabled = enabled
}

// IsEnabled reports whether authentication is enforced
func (a *Auth) IsEnabled() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.config.Enabled
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck // status already written
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

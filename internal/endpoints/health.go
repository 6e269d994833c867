package endpoints

import (
	"context"
	"net/http"
	"time"
)

// CheckFunc verifies one dependency. A nil CheckFunc marks it disabled.
type CheckFunc func(ctx context.Context) error

// Check is a named readiness dependency
type Check struct {
	Name string
	Fn   CheckFunc
}

// HealthHandler returns a simple liveness check
func HealthHandler(version string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status":    "healthy",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"version":   version,
		})
	})
}

// ReadyHandler runs every check and answers 503 when any of them fails
func ReadyHandler(timeout time.Duration, checks ...Check) http.Handler {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		results := make(map[string]interface{}, len(checks))
		allHealthy := true

		for _, c := range checks {
			if c.Fn == nil {
				results[c.Name] = map[string]interface{}{"status": "disabled"}
				continue
			}
			if err := c.Fn(ctx); err != nil {
				results[c.Name] = map[string]interface{}{
					"status": "unhealthy",
					"error":  err.Error(),
				}
				allHealthy = false
				continue
			}
			results[c.Name] = map[string]interface{}{"status": "healthy"}
		}

		status := http.StatusOK
		if !allHealthy {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, map[string]interface{}{
			"ready":     allHealthy,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"checks":    results,
		})
	})
}

// Package placements resolves mediation placement ids against remote
// overrides kept in Redis. An override can point a placement at another
// network placement or switch it off without shipping a new app build.
package placements

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/thenexusengine/tne_adtalos/internal/config"
	"github.com/thenexusengine/tne_adtalos/internal/mediation"
	"github.com/thenexusengine/tne_adtalos/pkg/logger"
	"github.com/thenexusengine/tne_adtalos/pkg/redis"
)

// Override is the JSON stored per hash field
type Override struct {
	NetworkPlacementID string `json:"network_placement_id,omitempty"`
	Enabled            *bool  `json:"enabled,omitempty"`
	Note               string `json:"note,omitempty"`
}

// IsEnabled treats a missing flag as enabled
func (o Override) IsEnabled() bool {
	return o.Enabled == nil || *o.Enabled
}

// RedisClient is the subset of the Redis client used for refreshes
type RedisClient interface {
	HGetAll(ctx context.Context, key string) (map[string]string, error)
}

// Subscriber opens pub/sub subscriptions
type Subscriber interface {
	Subscribe(ctx context.Context, channel string) (*redis.Subscription, error)
}

// Metrics receives refresh outcomes
type Metrics interface {
	RecordPlacementRefresh(err error, overrides int)
}

// Stats describes the resolver's refresh history
type Stats struct {
	Overrides       int           `json:"overrides"`
	Refreshes       int64         `json:"refreshes"`
	RefreshErrors   int64         `json:"refresh_errors"`
	LastRefreshTime time.Time     `json:"last_refresh_time"`
	LastLatency     time.Duration `json:"last_latency_ns"`
	Hits            int64         `json:"hits"`
	Misses          int64         `json:"misses"`
}

// Resolver holds the last successfully loaded override table
type Resolver struct {
	redis         RedisClient
	refreshPeriod time.Duration
	metrics       Metrics

	mu        sync.RWMutex
	overrides map[string]Override
	stats     Stats

	hits   atomic.Int64
	misses atomic.Int64

	stopOnce sync.Once
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// New creates a resolver; a zero refresh period uses the default
func New(client RedisClient, refreshPeriod time.Duration, m Metrics) *Resolver {
	if refreshPeriod <= 0 {
		refreshPeriod = config.DefaultPlacementsRefresh
	}
	return &Resolver{
		redis:         client,
		refreshPeriod: refreshPeriod,
		metrics:       m,
		overrides:     make(map[string]Override),
		stopChan:      make(chan struct{}),
	}
}

// FieldFor returns the hash field for a format-scoped override
func FieldFor(format mediation.AdFormat, placementID string) string {
	return format.Label() + ":" + placementID
}

// Start loads the table once and keeps it fresh in the background.
// A failed initial load is returned but the refresh loop still runs, so
// the resolver recovers once Redis is reachable.
func (r *Resolver) Start(ctx context.Context) error {
	err := r.Refresh(ctx)

	r.wg.Add(1)
	go r.refreshLoop(ctx)

	if err != nil {
		return fmt.Errorf("initial placement load failed: %w", err)
	}
	return nil
}

// Watch reloads the table whenever a message arrives on channel
func (r *Resolver) Watch(ctx context.Context, sub Subscriber, channel string) error {
	s, err := sub.Subscribe(ctx, channel)
	if err != nil {
		return err
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer s.Close()
		for {
			select {
			case msg, ok := <-s.Messages():
				if !ok {
					return
				}
				logger.Placements().Debug().Str("payload", msg.Payload).Msg("placement change notice")
				r.refreshWithTimeout(ctx)
			case <-r.stopChan:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
	return nil
}

// Stop ends the background goroutines and waits for them
func (r *Resolver) Stop() {
	r.stopOnce.Do(func() { close(r.stopChan) })
	r.wg.Wait()
}

func (r *Resolver) refreshLoop(ctx context.Context) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.refreshPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.refreshWithTimeout(ctx)
		case <-r.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (r *Resolver) refreshWithTimeout(ctx context.Context) {
	refreshCtx, cancel := context.WithTimeout(ctx, config.PlacementsRefreshTimeout)
	defer cancel()
	if err := r.Refresh(refreshCtx); err != nil {
		logger.Placements().Warn().Err(err).Msg("Failed to refresh placement overrides")
	}
}

// Refresh replaces the override table with the contents of the Redis hash.
// On error the previous table stays in effect.
func (r *Resolver) Refresh(ctx context.Context) error {
	start := time.Now()

	raw, err := r.redis.HGetAll(ctx, config.RedisPlacementsHash)
	if err != nil {
		err = fmt.Errorf("failed to get placements from Redis: %w", err)
		r.mu.Lock()
		r.stats.Refreshes++
		r.stats.RefreshErrors++
		r.mu.Unlock()
		r.record(err, 0)
		return err
	}

	next := make(map[string]Override, len(raw))
	for field, value := range raw {
		o, perr := parseOverride(value)
		if perr != nil {
			logger.Placements().Warn().Err(perr).Str("field", field).Msg("Failed to parse placement override")
			continue
		}
		next[field] = o
	}

	r.mu.Lock()
	r.overrides = next
	r.stats.Refreshes++
	r.stats.Overrides = len(next)
	r.stats.LastRefreshTime = time.Now()
	r.stats.LastLatency = time.Since(start)
	r.mu.Unlock()

	r.record(nil, len(next))
	logger.Placements().Debug().Int("overrides", len(next)).Msg("placement overrides refreshed")
	return nil
}

// parseOverride accepts the JSON form, or a bare string that is either a
// network placement id or one of the disable words
func parseOverride(value string) (Override, error) {
	trimmed := strings.TrimSpace(value)
	if strings.HasPrefix(trimmed, "{") {
		var o Override
		if err := json.Unmarshal([]byte(trimmed), &o); err != nil {
			return Override{}, err
		}
		return o, nil
	}
	switch strings.ToLower(trimmed) {
	case "":
		return Override{}, fmt.Errorf("empty override")
	case "disabled", "off", "-":
		off := false
		return Override{Enabled: &off}, nil
	}
	return Override{NetworkPlacementID: trimmed}, nil
}

func (r *Resolver) record(err error, n int) {
	if r.metrics != nil {
		r.metrics.RecordPlacementRefresh(err, n)
	}
}

// Lookup returns the override for a placement. A format-scoped field wins
// over a bare placement id.
func (r *Resolver) Lookup(format mediation.AdFormat, placementID string) (Override, bool) {
	r.mu.RLock()
	o, ok := r.overrides[FieldFor(format, placementID)]
	if !ok {
		o, ok = r.overrides[placementID]
	}
	r.mu.RUnlock()

	if ok {
		r.hits.Add(1)
	} else {
		r.misses.Add(1)
	}
	return o, ok
}

// Resolve implements the adapter's placement resolver. Placements without
// an override resolve to themselves.
func (r *Resolver) Resolve(format mediation.AdFormat, placementID string) (string, bool) {
	o, ok := r.Lookup(format, placementID)
	if !ok {
		return placementID, true
	}
	if !o.IsEnabled() {
		return "", false
	}
	if o.NetworkPlacementID == "" {
		return placementID, true
	}
	return o.NetworkPlacementID, true
}

// Stats returns a copy of the refresh counters
func (r *Resolver) Stats() Stats {
	r.mu.RLock()
	stats := r.stats
	r.mu.RUnlock()
	stats.Hits = r.hits.Load()
	stats.Misses = r.misses.Load()
	return stats
}

// Overrides returns a copy of the current table
func (r *Resolver) Overrides() map[string]Override {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]Override, len(r.overrides))
	for k, v := range r.overrides {
		out[k] = v
	}
	return out
}

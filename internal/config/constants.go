// Package config provides shared configuration constants for the bridge
package config

import "time"

// AdapterVersion is the bridge version reported to the mediation framework.
// Overridden at build time with -ldflags "-X .../internal/config.AdapterVersion=...".
var AdapterVersion = "1.2.0.0"

// Network test placements, substituted when a request is flagged as a test request
const (
	// BannerTestPlacementID serves every view format (banner, leader, MREC)
	BannerTestPlacementID = "209A03F87BA3B4EB82BEC9E5F8B41383"

	// AppOpenTestPlacementID serves app-open ads
	AppOpenTestPlacementID = "5C3DD65A809B08A2D6CF3DEFBC7E09C7"

	// InterstitialTestPlacementID serves interstitial ads
	InterstitialTestPlacementID = "C28BE5F062F476CC0C73C4F0ED333A72"

	// RewardedTestPlacementID serves rewarded ads
	RewardedTestPlacementID = "527E187C5DEA600C35309759469ADAA8"
)

// Server timeout defaults
const (
	// ServerReadTimeout is the maximum duration for reading the entire request
	ServerReadTimeout = 5 * time.Second

	// ServerWriteTimeout is the maximum duration before timing out writes of the response
	ServerWriteTimeout = 10 * time.Second

	// ServerIdleTimeout is the maximum time to wait for the next request when keep-alives are enabled
	ServerIdleTimeout = 120 * time.Second

	// ShutdownTimeout is the maximum time to wait for graceful shutdown
	ShutdownTimeout = 30 * time.Second
)

// Size limiting defaults
const (
	// DefaultMaxBodySize is the default maximum request body size (64KB)
	DefaultMaxBodySize = 64 * 1024

	// DefaultMaxURLLength is the default maximum URL length (8KB)
	DefaultMaxURLLength = 8192
)

// Metrics defaults
const (
	// MetricsNamespace prefixes every Prometheus metric
	MetricsNamespace = "adtalos_bridge"
)

// Placement override defaults
const (
	// RedisPlacementsHash holds per-placement override JSON keyed by
	// "<format>:<placement id>" or by bare placement id for every format
	RedisPlacementsHash = "tne_adtalos:placements"

	// RedisPlacementsChannel carries "reload" notices after the hash is edited
	RedisPlacementsChannel = "tne_adtalos:placements:changed"

	// DefaultPlacementsRefresh is how often overrides are reloaded from Redis
	DefaultPlacementsRefresh = 30 * time.Second

	// PlacementsRefreshTimeout bounds a single refresh round trip
	PlacementsRefreshTimeout = 5 * time.Second
)

// Event journal defaults
const (
	// DefaultJournalBufferSize is the number of events buffered before a flush
	DefaultJournalBufferSize = 100

	// JournalFlushWorkers is the number of concurrent flush workers
	JournalFlushWorkers = 2

	// JournalFlushQueueSize is the max pending flush batches before events are dropped
	JournalFlushQueueSize = 10

	// JournalFlushTimeout is the max time a single flush may take
	JournalFlushTimeout = 2 * time.Second

	// JournalFlushInterval flushes partially filled buffers
	JournalFlushInterval = 5 * time.Second
)

// Callback recorder defaults
const (
	// DefaultCallbackHistory is the number of callbacks kept per placement
	DefaultCallbackHistory = 64
)

// Demo network defaults
const (
	// DemoFillRate is the probability a demo load fills
	DemoFillRate = 0.8

	// DemoLatency is the simulated network latency of the demo SDK
	DemoLatency = 150 * time.Millisecond

	// DemoClickRate is the probability a shown demo ad is clicked
	DemoClickRate = 0.1
)

package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/thenexusengine/tne_adtalos/internal/config"
	"github.com/thenexusengine/tne_adtalos/internal/storage"
)

// SDKModeDemo runs the bridge against the simulated network
const SDKModeDemo = "demo"

// ServerConfig holds all bridge configuration
type ServerConfig struct {
	// Server
	Port           string `env:"BRIDGE_PORT" envDefault:"8080"`
	MaxRequestSize int64  `env:"MAX_REQUEST_SIZE"`

	// Network SDK
	SDKMode      string        `env:"BRIDGE_SDK_MODE" envDefault:"demo"`
	AppID        string        `env:"BRIDGE_APP_ID"`
	TestMode     bool          `env:"BRIDGE_TEST_MODE"`
	AutoInit     bool          `env:"BRIDGE_AUTO_INIT" envDefault:"true"`
	DemoFillRate float64       `env:"DEMO_FILL_RATE" envDefault:"0.8"`
	DemoLatency  time.Duration `env:"DEMO_LATENCY" envDefault:"150ms"`

	// Placement overrides
	RedisURL          string        `env:"REDIS_URL"`
	PlacementsRefresh time.Duration `env:"PLACEMENTS_REFRESH"`

	// Event journal
	Database          DatabaseConfig `envPrefix:"DB_"`
	JournalBufferSize int            `env:"JOURNAL_BUFFER_SIZE"`

	// Control plane auth
	AuthEnabled bool     `env:"AUTH_ENABLED"`
	APIKeys     []string `env:"API_KEYS" envSeparator:","`

	// Per-client limits on ad dispatch
	RateLimitEnabled bool   `env:"RATE_LIMIT_ENABLED" envDefault:"true"`
	RateLimitRPS     int    `env:"RATE_LIMIT_RPS" envDefault:"50"`
	RateLimitBurst   int    `env:"RATE_LIMIT_BURST" envDefault:"100"`
	TrustedProxies   string `env:"TRUSTED_PROXIES"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`
}

// DatabaseConfig holds database connection configuration. The journal is
// disabled when Host is empty.
type DatabaseConfig struct {
	Host     string `env:"HOST"`
	Port     string `env:"PORT" envDefault:"5432"`
	User     string `env:"USER" envDefault:"adtalos"`
	Password string `env:"PASSWORD"`
	Name     string `env:"NAME" envDefault:"adtalos"`
	SSLMode  string `env:"SSL_MODE" envDefault:"disable"`
}

// Enabled reports whether a database is configured
func (d DatabaseConfig) Enabled() bool {
	return d.Host != ""
}

// ToStorage converts to the storage connection settings
func (d DatabaseConfig) ToStorage() storage.DBConfig {
	return storage.DBConfig{
		Host:     d.Host,
		Port:     d.Port,
		User:     d.User,
		Password: d.Password,
		Name:     d.Name,
		SSLMode:  d.SSLMode,
	}
}

// ParseConfig parses configuration from the environment, then command-line flags
func ParseConfig() (*ServerConfig, error) {
	return parseConfig(os.Args[1:])
}

func parseConfig(args []string) (*ServerConfig, error) {
	cfg := &ServerConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	// Flags default to the environment values so either source works
	fs := flag.NewFlagSet("bridge", flag.ContinueOnError)
	fs.StringVar(&cfg.Port, "port", cfg.Port, "HTTP port")
	fs.StringVar(&cfg.SDKMode, "sdk-mode", cfg.SDKMode, "Network SDK implementation")
	fs.StringVar(&cfg.AppID, "app-id", cfg.AppID, "Network application id")
	fs.BoolVar(&cfg.TestMode, "test-mode", cfg.TestMode, "Initialize the network in test mode")
	fs.StringVar(&cfg.RedisURL, "redis-url", cfg.RedisURL, "Redis URL for placement overrides")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *ServerConfig) applyDefaults() {
	if c.MaxRequestSize <= 0 {
		c.MaxRequestSize = config.DefaultMaxBodySize
	}
	if c.PlacementsRefresh <= 0 {
		c.PlacementsRefresh = config.DefaultPlacementsRefresh
	}
	if c.JournalBufferSize <= 0 {
		c.JournalBufferSize = config.DefaultJournalBufferSize
	}
}

// Validate checks values the environment parser cannot
func (c *ServerConfig) Validate() error {
	if c.Port == "" {
		return errors.New("port is required")
	}
	if c.SDKMode != SDKModeDemo {
		return fmt.Errorf("unsupported sdk mode %q", c.SDKMode)
	}
	if c.DemoFillRate < 0 || c.DemoFillRate > 1 {
		return fmt.Errorf("demo fill rate %v out of range [0, 1]", c.DemoFillRate)
	}
	if c.DemoLatency < 0 {
		return fmt.Errorf("demo latency %v is negative", c.DemoLatency)
	}
	if c.RateLimitEnabled && (c.RateLimitRPS <= 0 || c.RateLimitBurst <= 0) {
		return fmt.Errorf("rate limit %d/s burst %d must be positive", c.RateLimitRPS, c.RateLimitBurst)
	}
	if c.AuthEnabled && len(c.APIKeys) == 0 {
		return errors.New("auth is enabled but API_KEYS is empty")
	}
	return nil
}

// Package logger provides structured logging for the mediation bridge
package logger

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ServiceName is attached to every log line
const ServiceName = "adtalos-bridge"

// Log is the global logger instance
var Log zerolog.Logger

func init() {
	// Usable defaults before Init is called (tests, library use)
	Log = zerolog.New(os.Stdout).With().Timestamp().Str("service", ServiceName).Logger()
}

// Config holds logger configuration
type Config struct {
	Level      string // debug, info, warn, error
	Format     string // json or console
	TimeFormat string
}

// DefaultConfig returns configuration from LOG_LEVEL and LOG_FORMAT
func DefaultConfig() Config {
	return Config{
		Level:      getEnv("LOG_LEVEL", "info"),
		Format:     getEnv("LOG_FORMAT", "json"),
		TimeFormat: time.RFC3339,
	}
}

// Init initializes the global logger
func Init(cfg Config) {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.TimeFormat != "" {
		zerolog.TimeFieldFormat = cfg.TimeFormat
	}

	if cfg.Format == "console" {
		output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: cfg.TimeFormat}
		Log = zerolog.New(output).With().Timestamp().Str("service", ServiceName).Logger()
		return
	}

	Log = zerolog.New(os.Stdout).With().Timestamp().Str("service", ServiceName).Logger()
}

type contextKey string

const (
	// RequestIDKey is the context key for request IDs
	RequestIDKey contextKey = "request_id"
	// PlacementIDKey is the context key for placement IDs
	PlacementIDKey contextKey = "placement_id"
)

// WithRequestID adds a request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// WithPlacementID adds a placement ID to the context
func WithPlacementID(ctx context.Context, placementID string) context.Context {
	return context.WithValue(ctx, PlacementIDKey, placementID)
}

// FromContext returns a logger carrying the IDs stored in ctx
func FromContext(ctx context.Context) *zerolog.Logger {
	l := Log.With()
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok && requestID != "" {
		l = l.Str("request_id", requestID)
	}
	if placementID, ok := ctx.Value(PlacementIDKey).(string); ok && placementID != "" {
		l = l.Str("placement_id", placementID)
	}
	logger := l.Logger()
	return &logger
}

// Adapter returns a logger for the lifecycle controller
func Adapter() *zerolog.Logger {
	return component("adapter")
}

// Bridge returns a logger for events of one ad instance
func Bridge(format, placementID string) *zerolog.Logger {
	logger := Log.With().
		Str("component", "bridge").
		Str("format", format).
		Str("placement_id", placementID).
		Logger()
	return &logger
}

// HTTP returns a logger for the control plane
func HTTP() *zerolog.Logger {
	return component("http")
}

// Journal returns a logger for the event journal
func Journal() *zerolog.Logger {
	return component("journal")
}

// Placements returns a logger for remote placement overrides
func Placements() *zerolog.Logger {
	return component("placements")
}

func component(name string) *zerolog.Logger {
	logger := Log.With().Str("component", name).Logger()
	return &logger
}

// RequestLogger is a per-request logger that tracks duration
type RequestLogger struct {
	logger zerolog.Logger
	start  time.Time
}

// NewRequestLogger creates a logger for one control-plane request
func NewRequestLogger(requestID string) *RequestLogger {
	return &RequestLogger{
		logger: Log.With().Str("request_id", requestID).Logger(),
		start:  time.Now(),
	}
}

// Info logs an info message
func (rl *RequestLogger) Info(msg string) {
	rl.logger.Info().Msg(msg)
}

// Error logs an error message
func (rl *RequestLogger) Error(msg string, err error) {
	rl.logger.Error().Err(err).Msg(msg)
}

// WithField returns a copy of the logger with an additional field
func (rl *RequestLogger) WithField(key string, value interface{}) *RequestLogger {
	return &RequestLogger{
		logger: rl.logger.With().Interface(key, value).Logger(),
		start:  rl.start,
	}
}

// Duration returns the time elapsed since the logger was created
func (rl *RequestLogger) Duration() time.Duration {
	return time.Since(rl.start)
}

// LogComplete logs request completion with status and duration
func (rl *RequestLogger) LogComplete(status int) {
	rl.logger.Info().
		Int("status", status).
		Float64("duration_ms", float64(rl.Duration().Microseconds())/1000.0).
		Msg("request completed")
}

// getEnv returns the environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

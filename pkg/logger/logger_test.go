package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// captureLog points the global logger at a buffer for one test
func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	prevLog, prevLevel := Log, zerolog.GlobalLevel()
	t.Cleanup(func() {
		Log = prevLog
		zerolog.SetGlobalLevel(prevLevel)
	})

	var buf bytes.Buffer
	Log = zerolog.New(&buf).With().Str("service", ServiceName).Logger()
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	return &buf
}

func lastLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	var entry map[string]interface{}
	if err := json.Unmarshal([]byte(lines[len(lines)-1]), &entry); err != nil {
		t.Fatalf("Failed to decode log line %q: %v", lines[len(lines)-1], err)
	}
	return entry
}

func TestDefaultConfig(t *testing.T) {
	tests := []struct {
		name   string
		level  string
		format string
		want   Config
	}{
		{"unset", "", "", Config{Level: "info", Format: "json", TimeFormat: time.RFC3339}},
		{"from environment", "debug", "console", Config{Level: "debug", Format: "console", TimeFormat: time.RFC3339}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("LOG_LEVEL", tt.level)
			t.Setenv("LOG_FORMAT", tt.format)
			if got := DefaultConfig(); got != tt.want {
				t.Errorf("Expected %+v, got %+v", tt.want, got)
			}
		})
	}
}

func TestInit_Level(t *testing.T) {
	prevLog, prevLevel := Log, zerolog.GlobalLevel()
	t.Cleanup(func() {
		Log = prevLog
		zerolog.SetGlobalLevel(prevLevel)
	})

	tests := []struct {
		level string
		want  zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"WARN", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"", zerolog.InfoLevel},
		{"loud", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			Init(Config{Level: tt.level, Format: "json"})
			if got := zerolog.GlobalLevel(); got != tt.want {
				t.Errorf("Expected level %v, got %v", tt.want, got)
			}
		})
	}
}

func TestFromContext(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name      string
		ctx       context.Context
		request   interface{}
		placement interface{}
	}{
		{"empty", ctx, nil, nil},
		{"request only", WithRequestID(ctx, "req-1"), "req-1", nil},
		{"placement only", WithPlacementID(ctx, "b-1"), nil, "b-1"},
		{"both", WithPlacementID(WithRequestID(ctx, "req-2"), "i-1"), "req-2", "i-1"},
		{"blank ids are skipped", WithPlacementID(WithRequestID(ctx, ""), ""), nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := captureLog(t)
			FromContext(tt.ctx).Info().Msg("load")

			entry := lastLine(t, buf)
			if entry["request_id"] != tt.request {
				t.Errorf("Expected request_id %v, got %v", tt.request, entry["request_id"])
			}
			if entry["placement_id"] != tt.placement {
				t.Errorf("Expected placement_id %v, got %v", tt.placement, entry["placement_id"])
			}
			if entry["service"] != ServiceName {
				t.Errorf("Expected service %q, got %v", ServiceName, entry["service"])
			}
		})
	}
}

func TestComponentLoggers(t *testing.T) {
	tests := []struct {
		name   string
		logger func() *zerolog.Logger
		fields map[string]string
	}{
		{"adapter", Adapter, map[string]string{"component": "adapter"}},
		{"http", HTTP, map[string]string{"component": "http"}},
		{"journal", Journal, map[string]string{"component": "journal"}},
		{"placements", Placements, map[string]string{"component": "placements"}},
		{
			"bridge",
			func() *zerolog.Logger { return Bridge("interstitial", "i-7") },
			map[string]string{"component": "bridge", "format": "interstitial", "placement_id": "i-7"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := captureLog(t)
			tt.logger().Info().Msg("event")

			entry := lastLine(t, buf)
			for k, v := range tt.fields {
				if entry[k] != v {
					t.Errorf("Expected %s=%q, got %v", k, v, entry[k])
				}
			}
			if entry["service"] != ServiceName {
				t.Errorf("Expected service %q, got %v", ServiceName, entry["service"])
			}
		})
	}
}

func TestRequestLogger(t *testing.T) {
	buf := captureLog(t)
	rl := NewRequestLogger("req-9")

	rl.WithField("placement_id", "b-1").WithField("format", "banner").Info("dispatched")
	entry := lastLine(t, buf)
	if entry["request_id"] != "req-9" || entry["placement_id"] != "b-1" || entry["format"] != "banner" {
		t.Errorf("Expected request and field values, got %v", entry)
	}

	rl.Error("load rejected", errors.New("missing placement id"))
	entry = lastLine(t, buf)
	if entry["level"] != "error" || entry["error"] != "missing placement id" {
		t.Errorf("Unexpected error entry %v", entry)
	}
	if _, ok := entry["placement_id"]; ok {
		t.Error("Expected WithField to leave the parent logger unchanged")
	}

	time.Sleep(2 * time.Millisecond)
	if rl.Duration() < 2*time.Millisecond {
		t.Errorf("Expected duration of at least 2ms, got %v", rl.Duration())
	}

	rl.LogComplete(202)
	entry = lastLine(t, buf)
	if entry["status"] != float64(202) || entry["message"] != "request completed" {
		t.Errorf("Unexpected completion entry %v", entry)
	}
	if d, ok := entry["duration_ms"].(float64); !ok || d < 2 {
		t.Errorf("Expected duration_ms >= 2, got %v", entry["duration_ms"])
	}
}

package daemon

import (
	"bytes"
	"testing"
	"time"

	"waved/internal/model"
)

func TestNewDaemon(t *testing.T) {
	var buf bytes.Buffer
	cfg := model.DefaultConfig()
	cfg.Logging.Level = "debug"

	d, err := newDaemon("/tmp/test-waved", cfg, &buf, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.wavedDir != "/tmp/test-waved" {
		t.Errorf("wavedDir: got %q, want %q", d.wavedDir, "/tmp/test-waved")
	}
	if LogLevel(d.logLevel.Load()) != LogLevelDebug {
		t.Errorf("logLevel: got %d, want %d", d.logLevel.Load(), LogLevelDebug)
	}
	if d.currentRunner().Wave() != model.DefaultWave {
		t.Errorf("wave: got %d, want %d", d.currentRunner().Wave(), model.DefaultWave)
	}
}

func TestNewDaemon_RejectsInvalidConfig(t *testing.T) {
	var buf bytes.Buffer
	cfg := model.DefaultConfig()
	cfg.Runner.Wave = 0

	if _, err := newDaemon("/tmp/test-waved", cfg, &buf, nil); err == nil {
		t.Error("expected error for invalid config")
	}
}

func TestDaemonShutdownIdempotent(t *testing.T) {
	var buf bytes.Buffer
	cfg := model.DefaultConfig()
	cfg.Daemon.ShutdownTimeoutSec = 1

	d, err := newDaemon("/tmp/test-waved-shutdown", cfg, &buf, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	d.ticker = time.NewTicker(time.Hour)

	d.Shutdown()
	d.Shutdown() // second call should not panic
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected LogLevel
	}{
		{"debug", LogLevelDebug},
		{"DEBUG", LogLevelDebug},
		{"info", LogLevelInfo},
		{"warn", LogLevelWarn},
		{"warning", LogLevelWarn},
		{"error", LogLevelError},
		{"unknown", LogLevelInfo},
		{"", LogLevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := parseLogLevel(tt.input)
			if got != tt.expected {
				t.Errorf("parseLogLevel(%q) = %d, want %d", tt.input, got, tt.expected)
			}
		})
	}
}

func TestDaemonLog(t *testing.T) {
	var buf bytes.Buffer
	cfg := model.DefaultConfig()
	cfg.Logging.Level = "warn"

	d, err := newDaemon("", cfg, &buf, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Info should be filtered
	d.log(LogLevelInfo, "should not appear")
	if buf.Len() != 0 {
		t.Errorf("expected no output, got: %s", buf.String())
	}

	// Warn should pass
	d.log(LogLevelWarn, "warning message")
	if !bytes.Contains(buf.Bytes(), []byte("WARN")) {
		t.Errorf("expected WARN in output, got: %s", buf.String())
	}
}

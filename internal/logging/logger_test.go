package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"kvbench/internal/config"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name   string
		config config.LoggingConfig
	}{
		{"verbose config", VerboseLoggingConfig()},
		{"ci config", CILoggingConfig()},
		{"test config", TestLoggingConfig()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := NewLogger(&tt.config)
			if logger == nil {
				t.Fatal("Expected logger to be created")
			}

			logger.Info("Test log message", "test", true)
			logger.Debug("Debug message", "debug", true)
			logger.Warn("Warning message", "warning", true)
			logger.Error("Error message", "error", "test error")
		})
	}
}

func TestLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	cfg := config.LoggingConfig{Level: "warn", Format: "json"}
	logger := NewLoggerTo(&cfg, &buf)

	logger.Info("hidden")
	logger.Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("Info message should be filtered at warn level")
	}
	if !strings.Contains(out, "shown") {
		t.Error("Warn message should be logged at warn level")
	}
}

func TestLoggerWithContext(t *testing.T) {
	var buf bytes.Buffer
	cfg := config.LoggingConfig{Level: "info", Format: "json"}
	logger := NewLoggerTo(&cfg, &buf)

	ctx := WithRunID(context.Background(), "run-1")
	ctx = WithEngine(ctx, "badger")
	ctx = WithPhase(ctx, "put")

	logger.WithContext(ctx).Info("Context message")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Expected JSON log line: %v", err)
	}
	for key, want := range map[string]string{"run_id": "run-1", "engine": "badger", "phase": "put"} {
		if entry[key] != want {
			t.Errorf("Expected %s=%s, got %v", key, want, entry[key])
		}
	}
}

func TestLoggerFields(t *testing.T) {
	var buf bytes.Buffer
	cfg := config.LoggingConfig{Level: "info", Format: "text"}
	logger := NewLoggerTo(&cfg, &buf)

	logger.WithField("threads", 4).Info("one field")
	logger.WithFields(map[string]interface{}{"ops": 100}).Info("many fields")
	logger.WithError(errors.New("boom")).Info("with error")

	out := buf.String()
	for _, want := range []string{"threads=4", "ops=100", "error=boom"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected output to contain %q, got %s", want, out)
		}
	}
}

func TestPhaseLogging(t *testing.T) {
	var buf bytes.Buffer
	cfg := config.LoggingConfig{Level: "info", Format: "json"}
	logger := NewLoggerTo(&cfg, &buf)

	ctx := WithRunID(context.Background(), "run-2")
	logger.Phase(ctx, "put", 1000, 0, 50000, 20*time.Millisecond)
	logger.Phase(ctx, "get", 1000, 3, 40000, 25*time.Millisecond)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("Expected 2 log lines, got %d", len(lines))
	}

	var clean, failed map[string]interface{}
	json.Unmarshal([]byte(lines[0]), &clean)
	json.Unmarshal([]byte(lines[1]), &failed)

	if clean["level"] != "INFO" {
		t.Errorf("Expected clean phase at INFO, got %v", clean["level"])
	}
	if failed["level"] != "WARN" {
		t.Errorf("Expected phase with errors at WARN, got %v", failed["level"])
	}
	if failed["errors"] != float64(3) {
		t.Errorf("Expected errors=3, got %v", failed["errors"])
	}
}

func TestRunID(t *testing.T) {
	id1 := NewRunID()
	id2 := NewRunID()

	if id1 == id2 {
		t.Error("Expected different run IDs")
	}

	ctx := WithRunID(context.Background(), id1)
	if got := RunIDFromContext(ctx); got != id1 {
		t.Errorf("Expected run ID %s, got %s", id1, got)
	}
	if got := RunIDFromContext(context.Background()); got != "" {
		t.Errorf("Expected empty run ID, got %s", got)
	}
}

func TestSanitizeRunID(t *testing.T) {
	tests := []struct {
		input string
		keep  bool
	}{
		{"nightly-2024_01", true},
		{"", false},
		{"has space", false},
		{"../../etc/passwd", false},
		{strings.Repeat("a", 65), false},
	}

	for _, tt := range tests {
		got := SanitizeRunID(tt.input)
		if tt.keep && got != tt.input {
			t.Errorf("SanitizeRunID(%q) = %q, expected input kept", tt.input, got)
		}
		if !tt.keep && (got == tt.input || got == "") {
			t.Errorf("SanitizeRunID(%q) = %q, expected generated ID", tt.input, got)
		}
	}
}

func TestEnvironmentConfigs(t *testing.T) {
	cfg := config.DefaultConfig()

	SetupEnvironmentLogging(cfg, "ci")
	if cfg.Logging.Format != "json" {
		t.Errorf("Expected json format for ci, got %s", cfg.Logging.Format)
	}

	SetupEnvironmentLogging(cfg, "verbose")
	if cfg.Logging.Level != "debug" {
		t.Errorf("Expected debug level for verbose, got %s", cfg.Logging.Level)
	}

	SetupEnvironmentLogging(cfg, "unknown")
	if cfg.Logging.Level != "debug" {
		t.Error("Unknown environment should leave logging unchanged")
	}
}

func TestPerformanceMetric(t *testing.T) {
	var buf bytes.Buffer
	cfg := config.LoggingConfig{Level: "debug", Format: "json"}
	logger := NewLoggerTo(&cfg, &buf)

	logger.Performance(context.Background(), "write_amplification", 2.5, "ratio")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Expected JSON log line: %v", err)
	}
	if entry["metric"] != "write_amplification" || entry["value"] != 2.5 || entry["unit"] != "ratio" {
		t.Errorf("Unexpected metric entry: %v", entry)
	}
}

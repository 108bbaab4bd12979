package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"kvbench/internal/config"
)

type Logger struct {
	*slog.Logger
	config *config.LoggingConfig
}

type ContextKey string

const (
	RunIDKey  ContextKey = "run_id"
	EngineKey ContextKey = "engine"
	PhaseKey  ContextKey = "phase"
)

// NewLogger creates a new structured logger using slog and installs it as
// the process default, so adapters logging through slog share its handler.
func NewLogger(cfg *config.LoggingConfig) *Logger {
	var writer io.Writer
	switch cfg.Output {
	case "stdout":
		writer = os.Stdout
	case "stderr", "":
		writer = os.Stderr
	default:
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err == nil {
			writer = file
		} else {
			writer = os.Stderr
			slog.Warn("Failed to open log file, using stderr", "error", err, "file", cfg.Output)
		}
	}

	logger := NewLoggerTo(cfg, writer)
	slog.SetDefault(logger.Logger)
	return logger
}

// NewLoggerTo creates a logger writing to w without touching the default.
func NewLoggerTo(cfg *config.LoggingConfig, w io.Writer) *Logger {
	level := parseLevel(cfg.Level)

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				a.Value = slog.StringValue(a.Value.Time().Format(time.RFC3339))
			}
			return a
		},
	}

	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "text", "console":
		handler = slog.NewTextHandler(w, opts)
	default:
		handler = slog.NewJSONHandler(w, opts)
	}

	return &Logger{
		Logger: slog.New(handler),
		config: cfg,
	}
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithContext creates a new logger with the run, engine and phase carried
// by ctx.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	logger := l.Logger

	for _, key := range []ContextKey{RunIDKey, EngineKey, PhaseKey} {
		if v := ctx.Value(key); v != nil {
			logger = logger.With(string(key), v)
		}
	}

	return &Logger{
		Logger: logger,
		config: l.config,
	}
}

// WithField creates a new logger with a single additional field
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return &Logger{
		Logger: l.Logger.With(key, value),
		config: l.config,
	}
}

// WithFields creates a new logger with additional fields
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	var args []interface{}
	for key, value := range fields {
		args = append(args, key, value)
	}

	return &Logger{
		Logger: l.Logger.With(args...),
		config: l.config,
	}
}

// WithError creates a new logger with an error field
func (l *Logger) WithError(err error) *Logger {
	return &Logger{
		Logger: l.Logger.With("error", err.Error()),
		config: l.config,
	}
}

// Phase logs the outcome of one measured phase. Phases with failed
// operations are logged at warn level.
func (l *Logger) Phase(ctx context.Context, phase string, operations, errors int, throughput float64, duration time.Duration) {
	level := slog.LevelInfo
	if errors > 0 {
		level = slog.LevelWarn
	}

	l.WithContext(ctx).Log(ctx, level, "Phase completed",
		"phase", phase,
		"operations", operations,
		"errors", errors,
		"ops_per_sec", throughput,
		"duration_ms", duration.Milliseconds(),
	)
}

// EngineEvent logs engine lifecycle events (open, close, drop).
func (l *Logger) EngineEvent(ctx context.Context, event, engine string, details map[string]interface{}) {
	args := []interface{}{
		"event", event,
		"engine", engine,
	}

	for key, value := range details {
		args = append(args, key, value)
	}

	l.WithContext(ctx).Debug("Engine event", args...)
}

// Performance logs a single derived metric at debug level.
func (l *Logger) Performance(ctx context.Context, metric string, value float64, unit string) {
	l.WithContext(ctx).Debug("Performance metric",
		"metric", metric,
		"value", value,
		"unit", unit,
	)
}

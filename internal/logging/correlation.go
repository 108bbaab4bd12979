package logging

import (
	"context"
	"regexp"

	"github.com/google/uuid"
)

// NewRunID returns a fresh identifier tying together the logs, spans,
// metrics and report of one benchmark run.
func NewRunID() string {
	return uuid.NewString()
}

// WithRunID returns a context carrying the run identifier.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, RunIDKey, runID)
}

// WithEngine returns a context carrying the engine under test.
func WithEngine(ctx context.Context, engine string) context.Context {
	return context.WithValue(ctx, EngineKey, engine)
}

// WithPhase returns a context carrying the current phase.
func WithPhase(ctx context.Context, phase string) context.Context {
	return context.WithValue(ctx, PhaseKey, phase)
}

// RunIDFromContext extracts the run identifier, or "" if none is set.
func RunIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(RunIDKey).(string); ok {
		return id
	}
	return ""
}

var runIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// SanitizeRunID accepts a user supplied run identifier, falling back to a
// generated one when it is empty or unsafe for metric labels and file names.
func SanitizeRunID(id string) string {
	if runIDPattern.MatchString(id) {
		return id
	}
	return NewRunID()
}

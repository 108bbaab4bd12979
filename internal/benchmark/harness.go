// Package benchmark runs a configured workload against a storage engine and
// collects its results.
package benchmark

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"kvbench/internal/config"
	"kvbench/internal/keygen"
	"kvbench/internal/logging"
	"kvbench/internal/performance"
	"kvbench/internal/storage"
	"kvbench/internal/tracing"
	"kvbench/internal/workload"
)

const compressionSamples = 1024

// Harness owns the collaborators of a run. It is not safe for concurrent
// runs: engines are measured one after the other.
type Harness struct {
	cfg    *config.Config
	logger *logging.Logger
	tracer *tracing.Tracer
	probe  performance.Sampler
	runID  string
}

type Option func(*Harness)

// WithTracer records run and phase spans.
func WithTracer(t *tracing.Tracer) Option {
	return func(h *Harness) { h.tracer = t }
}

// WithSampler replaces the process resource probe.
func WithSampler(s performance.Sampler) Option {
	return func(h *Harness) { h.probe = s }
}

// WithRunID sets the identifier shared by logs, spans and reports.
func WithRunID(id string) Option {
	return func(h *Harness) { h.runID = id }
}

func New(cfg *config.Config, logger *logging.Logger, opts ...Option) (*Harness, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	h := &Harness{cfg: cfg, logger: logger}
	for _, opt := range opts {
		opt(h)
	}

	if h.probe == nil {
		h.probe = performance.NewProcessProbe()
	}
	if h.tracer == nil {
		h.tracer, _ = tracing.New(config.TracingConfig{}, nil)
	}
	if h.runID == "" {
		h.runID = logging.NewRunID()
	}

	return h, nil
}

// RunID identifies this harness's runs.
func (h *Harness) RunID() string { return h.runID }

// Run benchmarks the configured engine at the configured path.
func (h *Harness) Run(ctx context.Context) (*Results, error) {
	return h.RunEngine(ctx, h.cfg.Benchmark.Engine, h.cfg.Benchmark.DBPath)
}

// RunBaseline benchmarks the baseline engine with the same parameters in a
// sibling directory. It returns nil results when comparison is disabled or
// the baseline is the engine under test.
func (h *Harness) RunBaseline(ctx context.Context) (*Results, error) {
	b := h.cfg.Benchmark
	if !b.Compare || b.Baseline == "" || b.Baseline == b.Engine {
		return nil, nil
	}
	return h.RunEngine(ctx, b.Baseline, BaselinePath(b.DBPath, b.Baseline))
}

// BaselinePath keeps the baseline's files apart from the engine under test.
// Remote engines take the path as a server address, which is passed through.
func BaselinePath(dbPath, baseline string) string {
	if storage.Remote(baseline) {
		return dbPath
	}
	return dbPath + "_" + baseline
}

// RunEngine opens engine at path, runs every phase of the workload, scans
// the key space and measures what it cost.
func (h *Harness) RunEngine(ctx context.Context, engine, path string) (res *Results, err error) {
	b := h.cfg.Benchmark

	ctx = logging.WithRunID(ctx, h.runID)
	ctx = logging.WithEngine(ctx, engine)
	ctx, span := h.tracer.StartRun(ctx, h.runID, engine, b.Operations, b.Threads)
	defer func() { tracing.End(span, err) }()

	// only a directory this run creates (or finds empty) is removed afterwards
	owned := unusedPath(path)

	opts := h.cfg.StorageOptions().WithPath(path)
	backend, err := storage.Open(engine, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", engine, err)
	}
	h.logger.EngineEvent(ctx, "open", engine, map[string]interface{}{
		"path":    path,
		"version": backend.Version(),
		"sync":    opts.Sync,
	})

	closed := false
	defer func() {
		if !closed {
			backend.Close()
		}
	}()

	runner, err := workload.NewRunner(backend, workload.Config{
		Operations: b.Operations,
		KeySize:    b.KeySize,
		ValueSize:  b.ValueSize,
		Threads:    b.Threads,
		BatchSize:  b.BatchSize,
		Pattern:    b.Pattern,
		ZipfTheta:  b.ZipfTheta,
		Seed:       b.Seed,
	})
	if err != nil {
		return nil, err
	}

	res = &Results{
		RunID:         h.runID,
		StartedAt:     time.Now(),
		Engine:        backend.Name(),
		EngineVersion: backend.Version(),
		Config:        b,
	}

	before := h.sample(ctx)
	start := time.Now()

	for _, phase := range Phases(b.Workload) {
		stats, err := h.runPhase(ctx, runner, engine, phase)
		if err != nil {
			return nil, err
		}
		res.setStats(phase, stats)
	}

	if err := h.scan(ctx, backend, engine, res); err != nil {
		h.logger.WithContext(ctx).WithError(err).Warn("Iteration failed")
	}

	after := h.sample(ctx)
	wall := time.Since(start)
	h.logStats(ctx, backend)

	dropper, droppable := backend.(storage.Dropper)
	remote := droppable || storage.Remote(engine)
	if droppable && !b.KeepDB {
		if err := dropper.Drop(); err != nil {
			h.logger.WithContext(ctx).WithError(err).Warn("Failed to drop benchmark keys")
		}
	}

	closed = true
	if err := backend.Close(); err != nil {
		return nil, fmt.Errorf("failed to close %s: %w", engine, err)
	}
	h.logger.EngineEvent(ctx, "close", engine, nil)

	res.Resources = performance.Delta(before, after, wall)
	if !remote {
		// measured after close so memtables have been flushed
		size, err := performance.DirSize(path)
		if err != nil {
			h.logger.WithContext(ctx).WithError(err).Debug("Failed to measure database size")
		}
		res.Resources.DiskBytes = size

		switch {
		case b.KeepDB:
		case !owned:
			h.logger.WithContext(ctx).Info("Keeping pre-existing database directory", "path", path)
		default:
			if err := os.RemoveAll(path); err != nil {
				h.logger.WithContext(ctx).WithError(err).Warn("Failed to remove database directory", "path", path)
			}
		}
	}

	res.LogicalBytesWritten, res.LogicalBytesRead = performance.LogicalVolume(
		b.Operations, b.KeySize, b.ValueSize, b.Workload.Writes(), b.Workload.Reads())
	performance.Amplify(&res.Resources, res.LogicalBytesWritten, res.LogicalBytesRead)
	h.logger.Performance(ctx, "cpu_percent", res.Resources.CPUPercent, "percent")
	h.logger.Performance(ctx, "write_amplification", res.Resources.WriteAmplification, "ratio")
	h.logger.Performance(ctx, "space_amplification", res.Resources.SpaceAmplification, "ratio")

	if values, err := keygen.NewValueGenerator(b.ValueSize); err == nil {
		if ratio, err := values.CompressionRatio(compressionSamples); err == nil {
			res.CompressionRatio = ratio
		}
	}

	return res, nil
}

func (h *Harness) runPhase(ctx context.Context, runner *workload.Runner, engine string, phase workload.Phase) (stats performance.OperationStats, err error) {
	ctx = logging.WithPhase(ctx, string(phase))
	ctx, span := h.tracer.StartPhase(ctx, engine, string(phase))

	stats, err = runner.Run(ctx, phase)
	tracing.EndPhase(span, stats.Operations, stats.Errors, stats.Throughput, err)
	if err != nil {
		return stats, fmt.Errorf("%s phase failed: %w", phase, err)
	}

	h.logger.Phase(ctx, string(phase), stats.Operations, stats.Errors, stats.Throughput, stats.Duration)
	return stats, nil
}

func (h *Harness) scan(ctx context.Context, backend storage.Backend, engine string, res *Results) error {
	ctx = logging.WithPhase(ctx, string(workload.PhaseIterate))
	ctx, span := h.tracer.StartPhase(ctx, engine, string(workload.PhaseIterate))

	result, err := workload.Scan(ctx, backend)
	tracing.EndPhase(span, result.Keys, 0, result.Stats.Throughput, err)

	res.IterationSupported = result.Supported
	res.IterationKeys = result.Keys
	res.Iteration = result.Stats

	if err != nil {
		return err
	}
	if !result.Supported {
		h.logger.WithContext(ctx).Info("Iteration not supported")
		return nil
	}

	h.logger.Phase(ctx, string(workload.PhaseIterate), result.Keys, 0, result.Stats.Throughput, result.Stats.Duration)
	return nil
}

// sample never fails the run; a partial sample leaves unread counters zero.
func (h *Harness) sample(ctx context.Context) performance.ResourceSample {
	s, err := h.probe.Sample()
	if err != nil {
		h.logger.WithContext(ctx).WithError(err).Debug("Resource probe degraded")
	}
	return s
}

func (h *Harness) logStats(ctx context.Context, backend storage.Backend) {
	stater, ok := backend.(storage.Stater)
	if !ok {
		return
	}
	h.logger.EngineEvent(ctx, "stats", backend.Name(), stater.Stats())
}

// unusedPath reports whether path is missing or an empty directory.
func unusedPath(path string) bool {
	entries, err := os.ReadDir(path)
	if errors.Is(err, fs.ErrNotExist) {
		return true
	}
	return err == nil && len(entries) == 0
}

// IsUnknownEngine reports whether err came from asking for an engine that
// is not compiled in.
func IsUnknownEngine(err error) bool {
	return errors.Is(err, storage.ErrUnknownEngine)
}

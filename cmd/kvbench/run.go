package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"

	"kvbench/internal/benchmark"
	"kvbench/internal/config"
	"kvbench/internal/keygen"
	"kvbench/internal/logging"
	"kvbench/internal/monitoring"
	"kvbench/internal/report"
	"kvbench/internal/tracing"
)

type runOptions struct {
	engine      string
	operations  int
	keySize     int
	valueSize   int
	threads     int
	batchSize   int
	dbPath      string
	compare     bool
	baseline    string
	reportPath  string
	pattern     string
	workload    string
	sync        bool
	seed        uint64
	configPath  string
	jsonPath    string
	metricsFile string
	logLevel    string
	logFormat   string
	keepDB      bool
	runID       string
	tracing     string
}

// bindRunFlags registers the benchmark flags. Defaults come from
// config.DefaultConfig; only flags set on the command line override a
// config file or the environment.
func bindRunFlags(fs *pflag.FlagSet, o *runOptions) {
	d := config.DefaultConfig()
	b := d.Benchmark

	fs.StringVarP(&o.engine, "engine", "e", b.Engine, "Storage engine to benchmark")
	fs.IntVarP(&o.operations, "operations", "o", b.Operations, "Number of operations per phase")
	fs.IntVarP(&o.keySize, "key-size", "k", b.KeySize, "Key size in bytes")
	fs.IntVarP(&o.valueSize, "value-size", "v", b.ValueSize, "Value size in bytes")
	fs.IntVarP(&o.threads, "threads", "t", b.Threads, "Number of concurrent workers")
	fs.IntVarP(&o.batchSize, "batch-size", "b", b.BatchSize, "Operations per batch for writes and deletes")
	fs.StringVarP(&o.dbPath, "db-path", "d", b.DBPath, "Database path (redis: host:port)")
	fs.BoolVarP(&o.compare, "compare", "c", false, "Also run the baseline engine and compare")
	fs.StringVar(&o.baseline, "baseline", b.Baseline, "Baseline engine for --compare")
	fs.StringVarP(&o.reportPath, "report", "r", "", "Also write the text report to this file")
	fs.StringVarP(&o.pattern, "pattern", "p", string(b.Pattern),
		"Key pattern: seq, random, zipfian, uniform, timestamp, reverse")
	fs.StringVarP(&o.workload, "workload", "w", string(b.Workload), "Workload: write, read, mixed, delete")
	fs.BoolVar(&o.sync, "sync", false, "Flush every write to stable storage")
	fs.Uint64Var(&o.seed, "seed", 0, "Seed for per-worker random sources (0 = random)")
	fs.StringVar(&o.configPath, "config", "", "YAML or TOML configuration file")
	fs.StringVar(&o.jsonPath, "json", "", "Write results as JSON to this file")
	fs.StringVar(&o.metricsFile, "metrics-file", "", "Write Prometheus textfile metrics to this file")
	fs.StringVar(&o.logLevel, "log-level", d.Logging.Level, "Log level: debug, info, warn, error")
	fs.StringVar(&o.logFormat, "log-format", d.Logging.Format, "Log format: console, text, json")
	fs.BoolVar(&o.keepDB, "keep-db", false, "Keep the database after the run")
	fs.StringVar(&o.runID, "run-id", "", "Identifier for logs, spans and metrics (default: generated)")
	fs.StringVar(&o.tracing, "trace", "", "Enable tracing with this exporter: console, otlp")
}

func (o *runOptions) apply(fs *pflag.FlagSet, cfg *config.Config) error {
	b := &cfg.Benchmark
	set := fs.Changed

	if set("engine") {
		b.Engine = o.engine
	}
	if set("operations") {
		b.Operations = o.operations
	}
	if set("key-size") {
		b.KeySize = o.keySize
	}
	if set("value-size") {
		b.ValueSize = o.valueSize
	}
	if set("threads") {
		b.Threads = o.threads
	}
	if set("batch-size") {
		b.BatchSize = o.batchSize
	}
	if set("db-path") {
		b.DBPath = o.dbPath
	}
	if set("compare") {
		b.Compare = o.compare
	}
	if set("baseline") {
		b.Baseline = o.baseline
	}
	if set("report") {
		b.ReportPath = o.reportPath
	}
	if set("pattern") {
		p, err := keygen.ParsePattern(o.pattern)
		if err != nil {
			return err
		}
		b.Pattern = p
	}
	if set("workload") {
		w, err := config.ParseWorkload(o.workload)
		if err != nil {
			return err
		}
		b.Workload = w
	}
	if set("sync") {
		b.Sync = o.sync
	}
	if set("seed") {
		b.Seed = o.seed
	}
	if set("json") {
		b.JSONPath = o.jsonPath
	}
	if set("keep-db") {
		b.KeepDB = o.keepDB
	}
	if set("metrics-file") {
		cfg.Metrics.Enabled = o.metricsFile != ""
		cfg.Metrics.File = o.metricsFile
	}
	if set("log-level") {
		cfg.Logging.Level = o.logLevel
	}
	if set("log-format") {
		cfg.Logging.Format = o.logFormat
	}
	if set("trace") {
		cfg.Tracing.Enabled = o.tracing != ""
		cfg.Tracing.ExporterType = o.tracing
	}

	return cfg.Validate()
}

func runBenchmark(ctx context.Context, out io.Writer, fs *pflag.FlagSet, o *runOptions) error {
	// validated by apply, after flags had their say
	cfg, err := config.Read(o.configPath)
	if err != nil {
		return err
	}
	// logging presets; explicit flags still win
	if env := os.Getenv("KVBENCH_ENV"); env != "" {
		logging.SetupEnvironmentLogging(cfg, env)
	}
	if err := o.apply(fs, cfg); err != nil {
		return err
	}

	logger := logging.NewLogger(&cfg.Logging)

	runID := logging.NewRunID()
	if o.runID != "" {
		runID = logging.SanitizeRunID(o.runID)
		if runID != o.runID {
			logger.Warn("Ignoring unsafe run id", "run_id", o.runID, "generated", runID)
		}
	}

	tracer, err := tracing.New(cfg.Tracing, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err := tracer.Close(context.Background()); err != nil {
			logger.WithError(err).Warn("Failed to flush traces")
		}
	}()

	if err := report.WriteConfig(out, cfg.Benchmark); err != nil {
		return err
	}

	h, err := benchmark.New(cfg, logger, benchmark.WithTracer(tracer), benchmark.WithRunID(runID))
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Running %s benchmark...\n", cfg.Benchmark.Engine)
	res, err := h.Run(ctx)
	if err != nil {
		if benchmark.IsUnknownEngine(err) {
			return fmt.Errorf("%w (see 'kvbench engines')", err)
		}
		return fmt.Errorf("benchmark failed: %w", err)
	}

	var baseline *benchmark.Results
	if cfg.Benchmark.Compare && cfg.Benchmark.Baseline != cfg.Benchmark.Engine {
		fmt.Fprintf(out, "\n=== Running %s Baseline ===\n\n", cfg.Benchmark.Baseline)
		baseline, err = h.RunBaseline(ctx)
		if err != nil {
			// the primary results are still worth reporting
			logger.WithError(err).Error("Baseline benchmark failed", "baseline", cfg.Benchmark.Baseline)
			baseline = nil
		}
	}

	if err := report.Write(out, res, baseline); err != nil {
		return err
	}

	if path := cfg.Benchmark.ReportPath; path != "" {
		if err := report.WriteFile(path, func(w io.Writer) error { return report.Write(w, res, baseline) }); err != nil {
			return err
		}
		fmt.Fprintf(out, "\nReport written to: %s\n", path)
	}

	if path := cfg.Benchmark.JSONPath; path != "" {
		if err := report.WriteFile(path, func(w io.Writer) error { return report.WriteJSON(w, res, baseline) }); err != nil {
			return err
		}
		fmt.Fprintf(out, "Results written to: %s\n", path)
	}

	if cfg.Metrics.Enabled {
		exporter := monitoring.NewExporter(cfg.Metrics.Namespace)
		exporter.Record(res)
		if baseline != nil {
			exporter.Record(baseline)
			exporter.RecordComparison(res, baseline)
		}
		if err := exporter.WriteTextfile(cfg.Metrics.File); err != nil {
			return err
		}
		logger.Info("Metrics written", "file", cfg.Metrics.File)
	}

	return nil
}

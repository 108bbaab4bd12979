// Package report renders benchmark results as text and JSON.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dustin/go-humanize"

	"kvbench/internal/benchmark"
	"kvbench/internal/config"
	"kvbench/internal/performance"
	"kvbench/internal/workload"
)

// WriteConfig echoes the run parameters before any phase starts.
func WriteConfig(w io.Writer, b config.BenchmarkConfig) error {
	ew := &errWriter{w: w}

	ew.printf("=== Storage Engine Benchmark ===\n\n")
	ew.printf("Configuration:\n")
	ew.printf("  Engine: %s\n", b.Engine)
	ew.printf("  Operations: %s\n", humanize.Comma(int64(b.Operations)))
	ew.printf("  Key Size: %d bytes\n", b.KeySize)
	ew.printf("  Value Size: %d bytes\n", b.ValueSize)
	ew.printf("  Threads: %d\n", b.Threads)
	ew.printf("  Batch Size: %d\n", b.BatchSize)
	ew.printf("  Key Pattern: %s\n", b.Pattern.Description())
	ew.printf("  Workload: %s\n", b.Workload.Description())
	ew.printf("  Sync: %t\n", b.Sync)
	if b.Compare {
		ew.printf("  Baseline: %s\n", b.Baseline)
	}
	ew.printf("\n")

	return ew.err
}

// Write renders results, and the comparison block when baseline is not nil.
func Write(w io.Writer, res *benchmark.Results, baseline *benchmark.Results) error {
	ew := &errWriter{w: w}

	ew.printf("\n=== Benchmark Results ===\n\n")
	ew.printf("Engine: %s (%s)\n", res.Engine, res.EngineVersion)
	ew.printf("Run ID: %s\n", res.RunID)
	ew.printf("Operations: %d\n", res.Config.Operations)
	ew.printf("Threads: %d\n", res.Config.Threads)
	ew.printf("Key Size: %d bytes\n", res.Config.KeySize)
	ew.printf("Value Size: %d bytes\n\n", res.Config.ValueSize)

	for _, phase := range []workload.Phase{workload.PhasePut, workload.PhaseGet, workload.PhaseDelete} {
		if stats := res.Stats(phase); stats.Ran() {
			writePhase(ew, phase, stats)
		}
	}

	if res.IterationSupported {
		ew.printf("ITERATION:\n")
		ew.printf("  Keys: %d\n", res.IterationKeys)
		ew.printf("  Throughput: %.2f ops/sec\n", res.Iteration.Throughput)
		ew.printf("  Duration: %.3f seconds\n\n", res.Iteration.Duration.Seconds())
	} else {
		ew.printf("ITERATION: not supported\n\n")
	}

	writeResources(ew, res)

	if baseline != nil {
		writeComparison(ew, res, baseline)
	}

	return ew.err
}

func writePhase(ew *errWriter, phase workload.Phase, s performance.OperationStats) {
	ew.printf("%s Operations:\n", phase.Label())
	ew.printf("  Throughput: %.2f ops/sec\n", s.Throughput)
	ew.printf("  Duration: %.3f seconds\n", s.Duration.Seconds())
	ew.printf("  Latency (avg): %.2f μs\n", s.AvgLatency)
	ew.printf("  Latency (p50): %.2f μs\n", s.P50Latency)
	ew.printf("  Latency (p95): %.2f μs\n", s.P95Latency)
	ew.printf("  Latency (p99): %.2f μs\n", s.P99Latency)
	ew.printf("  Latency (min): %.2f μs\n", s.MinLatency)
	ew.printf("  Latency (max): %.2f μs\n", s.MaxLatency)
	if s.Errors > 0 {
		ew.printf("  Errors: %d\n", s.Errors)
	}
	ew.printf("\n")
}

func writeResources(ew *errWriter, res *benchmark.Results) {
	r := res.Resources

	ew.printf("Resources:\n")
	ew.printf("  Peak RSS: %s\n", humanize.IBytes(r.PeakRSSBytes))
	ew.printf("  Peak VMS: %s\n", humanize.IBytes(r.PeakVMSBytes))
	ew.printf("  Disk Reads: %s\n", humanize.IBytes(r.BytesRead))
	ew.printf("  Disk Writes: %s\n", humanize.IBytes(r.BytesWritten))
	ew.printf("  CPU User: %.3f seconds\n", r.UserCPUSeconds)
	ew.printf("  CPU System: %.3f seconds\n", r.SystemCPUSeconds)
	ew.printf("  CPU Utilization: %.1f%%\n", r.CPUPercent)
	if r.DiskBytes > 0 {
		ew.printf("  Database Size: %s\n", humanize.IBytes(r.DiskBytes))
	}
	if res.CompressionRatio > 0 {
		ew.printf("  Value Compressibility: %.2fx\n", res.CompressionRatio)
	}
	ew.printf("\n")

	var amps []string
	if r.WriteAmplification > 0 {
		amps = append(amps, fmt.Sprintf("  Write: %.2fx", r.WriteAmplification))
	}
	if r.ReadAmplification > 0 {
		amps = append(amps, fmt.Sprintf("  Read: %.2fx", r.ReadAmplification))
	}
	if r.SpaceAmplification > 0 {
		amps = append(amps, fmt.Sprintf("  Space: %.2fx", r.SpaceAmplification))
	}
	if len(amps) > 0 {
		ew.printf("Amplification:\n%s\n\n", strings.Join(amps, "\n"))
	}
}

func writeComparison(ew *errWriter, res, baseline *benchmark.Results) {
	ew.printf("=== Comparison vs %s ===\n\n", baseline.Engine)
	for _, s := range benchmark.Compare(res, baseline) {
		verdict := "slower"
		if s.Faster() {
			verdict = "faster"
		}
		ew.printf("%s: %.2fx %s\n", s.Phase.Label(), s.Factor, verdict)
	}
}

// Export is the JSON document written by WriteJSON.
type Export struct {
	Results    *benchmark.Results  `json:"results"`
	Baseline   *benchmark.Results  `json:"baseline,omitempty"`
	Comparison []benchmark.Speedup `json:"comparison,omitempty"`
}

// WriteJSON encodes results, and the baseline with speedups when present.
func WriteJSON(w io.Writer, res, baseline *benchmark.Results) error {
	export := Export{Results: res, Baseline: baseline}
	if baseline != nil {
		export.Comparison = benchmark.Compare(res, baseline)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(export); err != nil {
		return fmt.Errorf("failed to encode results: %w", err)
	}
	return nil
}

// WriteFile renders with fn into path, replacing any previous file.
func WriteFile(path string, fn func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := fn(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// errWriter remembers the first write error so rendering code stays linear.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...interface{}) {
	if ew.err != nil {
		return
	}
	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}

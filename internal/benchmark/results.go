package benchmark

import (
	"time"

	"kvbench/internal/config"
	"kvbench/internal/performance"
	"kvbench/internal/workload"
)

// Results is everything measured during one run of one engine.
type Results struct {
	RunID         string                 `json:"run_id"`
	StartedAt     time.Time              `json:"started_at"`
	Engine        string                 `json:"engine"`
	EngineVersion string                 `json:"engine_version"`
	Config        config.BenchmarkConfig `json:"config"`

	Put       performance.OperationStats `json:"put"`
	Get       performance.OperationStats `json:"get"`
	Delete    performance.OperationStats `json:"delete"`
	Iteration performance.OperationStats `json:"iteration"`

	IterationSupported bool `json:"iteration_supported"`
	IterationKeys      int  `json:"iteration_keys"`

	Resources           performance.ResourceMetrics `json:"resources"`
	LogicalBytesWritten uint64                      `json:"logical_bytes_written"`
	LogicalBytesRead    uint64                      `json:"logical_bytes_read"`

	// CompressionRatio is how well the generated values compress with zstd;
	// it explains space amplification below 1 on compressing engines.
	CompressionRatio float64 `json:"value_compression_ratio,omitempty"`
}

// Stats returns the statistics of a phase.
func (r *Results) Stats(phase workload.Phase) performance.OperationStats {
	switch phase {
	case workload.PhasePut:
		return r.Put
	case workload.PhaseGet:
		return r.Get
	case workload.PhaseDelete:
		return r.Delete
	case workload.PhaseIterate:
		return r.Iteration
	default:
		return performance.OperationStats{}
	}
}

func (r *Results) setStats(phase workload.Phase, stats performance.OperationStats) {
	switch phase {
	case workload.PhasePut:
		r.Put = stats
	case workload.PhaseGet:
		r.Get = stats
	case workload.PhaseDelete:
		r.Delete = stats
	case workload.PhaseIterate:
		r.Iteration = stats
	}
}

// TotalErrors sums failed operations over all phases.
func (r *Results) TotalErrors() int {
	return r.Put.Errors + r.Get.Errors + r.Delete.Errors
}

// Phases lists the measured phases in execution order.
func Phases(w config.Workload) []workload.Phase {
	var phases []workload.Phase
	if w.Writes() {
		phases = append(phases, workload.PhasePut)
	}
	if w.Reads() {
		phases = append(phases, workload.PhaseGet)
	}
	if w.Deletes() {
		phases = append(phases, workload.PhaseDelete)
	}
	return phases
}

// Speedup is current over baseline throughput for one phase.
type Speedup struct {
	Phase  workload.Phase `json:"phase"`
	Factor float64        `json:"factor"`
}

// Faster reports whether the current engine beat the baseline.
func (s Speedup) Faster() bool { return s.Factor > 1.0 }

// Compare computes per-phase speedups for phases both runs executed.
func Compare(current, baseline *Results) []Speedup {
	var out []Speedup
	for _, phase := range []workload.Phase{workload.PhasePut, workload.PhaseGet, workload.PhaseDelete, workload.PhaseIterate} {
		cur, base := current.Stats(phase), baseline.Stats(phase)
		if cur.Throughput > 0 && base.Throughput > 0 {
			out = append(out, Speedup{Phase: phase, Factor: cur.Throughput / base.Throughput})
		}
	}
	return out
}

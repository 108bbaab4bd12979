package performance

import (
	"slices"
	"time"
)

// OperationStats summarizes one measured phase. Latencies are in
// microseconds.
type OperationStats struct {
	Operations int           `json:"operations"`
	Errors     int           `json:"errors"`
	Duration   time.Duration `json:"duration"`
	Throughput float64       `json:"ops_per_sec"`

	MinLatency float64 `json:"min_latency_us"`
	AvgLatency float64 `json:"avg_latency_us"`
	P50Latency float64 `json:"p50_latency_us"`
	P95Latency float64 `json:"p95_latency_us"`
	P99Latency float64 `json:"p99_latency_us"`
	MaxLatency float64 `json:"max_latency_us"`
}

// Ran reports whether the phase was executed.
func (s OperationStats) Ran() bool { return s.Duration > 0 }

// Compute derives phase statistics from raw per-operation latencies. The
// slice is sorted in place.
//
// Throughput divides the configured operation count by the wall time, not
// the number of samples: when operations do not split evenly across
// workers the remainder is never executed but still counted here.
func Compute(latencies []float64, configuredOps int, duration time.Duration) OperationStats {
	stats := OperationStats{
		Operations: len(latencies),
		Duration:   duration,
	}
	if secs := duration.Seconds(); secs > 0 {
		stats.Throughput = float64(configuredOps) / secs
	}

	if len(latencies) == 0 {
		return stats
	}

	slices.Sort(latencies)

	var total float64
	for _, l := range latencies {
		total += l
	}

	stats.MinLatency = latencies[0]
	stats.MaxLatency = latencies[len(latencies)-1]
	stats.AvgLatency = total / float64(len(latencies))
	stats.P50Latency = Percentile(latencies, 0.50)
	stats.P95Latency = Percentile(latencies, 0.95)
	stats.P99Latency = Percentile(latencies, 0.99)

	return stats
}

// Percentile returns the nearest-rank percentile p in [0, 1] of an
// ascending slice: the element at floor(len*p), clamped to the last index.
func Percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}

	idx := int(float64(len(sorted)) * p)
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	if idx < 0 {
		idx = 0
	}
	return sorted[idx]
}

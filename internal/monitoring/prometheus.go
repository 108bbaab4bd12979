// Package monitoring exports benchmark results as Prometheus metrics for
// node_exporter's textfile collector.
package monitoring

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"kvbench/internal/benchmark"
	"kvbench/internal/workload"
)

// Exporter holds the gauges of one or more runs in a private registry.
type Exporter struct {
	registry *prometheus.Registry

	throughput *prometheus.GaugeVec
	latency    *prometheus.GaugeVec
	operations *prometheus.GaugeVec
	errors     *prometheus.GaugeVec
	duration   *prometheus.GaugeVec

	memory        *prometheus.GaugeVec
	diskIO        *prometheus.GaugeVec
	cpu           *prometheus.GaugeVec
	dbSize        *prometheus.GaugeVec
	amplification *prometheus.GaugeVec
	speedup       *prometheus.GaugeVec
}

func NewExporter(namespace string) *Exporter {
	e := &Exporter{registry: prometheus.NewRegistry()}

	phaseLabels := []string{"engine", "run_id", "phase"}
	runLabels := []string{"engine", "run_id"}

	e.throughput = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "phase_throughput_ops_per_second",
		Help:      "Operations per second of a benchmark phase",
	}, phaseLabels)
	e.latency = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "phase_latency_microseconds",
		Help:      "Per-operation latency of a benchmark phase by statistic",
	}, append(phaseLabels, "stat"))
	e.operations = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "phase_operations",
		Help:      "Operations executed in a benchmark phase",
	}, phaseLabels)
	e.errors = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "phase_errors",
		Help:      "Failed operations in a benchmark phase",
	}, phaseLabels)
	e.duration = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "phase_duration_seconds",
		Help:      "Wall time of a benchmark phase",
	}, phaseLabels)

	e.memory = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "peak_memory_bytes",
		Help:      "Peak process memory during the run",
	}, append(runLabels, "kind"))
	e.diskIO = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "disk_io_bytes",
		Help:      "Physical storage I/O during the run",
	}, append(runLabels, "direction"))
	e.cpu = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "cpu_seconds",
		Help:      "CPU time consumed during the run",
	}, append(runLabels, "mode"))
	e.dbSize = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "database_size_bytes",
		Help:      "On-disk size of the database after the run",
	}, runLabels)
	e.amplification = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "amplification_ratio",
		Help:      "Physical over logical bytes",
	}, append(runLabels, "kind"))
	e.speedup = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "speedup_ratio",
		Help:      "Throughput of the engine over the baseline engine",
	}, []string{"engine", "baseline", "run_id", "phase"})

	e.registry.MustRegister(
		e.throughput, e.latency, e.operations, e.errors, e.duration,
		e.memory, e.diskIO, e.cpu, e.dbSize, e.amplification, e.speedup,
	)

	return e
}

// Registry exposes the underlying registry, e.g. for an HTTP handler.
func (e *Exporter) Registry() *prometheus.Registry { return e.registry }

// Record sets the gauges for every phase the run executed.
func (e *Exporter) Record(res *benchmark.Results) {
	for _, phase := range []workload.Phase{workload.PhasePut, workload.PhaseGet, workload.PhaseDelete, workload.PhaseIterate} {
		s := res.Stats(phase)
		if !s.Ran() {
			continue
		}
		labels := prometheus.Labels{"engine": res.Engine, "run_id": res.RunID, "phase": string(phase)}

		e.throughput.With(labels).Set(s.Throughput)
		e.operations.With(labels).Set(float64(s.Operations))
		e.errors.With(labels).Set(float64(s.Errors))
		e.duration.With(labels).Set(s.Duration.Seconds())

		if phase == workload.PhaseIterate {
			continue
		}
		for stat, v := range map[string]float64{
			"min": s.MinLatency, "avg": s.AvgLatency, "p50": s.P50Latency,
			"p95": s.P95Latency, "p99": s.P99Latency, "max": s.MaxLatency,
		} {
			e.latency.WithLabelValues(res.Engine, res.RunID, string(phase), stat).Set(v)
		}
	}

	r := res.Resources
	e.memory.WithLabelValues(res.Engine, res.RunID, "rss").Set(float64(r.PeakRSSBytes))
	e.memory.WithLabelValues(res.Engine, res.RunID, "vms").Set(float64(r.PeakVMSBytes))
	e.diskIO.WithLabelValues(res.Engine, res.RunID, "read").Set(float64(r.BytesRead))
	e.diskIO.WithLabelValues(res.Engine, res.RunID, "write").Set(float64(r.BytesWritten))
	e.cpu.WithLabelValues(res.Engine, res.RunID, "user").Set(r.UserCPUSeconds)
	e.cpu.WithLabelValues(res.Engine, res.RunID, "system").Set(r.SystemCPUSeconds)
	e.dbSize.WithLabelValues(res.Engine, res.RunID).Set(float64(r.DiskBytes))

	for kind, v := range map[string]float64{
		"write": r.WriteAmplification,
		"read":  r.ReadAmplification,
		"space": r.SpaceAmplification,
	} {
		if v > 0 {
			e.amplification.WithLabelValues(res.Engine, res.RunID, kind).Set(v)
		}
	}
}

// RecordComparison sets the speedup gauges of res against baseline.
func (e *Exporter) RecordComparison(res, baseline *benchmark.Results) {
	for _, s := range benchmark.Compare(res, baseline) {
		e.speedup.WithLabelValues(res.Engine, baseline.Engine, res.RunID, string(s.Phase)).Set(s.Factor)
	}
}

// WriteTextfile atomically writes all gauges in the text exposition format.
func (e *Exporter) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, e.registry); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	return nil
}

package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kvbench/internal/benchmark"
	"kvbench/internal/config"
	"kvbench/internal/performance"
)

func sampleResults(engine string, putTput float64) *benchmark.Results {
	cfg := config.DefaultConfig().Benchmark
	cfg.Engine = engine
	cfg.Operations = 1000

	return &benchmark.Results{
		RunID:         "run-1",
		Engine:        engine,
		EngineVersion: "v1.2.3",
		Config:        cfg,
		Put: performance.OperationStats{
			Operations: 1000,
			Duration:   500 * time.Millisecond,
			Throughput: putTput,
			MinLatency: 1, AvgLatency: 5, P50Latency: 4, P95Latency: 9, P99Latency: 12, MaxLatency: 40,
		},
		Get: performance.OperationStats{
			Operations: 1000,
			Errors:     3,
			Duration:   250 * time.Millisecond,
			Throughput: 4000,
		},
		IterationSupported: true,
		IterationKeys:      1000,
		Iteration:          performance.OperationStats{Duration: 10 * time.Millisecond, Throughput: 100000},
		Resources: performance.ResourceMetrics{
			PeakRSSBytes:       64 << 20,
			BytesWritten:       3 << 20,
			DiskBytes:          1 << 20,
			WriteAmplification: 2.5,
			SpaceAmplification: 0.8,
		},
		CompressionRatio: 12.5,
	}
}

func TestWrite(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, sampleResults("badger", 2000), nil))
	out := buf.String()

	for _, want := range []string{
		"=== Benchmark Results ===",
		"Engine: badger (v1.2.3)",
		"PUT Operations:",
		"  Throughput: 2000.00 ops/sec",
		"  Duration: 0.500 seconds",
		"  Latency (p99): 12.00 μs",
		"GET Operations:",
		"  Errors: 3",
		"ITERATION:",
		"  Keys: 1000",
		"Peak RSS: 64 MiB",
		"Database Size: 1.0 MiB",
		"  Write: 2.50x",
		"  Space: 0.80x",
	} {
		assert.Contains(t, out, want)
	}

	assert.NotContains(t, out, "DELETE Operations:", "phases that did not run are omitted")
	assert.NotContains(t, out, "  Read: ", "zero amplification factors are omitted")
	assert.NotContains(t, out, "Comparison")
}

func TestWriteIterationUnsupported(t *testing.T) {
	res := sampleResults("redis", 2000)
	res.IterationSupported = false

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, res, nil))
	assert.Contains(t, buf.String(), "ITERATION: not supported")
}

func TestWriteComparison(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, sampleResults("badger", 2000), sampleResults("pebble", 1000)))
	out := buf.String()

	assert.Contains(t, out, "=== Comparison vs pebble ===")
	assert.Contains(t, out, "PUT: 2.00x faster")
	assert.Contains(t, out, "GET: 1.00x slower")
	assert.Contains(t, out, "ITER: 1.00x slower")
}

func TestWriteConfig(t *testing.T) {
	b := config.DefaultConfig().Benchmark
	b.Compare = true

	var buf bytes.Buffer
	require.NoError(t, WriteConfig(&buf, b))
	out := buf.String()

	assert.Contains(t, out, "Operations: 1,000,000")
	assert.Contains(t, out, "Key Pattern: Random")
	assert.Contains(t, out, "Workload: Mixed")
	assert.Contains(t, out, "Baseline: pebble")
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, sampleResults("badger", 2000), sampleResults("pebble", 1000)))

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))

	results := decoded["results"].(map[string]interface{})
	assert.Equal(t, "badger", results["engine"])
	assert.Equal(t, float64(2000), results["put"].(map[string]interface{})["ops_per_sec"])

	comparison := decoded["comparison"].([]interface{})
	require.Len(t, comparison, 3)
	assert.Equal(t, "put", comparison[0].(map[string]interface{})["phase"])
}

func TestWriteJSONWithoutBaseline(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, sampleResults("badger", 2000), nil))

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))

	assert.Contains(t, decoded, "results")
	assert.NotContains(t, decoded, "baseline")
	assert.NotContains(t, decoded, "comparison")
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("closed pipe") }

func TestWritePropagatesErrors(t *testing.T) {
	assert.Error(t, Write(failingWriter{}, sampleResults("badger", 1), nil))
	assert.Error(t, WriteConfig(failingWriter{}, config.DefaultConfig().Benchmark))
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.txt")
	res := sampleResults("badger", 2000)

	require.NoError(t, WriteFile(path, func(w io.Writer) error { return Write(w, res, nil) }))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "PUT Operations:")
}

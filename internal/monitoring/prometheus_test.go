package monitoring

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kvbench/internal/benchmark"
	"kvbench/internal/performance"
)

func results(engine string, put float64) *benchmark.Results {
	return &benchmark.Results{
		RunID:  "run-9",
		Engine: engine,
		Put: performance.OperationStats{
			Operations: 100,
			Errors:     2,
			Duration:   time.Second,
			Throughput: put,
			P99Latency: 42,
		},
		Iteration: performance.OperationStats{Operations: 100, Duration: time.Millisecond, Throughput: 1e5},
		Resources: performance.ResourceMetrics{
			PeakRSSBytes:       1 << 20,
			BytesWritten:       4096,
			WriteAmplification: 1.5,
		},
	}
}

func TestExporterRecord(t *testing.T) {
	e := NewExporter("kvbench")
	e.Record(results("badger", 250))

	assert.Equal(t, 250.0, testutil.ToFloat64(e.throughput.WithLabelValues("badger", "run-9", "put")))
	assert.Equal(t, 2.0, testutil.ToFloat64(e.errors.WithLabelValues("badger", "run-9", "put")))
	assert.Equal(t, 42.0, testutil.ToFloat64(e.latency.WithLabelValues("badger", "run-9", "put", "p99")))
	assert.Equal(t, 1.5, testutil.ToFloat64(e.amplification.WithLabelValues("badger", "run-9", "write")))
	assert.Equal(t, float64(1<<20), testutil.ToFloat64(e.memory.WithLabelValues("badger", "run-9", "rss")))

	// get did not run, iteration has no latency samples
	assert.Equal(t, 2, testutil.CollectAndCount(e.throughput))
	assert.Equal(t, 6, testutil.CollectAndCount(e.latency))
	assert.Equal(t, 1, testutil.CollectAndCount(e.amplification), "zero factors are not exported")
}

func TestExporterComparison(t *testing.T) {
	e := NewExporter("kvbench")
	e.RecordComparison(results("badger", 300), results("pebble", 100))

	assert.Equal(t, 3.0, testutil.ToFloat64(e.speedup.WithLabelValues("badger", "pebble", "run-9", "put")))
	assert.Equal(t, 2, testutil.CollectAndCount(e.speedup))
}

func TestWriteTextfile(t *testing.T) {
	e := NewExporter("kvbench")
	e.Record(results("pebble", 10))

	path := filepath.Join(t.TempDir(), "kvbench.prom")
	require.NoError(t, e.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)

	assert.Contains(t, out, "# TYPE kvbench_phase_throughput_ops_per_second gauge")
	assert.True(t, strings.Contains(out, `kvbench_phase_throughput_ops_per_second{engine="pebble",phase="put",run_id="run-9"} 10`))
}

func TestWriteTextfileBadPath(t *testing.T) {
	e := NewExporter("kvbench")
	err := e.WriteTextfile(filepath.Join(t.TempDir(), "missing", "dir", "kvbench.prom"))
	assert.Error(t, err)
}

package benchmarks

import (
	"testing"

	"kvbench/internal/keygen"
	"kvbench/internal/storage"
)

// openRedis skips the benchmark when no server answers on localhost:6379.
func openRedis(b *testing.B) storage.Backend {
	b.Helper()

	opts := storage.Options{Path: "localhost:6379", Engines: storage.DefaultEngineOptions()}
	opts.Engines.Redis.KeyPrefix = "kvbench-bench:"

	backend, err := storage.Open("redis", opts)
	if err != nil {
		b.Skipf("Redis not available for comparison: %v", err)
	}
	b.Cleanup(func() {
		backend.(storage.Dropper).Drop()
		backend.Close()
	})
	return backend
}

func BenchmarkRedis_Put(b *testing.B) {
	backend := openRedis(b)
	values, _ := keygen.NewValueGenerator(valueSize)
	value := values.Generate(nil, 0)
	gen, _ := keygen.NewKeyGenerator(keygen.PatternRandom, keySize, b.N)
	var key []byte

	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		key, _ = gen.Generate(key, i)
		if err := backend.Put(key, value); err != nil {
			b.Fatalf("Put failed: %v", err)
		}
	}
}

func BenchmarkRedis_PipelinePut(b *testing.B) {
	backend := openRedis(b)
	batcher := backend.(storage.Batcher)
	values, _ := keygen.NewValueGenerator(valueSize)
	value := values.Generate(nil, 0)
	gen, _ := keygen.NewKeyGenerator(keygen.PatternSequential, keySize, b.N)
	var key []byte

	b.ResetTimer()

	batch := batcher.NewBatch()
	for i := 0; i < b.N; i++ {
		key, _ = gen.Generate(key, i)
		batch.Put(key, value)
		if batch.Len() >= 100 {
			if err := batch.Commit(); err != nil {
				b.Fatalf("Commit failed: %v", err)
			}
			batch = batcher.NewBatch()
		}
	}
	if err := batch.Commit(); err != nil {
		b.Fatalf("Commit failed: %v", err)
	}
}

// Package testutil holds helpers shared by package tests and the benchmark
// suites.
package testutil

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"kvbench/internal/config"
	"kvbench/internal/keygen"
	"kvbench/internal/logging"
	"kvbench/internal/storage"
)

// OpenBackend opens engine in a temporary directory, or in memory when the
// engine supports it, and closes it when the test ends.
func OpenBackend(tb testing.TB, engine string, inMemory bool) storage.Backend {
	tb.Helper()

	opts := storage.Options{
		Path:     filepath.Join(tb.TempDir(), engine),
		InMemory: inMemory,
		Engines:  storage.DefaultEngineOptions(),
	}

	backend, err := storage.Open(engine, opts)
	if err != nil {
		tb.Fatalf("Failed to open %s: %v", engine, err)
	}

	tb.Cleanup(func() {
		if dropper, ok := backend.(storage.Dropper); ok {
			dropper.Drop()
		}
		backend.Close()
	})

	return backend
}

// TestConfig returns a small, valid configuration writing under a
// temporary directory.
func TestConfig(tb testing.TB) *config.Config {
	tb.Helper()

	cfg := config.DefaultConfig()
	cfg.Benchmark.Operations = 1000
	cfg.Benchmark.DBPath = filepath.Join(tb.TempDir(), "bench_db")
	cfg.Logging = logging.TestLoggingConfig()
	return cfg
}

// TestLogger returns a logger that only reports errors.
func TestLogger() *logging.Logger {
	cfg := logging.TestLoggingConfig()
	return logging.NewLoggerTo(&cfg, os.Stderr)
}

// Keys renders n keys of the pattern into freshly allocated slices.
func Keys(tb testing.TB, pattern keygen.Pattern, keySize, n int) [][]byte {
	tb.Helper()

	gen, err := keygen.NewKeyGenerator(pattern, keySize, n)
	if err != nil {
		tb.Fatalf("Failed to create key generator: %v", err)
	}

	keys := make([][]byte, n)
	for i := range keys {
		key, err := gen.Generate(nil, i)
		if err != nil {
			tb.Fatalf("Failed to generate key %d: %v", i, err)
		}
		keys[i] = key
	}
	return keys
}

// Populate writes n sequential keys with generated values and returns them.
func Populate(tb testing.TB, backend storage.Backend, n, keySize, valueSize int) [][]byte {
	tb.Helper()

	values, err := keygen.NewValueGenerator(valueSize)
	if err != nil {
		tb.Fatalf("Failed to create value generator: %v", err)
	}

	keys := Keys(tb, keygen.PatternSequential, keySize, n)
	var buf []byte
	for i, key := range keys {
		buf = values.Generate(buf, i)
		if err := backend.Put(key, buf); err != nil {
			tb.Fatalf("Setup Put failed: %v", err)
		}
	}
	return keys
}

// AssertKeyValue fails the test unless key holds expected.
func AssertKeyValue(tb testing.TB, backend storage.Backend, key, expected []byte) {
	tb.Helper()

	got, err := backend.Get(key)
	if err != nil {
		tb.Fatalf("Expected key %q to exist: %v", key, err)
	}
	if string(got) != string(expected) {
		tb.Errorf("Expected value %q for key %q, got %q", expected, key, got)
	}
}

// AssertKeyNotExists fails the test unless key is absent.
func AssertKeyNotExists(tb testing.TB, backend storage.Backend, key []byte) {
	tb.Helper()

	if _, err := backend.Get(key); !errors.Is(err, storage.ErrKeyNotFound) {
		tb.Errorf("Expected key %q to be absent, got err=%v", key, err)
	}
}

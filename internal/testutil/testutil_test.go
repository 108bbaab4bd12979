package testutil

import (
	"bytes"
	"testing"

	"kvbench/internal/keygen"
)

func TestOpenBackend(t *testing.T) {
	for _, engine := range []string{"badger", "pebble", "sqlite"} {
		t.Run(engine, func(t *testing.T) {
			backend := OpenBackend(t, engine, false)
			if backend.Name() != engine {
				t.Errorf("Expected engine %s, got %s", engine, backend.Name())
			}

			keys := Populate(t, backend, 50, 20, 32)
			if len(keys) != 50 {
				t.Fatalf("Expected 50 keys, got %d", len(keys))
			}

			values, _ := keygen.NewValueGenerator(32)
			AssertKeyValue(t, backend, keys[7], values.Generate(nil, 7))

			if err := backend.Delete(keys[7]); err != nil {
				t.Fatalf("Delete failed: %v", err)
			}
			AssertKeyNotExists(t, backend, keys[7])
		})
	}
}

func TestKeys(t *testing.T) {
	keys := Keys(t, keygen.PatternSequential, 16, 10)

	for i := 1; i < len(keys); i++ {
		if bytes.Compare(keys[i-1], keys[i]) >= 0 {
			t.Fatalf("Expected ascending keys, %q >= %q", keys[i-1], keys[i])
		}
	}
	if &keys[0][0] == &keys[1][0] {
		t.Error("Expected independent key buffers")
	}
}

func TestTestConfig(t *testing.T) {
	cfg := TestConfig(t)
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Expected valid config: %v", err)
	}
	if cfg.Logging.Level != "error" {
		t.Errorf("Expected error level logging, got %s", cfg.Logging.Level)
	}
	TestLogger().Info("should be filtered")
}

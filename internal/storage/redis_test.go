package storage

import (
	"errors"
	"fmt"
	"testing"
)

func setupRedisEngine(t *testing.T) *RedisEngine {
	t.Helper()

	opts := Options{Path: defaultRedisAddr, Engines: DefaultEngineOptions()}
	opts.Engines.Redis.KeyPrefix = fmt.Sprintf("kvbench-test-%s:", t.Name())

	e, err := NewRedisEngine(opts)
	if err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	t.Cleanup(func() {
		e.Drop()
		e.Close()
	})
	return e
}

func TestRedis_PutGetDelete(t *testing.T) {
	e := setupRedisEngine(t)

	if err := e.Put([]byte("k1"), []byte("v1")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	got, err := e.Get([]byte("k1"))
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(got) != "v1" {
		t.Errorf("Get = %q, want v1", got)
	}

	if err := e.Delete([]byte("k1")); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := e.Get([]byte("k1")); !errors.Is(err, ErrKeyNotFound) {
		t.Errorf("Get after Delete error = %v, want ErrKeyNotFound", err)
	}
}

func TestRedis_IterateAndDrop(t *testing.T) {
	e := setupRedisEngine(t)

	batch := e.NewBatch()
	for i := 0; i < 50; i++ {
		batch.Put([]byte(fmt.Sprintf("key%03d", i)), []byte("v"))
	}
	if err := batch.Commit(); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	it, err := e.NewIterator()
	if err != nil {
		t.Fatalf("NewIterator failed: %v", err)
	}
	count := 0
	for it.SeekToFirst(); it.Valid(); it.Next() {
		if want := fmt.Sprintf("key%03d", count); string(it.Key()) != want {
			t.Errorf("key %d = %q, want %q", count, it.Key(), want)
		}
		if string(it.Value()) != "v" {
			t.Errorf("value for %q = %q", it.Key(), it.Value())
		}
		count++
	}
	it.Close()

	if count != 50 {
		t.Errorf("iterated %d keys, want 50", count)
	}

	if err := e.Drop(); err != nil {
		t.Fatalf("Drop failed: %v", err)
	}
	if _, err := e.Get([]byte("key000")); !errors.Is(err, ErrKeyNotFound) {
		t.Errorf("key survived Drop: %v", err)
	}
}

func TestRedis_UnreachableServer(t *testing.T) {
	_, err := NewRedisEngine(Options{Path: "127.0.0.1:1", Engines: DefaultEngineOptions()})
	if err == nil {
		t.Fatal("expected error for unreachable server")
	}
}

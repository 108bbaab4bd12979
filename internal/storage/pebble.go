package storage

import (
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
)

const pebbleModule = "github.com/cockroachdb/pebble"

func init() {
	Register("pebble", func(opts Options) (Backend, error) {
		return NewPebbleEngine(opts)
	})
}

// PebbleEngine adapts CockroachDB's RocksDB-compatible LSM tree.
type PebbleEngine struct {
	db *pebble.DB
	wo *pebble.WriteOptions
}

var (
	_ Backend  = (*PebbleEngine)(nil)
	_ Batcher  = (*PebbleEngine)(nil)
	_ Iterable = (*PebbleEngine)(nil)
	_ Stater   = (*PebbleEngine)(nil)
)

func NewPebbleEngine(opts Options) (*PebbleEngine, error) {
	cfg := opts.Engines.Pebble

	popts := &pebble.Options{}
	if cfg.CacheSize > 0 {
		cache := pebble.NewCache(cfg.CacheSize)
		defer cache.Unref()
		popts.Cache = cache
	}
	if cfg.MemTableSize > 0 {
		popts.MemTableSize = cfg.MemTableSize
	}
	if cfg.L0CompactionThreshold > 0 {
		popts.L0CompactionThreshold = cfg.L0CompactionThreshold
	}
	if cfg.MaxOpenFiles > 0 {
		popts.MaxOpenFiles = cfg.MaxOpenFiles
	}
	if opts.InMemory {
		popts.FS = vfs.NewMem()
	}

	db, err := pebble.Open(opts.Path, popts)
	if err != nil {
		return nil, fmt.Errorf("failed to open pebble database: %w", err)
	}

	wo := pebble.NoSync
	if opts.Sync {
		wo = pebble.Sync
	}

	return &PebbleEngine{db: db, wo: wo}, nil
}

func (e *PebbleEngine) Name() string    { return "pebble" }
func (e *PebbleEngine) Version() string { return moduleVersion(pebbleModule) }

func (e *PebbleEngine) Put(key, value []byte) error {
	return e.db.Set(key, value, e.wo)
}

func (e *PebbleEngine) Get(key []byte) ([]byte, error) {
	v, closer, err := e.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	return clone(v), nil
}

func (e *PebbleEngine) Delete(key []byte) error {
	return e.db.Delete(key, e.wo)
}

func (e *PebbleEngine) Close() error {
	return e.db.Close()
}

func (e *PebbleEngine) Stats() map[string]interface{} {
	m := e.db.Metrics()

	return map[string]interface{}{
		"compactions": m.Compact.Count,
		"flushes":     m.Flush.Count,
		"disk_usage":  m.DiskSpaceUsage(),
		"read_amp":    m.ReadAmp(),
		"wal_bytes":   m.WAL.BytesWritten,
	}
}

func (e *PebbleEngine) NewBatch() Batch {
	return &pebbleBatch{b: e.db.NewBatch(), wo: e.wo}
}

type pebbleBatch struct {
	b  *pebble.Batch
	wo *pebble.WriteOptions
	n  int
}

func (b *pebbleBatch) Put(key, value []byte) error {
	if err := b.b.Set(key, value, nil); err != nil {
		return err
	}
	b.n++
	return nil
}

func (b *pebbleBatch) Delete(key []byte) error {
	if err := b.b.Delete(key, nil); err != nil {
		return err
	}
	b.n++
	return nil
}

func (b *pebbleBatch) Commit() error {
	defer b.b.Close()
	return b.b.Commit(b.wo)
}

func (b *pebbleBatch) Len() int { return b.n }

func (e *PebbleEngine) NewIterator() (Iterator, error) {
	it, err := e.db.NewIter(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create pebble iterator: %w", err)
	}
	return &pebbleIterator{it: it}, nil
}

type pebbleIterator struct {
	it *pebble.Iterator
}

func (i *pebbleIterator) SeekToFirst()    { i.it.First() }
func (i *pebbleIterator) Seek(key []byte) { i.it.SeekGE(key) }
func (i *pebbleIterator) Valid() bool     { return i.it.Valid() }
func (i *pebbleIterator) Next()           { i.it.Next() }
func (i *pebbleIterator) Key() []byte     { return i.it.Key() }
func (i *pebbleIterator) Value() []byte   { return i.it.Value() }
func (i *pebbleIterator) Close() error    { return i.it.Close() }

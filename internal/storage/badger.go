package storage

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
)

const badgerModule = "github.com/dgraph-io/badger/v4"

func init() {
	Register("badger", func(opts Options) (Backend, error) {
		return NewBadgerEngine(opts)
	})
}

// BadgerEngine adapts badger's LSM tree with separate value log.
type BadgerEngine struct {
	db *badger.DB

	stopGC chan struct{}
	gcDone sync.WaitGroup
}

var (
	_ Backend  = (*BadgerEngine)(nil)
	_ Batcher  = (*BadgerEngine)(nil)
	_ Iterable = (*BadgerEngine)(nil)
	_ Stater   = (*BadgerEngine)(nil)
)

func NewBadgerEngine(opts Options) (*BadgerEngine, error) {
	cfg := opts.Engines.Badger

	bopts := badger.DefaultOptions(opts.Path)
	if opts.InMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true)
	}

	bopts = bopts.WithSyncWrites(opts.Sync)
	if cfg.ValueLogFileSize > 0 {
		bopts = bopts.WithValueLogFileSize(cfg.ValueLogFileSize)
	}
	if cfg.ValueThreshold > 0 {
		bopts = bopts.WithValueThreshold(cfg.ValueThreshold)
	}
	if cfg.NumCompactors > 0 {
		bopts = bopts.WithNumCompactors(cfg.NumCompactors)
	}
	bopts = bopts.WithLogger(nil)

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database: %w", err)
	}

	engine := &BadgerEngine{
		db:     db,
		stopGC: make(chan struct{}),
	}

	if cfg.ValueLogGC && !opts.InMemory && cfg.GCInterval > 0 {
		engine.gcDone.Add(1)
		go engine.runGC(cfg.GCInterval)
	}

	return engine, nil
}

func (e *BadgerEngine) Name() string    { return "badger" }
func (e *BadgerEngine) Version() string { return moduleVersion(badgerModule) }

func (e *BadgerEngine) Put(key, value []byte) error {
	return e.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
}

func (e *BadgerEngine) Get(key []byte) ([]byte, error) {
	var value []byte
	err := e.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}

		value, err = item.ValueCopy(nil)
		return err
	})

	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrKeyNotFound
	}

	return value, err
}

func (e *BadgerEngine) Delete(key []byte) error {
	return e.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
}

func (e *BadgerEngine) Close() error {
	close(e.stopGC)
	e.gcDone.Wait()
	return e.db.Close()
}

func (e *BadgerEngine) Stats() map[string]interface{} {
	lsmSize, vlogSize := e.db.Size()

	return map[string]interface{}{
		"tables":     len(e.db.Tables()),
		"lsm_size":   lsmSize,
		"vlog_size":  vlogSize,
		"total_size": lsmSize + vlogSize,
	}
}

func (e *BadgerEngine) NewBatch() Batch {
	return &badgerBatch{wb: e.db.NewWriteBatch()}
}

type badgerBatch struct {
	wb *badger.WriteBatch
	n  int
}

func (b *badgerBatch) Put(key, value []byte) error {
	// WriteBatch keeps references until Flush
	if err := b.wb.Set(clone(key), clone(value)); err != nil {
		return err
	}
	b.n++
	return nil
}

func (b *badgerBatch) Delete(key []byte) error {
	if err := b.wb.Delete(clone(key)); err != nil {
		return err
	}
	b.n++
	return nil
}

func (b *badgerBatch) Commit() error { return b.wb.Flush() }
func (b *badgerBatch) Len() int      { return b.n }

func (e *BadgerEngine) NewIterator() (Iterator, error) {
	txn := e.db.NewTransaction(false)
	opts := badger.DefaultIteratorOptions
	opts.PrefetchSize = 100

	return &badgerIterator{txn: txn, it: txn.NewIterator(opts)}, nil
}

type badgerIterator struct {
	txn *badger.Txn
	it  *badger.Iterator
	buf []byte
}

func (i *badgerIterator) SeekToFirst()    { i.it.Rewind() }
func (i *badgerIterator) Seek(key []byte) { i.it.Seek(key) }
func (i *badgerIterator) Valid() bool     { return i.it.Valid() }
func (i *badgerIterator) Next()           { i.it.Next() }
func (i *badgerIterator) Key() []byte     { return i.it.Item().Key() }

func (i *badgerIterator) Value() []byte {
	v, err := i.it.Item().ValueCopy(i.buf[:0])
	if err != nil {
		return nil
	}
	i.buf = v
	return v
}

func (i *badgerIterator) Close() error {
	i.it.Close()
	i.txn.Discard()
	return nil
}

func (e *BadgerEngine) runGC(interval time.Duration) {
	defer e.gcDone.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-e.stopGC:
			return
		case <-ticker.C:
			again := true
			for again {
				err := e.db.RunValueLogGC(0.7)
				again = err == nil
			}
			slog.Debug("badger value log GC completed")
		}
	}
}

func clone(b []byte) []byte {
	c := make([]byte, len(b))
	copy(c, b)
	return c
}

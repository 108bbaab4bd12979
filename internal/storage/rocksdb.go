//go:build rocksdb

package storage

import (
	"fmt"

	"github.com/linxGnu/grocksdb"
)

const rocksdbModule = "github.com/linxGnu/grocksdb"

func init() {
	Register("rocksdb", func(opts Options) (Backend, error) {
		return NewRocksDBEngine(opts)
	})
}

// RocksDBEngine adapts RocksDB through cgo. Build with -tags rocksdb and
// librocksdb installed.
type RocksDBEngine struct {
	db   *grocksdb.DB
	opts *grocksdb.Options
	env  *grocksdb.Env
	wo   *grocksdb.WriteOptions
	ro   *grocksdb.ReadOptions
}

var (
	_ Backend  = (*RocksDBEngine)(nil)
	_ Batcher  = (*RocksDBEngine)(nil)
	_ Iterable = (*RocksDBEngine)(nil)
)

func NewRocksDBEngine(opts Options) (*RocksDBEngine, error) {
	cfg := opts.Engines.RocksDB

	ropts := grocksdb.NewDefaultOptions()
	ropts.SetCreateIfMissing(true)
	if cfg.WriteBufferSize > 0 {
		ropts.SetWriteBufferSize(cfg.WriteBufferSize)
	}
	if cfg.MaxBackgroundJobs > 0 {
		ropts.SetMaxBackgroundJobs(cfg.MaxBackgroundJobs)
	}

	bbto := grocksdb.NewDefaultBlockBasedTableOptions()
	if cfg.BlockCacheSize > 0 {
		bbto.SetBlockCache(grocksdb.NewLRUCache(cfg.BlockCacheSize))
	}
	if cfg.BloomFilterBitsPerKey > 0 {
		bbto.SetFilterPolicy(grocksdb.NewBloomFilter(float64(cfg.BloomFilterBitsPerKey)))
	}
	ropts.SetBlockBasedTableFactory(bbto)
	ropts.SetInfoLogLevel(grocksdb.WarnInfoLogLevel)

	var env *grocksdb.Env
	if opts.InMemory {
		env = grocksdb.NewMemEnv()
		ropts.SetEnv(env)
	}

	db, err := grocksdb.OpenDb(ropts, opts.Path)
	if err != nil {
		ropts.Destroy()
		return nil, fmt.Errorf("failed to open rocksdb database: %w", err)
	}

	wo := grocksdb.NewDefaultWriteOptions()
	wo.SetSync(opts.Sync)

	return &RocksDBEngine{
		db:   db,
		opts: ropts,
		env:  env,
		wo:   wo,
		ro:   grocksdb.NewDefaultReadOptions(),
	}, nil
}

func (e *RocksDBEngine) Name() string    { return "rocksdb" }
func (e *RocksDBEngine) Version() string { return moduleVersion(rocksdbModule) }

func (e *RocksDBEngine) Put(key, value []byte) error {
	return e.db.Put(e.wo, key, value)
}

func (e *RocksDBEngine) Get(key []byte) ([]byte, error) {
	slice, err := e.db.Get(e.ro, key)
	if err != nil {
		return nil, err
	}
	defer slice.Free()

	if !slice.Exists() {
		return nil, ErrKeyNotFound
	}
	return clone(slice.Data()), nil
}

func (e *RocksDBEngine) Delete(key []byte) error {
	return e.db.Delete(e.wo, key)
}

func (e *RocksDBEngine) Close() error {
	e.db.Close()
	e.wo.Destroy()
	e.ro.Destroy()
	e.opts.Destroy()
	if e.env != nil {
		e.env.Destroy()
	}
	return nil
}

func (e *RocksDBEngine) NewBatch() Batch {
	return &rocksdbBatch{engine: e, wb: grocksdb.NewWriteBatch()}
}

type rocksdbBatch struct {
	engine *RocksDBEngine
	wb     *grocksdb.WriteBatch
}

func (b *rocksdbBatch) Put(key, value []byte) error {
	b.wb.Put(key, value)
	return nil
}

func (b *rocksdbBatch) Delete(key []byte) error {
	b.wb.Delete(key)
	return nil
}

func (b *rocksdbBatch) Commit() error {
	defer b.wb.Destroy()
	return b.engine.db.Write(b.engine.wo, b.wb)
}

func (b *rocksdbBatch) Len() int { return b.wb.Count() }

func (e *RocksDBEngine) NewIterator() (Iterator, error) {
	return &rocksdbIterator{it: e.db.NewIterator(e.ro)}, nil
}

type rocksdbIterator struct {
	it *grocksdb.Iterator
}

func (i *rocksdbIterator) SeekToFirst()    { i.it.SeekToFirst() }
func (i *rocksdbIterator) Seek(key []byte) { i.it.Seek(key) }
func (i *rocksdbIterator) Valid() bool     { return i.it.Valid() }
func (i *rocksdbIterator) Next()           { i.it.Next() }

func (i *rocksdbIterator) Key() []byte {
	k := i.it.Key()
	defer k.Free()
	return clone(k.Data())
}

func (i *rocksdbIterator) Value() []byte {
	v := i.it.Value()
	defer v.Free()
	return clone(v.Data())
}

func (i *rocksdbIterator) Close() error {
	err := i.it.Err()
	i.it.Close()
	return err
}

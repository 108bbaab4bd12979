//go:build mdbx

package storage

import (
	"fmt"
	"os"
	"runtime"

	"github.com/erigontech/mdbx-go/mdbx"
)

const mdbxModule = "github.com/erigontech/mdbx-go"

func init() {
	Register("mdbx", func(opts Options) (Backend, error) {
		return NewMDBXEngine(opts)
	})
}

// MDBXEngine adapts libmdbx, a copy-on-write B+tree in the LMDB family.
// Without sync the environment is opened SafeNoSync: commits skip fsync but
// the database stays consistent after a crash.
type MDBXEngine struct {
	env *mdbx.Env
	dbi mdbx.DBI
}

var (
	_ Backend  = (*MDBXEngine)(nil)
	_ Batcher  = (*MDBXEngine)(nil)
	_ Iterable = (*MDBXEngine)(nil)
)

func NewMDBXEngine(opts Options) (*MDBXEngine, error) {
	if opts.InMemory {
		return nil, fmt.Errorf("mdbx does not support in-memory databases")
	}
	cfg := opts.Engines.MDBX

	if err := os.MkdirAll(opts.Path, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	env, err := mdbx.NewEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to create mdbx environment: %w", err)
	}

	if err := env.SetGeometry(-1, -1, cfg.SizeUpper, cfg.GrowthStep, -1, cfg.PageSize); err != nil {
		env.Close()
		return nil, fmt.Errorf("failed to set geometry: %w", err)
	}
	if err := env.SetOption(mdbx.OptMaxDB, uint64(1)); err != nil {
		env.Close()
		return nil, fmt.Errorf("failed to set max dbs: %w", err)
	}

	flags := uint(mdbx.Coalesce | mdbx.LifoReclaim)
	if !opts.Sync {
		flags |= mdbx.SafeNoSync
	}
	if err := env.Open(opts.Path, flags, 0644); err != nil {
		env.Close()
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	var dbi mdbx.DBI
	err = env.Update(func(txn *mdbx.Txn) error {
		var err error
		dbi, err = txn.OpenDBI("kv", mdbx.Create, nil, nil)
		return err
	})
	if err != nil {
		env.Close()
		return nil, fmt.Errorf("failed to open DBI: %w", err)
	}

	return &MDBXEngine{env: env, dbi: dbi}, nil
}

func (e *MDBXEngine) Name() string    { return "mdbx" }
func (e *MDBXEngine) Version() string { return moduleVersion(mdbxModule) }

func (e *MDBXEngine) Put(key, value []byte) error {
	return e.env.Update(func(txn *mdbx.Txn) error {
		return txn.Put(e.dbi, key, value, mdbx.Upsert)
	})
}

func (e *MDBXEngine) Get(key []byte) ([]byte, error) {
	var value []byte
	err := e.env.View(func(txn *mdbx.Txn) error {
		v, err := txn.Get(e.dbi, key)
		if err != nil {
			return err
		}
		value = clone(v)
		return nil
	})
	if mdbx.IsNotFound(err) {
		return nil, ErrKeyNotFound
	}
	return value, err
}

func (e *MDBXEngine) Delete(key []byte) error {
	err := e.env.Update(func(txn *mdbx.Txn) error {
		return txn.Del(e.dbi, key, nil)
	})
	if mdbx.IsNotFound(err) {
		return nil
	}
	return err
}

func (e *MDBXEngine) Close() error {
	e.env.Close()
	return nil
}

func (e *MDBXEngine) NewBatch() Batch {
	return &mdbxBatch{engine: e}
}

type mdbxOp struct {
	key    []byte
	value  []byte
	delete bool
}

// mdbxBatch applies buffered writes in one write transaction.
type mdbxBatch struct {
	engine *MDBXEngine
	ops    []mdbxOp
}

func (b *mdbxBatch) Put(key, value []byte) error {
	b.ops = append(b.ops, mdbxOp{key: clone(key), value: clone(value)})
	return nil
}

func (b *mdbxBatch) Delete(key []byte) error {
	b.ops = append(b.ops, mdbxOp{key: clone(key), delete: true})
	return nil
}

func (b *mdbxBatch) Len() int { return len(b.ops) }

func (b *mdbxBatch) Commit() error {
	return b.engine.env.Update(func(txn *mdbx.Txn) error {
		for _, op := range b.ops {
			if op.delete {
				if err := txn.Del(b.engine.dbi, op.key, nil); err != nil && !mdbx.IsNotFound(err) {
					return err
				}
				continue
			}
			if err := txn.Put(b.engine.dbi, op.key, op.value, mdbx.Upsert); err != nil {
				return err
			}
		}
		return nil
	})
}

// NewIterator opens a read transaction pinned to the calling OS thread until
// Close.
func (e *MDBXEngine) NewIterator() (Iterator, error) {
	runtime.LockOSThread()

	txn, err := e.env.BeginTxn(nil, mdbx.Readonly)
	if err != nil {
		runtime.UnlockOSThread()
		return nil, fmt.Errorf("failed to begin read transaction: %w", err)
	}

	cur, err := txn.OpenCursor(e.dbi)
	if err != nil {
		txn.Abort()
		runtime.UnlockOSThread()
		return nil, fmt.Errorf("failed to open cursor: %w", err)
	}

	return &mdbxIterator{txn: txn, cur: cur}, nil
}

type mdbxIterator struct {
	txn   *mdbx.Txn
	cur   *mdbx.Cursor
	key   []byte
	value []byte
	valid bool
}

func (i *mdbxIterator) move(key []byte, op uint) {
	k, v, err := i.cur.Get(key, nil, op)
	if err != nil {
		i.key, i.value, i.valid = nil, nil, false
		return
	}
	i.key, i.value, i.valid = k, v, true
}

func (i *mdbxIterator) SeekToFirst()    { i.move(nil, mdbx.First) }
func (i *mdbxIterator) Seek(key []byte) { i.move(key, mdbx.SetRange) }
func (i *mdbxIterator) Valid() bool     { return i.valid }
func (i *mdbxIterator) Next()           { i.move(nil, mdbx.Next) }
func (i *mdbxIterator) Key() []byte     { return i.key }
func (i *mdbxIterator) Value() []byte   { return i.value }

func (i *mdbxIterator) Close() error {
	i.cur.Close()
	i.txn.Abort()
	runtime.UnlockOSThread()
	return nil
}

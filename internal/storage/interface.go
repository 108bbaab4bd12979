package storage

import "fmt"

// Backend is the operation contract every benchmarked engine implements.
// Put, Get and Delete must be safe for concurrent use by multiple goroutines.
type Backend interface {
	Name() string
	Version() string

	Put(key, value []byte) error
	// Get returns ErrKeyNotFound when the key is absent.
	Get(key []byte) ([]byte, error)
	Delete(key []byte) error

	Close() error
}

// Batcher is implemented by backends that can group writes into one commit.
type Batcher interface {
	NewBatch() Batch
}

// Batch collects writes until Commit. A batch is used by one goroutine.
type Batch interface {
	Put(key, value []byte) error
	Delete(key []byte) error
	Commit() error
	Len() int
}

// Iterable is implemented by backends that support ordered full scans.
type Iterable interface {
	NewIterator() (Iterator, error)
}

// Iterator walks the key space. Key and Value are only valid until Next.
type Iterator interface {
	SeekToFirst()
	Seek(key []byte)
	Valid() bool
	Next()
	Key() []byte
	Value() []byte
	Close() error
}

// SyncSetter returns a copy of the receiver with durable writes switched on
// or off. Sync mode is applied when a backend is opened, never by mutating
// a live engine.
type SyncSetter interface {
	WithSync(enabled bool) Options
}

// Stater exposes engine internals for debug logging.
type Stater interface {
	Stats() map[string]interface{}
}

var (
	ErrKeyNotFound         = fmt.Errorf("key not found")
	ErrIteratorUnsupported = fmt.Errorf("iteration not supported")
	ErrUnknownEngine       = fmt.Errorf("unknown storage engine")
)

package storage

import "time"

// Options configures a backend at open time.
type Options struct {
	Path     string
	Sync     bool
	InMemory bool

	Engines EngineOptions
}

var _ SyncSetter = Options{}

// WithSync returns a copy of the options with sync mode set.
func (o Options) WithSync(enabled bool) Options {
	o.Sync = enabled
	return o
}

// WithPath returns a copy of the options pointing at path.
func (o Options) WithPath(path string) Options {
	o.Path = path
	return o
}

// EngineOptions carries engine specific knobs. It is loaded from the
// "engines" section of the configuration file.
type EngineOptions struct {
	Badger  BadgerOptions  `yaml:"badger" toml:"badger" json:"badger"`
	Pebble  PebbleOptions  `yaml:"pebble" toml:"pebble" json:"pebble"`
	SQLite  SQLiteOptions  `yaml:"sqlite" toml:"sqlite" json:"sqlite"`
	Redis   RedisOptions   `yaml:"redis" toml:"redis" json:"redis"`
	RocksDB RocksDBOptions `yaml:"rocksdb" toml:"rocksdb" json:"rocksdb"`
	MDBX    MDBXOptions    `yaml:"mdbx" toml:"mdbx" json:"mdbx"`
}

type BadgerOptions struct {
	ValueLogGC       bool          `yaml:"value_log_gc" toml:"value_log_gc" json:"value_log_gc"`
	GCInterval       time.Duration `yaml:"gc_interval" toml:"gc_interval" json:"gc_interval"`
	ValueLogFileSize int64         `yaml:"value_log_file_size" toml:"value_log_file_size" json:"value_log_file_size"`
	ValueThreshold   int64         `yaml:"value_threshold" toml:"value_threshold" json:"value_threshold"`
	NumCompactors    int           `yaml:"num_compactors" toml:"num_compactors" json:"num_compactors"`
}

type PebbleOptions struct {
	CacheSize             int64  `yaml:"cache_size" toml:"cache_size" json:"cache_size"`
	MemTableSize          uint64 `yaml:"memtable_size" toml:"memtable_size" json:"memtable_size"`
	L0CompactionThreshold int    `yaml:"l0_compaction_threshold" toml:"l0_compaction_threshold" json:"l0_compaction_threshold"`
	MaxOpenFiles          int    `yaml:"max_open_files" toml:"max_open_files" json:"max_open_files"`
}

type SQLiteOptions struct {
	JournalMode string `yaml:"journal_mode" toml:"journal_mode" json:"journal_mode"`
	CacheSizeKB int    `yaml:"cache_size_kb" toml:"cache_size_kb" json:"cache_size_kb"`
	BusyTimeout int    `yaml:"busy_timeout_ms" toml:"busy_timeout_ms" json:"busy_timeout_ms"`
}

// RedisOptions configures the remote backend. Options.Path is the server
// address.
type RedisOptions struct {
	Password  string `yaml:"password" toml:"password" json:"-"`
	DB        int    `yaml:"db" toml:"db" json:"db"`
	PoolSize  int    `yaml:"pool_size" toml:"pool_size" json:"pool_size"`
	KeyPrefix string `yaml:"key_prefix" toml:"key_prefix" json:"key_prefix"`
	ScanCount int64  `yaml:"scan_count" toml:"scan_count" json:"scan_count"`
}

type RocksDBOptions struct {
	BlockCacheSize        uint64 `yaml:"block_cache_size" toml:"block_cache_size" json:"block_cache_size"`
	WriteBufferSize       uint64 `yaml:"write_buffer_size" toml:"write_buffer_size" json:"write_buffer_size"`
	BloomFilterBitsPerKey int    `yaml:"bloom_filter_bits_per_key" toml:"bloom_filter_bits_per_key" json:"bloom_filter_bits_per_key"`
	MaxBackgroundJobs     int    `yaml:"max_background_jobs" toml:"max_background_jobs" json:"max_background_jobs"`
}

type MDBXOptions struct {
	SizeUpper  int `yaml:"size_upper" toml:"size_upper" json:"size_upper"`
	GrowthStep int `yaml:"growth_step" toml:"growth_step" json:"growth_step"`
	PageSize   int `yaml:"page_size" toml:"page_size" json:"page_size"`
}

// DefaultEngineOptions returns the knobs used when no configuration file
// overrides them.
func DefaultEngineOptions() EngineOptions {
	return EngineOptions{
		Badger: BadgerOptions{
			ValueLogGC:       false,
			GCInterval:       5 * time.Minute,
			ValueLogFileSize: 256 << 20,
			ValueThreshold:   1 << 10,
			NumCompactors:    4,
		},
		Pebble: PebbleOptions{
			CacheSize:             64 << 20,
			MemTableSize:          64 << 20,
			L0CompactionThreshold: 4,
			MaxOpenFiles:          1000,
		},
		SQLite: SQLiteOptions{
			JournalMode: "WAL",
			CacheSizeKB: 64 << 10,
			BusyTimeout: 5000,
		},
		Redis: RedisOptions{
			PoolSize:  64,
			KeyPrefix: "kvbench:",
			ScanCount: 1000,
		},
		RocksDB: RocksDBOptions{
			BlockCacheSize:        64 << 20,
			WriteBufferSize:       64 << 20,
			BloomFilterBitsPerKey: 10,
			MaxBackgroundJobs:     4,
		},
		MDBX: MDBXOptions{
			SizeUpper:  64 << 30,
			GrowthStep: 64 << 20,
			PageSize:   4096,
		},
	}
}

package storage

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-redis/redis/v8"
)

const defaultRedisAddr = "localhost:6379"

func init() {
	RegisterRemote("redis", func(opts Options) (Backend, error) {
		return NewRedisEngine(opts)
	})
}

// RedisEngine benchmarks a remote Redis server. Options.Path is taken as the
// server address when it looks like host:port. Every key is stored under
// the configured prefix so a run can be dropped without FLUSHDB.
//
// Durability is a server setting (appendfsync), so Options.Sync is ignored.
type RedisEngine struct {
	client  *redis.Client
	prefix  string
	scan    int64
	version string
}

var (
	_ Backend  = (*RedisEngine)(nil)
	_ Batcher  = (*RedisEngine)(nil)
	_ Iterable = (*RedisEngine)(nil)
	_ Dropper  = (*RedisEngine)(nil)
)

func NewRedisEngine(opts Options) (*RedisEngine, error) {
	cfg := opts.Engines.Redis

	addr := opts.Path
	if !strings.Contains(addr, ":") {
		addr = defaultRedisAddr
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	ctx := context.Background()
	if _, err := client.Ping(ctx).Result(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis not available at %s: %w", addr, err)
	}

	scan := cfg.ScanCount
	if scan <= 0 {
		scan = 1000
	}

	return &RedisEngine{
		client:  client,
		prefix:  cfg.KeyPrefix,
		scan:    scan,
		version: serverVersion(ctx, client),
	}, nil
}

func serverVersion(ctx context.Context, client *redis.Client) string {
	info, err := client.Info(ctx, "server").Result()
	if err != nil {
		return "unknown"
	}

	sc := bufio.NewScanner(strings.NewReader(info))
	for sc.Scan() {
		if v, ok := strings.CutPrefix(strings.TrimSpace(sc.Text()), "redis_version:"); ok {
			return v
		}
	}
	return "unknown"
}

func (e *RedisEngine) Name() string    { return "redis" }
func (e *RedisEngine) Version() string { return e.version }

func (e *RedisEngine) key(k []byte) string { return e.prefix + string(k) }

func (e *RedisEngine) Put(key, value []byte) error {
	return e.client.Set(context.Background(), e.key(key), value, 0).Err()
}

func (e *RedisEngine) Get(key []byte) ([]byte, error) {
	v, err := e.client.Get(context.Background(), e.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrKeyNotFound
	}
	return v, err
}

func (e *RedisEngine) Delete(key []byte) error {
	return e.client.Del(context.Background(), e.key(key)).Err()
}

func (e *RedisEngine) Close() error {
	return e.client.Close()
}

// Drop deletes every key under the engine prefix.
func (e *RedisEngine) Drop() error {
	ctx := context.Background()
	iter := e.client.Scan(ctx, 0, e.prefix+"*", e.scan).Iterator()

	batch := make([]string, 0, e.scan)
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if int64(len(batch)) >= e.scan {
			if err := e.client.Unlink(ctx, batch...).Err(); err != nil {
				return err
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(batch) > 0 {
		return e.client.Unlink(ctx, batch...).Err()
	}
	return nil
}

func (e *RedisEngine) NewBatch() Batch {
	return &redisBatch{engine: e, pipe: e.client.Pipeline()}
}

type redisBatch struct {
	engine *RedisEngine
	pipe   redis.Pipeliner
	n      int
}

func (b *redisBatch) Put(key, value []byte) error {
	b.pipe.Set(context.Background(), b.engine.key(key), clone(value), 0)
	b.n++
	return nil
}

func (b *redisBatch) Delete(key []byte) error {
	b.pipe.Del(context.Background(), b.engine.key(key))
	b.n++
	return nil
}

func (b *redisBatch) Commit() error {
	defer b.pipe.Close()
	_, err := b.pipe.Exec(context.Background())
	return err
}

func (b *redisBatch) Len() int { return b.n }

// NewIterator snapshots the key space with SCAN and serves it in sorted
// order, fetching values page by page with MGET.
func (e *RedisEngine) NewIterator() (Iterator, error) {
	ctx := context.Background()

	var keys []string
	iter := e.client.Scan(ctx, 0, e.prefix+"*", e.scan).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan redis keys: %w", err)
	}
	sort.Strings(keys)

	return &redisIterator{engine: e, keys: keys, page: int(e.scan)}, nil
}

type redisIterator struct {
	engine *RedisEngine
	keys   []string
	pos    int
	page   int

	values    []interface{}
	pageStart int
}

func (i *redisIterator) SeekToFirst() {
	i.pos = 0
	i.values = nil
}

func (i *redisIterator) Seek(key []byte) {
	target := i.engine.key(key)
	i.pos = sort.SearchStrings(i.keys, target)
	i.values = nil
}

func (i *redisIterator) Valid() bool { return i.pos < len(i.keys) }
func (i *redisIterator) Next()       { i.pos++ }

func (i *redisIterator) Key() []byte {
	return []byte(strings.TrimPrefix(i.keys[i.pos], i.engine.prefix))
}

func (i *redisIterator) Value() []byte {
	if i.values == nil || i.pos < i.pageStart || i.pos >= i.pageStart+len(i.values) {
		end := min(i.pos+i.page, len(i.keys))
		vals, err := i.engine.client.MGet(context.Background(), i.keys[i.pos:end]...).Result()
		if err != nil {
			i.values = nil
			return nil
		}
		i.values, i.pageStart = vals, i.pos
	}

	if s, ok := i.values[i.pos-i.pageStart].(string); ok {
		return []byte(s)
	}
	return nil
}

func (i *redisIterator) Close() error {
	i.keys, i.values = nil, nil
	return nil
}

// Package workload drives a storage backend through measured phases.
package workload

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"kvbench/internal/keygen"
	"kvbench/internal/performance"
	"kvbench/internal/storage"
)

// Phase is one measured pass over the key space.
type Phase string

const (
	PhasePut     Phase = "put"
	PhaseGet     Phase = "get"
	PhaseDelete  Phase = "delete"
	PhaseIterate Phase = "iter"
)

// Label is the upper-case name used in reports.
func (p Phase) Label() string {
	switch p {
	case PhasePut:
		return "PUT"
	case PhaseGet:
		return "GET"
	case PhaseDelete:
		return "DELETE"
	case PhaseIterate:
		return "ITER"
	default:
		return string(p)
	}
}

var ErrUnknownPhase = errors.New("unknown phase")

// Config is the subset of a benchmark configuration the runner needs.
type Config struct {
	Operations int
	KeySize    int
	ValueSize  int
	Threads    int
	BatchSize  int
	Pattern    keygen.Pattern
	ZipfTheta  float64
	// Seed makes deterministic patterns reproducible across runs; zero
	// picks a random seed.
	Seed uint64
}

// Runner executes phases against one backend. A Runner may run several
// phases in sequence but never two at once.
type Runner struct {
	backend storage.Backend
	cfg     Config
	values  *keygen.ValueGenerator
	zipf    *keygen.Zipfian
	seed    uint64
}

// threadContext is the private state of one worker. Nothing in it is
// shared, so workers never synchronize until the phase barrier.
type threadContext struct {
	id        int
	start     int
	count     int
	keys      *keygen.KeyGenerator
	latencies []float64
	keyBuf    []byte
	valueBuf  []byte
	errors    int
	err       error
}

func NewRunner(backend storage.Backend, cfg Config) (*Runner, error) {
	if backend == nil {
		return nil, errors.New("runner requires a backend")
	}
	if cfg.Operations <= 0 || cfg.Threads <= 0 || cfg.KeySize <= 0 || cfg.ValueSize <= 0 {
		return nil, fmt.Errorf("invalid runner config: operations=%d threads=%d key=%d value=%d",
			cfg.Operations, cfg.Threads, cfg.KeySize, cfg.ValueSize)
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 1
	}

	values, err := keygen.NewValueGenerator(cfg.ValueSize)
	if err != nil {
		return nil, err
	}

	// validate the key layout once so workers cannot fail on it
	minKey, err := keygen.MinKeySize(cfg.Pattern, cfg.Operations)
	if err != nil {
		return nil, err
	}
	if cfg.KeySize < minKey {
		return nil, fmt.Errorf("%w: %s keys for %d operations need %d bytes, got %d",
			keygen.ErrKeyTooSmall, cfg.Pattern, cfg.Operations, minKey, cfg.KeySize)
	}

	r := &Runner{
		backend: backend,
		cfg:     cfg,
		values:  values,
		seed:    cfg.Seed,
	}
	if r.seed == 0 {
		r.seed = rand.Uint64()
	}

	if cfg.Pattern == keygen.PatternZipfian {
		theta := cfg.ZipfTheta
		if theta <= 0 {
			theta = keygen.DefaultTheta
		}
		// built once before any worker starts, read-only afterwards
		z, err := keygen.NewZipfian(int64(cfg.Operations), theta)
		if err != nil {
			return nil, err
		}
		r.zipf = z
	}

	return r, nil
}

// OpsPerThread is the number of operations each worker executes. The
// remainder of operations/threads is not executed.
func (r *Runner) OpsPerThread() int { return r.cfg.Operations / r.cfg.Threads }

// Executed is the number of operations a phase actually performs.
func (r *Runner) Executed() int { return r.OpsPerThread() * r.cfg.Threads }

// Run executes one phase across all workers and aggregates the latencies.
// Individual operation failures are tallied, not returned. The context is
// only consulted before workers start.
func (r *Runner) Run(ctx context.Context, phase Phase) (performance.OperationStats, error) {
	switch phase {
	case PhasePut, PhaseGet, PhaseDelete:
	default:
		return performance.OperationStats{}, fmt.Errorf("%w: %q", ErrUnknownPhase, phase)
	}
	if err := ctx.Err(); err != nil {
		return performance.OperationStats{}, fmt.Errorf("phase %s not started: %w", phase, err)
	}

	threads := make([]*threadContext, r.cfg.Threads)
	for i := range threads {
		tc, err := r.newThreadContext(i)
		if err != nil {
			return performance.OperationStats{}, err
		}
		threads[i] = tc
	}

	batcher, canBatch := r.backend.(storage.Batcher)
	batched := canBatch && r.cfg.BatchSize > 1 && phase != PhaseGet

	var wg sync.WaitGroup
	start := time.Now()

	for _, tc := range threads {
		wg.Add(1)
		go func(tc *threadContext) {
			defer wg.Done()
			if batched {
				r.runBatched(tc, batcher, phase)
				return
			}
			r.runSingle(tc, phase)
		}(tc)
	}

	wg.Wait()
	duration := time.Since(start)

	total := 0
	errs := 0
	for _, tc := range threads {
		if tc.err != nil {
			return performance.OperationStats{}, fmt.Errorf("worker %d: %w", tc.id, tc.err)
		}
		total += len(tc.latencies)
		errs += tc.errors
	}

	all := make([]float64, 0, total)
	for _, tc := range threads {
		all = append(all, tc.latencies...)
	}

	stats := performance.Compute(all, r.cfg.Operations, duration)
	stats.Errors = errs
	return stats, nil
}

func (r *Runner) newThreadContext(id int) (*threadContext, error) {
	opts := []keygen.KeyOption{
		keygen.WithRand(rand.New(rand.NewPCG(r.seed, uint64(id)))),
	}
	if r.zipf != nil {
		opts = append(opts, keygen.WithZipfian(r.zipf))
	}

	keys, err := keygen.NewKeyGenerator(r.cfg.Pattern, r.cfg.KeySize, r.cfg.Operations, opts...)
	if err != nil {
		return nil, err
	}

	count := r.OpsPerThread()
	return &threadContext{
		id:        id,
		start:     id * count,
		count:     count,
		keys:      keys,
		latencies: make([]float64, 0, count),
		keyBuf:    make([]byte, 0, r.cfg.KeySize),
		valueBuf:  make([]byte, 0, r.cfg.ValueSize),
	}, nil
}

func (r *Runner) runSingle(tc *threadContext, phase Phase) {
	for i := 0; i < tc.count; i++ {
		idx := tc.start + i

		key, err := tc.keys.Generate(tc.keyBuf, idx)
		if err != nil {
			tc.err = err
			return
		}
		tc.keyBuf = key

		var opErr error
		var begin time.Time
		switch phase {
		case PhasePut:
			tc.valueBuf = r.values.Generate(tc.valueBuf, idx)
			begin = time.Now()
			opErr = r.backend.Put(key, tc.valueBuf)
		case PhaseGet:
			begin = time.Now()
			_, opErr = r.backend.Get(key)
		case PhaseDelete:
			begin = time.Now()
			opErr = r.backend.Delete(key)
		}
		elapsed := time.Since(begin)

		tc.latencies = append(tc.latencies, micros(elapsed))
		if opErr != nil {
			tc.errors++
		}
	}
}

// runBatched groups up to BatchSize operations per commit. Every operation
// in a batch is charged the batch time divided by its length.
func (r *Runner) runBatched(tc *threadContext, batcher storage.Batcher, phase Phase) {
	size := r.cfg.BatchSize
	keys := make([][]byte, size)
	values := make([][]byte, size)

	for done := 0; done < tc.count; {
		n := min(size, tc.count-done)

		for j := 0; j < n; j++ {
			idx := tc.start + done + j
			key, err := tc.keys.Generate(keys[j], idx)
			if err != nil {
				tc.err = err
				return
			}
			keys[j] = key
			if phase == PhasePut {
				values[j] = r.values.Generate(values[j], idx)
			}
		}

		begin := time.Now()
		batch := batcher.NewBatch()
		failed := 0
		for j := 0; j < n; j++ {
			var err error
			if phase == PhasePut {
				err = batch.Put(keys[j], values[j])
			} else {
				err = batch.Delete(keys[j])
			}
			if err != nil {
				failed++
			}
		}
		if err := batch.Commit(); err != nil {
			failed = n
		}
		per := micros(time.Since(begin)) / float64(n)

		for j := 0; j < n; j++ {
			tc.latencies = append(tc.latencies, per)
		}
		tc.errors += failed
		done += n
	}
}

func micros(d time.Duration) float64 {
	return float64(d.Nanoseconds()) / 1e3
}

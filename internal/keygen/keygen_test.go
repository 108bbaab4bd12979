package keygen

import (
	"bytes"
	"errors"
	"math/rand/v2"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func newRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

func TestParsePattern(t *testing.T) {
	tests := []struct {
		input   string
		want    Pattern
		wantErr bool
	}{
		{"seq", PatternSequential, false},
		{"sequential", PatternSequential, false},
		{"Random", PatternRandom, false},
		{" zipfian ", PatternZipfian, false},
		{"uniform", PatternUniform, false},
		{"timestamp", PatternTimestamp, false},
		{"reverse", PatternReverse, false},
		{"gaussian", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		got, err := ParsePattern(tt.input)
		if tt.wantErr {
			if !errors.Is(err, ErrUnknownPattern) {
				t.Errorf("ParsePattern(%q) error = %v, want ErrUnknownPattern", tt.input, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParsePattern(%q) unexpected error: %v", tt.input, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParsePattern(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestGenerateLayout(t *testing.T) {
	fixed := func() time.Time { return time.Unix(1, 0) }

	tests := []struct {
		name    string
		pattern Pattern
		keySize int
		maxOps  int
		index   int
		want    string
	}{
		{"sequential", PatternSequential, 16, 1000, 42, "key000000000042\x00"},
		{"random", PatternRandom, 20, 1000, 1000, "key0000026a08b35b68\x00"},
		{"reverse", PatternReverse, 16, 1000, 1, "key000000000999\x00"},
		{"timestamp", PatternTimestamp, 20, 1000, 42, "key000000010000002a\x00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := NewKeyGenerator(tt.pattern, tt.keySize, tt.maxOps, WithClock(fixed))
			if err != nil {
				t.Fatalf("NewKeyGenerator failed: %v", err)
			}

			key, err := g.Generate(nil, tt.index)
			if err != nil {
				t.Fatalf("Generate failed: %v", err)
			}
			if len(key) != tt.keySize {
				t.Errorf("key length = %d, want %d", len(key), tt.keySize)
			}
			if string(key) != tt.want {
				t.Errorf("key = %q, want %q", key, tt.want)
			}
		})
	}
}

func TestGenerateReusesBuffer(t *testing.T) {
	g, err := NewKeyGenerator(PatternSequential, 16, 100)
	if err != nil {
		t.Fatalf("NewKeyGenerator failed: %v", err)
	}

	buf := make([]byte, 0, 32)
	key, err := g.Generate(buf, 7)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if &key[0] != &buf[:1][0] {
		t.Error("expected Generate to write into the supplied buffer")
	}
}

func TestGenerateKeyTooSmall(t *testing.T) {
	g, err := NewKeyGenerator(PatternRandom, 8, 10000)
	if err != nil {
		t.Fatalf("NewKeyGenerator failed: %v", err)
	}

	if _, err := g.Generate(nil, 1000); !errors.Is(err, ErrKeyTooSmall) {
		t.Errorf("expected ErrKeyTooSmall, got %v", err)
	}

	// index 0 renders a single digit and still fits
	if _, err := g.Generate(nil, 0); err != nil {
		t.Errorf("unexpected error for index 0: %v", err)
	}

	if _, err := NewKeyGenerator(PatternSequential, HeaderSize, 10); !errors.Is(err, ErrKeyTooSmall) {
		t.Errorf("expected ErrKeyTooSmall for header-only key, got %v", err)
	}
}

func TestGenerateRejectsNegativeIndex(t *testing.T) {
	g, err := NewKeyGenerator(PatternSequential, 16, 10)
	if err != nil {
		t.Fatalf("NewKeyGenerator failed: %v", err)
	}
	if _, err := g.Generate(nil, -1); err == nil {
		t.Error("expected error for negative index")
	}
}

func TestMinKeySizeFitsEveryKey(t *testing.T) {
	const ops = 1_000_000

	for _, p := range Patterns() {
		size, err := MinKeySize(p, ops)
		if err != nil {
			t.Fatalf("MinKeySize(%s) failed: %v", p, err)
		}

		g, err := NewKeyGenerator(p, size, ops, WithRand(newRand(1)))
		if err != nil {
			t.Fatalf("NewKeyGenerator(%s) failed: %v", p, err)
		}

		for _, idx := range []int{0, 1, ops / 2, ops - 1} {
			if _, err := g.Generate(nil, idx); err != nil {
				t.Errorf("%s: Generate(%d) with key size %d failed: %v", p, idx, size, err)
			}
		}
	}

	if size, _ := MinKeySize(PatternRandom, ops); size != 17 {
		t.Errorf("random min key size = %d, want 17", size)
	}
	if size, _ := MinKeySize(PatternUniform, ops); size != 20 {
		t.Errorf("uniform min key size = %d, want 20", size)
	}
}

func TestSequentialKeysAscend(t *testing.T) {
	const ops = 1000

	g, err := NewKeyGenerator(PatternSequential, 16, ops)
	if err != nil {
		t.Fatalf("NewKeyGenerator failed: %v", err)
	}

	var prev []byte
	for i := 0; i < ops; i++ {
		key, err := g.Generate(nil, i)
		if err != nil {
			t.Fatalf("Generate(%d) failed: %v", i, err)
		}
		if prev != nil && bytes.Compare(prev, key) >= 0 {
			t.Fatalf("key %d (%q) does not sort after key %d (%q)", i, key, i-1, prev)
		}
		prev = key
	}
}

func TestReverseKeysDescend(t *testing.T) {
	const ops = 1000

	g, err := NewKeyGenerator(PatternReverse, 16, ops)
	if err != nil {
		t.Fatalf("NewKeyGenerator failed: %v", err)
	}

	var prev []byte
	for i := 0; i < ops; i++ {
		key, err := g.Generate(nil, i)
		if err != nil {
			t.Fatalf("Generate(%d) failed: %v", i, err)
		}
		if prev != nil && bytes.Compare(prev, key) <= 0 {
			t.Fatalf("key %d (%q) does not sort before key %d (%q)", i, key, i-1, prev)
		}
		prev = key
	}
}

func TestKeyGeneratorProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	deterministic := []Pattern{PatternSequential, PatternRandom, PatternReverse}

	properties.Property("deterministic patterns repeat for the same index", prop.ForAll(
		func(index int, which int) bool {
			p := deterministic[which]
			a, err := NewKeyGenerator(p, 24, 1_000_000)
			if err != nil {
				return false
			}
			b, err := NewKeyGenerator(p, 24, 1_000_000)
			if err != nil {
				return false
			}

			k1, err1 := a.Generate(nil, index)
			k2, err2 := b.Generate(nil, index)
			return err1 == nil && err2 == nil && bytes.Equal(k1, k2)
		},
		gen.IntRange(0, 999_999),
		gen.IntRange(0, len(deterministic)-1),
	))

	z, err := NewZipfian(1_000_000, DefaultTheta)
	if err != nil {
		t.Fatalf("NewZipfian failed: %v", err)
	}

	properties.Property("keys are exactly key size bytes", prop.ForAll(
		func(index int, keySize int) bool {
			for _, p := range Patterns() {
				g, err := NewKeyGenerator(p, keySize, 1_000_000, WithZipfian(z))
				if err != nil {
					return false
				}
				key, err := g.Generate(nil, index)
				if err != nil {
					return false
				}
				if len(key) != keySize || key[keySize-1] != 0 || !bytes.HasPrefix(key, []byte("key")) {
					return false
				}
			}
			return true
		},
		gen.IntRange(0, 999_999),
		gen.IntRange(20, 64),
	))

	properties.TestingRun(t)
}

func TestZipfianConcentration(t *testing.T) {
	const (
		n     = 1000
		draws = 100_000
	)

	z, err := NewZipfian(n, DefaultTheta)
	if err != nil {
		t.Fatalf("NewZipfian failed: %v", err)
	}

	r := newRand(42)
	hot := 0
	for i := 0; i < draws; i++ {
		rank := z.Next(r)
		if rank < 1 || rank > n {
			t.Fatalf("rank %d outside [1, %d]", rank, n)
		}
		if rank <= n/5 {
			hot++
		}
	}

	share := float64(hot) / draws
	if share < 0.70 {
		t.Errorf("lowest 20%% of ranks drew %.1f%% of samples, want at least 70%%", share*100)
	}
}

func TestZipfianRankOrdering(t *testing.T) {
	z, err := NewZipfian(1000, DefaultTheta)
	if err != nil {
		t.Fatalf("NewZipfian failed: %v", err)
	}

	counts := make(map[int64]int)
	r := newRand(7)
	for i := 0; i < 50_000; i++ {
		counts[z.Next(r)]++
	}

	if counts[1] <= counts[2] {
		t.Errorf("rank 1 drawn %d times, rank 2 %d times; expected rank 1 hotter", counts[1], counts[2])
	}

	ranks := make([]int64, 0, len(counts))
	for rank := range counts {
		ranks = append(ranks, rank)
	}
	sort.Slice(ranks, func(i, j int) bool { return ranks[i] < ranks[j] })
	if ranks[0] != 1 {
		t.Errorf("lowest drawn rank = %d, want 1", ranks[0])
	}
}

func TestZipfianEdgeCases(t *testing.T) {
	if _, err := NewZipfian(0, DefaultTheta); err == nil {
		t.Error("expected error for empty population")
	}
	if _, err := NewZipfian(10, 1.0); err == nil {
		t.Error("expected error for theta 1")
	}
	if _, err := NewZipfian(10, 0); err == nil {
		t.Error("expected error for theta 0")
	}

	single, err := NewZipfian(1, DefaultTheta)
	if err != nil {
		t.Fatalf("NewZipfian(1) failed: %v", err)
	}
	r := newRand(3)
	for i := 0; i < 1000; i++ {
		if rank := single.Next(r); rank != 1 {
			t.Fatalf("single item population drew rank %d", rank)
		}
	}

	z, err := NewZipfian(100, 0.5)
	if err != nil {
		t.Fatalf("NewZipfian failed: %v", err)
	}
	if got := z.rank(0); got != 1 {
		t.Errorf("rank(0) = %d, want 1", got)
	}
	if got := z.rank(0.999999999); got < 1 || got > 100 {
		t.Errorf("rank near 1 = %d, want within [1, 100]", got)
	}
}

func TestZipfianSharedAcrossWorkers(t *testing.T) {
	z, err := NewZipfian(500, DefaultTheta)
	if err != nil {
		t.Fatalf("NewZipfian failed: %v", err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			g, err := NewKeyGenerator(PatternZipfian, 16, 500, WithZipfian(z), WithRand(newRand(uint64(id))))
			if err != nil {
				errs <- err
				return
			}
			buf := make([]byte, 0, 16)
			for i := 0; i < 10_000; i++ {
				if _, err := g.Generate(buf, i); err != nil {
					errs <- err
					return
				}
			}
		}(w)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("worker failed: %v", err)
	}
}

func TestUniformKeysVary(t *testing.T) {
	g, err := NewKeyGenerator(PatternUniform, 20, 100, WithRand(newRand(9)))
	if err != nil {
		t.Fatalf("NewKeyGenerator failed: %v", err)
	}

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		key, err := g.Generate(nil, 0)
		if err != nil {
			t.Fatalf("Generate failed: %v", err)
		}
		seen[string(key)] = true
	}
	if len(seen) < 95 {
		t.Errorf("only %d distinct uniform keys in 100 draws", len(seen))
	}
}

func TestValueGenerator(t *testing.T) {
	g, err := NewValueGenerator(300)
	if err != nil {
		t.Fatalf("NewValueGenerator failed: %v", err)
	}

	v := g.Generate(nil, 10)
	if len(v) != 300 {
		t.Fatalf("value length = %d, want 300", len(v))
	}
	for i, b := range v {
		if want := byte((10 + i) % 256); b != want {
			t.Fatalf("value[%d] = %d, want %d", i, b, want)
		}
	}

	again := g.Generate(make([]byte, 0, 512), 10)
	if !bytes.Equal(v, again) {
		t.Error("values for the same index differ")
	}

	if _, err := NewValueGenerator(0); err == nil {
		t.Error("expected error for zero value size")
	}
}

func TestCompressionRatio(t *testing.T) {
	g, err := NewValueGenerator(100)
	if err != nil {
		t.Fatalf("NewValueGenerator failed: %v", err)
	}

	ratio, err := g.CompressionRatio(1000)
	if err != nil {
		t.Fatalf("CompressionRatio failed: %v", err)
	}
	if ratio <= 1 {
		t.Errorf("compression ratio = %.2f, want > 1 for rolling byte values", ratio)
	}

	if ratio, _ := g.CompressionRatio(0); ratio != 0 {
		t.Errorf("compression ratio with no samples = %.2f, want 0", ratio)
	}
}

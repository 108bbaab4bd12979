package keygen

import (
	"fmt"
	"math/rand/v2"
	"strconv"
	"time"
)

var keyTag = []byte("key")

// KeyGenerator renders operation indexes into fixed-size keys.
//
// A generator is owned by a single worker: it carries the worker's private
// random source. The Zipfian sampler it points to is shared and read-only.
type KeyGenerator struct {
	pattern       Pattern
	keySize       int
	maxOperations int
	zipf          *Zipfian
	rng           *rand.Rand
	now           func() time.Time
}

// KeyOption customizes a KeyGenerator.
type KeyOption func(*KeyGenerator)

// WithZipfian sets the sampler used by the zipfian pattern.
func WithZipfian(z *Zipfian) KeyOption {
	return func(g *KeyGenerator) { g.zipf = z }
}

// WithRand sets the random source used by the uniform and zipfian patterns.
func WithRand(r *rand.Rand) KeyOption {
	return func(g *KeyGenerator) { g.rng = r }
}

// WithClock overrides the clock used by the timestamp pattern.
func WithClock(now func() time.Time) KeyOption {
	return func(g *KeyGenerator) { g.now = now }
}

// NewKeyGenerator creates a generator producing keys of exactly keySize bytes.
// A zipfian generator without an explicit sampler builds one over
// maxOperations with DefaultTheta.
func NewKeyGenerator(pattern Pattern, keySize, maxOperations int, opts ...KeyOption) (*KeyGenerator, error) {
	if _, err := MaxFieldWidth(pattern, maxOperations); err != nil {
		return nil, err
	}
	if keySize <= HeaderSize {
		return nil, fmt.Errorf("%w: key size %d must exceed the %d byte header", ErrKeyTooSmall, keySize, HeaderSize)
	}

	g := &KeyGenerator{
		pattern:       pattern,
		keySize:       keySize,
		maxOperations: maxOperations,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}

	if g.rng == nil {
		g.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if pattern == PatternZipfian && g.zipf == nil {
		z, err := NewZipfian(int64(max(maxOperations, 1)), DefaultTheta)
		if err != nil {
			return nil, err
		}
		g.zipf = z
	}

	return g, nil
}

// KeySize returns the size of every generated key.
func (g *KeyGenerator) KeySize() int { return g.keySize }

// Pattern returns the generator's pattern.
func (g *KeyGenerator) Pattern() Pattern { return g.pattern }

// Generate renders the key for index into dst, reusing its capacity, and
// returns the key. The layout is "key", the pattern field left padded with
// zeros to keySize-4 characters, and a trailing zero byte.
func (g *KeyGenerator) Generate(dst []byte, index int) ([]byte, error) {
	var scratch [24]byte
	field, err := g.field(scratch[:0], index)
	if err != nil {
		return nil, err
	}

	width := g.keySize - HeaderSize
	if len(field) > width {
		return nil, fmt.Errorf("%w: %s key %d renders %d characters, key size %d leaves room for %d",
			ErrKeyTooSmall, g.pattern, index, len(field), g.keySize, width)
	}

	if cap(dst) < g.keySize {
		dst = make([]byte, 0, g.keySize)
	}
	dst = append(dst[:0], keyTag...)
	for i := len(field); i < width; i++ {
		dst = append(dst, '0')
	}
	dst = append(dst, field...)
	dst = append(dst, 0)

	return dst, nil
}

func (g *KeyGenerator) field(buf []byte, index int) ([]byte, error) {
	if index < 0 {
		return nil, fmt.Errorf("key index must not be negative, got %d", index)
	}

	switch g.pattern {
	case PatternSequential:
		return strconv.AppendUint(buf, uint64(index), 10), nil
	case PatternRandom:
		return strconv.AppendUint(buf, uint64(index)*randomMultiplier, 16), nil
	case PatternUniform:
		v := uint64(g.rng.Uint32())<<32 | uint64(g.rng.Uint32())
		return strconv.AppendUint(buf, v, 16), nil
	case PatternTimestamp:
		v := uint64(g.now().Unix())<<32 | uint64(uint32(index))
		return strconv.AppendUint(buf, v, 16), nil
	case PatternReverse:
		if index > g.maxOperations {
			return nil, fmt.Errorf("reverse key index %d exceeds operation count %d", index, g.maxOperations)
		}
		return strconv.AppendUint(buf, uint64(g.maxOperations-index), 10), nil
	case PatternZipfian:
		return strconv.AppendInt(buf, g.zipf.Next(g.rng), 10), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownPattern, string(g.pattern))
	}
}

package keygen

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// ValueGenerator produces deterministic values: byte i of the value for
// index n is (n+i) mod 256.
type ValueGenerator struct {
	size int
}

// NewValueGenerator creates a generator for values of exactly size bytes.
func NewValueGenerator(size int) (*ValueGenerator, error) {
	if size <= 0 {
		return nil, fmt.Errorf("value size must be positive, got %d", size)
	}
	return &ValueGenerator{size: size}, nil
}

// Size returns the size of every generated value.
func (g *ValueGenerator) Size() int { return g.size }

// Generate fills dst with the value for index, reusing its capacity.
func (g *ValueGenerator) Generate(dst []byte, index int) []byte {
	if cap(dst) < g.size {
		dst = make([]byte, g.size)
	}
	dst = dst[:g.size]
	for i := range dst {
		dst[i] = byte((index + i) % 256)
	}
	return dst
}

// CompressionRatio zstd-encodes the first samples values back to back and
// returns raw/compressed. Engines that compress blocks see roughly this
// ratio, which puts space amplification below 1 into context.
func (g *ValueGenerator) CompressionRatio(samples int) (float64, error) {
	if samples <= 0 {
		return 0, nil
	}

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return 0, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	defer enc.Close()

	raw := make([]byte, 0, samples*g.size)
	buf := make([]byte, g.size)
	for i := 0; i < samples; i++ {
		raw = append(raw, g.Generate(buf, i)...)
	}

	compressed := enc.EncodeAll(raw, nil)
	if len(compressed) == 0 {
		return 0, nil
	}

	return float64(len(raw)) / float64(len(compressed)), nil
}

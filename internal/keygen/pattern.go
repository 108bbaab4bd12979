package keygen

import (
	"fmt"
	"math/bits"
	"strconv"
	"strings"
)

// Pattern selects how an operation index is turned into a key.
type Pattern string

const (
	PatternSequential Pattern = "seq"
	PatternRandom     Pattern = "random"
	PatternZipfian    Pattern = "zipfian"
	PatternUniform    Pattern = "uniform"
	PatternTimestamp  Pattern = "timestamp"
	PatternReverse    Pattern = "reverse"
)

// HeaderSize is the number of key bytes not available to the rendered field:
// the three byte "key" tag plus the trailing terminator byte.
const HeaderSize = 4

// randomMultiplier is the Knuth multiplicative hash constant used by the
// random pattern.
const randomMultiplier uint64 = 2654435761

var (
	ErrUnknownPattern = fmt.Errorf("unknown key pattern")
	ErrKeyTooSmall    = fmt.Errorf("key size too small for pattern")
)

// Patterns lists every supported pattern in display order.
func Patterns() []Pattern {
	return []Pattern{
		PatternSequential,
		PatternRandom,
		PatternZipfian,
		PatternUniform,
		PatternTimestamp,
		PatternReverse,
	}
}

// ParsePattern maps a user supplied token to a Pattern.
func ParsePattern(s string) (Pattern, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "seq", "sequential":
		return PatternSequential, nil
	case "random":
		return PatternRandom, nil
	case "zipfian":
		return PatternZipfian, nil
	case "uniform":
		return PatternUniform, nil
	case "timestamp":
		return PatternTimestamp, nil
	case "reverse":
		return PatternReverse, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownPattern, s)
	}
}

// Deterministic reports whether the same index always renders the same key.
// Timestamp keys only repeat within the same wall-clock second.
func (p Pattern) Deterministic() bool {
	switch p {
	case PatternSequential, PatternRandom, PatternReverse:
		return true
	default:
		return false
	}
}

// Description returns the human readable name used in reports.
func (p Pattern) Description() string {
	switch p {
	case PatternSequential:
		return "Sequential"
	case PatternRandom:
		return "Random"
	case PatternZipfian:
		return "Zipfian (hot keys)"
	case PatternUniform:
		return "Uniform Random"
	case PatternTimestamp:
		return "Timestamp"
	case PatternReverse:
		return "Reverse Sequential"
	default:
		return "Unknown"
	}
}

// MaxFieldWidth returns the widest field the pattern can render for indexes
// in [0, maxOperations). A key of HeaderSize+MaxFieldWidth bytes never fails
// to generate.
func MaxFieldWidth(p Pattern, maxOperations int) (int, error) {
	if maxOperations < 1 {
		maxOperations = 1
	}

	switch p {
	case PatternSequential:
		return decimalWidth(uint64(maxOperations - 1)), nil
	case PatternRandom:
		hi, lo := bits.Mul64(uint64(maxOperations-1), randomMultiplier)
		if hi != 0 {
			return 16, nil
		}
		return hexWidth(lo), nil
	case PatternUniform, PatternTimestamp:
		// full 64-bit values; timestamps carry the epoch second in the high word
		return 16, nil
	case PatternReverse, PatternZipfian:
		return decimalWidth(uint64(maxOperations)), nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownPattern, string(p))
	}
}

// MinKeySize is the smallest key size that can hold every key of the pattern.
func MinKeySize(p Pattern, maxOperations int) (int, error) {
	width, err := MaxFieldWidth(p, maxOperations)
	if err != nil {
		return 0, err
	}
	return HeaderSize + width, nil
}

func decimalWidth(v uint64) int {
	return len(strconv.FormatUint(v, 10))
}

func hexWidth(v uint64) int {
	return len(strconv.FormatUint(v, 16))
}

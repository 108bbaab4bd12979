package keygen

import (
	"fmt"
	"math"
	"math/rand/v2"
)

// DefaultTheta is the skew used for the zipfian key pattern.
const DefaultTheta = 0.99

// Zipfian samples ranks in [1, n] with a Zipfian popularity skew, following
// the YCSB generator (Gray et al., "Quickly Generating Billion-Record
// Synthetic Databases").
//
// All normalizing state is computed by NewZipfian and never changes, so one
// sampler can be shared by any number of workers as long as each worker
// draws with its own *rand.Rand.
type Zipfian struct {
	n     int64
	theta float64
	alpha float64
	zetan float64
	eta   float64
	zeta2 float64
}

// NewZipfian precomputes the normalizing constants for a population of n
// items and skew theta in (0, 1).
func NewZipfian(n int64, theta float64) (*Zipfian, error) {
	if n < 1 {
		return nil, fmt.Errorf("zipfian population must be positive, got %d", n)
	}
	if theta <= 0 || theta >= 1 {
		return nil, fmt.Errorf("zipfian theta must be in (0, 1), got %g", theta)
	}

	zetan := zeta(n, theta)
	z := &Zipfian{
		n:     n,
		theta: theta,
		alpha: 1.0 / (1.0 - theta),
		zetan: zetan,
		zeta2: 1.0 + math.Pow(0.5, theta),
	}

	if n > 1 {
		z.eta = (1.0 - math.Pow(2.0/float64(n), 1.0-theta)) / (1.0 - 1.0/zetan)
	}

	return z, nil
}

// N returns the population size.
func (z *Zipfian) N() int64 { return z.n }

// Theta returns the skew exponent.
func (z *Zipfian) Theta() float64 { return z.theta }

// Next draws one rank. Low ranks are the hot ones.
func (z *Zipfian) Next(r *rand.Rand) int64 {
	return z.rank(r.Float64())
}

func (z *Zipfian) rank(u float64) int64 {
	uz := u * z.zetan

	if uz < 1.0 {
		return 1
	}
	if uz < z.zeta2 {
		return min(2, z.n)
	}

	rank := 1 + int64(float64(z.n)*math.Pow(z.eta*u-z.eta+1.0, z.alpha))
	return max(1, min(rank, z.n))
}

func zeta(n int64, theta float64) float64 {
	var sum float64
	for i := int64(1); i <= n; i++ {
		sum += 1.0 / math.Pow(float64(i), theta)
	}
	return sum
}

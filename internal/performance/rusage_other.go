//go:build !unix

package performance

import (
	"errors"
	"time"
)

type rusage struct {
	user   time.Duration
	system time.Duration
	maxRSS uint64
}

func readRusage() (rusage, error) {
	return rusage{}, errors.New("getrusage not supported on this platform")
}

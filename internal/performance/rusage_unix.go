//go:build unix

package performance

import (
	"runtime"
	"time"

	"golang.org/x/sys/unix"
)

type rusage struct {
	user   time.Duration
	system time.Duration
	maxRSS uint64
}

func readRusage() (rusage, error) {
	var ru unix.Rusage
	if err := unix.Getrusage(unix.RUSAGE_SELF, &ru); err != nil {
		return rusage{}, err
	}

	maxRSS := uint64(max(ru.Maxrss, 0))
	// darwin reports bytes, everyone else kilobytes
	if runtime.GOOS != "darwin" && runtime.GOOS != "ios" {
		maxRSS *= 1024
	}

	return rusage{
		user:   time.Duration(ru.Utime.Nano()),
		system: time.Duration(ru.Stime.Nano()),
		maxRSS: maxRSS,
	}, nil
}

package workload

import (
	"context"
	"errors"
	"fmt"
	"time"

	"kvbench/internal/performance"
	"kvbench/internal/storage"
)

// ScanResult is the outcome of a full ordered scan.
type ScanResult struct {
	Supported bool
	Keys      int
	Stats     performance.OperationStats
}

// Scan walks every entry of the backend once, reading key and value, and
// times the walk. A backend without iteration support yields an unsupported
// result rather than an error.
func Scan(ctx context.Context, backend storage.Backend) (ScanResult, error) {
	if err := ctx.Err(); err != nil {
		return ScanResult{}, fmt.Errorf("scan not started: %w", err)
	}

	iterable, ok := backend.(storage.Iterable)
	if !ok {
		return ScanResult{}, nil
	}

	begin := time.Now()
	it, err := iterable.NewIterator()
	if errors.Is(err, storage.ErrIteratorUnsupported) {
		return ScanResult{}, nil
	}
	if err != nil {
		return ScanResult{}, fmt.Errorf("failed to open iterator: %w", err)
	}

	var count, touched int
	for it.SeekToFirst(); it.Valid(); it.Next() {
		touched += len(it.Key()) + len(it.Value())
		count++
	}
	closeErr := it.Close()
	duration := time.Since(begin)

	stats := performance.Compute(nil, count, duration)
	stats.Operations = count

	result := ScanResult{Supported: true, Keys: count, Stats: stats}
	if closeErr != nil {
		return result, fmt.Errorf("failed to close iterator after %d keys (%d bytes): %w", count, touched, closeErr)
	}
	return result, nil
}

package config

import (
	"fmt"
	"strings"
)

// Workload selects which phases a run executes.
type Workload string

const (
	WorkloadWrite  Workload = "write"
	WorkloadRead   Workload = "read"
	WorkloadMixed  Workload = "mixed"
	WorkloadDelete Workload = "delete"
)

var ErrUnknownWorkload = fmt.Errorf("unknown workload")

func ParseWorkload(s string) (Workload, error) {
	switch w := Workload(strings.ToLower(strings.TrimSpace(s))); w {
	case WorkloadWrite, WorkloadRead, WorkloadMixed, WorkloadDelete:
		return w, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownWorkload, s)
	}
}

// Writes reports whether the workload runs a write phase.
func (w Workload) Writes() bool { return w == WorkloadWrite || w == WorkloadMixed }

// Reads reports whether the workload runs a read phase.
func (w Workload) Reads() bool { return w == WorkloadRead || w == WorkloadMixed }

// Deletes reports whether the workload runs a delete phase.
func (w Workload) Deletes() bool { return w == WorkloadDelete }

func (w Workload) Description() string {
	switch w {
	case WorkloadWrite:
		return "Write-only"
	case WorkloadRead:
		return "Read-only"
	case WorkloadDelete:
		return "Delete-only"
	case WorkloadMixed:
		return "Mixed"
	default:
		return "Unknown"
	}
}

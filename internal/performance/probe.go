package performance

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"time"

	"github.com/prometheus/procfs"
)

// ResourceSample is a point-in-time reading of process resource counters.
// Counters that could not be read are zero.
type ResourceSample struct {
	Time time.Time

	RSSBytes     uint64
	PeakRSSBytes uint64
	VMSBytes     uint64
	PeakVMSBytes uint64

	// physical storage I/O as accounted by the kernel
	ReadBytes  uint64
	WriteBytes uint64

	UserCPU   time.Duration
	SystemCPU time.Duration
}

// ResourceMetrics describes what a run cost the host.
type ResourceMetrics struct {
	PeakRSSBytes uint64 `json:"peak_rss_bytes"`
	PeakVMSBytes uint64 `json:"peak_vms_bytes"`

	BytesRead    uint64 `json:"physical_bytes_read"`
	BytesWritten uint64 `json:"physical_bytes_written"`

	UserCPUSeconds   float64 `json:"cpu_user_seconds"`
	SystemCPUSeconds float64 `json:"cpu_system_seconds"`
	CPUPercent       float64 `json:"cpu_percent"`

	DiskBytes uint64 `json:"disk_bytes"`

	WriteAmplification float64 `json:"write_amplification,omitempty"`
	ReadAmplification  float64 `json:"read_amplification,omitempty"`
	SpaceAmplification float64 `json:"space_amplification,omitempty"`
}

// Sampler reads process resource counters. A failed read never aborts a run:
// the affected fields stay zero and the error is returned for logging.
type Sampler interface {
	Sample() (ResourceSample, error)
}

// ProcessProbe samples the current process through /proc (memory and I/O)
// and getrusage (CPU). On systems without procfs only CPU and peak RSS from
// rusage are reported.
type ProcessProbe struct {
	fs    procfs.FS
	fsErr error
}

var _ Sampler = (*ProcessProbe)(nil)

func NewProcessProbe() *ProcessProbe {
	fs, err := procfs.NewDefaultFS()
	return &ProcessProbe{fs: fs, fsErr: err}
}

func (p *ProcessProbe) Sample() (ResourceSample, error) {
	s := ResourceSample{Time: time.Now()}
	var errs []error

	if u, err := readRusage(); err == nil {
		s.UserCPU, s.SystemCPU = u.user, u.system
		s.PeakRSSBytes = u.maxRSS
	} else {
		errs = append(errs, fmt.Errorf("getrusage: %w", err))
	}

	if p.fsErr != nil {
		errs = append(errs, fmt.Errorf("procfs unavailable: %w", p.fsErr))
		return s, errors.Join(errs...)
	}

	proc, err := p.fs.Self()
	if err != nil {
		errs = append(errs, fmt.Errorf("procfs self: %w", err))
		return s, errors.Join(errs...)
	}

	if status, err := proc.NewStatus(); err == nil {
		s.RSSBytes = status.VmRSS
		s.VMSBytes = status.VmSize
		s.PeakVMSBytes = status.VmPeak
		s.PeakRSSBytes = max(s.PeakRSSBytes, status.VmHWM)
	} else {
		errs = append(errs, fmt.Errorf("read status: %w", err))
	}

	if io, err := proc.IO(); err == nil {
		s.ReadBytes = io.ReadBytes
		s.WriteBytes = io.WriteBytes
	} else {
		errs = append(errs, fmt.Errorf("read io: %w", err))
	}

	return s, errors.Join(errs...)
}

// Delta turns two samples around a run into resource metrics. Counter
// differences are clamped at zero; memory takes the larger of both samples
// since peaks only grow. CPU percent is CPU time over wall time.
func Delta(before, after ResourceSample, wall time.Duration) ResourceMetrics {
	m := ResourceMetrics{
		PeakRSSBytes: max(before.PeakRSSBytes, after.PeakRSSBytes, before.RSSBytes, after.RSSBytes),
		PeakVMSBytes: max(before.PeakVMSBytes, after.PeakVMSBytes, before.VMSBytes, after.VMSBytes),
		BytesRead:    subClamp(after.ReadBytes, before.ReadBytes),
		BytesWritten: subClamp(after.WriteBytes, before.WriteBytes),
	}

	user := max(after.UserCPU-before.UserCPU, 0)
	system := max(after.SystemCPU-before.SystemCPU, 0)
	m.UserCPUSeconds = user.Seconds()
	m.SystemCPUSeconds = system.Seconds()

	if wall > 0 {
		m.CPUPercent = (user + system).Seconds() / wall.Seconds() * 100
	}

	return m
}

func subClamp(a, b uint64) uint64 {
	if a < b {
		return 0
	}
	return a - b
}

// DirSize sums the sizes of regular files under path. A missing path has
// size zero.
func DirSize(path string) (uint64, error) {
	var total uint64

	err := filepath.WalkDir(path, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				// compaction removed it mid-walk
				return nil
			}
			return err
		}
		total += uint64(info.Size())
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to measure %s: %w", path, err)
	}

	return total, nil
}

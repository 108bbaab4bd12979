package performance

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLogicalVolume(t *testing.T) {
	tests := []struct {
		name        string
		wrote, read bool
		wantWritten uint64
		wantRead    uint64
	}{
		{"mixed", true, true, 1000 * 120, 1000 * 100},
		{"write only", true, false, 1000 * 120, 0},
		{"read only", false, true, 0, 1000 * 100},
		{"delete only", false, false, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, r := LogicalVolume(1000, 20, 100, tt.wrote, tt.read)
			assert.Equal(t, tt.wantWritten, w)
			assert.Equal(t, tt.wantRead, r)
		})
	}
}

func TestAmplify(t *testing.T) {
	m := ResourceMetrics{BytesWritten: 3000, BytesRead: 500, DiskBytes: 1500}

	Amplify(&m, 1000, 1000)

	assert.InDelta(t, 3.0, m.WriteAmplification, 1e-9)
	assert.InDelta(t, 0.5, m.ReadAmplification, 1e-9)
	assert.InDelta(t, 1.5, m.SpaceAmplification, 1e-9)
}

func TestAmplifyZeroDenominators(t *testing.T) {
	m := ResourceMetrics{BytesWritten: 3000, BytesRead: 500, DiskBytes: 1500}

	Amplify(&m, 0, 0)

	assert.Zero(t, m.WriteAmplification)
	assert.Zero(t, m.ReadAmplification)
	assert.Zero(t, m.SpaceAmplification)
}

package collector

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Guliveer/novamon/internal/models"
)

type stubProber struct {
	snap   models.GPUSnapshot
	calls  int
	closed bool
}

func (s *stubProber) Collect() models.GPUSnapshot {
	s.calls++
	return s.snap
}

func (s *stubProber) Close() error {
	s.closed = true
	return nil
}

func TestGPUMonitor_Device(t *testing.T) {
	probes := &stubProber{snap: models.GPUSnapshot{
		GPUs:         []models.GPUInfo{{UUID: "amd-0", Vendor: models.VendorAmd}},
		AmdAvailable: true,
		Errors:       []string{"NVIDIA: NVML not initialized: init: Library Not Found"},
	}}
	m := newGPUMonitor(probes, nil)

	g, err := m.Device(context.Background(), "amd-0")
	require.NoError(t, err)
	assert.Equal(t, models.VendorAmd, g.Vendor)

	_, err = m.Device(context.Background(), "GPU-missing")
	assert.ErrorIs(t, err, ErrGpuNotAvailable)
	assert.Equal(t, 2, probes.calls)

	require.NoError(t, m.Close())
	assert.True(t, probes.closed)
}

func TestGPUMonitor_CollectNeverFails(t *testing.T) {
	m := newGPUMonitor(&stubProber{snap: models.GPUSnapshot{Errors: []string{"no devices found"}}}, nil)

	v, err := m.Collect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"no devices found"}, v.(models.GPUSnapshot).Errors)
}

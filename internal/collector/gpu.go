package collector

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/Guliveer/novamon/internal/gpu"
	"github.com/Guliveer/novamon/internal/models"
)

// gpuProber is what the monitor needs from gpu.ProbeSet.
type gpuProber interface {
	Collect() models.GPUSnapshot
	Close() error
}

// GPUMonitor is the façade over the vendor probe set.
type GPUMonitor struct {
	guard  *stateGuard
	probes gpuProber
	logger *zap.Logger
}

// NewGPUMonitor creates a GPU monitor. Vendor libraries are loaded on the
// first refresh.
func NewGPUMonitor(opts gpu.Options, logger *zap.Logger) *GPUMonitor {
	return newGPUMonitor(gpu.NewProbeSet(opts, logger), logger)
}

func newGPUMonitor(probes gpuProber, logger *zap.Logger) *GPUMonitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GPUMonitor{guard: newStateGuard("gpu", logger), probes: probes, logger: logger}
}

// Name returns the collector identifier.
func (m *GPUMonitor) Name() string { return "gpu" }

// IsAvailable returns true; a host without GPUs still yields a snapshot
// listing why each vendor is absent.
func (m *GPUMonitor) IsAvailable() bool { return true }

// Collect implements Collector.
func (m *GPUMonitor) Collect(ctx context.Context) (interface{}, error) {
	return m.Refresh(ctx), nil
}

// Refresh probes every vendor. It never fails; vendor problems are listed in
// the snapshot's Errors.
func (m *GPUMonitor) Refresh(_ context.Context) models.GPUSnapshot {
	var snap models.GPUSnapshot
	m.guard.run(func() {
		snap = m.probes.Collect()
	})
	return snap
}

// Device refreshes and returns the device with the given UUID. It fails with
// ErrGpuNotAvailable when no probe reports it.
func (m *GPUMonitor) Device(ctx context.Context, uuid string) (models.GPUInfo, error) {
	snap := m.Refresh(ctx)
	for _, g := range snap.GPUs {
		if g.UUID == uuid {
			return g, nil
		}
	}
	return models.GPUInfo{}, newError(ErrGpuNotAvailable, 0, fmt.Sprintf("no device with uuid %q", uuid))
}

// Close releases vendor library handles.
func (m *GPUMonitor) Close() error {
	var err error
	m.guard.run(func() {
		err = m.probes.Close()
	})
	return err
}

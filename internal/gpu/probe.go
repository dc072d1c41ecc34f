// Package gpu enumerates graphics devices from every supported vendor and
// merges them into one snapshot. The vendor set is closed: NVIDIA through
// the NVML management library, AMD and Intel through the kernel's DRM
// device attributes. A vendor that is absent or failing contributes a
// diagnostic string and never fails the snapshot.
package gpu

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Guliveer/novamon/internal/models"
	"github.com/Guliveer/novamon/internal/sysfs"
)

// Options configures a ProbeSet.
type Options struct {
	// SysRoot overrides the device-attribute tree root ("/sys").
	SysRoot string
	// NVML enables the NVIDIA probe.
	NVML bool
}

// ProbeSet holds one probe per vendor. It is not safe for concurrent
// Collect calls; the owning monitor serializes refreshes.
type ProbeSet struct {
	nvidia *nvidiaProbe
	amd    *amdProbe
	intel  *intelProbe
	logger *zap.Logger
}

// NewProbeSet creates probes for all vendors. Nothing is loaded until the
// first Collect.
func NewProbeSet(opts Options, logger *zap.Logger) *ProbeSet {
	return newProbeSet(opts, systemNVML{}, time.Now, logger)
}

func newProbeSet(opts Options, lib nvmlLibrary, now func() time.Time, logger *zap.Logger) *ProbeSet {
	if logger == nil {
		logger = zap.NewNop()
	}
	tree := sysfs.New(opts.SysRoot)
	return &ProbeSet{
		nvidia: newNvidiaProbe(lib, opts.NVML, logger),
		amd:    &amdProbe{tree: tree},
		intel:  newIntelProbe(tree, now),
		logger: logger,
	}
}

// Collect queries NVIDIA, AMD and Intel in that order and merges the
// results. Each vendor's availability flag is true when at least one of
// its devices was enumerated.
func (s *ProbeSet) Collect() models.GPUSnapshot {
	var diag diagnostics

	nvidia, driver := s.nvidia.collect(&diag)
	amd := s.amd.collect(&diag)
	intel := s.intel.collect(&diag)

	gpus := make([]models.GPUInfo, 0, len(nvidia)+len(amd)+len(intel))
	gpus = append(gpus, nvidia...)
	gpus = append(gpus, amd...)
	gpus = append(gpus, intel...)

	snap := models.GPUSnapshot{
		GPUs:            gpus,
		NvidiaAvailable: len(nvidia) > 0,
		AmdAvailable:    len(amd) > 0,
		IntelAvailable:  len(intel) > 0,
		DriverVersion:   driver,
		Errors:          diag.messages,
	}
	if len(gpus) == 0 && len(diag.messages) == 0 {
		snap.Errors = []string{ErrNoDevices.Error()}
	}

	for _, msg := range snap.Errors {
		s.logger.Debug("GPU probe diagnostic", zap.String("detail", msg))
	}
	return snap
}

// Close releases vendor library handles.
func (s *ProbeSet) Close() error {
	return s.nvidia.close()
}

// diagnostics accumulates per-vendor failure strings for one refresh.
type diagnostics struct {
	messages []string
}

func (d *diagnostics) add(vendor models.GPUVendor, format string, args ...interface{}) {
	d.messages = append(d.messages, vendorLabel(vendor)+": "+fmt.Sprintf(format, args...))
}

func vendorLabel(v models.GPUVendor) string {
	switch v {
	case models.VendorNvidia:
		return "NVIDIA"
	case models.VendorAmd:
		return "AMD"
	case models.VendorIntel:
		return "Intel"
	default:
		return "GPU"
	}
}

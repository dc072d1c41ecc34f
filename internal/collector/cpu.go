// CPU monitor: per-core utilization from successive cumulative CPU times,
// plus processor identity. Uses gopsutil for the raw counters.
package collector

import (
	"context"
	"fmt"
	"math"

	"github.com/shirou/gopsutil/v3/cpu"
	"go.uber.org/zap"

	"github.com/Guliveer/novamon/internal/lazy"
	"github.com/Guliveer/novamon/internal/models"
	"github.com/Guliveer/novamon/internal/sysfs"
)

// cpuSource abstracts the gopsutil calls, for testing.
type cpuSource struct {
	times  func(ctx context.Context, percpu bool) ([]cpu.TimesStat, error)
	info   func(ctx context.Context) ([]cpu.InfoStat, error)
	counts func(ctx context.Context, logical bool) (int, error)
}

var gopsutilCPU = cpuSource{
	times:  cpu.TimesWithContext,
	info:   cpu.InfoWithContext,
	counts: cpu.CountsWithContext,
}

type cpuIdentity struct {
	vendor   string
	brand    string
	physical int
	freqs    []uint64
}

// CPUMonitor computes utilization from the delta between the previous and
// current per-core time counters. The first refresh reports zero usage.
type CPUMonitor struct {
	guard    *stateGuard
	src      cpuSource
	prev     map[string]cpu.TimesStat
	identity lazy.Resource[cpuIdentity]
	tree     sysfs.Tree
	logger   *zap.Logger
}

// NewCPUMonitor creates a CPU monitor. sysRoot overrides "/sys" for the
// current-frequency attributes.
func NewCPUMonitor(sysRoot string, logger *zap.Logger) *CPUMonitor {
	return newCPUMonitor(gopsutilCPU, sysfs.New(sysRoot), logger)
}

func newCPUMonitor(src cpuSource, tree sysfs.Tree, logger *zap.Logger) *CPUMonitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CPUMonitor{
		guard:  newStateGuard("cpu", logger),
		src:    src,
		prev:   make(map[string]cpu.TimesStat),
		tree:   tree,
		logger: logger,
	}
}

// Name returns the collector identifier.
func (m *CPUMonitor) Name() string { return "cpu" }

// IsAvailable returns true; CPU counters exist on every supported platform.
func (m *CPUMonitor) IsAvailable() bool { return true }

// Collect implements Collector.
func (m *CPUMonitor) Collect(ctx context.Context) (interface{}, error) {
	return m.Refresh(ctx)
}

// Refresh samples per-core times and returns the utilization since the
// previous refresh.
func (m *CPUMonitor) Refresh(ctx context.Context) (models.CPUSnapshot, error) {
	var (
		snap models.CPUSnapshot
		err  error
	)
	m.guard.run(func() {
		snap, err = m.refresh(ctx)
	})
	return snap, err
}

func (m *CPUMonitor) refresh(ctx context.Context) (models.CPUSnapshot, error) {
	times, err := m.src.times(ctx, true)
	if err != nil {
		return models.CPUSnapshot{}, fmt.Errorf("read cpu times: %w", err)
	}

	// Identity is loaded once and kept, so a cancelled first refresh must
	// not cut it short.
	id, _ := m.identity.Get(func() (cpuIdentity, error) {
		return m.loadIdentity(context.WithoutCancel(ctx)), nil
	})

	cores := make([]models.CPUCore, 0, len(times))
	seen := make(map[string]bool, len(times))
	var sum float64
	for i, t := range times {
		core := models.CPUCore{Name: t.CPU}
		if prev, ok := m.prev[t.CPU]; ok {
			core.Usage = coreUsage(prev, t)
		}
		core.FrequencyMHz = m.frequency(t.CPU, i, id.freqs)
		m.prev[t.CPU] = t
		seen[t.CPU] = true
		sum += core.Usage
		cores = append(cores, core)
	}
	for name := range m.prev {
		if !seen[name] {
			delete(m.prev, name)
		}
	}

	snap := models.CPUSnapshot{
		Vendor:        id.vendor,
		Brand:         id.brand,
		PhysicalCores: id.physical,
		LogicalCores:  len(cores),
		Cores:         cores,
	}
	if len(cores) > 0 {
		snap.Name = cores[0].Name
		snap.GlobalUsage = sum / float64(len(cores))
	}
	return snap, nil
}

// loadIdentity reads processor identity once; every field degrades to its
// zero value independently.
func (m *CPUMonitor) loadIdentity(ctx context.Context) cpuIdentity {
	var id cpuIdentity

	infos, err := m.src.info(ctx)
	if err != nil {
		m.logger.Debug("CPU info not available", zap.Error(err))
	}
	if len(infos) > 0 {
		id.vendor = infos[0].VendorID
		id.brand = infos[0].ModelName
	}
	for _, info := range infos {
		id.freqs = append(id.freqs, uint64(math.Round(info.Mhz)))
	}

	if n, err := m.src.counts(ctx, false); err == nil {
		id.physical = n
	} else {
		m.logger.Debug("Physical core count not available", zap.Error(err))
	}
	return id
}

// frequency prefers the live scaling frequency (kHz) and falls back to the
// value reported at startup.
func (m *CPUMonitor) frequency(name string, index int, fallback []uint64) uint64 {
	if khz, ok := m.tree.Uint("devices", "system", "cpu", name, "cpufreq", "scaling_cur_freq"); ok {
		return khz / 1000
	}
	if index < len(fallback) {
		return fallback[index]
	}
	return 0
}

// coreUsage is the busy share of the elapsed time between two samples, in
// percent. Guest time is already included in user time and is not counted
// twice.
func coreUsage(prev, cur cpu.TimesStat) float64 {
	total := func(t cpu.TimesStat) float64 {
		return t.User + t.System + t.Idle + t.Nice + t.Iowait +
			t.Irq + t.Softirq + t.Steal
	}
	idle := func(t cpu.TimesStat) float64 { return t.Idle + t.Iowait }

	dTotal := total(cur) - total(prev)
	if dTotal <= 0 {
		return 0
	}
	dBusy := dTotal - (idle(cur) - idle(prev))
	return math.Max(0, math.Min(100, dBusy/dTotal*100))
}

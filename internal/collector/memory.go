// Memory monitor: RAM and swap usage in bytes with percentages.
// Uses gopsutil for cross-platform memory metrics.
package collector

import (
	"context"
	"fmt"

	"github.com/shirou/gopsutil/v3/mem"
	"go.uber.org/zap"

	"github.com/Guliveer/novamon/internal/models"
)

type memorySource struct {
	virtual func(ctx context.Context) (*mem.VirtualMemoryStat, error)
	swap    func(ctx context.Context) (*mem.SwapMemoryStat, error)
}

var gopsutilMemory = memorySource{
	virtual: mem.VirtualMemoryWithContext,
	swap:    mem.SwapMemoryWithContext,
}

// MemoryMonitor collects RAM and swap usage.
type MemoryMonitor struct {
	guard  *stateGuard
	src    memorySource
	logger *zap.Logger
}

// NewMemoryMonitor creates a new memory monitor.
func NewMemoryMonitor(logger *zap.Logger) *MemoryMonitor {
	return newMemoryMonitor(gopsutilMemory, logger)
}

func newMemoryMonitor(src memorySource, logger *zap.Logger) *MemoryMonitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MemoryMonitor{guard: newStateGuard("memory", logger), src: src, logger: logger}
}

// Name returns the collector identifier.
func (m *MemoryMonitor) Name() string { return "memory" }

// IsAvailable returns true; memory metrics are available on all platforms.
func (m *MemoryMonitor) IsAvailable() bool { return true }

// Collect implements Collector.
func (m *MemoryMonitor) Collect(ctx context.Context) (interface{}, error) {
	return m.Refresh(ctx)
}

// Refresh reads current memory and swap usage. A swap read failure leaves the
// swap fields at zero.
func (m *MemoryMonitor) Refresh(ctx context.Context) (models.MemorySnapshot, error) {
	var (
		snap models.MemorySnapshot
		err  error
	)
	m.guard.run(func() {
		var v *mem.VirtualMemoryStat
		v, err = m.src.virtual(ctx)
		if err != nil {
			err = fmt.Errorf("read virtual memory: %w", err)
			return
		}
		snap.TotalMemory = v.Total
		snap.UsedMemory = v.Used
		snap.AvailableMemory = v.Available
		snap.MemoryUsagePercent = percent(v.Used, v.Total)

		s, serr := m.src.swap(ctx)
		if serr != nil {
			m.logger.Debug("Swap usage not available", zap.Error(serr))
			return
		}
		snap.TotalSwap = s.Total
		snap.UsedSwap = s.Used
		snap.SwapUsagePercent = percent(s.Used, s.Total)
	})
	return snap, err
}

// percent returns part/total*100, or 0 when total is zero.
func percent(part, total uint64) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) / float64(total) * 100
}

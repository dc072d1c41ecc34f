package collector

import (
	"context"
	"errors"
	"testing"

	"github.com/shirou/gopsutil/v3/mem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryMonitor_Refresh(t *testing.T) {
	src := memorySource{
		virtual: func(context.Context) (*mem.VirtualMemoryStat, error) {
			return &mem.VirtualMemoryStat{Total: 16 << 30, Used: 4 << 30, Available: 12 << 30}, nil
		},
		swap: func(context.Context) (*mem.SwapMemoryStat, error) {
			return &mem.SwapMemoryStat{}, nil
		},
	}

	snap, err := newMemoryMonitor(src, nil).Refresh(context.Background())

	require.NoError(t, err)
	assert.InDelta(t, 25.0, snap.MemoryUsagePercent, 1e-9)
	assert.Equal(t, uint64(12<<30), snap.AvailableMemory)
	assert.Zero(t, snap.SwapUsagePercent, "no swap configured")
}

func TestMemoryMonitor_SwapFailureIsPartial(t *testing.T) {
	src := memorySource{
		virtual: func(context.Context) (*mem.VirtualMemoryStat, error) {
			return &mem.VirtualMemoryStat{Total: 100, Used: 50}, nil
		},
		swap: func(context.Context) (*mem.SwapMemoryStat, error) {
			return nil, errors.New("no /proc/swaps")
		},
	}

	snap, err := newMemoryMonitor(src, nil).Refresh(context.Background())

	require.NoError(t, err)
	assert.Equal(t, uint64(100), snap.TotalMemory)
	assert.Zero(t, snap.TotalSwap)
}

func TestPercent(t *testing.T) {
	assert.Zero(t, percent(10, 0))
	assert.InDelta(t, 50.0, percent(1, 2), 1e-9)
}

package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Guliveer/novamon/internal/collector"
	"github.com/Guliveer/novamon/internal/config"
	"github.com/Guliveer/novamon/internal/models"
)

type staticCollector struct {
	name  string
	value interface{}
	err   error
}

func (c staticCollector) Name() string      { return c.name }
func (c staticCollector) IsAvailable() bool { return true }
func (c staticCollector) Collect(context.Context) (interface{}, error) {
	return c.value, c.err
}

func TestAssemble_MatchesByType(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.FixedZone("CET", 3600))
	results := map[string]interface{}{
		"cpu":     models.CPUSnapshot{Name: "cpu0", GlobalUsage: 12.5},
		"memory":  models.MemorySnapshot{TotalMemory: 1024},
		"gpu":     models.GPUSnapshot{Errors: []string{"no devices found"}},
		"system":  models.SystemSnapshot{Hostname: "box"},
		"unknown": 42,
	}

	snap := Assemble(results, ts)

	assert.Equal(t, time.UTC, snap.Timestamp.Location())
	assert.True(t, snap.Timestamp.Equal(ts))
	require.NotNil(t, snap.CPU)
	assert.Equal(t, 12.5, snap.CPU.GlobalUsage)
	require.NotNil(t, snap.Memory)
	assert.Equal(t, uint64(1024), snap.Memory.TotalMemory)
	require.NotNil(t, snap.GPU)
	assert.Equal(t, []string{"no devices found"}, snap.GPU.Errors)
	require.NotNil(t, snap.System)
	assert.Nil(t, snap.Disk)
	assert.Nil(t, snap.Network)
	assert.Nil(t, snap.Processes)
	assert.Nil(t, snap.Sensors)
}

func TestScheduler_FailedMonitorIsOmitted(t *testing.T) {
	logger := zaptest.NewLogger(t)
	reg := collector.NewRegistry(2, logger)
	reg.Register(staticCollector{name: "memory", value: models.MemorySnapshot{UsedMemory: 7}})
	reg.Register(staticCollector{name: "disk", err: errors.New("partitions: permission denied")})

	s := New(reg, config.DefaultConfig(), logger)
	snap := s.Collect(context.Background())

	require.NotNil(t, snap.Memory)
	assert.Equal(t, uint64(7), snap.Memory.UsedMemory)
	assert.Nil(t, snap.Disk)
}

func TestScheduler_FlushesOnShutdown(t *testing.T) {
	logger := zaptest.NewLogger(t)
	reg := collector.NewRegistry(1, logger)
	reg.Register(staticCollector{name: "system", value: models.SystemSnapshot{Hostname: "box"}})

	cfg := config.DefaultConfig()
	cfg.Collection.Interval = config.Duration{Duration: time.Hour}
	cfg.Collection.BatchInterval = config.Duration{Duration: time.Hour}

	var mu sync.Mutex
	var batches [][]models.MetricSnapshot
	s := New(reg, cfg, logger)
	s.OnBatchReady(func(b []models.MetricSnapshot) {
		mu.Lock()
		batches = append(batches, b)
		mu.Unlock()
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Start(ctx)
		close(done)
	}()

	// The initial collection happens before the first tick.
	require.Eventually(t, func() bool {
		s.batchMu.Lock()
		defer s.batchMu.Unlock()
		return len(s.batch) == 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-done

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, batches, 1)
	require.Len(t, batches[0], 1)
	require.NotNil(t, batches[0][0].System)
	assert.Equal(t, "box", batches[0][0].System.Hostname)
}

func TestScheduler_EmptyBatchNotFlushed(t *testing.T) {
	s := New(collector.NewRegistry(1, nil), config.DefaultConfig(), nil)
	called := false
	s.OnBatchReady(func([]models.MetricSnapshot) { called = true })

	s.flushBatch()

	assert.False(t, called)
}

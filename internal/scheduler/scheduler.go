// Package scheduler implements a tick-based periodic collection scheduler.
// It refreshes every registered monitor at a configurable interval and batches
// the assembled snapshots. The scheduler does not send data itself; it invokes
// a callback when a batch is ready.
package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Guliveer/novamon/internal/collector"
	"github.com/Guliveer/novamon/internal/config"
	"github.com/Guliveer/novamon/internal/models"
)

// collectTimeout bounds how long one collection round waits for monitors.
const collectTimeout = 10 * time.Second

// Scheduler manages periodic metric collection and batching.
type Scheduler struct {
	registry *collector.Registry
	cfg      *config.Config
	logger   *zap.Logger
	now      func() time.Time

	batch   []models.MetricSnapshot
	batchMu sync.Mutex

	onBatchReady func([]models.MetricSnapshot)
}

// New creates a new Scheduler with the given registry, config, and logger.
func New(registry *collector.Registry, cfg *config.Config, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		registry: registry,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
		batch:    make([]models.MetricSnapshot, 0),
	}
}

// OnBatchReady sets the callback invoked when a batch of metrics is ready to send.
func (s *Scheduler) OnBatchReady(fn func([]models.MetricSnapshot)) {
	s.onBatchReady = fn
}

// Start begins the collection and batching loops. It blocks until the context
// is cancelled. On shutdown, it flushes any remaining batch.
func (s *Scheduler) Start(ctx context.Context) {
	collectTicker := time.NewTicker(s.cfg.Collection.Interval.Duration)
	batchTicker := time.NewTicker(s.cfg.Collection.BatchInterval.Duration)

	defer collectTicker.Stop()
	defer batchTicker.Stop()

	s.collect(ctx)

	for {
		select {
		case <-ctx.Done():
			s.flushBatch()
			return
		case <-collectTicker.C:
			s.collect(ctx)
		case <-batchTicker.C:
			s.flushBatch()
		}
	}
}

// Collect runs one collection round and returns the assembled snapshot
// without adding it to the batch.
func (s *Scheduler) Collect(ctx context.Context) models.MetricSnapshot {
	collectCtx, cancel := context.WithTimeout(ctx, collectTimeout)
	defer cancel()

	return Assemble(s.registry.CollectAll(collectCtx), s.now())
}

func (s *Scheduler) collect(ctx context.Context) {
	snapshot := s.Collect(ctx)

	s.batchMu.Lock()
	s.batch = append(s.batch, snapshot)
	s.batchMu.Unlock()

	s.logger.Debug("Collected metrics", zap.Time("timestamp", snapshot.Timestamp))
}

// flushBatch sends the current batch via the callback and resets the buffer.
func (s *Scheduler) flushBatch() {
	s.batchMu.Lock()
	if len(s.batch) == 0 {
		s.batchMu.Unlock()
		return
	}
	batch := s.batch
	s.batch = make([]models.MetricSnapshot, 0)
	s.batchMu.Unlock()

	s.logger.Info("Flushing batch", zap.Int("count", len(batch)))

	if s.onBatchReady != nil {
		s.onBatchReady(batch)
	}
}

// Assemble maps monitor results keyed by monitor name into a MetricSnapshot.
// Results are matched by type, so unknown names and types are ignored.
func Assemble(results map[string]interface{}, ts time.Time) models.MetricSnapshot {
	snapshot := models.MetricSnapshot{Timestamp: ts.UTC()}

	for _, data := range results {
		switch v := data.(type) {
		case models.CPUSnapshot:
			snapshot.CPU = &v
		case models.MemorySnapshot:
			snapshot.Memory = &v
		case models.DisksSnapshot:
			snapshot.Disk = &v
		case models.NetworkSnapshot:
			snapshot.Network = &v
		case models.ProcessList:
			snapshot.Processes = &v
		case models.GPUSnapshot:
			snapshot.GPU = &v
		case models.SensorsSnapshot:
			snapshot.Sensors = &v
		case models.SystemSnapshot:
			snapshot.System = &v
		}
	}

	return snapshot
}

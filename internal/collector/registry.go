package collector

import (
	"context"
	"runtime"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Registry manages all registered collectors and orchestrates concurrent collection.
type Registry struct {
	collectors []Collector
	workers    int
	logger     *zap.Logger
}

// NewRegistry creates a registry running at most workers collectors at once.
// workers <= 0 uses GOMAXPROCS.
func NewRegistry(workers int, logger *zap.Logger) *Registry {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		collectors: make([]Collector, 0),
		workers:    workers,
		logger:     logger,
	}
}

// Register adds a collector if it's available on the current platform.
// Unavailable collectors are logged and skipped.
func (r *Registry) Register(c Collector) {
	if c.IsAvailable() {
		r.collectors = append(r.collectors, c)
		r.logger.Info("Registered collector", zap.String("name", c.Name()))
	} else {
		r.logger.Warn("Collector not available, skipping", zap.String("name", c.Name()))
	}
}

// Lookup returns the registered collector with the given name.
func (r *Registry) Lookup(name string) (Collector, bool) {
	for _, c := range r.collectors {
		if c.Name() == name {
			return c, true
		}
	}
	return nil, false
}

// CollectAll runs all registered collectors on a bounded set of goroutines
// and returns a map of collector name -> snapshot. Failed collectors are
// logged but do not prevent other collectors from completing.
func (r *Registry) CollectAll(ctx context.Context) map[string]interface{} {
	results := make(map[string]interface{})
	var mu sync.Mutex

	var g errgroup.Group
	g.SetLimit(r.workers)

	for _, c := range r.collectors {
		col := c
		g.Go(func() error {
			data, err := col.Collect(ctx)
			if err != nil {
				r.logger.Error("Collection failed",
					zap.String("collector", col.Name()),
					zap.Error(err))
				return nil
			}
			mu.Lock()
			results[col.Name()] = data
			mu.Unlock()
			return nil
		})
	}

	_ = g.Wait()
	return results
}

// Collectors returns a copy of all registered collectors.
func (r *Registry) Collectors() []Collector {
	result := make([]Collector, len(r.collectors))
	copy(result, r.collectors)
	return result
}

// Pool runs blocking refreshes off the caller's goroutine with a bounded
// number of workers. A refresh is not interrupted when the caller gives up;
// ctx only bounds how long the caller waits for it.
type Pool struct {
	sem *semaphore.Weighted
}

// NewPool creates a pool of at most workers concurrent calls.
func NewPool(workers int) *Pool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Pool{sem: semaphore.NewWeighted(int64(workers))}
}

type poolResult struct {
	value interface{}
	err   error
}

// Do runs fn on a pool worker and waits for its result or ctx.
func (p *Pool) Do(ctx context.Context, fn func() (interface{}, error)) (interface{}, error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}

	done := make(chan poolResult, 1)
	go func() {
		defer p.sem.Release(1)
		v, err := fn()
		done <- poolResult{value: v, err: err}
	}()

	select {
	case res := <-done:
		return res.value, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Collect refreshes c on a pool worker.
func (p *Pool) Collect(ctx context.Context, c Collector) (interface{}, error) {
	return p.Do(ctx, func() (interface{}, error) {
		// The refresh itself runs to completion even if ctx expires.
		return c.Collect(context.WithoutCancel(ctx))
	})
}

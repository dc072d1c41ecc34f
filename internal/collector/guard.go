package collector

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// stateGuard serializes access to one domain's mutable state. Refreshes take
// it exclusively; cache fast paths may take it shared.
//
// A refresh that panics while holding the guard leaves the state half
// mutated. The guard is then poisoned and the next acquisition terminates the
// process through logger.Fatal rather than serve snapshots derived from it.
type stateGuard struct {
	mu       sync.RWMutex
	poisoned bool
	domain   string
	logger   *zap.Logger
}

func newStateGuard(domain string, logger *zap.Logger) *stateGuard {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &stateGuard{domain: domain, logger: logger}
}

// run executes fn with exclusive access.
func (g *stateGuard) run(fn func()) {
	g.mu.Lock()
	if g.poisoned {
		g.mu.Unlock()
		g.fatal()
		return
	}

	defer func() {
		if r := recover(); r != nil {
			g.poisoned = true
			g.mu.Unlock()
			g.logger.Error("Refresh panicked, state poisoned",
				zap.String("domain", g.domain),
				zap.String("panic", fmt.Sprint(r)))
			panic(r)
		}
		g.mu.Unlock()
	}()

	fn()
}

// read executes fn with shared access. fn must not mutate guarded state.
func (g *stateGuard) read(fn func()) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.poisoned {
		g.fatal()
		return
	}
	fn()
}

func (g *stateGuard) fatal() {
	g.logger.Fatal("Domain state poisoned by an earlier failed refresh",
		zap.String("domain", g.domain))
}

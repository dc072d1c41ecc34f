// Package collector holds the per-domain monitors and the registry that runs
// them. Each monitor owns its derived state (rate trackers, TTL caches, lazy
// handles) behind its own guard, so refreshes of different domains proceed
// in parallel and never take each other's locks.
package collector

import "context"

// Collector is the interface that all domain monitors implement.
type Collector interface {
	// Name returns the unique domain identifier (cpu, memory, disk, ...).
	Name() string

	// Collect refreshes the domain and returns its snapshot value.
	// Probe-level failures are folded into the snapshot; an error means the
	// domain's primary source could not be read at all.
	Collect(ctx context.Context) (interface{}, error)

	// IsAvailable checks if this collector can run on the current platform.
	// Collectors that return false will not be registered.
	IsAvailable() bool
}

// Package lazy defers initialization of expensive or possibly-unavailable
// handles (a vendor management library, an enumerated hardware list) until
// first use, and runs that initialization at most once per process.
package lazy

import (
	"sync"
)

// State is the lifecycle of a Resource.
type State int

const (
	NotYetAttempted State = iota
	Ready
	Unavailable
)

func (s State) String() string {
	switch s {
	case NotYetAttempted:
		return "not_yet_attempted"
	case Ready:
		return "ready"
	case Unavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// Resource holds a handle of type T behind a lock. Once Unavailable, it
// never retries.
type Resource[T any] struct {
	mu     sync.Mutex
	state  State
	handle T
	err    error
}

// Get returns the handle, initializing it with init on the first call.
// Concurrent first callers block until init finishes and all observe the same
// outcome. The bool is false when the resource is Unavailable.
func (r *Resource[T]) Get(init func() (T, error)) (T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == NotYetAttempted {
		h, err := init()
		if err != nil {
			r.state = Unavailable
			r.err = err
		} else {
			r.state = Ready
			r.handle = h
		}
	}

	if r.state != Ready {
		var zero T
		return zero, false
	}
	return r.handle, true
}

// State reports the current lifecycle state without initializing.
func (r *Resource[T]) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Err returns the initialization error when Unavailable.
func (r *Resource[T]) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Close releases a Ready handle with release and marks the resource
// Unavailable, so later Get calls do not re-initialize it.
func (r *Resource[T]) Close(release func(T) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != Ready {
		r.state = Unavailable
		return nil
	}

	h := r.handle
	var zero T
	r.handle = zero
	r.state = Unavailable
	if release == nil {
		return nil
	}
	return release(h)
}

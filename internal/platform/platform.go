// Package platform is the only place that touches raw OS process
// primitives: signal delivery and scheduling priority. Everything above it
// works with the wrapped errors returned here and never calls into the
// kernel directly.
//
// Returned errors wrap a syscall.Errno so callers can classify them with
// errors.Is (syscall.EPERM, syscall.ESRCH, ...).
package platform

import (
	"errors"
	"fmt"
)

// ErrUnsupported is returned on operating systems without the primitive.
var ErrUnsupported = errors.New("operation not supported on this platform")

// Platform provides process signal and priority primitives.
type Platform interface {
	// Name returns the platform name (linux, darwin, windows, ...).
	Name() string

	// Signal delivers SIGTERM, or SIGKILL when force is set, to pid.
	Signal(pid int32, force bool) error

	// SetPriority sets the niceness of pid. The value is not range-checked
	// here; callers validate before crossing this boundary.
	SetPriority(pid int32, nice int) error

	// Priority returns the niceness of pid in [-20, 19].
	Priority(pid int32) (int, error)
}

// opError records which primitive failed for which pid.
type opError struct {
	op  string
	pid int32
	err error
}

func (e *opError) Error() string {
	return fmt.Sprintf("%s pid %d: %v", e.op, e.pid, e.err)
}

func (e *opError) Unwrap() error { return e.err }

func wrap(op string, pid int32, err error) error {
	if err == nil {
		return nil
	}
	return &opError{op: op, pid: pid, err: err}
}

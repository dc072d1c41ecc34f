//go:build !unix

package platform

import "runtime"

// StubPlatform reports every primitive as unsupported.
type StubPlatform struct{}

// New creates the stub platform.
func New() Platform {
	return &StubPlatform{}
}

// Name returns the platform identifier.
func (p *StubPlatform) Name() string { return runtime.GOOS }

// Signal is unsupported.
func (p *StubPlatform) Signal(pid int32, force bool) error {
	return wrap("kill", pid, ErrUnsupported)
}

// SetPriority is unsupported.
func (p *StubPlatform) SetPriority(pid int32, nice int) error {
	return wrap("setpriority", pid, ErrUnsupported)
}

// Priority is unsupported.
func (p *StubPlatform) Priority(pid int32) (int, error) {
	return 0, wrap("getpriority", pid, ErrUnsupported)
}

//go:build unix

package platform

import (
	"runtime"

	"golang.org/x/sys/unix"
)

// UnixPlatform implements Platform with golang.org/x/sys/unix.
type UnixPlatform struct{}

// New creates the platform for the running OS.
func New() Platform {
	return &UnixPlatform{}
}

// Name returns the platform identifier.
func (p *UnixPlatform) Name() string { return runtime.GOOS }

// Signal sends SIGTERM or SIGKILL to pid.
func (p *UnixPlatform) Signal(pid int32, force bool) error {
	sig := unix.SIGTERM
	if force {
		sig = unix.SIGKILL
	}
	return wrap("kill", pid, unix.Kill(int(pid), sig))
}

// SetPriority calls setpriority(PRIO_PROCESS, pid, nice).
func (p *UnixPlatform) SetPriority(pid int32, nice int) error {
	return wrap("setpriority", pid, unix.Setpriority(unix.PRIO_PROCESS, int(pid), nice))
}

// Priority calls getpriority(PRIO_PROCESS, pid).
func (p *UnixPlatform) Priority(pid int32) (int, error) {
	prio, err := unix.Getpriority(unix.PRIO_PROCESS, int(pid))
	if err != nil {
		return 0, wrap("getpriority", pid, err)
	}
	return niceFromPriority(prio), nil
}

package collector

import (
	"errors"
	"fmt"
	"syscall"

	"github.com/Guliveer/novamon/internal/platform"
)

// ErrorCode identifies the kind of a monitor failure. Codes are errors
// themselves so callers can match with errors.Is(err, ErrProcessNotFound).
type ErrorCode string

const (
	// ErrSystemAccess is an unexpected OS or library failure.
	ErrSystemAccess ErrorCode = "system_access"
	// ErrGpuNotAvailable means the requested vendor or device is absent.
	ErrGpuNotAvailable ErrorCode = "gpu_not_available"
	// ErrPermissionDenied means the OS rejected a signal or priority change,
	// or the requested value was out of range.
	ErrPermissionDenied ErrorCode = "permission_denied"
	// ErrProcessNotFound means the pid vanished before the action.
	ErrProcessNotFound ErrorCode = "process_not_found"
)

var errorMessages = map[ErrorCode]string{
	ErrSystemAccess:     "system access error",
	ErrGpuNotAvailable:  "GPU not available",
	ErrPermissionDenied: "permission denied",
	ErrProcessNotFound:  "process not found",
}

func (c ErrorCode) Error() string {
	if msg, ok := errorMessages[c]; ok {
		return msg
	}
	return string(c)
}

// MonitorError is returned by management operations. PID and Errno are set
// when they apply.
type MonitorError struct {
	Code   ErrorCode
	PID    int32
	Errno  syscall.Errno
	Detail string
	Err    error
}

func (e *MonitorError) Error() string {
	msg := e.Code.Error()
	if e.PID != 0 {
		msg = fmt.Sprintf("%s: pid %d", msg, e.PID)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Errno != 0 {
		msg = fmt.Sprintf("%s (errno %d)", msg, int(e.Errno))
	}
	return msg
}

// Is matches the error's code, so errors.Is(err, ErrPermissionDenied) works.
func (e *MonitorError) Is(target error) bool {
	code, ok := target.(ErrorCode)
	return ok && code == e.Code
}

func (e *MonitorError) Unwrap() error { return e.Err }

// CodeOf returns the code carried by err, or ErrSystemAccess for foreign
// errors.
func CodeOf(err error) ErrorCode {
	var me *MonitorError
	if errors.As(err, &me) {
		return me.Code
	}
	var code ErrorCode
	if errors.As(err, &code) {
		return code
	}
	return ErrSystemAccess
}

func newError(code ErrorCode, pid int32, detail string) *MonitorError {
	return &MonitorError{Code: code, PID: pid, Detail: detail}
}

// classifyOSError maps an error from the platform boundary onto the
// taxonomy: ESRCH is a vanished process, EPERM/EACCES a refusal, anything
// else a system access failure carrying the errno.
func classifyOSError(pid int32, err error, detail string) *MonitorError {
	me := &MonitorError{Code: ErrSystemAccess, PID: pid, Detail: detail, Err: err}

	var errno syscall.Errno
	hasErrno := errors.As(err, &errno)

	switch {
	case errors.Is(err, syscall.ESRCH):
		me.Code = ErrProcessNotFound
	case errors.Is(err, syscall.EPERM), errors.Is(err, syscall.EACCES):
		me.Code = ErrPermissionDenied
	case errors.Is(err, platform.ErrUnsupported):
		me.Detail = detail + ": " + platform.ErrUnsupported.Error()
	case hasErrno:
		me.Errno = errno
	default:
		me.Detail = fmt.Sprintf("%s: %v", detail, err)
	}
	return me
}

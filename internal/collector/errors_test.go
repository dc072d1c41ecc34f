package collector

import (
	"errors"
	"fmt"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMonitorError_Message(t *testing.T) {
	tests := []struct {
		err  *MonitorError
		want string
	}{
		{newError(ErrProcessNotFound, 999999, ""), "process not found: pid 999999"},
		{newError(ErrPermissionDenied, 0, "nice value must be between -20 and 19"),
			"permission denied: nice value must be between -20 and 19"},
		{&MonitorError{Code: ErrSystemAccess, PID: 3, Detail: "set priority", Errno: syscall.EINVAL},
			fmt.Sprintf("system access error: pid 3: set priority (errno %d)", int(syscall.EINVAL))},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.err.Error())
	}
}

func TestMonitorError_Is(t *testing.T) {
	wrapped := fmt.Errorf("renice: %w", newError(ErrProcessNotFound, 5, ""))

	assert.ErrorIs(t, wrapped, ErrProcessNotFound)
	assert.False(t, errors.Is(wrapped, ErrPermissionDenied))
	assert.Equal(t, ErrProcessNotFound, CodeOf(wrapped))
	assert.Equal(t, ErrSystemAccess, CodeOf(errors.New("foreign")))
}

func TestClassifyOSError_KeepsCause(t *testing.T) {
	me := classifyOSError(9, osErr{syscall.EPERM}, "kill")

	assert.Equal(t, ErrPermissionDenied, me.Code)
	assert.ErrorIs(t, me, syscall.EPERM)
}

package gpu

import (
	"errors"

	"github.com/NVIDIA/go-nvml/pkg/nvml"
)

// ErrNoDevices is recorded when a vendor interface is reachable but reports
// zero devices.
var ErrNoDevices = errors.New("no devices found")

var errLibraryClosed = errors.New("library closed")

// nvmlError represents an NVML-specific error
type nvmlError struct {
	op  string
	ret nvml.Return
}

func (e *nvmlError) Error() string {
	return e.op + ": " + nvml.ErrorString(e.ret)
}

// newNVMLError creates an error from an NVML return code
func newNVMLError(op string, ret nvml.Return) error {
	if ret == nvml.SUCCESS {
		return nil
	}
	return &nvmlError{op: op, ret: ret}
}

func isNVMLSuccess(ret nvml.Return) bool {
	return ret == nvml.SUCCESS
}

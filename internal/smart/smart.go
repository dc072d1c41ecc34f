// Package smart reads drive health through the smartctl diagnostic utility
// and parses its free-text report. A query that cannot run (utility missing,
// no privilege, device not opened) is reported as absent, never as an error.
package smart

import (
	"context"
	"errors"
	"os/exec"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/Guliveer/novamon/internal/models"
)

// Runner executes an external command and returns its standard output. On a
// non-zero exit the output captured so far is returned alongside the error.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

// ExecRunner runs the command with os/exec.
func ExecRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// smartctl exit status bits that mean no report was produced: the command
// line did not parse (bit 0) or the device could not be opened (bit 1).
// The higher bits flag findings inside a complete report, e.g. bit 3 is set
// whenever the health verdict is FAILED.
const noReportBits = 0x03

// exitCoder is satisfied by *exec.ExitError.
type exitCoder interface {
	ExitCode() int
}

// usableReport reports whether out is a complete smartctl report despite err.
func usableReport(out []byte, err error) bool {
	if err == nil {
		return true
	}
	var ec exitCoder
	if !errors.As(err, &ec) || len(out) == 0 {
		return false
	}
	code := ec.ExitCode()
	return code > 0 && code&noReportBits == 0
}

// Reader runs smartctl against whole-disk devices.
type Reader struct {
	path   string
	run    Runner
	logger *zap.Logger
}

// NewReader creates a reader invoking the smartctl binary at path (looked up
// in PATH when empty). A nil runner uses ExecRunner.
func NewReader(path string, run Runner, logger *zap.Logger) *Reader {
	if path == "" {
		path = "smartctl"
	}
	if run == nil {
		run = ExecRunner
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reader{path: path, run: run, logger: logger}
}

// Read returns SMART data for the drive backing device (a partition or whole
// disk path under /dev). ok is false when the device is not a /dev path or
// smartctl could not produce a report.
func (p *Reader) Read(ctx context.Context, device string) (models.SmartInfo, bool) {
	base, ok := BaseDevice(device)
	if !ok {
		return models.SmartInfo{}, false
	}

	out, err := p.run(ctx, p.path, "-H", "-A", base)
	if !usableReport(out, err) {
		p.logger.Debug("smartctl query failed",
			zap.String("device", base),
			zap.Error(err))
		return models.SmartInfo{}, false
	}
	if err != nil {
		p.logger.Debug("smartctl reported drive problems",
			zap.String("device", base),
			zap.Error(err))
	}

	return Parse(string(out)), true
}

var (
	nvmeLike  = regexp.MustCompile(`^((?:nvme\d+n\d+)|(?:mmcblk\d+))(?:p\d+)?$`)
	scsiLike  = regexp.MustCompile(`^((?:s|h|v|xv)d[a-z]+)\d*$`)
	devPrefix = "/dev/"
)

// BaseDevice maps a partition path to its whole-disk path:
// /dev/sda1 -> /dev/sda, /dev/nvme0n1p2 -> /dev/nvme0n1. Names that match no
// known partition scheme are returned unchanged. Non-/dev names are rejected.
func BaseDevice(device string) (string, bool) {
	if !strings.HasPrefix(device, devPrefix) {
		return "", false
	}
	name := strings.TrimPrefix(device, devPrefix)
	if name == "" {
		return "", false
	}
	if m := nvmeLike.FindStringSubmatch(name); m != nil {
		return devPrefix + m[1], true
	}
	if m := scsiLike.FindStringSubmatch(name); m != nil {
		return devPrefix + m[1], true
	}
	return device, true
}

// Parse extracts the health verdict and raw attribute values from a
// "smartctl -H -A" report. Attribute values come from the RAW_VALUE column.
func Parse(report string) models.SmartInfo {
	info := models.SmartInfo{Health: models.SmartUnknown}

	switch {
	case strings.Contains(report, "PASSED"):
		info.Health = models.SmartPassed
	case strings.Contains(report, "FAILED"):
		info.Health = models.SmartFailed
	}

	lines := strings.Split(report, "\n")

	if raw, ok := rawValue(lines, "Temperature_Celsius", "Airflow_Temperature"); ok {
		if v, err := strconv.ParseUint(raw, 10, 32); err == nil {
			t := uint32(v)
			info.Temperature = &t
		}
	}
	if raw, ok := rawValue(lines, "Power_On_Hours"); ok {
		if v, err := strconv.ParseUint(raw, 10, 64); err == nil {
			info.PowerOnHours = &v
		}
	}
	if raw, ok := rawValue(lines, "Power_Cycle_Count"); ok {
		if v, err := strconv.ParseUint(raw, 10, 64); err == nil {
			info.PowerCycleCount = &v
		}
	}

	return info
}

// rawValue returns the 10th whitespace-separated field of the first line
// containing any of the attribute names.
func rawValue(lines []string, names ...string) (string, bool) {
	for _, line := range lines {
		for _, name := range names {
			if !strings.Contains(line, name) {
				continue
			}
			fields := strings.Fields(line)
			if len(fields) < 10 {
				return "", false
			}
			return fields[9], true
		}
	}
	return "", false
}

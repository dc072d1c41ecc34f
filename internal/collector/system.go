// System monitor: host identity, OS name and version, kernel, architecture,
// uptime and boot time.
//
// The OS name and version are resolved once per process from
// platform-specific sources:
//   - Linux: /etc/os-release
//   - macOS: sw_vers
//   - Windows: Win32_OperatingSystem via PowerShell
//
// falling back to what gopsutil reports.
package collector

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"

	"github.com/shirou/gopsutil/v3/host"
	"go.uber.org/zap"

	"github.com/Guliveer/novamon/internal/lazy"
	"github.com/Guliveer/novamon/internal/models"
	"github.com/Guliveer/novamon/internal/sysfs"
)

const unknownValue = "Unknown"

type osRelease struct {
	name    string
	version string
}

type systemSource struct {
	info      func(ctx context.Context) (*host.InfoStat, error)
	osRelease func(ctx context.Context) osRelease
}

var gopsutilSystem = systemSource{
	info:      host.InfoWithContext,
	osRelease: collectOSRelease,
}

// SystemMonitor collects host information.
type SystemMonitor struct {
	guard  *stateGuard
	src    systemSource
	os     lazy.Resource[osRelease]
	logger *zap.Logger
}

// NewSystemMonitor creates a new system monitor.
func NewSystemMonitor(logger *zap.Logger) *SystemMonitor {
	return newSystemMonitor(gopsutilSystem, logger)
}

func newSystemMonitor(src systemSource, logger *zap.Logger) *SystemMonitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SystemMonitor{guard: newStateGuard("system", logger), src: src, logger: logger}
}

// Name returns the collector identifier.
func (m *SystemMonitor) Name() string { return "system" }

// IsAvailable returns true; host info is available on all platforms.
func (m *SystemMonitor) IsAvailable() bool { return true }

// Collect implements Collector.
func (m *SystemMonitor) Collect(ctx context.Context) (interface{}, error) {
	return m.Refresh(ctx)
}

// Refresh reads host information. Fields that cannot be determined read
// "Unknown".
func (m *SystemMonitor) Refresh(ctx context.Context) (models.SystemSnapshot, error) {
	var (
		snap models.SystemSnapshot
		err  error
	)
	m.guard.run(func() {
		var info *host.InfoStat
		info, err = m.src.info(ctx)
		if err != nil {
			err = fmt.Errorf("read host info: %w", err)
			return
		}

		rel, _ := m.os.Get(func() (osRelease, error) {
			return m.src.osRelease(context.WithoutCancel(ctx)), nil
		})

		snap = models.SystemSnapshot{
			Hostname:      orUnknown(info.Hostname),
			OSName:        orUnknown(firstNonEmpty(rel.name, info.Platform)),
			OSVersion:     orUnknown(firstNonEmpty(rel.version, info.PlatformVersion)),
			KernelVersion: orUnknown(info.KernelVersion),
			Architecture:  orUnknown(firstNonEmpty(info.KernelArch, runtime.GOARCH)),
			Uptime:        info.Uptime,
			BootTime:      info.BootTime,
		}
	})
	return snap, err
}

func orUnknown(s string) string {
	if s == "" {
		return unknownValue
	}
	return s
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// collectOSRelease dispatches to platform-specific collection logic.
// Empty fields mean the source was not available.
func collectOSRelease(ctx context.Context) osRelease {
	switch runtime.GOOS {
	case "linux":
		return linuxOSRelease("/etc/os-release")
	case "darwin":
		return darwinOSRelease(ctx)
	case "windows":
		return windowsOSRelease(ctx)
	default:
		return osRelease{}
	}
}

// linuxOSRelease reads NAME and VERSION_ID from an os-release file.
func linuxOSRelease(path string) osRelease {
	data, err := os.ReadFile(path)
	if err != nil {
		return osRelease{}
	}
	fields := sysfs.ParseKeyValues(string(data))
	return osRelease{
		name:    strings.Trim(fields["NAME"], "\""),
		version: strings.Trim(fields["VERSION_ID"], "\""),
	}
}

// darwinOSRelease uses sw_vers to determine macOS name and version.
func darwinOSRelease(ctx context.Context) osRelease {
	var rel osRelease
	if out, err := exec.CommandContext(ctx, "sw_vers", "-productName").Output(); err == nil {
		rel.name = strings.TrimSpace(string(out))
	}
	if out, err := exec.CommandContext(ctx, "sw_vers", "-productVersion").Output(); err == nil {
		rel.version = strings.TrimSpace(string(out))
	}
	return rel
}

// windowsOSRelease uses PowerShell to read the OS caption and version.
func windowsOSRelease(ctx context.Context) osRelease {
	query := func(field string) string {
		out, err := exec.CommandContext(ctx, "powershell", "-NoProfile", "-Command",
			"(Get-CimInstance Win32_OperatingSystem)."+field).Output()
		if err != nil {
			return ""
		}
		return strings.TrimSpace(string(out))
	}
	return osRelease{name: query("Caption"), version: query("Version")}
}

// Disk monitor: per-partition usage, cumulative I/O bytes, removable flag
// and SMART health. Uses gopsutil for partitions, usage and I/O counters.
package collector

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/disk"
	"go.uber.org/zap"

	"github.com/Guliveer/novamon/internal/models"
	"github.com/Guliveer/novamon/internal/smart"
	"github.com/Guliveer/novamon/internal/sysfs"
	"github.com/Guliveer/novamon/internal/ttlcache"
)

// pseudoFSTypes contains filesystem types that should be excluded from disk metrics.
// These are virtual/system filesystems and network/remote filesystems that don't
// represent local storage devices.
var pseudoFSTypes = map[string]bool{
	// Virtual / system filesystems
	"devfs":         true,
	"autofs":        true,
	"nullfs":        true,
	"tmpfs":         true,
	"sysfs":         true,
	"proc":          true,
	"procfs":        true,
	"devtmpfs":      true,
	"cgroup":        true,
	"cgroup2":       true,
	"overlay":       true,
	"squashfs":      true,
	"fuse.snapfuse": true,
	"nsfs":          true,
	"pstore":        true,
	"debugfs":       true,
	"tracefs":       true,
	"securityfs":    true,
	"configfs":      true,
	"fusectl":       true,
	"mqueue":        true,
	"hugetlbfs":     true,
	"binfmt_misc":   true,
	"efivarfs":      true,
	"bpf":           true,
	"ramfs":         true,

	// Network / remote filesystems
	"nfs":            true,
	"nfs4":           true,
	"cifs":           true,
	"smbfs":          true,
	"fuse.sshfs":     true,
	"fuse.rclone":    true,
	"9p":             true,
	"afs":            true,
	"ncpfs":          true,
	"glusterfs":      true,
	"lustre":         true,
	"ceph":           true,
	"fuse.ceph":      true,
	"gpfs":           true,
	"pvfs2":          true,
	"fuse.s3fs":      true,
	"fuse.gcsfuse":   true,
	"fuse.blobfuse":  true,
	"davfs2":         true,
}

// isSystemMount returns true for mount points that are macOS system volumes
// or other OS-internal paths that shouldn't be shown to users.
func isSystemMount(mount string) bool {
	systemPrefixes := []string{
		"/System/Volumes/",
		"/private/var/vm",
	}
	for _, prefix := range systemPrefixes {
		if strings.HasPrefix(mount, prefix) {
			return true
		}
	}
	return false
}

type diskSource struct {
	partitions func(ctx context.Context, all bool) ([]disk.PartitionStat, error)
	usage      func(ctx context.Context, path string) (*disk.UsageStat, error)
	ioCounters func(ctx context.Context, names ...string) (map[string]disk.IOCountersStat, error)
}

var gopsutilDisk = diskSource{
	partitions: disk.PartitionsWithContext,
	usage:      disk.UsageWithContext,
	ioCounters: disk.IOCountersWithContext,
}

// DiskOptions configures a DiskMonitor.
type DiskOptions struct {
	// SmartEnabled turns on SMART queries through smartctl.
	SmartEnabled bool
	// SmartTTL is how long one drive's SMART outcome is reused.
	SmartTTL time.Duration
	// Reader runs smartctl; nil uses smart.NewReader with defaults.
	Reader *smart.Reader
	// SysRoot overrides "/sys" for the removable attribute.
	SysRoot string
}

// DiskMonitor collects disk metrics per mount point.
type DiskMonitor struct {
	guard  *stateGuard
	src    diskSource
	opts   DiskOptions
	smart  *ttlcache.Cache[models.SmartInfo]
	tree   sysfs.Tree
	logger *zap.Logger
}

// NewDiskMonitor creates a new disk monitor.
func NewDiskMonitor(opts DiskOptions, logger *zap.Logger) *DiskMonitor {
	return newDiskMonitor(gopsutilDisk, opts, logger, time.Now)
}

func newDiskMonitor(src diskSource, opts DiskOptions, logger *zap.Logger, now func() time.Time) *DiskMonitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.SmartTTL <= 0 {
		opts.SmartTTL = 60 * time.Second
	}
	if opts.Reader == nil {
		opts.Reader = smart.NewReader("", nil, logger)
	}
	return &DiskMonitor{
		guard:  newStateGuard("disk", logger),
		src:    src,
		opts:   opts,
		smart:  ttlcache.New[models.SmartInfo](ttlcache.WithClock[models.SmartInfo](now)),
		tree:   sysfs.New(opts.SysRoot),
		logger: logger,
	}
}

// Name returns the collector identifier.
func (m *DiskMonitor) Name() string { return "disk" }

// IsAvailable returns true; disk metrics are available on all platforms.
func (m *DiskMonitor) IsAvailable() bool { return true }

// Collect implements Collector.
func (m *DiskMonitor) Collect(ctx context.Context) (interface{}, error) {
	return m.Refresh(ctx)
}

// Refresh gathers usage for all local partitions. Inaccessible partitions
// are skipped. I/O counters are read once for the whole system and matched
// by kernel device name.
func (m *DiskMonitor) Refresh(ctx context.Context) (models.DisksSnapshot, error) {
	var (
		snap models.DisksSnapshot
		err  error
	)
	m.guard.run(func() {
		snap, err = m.refresh(ctx)
	})
	return snap, err
}

func (m *DiskMonitor) refresh(ctx context.Context) (models.DisksSnapshot, error) {
	partitions, err := m.src.partitions(ctx, false)
	if err != nil {
		return models.DisksSnapshot{}, fmt.Errorf("list partitions: %w", err)
	}

	io, err := m.src.ioCounters(ctx)
	if err != nil {
		m.logger.Debug("Disk I/O counters not available", zap.Error(err))
	}

	snap := models.DisksSnapshot{Disks: make([]models.DiskInfo, 0, len(partitions))}
	drives := make(map[string]bool)
	for _, p := range partitions {
		// Skip pseudo/network filesystems
		if pseudoFSTypes[p.Fstype] {
			m.logger.Debug("Skipping pseudo/network filesystem",
				zap.String("mount", p.Mountpoint),
				zap.String("fstype", p.Fstype))
			continue
		}
		// Skip macOS system mount points
		if isSystemMount(p.Mountpoint) {
			continue
		}

		usage, err := m.src.usage(ctx, p.Mountpoint)
		if err != nil {
			continue // Skip inaccessible partitions
		}
		// Skip partitions with 0 total bytes (some virtual mounts report 0 size)
		if usage.Total == 0 {
			continue
		}

		info := models.DiskInfo{
			Name:           p.Device,
			MountPoint:     p.Mountpoint,
			FileSystem:     p.Fstype,
			TotalSpace:     usage.Total,
			AvailableSpace: usage.Free,
			UsedSpace:      usage.Used,
			UsagePercent:   percent(usage.Used, usage.Total),
			IsRemovable:    m.removable(p.Device),
		}
		if c, ok := io[kernelName(p.Device)]; ok {
			info.ReadBytes = c.ReadBytes
			info.WrittenBytes = c.WriteBytes
		}
		if m.opts.SmartEnabled {
			if base, ok := smart.BaseDevice(p.Device); ok {
				drives[base] = true
			}
			info.Smart = m.smartInfo(ctx, p.Device)
		}

		snap.TotalSpace += info.TotalSpace
		snap.TotalUsed += info.UsedSpace
		snap.TotalAvailable += info.AvailableSpace
		snap.Disks = append(snap.Disks, info)
	}

	// Forget drives that were unplugged so a replacement is queried afresh.
	m.smart.Retain(func(base string) bool { return drives[base] })

	return snap, nil
}

// smartInfo returns the cached SMART outcome for the drive backing device.
// Partitions of one drive share a cache entry.
func (m *DiskMonitor) smartInfo(ctx context.Context, device string) *models.SmartInfo {
	base, ok := smart.BaseDevice(device)
	if !ok {
		return nil
	}
	info, present := m.smart.GetOrCompute(base, m.opts.SmartTTL, func() (models.SmartInfo, bool) {
		return m.opts.Reader.Read(ctx, base)
	})
	if !present {
		return nil
	}
	return info.Clone()
}

// removable reads /sys/block/<drive>/removable for the drive backing device.
func (m *DiskMonitor) removable(device string) bool {
	base, ok := smart.BaseDevice(device)
	if !ok {
		return false
	}
	v, ok := m.tree.Uint("block", kernelName(base), "removable")
	return ok && v == 1
}

// kernelName strips the /dev/ prefix: /dev/sda1 -> sda1, the key used by
// the kernel's I/O statistics table.
func kernelName(device string) string {
	return strings.TrimPrefix(device, "/dev/")
}

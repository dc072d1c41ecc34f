// Process monitor: lists processes, derives per-process CPU usage from
// cumulative CPU time, groups them by executable name and performs the two
// management operations (terminate, set priority).
// Uses gopsutil for cross-platform process listing.
package collector

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
	"go.uber.org/zap"

	"github.com/Guliveer/novamon/internal/models"
	"github.com/Guliveer/novamon/internal/platform"
	"github.com/Guliveer/novamon/internal/rate"
)

// Niceness bounds accepted by SetPriority.
const (
	MinNice = -20
	MaxNice = 19
)

// normalizedStatuses maps raw gopsutil status strings to the status set
// reported in snapshots.
var normalizedStatuses = map[string]models.ProcStatus{
	process.Running: models.StatusRunning,
	process.Sleep:   models.StatusSleeping,
	process.Idle:    models.StatusSleeping,
	process.Wait:    models.StatusSleeping,
	process.Lock:    models.StatusSleeping,
	process.Stop:    models.StatusStopped,
	process.Zombie:  models.StatusZombie,
	"disk-sleep":    models.StatusSleeping,
	"tracing-stop":  models.StatusStopped,
	"dead":          models.StatusDead,
}

func normalizeStatus(raw string) models.ProcStatus {
	if s, ok := normalizedStatuses[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return s
	}
	return models.StatusUnknown
}

// rawProcess is one listed process before derived fields are filled in.
type rawProcess struct {
	info     models.ProcessInfo
	cpuMS    uint64
	createMS int64
}

type processSource struct {
	list        func(ctx context.Context) ([]rawProcess, error)
	exists      func(ctx context.Context, pid int32) (bool, error)
	totalMemory func(ctx context.Context) (uint64, error)
}

var gopsutilProcess = processSource{
	list:   listProcesses,
	exists: process.PidExistsWithContext,
	totalMemory: func(ctx context.Context) (uint64, error) {
		v, err := mem.VirtualMemoryWithContext(ctx)
		if err != nil {
			return 0, err
		}
		return v.Total, nil
	},
}

// listProcesses reads every process through gopsutil. Processes that exit
// mid-listing are skipped; individual unreadable fields stay at zero.
func listProcesses(ctx context.Context) ([]rawProcess, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]rawProcess, 0, len(procs))
	for _, p := range procs {
		name, err := p.NameWithContext(ctx)
		if err != nil {
			continue
		}
		raw := rawProcess{info: models.ProcessInfo{
			PID:    p.Pid,
			Name:   name,
			Status: models.StatusUnknown,
		}}

		if ppid, err := p.PpidWithContext(ctx); err == nil {
			raw.info.ParentPID = &ppid
		}
		raw.info.ExePath, _ = p.ExeWithContext(ctx)
		raw.info.Command, _ = p.CmdlineSliceWithContext(ctx)
		if status, err := p.StatusWithContext(ctx); err == nil && len(status) > 0 {
			raw.info.Status = normalizeStatus(status[0])
		}
		if mi, err := p.MemoryInfoWithContext(ctx); err == nil {
			raw.info.MemoryBytes = mi.RSS
		}
		if created, err := p.CreateTimeWithContext(ctx); err == nil {
			raw.createMS = created
			raw.info.StartTime = uint64(created / 1000)
		}
		if t, err := p.TimesWithContext(ctx); err == nil {
			raw.cpuMS = uint64((t.User + t.System) * 1000)
		}
		if uids, err := p.UidsWithContext(ctx); err == nil && len(uids) > 0 {
			uid := strconv.Itoa(int(uids[0]))
			raw.info.UserID = &uid
		}

		out = append(out, raw)
	}
	return out, nil
}

// procKey identifies a process instance; the creation time tells a reused
// pid apart from the process that held it before.
type procKey struct {
	pid     int32
	created int64
}

// ProcessOptions configures a ProcessMonitor.
type ProcessOptions struct {
	// TopN keeps only the N busiest groups; 0 keeps all.
	TopN int
}

// ProcessMonitor lists processes and manages them.
type ProcessMonitor struct {
	guard    *stateGuard
	src      processSource
	platform platform.Platform
	cpu      *rate.Tracker[procKey]
	opts     ProcessOptions
	now      func() time.Time
	logger   *zap.Logger
}

// NewProcessMonitor creates a process monitor using p for priority and
// signal primitives.
func NewProcessMonitor(p platform.Platform, opts ProcessOptions, logger *zap.Logger) *ProcessMonitor {
	return newProcessMonitor(gopsutilProcess, p, opts, time.Now, logger)
}

func newProcessMonitor(src processSource, p platform.Platform, opts ProcessOptions, now func() time.Time, logger *zap.Logger) *ProcessMonitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProcessMonitor{
		guard:    newStateGuard("process", logger),
		src:      src,
		platform: p,
		cpu:      rate.NewTracker[procKey](),
		opts:     opts,
		now:      now,
		logger:   logger,
	}
}

// Name returns the collector identifier.
func (m *ProcessMonitor) Name() string { return "processes" }

// IsAvailable returns true; process listing is available on all platforms.
func (m *ProcessMonitor) IsAvailable() bool { return true }

// Collect implements Collector.
func (m *ProcessMonitor) Collect(ctx context.Context) (interface{}, error) {
	return m.Refresh(ctx)
}

// Refresh lists all processes and returns them grouped by name, busiest
// first. CPU usage is the share of one core used since the previous refresh;
// a process seen for the first time reports zero.
func (m *ProcessMonitor) Refresh(ctx context.Context) (models.ProcessList, error) {
	var (
		list models.ProcessList
		err  error
	)
	m.guard.run(func() {
		list, err = m.refresh(ctx)
	})
	return list, err
}

func (m *ProcessMonitor) refresh(ctx context.Context) (models.ProcessList, error) {
	raws, err := m.src.list(ctx)
	if err != nil {
		return models.ProcessList{}, fmt.Errorf("list processes: %w", err)
	}

	total, err := m.src.totalMemory(ctx)
	if err != nil {
		m.logger.Debug("Total memory not available", zap.Error(err))
	}

	now := m.now()
	seen := make(map[procKey]bool, len(raws))
	records := make([]models.ProcessInfo, 0, len(raws))
	for _, raw := range raws {
		info := raw.info
		key := procKey{pid: info.PID, created: raw.createMS}
		seen[key] = true

		// ms of CPU time per second of wall time, /10 for percent.
		info.CPUUsage = m.cpu.Observe(key, now, raw.cpuMS)[0] / 10
		info.MemoryPercent = percent(info.MemoryBytes, total)
		if start := int64(info.StartTime); start > 0 && now.Unix() > start {
			info.RunTime = uint64(now.Unix() - start)
		}
		if m.platform != nil {
			if nice, err := m.platform.Priority(info.PID); err == nil {
				info.Nice = nice
			}
		}
		records = append(records, info)
	}
	m.cpu.Retain(func(k procKey) bool { return seen[k] })

	grouped := GroupProcesses(records)
	list := models.ProcessList{Processes: grouped, TotalCount: len(grouped)}
	if m.opts.TopN > 0 && len(list.Processes) > m.opts.TopN {
		list.Processes = list.Processes[:m.opts.TopN]
	}
	return list, nil
}

// Terminate sends SIGTERM, or SIGKILL when force is set, to pid. It fails
// with ErrProcessNotFound when no such process exists and with
// ErrPermissionDenied when the signal could not be delivered.
func (m *ProcessMonitor) Terminate(ctx context.Context, pid int32, force bool) (bool, error) {
	if pid <= 0 {
		return false, newError(ErrProcessNotFound, pid, "")
	}
	exists, err := m.src.exists(ctx, pid)
	if err != nil {
		return false, classifyOSError(pid, err, "look up process")
	}
	if !exists {
		return false, newError(ErrProcessNotFound, pid, "")
	}
	if m.platform == nil {
		return false, newError(ErrSystemAccess, pid, "no platform primitives")
	}

	if err := m.platform.Signal(pid, force); err != nil {
		me := classifyOSError(pid, err, "deliver signal")
		if me.Code == ErrSystemAccess {
			me.Code = ErrPermissionDenied
			me.Detail = "permission denied or process protected"
		}
		return false, me
	}

	m.logger.Info("Signalled process",
		zap.Int32("pid", pid),
		zap.Bool("force", force))
	return true, nil
}

// SetPriority sets the niceness of pid. Values outside [-20, 19] fail with
// ErrPermissionDenied before any OS call. Lowering niceness below the
// current value usually needs elevated privilege.
func (m *ProcessMonitor) SetPriority(pid int32, nice int) error {
	if nice < MinNice || nice > MaxNice {
		return newError(ErrPermissionDenied, pid,
			fmt.Sprintf("nice value must be between %d and %d", MinNice, MaxNice))
	}
	if pid <= 0 {
		return newError(ErrProcessNotFound, pid, "")
	}
	if m.platform == nil {
		return newError(ErrSystemAccess, pid, "no platform primitives")
	}

	if err := m.platform.SetPriority(pid, nice); err != nil {
		me := classifyOSError(pid, err, "set priority")
		if me.Code == ErrPermissionDenied {
			me.Detail = "negative nice values require CAP_SYS_NICE"
		}
		return me
	}
	return nil
}

// Nice returns the current niceness of pid.
func (m *ProcessMonitor) Nice(pid int32) (int, error) {
	if pid <= 0 {
		return 0, newError(ErrProcessNotFound, pid, "")
	}
	if m.platform == nil {
		return 0, newError(ErrSystemAccess, pid, "no platform primitives")
	}
	nice, err := m.platform.Priority(pid)
	if err != nil {
		return 0, classifyOSError(pid, err, "get priority")
	}
	return nice, nil
}

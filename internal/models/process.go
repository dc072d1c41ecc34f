package models

// ProcStatus is the normalized scheduler state of a process.
type ProcStatus string

const (
	StatusRunning  ProcStatus = "running"
	StatusSleeping ProcStatus = "sleeping"
	StatusStopped  ProcStatus = "stopped"
	StatusZombie   ProcStatus = "zombie"
	StatusDead     ProcStatus = "dead"
	StatusUnknown  ProcStatus = "unknown"
)

// ProcessInfo is one row of the process table. Before grouping it describes
// a single pid and InstanceCount is nil; after grouping it describes every
// process sharing Name, with representative fields taken from the lowest pid.
type ProcessInfo struct {
	PID           int32      `json:"pid"`
	ParentPID     *int32     `json:"parent_pid"`
	Name          string     `json:"name"`
	ExePath       string     `json:"exe_path"`
	Command       []string   `json:"command"`
	Status        ProcStatus `json:"status"`
	CPUUsage      float64    `json:"cpu_usage"`
	MemoryBytes   uint64     `json:"memory_bytes"`
	MemoryPercent float64    `json:"memory_percent"`
	StartTime     uint64     `json:"start_time"`
	RunTime       uint64     `json:"run_time"`
	UserID        *string    `json:"user_id"`
	Nice          int        `json:"nice"`
	InstanceCount *uint32    `json:"instance_count"`
}

// ProcessList is the process domain snapshot.
type ProcessList struct {
	Processes  []ProcessInfo `json:"processes"`
	TotalCount int           `json:"total_count"`
}

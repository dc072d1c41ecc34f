// Package models defines the snapshot value types returned by the domain
// monitors. Snapshots are plain values owned by the caller after a refresh;
// none of them points back into monitor state. Field tags drive both the
// JSON and CBOR encodings used by the sender.
//
// Pointer fields are absent (null) when the underlying source does not
// expose the metric, as opposed to a genuine zero reading.
package models

import "time"

// MetricSnapshot is one point-in-time collection across all domains.
// Domains whose monitor is not registered are omitted.
type MetricSnapshot struct {
	Timestamp time.Time        `json:"timestamp"`
	CPU       *CPUSnapshot     `json:"cpu,omitempty"`
	Memory    *MemorySnapshot  `json:"memory,omitempty"`
	Disk      *DisksSnapshot   `json:"disk,omitempty"`
	Network   *NetworkSnapshot `json:"network,omitempty"`
	Processes *ProcessList     `json:"processes,omitempty"`
	GPU       *GPUSnapshot     `json:"gpu,omitempty"`
	Sensors   *SensorsSnapshot `json:"sensors,omitempty"`
	System    *SystemSnapshot  `json:"system,omitempty"`
}

// MetricBatch is the payload posted to the ingest endpoint.
type MetricBatch struct {
	MachineToken string           `json:"machine_token"`
	Metrics      []MetricSnapshot `json:"metrics"`
}

// CPUCore is the utilization and frequency of one logical CPU.
type CPUCore struct {
	Name         string  `json:"name"`
	Usage        float64 `json:"usage"`
	FrequencyMHz uint64  `json:"frequency"`
}

// CPUSnapshot holds processor identity and delta-based utilization.
type CPUSnapshot struct {
	Name          string    `json:"name"`
	Vendor        string    `json:"vendor"`
	Brand         string    `json:"brand"`
	PhysicalCores int       `json:"physical_cores"`
	LogicalCores  int       `json:"logical_cores"`
	GlobalUsage   float64   `json:"global_usage"`
	Cores         []CPUCore `json:"cores"`
}

// MemorySnapshot holds RAM and swap usage in bytes.
type MemorySnapshot struct {
	TotalMemory        uint64  `json:"total_memory"`
	UsedMemory         uint64  `json:"used_memory"`
	AvailableMemory    uint64  `json:"available_memory"`
	TotalSwap          uint64  `json:"total_swap"`
	UsedSwap           uint64  `json:"used_swap"`
	MemoryUsagePercent float64 `json:"memory_usage_percent"`
	SwapUsagePercent   float64 `json:"swap_usage_percent"`
}

// SystemSnapshot holds host identity and uptime.
type SystemSnapshot struct {
	Hostname      string `json:"hostname"`
	OSName        string `json:"os_name"`
	OSVersion     string `json:"os_version"`
	KernelVersion string `json:"kernel_version"`
	Architecture  string `json:"architecture"`
	Uptime        uint64 `json:"uptime"`
	BootTime      uint64 `json:"boot_time"`
}

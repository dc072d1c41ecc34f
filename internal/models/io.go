package models

// SmartHealth is the overall SMART self-assessment.
type SmartHealth string

const (
	SmartPassed  SmartHealth = "passed"
	SmartFailed  SmartHealth = "failed"
	SmartUnknown SmartHealth = "unknown"
)

// SmartInfo is the parsed SMART health and selected attributes of a drive.
type SmartInfo struct {
	Health          SmartHealth `json:"health"`
	Temperature     *uint32     `json:"temperature"`
	PowerOnHours    *uint64     `json:"power_on_hours"`
	PowerCycleCount *uint64     `json:"power_cycle_count"`
}

// Clone returns a deep copy.
func (s *SmartInfo) Clone() *SmartInfo {
	if s == nil {
		return nil
	}
	out := &SmartInfo{Health: s.Health}
	if s.Temperature != nil {
		v := *s.Temperature
		out.Temperature = &v
	}
	if s.PowerOnHours != nil {
		v := *s.PowerOnHours
		out.PowerOnHours = &v
	}
	if s.PowerCycleCount != nil {
		v := *s.PowerCycleCount
		out.PowerCycleCount = &v
	}
	return out
}

// DiskInfo represents a single mounted partition.
type DiskInfo struct {
	Name           string     `json:"name"`
	MountPoint     string     `json:"mount_point"`
	FileSystem     string     `json:"file_system"`
	TotalSpace     uint64     `json:"total_space"`
	AvailableSpace uint64     `json:"available_space"`
	UsedSpace      uint64     `json:"used_space"`
	UsagePercent   float64    `json:"usage_percent"`
	IsRemovable    bool       `json:"is_removable"`
	ReadBytes      uint64     `json:"read_bytes"`
	WrittenBytes   uint64     `json:"written_bytes"`
	Smart          *SmartInfo `json:"smart"`
}

// DisksSnapshot is the disk domain snapshot with roll-up totals.
type DisksSnapshot struct {
	Disks          []DiskInfo `json:"disks"`
	TotalSpace     uint64     `json:"total_space"`
	TotalUsed      uint64     `json:"total_used"`
	TotalAvailable uint64     `json:"total_available"`
}

// NetworkInterface holds cumulative counters and derived rates for one NIC.
type NetworkInterface struct {
	Name               string  `json:"name"`
	MACAddress         string  `json:"mac_address"`
	ReceivedBytes      uint64  `json:"received_bytes"`
	TransmittedBytes   uint64  `json:"transmitted_bytes"`
	ReceivedPackets    uint64  `json:"received_packets"`
	TransmittedPackets uint64  `json:"transmitted_packets"`
	ErrorsIn           uint64  `json:"errors_in"`
	ErrorsOut          uint64  `json:"errors_out"`
	DownloadRateBps    float64 `json:"download_rate_bps"`
	UploadRateBps      float64 `json:"upload_rate_bps"`
}

// NetworkSnapshot is the network domain snapshot with totals.
type NetworkSnapshot struct {
	Interfaces        []NetworkInterface `json:"interfaces"`
	TotalReceived     uint64             `json:"total_received"`
	TotalTransmitted  uint64             `json:"total_transmitted"`
	TotalDownloadRate float64            `json:"total_download_rate"`
	TotalUploadRate   float64            `json:"total_upload_rate"`
}

package models

// GPUVendor tags which vendor probe produced a GPUInfo.
type GPUVendor string

const (
	VendorNvidia  GPUVendor = "nvidia"
	VendorAmd     GPUVendor = "amd"
	VendorIntel   GPUVendor = "intel"
	VendorUnknown GPUVendor = "unknown"
)

// GPUInfo is one device as reported by its vendor probe. Utilization and
// clock fields read zero when unreadable; every other optional metric is nil
// when the vendor interface does not expose it.
type GPUInfo struct {
	Index              uint32    `json:"index"`
	Name               string    `json:"name"`
	Vendor             GPUVendor `json:"vendor"`
	UUID               string    `json:"uuid"`
	UtilizationGPU     uint32    `json:"utilization_gpu"`
	UtilizationMemory  uint32    `json:"utilization_memory"`
	MemoryTotal        *uint64   `json:"memory_total"`
	MemoryUsed         *uint64   `json:"memory_used"`
	MemoryFree         *uint64   `json:"memory_free"`
	Temperature        *uint32   `json:"temperature"`
	PowerUsage         *uint32   `json:"power_usage"`
	PowerLimit         *uint32   `json:"power_limit"`
	FanSpeed           *uint32   `json:"fan_speed"`
	ClockGraphics      uint32    `json:"clock_graphics"`
	ClockMemory        uint32    `json:"clock_memory"`
	EncoderUtilization *uint32   `json:"encoder_utilization"`
	DecoderUtilization *uint32   `json:"decoder_utilization"`
}

// GPUSnapshot merges every vendor probe. Errors collects per-probe
// diagnostics; a failing probe never fails the snapshot.
type GPUSnapshot struct {
	GPUs            []GPUInfo `json:"gpus"`
	NvidiaAvailable bool      `json:"nvidia_available"`
	AmdAvailable    bool      `json:"amd_available"`
	IntelAvailable  bool      `json:"intel_available"`
	DriverVersion   *string   `json:"driver_version"`
	Errors          []string  `json:"errors"`
}

// SensorType classifies a hardware sensor reading.
type SensorType string

const (
	SensorTemperature SensorType = "temperature"
	SensorFan         SensorType = "fan"
	SensorVoltage     SensorType = "voltage"
	SensorPower       SensorType = "power"
	SensorUnknown     SensorType = "unknown"
)

// SensorReading is a single hardware sensor value.
type SensorReading struct {
	Label         string     `json:"label"`
	SensorType    SensorType `json:"sensor_type"`
	Value         float64    `json:"value"`
	MaxValue      *float64   `json:"max_value"`
	CriticalValue *float64   `json:"critical_value"`
	Unit          string     `json:"unit"`
}

// SensorsSnapshot is the sensors domain snapshot.
type SensorsSnapshot struct {
	Sensors []SensorReading `json:"sensors"`
	CPUTemp *float64        `json:"cpu_temp"`
	GPUTemp *float64        `json:"gpu_temp"`
}

// Clone returns a deep copy so cached snapshots are never aliased by callers.
func (s SensorsSnapshot) Clone() SensorsSnapshot {
	out := SensorsSnapshot{
		CPUTemp: cloneFloat(s.CPUTemp),
		GPUTemp: cloneFloat(s.GPUTemp),
	}
	if s.Sensors != nil {
		out.Sensors = make([]SensorReading, len(s.Sensors))
		for i, r := range s.Sensors {
			r.MaxValue = cloneFloat(r.MaxValue)
			r.CriticalValue = cloneFloat(r.CriticalValue)
			out.Sensors[i] = r
		}
	}
	return out
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

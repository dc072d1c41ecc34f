package gpu

import (
	"fmt"

	"github.com/NVIDIA/go-nvml/pkg/nvml"
	"go.uber.org/zap"

	"github.com/Guliveer/novamon/internal/lazy"
	"github.com/Guliveer/novamon/internal/models"
)

// nvmlLibrary abstracts the NVML entry points the probe needs, for testing.
type nvmlLibrary interface {
	Init() nvml.Return
	Shutdown() nvml.Return
	SystemGetDriverVersion() (string, nvml.Return)
	DeviceGetCount() (int, nvml.Return)
	DeviceGetHandleByIndex(index int) (nvmlDevice, nvml.Return)
}

// nvmlDevice is the subset of nvml.Device read per refresh.
type nvmlDevice interface {
	GetName() (string, nvml.Return)
	GetUUID() (string, nvml.Return)
	GetUtilizationRates() (nvml.Utilization, nvml.Return)
	GetMemoryInfo() (nvml.Memory, nvml.Return)
	GetTemperature(sensor nvml.TemperatureSensors) (uint32, nvml.Return)
	GetPowerUsage() (uint32, nvml.Return)
	GetPowerManagementLimit() (uint32, nvml.Return)
	GetFanSpeed() (uint32, nvml.Return)
	GetClockInfo(clock nvml.ClockType) (uint32, nvml.Return)
	GetEncoderUtilization() (uint32, uint32, nvml.Return)
	GetDecoderUtilization() (uint32, uint32, nvml.Return)
}

// systemNVML forwards to the package-level go-nvml functions.
type systemNVML struct{}

func (systemNVML) Init() nvml.Return     { return nvml.Init() }
func (systemNVML) Shutdown() nvml.Return { return nvml.Shutdown() }

func (systemNVML) SystemGetDriverVersion() (string, nvml.Return) {
	return nvml.SystemGetDriverVersion()
}

func (systemNVML) DeviceGetCount() (int, nvml.Return) {
	return nvml.DeviceGetCount()
}

func (systemNVML) DeviceGetHandleByIndex(index int) (nvmlDevice, nvml.Return) {
	device, ret := nvml.DeviceGetHandleByIndex(index)
	if !isNVMLSuccess(ret) {
		return nil, ret
	}
	return device, ret
}

// nvidiaProbe reads NVIDIA devices through NVML. The library is loaded on
// the first refresh; a failed load is remembered and never retried.
type nvidiaProbe struct {
	lib     nvmlLibrary
	handle  lazy.Resource[nvmlLibrary]
	enabled bool
	logger  *zap.Logger
}

func newNvidiaProbe(lib nvmlLibrary, enabled bool, logger *zap.Logger) *nvidiaProbe {
	return &nvidiaProbe{lib: lib, enabled: enabled, logger: logger}
}

func (p *nvidiaProbe) open() (nvmlLibrary, error) {
	if ret := p.lib.Init(); !isNVMLSuccess(ret) {
		return nil, newNVMLError("init", ret)
	}
	p.logger.Info("NVML initialized")
	return p.lib, nil
}

// collect enumerates NVIDIA devices. The driver version is returned
// separately because it describes the whole vendor stack, not a device.
func (p *nvidiaProbe) collect(diag *diagnostics) ([]models.GPUInfo, *string) {
	if !p.enabled {
		return nil, nil
	}

	lib, ok := p.handle.Get(p.open)
	if !ok {
		err := p.handle.Err()
		if err == nil {
			err = errLibraryClosed
		}
		diag.add(models.VendorNvidia, "NVML not initialized: %v", err)
		return nil, nil
	}

	var driver *string
	if v, ret := lib.SystemGetDriverVersion(); isNVMLSuccess(ret) {
		driver = &v
	}

	count, ret := lib.DeviceGetCount()
	if !isNVMLSuccess(ret) {
		diag.add(models.VendorNvidia, "%v", newNVMLError("device count", ret))
		return nil, driver
	}

	gpus := make([]models.GPUInfo, 0, count)
	for i := 0; i < count; i++ {
		device, ret := lib.DeviceGetHandleByIndex(i)
		if !isNVMLSuccess(ret) {
			diag.add(models.VendorNvidia, "device %d: %v", i, newNVMLError("handle", ret))
			continue
		}
		gpus = append(gpus, readNvidiaDevice(uint32(i), device))
	}
	return gpus, driver
}

// readNvidiaDevice reads every field independently. Utilization and clocks
// fall back to zero; everything else is left nil when NVML refuses it.
func readNvidiaDevice(index uint32, d nvmlDevice) models.GPUInfo {
	info := models.GPUInfo{
		Index:  index,
		Name:   "Unknown NVIDIA GPU",
		Vendor: models.VendorNvidia,
		UUID:   fmt.Sprintf("nvidia-%d", index),
	}

	if name, ret := d.GetName(); isNVMLSuccess(ret) {
		info.Name = name
	}
	if uuid, ret := d.GetUUID(); isNVMLSuccess(ret) {
		info.UUID = uuid
	}
	if util, ret := d.GetUtilizationRates(); isNVMLSuccess(ret) {
		info.UtilizationGPU = util.Gpu
		info.UtilizationMemory = util.Memory
	}
	if mem, ret := d.GetMemoryInfo(); isNVMLSuccess(ret) {
		info.MemoryTotal = ptr(mem.Total)
		info.MemoryUsed = ptr(mem.Used)
		info.MemoryFree = ptr(mem.Free)
	}
	if temp, ret := d.GetTemperature(nvml.TEMPERATURE_GPU); isNVMLSuccess(ret) {
		info.Temperature = ptr(temp)
	}
	if power, ret := d.GetPowerUsage(); isNVMLSuccess(ret) {
		info.PowerUsage = ptr(power)
	}
	if limit, ret := d.GetPowerManagementLimit(); isNVMLSuccess(ret) {
		info.PowerLimit = ptr(limit)
	}
	if fan, ret := d.GetFanSpeed(); isNVMLSuccess(ret) {
		info.FanSpeed = ptr(fan)
	}
	if clock, ret := d.GetClockInfo(nvml.CLOCK_GRAPHICS); isNVMLSuccess(ret) {
		info.ClockGraphics = clock
	}
	if clock, ret := d.GetClockInfo(nvml.CLOCK_MEM); isNVMLSuccess(ret) {
		info.ClockMemory = clock
	}
	if enc, _, ret := d.GetEncoderUtilization(); isNVMLSuccess(ret) {
		info.EncoderUtilization = ptr(enc)
	}
	if dec, _, ret := d.GetDecoderUtilization(); isNVMLSuccess(ret) {
		info.DecoderUtilization = ptr(dec)
	}

	return info
}

// close shuts NVML down if it was loaded.
func (p *nvidiaProbe) close() error {
	return p.handle.Close(func(lib nvmlLibrary) error {
		return newNVMLError("shutdown", lib.Shutdown())
	})
}

func ptr[T any](v T) *T {
	return &v
}

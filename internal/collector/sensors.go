// Sensors monitor: temperatures, fan speeds, voltages and power readings.
// Temperatures come from gopsutil; fans, voltages and power from the hwmon
// attribute tree. A full rescan happens at most once per refresh interval;
// refreshes inside the interval return the cached readings.
package collector

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/host"
	"go.uber.org/zap"

	"github.com/Guliveer/novamon/internal/models"
	"github.com/Guliveer/novamon/internal/sysfs"
	"github.com/Guliveer/novamon/internal/ttlcache"
)

// Sensor name substrings used to identify CPU temperature sensors across platforms.
// Linux:  coretemp_package_id_0, k10temp_tctl, acpitz, zenpower_tdie
// macOS:  TC0P (CPU proximity), TC0D (CPU die), TCXC (CPU core)
var cpuSensorKeys = []string{
	"cpu", "core", "package",
	"tctl", "tdie", "k10temp", "coretemp",
	"tc0p", "tc0d", "tcxc",
	"zenpower",
}

// Sensor name substrings used to identify GPU temperature sensors across platforms.
// Linux:  amdgpu_edge, amdgpu_junction, nouveau_temp1
// macOS:  TG0P (GPU proximity), TG0D (GPU die)
var gpuSensorKeys = []string{
	"gpu", "nvidia", "radeon", "amdgpu", "nouveau",
	"edge", "junction",
	"tg0p", "tg0d",
}

// minValidTemp is the minimum temperature (°C) considered valid.
const minValidTemp = 0.0

// maxValidTemp is the maximum temperature (°C) considered valid.
// Readings above this are likely sensor errors.
const maxValidTemp = 150.0

const (
	unitCelsius = "°C"
	unitRPM     = "RPM"
	unitVolt    = "V"
	unitWatt    = "W"
)

const sensorsCacheKey = "sensors"

type sensorsSource struct {
	temperatures func(ctx context.Context) ([]host.TemperatureStat, error)
}

var gopsutilSensors = sensorsSource{temperatures: host.SensorsTemperaturesWithContext}

// SensorsOptions configures a SensorsMonitor.
type SensorsOptions struct {
	// MinRefreshInterval is the minimum time between full rescans.
	MinRefreshInterval time.Duration
	// SysRoot overrides "/sys" for hwmon readings.
	SysRoot string
}

// SensorsMonitor collects hardware sensor readings.
type SensorsMonitor struct {
	guard  *stateGuard
	src    sensorsSource
	cache  *ttlcache.Cache[models.SensorsSnapshot]
	ttl    time.Duration
	tree   sysfs.Tree
	logger *zap.Logger
}

// NewSensorsMonitor creates a new sensors monitor.
func NewSensorsMonitor(opts SensorsOptions, logger *zap.Logger) *SensorsMonitor {
	return newSensorsMonitor(gopsutilSensors, opts, time.Now, logger)
}

func newSensorsMonitor(src sensorsSource, opts SensorsOptions, now func() time.Time, logger *zap.Logger) *SensorsMonitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.MinRefreshInterval <= 0 {
		opts.MinRefreshInterval = 2 * time.Second
	}
	return &SensorsMonitor{
		guard:  newStateGuard("sensors", logger),
		src:    src,
		cache:  ttlcache.New[models.SensorsSnapshot](ttlcache.WithClock[models.SensorsSnapshot](now)),
		ttl:    opts.MinRefreshInterval,
		tree:   sysfs.New(opts.SysRoot),
		logger: logger,
	}
}

// Name returns the collector identifier.
func (m *SensorsMonitor) Name() string { return "sensors" }

// IsAvailable returns true; hosts without sensors report an empty list.
func (m *SensorsMonitor) IsAvailable() bool { return true }

// Collect implements Collector.
func (m *SensorsMonitor) Collect(ctx context.Context) (interface{}, error) {
	return m.Refresh(ctx), nil
}

// Refresh returns the current readings. Within the refresh interval the
// cached readings are returned under shared access; otherwise the sensor
// tree is rescanned under exclusive access.
func (m *SensorsMonitor) Refresh(ctx context.Context) models.SensorsSnapshot {
	var (
		snap models.SensorsSnapshot
		hit  bool
	)
	m.guard.read(func() {
		var e ttlcache.Entry[models.SensorsSnapshot]
		e, hit = m.cache.Fresh(sensorsCacheKey, m.ttl)
		snap = e.Value
	})
	if hit {
		return snap.Clone()
	}

	m.guard.run(func() {
		snap, _ = m.cache.GetOrCompute(sensorsCacheKey, m.ttl, func() (models.SensorsSnapshot, bool) {
			return m.scan(ctx), true
		})
	})
	return snap.Clone()
}

func (m *SensorsMonitor) scan(ctx context.Context) models.SensorsSnapshot {
	var snap models.SensorsSnapshot

	temps, err := m.src.temperatures(ctx)
	if err != nil {
		// gopsutil returns partial readings alongside warnings.
		m.logger.Debug("Temperature sensors reported errors", zap.Error(err))
	}

	var cpuMax, gpuMax float64
	cpuFound, gpuFound := false, false
	for _, t := range temps {
		if !isValidTemperature(t.Temperature) {
			continue
		}
		snap.Sensors = append(snap.Sensors, models.SensorReading{
			Label:         t.SensorKey,
			SensorType:    models.SensorTemperature,
			Value:         t.Temperature,
			MaxValue:      positive(t.High),
			CriticalValue: positive(t.Critical),
			Unit:          unitCelsius,
		})

		name := strings.ToLower(t.SensorKey)
		if matchesSensor(name, cpuSensorKeys) && (!cpuFound || t.Temperature > cpuMax) {
			cpuMax, cpuFound = t.Temperature, true
		}
		if matchesSensor(name, gpuSensorKeys) && (!gpuFound || t.Temperature > gpuMax) {
			gpuMax, gpuFound = t.Temperature, true
		}
	}
	if cpuFound {
		snap.CPUTemp = &cpuMax
	}
	if gpuFound {
		snap.GPUTemp = &gpuMax
	}

	snap.Sensors = append(snap.Sensors, m.scanHwmon()...)
	return snap
}

// hwmonChannel describes one hwmon attribute family.
type hwmonChannel struct {
	prefix     string
	input      []string
	sensorType models.SensorType
	unit       string
	scale      float64
	max        string
	crit       string
}

var hwmonChannels = []hwmonChannel{
	{prefix: "fan", input: []string{"_input"}, sensorType: models.SensorFan, unit: unitRPM, scale: 1, max: "_max"},
	{prefix: "in", input: []string{"_input"}, sensorType: models.SensorVoltage, unit: unitVolt, scale: 1e3, max: "_max", crit: "_crit"},
	{prefix: "power", input: []string{"_average", "_input"}, sensorType: models.SensorPower, unit: unitWatt, scale: 1e6, max: "_cap", crit: "_crit"},
}

// scanHwmon reads fan, voltage and power channels from class/hwmon.
func (m *SensorsMonitor) scanHwmon() []models.SensorReading {
	chips, err := m.tree.List("class", "hwmon")
	if err != nil {
		return nil
	}

	var out []models.SensorReading
	for _, chip := range chips {
		files, err := m.tree.List("class", "hwmon", chip)
		if err != nil {
			continue
		}
		chipName, ok := m.tree.String("class", "hwmon", chip, "name")
		if !ok {
			chipName = chip
		}

		for _, ch := range hwmonChannels {
			for _, base := range channelBases(files, ch) {
				r, ok := m.readChannel(chip, chipName, base, ch)
				if ok {
					out = append(out, r)
				}
			}
		}
	}
	return out
}

func (m *SensorsMonitor) readChannel(chip, chipName, base string, ch hwmonChannel) (models.SensorReading, bool) {
	dir := []string{"class", "hwmon", chip}
	at := func(suffix string) []string { return append(append([]string{}, dir...), base+suffix) }

	var raw int64
	found := false
	for _, suffix := range ch.input {
		if v, ok := m.tree.Int(at(suffix)...); ok {
			raw, found = v, true
			break
		}
	}
	if !found {
		return models.SensorReading{}, false
	}

	label := base
	if l, ok := m.tree.String(at("_label")...); ok && l != "" {
		label = l
	}

	r := models.SensorReading{
		Label:      fmt.Sprintf("%s %s", chipName, label),
		SensorType: ch.sensorType,
		Value:      float64(raw) / ch.scale,
		Unit:       ch.unit,
	}
	if ch.max != "" {
		if v, ok := m.tree.Int(at(ch.max)...); ok && v > 0 {
			r.MaxValue = positive(float64(v) / ch.scale)
		}
	}
	if ch.crit != "" {
		if v, ok := m.tree.Int(at(ch.crit)...); ok && v > 0 {
			r.CriticalValue = positive(float64(v) / ch.scale)
		}
	}
	return r, true
}

// channelBases returns the channel names (fan1, in0, ...) present in files
// for ch, in directory order.
func channelBases(files []string, ch hwmonChannel) []string {
	var bases []string
	seen := make(map[string]bool)
	for _, f := range files {
		if !strings.HasPrefix(f, ch.prefix) {
			continue
		}
		for _, suffix := range ch.input {
			if !strings.HasSuffix(f, suffix) {
				continue
			}
			base := strings.TrimSuffix(f, suffix)
			if !isChannel(base, ch.prefix) || seen[base] {
				continue
			}
			seen[base] = true
			bases = append(bases, base)
		}
	}
	return bases
}

// isChannel reports whether name is prefix followed by digits only.
func isChannel(name, prefix string) bool {
	idx := strings.TrimPrefix(name, prefix)
	if idx == "" || idx == name {
		return false
	}
	for _, c := range idx {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// matchesSensor checks if the sensor name contains any of the given key substrings.
func matchesSensor(name string, keys []string) bool {
	for _, key := range keys {
		if strings.Contains(name, key) {
			return true
		}
	}
	return false
}

// isValidTemperature returns true if the temperature is within a plausible range.
func isValidTemperature(temp float64) bool {
	return temp > minValidTemp && temp <= maxValidTemp
}

func positive(v float64) *float64 {
	if v <= 0 {
		return nil
	}
	return &v
}

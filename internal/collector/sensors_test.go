package collector

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shirou/gopsutil/v3/host"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Guliveer/novamon/internal/models"
)

func writeHwmon(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, "class/hwmon", rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestSensorsMonitor_Scan(t *testing.T) {
	root := t.TempDir()
	writeHwmon(t, root, "hwmon2/name", "nct6798\n")
	writeHwmon(t, root, "hwmon2/fan1_input", "1180\n")
	writeHwmon(t, root, "hwmon2/fan1_label", "CPU Fan\n")
	writeHwmon(t, root, "hwmon2/fan2_input", "0\n")
	writeHwmon(t, root, "hwmon2/fan2_min", "200\n")
	writeHwmon(t, root, "hwmon2/in0_input", "1216\n")
	writeHwmon(t, root, "hwmon2/in0_max", "1744\n")
	writeHwmon(t, root, "hwmon3/name", "amdgpu\n")
	writeHwmon(t, root, "hwmon3/power1_average", "35000000\n")
	writeHwmon(t, root, "hwmon3/power1_cap", "186000000\n")

	temps := []host.TemperatureStat{
		{SensorKey: "k10temp_tctl", Temperature: 54.5, High: 70, Critical: 95},
		{SensorKey: "k10temp_tccd1", Temperature: 61},
		{SensorKey: "amdgpu_edge", Temperature: 47},
		{SensorKey: "nvme_composite", Temperature: 38},
		{SensorKey: "acpitz_temp1", Temperature: 0},
	}
	src := sensorsSource{temperatures: func(context.Context) ([]host.TemperatureStat, error) {
		return temps, nil
	}}
	m := newSensorsMonitor(src, SensorsOptions{SysRoot: root}, time.Now, nil)

	snap := m.Refresh(context.Background())

	require.NotNil(t, snap.CPUTemp)
	assert.Equal(t, 61.0, *snap.CPUTemp, "hottest CPU sensor")
	require.NotNil(t, snap.GPUTemp)
	assert.Equal(t, 47.0, *snap.GPUTemp)

	byLabel := make(map[string]models.SensorReading)
	for _, s := range snap.Sensors {
		byLabel[s.Label] = s
	}
	assert.NotContains(t, byLabel, "acpitz_temp1", "out of range readings are dropped")

	tctl := byLabel["k10temp_tctl"]
	assert.Equal(t, "°C", tctl.Unit)
	assert.Equal(t, 70.0, *tctl.MaxValue)
	assert.Equal(t, 95.0, *tctl.CriticalValue)
	assert.Nil(t, byLabel["nvme_composite"].MaxValue)

	fan := byLabel["nct6798 CPU Fan"]
	assert.Equal(t, models.SensorFan, fan.SensorType)
	assert.Equal(t, 1180.0, fan.Value)
	assert.Equal(t, "RPM", fan.Unit)
	assert.Contains(t, byLabel, "nct6798 fan2")

	vcore := byLabel["nct6798 in0"]
	assert.Equal(t, models.SensorVoltage, vcore.SensorType)
	assert.InDelta(t, 1.216, vcore.Value, 1e-9)
	assert.InDelta(t, 1.744, *vcore.MaxValue, 1e-9)

	power := byLabel["amdgpu power1"]
	assert.Equal(t, models.SensorPower, power.SensorType)
	assert.InDelta(t, 35.0, power.Value, 1e-9)
	assert.InDelta(t, 186.0, *power.MaxValue, 1e-9)
}

func TestSensorsMonitor_CachesWithinInterval(t *testing.T) {
	calls := 0
	src := sensorsSource{temperatures: func(context.Context) ([]host.TemperatureStat, error) {
		calls++
		return []host.TemperatureStat{{SensorKey: "coretemp_package_id_0", Temperature: 40}}, nil
	}}
	clock := time.Unix(1_700_000_000, 0)
	m := newSensorsMonitor(src, SensorsOptions{SysRoot: t.TempDir()}, func() time.Time { return clock }, nil)

	first := m.Refresh(context.Background())
	*first.CPUTemp = 1000
	first.Sensors[0].Label = "mutated"

	clock = clock.Add(time.Second)
	second := m.Refresh(context.Background())
	assert.Equal(t, 1, calls)
	assert.Equal(t, 40.0, *second.CPUTemp, "cached snapshot is not aliased")
	assert.Equal(t, "coretemp_package_id_0", second.Sensors[0].Label)

	clock = clock.Add(time.Second)
	m.Refresh(context.Background())
	assert.Equal(t, 2, calls)
}

func TestSensorsMonitor_NoSensors(t *testing.T) {
	src := sensorsSource{temperatures: func(context.Context) ([]host.TemperatureStat, error) {
		return nil, assert.AnError
	}}
	m := newSensorsMonitor(src, SensorsOptions{SysRoot: t.TempDir()}, time.Now, nil)

	snap := m.Refresh(context.Background())
	assert.Empty(t, snap.Sensors)
	assert.Nil(t, snap.CPUTemp)
	assert.Nil(t, snap.GPUTemp)
}

func TestIsChannel(t *testing.T) {
	assert.True(t, isChannel("fan1", "fan"))
	assert.True(t, isChannel("in10", "in"))
	assert.False(t, isChannel("fan", "fan"))
	assert.False(t, isChannel("intrusion0", "in"))
	assert.False(t, isChannel("power1_cap", "power"))
}

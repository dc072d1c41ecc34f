package smart

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Guliveer/novamon/internal/models"
)

const sataReport = `smartctl 7.3 2022-02-28 r5338 [x86_64-linux-6.1.0] (local build)

=== START OF READ SMART DATA SECTION ===
SMART overall-health self-assessment test result: PASSED

SMART Attributes Data Structure revision number: 16
Vendor Specific SMART Attributes with Thresholds:
ID# ATTRIBUTE_NAME          FLAG     VALUE WORST THRESH TYPE      UPDATED  WHEN_FAILED RAW_VALUE
  5 Reallocated_Sector_Ct   0x0033   100   100   010    Pre-fail  Always       -       0
  9 Power_On_Hours          0x0032   095   095   000    Old_age   Always       -       21934
 12 Power_Cycle_Count       0x0032   099   099   000    Old_age   Always       -       1187
194 Temperature_Celsius     0x0022   066   051   000    Old_age   Always       -       34
`

func TestParse_SataReport(t *testing.T) {
	info := Parse(sataReport)

	assert.Equal(t, models.SmartPassed, info.Health)
	require.NotNil(t, info.Temperature)
	assert.Equal(t, uint32(34), *info.Temperature)
	require.NotNil(t, info.PowerOnHours)
	assert.Equal(t, uint64(21934), *info.PowerOnHours)
	require.NotNil(t, info.PowerCycleCount)
	assert.Equal(t, uint64(1187), *info.PowerCycleCount)
}

func TestParse_FailedWithoutAttributes(t *testing.T) {
	info := Parse("SMART overall-health self-assessment test result: FAILED!\n")

	assert.Equal(t, models.SmartFailed, info.Health)
	assert.Nil(t, info.Temperature)
	assert.Nil(t, info.PowerOnHours)
	assert.Nil(t, info.PowerCycleCount)
}

func TestParse_AirflowTemperatureAndGarbage(t *testing.T) {
	report := "190 Airflow_Temperature_Cel 0x0022 062 045 040 Old_age Always - 38\n" +
		"  9 Power_On_Hours 0x0032 095 095 000 Old_age Always - 12h+30m\n"

	info := Parse(report)
	assert.Equal(t, models.SmartUnknown, info.Health)
	require.NotNil(t, info.Temperature)
	assert.Equal(t, uint32(38), *info.Temperature)
	assert.Nil(t, info.PowerOnHours, "non-numeric raw value is absent")
}

func TestBaseDevice(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"/dev/sda1", "/dev/sda", true},
		{"/dev/sda", "/dev/sda", true},
		{"/dev/vdb12", "/dev/vdb", true},
		{"/dev/nvme0n1p1", "/dev/nvme0n1", true},
		{"/dev/nvme0n1", "/dev/nvme0n1", true},
		{"/dev/mmcblk0p2", "/dev/mmcblk0", true},
		{"/dev/mapper/vg-root", "/dev/mapper/vg-root", true},
		{"/dev/", "", false},
		{"tmpfs", "", false},
		{"overlay", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := BaseDevice(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRead_UsesRunner(t *testing.T) {
	var gotName string
	var gotArgs []string
	run := func(_ context.Context, name string, args ...string) ([]byte, error) {
		gotName = name
		gotArgs = args
		return []byte(sataReport), nil
	}

	p := NewReader("/usr/sbin/smartctl", run, nil)
	info, ok := p.Read(context.Background(), "/dev/nvme0n1p3")

	require.True(t, ok)
	assert.Equal(t, "/usr/sbin/smartctl", gotName)
	assert.Equal(t, []string{"-H", "-A", "/dev/nvme0n1"}, gotArgs)
	assert.Equal(t, models.SmartPassed, info.Health)
}

func TestRead_FailureIsAbsent(t *testing.T) {
	calls := 0
	run := func(context.Context, string, ...string) ([]byte, error) {
		calls++
		return nil, errors.New("exec: \"smartctl\": executable file not found in $PATH")
	}
	p := NewReader("", run, nil)

	_, ok := p.Read(context.Background(), "/dev/sda1")
	assert.False(t, ok)

	_, ok = p.Read(context.Background(), "tmpfs")
	assert.False(t, ok)
	assert.Equal(t, 1, calls, "non-/dev names never invoke the utility")
}

// exitStatus stands in for *exec.ExitError.
type exitStatus int

func (e exitStatus) Error() string { return fmt.Sprintf("exit status %d", int(e)) }
func (e exitStatus) ExitCode() int { return int(e) }

const failingReport = `=== START OF READ SMART DATA SECTION ===
SMART overall-health self-assessment test result: FAILED!
Drive failure expected in less than 24 hours. SAVE ALL DATA.
ID# ATTRIBUTE_NAME          FLAG     VALUE WORST THRESH TYPE      UPDATED  WHEN_FAILED RAW_VALUE
  5 Reallocated_Sector_Ct   0x0033   001   001   010    Pre-fail  Always   FAILING_NOW 4088
194 Temperature_Celsius     0x0022   061   045   000    Old_age   Always       -       39
`

func TestRead_FailingDriveKeepsReport(t *testing.T) {
	run := func(context.Context, string, ...string) ([]byte, error) {
		return []byte(failingReport), exitStatus(8)
	}
	p := NewReader("", run, nil)

	info, ok := p.Read(context.Background(), "/dev/sdb1")

	require.True(t, ok)
	assert.Equal(t, models.SmartFailed, info.Health)
	require.NotNil(t, info.Temperature)
	assert.Equal(t, uint32(39), *info.Temperature)
}

func TestRead_ExitStatus(t *testing.T) {
	tests := []struct {
		name string
		out  string
		err  error
		ok   bool
	}{
		{"clean", sataReport, nil, true},
		{"disk failing", failingReport, exitStatus(8), true},
		{"prefail attributes and error log", sataReport, exitStatus(16 | 64), true},
		{"command line did not parse", "", exitStatus(1), false},
		{"device open failed", "smartctl: open failed\n", exitStatus(2), false},
		{"open failed with other bits", failingReport, exitStatus(2 | 8), false},
		{"failing but no output", "", exitStatus(8), false},
		{"not an exit status", sataReport, errors.New("signal: killed"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			run := func(context.Context, string, ...string) ([]byte, error) {
				return []byte(tt.out), tt.err
			}
			_, ok := NewReader("", run, nil).Read(context.Background(), "/dev/sda")
			assert.Equal(t, tt.ok, ok)
		})
	}
}

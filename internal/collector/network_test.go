package collector

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shirou/gopsutil/v3/net"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeNetwork struct {
	counters []net.IOCountersStat
	err      error
}

func (f *fakeNetwork) source() networkSource {
	return networkSource{
		counters: func(context.Context, bool) ([]net.IOCountersStat, error) {
			return f.counters, f.err
		},
		interfaces: func(context.Context) (net.InterfaceStatList, error) {
			return net.InterfaceStatList{{Name: "eth0", HardwareAddr: "52:54:00:12:34:56"}}, nil
		},
	}
}

func TestNetworkMonitor_Rates(t *testing.T) {
	src := &fakeNetwork{counters: []net.IOCountersStat{
		{Name: "eth0", BytesRecv: 1000, BytesSent: 500, PacketsRecv: 10, Errin: 1},
		{Name: "lo", BytesRecv: 50, BytesSent: 50},
	}}
	clock := time.Unix(1_700_000_000, 0)
	m := newNetworkMonitor(src.source(), func() time.Time { return clock }, nil)

	first, err := m.Refresh(context.Background())
	require.NoError(t, err)
	require.Len(t, first.Interfaces, 2)
	assert.Zero(t, first.TotalDownloadRate)
	assert.Equal(t, uint64(1050), first.TotalReceived)

	clock = clock.Add(2 * time.Second)
	src.counters[0].BytesRecv, src.counters[0].BytesSent = 3000, 1500
	src.counters[1].BytesRecv = 10 // reset

	snap, err := m.Refresh(context.Background())
	require.NoError(t, err)

	eth := snap.Interfaces[0]
	assert.Equal(t, "eth0", eth.Name)
	assert.Equal(t, "52:54:00:12:34:56", eth.MACAddress)
	assert.InDelta(t, 1000.0, eth.DownloadRateBps, 1e-9)
	assert.InDelta(t, 500.0, eth.UploadRateBps, 1e-9)
	assert.Equal(t, uint64(10), eth.ReceivedPackets)
	assert.Equal(t, uint64(1), eth.ErrorsIn)

	lo := snap.Interfaces[1]
	assert.Equal(t, "", lo.MACAddress)
	assert.Zero(t, lo.DownloadRateBps)
	assert.InDelta(t, 1000.0, snap.TotalDownloadRate, 1e-9)
	assert.InDelta(t, 500.0, snap.TotalUploadRate, 1e-9)
}

func TestNetworkMonitor_VanishedInterfaceIsForgotten(t *testing.T) {
	src := &fakeNetwork{counters: []net.IOCountersStat{{Name: "wg0", BytesRecv: 100}}}
	clock := time.Unix(1_700_000_000, 0)
	m := newNetworkMonitor(src.source(), func() time.Time { return clock }, nil)

	_, err := m.Refresh(context.Background())
	require.NoError(t, err)

	src.counters = nil
	_, err = m.Refresh(context.Background())
	require.NoError(t, err)

	// It comes back with a fresh baseline.
	clock = clock.Add(time.Second)
	src.counters = []net.IOCountersStat{{Name: "wg0", BytesRecv: 900}}
	snap, err := m.Refresh(context.Background())
	require.NoError(t, err)
	assert.Zero(t, snap.Interfaces[0].DownloadRateBps)
}

func TestNetworkMonitor_SourceError(t *testing.T) {
	src := &fakeNetwork{err: errors.New("no /proc/net/dev")}
	m := newNetworkMonitor(src.source(), time.Now, nil)

	_, err := m.Refresh(context.Background())
	assert.ErrorContains(t, err, "read interface counters")
}

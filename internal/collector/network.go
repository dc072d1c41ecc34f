// Network monitor: per-interface cumulative counters and byte rates.
// Uses gopsutil for cross-platform network metrics.
package collector

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shirou/gopsutil/v3/net"
	"go.uber.org/zap"

	"github.com/Guliveer/novamon/internal/models"
	"github.com/Guliveer/novamon/internal/rate"
)

type networkSource struct {
	counters   func(ctx context.Context, pernic bool) ([]net.IOCountersStat, error)
	interfaces func(ctx context.Context) (net.InterfaceStatList, error)
}

var gopsutilNetwork = networkSource{
	counters:   net.IOCountersWithContext,
	interfaces: net.InterfacesWithContext,
}

// NetworkMonitor collects per-interface I/O. It keeps the previous byte
// counters of each interface to derive download and upload rates; the first
// refresh of an interface reports zero rates while establishing a baseline.
type NetworkMonitor struct {
	guard  *stateGuard
	src    networkSource
	rates  *rate.Tracker[string]
	now    func() time.Time
	logger *zap.Logger
}

// NewNetworkMonitor creates a new network monitor.
func NewNetworkMonitor(logger *zap.Logger) *NetworkMonitor {
	return newNetworkMonitor(gopsutilNetwork, time.Now, logger)
}

func newNetworkMonitor(src networkSource, now func() time.Time, logger *zap.Logger) *NetworkMonitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NetworkMonitor{
		guard:  newStateGuard("network", logger),
		src:    src,
		rates:  rate.NewTracker[string](),
		now:    now,
		logger: logger,
	}
}

// Name returns the collector identifier.
func (m *NetworkMonitor) Name() string { return "network" }

// IsAvailable returns true; network metrics are available on all platforms.
func (m *NetworkMonitor) IsAvailable() bool { return true }

// Collect implements Collector.
func (m *NetworkMonitor) Collect(ctx context.Context) (interface{}, error) {
	return m.Refresh(ctx)
}

// Refresh reads all interface counters and returns rates since the previous
// refresh. Counters that went backwards yield a zero rate.
func (m *NetworkMonitor) Refresh(ctx context.Context) (models.NetworkSnapshot, error) {
	var (
		snap models.NetworkSnapshot
		err  error
	)
	m.guard.run(func() {
		snap, err = m.refresh(ctx)
	})
	return snap, err
}

func (m *NetworkMonitor) refresh(ctx context.Context) (models.NetworkSnapshot, error) {
	counters, err := m.src.counters(ctx, true)
	if err != nil {
		return models.NetworkSnapshot{}, fmt.Errorf("read interface counters: %w", err)
	}

	macs := make(map[string]string)
	if ifaces, err := m.src.interfaces(ctx); err == nil {
		for _, iface := range ifaces {
			macs[iface.Name] = iface.HardwareAddr
		}
	} else {
		m.logger.Debug("Interface list not available", zap.Error(err))
	}

	now := m.now()
	seen := make(map[string]bool, len(counters))
	snap := models.NetworkSnapshot{Interfaces: make([]models.NetworkInterface, 0, len(counters))}

	for _, c := range counters {
		rates := m.rates.Observe(c.Name, now, c.BytesRecv, c.BytesSent)
		seen[c.Name] = true

		iface := models.NetworkInterface{
			Name:               c.Name,
			MACAddress:         macs[c.Name],
			ReceivedBytes:      c.BytesRecv,
			TransmittedBytes:   c.BytesSent,
			ReceivedPackets:    c.PacketsRecv,
			TransmittedPackets: c.PacketsSent,
			ErrorsIn:           c.Errin,
			ErrorsOut:          c.Errout,
			DownloadRateBps:    rates[0],
			UploadRateBps:      rates[1],
		}

		snap.TotalReceived += iface.ReceivedBytes
		snap.TotalTransmitted += iface.TransmittedBytes
		snap.TotalDownloadRate += iface.DownloadRateBps
		snap.TotalUploadRate += iface.UploadRateBps
		snap.Interfaces = append(snap.Interfaces, iface)
	}

	m.rates.Retain(func(name string) bool { return seen[name] })

	sort.Slice(snap.Interfaces, func(i, j int) bool {
		return snap.Interfaces[i].Name < snap.Interfaces[j].Name
	})
	return snap, nil
}

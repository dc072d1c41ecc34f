package gpu

import (
	"fmt"
	"math"
	"time"

	"github.com/Guliveer/novamon/internal/models"
	"github.com/Guliveer/novamon/internal/rate"
	"github.com/Guliveer/novamon/internal/sysfs"
)

const intelVendorID = "0x8086"

// intelProbe reads i915 attributes. Utilization is derived from the RC6
// (idle) residency counter: the share of wall time spent outside RC6.
type intelProbe struct {
	tree sysfs.Tree
	rc6  *rate.Tracker[uint32]
	now  func() time.Time
}

func newIntelProbe(tree sysfs.Tree, now func() time.Time) *intelProbe {
	return &intelProbe{tree: tree, rc6: rate.NewTracker[uint32](), now: now}
}

func (p *intelProbe) collect(diag *diagnostics) []models.GPUInfo {
	cards, err := drmCards(p.tree, intelVendorID)
	if err != nil {
		diag.add(models.VendorIntel, "%v", err)
		return nil
	}

	seen := make(map[uint32]bool, len(cards))
	gpus := make([]models.GPUInfo, 0, len(cards))
	for i, card := range cards {
		index := uint32(i)
		seen[index] = true
		gpus = append(gpus, p.readCard(index, card))
	}
	p.rc6.Retain(func(index uint32) bool { return seen[index] })
	return gpus
}

func (p *intelProbe) readCard(index uint32, card string) models.GPUInfo {
	info := models.GPUInfo{
		Index:  index,
		Name:   "Intel Integrated GPU",
		Vendor: models.VendorIntel,
		UUID:   fmt.Sprintf("intel-%d", index),
	}

	if mhz, ok := p.firstUint(
		[]string{"class", "drm", card, "gt", "gt0", "rps_cur_freq_mhz"},
		[]string{"class", "drm", card, "gt_cur_freq_mhz"},
	); ok {
		info.ClockGraphics = uint32(mhz)
	}

	if residency, ok := p.firstUint(
		[]string{"class", "drm", card, "gt", "gt0", "rc6_residency_ms"},
		[]string{"class", "drm", card, "power", "rc6_residency_ms"},
	); ok {
		info.UtilizationGPU = p.utilization(index, residency)
	}

	return info
}

// utilization converts the RC6 residency delta into a busy percentage.
// Residency is in milliseconds, so the per-second rate divided by 10 is the
// idle percentage. Fractions are truncated. The first sample, and any
// non-positive interval, reads 0.
func (p *intelProbe) utilization(index uint32, residencyMS uint64) uint32 {
	rates, ok := p.rc6.ObserveInterval(index, p.now(), residencyMS)
	if !ok {
		return 0
	}
	idle := rates[0] / 10
	busy := math.Max(0, math.Min(100, 100-idle))
	return uint32(busy)
}

func (p *intelProbe) firstUint(paths ...[]string) (uint64, bool) {
	for _, elem := range paths {
		if v, ok := p.tree.Uint(elem...); ok {
			return v, true
		}
	}
	return 0, false
}

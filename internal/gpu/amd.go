package gpu

import (
	"fmt"
	"strings"

	"github.com/Guliveer/novamon/internal/models"
	"github.com/Guliveer/novamon/internal/sysfs"
)

const amdVendorID = "0x1002"

// Known integrated parts; anything else is named by its PCI device id.
var amdDeviceNames = map[string]string{
	"0x1638": "AMD Radeon Graphics (Ryzen 5000 Series iGPU)",
	"0x1506": "AMD Radeon Graphics (Ryzen 7000 Series iGPU)",
}

// amdProbe reads amdgpu attributes under class/drm/cardN/device.
type amdProbe struct {
	tree sysfs.Tree
}

func (p *amdProbe) collect(diag *diagnostics) []models.GPUInfo {
	cards, err := drmCards(p.tree, amdVendorID)
	if err != nil {
		diag.add(models.VendorAmd, "%v", err)
		return nil
	}

	gpus := make([]models.GPUInfo, 0, len(cards))
	for i, card := range cards {
		gpus = append(gpus, p.readCard(uint32(i), card))
	}
	return gpus
}

func (p *amdProbe) readCard(index uint32, card string) models.GPUInfo {
	dev := []string{"class", "drm", card, "device"}
	at := func(elem ...string) []string {
		return append(append([]string{}, dev...), elem...)
	}

	info := models.GPUInfo{
		Index:  index,
		Name:   amdName(p.tree, at("device")...),
		Vendor: models.VendorAmd,
		UUID:   fmt.Sprintf("amd-%d", index),
	}

	if busy, ok := p.tree.Uint(at("gpu_busy_percent")...); ok {
		info.UtilizationGPU = uint32(busy)
	}

	total, totalOK := p.tree.Uint(at("mem_info_vram_total")...)
	used, usedOK := p.tree.Uint(at("mem_info_vram_used")...)
	if totalOK {
		info.MemoryTotal = ptr(total)
	}
	if usedOK {
		info.MemoryUsed = ptr(used)
	}
	if totalOK && usedOK {
		free := uint64(0)
		if total > used {
			free = total - used
		}
		info.MemoryFree = ptr(free)
		if total > 0 {
			info.UtilizationMemory = uint32(used * 100 / total)
		}
	}

	if hwmon, ok := firstHwmon(p.tree, at("hwmon")...); ok {
		hw := append(at("hwmon"), hwmon)
		if milli, ok := p.tree.Int(append(hw, "temp1_input")...); ok && milli >= 0 {
			info.Temperature = ptr(uint32(milli / 1000))
		}
		if micro, ok := p.tree.Uint(append(hw, "power1_average")...); ok {
			info.PowerUsage = ptr(uint32(micro / 1000))
		}
		if micro, ok := p.tree.Uint(append(hw, "power1_cap")...); ok {
			info.PowerLimit = ptr(uint32(micro / 1000))
		}
	}

	if content, ok := p.tree.String(at("pp_dpm_sclk")...); ok {
		info.ClockGraphics = activeDPMClock(content)
	}
	if content, ok := p.tree.String(at("pp_dpm_mclk")...); ok {
		info.ClockMemory = activeDPMClock(content)
	}

	return info
}

func amdName(tree sysfs.Tree, elem ...string) string {
	id, ok := tree.String(elem...)
	if !ok {
		return "AMD Radeon Graphics"
	}
	id = strings.ToLower(id)
	if name, ok := amdDeviceNames[id]; ok {
		return name
	}
	return fmt.Sprintf("AMD Radeon Graphics (Device %s)", id)
}

// activeDPMClock returns the MHz of the line marked with '*' in a
// pp_dpm_sclk/pp_dpm_mclk table such as "1: 1800Mhz *".
func activeDPMClock(content string) uint32 {
	for _, line := range strings.Split(content, "\n") {
		if !strings.Contains(line, "*") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		raw := strings.TrimSuffix(strings.TrimSuffix(fields[1], "Mhz"), "MHz")
		var mhz uint32
		if _, err := fmt.Sscanf(raw, "%d", &mhz); err == nil {
			return mhz
		}
	}
	return 0
}

// drmCards lists cardN entries whose PCI vendor matches vendorID.
func drmCards(tree sysfs.Tree, vendorID string) ([]string, error) {
	entries, err := tree.List("class", "drm")
	if err != nil {
		return nil, fmt.Errorf("list drm devices: %w", err)
	}
	var cards []string
	for _, name := range entries {
		if !sysfs.IsCardDevice(name) {
			continue
		}
		vendor, ok := tree.String("class", "drm", name, "device", "vendor")
		if ok && strings.EqualFold(vendor, vendorID) {
			cards = append(cards, name)
		}
	}
	return cards, nil
}

func firstHwmon(tree sysfs.Tree, elem ...string) (string, bool) {
	entries, err := tree.List(elem...)
	if err != nil {
		return "", false
	}
	for _, name := range entries {
		if strings.HasPrefix(name, "hwmon") {
			return name, true
		}
	}
	return "", false
}

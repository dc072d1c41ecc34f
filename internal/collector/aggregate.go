package collector

import (
	"sort"

	"github.com/Guliveer/novamon/internal/models"
)

type processGroup struct {
	rep  models.ProcessInfo
	cpus []pidCPU
}

type pidCPU struct {
	pid int32
	cpu float64
}

// GroupProcesses folds per-pid records into one record per executable name.
//
// The representative of a group is its lowest pid and every per-process
// field (memory, start time, user, path, ...) comes from that record. CPU
// usage is summed over the group and InstanceCount is the group size. The
// sum is taken in pid order, so any permutation of the input yields the same
// records. The result is sorted by CPU usage descending, ties by name.
func GroupProcesses(records []models.ProcessInfo) []models.ProcessInfo {
	groups := make(map[string]*processGroup, len(records))
	for _, r := range records {
		g, ok := groups[r.Name]
		if !ok {
			g = &processGroup{rep: r}
			groups[r.Name] = g
		} else if r.PID < g.rep.PID {
			g.rep = r
		}
		g.cpus = append(g.cpus, pidCPU{pid: r.PID, cpu: r.CPUUsage})
	}

	out := make([]models.ProcessInfo, 0, len(groups))
	for _, g := range groups {
		sort.Slice(g.cpus, func(i, j int) bool { return g.cpus[i].pid < g.cpus[j].pid })
		var sum float64
		for _, c := range g.cpus {
			sum += c.cpu
		}

		rep := g.rep
		rep.Command = append([]string(nil), rep.Command...)
		rep.ParentPID = cloneInt32(rep.ParentPID)
		rep.UserID = cloneString(rep.UserID)
		rep.CPUUsage = sum
		count := uint32(len(g.cpus))
		rep.InstanceCount = &count
		out = append(out, rep)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].CPUUsage != out[j].CPUUsage {
			return out[i].CPUUsage > out[j].CPUUsage
		}
		return out[i].Name < out[j].Name
	})
	return out
}

func cloneInt32(v *int32) *int32 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneString(v *string) *string {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

package collector

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Guliveer/novamon/internal/models"
)

func proc(pid int32, name string, cpu float64, mem uint64) models.ProcessInfo {
	return models.ProcessInfo{PID: pid, Name: name, CPUUsage: cpu, MemoryBytes: mem, StartTime: uint64(pid) * 10}
}

func TestGroupProcesses_MinPidRepresentative(t *testing.T) {
	grouped := GroupProcesses([]models.ProcessInfo{
		proc(100, "x", 5.0, 200),
		proc(50, "x", 3.0, 100),
		proc(200, "x", 1.0, 50),
	})

	require.Len(t, grouped, 1)
	g := grouped[0]
	assert.Equal(t, int32(50), g.PID)
	assert.InDelta(t, 9.0, g.CPUUsage, 1e-9)
	assert.Equal(t, uint64(100), g.MemoryBytes)
	assert.Equal(t, uint64(500), g.StartTime)
	require.NotNil(t, g.InstanceCount)
	assert.Equal(t, uint32(3), *g.InstanceCount)
}

func TestGroupProcesses_SortedByCPUDescending(t *testing.T) {
	grouped := GroupProcesses([]models.ProcessInfo{
		proc(1, "init", 0.0, 10),
		proc(20, "chrome", 12.5, 10),
		proc(21, "chrome", 30.0, 10),
		proc(30, "sshd", 0.0, 10),
		proc(40, "go", 7.0, 10),
	})

	names := make([]string, 0, len(grouped))
	for _, g := range grouped {
		names = append(names, g.Name)
	}
	assert.Equal(t, []string{"chrome", "go", "init", "sshd"}, names)
	assert.Equal(t, uint32(1), *grouped[1].InstanceCount)
}

func TestGroupProcesses_PermutationIndependent(t *testing.T) {
	user := "1000"
	var records []models.ProcessInfo
	rng := rand.New(rand.NewSource(7))
	names := []string{"bash", "postgres", "nginx", "kworker"}
	for pid := int32(1); pid <= 60; pid++ {
		r := proc(pid*7%61+1, names[rng.Intn(len(names))], rng.Float64()*3, uint64(rng.Intn(1<<20)))
		r.UserID = &user
		r.Command = []string{r.Name, "-v"}
		records = append(records, r)
	}

	want := GroupProcesses(records)
	for i := 0; i < 20; i++ {
		shuffled := append([]models.ProcessInfo(nil), records...)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })
		assert.Equal(t, want, GroupProcesses(shuffled))
	}
}

func TestGroupProcesses_DoesNotAliasInput(t *testing.T) {
	user := "0"
	in := []models.ProcessInfo{{PID: 1, Name: "init", Command: []string{"/sbin/init"}, UserID: &user}}

	out := GroupProcesses(in)
	out[0].Command[0] = "changed"
	*out[0].UserID = "changed"

	assert.Equal(t, "/sbin/init", in[0].Command[0])
	assert.Equal(t, "0", *in[0].UserID)
	assert.Nil(t, in[0].InstanceCount)
}

func TestGroupProcesses_Empty(t *testing.T) {
	assert.Empty(t, GroupProcesses(nil))
}

package ttlcache

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// manualClock is a settable clock shared between the test and the cache.
type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (m *manualClock) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

func (m *manualClock) Advance(d time.Duration) {
	m.mu.Lock()
	m.now = m.now.Add(d)
	m.mu.Unlock()
}

func newClock() *manualClock {
	return &manualClock{now: time.Unix(1_700_000_000, 0)}
}

func TestGetOrCompute_FreshWithinTTL(t *testing.T) {
	clock := newClock()
	c := New[[]int](WithClock[[]int](clock.Now))

	calls := 0
	compute := func() ([]int, bool) {
		calls++
		return []int{calls}, true
	}

	first, ok := c.GetOrCompute("sda", time.Minute, compute)
	require.True(t, ok)

	clock.Advance(59 * time.Second)
	second, ok := c.GetOrCompute("sda", time.Minute, compute)
	require.True(t, ok)

	assert.Equal(t, 1, calls)
	assert.Equal(t, first, second)
	assert.Same(t, &first[0], &second[0])
}

func TestGetOrCompute_RecomputesAfterTTL(t *testing.T) {
	clock := newClock()
	c := New[int](WithClock[int](clock.Now))

	calls := 0
	compute := func() (int, bool) {
		calls++
		return calls, true
	}

	v, _ := c.GetOrCompute("k", 2*time.Second, compute)
	assert.Equal(t, 1, v)

	clock.Advance(2 * time.Second)
	v, _ = c.GetOrCompute("k", 2*time.Second, compute)
	assert.Equal(t, 2, v)
	assert.Equal(t, 2, calls)

	e, ok := c.Fresh("k", 2*time.Second)
	require.True(t, ok)
	assert.Equal(t, clock.Now(), e.RecordedAt)
	assert.Equal(t, 2, e.Value)
}

func TestGetOrCompute_CachesAbsentOutcome(t *testing.T) {
	clock := newClock()
	c := New[string](WithClock[string](clock.Now))

	calls := 0
	unavailable := func() (string, bool) {
		calls++
		return "", false
	}

	for i := 0; i < 5; i++ {
		_, ok := c.GetOrCompute("/dev/sdz", time.Minute, unavailable)
		assert.False(t, ok)
		clock.Advance(time.Second)
	}
	assert.Equal(t, 1, calls)

	clock.Advance(time.Minute)
	c.GetOrCompute("/dev/sdz", time.Minute, unavailable)
	assert.Equal(t, 2, calls)
}

func TestGetOrCompute_ConcurrentMissComputesOnce(t *testing.T) {
	c := New[int]()

	var calls atomic.Int32
	release := make(chan struct{})
	compute := func() (int, bool) {
		calls.Add(1)
		<-release
		return 7, true
	}

	const callers = 16
	var started, done sync.WaitGroup
	results := make([]int, callers)
	for i := 0; i < callers; i++ {
		started.Add(1)
		done.Add(1)
		go func(i int) {
			defer done.Done()
			started.Done()
			results[i], _ = c.GetOrCompute("sensors", time.Minute, compute)
		}(i)
	}
	started.Wait()
	time.Sleep(20 * time.Millisecond)
	close(release)
	done.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, r := range results {
		assert.Equal(t, 7, r)
	}
}

func TestRetain_DropsRejectedKeys(t *testing.T) {
	c := New[int]()
	c.GetOrCompute("a", time.Hour, func() (int, bool) { return 1, true })
	c.GetOrCompute("b", time.Hour, func() (int, bool) { return 2, true })

	c.Retain(func(k string) bool { return k != "b" })

	_, ok := c.Fresh("b", time.Hour)
	assert.False(t, ok)
	v, _ := c.GetOrCompute("b", time.Hour, func() (int, bool) { return 20, true })
	assert.Equal(t, 20, v, "dropped key recomputes")

	e, ok := c.Fresh("a", time.Hour)
	require.True(t, ok)
	assert.Equal(t, 1, e.Value)
}

// Package rate converts successive cumulative counter readings into
// per-second rates. A Tracker keeps exactly one sample per key, so memory
// stays bounded by the number of live keys (interfaces, devices, pids).
package rate

import (
	"sync"
	"time"
)

// Sample is the last observation stored for a key.
type Sample struct {
	Timestamp time.Time
	Values    []uint64
}

// Tracker stores the previous cumulative reading per key and turns each new
// reading into rates. It is safe for concurrent use; callers that already
// hold a domain lock pay only an uncontended mutex.
type Tracker[K comparable] struct {
	mu      sync.Mutex
	samples map[K]Sample
}

// NewTracker creates an empty tracker.
func NewTracker[K comparable]() *Tracker[K] {
	return &Tracker[K]{samples: make(map[K]Sample)}
}

// Observe records values for key at ts and returns one rate per value.
//
// The first observation of a key returns zero rates. A non-positive interval
// (duplicate call, clock stepping backwards) also returns zero rates and leaves
// the stored baseline untouched. Counters that went backwards (reset, wrap,
// device replaced) yield zero for that position instead of a negative rate.
func (t *Tracker[K]) Observe(key K, ts time.Time, values ...uint64) []float64 {
	rates, _ := t.ObserveInterval(key, ts, values...)
	return rates
}

// ObserveInterval is Observe that also reports whether the rates were
// measured over a valid interval. It is false for the first observation of a
// key and for non-positive intervals, letting callers that derive a
// complementary figure (utilization = 100 - idle) tell "no interval yet"
// apart from "zero rate".
func (t *Tracker[K]) ObserveInterval(key K, ts time.Time, values ...uint64) ([]float64, bool) {
	rates := make([]float64, len(values))

	t.mu.Lock()
	defer t.mu.Unlock()

	measured := false
	prev, ok := t.samples[key]
	if ok {
		elapsed := ts.Sub(prev.Timestamp).Seconds()
		if elapsed <= 0 {
			return rates, false
		}
		measured = true
		for i, v := range values {
			if i >= len(prev.Values) {
				break
			}
			if v > prev.Values[i] {
				rates[i] = float64(v-prev.Values[i]) / elapsed
			}
		}
	}

	stored := make([]uint64, len(values))
	copy(stored, values)
	t.samples[key] = Sample{Timestamp: ts, Values: stored}

	return rates, measured
}

// Retain drops every key for which keep returns false. Monitors call it after
// a refresh with the set of keys seen in that refresh so vanished interfaces
// and exited processes do not accumulate.
func (t *Tracker[K]) Retain(keep func(K) bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for k := range t.samples {
		if !keep(k) {
			delete(t.samples, k)
		}
	}
}

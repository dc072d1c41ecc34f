package lazy

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type handle struct{ id int }

func TestGet_InitializesOnce(t *testing.T) {
	var r Resource[*handle]
	calls := 0
	init := func() (*handle, error) {
		calls++
		return &handle{id: calls}, nil
	}

	assert.Equal(t, NotYetAttempted, r.State())

	h1, ok := r.Get(init)
	require.True(t, ok)
	h2, ok := r.Get(init)
	require.True(t, ok)

	assert.Same(t, h1, h2)
	assert.Equal(t, 1, calls)
	assert.Equal(t, Ready, r.State())
}

func TestGet_UnavailableNeverRetries(t *testing.T) {
	var r Resource[*handle]
	errNoDriver := errors.New("driver not loaded")
	calls := 0
	init := func() (*handle, error) {
		calls++
		return nil, errNoDriver
	}

	for i := 0; i < 3; i++ {
		h, ok := r.Get(init)
		assert.False(t, ok)
		assert.Nil(t, h)
	}

	assert.Equal(t, 1, calls)
	assert.Equal(t, Unavailable, r.State())
	assert.ErrorIs(t, r.Err(), errNoDriver)
}

func TestGet_ConcurrentCallersShareOutcome(t *testing.T) {
	var r Resource[*handle]
	var calls atomic.Int32
	init := func() (*handle, error) {
		calls.Add(1)
		return &handle{id: 42}, nil
	}

	const n = 32
	results := make([]*handle, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = r.Get(init)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, h := range results {
		assert.Same(t, results[0], h)
	}
}

func TestClose_ReleasesAndStaysUnavailable(t *testing.T) {
	var r Resource[*handle]
	_, ok := r.Get(func() (*handle, error) { return &handle{id: 1}, nil })
	require.True(t, ok)

	var released *handle
	require.NoError(t, r.Close(func(h *handle) error {
		released = h
		return nil
	}))
	assert.Equal(t, 1, released.id)
	assert.Equal(t, Unavailable, r.State())

	_, ok = r.Get(func() (*handle, error) { return &handle{id: 2}, nil })
	assert.False(t, ok)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "ready", Ready.String())
	assert.Equal(t, "unavailable", Unavailable.String())
	assert.Equal(t, "not_yet_attempted", NotYetAttempted.String())
}

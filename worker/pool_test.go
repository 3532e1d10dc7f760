package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type resultRecorder struct {
	mu      sync.Mutex
	results []string
}

func (r *resultRecorder) MeasureWorkerRun(string) func(string) {
	return func(result string) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.results = append(r.results, result)
	}
}

func (r *resultRecorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.results...)
}

func TestPool_RunsPeriodically(t *testing.T) {
	pool := NewPool(nil)
	var runs atomic.Int64

	require.NoError(t, pool.Start(Spec{
		Name:   "tick",
		Period: 10 * time.Millisecond,
		Body: func(context.Context) error {
			runs.Add(1)
			return nil
		},
	}))

	assert.Eventually(t, func() bool { return runs.Load() >= 3 }, time.Second, 5*time.Millisecond)
	assert.True(t, pool.Stop("tick"))
	assert.Empty(t, pool.Running())

	after := runs.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, after, runs.Load())
}

func TestPool_DuplicateName(t *testing.T) {
	pool := NewPool(nil)
	spec := Spec{Name: "dup", Period: time.Hour, InitialDelay: Every(time.Hour), Body: func(context.Context) error { return nil }}

	require.NoError(t, pool.Start(spec))
	err := pool.Start(spec)
	assert.ErrorIs(t, err, ErrAlreadyRunning)

	pool.StopAll()
	require.NoError(t, pool.Start(spec))
	pool.StopAll()
}

func TestPool_RejectsZeroPeriod(t *testing.T) {
	pool := NewPool(nil)
	assert.Error(t, pool.Start(Spec{Name: "bad", Body: func(context.Context) error { return nil }}))
}

func TestPool_ErrorsAndPanicsDoNotStopWorker(t *testing.T) {
	metrics := &resultRecorder{}
	pool := NewPool(metrics)
	var runs atomic.Int64

	require.NoError(t, pool.Start(Spec{
		Name:   "flaky",
		Period: 5 * time.Millisecond,
		Body: func(context.Context) error {
			switch runs.Add(1) {
			case 1:
				return errors.New("transient")
			case 2:
				panic("worse")
			}
			return nil
		},
	}))

	assert.Eventually(t, func() bool { return runs.Load() >= 3 }, time.Second, 5*time.Millisecond)
	pool.StopAll()

	results := metrics.snapshot()
	require.GreaterOrEqual(t, len(results), 3)
	assert.Equal(t, []string{"error", "panic", "ok"}, results[:3])
}

func TestPool_NoConcurrentRuns(t *testing.T) {
	pool := NewPool(nil)
	var active, maxActive atomic.Int64

	require.NoError(t, pool.Start(Spec{
		Name:   "slow",
		Period: time.Millisecond,
		Body: func(context.Context) error {
			n := active.Add(1)
			defer active.Add(-1)
			for {
				cur := maxActive.Load()
				if n <= cur || maxActive.CompareAndSwap(cur, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			return nil
		},
	}))

	time.Sleep(50 * time.Millisecond)
	pool.StopAll()
	assert.Equal(t, int64(1), maxActive.Load())
}

func TestPool_StopCancelsBody(t *testing.T) {
	pool := NewPool(nil)
	started := make(chan struct{})

	require.NoError(t, pool.Start(Spec{
		Name:   "blocking",
		Period: time.Hour,
		Body: func(ctx context.Context) error {
			close(started)
			<-ctx.Done()
			return ctx.Err()
		},
	}))

	<-started
	assert.True(t, pool.Stop("blocking"))
}

func TestPool_StopGraceExpires(t *testing.T) {
	pool := NewPool(nil).WithGrace(20 * time.Millisecond)
	started := make(chan struct{})
	release := make(chan struct{})
	defer close(release)

	require.NoError(t, pool.Start(Spec{
		Name:   "stubborn",
		Period: time.Hour,
		Body: func(context.Context) error {
			close(started)
			<-release
			return nil
		},
	}))

	<-started
	assert.False(t, pool.Stop("stubborn"))
}

func TestNextHour(t *testing.T) {
	tests := []struct {
		now  time.Time
		want time.Duration
	}{
		{time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC), time.Hour},
		{time.Date(2024, 1, 1, 10, 59, 30, 0, time.UTC), 30 * time.Second},
		{time.Date(2024, 1, 1, 23, 15, 0, 0, time.UTC), 45 * time.Minute},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, NextHour(tt.now), tt.now.String())
	}
}

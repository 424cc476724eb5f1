package window

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nebulasio/go-nbre/entities"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func startPool(t *testing.T, workers, queueSize int) *Pool {
	t.Helper()
	pool := NewPool(workers, queueSize, zap.NewNop().Sugar())
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go pool.Start(ctx)
	return pool
}

func waitForState[K comparable, V any](t *testing.T, runner *Runner[K, V], key K, expected State) {
	t.Helper()
	require.Eventually(t, func() bool {
		_, state := runner.Get(key)
		return state == expected
	}, 2*time.Second, 5*time.Millisecond)
}

func TestRunner_AtMostOnce(t *testing.T) {
	runner := NewRunner[entities.WindowKey, string](startPool(t, 4, 10))
	key := entities.WindowKey{Start: 1, End: 128, Version: 2}

	var executions atomic.Int32
	release := make(chan struct{})
	compute := func(_ context.Context) (string, error) {
		executions.Add(1)
		<-release
		return "result", nil
	}

	scheduled := make([]bool, 2)
	var wg sync.WaitGroup
	for i := range scheduled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := runner.Schedule(key, compute)
			assert.NoError(t, err)
			scheduled[i] = ok
		}()
	}
	wg.Wait()

	value, state := runner.Get(key)
	require.Equal(t, Computing, state)
	require.Empty(t, value)

	close(release)
	waitForState(t, runner, key, Completed)

	first, _ := runner.Get(key)
	second, _ := runner.Get(key)
	require.Equal(t, "result", first)
	require.Equal(t, first, second)
	require.Equal(t, int32(1), executions.Load())
	require.ElementsMatch(t, []bool{true, false}, scheduled)

	ok, err := runner.Schedule(key, compute)
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, int32(1), executions.Load())
}

func TestRunner_FailureRearms(t *testing.T) {
	runner := NewRunner[uint64, string](startPool(t, 1, 10))

	ok, err := runner.Schedule(7, func(_ context.Context) (string, error) {
		return "", errors.New("provider down")
	})
	require.NoError(t, err)
	require.True(t, ok)
	waitForState(t, runner, 7, Unscheduled)

	ok, err = runner.Schedule(7, func(_ context.Context) (string, error) {
		panic("bad arithmetic")
	})
	require.NoError(t, err)
	require.True(t, ok)
	waitForState(t, runner, 7, Unscheduled)

	ok, err = runner.Schedule(7, func(_ context.Context) (string, error) {
		return "done", nil
	})
	require.NoError(t, err)
	require.True(t, ok)
	waitForState(t, runner, 7, Completed)

	value, _ := runner.Get(7)
	require.Equal(t, "done", value)
	require.Equal(t, map[uint64]string{7: "done"}, runner.Completed())
}

func TestRunner_QueueFull(t *testing.T) {
	// no workers are started, the queue holds a single task
	runner := NewRunner[uint64, string](NewPool(1, 1, zap.NewNop().Sugar()))
	compute := func(_ context.Context) (string, error) { return "x", nil }

	ok, err := runner.Schedule(1, compute)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = runner.Schedule(2, compute)
	require.ErrorIs(t, err, ErrQueueFull)
	require.False(t, ok)

	_, state := runner.Get(2)
	require.Equal(t, Unscheduled, state)
}

func TestRunner_Restore(t *testing.T) {
	runner := NewRunner[uint64, string](NewPool(1, 1, zap.NewNop().Sugar()))
	runner.Restore(3, "persisted")

	value, state := runner.Get(3)
	require.Equal(t, Completed, state)
	require.Equal(t, "persisted", value)

	ok, err := runner.Schedule(3, func(_ context.Context) (string, error) { return "again", nil })
	require.NoError(t, err)
	require.False(t, ok)
}

func TestCache_States(t *testing.T) {
	cache := NewCache[string, int]()

	_, state := cache.Get("a")
	require.Equal(t, Unscheduled, state)

	require.True(t, cache.TrySchedule("a"))
	require.False(t, cache.TrySchedule("a"))

	cache.Fail("a")
	require.True(t, cache.TrySchedule("a"))

	cache.Complete("a", 5)
	cache.Fail("a")
	value, state := cache.Get("a")
	require.Equal(t, Completed, state)
	require.Equal(t, 5, value)
	require.Equal(t, "completed", state.String())
}

package loop

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startLoop(t *testing.T) *Loop {
	t.Helper()
	l := New()
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = l.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-l.Done()
	})
	return l
}

func TestDoRunsInOrder(t *testing.T) {
	l := startLoop(t)

	var order []int
	for i := 0; i < 5; i++ {
		i := i
		l.Post(func() { order = append(order, i) })
	}
	require.NoError(t, l.Do(func() { order = append(order, 99) }))

	assert.Equal(t, []int{0, 1, 2, 3, 4, 99}, order)
}

func TestCallQueuesBeforeWaiting(t *testing.T) {
	l := startLoop(t)

	var order []int
	block := make(chan struct{})
	l.Post(func() { <-block })

	waitFirst := l.Call(func() { order = append(order, 1) })
	waitSecond := l.Call(func() { order = append(order, 2) })
	close(block)

	require.NoError(t, waitSecond())
	require.NoError(t, waitFirst())
	assert.Equal(t, []int{1, 2}, order)
}

func TestCallAfterStop(t *testing.T) {
	l := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = l.Run(ctx)

	assert.ErrorIs(t, l.Call(func() {})(), ErrStopped)
}

func TestDoAfterStop(t *testing.T) {
	l := New()
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = l.Run(ctx) }()
	cancel()
	<-l.Done()

	assert.ErrorIs(t, l.Do(func() {}), ErrStopped)
	assert.False(t, l.Post(func() {}))
	assert.Equal(t, TimerID(0), l.AddTimeout(time.Millisecond, func() bool { return true }))
}

func TestQuitFromTask(t *testing.T) {
	l := New()
	errCh := make(chan error, 1)
	go func() { errCh <- l.Run(context.Background()) }()

	l.Post(l.Quit)

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("loop did not quit")
	}
}

func TestRunTwice(t *testing.T) {
	l := startLoop(t)
	require.NoError(t, l.Do(func() {}))
	assert.Error(t, l.Run(context.Background()))
}

func TestAddTimeoutRepeats(t *testing.T) {
	l := startLoop(t)

	var ticks atomic.Int32
	id := l.AddTimeout(5*time.Millisecond, func() bool {
		ticks.Add(1)
		return true
	})
	assert.NotZero(t, id)

	assert.Eventually(t, func() bool { return ticks.Load() >= 3 }, time.Second, time.Millisecond)
	assert.Equal(t, 1, l.TimeoutCount())
}

func TestTimeoutStopsWhenCallbackReturnsFalse(t *testing.T) {
	l := startLoop(t)

	var ticks atomic.Int32
	l.AddTimeout(2*time.Millisecond, func() bool {
		ticks.Add(1)
		return false
	})

	assert.Eventually(t, func() bool { return ticks.Load() == 1 }, time.Second, time.Millisecond)
	assert.Eventually(t, func() bool { return l.TimeoutCount() == 0 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), ticks.Load())
}

func TestRemoveTimeout(t *testing.T) {
	l := startLoop(t)

	var ticks atomic.Int32
	id := l.AddTimeout(2*time.Millisecond, func() bool {
		ticks.Add(1)
		return true
	})
	assert.Eventually(t, func() bool { return ticks.Load() >= 1 }, time.Second, time.Millisecond)

	var removed bool
	require.NoError(t, l.Do(func() { removed = l.RemoveTimeout(id) }))
	assert.True(t, removed)

	after := ticks.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, after, ticks.Load())

	assert.False(t, l.RemoveTimeout(id))
	assert.False(t, l.RemoveTimeout(0))
}

func TestTimerIDsAreUnique(t *testing.T) {
	l := startLoop(t)

	a := l.AddTimeout(time.Hour, func() bool { return true })
	b := l.AddTimeout(time.Hour, func() bool { return true })
	assert.NotEqual(t, a, b)
	assert.NotZero(t, a)
	assert.NotZero(t, b)
}

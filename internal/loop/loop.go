// Package loop provides the single-threaded event loop the registrar runs on.
//
// Every task posted to a Loop runs on the goroutine that called Run, one at a
// time, in the order it was posted. Timeouts added with AddTimeout are
// dispatched through the same queue, so their callbacks never run
// concurrently with other tasks.
package loop

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrStopped is returned by Do when the loop is not running or has stopped
// before the task could complete.
var ErrStopped = errors.New("event loop stopped")

// TimerID identifies a timeout registered with AddTimeout. Zero is never a
// valid id.
type TimerID uint32

// timeout tracks a repeating callback.
type timeout struct {
	interval time.Duration
	fn       func() bool
	timer    *time.Timer
}

// Loop is a cooperative task queue drained by a single goroutine.
type Loop struct {
	mu      sync.Mutex
	queue   []func()
	wake    chan struct{}
	quit    chan struct{}
	done    chan struct{}
	started bool
	stopped bool

	timers map[TimerID]*timeout
	nextID TimerID
}

// New creates a Loop. Call Run to start processing tasks.
func New() *Loop {
	return &Loop{
		wake:   make(chan struct{}, 1),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
		timers: make(map[TimerID]*timeout),
	}
}

// Run processes posted tasks until ctx is cancelled or Quit is called.
// Tasks still queued when the loop stops are discarded.
func (l *Loop) Run(ctx context.Context) error {
	l.mu.Lock()
	if l.started {
		l.mu.Unlock()
		return errors.New("event loop already running")
	}
	l.started = true
	l.mu.Unlock()

	defer l.shutdown()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.quit:
			return nil
		case <-l.wake:
			l.drain()
		}
	}
}

// drain runs every task currently queued.
func (l *Loop) drain() {
	for {
		l.mu.Lock()
		if len(l.queue) == 0 || l.stopped {
			l.mu.Unlock()
			return
		}
		task := l.queue[0]
		l.queue[0] = nil
		l.queue = l.queue[1:]
		l.mu.Unlock()

		task()

		select {
		case <-l.quit:
			return
		default:
		}
	}
}

// shutdown stops all timers and releases Do callers.
func (l *Loop) shutdown() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.stopped = true
	l.queue = nil
	for id, t := range l.timers {
		t.timer.Stop()
		delete(l.timers, id)
	}
	close(l.done)
}

// Quit asks the loop to stop after the task currently running. It is safe
// to call from any goroutine, including from a task, and more than once.
func (l *Loop) Quit() {
	l.mu.Lock()
	defer l.mu.Unlock()

	select {
	case <-l.quit:
	default:
		close(l.quit)
	}
}

// Done is closed once the loop has stopped.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// Post queues fn to run on the loop goroutine. It never blocks. It returns
// false if the loop has already stopped.
func (l *Loop) Post(fn func()) bool {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return false
	}
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// Do runs fn on the loop goroutine and waits for it to return.
// It must not be called from a task running on the loop itself.
func (l *Loop) Do(fn func()) error {
	return l.Call(fn)()
}

// Call queues fn like Post and returns a function that waits for fn to
// return. The wait reports ErrStopped if the loop stopped first.
func (l *Loop) Call(fn func()) func() error {
	finished := make(chan struct{})
	if !l.Post(func() {
		defer close(finished)
		fn()
	}) {
		return func() error { return ErrStopped }
	}

	return func() error {
		select {
		case <-finished:
			return nil
		case <-l.done:
			// The task may have completed just before shutdown.
			select {
			case <-finished:
				return nil
			default:
				return ErrStopped
			}
		}
	}
}

// AddTimeout schedules fn to run on the loop every interval. The timeout
// keeps firing for as long as fn returns true, or until RemoveTimeout is
// called. The returned id is never zero, or zero when the loop has stopped.
func (l *Loop) AddTimeout(interval time.Duration, fn func() bool) TimerID {
	if interval <= 0 {
		interval = time.Millisecond
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.stopped {
		return 0
	}

	l.nextID++
	if l.nextID == 0 {
		l.nextID++
	}
	id := l.nextID

	t := &timeout{interval: interval, fn: fn}
	t.timer = time.AfterFunc(interval, func() {
		l.Post(func() { l.fire(id) })
	})
	l.timers[id] = t
	return id
}

// fire runs the callback for id if it is still registered.
func (l *Loop) fire(id TimerID) {
	l.mu.Lock()
	t, ok := l.timers[id]
	l.mu.Unlock()
	if !ok {
		return
	}

	keep := t.fn()

	l.mu.Lock()
	defer l.mu.Unlock()

	// The callback may have removed itself.
	if current, ok := l.timers[id]; !ok || current != t {
		return
	}
	if !keep {
		delete(l.timers, id)
		return
	}
	t.timer.Reset(t.interval)
}

// RemoveTimeout cancels a timeout. A removed timeout never fires again, even
// if a tick was already queued. It reports whether id was registered.
func (l *Loop) RemoveTimeout(id TimerID) bool {
	if id == 0 {
		return false
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	t, ok := l.timers[id]
	if !ok {
		return false
	}
	t.timer.Stop()
	delete(l.timers, id)
	return true
}

// TimeoutCount returns the number of active timeouts.
func (l *Loop) TimeoutCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.timers)
}

package clock

import (
	"sync"
	"time"
)

// Ticker delivers a time value once per period until stopped.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// Clock creates tickers. Production code uses Real; tests drive a Manual clock.
type Clock interface {
	NewTicker(d time.Duration) Ticker
}

type realClock struct{}

// Real returns a Clock backed by time.Ticker.
func Real() Clock { return realClock{} }

func (realClock) NewTicker(d time.Duration) Ticker { return &realTicker{t: time.NewTicker(d)} }

type realTicker struct{ t *time.Ticker }

func (r *realTicker) C() <-chan time.Time { return r.t.C }
func (r *realTicker) Stop()               { r.t.Stop() }

// Task is a cancellable periodic job. Each consumer owns its own Task, so
// stopping one never affects another.
type Task struct {
	done   chan struct{}
	exited chan struct{}
	once   sync.Once
}

// Every invokes fn once per tick of a new ticker from c until fn returns
// false or Stop is called. The ticker is registered before Every returns.
//
// A tick that races with Stop may still be received by the loop; owners that
// need a hard guarantee compare the *Task passed to fn with the handle they
// currently hold, under their own lock.
func Every(c Clock, d time.Duration, fn func(t *Task) bool) *Task {
	t := &Task{done: make(chan struct{}), exited: make(chan struct{})}
	tk := c.NewTicker(d)
	go func() {
		defer close(t.exited)
		defer tk.Stop()
		for {
			select {
			case <-t.done:
				return
			case <-tk.C():
				select {
				case <-t.done:
					return
				default:
				}
				if !fn(t) {
					t.Stop()
					return
				}
			}
		}
	}()
	return t
}

// Stop cancels the task. It is idempotent and never blocks, so it may be
// called from inside fn or while the caller holds a lock fn needs.
func (t *Task) Stop() {
	if t == nil {
		return
	}
	t.once.Do(func() { close(t.done) })
}

// Stopped reports whether Stop has been called.
func (t *Task) Stopped() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

// Wait blocks until the task goroutine has exited.
func (t *Task) Wait() { <-t.exited }

// Package scheduler decides when an invocation result may be sent back to
// the control API: immediately, or once outstanding background work drains.
package scheduler

import (
	"sync"
	"time"
)

// Tracker counts outstanding background work started during an invocation.
type Tracker struct {
	mu      sync.Mutex
	pending int
	onIdle  func()
}

// NewTracker returns an idle Tracker.
func NewTracker() *Tracker {
	return &Tracker{}
}

// Add registers n units of work.
func (t *Tracker) Add(n int) {
	t.mu.Lock()
	t.pending += n
	t.mu.Unlock()
}

// Done marks one unit of work finished.
func (t *Tracker) Done() {
	t.mu.Lock()
	if t.pending > 0 {
		t.pending--
	}
	fire := t.takeIdleLocked()
	t.mu.Unlock()
	if fire != nil {
		fire()
	}
}

// Pending reports the outstanding units.
func (t *Tracker) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pending
}

// Go runs fn on its own goroutine as tracked work.
func (t *Tracker) Go(fn func()) {
	t.Add(1)
	go func() {
		defer t.Done()
		fn()
	}()
}

// AfterFunc schedules fn after d as tracked work. Stopping the timer before
// it fires releases the unit.
func (t *Tracker) AfterFunc(d time.Duration, fn func()) (stop func() bool) {
	t.Add(1)
	timer := time.AfterFunc(d, func() {
		defer t.Done()
		fn()
	})
	return func() bool {
		if timer.Stop() {
			t.Done()
			return true
		}
		return false
	}
}

// OnIdle arranges for fn to run once the tracker reaches zero. If it is
// already idle fn runs right away. A later registration replaces an earlier
// one that has not fired.
func (t *Tracker) OnIdle(fn func()) {
	t.mu.Lock()
	t.onIdle = fn
	fire := t.takeIdleLocked()
	t.mu.Unlock()
	if fire != nil {
		fire()
	}
}

// Reset drops any pending idle callback. Outstanding work keeps counting.
func (t *Tracker) Reset() {
	t.mu.Lock()
	t.onIdle = nil
	t.mu.Unlock()
}

func (t *Tracker) takeIdleLocked() func() {
	if t.pending != 0 || t.onIdle == nil {
		return nil
	}
	fn := t.onIdle
	t.onIdle = nil
	return fn
}

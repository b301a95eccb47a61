package scheduler

import "context"

// Waiter reports whether a result must wait for background work.
type Waiter interface {
	WaitForPendingWork() bool
}

// Scheduler applies the wait-for-pending-work policy to a single send.
type Scheduler struct {
	tracker *Tracker
}

// New returns a Scheduler over tracker, or over a fresh Tracker when nil.
func New(tracker *Tracker) *Scheduler {
	if tracker == nil {
		tracker = NewTracker()
	}
	return &Scheduler{tracker: tracker}
}

// Tracker returns the pending-work counter sends wait on.
func (s *Scheduler) Tracker() *Tracker {
	return s.tracker
}

// Schedule runs send right away when w does not wait, or otherwise once the
// tracker is idle. It blocks until send has run and returns its error. If
// ctx ends first the pending send is dropped and ctx.Err is returned.
func (s *Scheduler) Schedule(ctx context.Context, w Waiter, send func() error) error {
	if w == nil || !w.WaitForPendingWork() {
		return send()
	}

	idle := make(chan struct{})
	s.tracker.OnIdle(func() { close(idle) })

	select {
	case <-idle:
		return send()
	case <-ctx.Done():
		s.tracker.Reset()
		return ctx.Err()
	}
}

// Reset clears any deferred send left over from a previous invocation.
func (s *Scheduler) Reset() {
	s.tracker.Reset()
}

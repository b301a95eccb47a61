package invocation

import "time"

// Clock is the time source used for remaining-time arithmetic.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to a Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// SystemClock reads the wall clock.
var SystemClock Clock = ClockFunc(time.Now)

// FixedClock always reports the given epoch millisecond.
func FixedClock(ms int64) Clock {
	return ClockFunc(func() time.Time { return time.UnixMilli(ms) })
}

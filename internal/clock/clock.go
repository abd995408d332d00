package clock

import "time"

// Clock is the source of wall time and one-shot timers.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a one-shot timer returned by Clock.AfterFunc.
//
// Stop reports whether the call prevented the function from running.
type Timer interface {
	Stop() bool
}

// System is the Clock backed by package time.
type System struct{}

// Now returns the current local time.
func (System) Now() time.Time {
	return time.Now()
}

// AfterFunc runs f in its own goroutine once d has elapsed.
func (System) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

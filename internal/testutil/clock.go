package testutil

import (
	"sort"
	"sync"
	"time"

	"github.com/roach88/pairledger/internal/clock"
)

// Epoch is the default start time of a ManualClock.
var Epoch = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

// ManualClock is a clock.Clock whose time only moves when the test says so.
//
// Timers fire synchronously inside Advance/Set, in deadline order (ties in
// registration order), on the calling goroutine. No internal lock is held
// while a timer function runs, so callbacks may use the clock.
//
// Thread-safety: all methods are safe for concurrent use.
type ManualClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*manualTimer
	nextID int64
}

var _ clock.Clock = (*ManualClock)(nil)

type manualTimer struct {
	c       *ManualClock
	id      int64
	at      time.Time
	f       func()
	stopped bool
	fired   bool
}

// NewManualClock creates a clock at Epoch.
func NewManualClock() *ManualClock {
	return NewManualClockAt(Epoch)
}

// NewManualClockAt creates a clock at t.
func NewManualClockAt(t time.Time) *ManualClock {
	return &ManualClock{now: t}
}

// Now returns the current manual time.
func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// AfterFunc registers f to run once the clock reaches Now()+d.
func (c *ManualClock) AfterFunc(d time.Duration, f func()) clock.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	t := &manualTimer{c: c, id: c.nextID, at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

// Advance moves the clock forward by d and fires every timer that came due.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	due := c.takeDueLocked()
	c.mu.Unlock()
	fire(due)
}

// Set moves the clock to t (never backwards) and fires due timers.
func (c *ManualClock) Set(t time.Time) {
	c.mu.Lock()
	if t.After(c.now) {
		c.now = t
	}
	due := c.takeDueLocked()
	c.mu.Unlock()
	fire(due)
}

// takeDueLocked removes and returns the timers due at c.now. Caller holds c.mu.
func (c *ManualClock) takeDueLocked() []*manualTimer {
	var due []*manualTimer
	remaining := c.timers[:0]
	for _, tm := range c.timers {
		switch {
		case tm.stopped:
		case !tm.at.After(c.now):
			tm.fired = true
			due = append(due, tm)
		default:
			remaining = append(remaining, tm)
		}
	}
	c.timers = remaining
	return due
}

func fire(due []*manualTimer) {
	sort.SliceStable(due, func(i, j int) bool {
		if due[i].at.Equal(due[j].at) {
			return due[i].id < due[j].id
		}
		return due[i].at.Before(due[j].at)
	})
	for _, tm := range due {
		tm.f()
	}
}

// Pending returns the number of armed timers.
func (c *ManualClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, tm := range c.timers {
		if !tm.stopped {
			n++
		}
	}
	return n
}

// Stop disarms the timer. It reports false if the timer already fired or was stopped.
func (t *manualTimer) Stop() bool {
	t.c.mu.Lock()
	defer t.c.mu.Unlock()
	if t.fired || t.stopped {
		return false
	}
	t.stopped = true
	return true
}

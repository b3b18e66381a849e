// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"slices"
	"sync"
	"time"
)

// FakeClock is a manually advanced Clock for tests. Time moves only
// through Advance. AfterFunc callbacks run on the goroutine that calls
// Advance, in deadline order, with no clock lock held, so a callback
// may call back into the clock.
type FakeClock struct {
	mu      sync.Mutex
	now     time.Time
	pending []*fakeTimer
	changed *sync.Cond
}

type fakeTimer struct {
	deadline time.Time
	// Exactly one of callback and ticks is set.
	callback func()
	ticks    chan time.Time
	period   time.Duration
	done     bool
}

// Fake returns a FakeClock that reads start until advanced.
func Fake(start time.Time) *FakeClock {
	clock := &FakeClock{now: start}
	clock.changed = sync.NewCond(&clock.mu)
	return clock
}

// Now returns the fake time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// AfterFunc registers f to run when the clock reaches now+d. A
// non-positive d runs f before AfterFunc returns.
func (c *FakeClock) AfterFunc(d time.Duration, f func()) *Timer {
	if d <= 0 {
		f()
		return &Timer{stop: func() bool { return false }}
	}
	c.mu.Lock()
	timer := &fakeTimer{deadline: c.now.Add(d), callback: f}
	c.pending = append(c.pending, timer)
	c.changed.Broadcast()
	c.mu.Unlock()
	return &Timer{stop: func() bool { return c.cancel(timer) }}
}

// NewTicker registers a periodic timer with period d.
func (c *FakeClock) NewTicker(d time.Duration) *Ticker {
	if d <= 0 {
		panic("clock: NewTicker period must be positive")
	}
	c.mu.Lock()
	timer := &fakeTimer{deadline: c.now.Add(d), ticks: make(chan time.Time, 1), period: d}
	c.pending = append(c.pending, timer)
	c.changed.Broadcast()
	c.mu.Unlock()
	return &Ticker{C: timer.ticks, stop: func() { c.cancel(timer) }}
}

func (c *FakeClock) cancel(timer *fakeTimer) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if timer.done {
		return false
	}
	timer.done = true
	c.pending = slices.DeleteFunc(c.pending, func(t *fakeTimer) bool { return t == timer })
	return true
}

// Advance moves the clock forward by d, firing every timer whose
// deadline is at or before the new time. A ticker whose period fits
// several times into d fires once per period; ticks beyond the
// channel buffer are dropped.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()

	for {
		timer, at, ok := c.popDue(target)
		if !ok {
			break
		}
		if timer.callback != nil {
			timer.callback()
			continue
		}
		select {
		case timer.ticks <- at:
		default:
		}
	}

	c.mu.Lock()
	c.now = target
	c.mu.Unlock()
}

// popDue removes the earliest timer due at or before target, moving
// the clock to its deadline. Tickers are rescheduled instead of
// removed.
func (c *FakeClock) popDue(target time.Time) (*fakeTimer, time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	index := -1
	for i, timer := range c.pending {
		if timer.deadline.After(target) {
			continue
		}
		if index < 0 || timer.deadline.Before(c.pending[index].deadline) {
			index = i
		}
	}
	if index < 0 {
		return nil, time.Time{}, false
	}

	timer := c.pending[index]
	at := timer.deadline
	c.now = at
	if timer.period > 0 {
		timer.deadline = at.Add(timer.period)
	} else {
		timer.done = true
		c.pending = slices.Delete(c.pending, index, index+1)
	}
	return timer, at, true
}

// WaitForTimers blocks until at least n timers or tickers are
// registered. Tests call it before Advance when the timer is created
// on another goroutine.
func (c *FakeClock) WaitForTimers(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for len(c.pending) < n {
		c.changed.Wait()
	}
}

// PendingCount returns the number of registered timers and tickers.
func (c *FakeClock) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

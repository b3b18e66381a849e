// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import "time"

// Clock is the subset of the time package the build console schedules
// against. Stream clients use AfterFunc for the connection deadline,
// the server uses NewTicker for heartbeats, and both stamp records
// with Now.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// AfterFunc calls f once d has elapsed. The returned Timer
	// cancels the call. A non-positive d runs f without waiting.
	AfterFunc(d time.Duration, f func()) *Timer

	// NewTicker delivers the current time on C every d. Panics if
	// d <= 0.
	NewTicker(d time.Duration) *Ticker
}

// Timer is a pending AfterFunc call.
type Timer struct {
	stop func() bool
}

// Stop cancels the pending call. It reports whether the call was
// still pending; false means f already ran or Stop was called before.
func (t *Timer) Stop() bool { return t.stop() }

// Ticker delivers periodic ticks on C. C has a buffer of one and drops
// ticks the reader has not consumed.
type Ticker struct {
	C <-chan time.Time

	stop func()
}

// Stop halts the ticker. C is not closed.
func (t *Ticker) Stop() { t.stop() }

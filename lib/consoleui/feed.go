// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package consoleui

import (
	"sync"

	"github.com/bureau-foundation/buildconsole/lib/buildstream"
)

// Feed hands stream snapshots from the client's callback goroutine to
// the UI. Publish never blocks. A slow reader sees the newest snapshot
// and skips the ones in between.
type Feed struct {
	mu      sync.Mutex
	latest  buildstream.State
	pending bool

	notify    chan struct{}
	closed    chan struct{}
	closeOnce sync.Once
}

// NewFeed returns an empty feed.
func NewFeed() *Feed {
	return &Feed{
		notify: make(chan struct{}, 1),
		closed: make(chan struct{}),
	}
}

// Publish records state as the newest snapshot. It has the signature
// of buildstream.Options.OnUpdate.
func (feed *Feed) Publish(state buildstream.State) {
	feed.mu.Lock()
	feed.latest = state
	feed.pending = true
	feed.mu.Unlock()

	select {
	case feed.notify <- struct{}{}:
	default:
	}
}

// Next blocks until a snapshot newer than the last one returned is
// available. It returns false once the feed is closed and drained.
func (feed *Feed) Next() (buildstream.State, bool) {
	for {
		if state, ok := feed.take(); ok {
			return state, true
		}
		select {
		case <-feed.notify:
		case <-feed.closed:
			return feed.take()
		}
	}
}

// Close releases any reader blocked in Next. It is safe to call more
// than once.
func (feed *Feed) Close() {
	feed.closeOnce.Do(func() { close(feed.closed) })
}

func (feed *Feed) take() (buildstream.State, bool) {
	feed.mu.Lock()
	defer feed.mu.Unlock()
	if !feed.pending {
		return buildstream.State{}, false
	}
	feed.pending = false
	return feed.latest, true
}

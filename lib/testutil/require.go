// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"testing"
	"time"
)

// Timeout bounds every wait in this package. It is a hang guard, not
// a synchronization mechanism: tests never rely on it elapsing.
const Timeout = 5 * time.Second

// RequireReceive returns the next value from ch or fails the test.
func RequireReceive[T any](t testing.TB, ch <-chan T, what string) T {
	t.Helper()
	select {
	case value, ok := <-ch:
		if !ok {
			t.Fatalf("%s: channel closed", what)
		}
		return value
	case <-time.After(Timeout):
		t.Fatalf("%s: nothing received within %v", what, Timeout)
	}
	panic("unreachable")
}

// RequireClosed waits for ch to close or fails the test.
func RequireClosed(t testing.TB, ch <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(Timeout):
		t.Fatalf("%s: not closed within %v", what, Timeout)
	}
}

// RequireEventually polls condition until it holds or fails the test.
func RequireEventually(t testing.TB, condition func() bool, what string) {
	t.Helper()
	deadline := time.Now().Add(Timeout)
	for !condition() {
		if time.Now().After(deadline) {
			t.Fatalf("%s: condition not met within %v", what, Timeout)
		}
		time.Sleep(time.Millisecond)
	}
}

// RequireNever checks that ch stays silent for window.
func RequireNever[T any](t testing.TB, ch <-chan T, window time.Duration, what string) {
	t.Helper()
	select {
	case <-ch:
		t.Fatalf("%s: unexpected receive", what)
	case <-time.After(window):
	}
}

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock abstracts the timers used by the build console so that
// connection deadlines and heartbeats can be driven deterministically.
//
// Components hold a Clock field set to Real() in production. Tests
// substitute Fake() and move time explicitly:
//
//	fake := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	client := buildstream.NewClient(transport, buildstream.Options{Clock: fake})
//	client.Start(ctx)
//	fake.WaitForTimers(1)
//	fake.Advance(10 * time.Second)
package clock

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil holds assertions for tests that coordinate with
// goroutines. Each helper fails the test after Timeout instead of
// letting a lost signal hang the test binary.
package testutil

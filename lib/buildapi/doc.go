// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package buildapi is a typed client for the /api/build REST
// endpoints: build configuration, history, aggregate metadata, the
// non-streaming run, and the diagnostic probe used to explain a
// failed stream connection.
//
// Callers pass a [Credential] explicitly; nothing is read from
// ambient state. [History] keeps a local mirror of the server's
// history with optimistic deletes.
package buildapi

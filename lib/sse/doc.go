// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package sse reads and writes the text/event-stream framing used by
// the build stream endpoint.
//
// [Reader] turns a response body into a sequence of [Event] values.
// [Writer] frames payloads onto an http.ResponseWriter and flushes
// after every event so the client sees output as the build produces
// it.
package sse

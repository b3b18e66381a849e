// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package buildstream consumes the build event stream and tracks the
// state of one run: its status, its accumulated output, and its
// categorized result.
//
// The package is split in two layers. [Session] is a reducer: it
// takes raw frames through [Session.Receive] and updates an explicit
// [State] without doing any I/O, so frame handling is testable on its
// own. [Client] owns the transport: it subscribes through a
// [Transport], enforces the connection deadline on an injected clock,
// diagnoses transport failures with a [Prober], and guarantees that
// every terminal path closes the stream exactly once.
//
// Two transports are provided: [SSETransport] for the text/event-stream
// endpoint and [WebSocketTransport] for the WebSocket endpoint. Both
// deliver one JSON StreamEvent per frame.
package buildstream

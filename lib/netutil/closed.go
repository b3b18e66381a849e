// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package netutil

import (
	"context"
	"errors"
	"io"
	"net"
	"syscall"
)

// IsExpectedCloseError reports whether err is an ordinary end of a
// connection: EOF, use of a closed connection, a broken pipe, a reset,
// or context cancellation. A stream reader sees these after its own
// Close and a stream writer sees them when the client goes away.
func IsExpectedCloseError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || errors.Is(err, context.Canceled) {
		return true
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno == syscall.EPIPE || errno == syscall.ECONNRESET
	}
	return false
}

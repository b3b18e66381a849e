// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package buildstream

import (
	"context"
	"fmt"

	"github.com/bureau-foundation/buildconsole/lib/buildapi"
)

// Transport opens the build event stream.
type Transport interface {
	// Subscribe connects and returns the stream. It blocks until the
	// server accepts or rejects the subscription, or ctx ends.
	Subscribe(ctx context.Context) (FrameStream, error)
}

// FrameStream yields the payload of each frame in arrival order.
type FrameStream interface {
	// Next blocks for the next frame. After the server ends the
	// stream it returns io.EOF; after Close it returns an error.
	Next() ([]byte, error)
	// Close releases the connection and unblocks a pending Next.
	Close() error
}

// Prober explains a transport failure. *buildapi.Client implements
// it.
type Prober interface {
	Probe(ctx context.Context) buildapi.Diagnosis
}

// TransportError is a rejected subscription: the server answered
// with a non-2xx status instead of a stream.
type TransportError struct {
	StatusCode int
	Message    string
}

func (err *TransportError) Error() string {
	if err.Message == "" {
		return fmt.Sprintf("buildstream: subscription rejected with HTTP %d", err.StatusCode)
	}
	return fmt.Sprintf("buildstream: subscription rejected with HTTP %d: %s", err.StatusCode, err.Message)
}

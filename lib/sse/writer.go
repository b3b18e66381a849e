// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sse

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
)

// ContentType is the media type of an event stream.
const ContentType = "text/event-stream"

// Writer frames events onto an HTTP response. It is not safe for
// concurrent use; callers serialize writes.
type Writer struct {
	out     io.Writer
	flusher http.Flusher
}

// NewWriter sets the event-stream response headers and writes the
// status line. It fails if the ResponseWriter cannot flush, since an
// unflushed stream delivers nothing until the build ends.
func NewWriter(w http.ResponseWriter) (*Writer, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("sse: response writer %T does not support flushing", w)
	}
	header := w.Header()
	header.Set("Content-Type", ContentType)
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	header.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()
	return &Writer{out: w, flusher: flusher}, nil
}

// WriteData sends data as a default-type event. Embedded newlines are
// split across several data lines so the reader reassembles the
// original payload.
func (w *Writer) WriteData(data []byte) error {
	var frame bytes.Buffer
	for _, line := range bytes.Split(data, []byte("\n")) {
		frame.WriteString("data: ")
		frame.Write(bytes.TrimSuffix(line, []byte("\r")))
		frame.WriteByte('\n')
	}
	frame.WriteByte('\n')
	if _, err := w.out.Write(frame.Bytes()); err != nil {
		return fmt.Errorf("sse: writing event: %w", err)
	}
	w.flusher.Flush()
	return nil
}

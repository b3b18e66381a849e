// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sse

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// MaxEventSize bounds the data accumulated for a single event. Build
// output arrives in pipe-sized chunks, so anything near this limit is
// a broken or hostile server.
const MaxEventSize = 8 << 20

// ErrEventTooLarge is returned by Next when an event exceeds
// MaxEventSize.
var ErrEventTooLarge = errors.New("sse: event exceeds size limit")

// Event is one dispatched server-sent event.
type Event struct {
	// Name is the "event:" field, empty for the default event type.
	Name string
	// ID is the "id:" field, empty if absent.
	ID string
	// Data is the concatenation of the event's "data:" lines joined
	// with newlines.
	Data string
}

// Reader parses events from a byte stream. Blank lines dispatch the
// pending event; comment lines (leading ':') and unknown fields are
// skipped. Both LF and CRLF line endings are accepted.
type Reader struct {
	source *bufio.Reader
	done   bool
}

// NewReader wraps source.
func NewReader(source io.Reader) *Reader {
	return &Reader{source: bufio.NewReaderSize(source, 64*1024)}
}

// Next returns the next event. At a clean end of stream it returns
// io.EOF; an event still open at EOF is dispatched first.
func (r *Reader) Next() (Event, error) {
	if r.done {
		return Event{}, io.EOF
	}

	var event Event
	var data strings.Builder
	haveData := false

	for {
		line, err := r.source.ReadString('\n')
		if err != nil {
			if !errors.Is(err, io.EOF) {
				return Event{}, fmt.Errorf("sse: reading stream: %w", err)
			}
			r.done = true
			if line == "" {
				if haveData {
					event.Data = data.String()
					return event, nil
				}
				return Event{}, io.EOF
			}
		}

		line = strings.TrimSuffix(line, "\n")
		line = strings.TrimSuffix(line, "\r")

		if line == "" {
			if haveData {
				event.Data = data.String()
				return event, nil
			}
			event = Event{}
			if r.done {
				return Event{}, io.EOF
			}
			continue
		}
		if line[0] == ':' {
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")

		switch field {
		case "data":
			if haveData {
				data.WriteByte('\n')
			}
			if data.Len()+len(value) > MaxEventSize {
				return Event{}, ErrEventTooLarge
			}
			data.WriteString(value)
			haveData = true
		case "event":
			event.Name = value
		case "id":
			event.ID = value
		}

		if r.done {
			if haveData {
				event.Data = data.String()
				return event, nil
			}
			return Event{}, io.EOF
		}
	}
}

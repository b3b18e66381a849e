// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package netutil holds the HTTP helpers shared by the build API
// client, the stream transports, and the reference server.
//
// Response helpers bound every read of a JSON response body at
// MaxResponseSize. Stream bodies are never read through them; the SSE
// reader applies its own per-event limit.
//
// IsExpectedCloseError separates ordinary disconnects from failures
// so that a client hanging up mid-build is not logged as an error.
package netutil

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// MaxResponseSize bounds JSON response reads. The largest legitimate
// response is a full history page, which carries the output of up to
// fifty builds.
const MaxResponseSize int64 = 64 << 20

// maxErrorBody bounds the text ErrorBody returns for messages.
const maxErrorBody = 4 << 10

// ReadResponse reads at most MaxResponseSize bytes of body.
func ReadResponse(body io.Reader) ([]byte, error) {
	return io.ReadAll(io.LimitReader(body, MaxResponseSize))
}

// DecodeResponse reads a bounded JSON body into v.
func DecodeResponse(body io.Reader, v any) error {
	data, err := ReadResponse(body)
	if err != nil {
		return fmt.Errorf("reading response body: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decoding response body: %w", err)
	}
	return nil
}

// ErrorBody extracts a message from an error response. A JSON
// {"error": "..."} envelope yields its message; any other body is
// returned as trimmed text. Read errors are ignored because a partial
// body still helps the message.
func ErrorBody(body io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(body, maxErrorBody))
	var envelope struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(data, &envelope) == nil {
		if envelope.Error != "" {
			return envelope.Error
		}
		if envelope.Message != "" {
			return envelope.Message
		}
	}
	return strings.TrimSpace(string(data))
}

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package buildstream

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"

	"github.com/bureau-foundation/buildconsole/lib/buildapi"
	"github.com/bureau-foundation/buildconsole/lib/netutil"
	"github.com/bureau-foundation/buildconsole/lib/sse"
)

// SSETransport subscribes to GET /api/build/run-stream. The API
// client's HTTP client must not set a Timeout, which would cut off
// long builds; the connection deadline is enforced by Client instead.
type SSETransport struct {
	api *buildapi.Client
}

// NewSSETransport returns a transport that authenticates the same way
// as api.
func NewSSETransport(api *buildapi.Client) *SSETransport {
	return &SSETransport{api: api}
}

func (transport *SSETransport) Subscribe(ctx context.Context) (FrameStream, error) {
	request, err := transport.api.NewRequest(ctx, http.MethodGet, buildapi.PathRunStream, nil)
	if err != nil {
		return nil, err
	}
	request.Header.Set("Accept", sse.ContentType)
	request.Header.Set("Cache-Control", "no-cache")

	response, err := transport.api.HTTPClient().Do(request)
	if err != nil {
		return nil, fmt.Errorf("buildstream: connecting to %s: %w", buildapi.PathRunStream, err)
	}
	if response.StatusCode < 200 || response.StatusCode >= 300 {
		message := netutil.ErrorBody(response.Body)
		response.Body.Close()
		return nil, &TransportError{StatusCode: response.StatusCode, Message: message}
	}
	if mediaType, _, _ := mime.ParseMediaType(response.Header.Get("Content-Type")); mediaType != sse.ContentType {
		response.Body.Close()
		return nil, fmt.Errorf("buildstream: %s answered with content type %q", buildapi.PathRunStream, mediaType)
	}
	return &sseStream{body: response.Body, reader: sse.NewReader(response.Body)}, nil
}

type sseStream struct {
	body   io.ReadCloser
	reader *sse.Reader
}

func (stream *sseStream) Next() ([]byte, error) {
	event, err := stream.reader.Next()
	if err != nil {
		return nil, err
	}
	return []byte(event.Data), nil
}

func (stream *sseStream) Close() error { return stream.body.Close() }

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package buildstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"

	"github.com/bureau-foundation/buildconsole/lib/buildapi"
	"github.com/bureau-foundation/buildconsole/lib/netutil"
	"github.com/bureau-foundation/buildconsole/lib/sse"
)

// WebSocketTransport subscribes to the build stream over WebSocket at
// /api/build/ws. Each text message carries one StreamEvent.
type WebSocketTransport struct {
	api    *buildapi.Client
	dialer *websocket.Dialer
}

// NewWebSocketTransport returns a transport that derives its ws:// or
// wss:// URL from api's base URL and sends api's credential with the
// handshake.
func NewWebSocketTransport(api *buildapi.Client) *WebSocketTransport {
	return &WebSocketTransport{
		api: api,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 30 * time.Second,
		},
	}
}

// WebSocketURL converts an http(s) base URL and path into the
// matching ws(s) URL.
func WebSocketURL(baseURL, path string) (string, error) {
	parsed, err := url.Parse(baseURL + path)
	if err != nil {
		return "", fmt.Errorf("buildstream: parsing %q: %w", baseURL, err)
	}
	switch parsed.Scheme {
	case "http":
		parsed.Scheme = "ws"
	case "https":
		parsed.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("buildstream: unsupported scheme %q", parsed.Scheme)
	}
	return parsed.String(), nil
}

func (transport *WebSocketTransport) Subscribe(ctx context.Context) (FrameStream, error) {
	target, err := WebSocketURL(transport.api.BaseURL(), buildapi.PathWebSocket)
	if err != nil {
		return nil, err
	}
	header := http.Header{}
	transport.api.Credential().Apply(header)

	conn, response, err := transport.dialer.DialContext(ctx, target, header)
	if err != nil {
		if response != nil && errors.Is(err, websocket.ErrBadHandshake) {
			defer response.Body.Close()
			return nil, &TransportError{StatusCode: response.StatusCode, Message: netutil.ErrorBody(response.Body)}
		}
		return nil, fmt.Errorf("buildstream: dialing %s: %w", target, err)
	}
	conn.SetReadLimit(sse.MaxEventSize)
	return &webSocketStream{conn: conn}, nil
}

type webSocketStream struct {
	conn *websocket.Conn
}

func (stream *webSocketStream) Next() ([]byte, error) {
	for {
		messageType, data, err := stream.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil, io.EOF
			}
			return nil, err
		}
		if messageType == websocket.TextMessage {
			return data, nil
		}
	}
}

func (stream *webSocketStream) Close() error { return stream.conn.Close() }

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package buildserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/bureau-foundation/buildconsole/lib/netutil"
	"github.com/bureau-foundation/buildconsole/lib/schema/build"
	"github.com/bureau-foundation/buildconsole/lib/sse"
)

// webSocketWriteTimeout bounds each frame written to a WebSocket
// client.
const webSocketWriteTimeout = 10 * time.Second

// eventSink delivers stream events to one client. streamBuild
// serializes calls.
type eventSink interface {
	send(event build.StreamEvent) error
}

type sseSink struct {
	writer *sse.Writer
}

func (sink sseSink) send(event build.StreamEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encoding %s event: %w", event.Type, err)
	}
	return sink.writer.WriteData(data)
}

type webSocketSink struct {
	conn *websocket.Conn
	now  func() time.Time
}

func (sink webSocketSink) send(event build.StreamEvent) error {
	if err := sink.conn.SetWriteDeadline(sink.now().Add(webSocketWriteTimeout)); err != nil {
		return err
	}
	return sink.conn.WriteJSON(event)
}

// runStream runs a build and reports it as Server-Sent Events.
func (server *Server) runStream(writer http.ResponseWriter, request *http.Request) {
	if !server.building.TryLock() {
		writeError(writer, http.StatusConflict, "A build is already running")
		return
	}
	defer server.building.Unlock()

	events, err := sse.NewWriter(writer)
	if err != nil {
		server.logger.Error("opening event stream", "error", err)
		writeError(writer, http.StatusInternalServerError, "Streaming unsupported")
		return
	}
	ctx, cancel := context.WithCancel(request.Context())
	defer cancel()
	server.streamBuild(ctx, cancel, sseSink{writer: events}, request)
}

// runWebSocket runs a build and reports it as JSON text messages on an
// upgraded connection.
func (server *Server) runWebSocket(writer http.ResponseWriter, request *http.Request) {
	if !server.building.TryLock() {
		writeError(writer, http.StatusConflict, "A build is already running")
		return
	}
	defer server.building.Unlock()

	conn, err := server.upgrader.Upgrade(writer, request, nil)
	if err != nil {
		// Upgrade has already answered the request.
		server.logger.Debug("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(request.Context())
	defer cancel()

	// The client sends nothing, but reading is what processes its
	// close frame and pings. A read error means it went away.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if !netutil.IsExpectedCloseError(err) && websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					server.logger.Debug("websocket read", "error", err)
				}
				return
			}
		}
	}()

	server.streamBuild(ctx, cancel, webSocketSink{conn: conn, now: server.clock.Now}, request)

	closing := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "build finished")
	_ = conn.WriteControl(websocket.CloseMessage, closing, server.clock.Now().Add(webSocketWriteTimeout))
}

// streamBuild runs one build, sending start, output and error chunks,
// periodic heartbeats, complete, and finally categorized. A failed
// write cancels ctx, which stops the build; the record is saved
// regardless.
func (server *Server) streamBuild(ctx context.Context, cancel context.CancelFunc, sink eventSink, request *http.Request) {
	var sendMu sync.Mutex
	broken := false
	send := func(event build.StreamEvent) {
		sendMu.Lock()
		defer sendMu.Unlock()
		if broken {
			return
		}
		if err := sink.send(event); err != nil {
			broken = true
			server.logger.Info("build stream client went away", "event", event.Type, "error", err)
			cancel()
		}
	}

	config := server.currentConfig()
	id := "stream_build_" + uuid.NewString()
	start := server.clock.Now()
	server.logger.Info("streaming build started", "build_id", id, "dry_run", config.DryRun, "by", triggeredBy(request))

	send(build.StreamEvent{Type: build.EventStart, Message: fmt.Sprintf("Starting build %s...", id), BuildID: id})

	ticker := server.clock.NewTicker(server.heartbeat)
	stopHeartbeat := make(chan struct{})
	var heartbeats sync.WaitGroup
	heartbeats.Add(1)
	go func() {
		defer heartbeats.Done()
		for {
			select {
			case tick := <-ticker.C:
				send(build.StreamEvent{Type: build.EventHeartbeat, Timestamp: &tick})
			case <-stopHeartbeat:
				return
			}
		}
	}()

	var output strings.Builder
	outcome := server.runner.Run(ctx, config, func(chunk Chunk) {
		output.WriteString(chunk.Data)
		event := build.StreamEvent{Type: build.EventOutput, Data: chunk.Data}
		if chunk.Kind == Stderr {
			event.Type = build.EventError
		}
		send(event)
	})

	ticker.Stop()
	close(stopHeartbeat)
	heartbeats.Wait()

	duration := server.clock.Now().Sub(start).Milliseconds()
	categorized := server.categorize(output.String(), outcome, duration)

	send(build.StreamEvent{
		Type:            build.EventComplete,
		Success:         outcome.Success,
		Error:           outcome.Error,
		Duration:        duration,
		BuildID:         id,
		CategorizedData: &categorized,
	})

	server.record(request, build.Log{
		ID:          id,
		Timestamp:   start,
		Config:      config,
		Success:     outcome.Success,
		Output:      output.String(),
		Error:       outcome.Error,
		Duration:    duration,
		TriggeredBy: triggeredBy(request),
		Categorized: &categorized,
	})

	send(build.StreamEvent{Type: build.EventCategorized, CategorizedData: &categorized})
}

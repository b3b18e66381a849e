// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package buildstream

import (
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/bureau-foundation/buildconsole/lib/categorize"
	"github.com/bureau-foundation/buildconsole/lib/schema/build"
)

// Messages for terminal conditions the client detects itself.
const (
	MessageTimeout         = "Build stream connection timeout - please check server status"
	MessageTransportFailed = "Build stream connection failed"
	MessageBuildFailed     = "Build failed"
	MessageStopped         = "Build stopped"
)

// ErrorPrefix marks output that arrived in an error event.
const ErrorPrefix = "[ERROR] "

// Failure classifies how a run ended in error.
type Failure string

const (
	FailureNone      Failure = ""
	FailureTimeout   Failure = "timeout"
	FailureTransport Failure = "transport"
	FailureBuild     Failure = "build"
	FailureStopped   Failure = "stopped"
)

// State is the observable state of one run. Categorized is never
// modified after it is set, so copies of State may share it.
type State struct {
	Status      build.Status
	Output      string
	Categorized *build.Categorized
	// Failure and Message describe an error status; both are empty
	// while the run is healthy or after success.
	Failure Failure
	Message string
	// BuildID is the server's identifier for the run, if it sent one.
	BuildID string
}

// Effect tells the transport owner what a frame did.
type Effect int

const (
	// EffectNone: the frame was applied (or ignored) and the run
	// continues.
	EffectNone Effect = iota
	// EffectParseError: the frame was not valid JSON and was skipped.
	EffectParseError
	// EffectFinished: the frame was the terminal complete event. The
	// owner closes the transport.
	EffectFinished
)

func (effect Effect) String() string {
	switch effect {
	case EffectNone:
		return "none"
	case EffectParseError:
		return "parse_error"
	case EffectFinished:
		return "finished"
	}
	return "unknown"
}

// Session applies stream frames to a State. It is not safe for
// concurrent use; Client serializes access.
type Session struct {
	state    State
	output   strings.Builder
	terminal bool
	logger   *slog.Logger
}

// NewSession returns an idle session. A nil logger discards.
func NewSession(logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Session{state: State{Status: build.StatusIdle}, logger: logger}
}

// Begin resets the session for a new run: output empty, no
// categorized data, status running.
func (session *Session) Begin() {
	session.state = State{Status: build.StatusRunning}
	session.output.Reset()
	session.terminal = false
}

// State returns a copy of the current state.
func (session *Session) State() State {
	state := session.state
	state.Output = session.output.String()
	return state
}

// Receive applies one frame. A malformed frame is logged and skipped
// without touching the state. Frames after the run has ended are
// ignored.
func (session *Session) Receive(frame []byte) Effect {
	if session.terminal {
		return EffectNone
	}
	var event build.StreamEvent
	if err := json.Unmarshal(frame, &event); err != nil {
		session.logger.Warn("skipping malformed stream frame", "error", err, "size", len(frame))
		return EffectParseError
	}
	if event.BuildID != "" {
		session.state.BuildID = event.BuildID
	}

	switch event.Type {
	case build.EventStart:
		session.output.WriteString(event.Message)
		session.output.WriteByte('\n')
	case build.EventOutput:
		session.output.WriteString(event.Data)
	case build.EventError:
		session.output.WriteString(ErrorPrefix)
		session.output.WriteString(event.Data)
	case build.EventStatus:
		status, ok := build.ParseStatus(event.Status)
		if !ok {
			session.logger.Warn("ignoring unknown build status", "status", event.Status)
			return EffectNone
		}
		session.state.Status = status
	case build.EventHeartbeat:
	case build.EventCategorized:
		if event.CategorizedData != nil {
			session.acceptCategorized(event.CategorizedData)
		}
	case build.EventComplete:
		session.complete(event)
		return EffectFinished
	default:
		session.logger.Debug("ignoring unknown stream event", "type", event.Type)
	}
	return EffectNone
}

func (session *Session) complete(event build.StreamEvent) {
	session.terminal = true
	if event.Success {
		session.state.Status = build.StatusSuccess
	} else {
		session.state.Status = build.StatusError
		session.state.Failure = FailureBuild
		session.state.Message = MessageBuildFailed
		if event.Error != "" {
			session.state.Message = event.Error
		}
	}

	switch {
	case event.CategorizedData != nil:
		session.acceptCategorized(event.CategorizedData)
	case session.state.Categorized == nil:
		fallback := categorize.Classify(session.output.String(), session.state.Status)
		session.state.Categorized = &fallback
	}
}

// acceptCategorized stores server-supplied categorized data as sent.
// Summary counts that disagree with the lists are logged, not fixed.
func (session *Session) acceptCategorized(data *build.Categorized) {
	if err := data.CheckSummary(); err != nil {
		session.logger.Warn("categorized data summary disagrees with its lists", "error", err)
	}
	session.state.Categorized = data
}

// Fail ends the run with an error the client detected itself. It
// reports false, changing nothing, if the run had already ended.
func (session *Session) Fail(failure Failure, message string) bool {
	if session.terminal {
		return false
	}
	session.terminal = true
	session.state.Status = build.StatusError
	session.state.Failure = failure
	session.state.Message = message
	return true
}

// Refine replaces the message of a transport failure with a more
// specific diagnosis. Any other state is left alone, so a late probe
// result can never rewrite a different outcome.
func (session *Session) Refine(message string) bool {
	if session.state.Failure != FailureTransport || message == "" {
		return false
	}
	session.state.Message = message
	return true
}

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package buildstream

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bureau-foundation/buildconsole/lib/buildapi"
	"github.com/bureau-foundation/buildconsole/lib/clock"
	"github.com/bureau-foundation/buildconsole/lib/schema/build"
	"github.com/bureau-foundation/buildconsole/lib/testutil"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

// fakeStream is a FrameStream fed by the test.
type fakeStream struct {
	frames   chan []byte
	failures chan error
	closes   atomic.Int32
	closed   chan struct{}
}

func newFakeStream() *fakeStream {
	return &fakeStream{
		frames:   make(chan []byte, 16),
		failures: make(chan error, 1),
		closed:   make(chan struct{}),
	}
}

func (stream *fakeStream) send(frame string) { stream.frames <- []byte(frame) }

func (stream *fakeStream) Next() ([]byte, error) {
	select {
	case frame, ok := <-stream.frames:
		if !ok {
			return nil, io.EOF
		}
		return frame, nil
	case err := <-stream.failures:
		return nil, err
	case <-stream.closed:
		return nil, net.ErrClosed
	}
}

func (stream *fakeStream) Close() error {
	if stream.closes.Add(1) == 1 {
		close(stream.closed)
	}
	return nil
}

// fakeTransport hands out one stream per Subscribe. If hold is set,
// Subscribe blocks until hold closes or ctx ends.
type fakeTransport struct {
	stream     *fakeStream
	err        error
	hold       chan struct{}
	subscribed chan struct{}
}

func newFakeTransport(stream *fakeStream) *fakeTransport {
	return &fakeTransport{stream: stream, subscribed: make(chan struct{}, 4)}
}

func (transport *fakeTransport) Subscribe(ctx context.Context) (FrameStream, error) {
	transport.subscribed <- struct{}{}
	if transport.hold != nil {
		select {
		case <-transport.hold:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if transport.err != nil {
		return nil, transport.err
	}
	return transport.stream, nil
}

type fakeProber struct {
	diagnosis buildapi.Diagnosis
	release   chan struct{}
	calls     atomic.Int32
}

func (prober *fakeProber) Probe(ctx context.Context) buildapi.Diagnosis {
	prober.calls.Add(1)
	if prober.release != nil {
		select {
		case <-prober.release:
		case <-ctx.Done():
			return buildapi.Diagnosis{Cause: buildapi.CauseUnreachable, Message: buildapi.MessageUnreachable}
		}
	}
	return prober.diagnosis
}

// recorder collects callback invocations.
type recorder struct {
	mu        sync.Mutex
	updates   []State
	completes []State
	updated   chan State
}

func newRecorder() *recorder {
	return &recorder{updated: make(chan State, 64)}
}

func (rec *recorder) options(fake *clock.FakeClock) Options {
	return Options{
		Clock: fake,
		OnUpdate: func(state State) {
			rec.mu.Lock()
			rec.updates = append(rec.updates, state)
			rec.mu.Unlock()
			rec.updated <- state
		},
		OnComplete: func(state State) {
			rec.mu.Lock()
			rec.completes = append(rec.completes, state)
			rec.mu.Unlock()
		},
	}
}

func (rec *recorder) completeCount() int {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return len(rec.completes)
}

// awaitUpdate waits for an update matching condition.
func (rec *recorder) awaitUpdate(t *testing.T, what string, condition func(State) bool) State {
	t.Helper()
	for {
		state := testutil.RequireReceive(t, rec.updated, what)
		if condition(state) {
			return state
		}
	}
}

func waitFinal(t *testing.T, client *Client) State {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), testutil.Timeout)
	defer cancel()
	state, err := client.Wait(ctx)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	return state
}

func TestClientCompletesRun(t *testing.T) {
	t.Parallel()
	fake := clock.Fake(epoch)
	stream := newFakeStream()
	rec := newRecorder()
	client := NewClient(newFakeTransport(stream), rec.options(fake))

	if err := client.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	stream.send(`{"type":"start","message":"Building..."}`)
	stream.send(`{"type":"output","data":"step1\n"}`)
	stream.send(`{"type":"complete","success":true,"categorizedData":{"summary":{"bugsFixed":1},"bugsFixed":[{"type":"bug","message":"FIX: x"}]}}`)

	state := waitFinal(t, client)
	if state.Status != build.StatusSuccess || state.Output != "Building...\nstep1\n" {
		t.Errorf("state = %+v", state)
	}
	if state.Categorized == nil || state.Categorized.Summary.BugsFixed != 1 {
		t.Errorf("Categorized = %+v", state.Categorized)
	}
	if got := stream.closes.Load(); got != 1 {
		t.Errorf("stream closed %d times, want 1", got)
	}
	if got := rec.completeCount(); got != 1 {
		t.Errorf("OnComplete called %d times, want 1", got)
	}
	if client.Running() {
		t.Error("Running after complete")
	}

	// The deadline was cancelled by the first frame.
	fake.Advance(time.Minute)
	if got := client.State(); got.Status != build.StatusSuccess {
		t.Errorf("status after deadline = %s", got.Status)
	}

	// Stop after completion changes nothing and closes nothing.
	client.Stop()
	client.Stop()
	if got := client.State(); got.Status != build.StatusSuccess || got.Message != "" {
		t.Errorf("state after Stop = %+v", got)
	}
	if got := stream.closes.Load(); got != 1 {
		t.Errorf("stream closed %d times after Stop, want 1", got)
	}
}

func TestClientUpdatesArriveInOrder(t *testing.T) {
	t.Parallel()
	stream := newFakeStream()
	rec := newRecorder()
	client := NewClient(newFakeTransport(stream), rec.options(clock.Fake(epoch)))
	if err := client.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	for _, data := range []string{"a", "b", "c", "d"} {
		stream.send(`{"type":"output","data":"` + data + `"}`)
	}
	stream.send(`{"type":"complete","success":true}`)
	waitFinal(t, client)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	first := rec.updates[0]
	if first.Status != build.StatusRunning || first.Output != "" {
		t.Errorf("first update = %+v, want running with empty output", first)
	}
	for i := 1; i < len(rec.updates); i++ {
		if len(rec.updates[i].Output) < len(rec.updates[i-1].Output) {
			t.Fatalf("update %d output %q shorter than previous %q", i, rec.updates[i].Output, rec.updates[i-1].Output)
		}
	}
	if last := rec.updates[len(rec.updates)-1]; last.Output != "abcd" || last.Status != build.StatusSuccess {
		t.Errorf("last update = %+v", last)
	}
}

func TestClientConnectTimeout(t *testing.T) {
	t.Parallel()
	fake := clock.Fake(epoch)
	stream := newFakeStream()
	transport := newFakeTransport(stream)
	rec := newRecorder()
	client := NewClient(transport, rec.options(fake))

	if err := client.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	testutil.RequireReceive(t, transport.subscribed, "subscribe")

	fake.Advance(DefaultConnectTimeout - time.Millisecond)
	if client.State().Status != build.StatusRunning {
		t.Fatal("timed out early")
	}
	fake.Advance(time.Millisecond)

	state := waitFinal(t, client)
	if state.Status != build.StatusError || state.Failure != FailureTimeout || state.Message != MessageTimeout {
		t.Errorf("state = %+v", state)
	}
	testutil.RequireClosed(t, stream.closed, "stream close after timeout")
	if client.Running() {
		t.Error("Running after timeout")
	}
	if got := stream.closes.Load(); got != 1 {
		t.Errorf("stream closed %d times, want 1", got)
	}
	if rec.completeCount() != 0 {
		t.Error("OnComplete called for a timeout")
	}
}

func TestClientTimeoutWhileSubscribing(t *testing.T) {
	t.Parallel()
	fake := clock.Fake(epoch)
	transport := newFakeTransport(newFakeStream())
	transport.hold = make(chan struct{})
	client := NewClient(transport, Options{Clock: fake})

	if err := client.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	testutil.RequireReceive(t, transport.subscribed, "subscribe")
	fake.Advance(DefaultConnectTimeout)

	state := waitFinal(t, client)
	if state.Failure != FailureTimeout {
		t.Errorf("Failure = %s, want timeout", state.Failure)
	}
	// The subscription's context was cancelled; nothing was opened,
	// so nothing is closed.
	if got := transport.stream.closes.Load(); got != 0 {
		t.Errorf("stream closed %d times, want 0", got)
	}
}

func TestClientHeartbeatCancelsTimeout(t *testing.T) {
	t.Parallel()
	for name, frame := range map[string]string{
		"heartbeat": `{"type":"heartbeat"}`,
		"malformed": `{"type":`,
	} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			fake := clock.Fake(epoch)
			stream := newFakeStream()
			rec := newRecorder()
			client := NewClient(newFakeTransport(stream), rec.options(fake))
			if err := client.Start(context.Background()); err != nil {
				t.Fatal(err)
			}
			stream.send(frame)
			testutil.RequireEventually(t, func() bool { return fake.PendingCount() == 0 }, "deadline cancelled")

			fake.Advance(time.Hour)
			if state := client.State(); state.Status != build.StatusRunning || state.Failure != FailureNone {
				t.Errorf("state after deadline = %+v", state)
			}
			if got := stream.closes.Load(); got != 0 {
				t.Errorf("stream closed %d times", got)
			}
			client.Stop()
		})
	}
}

func TestClientStartWhileRunning(t *testing.T) {
	t.Parallel()
	stream := newFakeStream()
	client := NewClient(newFakeTransport(stream), Options{Clock: clock.Fake(epoch)})
	if err := client.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := client.Start(context.Background()); !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("second Start = %v, want ErrAlreadyRunning", err)
	}
	client.Stop()
}

func TestClientStopIsIdempotent(t *testing.T) {
	t.Parallel()
	stream := newFakeStream()
	transport := newFakeTransport(stream)
	client := NewClient(transport, Options{Clock: clock.Fake(epoch)})

	client.Stop()
	client.Stop()
	if state := client.State(); state.Status != build.StatusIdle {
		t.Errorf("Stop before Start changed status to %s", state.Status)
	}
	testutil.RequireClosed(t, client.Done(), "Done before Start")

	if err := client.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	stream.send(`{"type":"output","data":"partial"}`)
	testutil.RequireEventually(t, func() bool { return client.State().Output == "partial" }, "output applied")

	client.Stop()
	client.Stop()
	state := waitFinal(t, client)
	if state.Status != build.StatusError || state.Failure != FailureStopped || state.Message != MessageStopped {
		t.Errorf("state = %+v", state)
	}
	if state.Output != "partial" {
		t.Errorf("Output = %q, want preserved", state.Output)
	}
	if got := stream.closes.Load(); got != 1 {
		t.Errorf("stream closed %d times, want 1", got)
	}
}

func TestClientRestartAfterTerminal(t *testing.T) {
	t.Parallel()
	first := newFakeStream()
	transport := newFakeTransport(first)
	client := NewClient(transport, Options{Clock: clock.Fake(epoch)})

	if err := client.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	first.send(`{"type":"output","data":"old"}`)
	first.send(`{"type":"complete","success":false}`)
	waitFinal(t, client)

	second := newFakeStream()
	transport.stream = second
	if err := client.Start(context.Background()); err != nil {
		t.Fatalf("restart: %v", err)
	}
	if state := client.State(); state.Output != "" || state.Status != build.StatusRunning || state.Categorized != nil {
		t.Errorf("state after restart = %+v", state)
	}
	second.send(`{"type":"complete","success":true}`)
	if state := waitFinal(t, client); state.Status != build.StatusSuccess {
		t.Errorf("second run status = %s", state.Status)
	}
}

func TestClientTransportFailureIsDiagnosed(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name      string
		diagnosis buildapi.Diagnosis
	}{
		{"unauthenticated", buildapi.DiagnoseStatus(http.StatusUnauthorized, "")},
		{"forbidden", buildapi.DiagnoseStatus(http.StatusForbidden, "")},
		{"server error", buildapi.DiagnoseStatus(http.StatusBadGateway, "502 Bad Gateway")},
		{"connectivity", buildapi.DiagnoseStatus(http.StatusOK, "200 OK")},
		{"unreachable", buildapi.Diagnosis{Cause: buildapi.CauseUnreachable, Message: buildapi.MessageUnreachable}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			stream := newFakeStream()
			prober := &fakeProber{diagnosis: test.diagnosis}
			rec := newRecorder()
			options := rec.options(clock.Fake(epoch))
			options.Prober = prober
			client := NewClient(newFakeTransport(stream), options)

			if err := client.Start(context.Background()); err != nil {
				t.Fatal(err)
			}
			stream.send(`{"type":"output","data":"x"}`)
			stream.failures <- errors.New("connection reset")

			state := waitFinal(t, client)
			if state.Status != build.StatusError || state.Failure != FailureTransport {
				t.Errorf("state = %+v", state)
			}
			if state.Message != test.diagnosis.Message {
				t.Errorf("Message = %q, want %q", state.Message, test.diagnosis.Message)
			}
			if got := stream.closes.Load(); got != 1 {
				t.Errorf("stream closed %d times, want 1", got)
			}
			if rec.completeCount() != 0 {
				t.Error("OnComplete called for a transport failure")
			}
		})
	}
}

func TestClientProbeOnlyRefinesMessage(t *testing.T) {
	t.Parallel()
	stream := newFakeStream()
	prober := &fakeProber{
		diagnosis: buildapi.DiagnoseStatus(http.StatusUnauthorized, ""),
		release:   make(chan struct{}),
	}
	rec := newRecorder()
	options := rec.options(clock.Fake(epoch))
	options.Prober = prober
	client := NewClient(newFakeTransport(stream), options)

	if err := client.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	close(stream.frames)

	// Terminal before the probe answers, with the generic message.
	testutil.RequireClosed(t, client.Done(), "run ended")
	state := client.State()
	if state.Status != build.StatusError || state.Message != MessageTransportFailed {
		t.Errorf("state before diagnosis = %+v", state)
	}
	if client.Running() {
		t.Error("Running while probe pending")
	}

	close(prober.release)
	state = rec.awaitUpdate(t, "refined update", func(s State) bool { return s.Message == buildapi.MessageUnauthenticated })
	if state.Status != build.StatusError {
		t.Errorf("probe changed status to %s", state.Status)
	}
}

func TestClientStopCancelsProbe(t *testing.T) {
	t.Parallel()
	stream := newFakeStream()
	prober := &fakeProber{diagnosis: buildapi.DiagnoseStatus(http.StatusForbidden, ""), release: make(chan struct{})}
	client := NewClient(newFakeTransport(stream), Options{Clock: clock.Fake(epoch), Prober: prober})

	if err := client.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	stream.failures <- errors.New("boom")
	testutil.RequireClosed(t, client.Done(), "run ended")
	testutil.RequireEventually(t, func() bool { return prober.calls.Load() == 1 }, "probe started")

	client.Stop()
	state := waitFinal(t, client)
	if state.Message != MessageTransportFailed {
		t.Errorf("Message = %q, want unrefined after Stop", state.Message)
	}
}

func TestClientRejectedSubscription(t *testing.T) {
	t.Parallel()
	transport := newFakeTransport(nil)
	transport.err = &TransportError{StatusCode: http.StatusForbidden}
	prober := &fakeProber{}
	client := NewClient(transport, Options{Clock: clock.Fake(epoch), Prober: prober})

	if err := client.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	state := waitFinal(t, client)
	if state.Failure != FailureTransport || state.Message != buildapi.MessageForbidden {
		t.Errorf("state = %+v", state)
	}
	if prober.calls.Load() != 0 {
		t.Error("probe ran although the rejection carried a status")
	}
}

func TestClientContextCancelStops(t *testing.T) {
	t.Parallel()
	stream := newFakeStream()
	client := NewClient(newFakeTransport(stream), Options{Clock: clock.Fake(epoch)})
	ctx, cancel := context.WithCancel(context.Background())

	if err := client.Start(ctx); err != nil {
		t.Fatal(err)
	}
	cancel()
	state := waitFinal(t, client)
	if state.Failure != FailureStopped {
		t.Errorf("Failure = %s, want stopped", state.Failure)
	}
	testutil.RequireEventually(t, func() bool { return stream.closes.Load() == 1 }, "stream closed")
}

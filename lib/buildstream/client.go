// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package buildstream

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/bureau-foundation/buildconsole/lib/buildapi"
	"github.com/bureau-foundation/buildconsole/lib/clock"
	"github.com/bureau-foundation/buildconsole/lib/netutil"
)

// DefaultConnectTimeout is how long a new stream may stay silent
// before the client gives up on it.
const DefaultConnectTimeout = 10 * time.Second

// ErrAlreadyRunning is returned by Start while a run is active.
var ErrAlreadyRunning = errors.New("buildstream: a build stream is already open")

// Options configures a Client. The zero value is usable.
type Options struct {
	// Clock drives the connection deadline. Defaults to clock.Real().
	Clock clock.Clock

	// ConnectTimeout is the deadline for the first frame. Defaults
	// to DefaultConnectTimeout.
	ConnectTimeout time.Duration

	// Prober, if set, is consulted after a transport failure to
	// refine the error message. The probe runs concurrently and
	// never changes the status.
	Prober Prober

	// Logger defaults to a discard logger.
	Logger *slog.Logger

	// OnUpdate receives a snapshot after every state change.
	// Callbacks are serialized and run in the order the changes
	// happened, outside the client's lock. They must not call Start
	// or Stop.
	OnUpdate func(State)

	// OnComplete is called exactly once per run that ends with a
	// complete frame, after OnUpdate for that frame. Runs that end
	// by timeout, transport failure, or Stop do not call it.
	OnComplete func(State)
}

// Client runs build streams one at a time. All methods are safe for
// concurrent use.
type Client struct {
	transport  Transport
	clock      clock.Clock
	timeout    time.Duration
	prober     Prober
	logger     *slog.Logger
	onUpdate   func(State)
	onComplete func(State)

	mu      sync.Mutex
	session *Session
	current *run

	// notifyMu is acquired before mu is released when publishing,
	// which keeps callbacks in state order.
	notifyMu sync.Mutex
}

// run is the transport-side bookkeeping of one Start call. Fields are
// guarded by Client.mu.
type run struct {
	ctx          context.Context
	cancel       context.CancelFunc
	stopWatch    func() bool
	timer        *clock.Timer
	stream       FrameStream
	streamClosed bool
	gotFrame     bool
	ended        bool
	probeCancel  context.CancelFunc
	// done closes when the run reaches a terminal status; settled
	// closes once any diagnosis has also finished.
	done    chan struct{}
	settled chan struct{}
}

// NewClient returns an idle client reading from transport.
func NewClient(transport Transport, options Options) *Client {
	if options.Clock == nil {
		options.Clock = clock.Real()
	}
	if options.ConnectTimeout <= 0 {
		options.ConnectTimeout = DefaultConnectTimeout
	}
	if options.Logger == nil {
		options.Logger = slog.New(slog.DiscardHandler)
	}
	return &Client{
		transport:  transport,
		clock:      options.Clock,
		timeout:    options.ConnectTimeout,
		prober:     options.Prober,
		logger:     options.Logger,
		onUpdate:   options.OnUpdate,
		onComplete: options.OnComplete,
		session:    NewSession(options.Logger),
	}
}

// Start opens a stream for a new run. In the same step it clears the
// output and sets the status to running. It returns ErrAlreadyRunning
// if the previous run has not ended. Cancelling ctx stops the run.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	if previous := c.current; previous != nil {
		if !previous.ended {
			c.mu.Unlock()
			return ErrAlreadyRunning
		}
		if previous.probeCancel != nil {
			previous.probeCancel()
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	r := &run{
		ctx:     runCtx,
		cancel:  cancel,
		done:    make(chan struct{}),
		settled: make(chan struct{}),
	}
	c.current = r
	c.session.Begin()
	r.timer = c.clock.AfterFunc(c.timeout, func() { c.connectTimeout(r) })
	r.stopWatch = context.AfterFunc(ctx, func() { c.stopRun(r) })
	c.logger.Debug("build stream starting", "connect_timeout", c.timeout)

	c.publish(c.session.State(), nil, false)
	go c.read(r)
	return nil
}

// Stop ends the active run with status error, closing its transport,
// and cancels any pending diagnosis. It is a no-op when nothing is
// running, including before the first Start and after a run
// completed.
func (c *Client) Stop() {
	c.mu.Lock()
	r := c.current
	c.mu.Unlock()
	if r != nil {
		c.stopRun(r)
	}
}

func (c *Client) stopRun(r *run) {
	c.mu.Lock()
	if r.probeCancel != nil {
		r.probeCancel()
	}
	if r.ended || c.current != r {
		c.mu.Unlock()
		return
	}
	c.session.Fail(FailureStopped, MessageStopped)
	closing := c.endLocked(r)
	c.logger.Debug("build stream stopped")
	c.publish(c.session.State(), closing, false)
	close(r.done)
	close(r.settled)
}

// State returns a snapshot of the current run.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.State()
}

// Running reports whether a run is active.
func (c *Client) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current != nil && !c.current.ended
}

var closedChannel = func() chan struct{} {
	channel := make(chan struct{})
	close(channel)
	return channel
}()

// Done returns a channel that closes when the current run reaches a
// terminal status. Before the first Start it is already closed.
func (c *Client) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return closedChannel
	}
	return c.current.done
}

// Wait blocks until the current run has ended and any diagnosis of a
// transport failure has been applied, then returns the final state.
func (c *Client) Wait(ctx context.Context) (State, error) {
	c.mu.Lock()
	settled := closedChannel
	if c.current != nil {
		settled = c.current.settled
	}
	c.mu.Unlock()

	select {
	case <-settled:
		return c.State(), nil
	case <-ctx.Done():
		return c.State(), ctx.Err()
	}
}

// read is the per-run goroutine that owns Subscribe and Next.
func (c *Client) read(r *run) {
	stream, err := c.transport.Subscribe(r.ctx)

	c.mu.Lock()
	if r.ended {
		c.mu.Unlock()
		// The run ended while subscribing; this goroutine is the
		// only holder of the stream, so it closes it.
		if err == nil && stream != nil {
			c.closeStream(stream)
		}
		return
	}
	if err != nil {
		c.failTransportLocked(r, err)
		return
	}
	r.stream = stream
	c.mu.Unlock()

	for {
		frame, err := stream.Next()

		c.mu.Lock()
		if r.ended {
			c.mu.Unlock()
			return
		}
		if err != nil {
			c.failTransportLocked(r, err)
			return
		}
		if !r.gotFrame {
			r.gotFrame = true
			r.timer.Stop()
		}

		switch c.session.Receive(frame) {
		case EffectParseError:
			c.mu.Unlock()
		case EffectFinished:
			closing := c.endLocked(r)
			state := c.session.State()
			c.logger.Debug("build stream complete", "status", state.Status, "build_id", state.BuildID)
			c.publish(state, closing, true)
			close(r.done)
			close(r.settled)
			return
		default:
			c.publish(c.session.State(), nil, false)
		}
	}
}

// connectTimeout fires when no frame arrived within the deadline.
func (c *Client) connectTimeout(r *run) {
	c.mu.Lock()
	if r.ended || r.gotFrame {
		c.mu.Unlock()
		return
	}
	c.session.Fail(FailureTimeout, MessageTimeout)
	closing := c.endLocked(r)
	c.logger.Warn("build stream connection timed out", "timeout", c.timeout)
	c.publish(c.session.State(), closing, false)
	close(r.done)
	close(r.settled)
}

// failTransportLocked ends r after Subscribe or Next failed. Called
// with c.mu held; returns with it released.
func (c *Client) failTransportLocked(r *run, err error) {
	if r.ctx.Err() != nil {
		// The caller's context ended; the stop watcher may not have
		// run yet.
		c.session.Fail(FailureStopped, MessageStopped)
		closing := c.endLocked(r)
		c.publish(c.session.State(), closing, false)
		close(r.done)
		close(r.settled)
		return
	}

	c.logger.Warn("build stream failed", "error", err)
	c.session.Fail(FailureTransport, MessageTransportFailed)
	closing := c.endLocked(r)

	// A rejected subscription already carries the status a probe
	// would find.
	var rejected *TransportError
	if errors.As(err, &rejected) {
		c.session.Refine(buildapi.DiagnoseStatus(rejected.StatusCode, "").Message)
	}

	var probeCtx context.Context
	probing := c.prober != nil && rejected == nil
	if probing {
		probeCtx, r.probeCancel = context.WithTimeout(context.WithoutCancel(r.ctx), c.timeout)
	}

	c.publish(c.session.State(), closing, false)
	close(r.done)
	if !probing {
		close(r.settled)
		return
	}
	go c.diagnose(r, probeCtx)
}

func (c *Client) diagnose(r *run, ctx context.Context) {
	defer close(r.settled)
	diagnosis := c.prober.Probe(ctx)

	c.mu.Lock()
	cancelled := errors.Is(ctx.Err(), context.Canceled)
	r.probeCancel()
	if c.current != r || cancelled {
		c.mu.Unlock()
		return
	}
	c.logger.Info("build stream failure diagnosed", "cause", diagnosis.Cause, "status", diagnosis.StatusCode)
	if !c.session.Refine(diagnosis.Message) {
		c.mu.Unlock()
		return
	}
	c.publish(c.session.State(), nil, false)
}

// endLocked marks r ended, cancels its timer, context, and stop
// watcher, and hands back the stream if it still needs closing.
// Called with c.mu held.
func (c *Client) endLocked(r *run) FrameStream {
	r.ended = true
	r.timer.Stop()
	r.cancel()
	if r.stopWatch != nil {
		r.stopWatch()
	}
	if r.stream == nil || r.streamClosed {
		return nil
	}
	r.streamClosed = true
	return r.stream
}

// publish releases c.mu, closes closing if non-nil, and delivers
// callbacks. Called with c.mu held.
func (c *Client) publish(state State, closing FrameStream, complete bool) {
	c.notifyMu.Lock()
	c.mu.Unlock()
	defer c.notifyMu.Unlock()

	if closing != nil {
		c.closeStream(closing)
	}
	if c.onUpdate != nil {
		c.onUpdate(state)
	}
	if complete && c.onComplete != nil {
		c.onComplete(state)
	}
}

func (c *Client) closeStream(stream FrameStream) {
	if err := stream.Close(); err != nil && !netutil.IsExpectedCloseError(err) {
		c.logger.Debug("closing build stream", "error", err)
	}
}

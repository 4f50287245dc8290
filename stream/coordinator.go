package stream

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hupe1980/agentrelay/checkpoint"
	"github.com/hupe1980/agentrelay/core"
	"github.com/hupe1980/agentrelay/logging"
	"github.com/hupe1980/agentrelay/normalize"
)

// terminalDeliveryTimeout bounds the final delivery attempt after the run
// context is already dead.
const terminalDeliveryTimeout = 5 * time.Second

// Options holds configuration overrides passed to New().
type Options struct {
	// StreamTimeout is the upper bound on one run's total wall-clock time.
	StreamTimeout time.Duration
	// ToolTimeout is the upper bound per individual tool invocation. It
	// must be strictly less than StreamTimeout (validated at startup by the
	// config layer).
	ToolTimeout time.Duration
	// WebSearchTimeout is the narrower sub-scope applied to web search tool
	// invocations. It must not exceed ToolTimeout.
	WebSearchTimeout time.Duration
	// GraceWindow bounds post-completion suppression of persistence noise.
	GraceWindow time.Duration
	// Normalizer transforms raw events; a default is constructed if nil.
	Normalizer *normalize.Normalizer
	// Logger receives structured run logs.
	Logger logging.Logger
}

// Coordinator orchestrates runs against a single engine. It is safe for
// concurrent use: every run gets its own session, race guard and task, and
// the coordinator itself holds no mutable per-run state.
type Coordinator struct {
	engine           core.Engine
	normalizer       *normalize.Normalizer
	streamTimeout    time.Duration
	toolTimeout      time.Duration
	webSearchTimeout time.Duration
	grace            time.Duration
	logger           logging.Logger
}

// webSearchTool is the tool name the narrower web-search sub-scope applies to.
const webSearchTool = "web_search"

// cancellationLogger is implemented by loggers that can emit the dedicated
// cancellation record (logging.RelayLogger does). Plain loggers fall back
// to a formatted info line.
type cancellationLogger interface {
	LogCancellation(threadID, traceID string, eventsReceived int, kinds []string, reason string)
}

// raceLogger is the optional counterpart for race suppression records.
type raceLogger interface {
	LogRaceSuppressed(threadID, traceID string, sinceCompletion time.Duration, cause string)
}

// toolLogger is the optional counterpart for tool execution records.
type toolLogger interface {
	LogToolCall(tool string, dur time.Duration, success bool, err error)
}

// New constructs a Coordinator with optional overrides.
func New(engine core.Engine, optFns ...func(o *Options)) *Coordinator {
	opts := Options{
		StreamTimeout:    5 * time.Minute,
		ToolTimeout:      2 * time.Minute,
		WebSearchTimeout: 30 * time.Second,
		GraceWindow:      500 * time.Millisecond,
		Logger:           logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Normalizer == nil {
		opts.Normalizer = normalize.New(opts.Logger)
	}

	return &Coordinator{
		engine:           engine,
		normalizer:       opts.Normalizer,
		streamTimeout:    opts.StreamTimeout,
		toolTimeout:      opts.ToolTimeout,
		webSearchTimeout: opts.WebSearchTimeout,
		grace:            opts.GraceWindow,
		logger:           opts.Logger,
	}
}

// Run drives one run to a terminal state. Every produced wire event is
// delivered to the sink before the next raw event is pulled; the client's
// view is always a prefix of the event stream plus at most one terminal
// event. Run returns the finished session; the returned error is reserved
// for programming mistakes (nil sink), never for in-run failures, which are
// converted to terminal events instead.
func (c *Coordinator) Run(ctx context.Context, threadID, message string, sink core.Sink) (*core.RunSession, error) {
	if sink == nil {
		return nil, errors.New("stream: sink must not be nil")
	}

	sess := core.NewRunSession(threadID)
	guard := checkpoint.NewRaceGuard(c.grace)

	runCtx := ctx
	if c.streamTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, c.streamTimeout)
		defer cancel()
	}

	events, errs, err := c.engine.Run(runCtx, threadID, message)
	if err != nil {
		sess.Transition(core.RunErrored)
		c.deliverTerminal(sess, core.NewErrorWireEvent(fmt.Sprintf("failed to acquire event source: %v", err), ""), sink)
		return sess, nil
	}
	sess.Transition(core.RunStreaming)

	var (
		chainDepth  int
		sawChain    bool
		toolExpired <-chan time.Time
		toolTimer   *time.Timer
		toolName    string
		toolStarted time.Time
	)
	defer func() {
		if toolTimer != nil {
			toolTimer.Stop()
		}
	}()

	for {
		select {
		case <-runCtx.Done():
			return c.finishCancelled(sess, guard, sink, runCtx.Err()), nil

		case <-toolExpired:
			c.logger.Warn("tool invocation exceeded deadline tool=%s thread_id=%s", toolName, threadID)
			return c.finishCancelled(sess, guard, sink, context.DeadlineExceeded), nil

		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			if err == nil {
				continue
			}
			if guard.Suppress(time.Now()) {
				c.logRaceSuppressed(sess, guard, err)
				continue
			}
			sess.Transition(core.RunErrored)
			c.deliverTerminal(sess, core.NewErrorWireEvent(err.Error(), ""), sink)
			return sess, nil

		case raw, ok := <-events:
			if !ok {
				// Source exhausted: the run is logically complete. Linger
				// for the grace window so trailing persistence noise is
				// absorbed instead of surfacing after the fact.
				guard.MarkComplete(time.Now())
				c.drainGrace(runCtx, errs, sess, guard)
				sess.Transition(core.RunCompleted)
				return sess, nil
			}

			wire := c.normalizer.Normalize(raw)
			if err := sink.Deliver(runCtx, wire); err != nil {
				return c.finishCancelled(sess, guard, sink, err), nil
			}
			sess.Record(wire.Kind)

			switch raw.Kind {
			case core.RawChainStart:
				chainDepth++
				sawChain = true
			case core.RawChainEnd:
				chainDepth--
				if sawChain && chainDepth <= 0 {
					guard.MarkComplete(time.Now())
				}
			case core.RawModelEnd:
				sess.Shard++
			case core.RawToolStart:
				timeout := c.toolTimeout
				if raw.Name == webSearchTool && c.webSearchTimeout > 0 {
					timeout = c.webSearchTimeout
				}
				if timeout > 0 {
					if toolTimer != nil {
						toolTimer.Stop()
					}
					toolTimer = time.NewTimer(timeout)
					toolExpired = toolTimer.C
					toolName = raw.Name
					toolStarted = time.Now()
				}
			case core.RawToolEnd:
				if toolTimer != nil {
					toolTimer.Stop()
					toolTimer = nil
					toolExpired = nil
					if tl, ok := c.logger.(toolLogger); ok {
						tl.LogToolCall(toolName, time.Since(toolStarted), true, nil)
					}
				}
			}

			if wire.Kind == core.WireError {
				// The engine reported an in-run abort; its normalized event
				// is the terminal event.
				sess.Transition(core.RunErrored)
				return sess, nil
			}
		}
	}
}

// finishCancelled converts a cancellation signal (disconnect, abort or
// deadline expiry) into the single terminal event and the one structured
// cancellation log entry. A run whose completion was already observed is
// not retroactively cancelled.
func (c *Coordinator) finishCancelled(sess *core.RunSession, guard *checkpoint.RaceGuard, sink core.Sink, cause error) *core.RunSession {
	if guard.Complete() {
		if guard.Suppress(time.Now()) {
			c.logRaceSuppressed(sess, guard, cause)
		}
		sess.Transition(core.RunCompleted)
		return sess
	}

	reason := core.ReasonClientDisconnect
	if errors.Is(cause, context.DeadlineExceeded) {
		reason = core.ReasonTimeout
	}

	if cl, ok := c.logger.(cancellationLogger); ok {
		cl.LogCancellation(sess.ThreadID, sess.TraceID, sess.Seq, sess.KindNames(), reason)
	} else {
		c.logger.Info("run cancelled thread_id=%s trace_id=%s events_received=%d event_kinds=%v reason=%s",
			sess.ThreadID, sess.TraceID, sess.Seq, sess.KindNames(), reason)
	}

	c.deliverTerminal(sess, core.NewErrorWireEvent("Run was cancelled before completion.", reason), sink)
	sess.Transition(core.RunCancelled)
	return sess
}

// deliverTerminal pushes the terminal event on a detached, bounded context:
// the run context is usually already dead on this path, and the terminal
// event must still reach the transport.
func (c *Coordinator) deliverTerminal(sess *core.RunSession, ev core.WireEvent, sink core.Sink) {
	ctx, cancel := context.WithTimeout(context.Background(), terminalDeliveryTimeout)
	defer cancel()

	if err := sink.Deliver(ctx, ev); err != nil {
		// The client is gone; the terminal event has nowhere to go.
		c.logger.Debug("terminal event delivery failed thread_id=%s: %v", sess.ThreadID, err)
	}
	sess.Record(ev.Kind)
}

// drainGrace watches the error channel for the remainder of the grace
// window after completion, suppressing late persistence signals. It returns
// as soon as the channel closes.
func (c *Coordinator) drainGrace(ctx context.Context, errs <-chan error, sess *core.RunSession, guard *checkpoint.RaceGuard) {
	if errs == nil || c.grace <= 0 {
		return
	}

	deadline := time.NewTimer(c.grace)
	defer deadline.Stop()

	for {
		select {
		case err, ok := <-errs:
			if !ok {
				return
			}
			if err != nil {
				c.logRaceSuppressed(sess, guard, err)
			}
		case <-deadline.C:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (c *Coordinator) logRaceSuppressed(sess *core.RunSession, guard *checkpoint.RaceGuard, cause error) {
	since := guard.SinceCompletion(time.Now())
	if rl, ok := c.logger.(raceLogger); ok {
		rl.LogRaceSuppressed(sess.ThreadID, sess.TraceID, since, fmt.Sprint(cause))
		return
	}
	c.logger.Debug("post-completion race suppressed thread_id=%s since_completion=%s cause=%v",
		sess.ThreadID, since, cause)
}

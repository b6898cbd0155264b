package ingest

import (
	"context"
	"fmt"
	"io"
	"log"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
)

// State is the lifecycle position of a Loop.
type State int32

const (
	Connecting State = iota
	Streaming
	Terminated
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Streaming:
		return "streaming"
	case Terminated:
		return "terminated"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// Loop drives one subscription from connect to termination. A Loop is
// single use; run a new one to reconnect.
type Loop struct {
	feed Feed
	sink Sink

	recvTimeout time.Duration
	metrics     *Metrics
	logger      *log.Logger

	state atomic.Int32
	used  atomic.Bool
}

type Option func(*Loop)

// WithReceiveTimeout bounds the wait for each envelope. An exceeded deadline
// terminates the stream with ErrReceiveTimeout. Zero waits forever.
func WithReceiveTimeout(d time.Duration) Option {
	return func(l *Loop) {
		l.recvTimeout = d
	}
}

func WithMetrics(m *Metrics) Option {
	return func(l *Loop) {
		l.metrics = m
	}
}

func WithLogger(logger *log.Logger) Option {
	return func(l *Loop) {
		l.logger = logger
	}
}

func NewLoop(feed Feed, sink Sink, opts ...Option) *Loop {
	l := &Loop{
		feed:   feed,
		sink:   sink,
		logger: log.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Loop) State() State {
	return State(l.state.Load())
}

func (l *Loop) setState(s State) {
	l.state.Store(int32(s))
	l.metrics.setState(s)
}

func (l *Loop) status(msg string) {
	l.logger.Println("Ingest", msg)
}

// Run subscribes and delivers events to the sink until the stream ends.
//
// Errors from connecting and subscribing are returned as is. A graceful close
// by the relay returns nil. Any other end of an active stream, including
// cancellation of ctx, returns a *TerminatedError carrying the cause.
func (l *Loop) Run(ctx context.Context) error {
	if !l.used.CompareAndSwap(false, true) {
		return errors.New("ingest: loop already run")
	}

	l.setState(Connecting)
	defer l.setState(Terminated)

	// cancelling streamCtx unblocks a pending Next
	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// the deadline also covers a subscribe that waits on the relay's first reply
	var timedOut atomic.Bool
	var deadline *time.Timer
	if l.recvTimeout > 0 {
		deadline = time.AfterFunc(l.recvTimeout, func() {
			timedOut.Store(true)
			cancel()
		})
		defer deadline.Stop()
	}

	stream, err := l.feed.Subscribe(streamCtx)
	if err != nil {
		if timedOut.Load() && ctx.Err() == nil {
			l.metrics.terminated("timeout")
			return errors.Wrapf(ErrReceiveTimeout, "no reply to subscribe within %s", l.recvTimeout)
		}
		l.metrics.terminated("subscribe")
		return err
	}
	defer stream.Close()

	l.setState(Streaming)

	for {
		// the deadline covers the wait only, not time spent in the sink
		if deadline != nil {
			deadline.Stop()
			deadline.Reset(l.recvTimeout)
		}
		env, err := stream.Next()

		// Stop reports false once the deadline has fired, even if Next won
		// the race and still returned an envelope. streamCtx is cancelled by
		// then, so the envelope is delivered and the stream ends here.
		expired := deadline != nil && !deadline.Stop()

		if err != nil {
			return l.terminate(ctx, err, expired || timedOut.Load())
		}

		l.handle(env)

		if expired {
			return l.terminate(ctx, nil, true)
		}
	}
}

func (l *Loop) terminate(ctx context.Context, err error, timedOut bool) error {
	switch {
	case ctx.Err() != nil:
		l.metrics.terminated("cancelled")
		return &TerminatedError{Err: ctx.Err()}
	case timedOut:
		l.metrics.terminated("timeout")
		return &TerminatedError{Err: errors.Wrapf(ErrReceiveTimeout, "nothing received for %s", l.recvTimeout)}
	case errors.Is(err, io.EOF):
		l.metrics.terminated("closed")
		l.status("Stream closed by relay (unexpected)")
		return nil
	}

	l.metrics.terminated("error")
	return &TerminatedError{Err: err}
}

func (l *Loop) handle(env *Envelope) {
	if env == nil {
		return
	}

	ev, err := NewEvent(env)
	if err != nil {
		l.metrics.decodeFailure()
		return
	}

	l.metrics.event()
	l.sink(ev)
}

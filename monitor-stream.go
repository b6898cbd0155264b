package main

import (
	"context"
	"fmt"
	"time"

	"github.com/1fge/nextblock-stream-monitor/ingest"
	"github.com/1fge/nextblock-stream-monitor/pkg/nextblock-go/pkg"
	"github.com/davecgh/go-spew/spew"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Run keeps a subscription open until ctx is cancelled, starting a fresh
// loop (and so a fresh handshake) after every termination. It only returns
// early for failures no reconnect can fix.
func (m *Monitor) Run(ctx context.Context) error {
	m.status("Listening for relay transactions...")

	for {
		if err := m.reconnectLimiter.Wait(ctx); err != nil {
			return nil
		}

		err := m.runOnce(ctx)
		switch {
		case ctx.Err() != nil:
			m.status("Stopped")
			return nil
		case errors.Is(err, pkg.ErrInvalidCredential):
			return err
		case errors.Is(err, ingest.ErrSubscriptionRejected):
			m.statusr("Subscription rejected, re-authenticating: " + err.Error())
		case errors.Is(err, ingest.ErrTransportUnavailable):
			m.statusr("Relay unreachable, reconnecting: " + err.Error())
		case err != nil:
			m.statusr("Stream ended, reconnecting: " + err.Error())
		default:
			m.statusy("Relay closed the stream, reconnecting")
		}
	}
}

func (m *Monitor) runOnce(ctx context.Context) error {
	m.attempts++
	attempt := uuid.NewString()
	start := time.Now()

	m.statusy(fmt.Sprintf("Subscribing (attempt %d, %s)", m.attempts, attempt))

	loop := ingest.NewLoop(m.feed, m.handleEvent,
		ingest.WithReceiveTimeout(m.recvTimeout),
		ingest.WithMetrics(m.metrics),
	)
	err := loop.Run(ctx)

	m.status(fmt.Sprintf("Attempt %s ended after %s", attempt, time.Since(start).Round(time.Millisecond)))
	return err
}

// handleEvent is the loop's sink. It runs on the loop goroutine.
func (m *Monitor) handleEvent(ev ingest.Event) {
	m.status(fmt.Sprintf("got new sig %s on slot %d", ev.Signature, ev.Slot))

	if m.dumpEvents {
		fmt.Println(spew.Sdump(ev.Slot, ev.Index, ev.Signature))
	}

	if m.dbConnection == nil {
		return
	}

	if err := m.recordSighting(ev, time.Now()); err != nil {
		m.statusr("Error recording sighting: " + err.Error())
	}
}

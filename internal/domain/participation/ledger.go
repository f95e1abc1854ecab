package participation

import (
	"context"
	"fmt"

	"github.com/Ycseeasy/explore-with-me/internal/domain/events"
	"github.com/Ycseeasy/explore-with-me/internal/metrics"
)

// Ledger is the only writer of an event's confirmed request counter.
//
// A ledger is opened inside a unit of work and holds the event lock for the
// lifetime of that unit of work, so every Reserve and Release observes the
// effect of all previously committed ones. Counter changes are written by
// Commit in the same unit of work as the request status changes they pair
// with; rolling back the unit of work discards both.
type Ledger struct {
	events EventStore
	event  *events.Event
	start  int
}

// OpenLedger locks eventID in tx and snapshots its counter.
func OpenLedger(ctx context.Context, tx Store, eventID string) (*Ledger, error) {
	ev, err := tx.Events().GetForUpdate(ctx, eventID)
	if err != nil {
		return nil, err
	}
	return &Ledger{events: tx.Events(), event: ev, start: ev.ConfirmedRequests}, nil
}

// Event returns the locked event. Callers must not modify ConfirmedRequests.
func (l *Ledger) Event() *events.Event {
	return l.event
}

// Full reports whether no seat is left.
func (l *Ledger) Full() bool {
	return l.event.Full()
}

// Reserve takes one seat. It returns false, leaving the counter unchanged,
// when the event has a limit and every seat is taken.
func (l *Ledger) Reserve() bool {
	if l.event.Full() {
		return false
	}
	l.event.ConfirmedRequests++
	metrics.LedgerOperations.WithLabelValues("reserve").Inc()
	return true
}

// Release frees one seat. The counter never drops below zero.
func (l *Ledger) Release() {
	if l.event.ConfirmedRequests == 0 {
		return
	}
	l.event.ConfirmedRequests--
	metrics.LedgerOperations.WithLabelValues("release").Inc()
}

// Correct overwrites the counter with a recount of CONFIRMED requests and
// returns the drift it removed.
func (l *Ledger) Correct(confirmed int) int {
	if confirmed < 0 {
		confirmed = 0
	}
	drift := l.event.ConfirmedRequests - confirmed
	if drift != 0 {
		l.event.ConfirmedRequests = confirmed
		metrics.LedgerOperations.WithLabelValues("correct").Inc()
	}
	return drift
}

// Delta is the net counter change since OpenLedger.
func (l *Ledger) Delta() int {
	return l.event.ConfirmedRequests - l.start
}

// Commit writes the counter if it changed.
func (l *Ledger) Commit(ctx context.Context) error {
	if l.Delta() == 0 {
		return nil
	}
	if err := l.events.SetConfirmedRequests(ctx, l.event.ID, l.event.ConfirmedRequests); err != nil {
		return fmt.Errorf("persist confirmed requests: %w", err)
	}
	return nil
}

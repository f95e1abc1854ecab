package participation

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/Ycseeasy/explore-with-me/internal/domain/events"
	"github.com/Ycseeasy/explore-with-me/internal/metrics"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const reconcilePageSize = 500

// ReconcileReport summarizes one reconciliation pass.
type ReconcileReport struct {
	Checked   int
	Corrected int
	// Skipped counts events whose lock could not be taken in time.
	Skipped int
	// SkippedIDs lists the skipped events in ascending order.
	SkippedIDs []string
}

// Reconciler recounts CONFIRMED requests per event and corrects the
// ledger counter where it drifted, for instance after rows were edited by
// hand.
type Reconciler struct {
	store     Store
	logger    zerolog.Logger
	workers   int
	retryable func(error) bool
}

// NewReconciler builds a Reconciler. retryable tells lock contention apart
// from real failures; contended events are skipped until the next pass.
func NewReconciler(store Store, logger zerolog.Logger, workers int, retryable func(error) bool) *Reconciler {
	if workers <= 0 {
		workers = 1
	}
	if retryable == nil {
		retryable = func(error) bool { return false }
	}
	return &Reconciler{
		store:     store,
		logger:    logger.With().Str("component", "reconciler").Logger(),
		workers:   workers,
		retryable: retryable,
	}
}

// ReconcileEvent corrects one event under its lock and returns the drift removed.
func (r *Reconciler) ReconcileEvent(ctx context.Context, eventID string) (int, error) {
	drift := 0
	err := InTx(ctx, r.store, func(tx Store) error {
		ledger, err := OpenLedger(ctx, tx, eventID)
		if err != nil {
			return err
		}
		confirmed, err := tx.Requests().CountConfirmed(ctx, eventID)
		if err != nil {
			return fmt.Errorf("count confirmed requests: %w", err)
		}
		drift = ledger.Correct(confirmed)
		return ledger.Commit(ctx)
	})
	if err != nil {
		return 0, err
	}
	if drift != 0 {
		metrics.LedgerDrift.Inc()
		r.logger.Warn().Str("event_id", eventID).Int("drift", drift).Msg("confirmed request counter corrected")
	}
	return drift, nil
}

// ReconcileAll walks every event. It stops at the first hard failure.
func (r *Reconciler) ReconcileAll(ctx context.Context) (ReconcileReport, error) {
	var (
		mu     sync.Mutex
		report ReconcileReport
	)
	after := ""
	for {
		ids, err := r.store.Events().ListIDs(ctx, after, reconcilePageSize)
		if err != nil {
			return report, fmt.Errorf("list events: %w", err)
		}
		if len(ids) == 0 {
			break
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(r.workers)
		for _, id := range ids {
			g.Go(func() error {
				drift, err := r.ReconcileEvent(gctx, id)
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					report.Checked++
					if drift != 0 {
						report.Corrected++
					}
					return nil
				case r.retryable(err):
					report.Skipped++
					report.SkippedIDs = append(report.SkippedIDs, id)
					return nil
				case errors.Is(err, events.ErrNotFound):
					return nil
				default:
					return fmt.Errorf("reconcile event %s: %w", id, err)
				}
			})
		}
		if err := g.Wait(); err != nil {
			return report, err
		}

		after = ids[len(ids)-1]
		if len(ids) < reconcilePageSize {
			break
		}
	}

	sort.Strings(report.SkippedIDs)
	r.logger.Info().
		Int("checked", report.Checked).
		Int("corrected", report.Corrected).
		Int("skipped", report.Skipped).
		Msg("ledger reconciliation finished")
	return report, nil
}

package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/Ycseeasy/explore-with-me/internal/domain/participation"
	"github.com/jackc/pgx/v5"
	"github.com/riverqueue/river"
	"github.com/rs/zerolog"
)

// LedgerReconciler is implemented by participation.Reconciler.
type LedgerReconciler interface {
	ReconcileAll(ctx context.Context) (participation.ReconcileReport, error)
	ReconcileEvent(ctx context.Context, eventID string) (int, error)
}

// ReconcileLedgerArgs asks for a pass over every event.
type ReconcileLedgerArgs struct{}

func (ReconcileLedgerArgs) Kind() string { return JobKindReconcileLedger }

// ReconcileEventArgs asks for one event to be recounted.
type ReconcileEventArgs struct {
	EventID string `json:"event_id"`
}

func (ReconcileEventArgs) Kind() string { return JobKindReconcileEvent }

// ContendedRetryDelay is how long a skipped event waits before its own
// reconcile job runs.
const ContendedRetryDelay = 30 * time.Second

// EventEnqueuer schedules single-event reconcile jobs.
type EventEnqueuer func(ctx context.Context, eventIDs []string) error

type ReconcileLedgerWorker struct {
	river.WorkerDefaults[ReconcileLedgerArgs]
	Reconciler LedgerReconciler
	Logger     zerolog.Logger
	// Enqueue defaults to inserting through the River client running the job.
	Enqueue EventEnqueuer
}

func (ReconcileLedgerWorker) Kind() string { return JobKindReconcileLedger }

func (w ReconcileLedgerWorker) Work(ctx context.Context, job *river.Job[ReconcileLedgerArgs]) error {
	if job == nil {
		return fmt.Errorf("reconcile ledger job missing")
	}
	if w.Reconciler == nil {
		return fmt.Errorf("reconciler not configured")
	}
	report, err := w.Reconciler.ReconcileAll(ctx)
	if err != nil {
		return err
	}
	if len(report.SkippedIDs) > 0 {
		enqueue := w.Enqueue
		if enqueue == nil {
			enqueue = EnqueueFromContext
		}
		if err := enqueue(ctx, report.SkippedIDs); err != nil {
			return fmt.Errorf("enqueue contended events: %w", err)
		}
	}
	w.Logger.Info().
		Int64("job_id", job.ID).
		Int("checked", report.Checked).
		Int("corrected", report.Corrected).
		Int("skipped", report.Skipped).
		Msg("reconcile ledger job finished")
	return nil
}

type ReconcileEventWorker struct {
	river.WorkerDefaults[ReconcileEventArgs]
	Reconciler LedgerReconciler
}

func (ReconcileEventWorker) Kind() string { return JobKindReconcileEvent }

func (w ReconcileEventWorker) Work(ctx context.Context, job *river.Job[ReconcileEventArgs]) error {
	if job == nil || job.Args.EventID == "" {
		return fmt.Errorf("reconcile event job missing event id")
	}
	if w.Reconciler == nil {
		return fmt.Errorf("reconciler not configured")
	}
	_, err := w.Reconciler.ReconcileEvent(ctx, job.Args.EventID)
	return err
}

// EnqueueFromContext inserts one ReconcileEventArgs job per event through
// the River client of the running job. Jobs are unique per event.
func EnqueueFromContext(ctx context.Context, eventIDs []string) error {
	client, err := river.ClientFromContextSafely[pgx.Tx](ctx)
	if err != nil {
		return err
	}
	_, err = client.InsertMany(ctx, ReconcileEventParams(eventIDs, time.Now()))
	return err
}

// ReconcileEventParams builds insert parameters scheduled ContendedRetryDelay after now.
func ReconcileEventParams(eventIDs []string, now time.Time) []river.InsertManyParams {
	params := make([]river.InsertManyParams, 0, len(eventIDs))
	for _, id := range eventIDs {
		opts := InsertOptsForKind(JobKindReconcileEvent)
		opts.ScheduledAt = now.Add(ContendedRetryDelay)
		opts.UniqueOpts = river.UniqueOpts{ByArgs: true}
		params = append(params, river.InsertManyParams{Args: ReconcileEventArgs{EventID: id}, InsertOpts: &opts})
	}
	return params
}

// NewWorkers registers every worker.
func NewWorkers(reconciler LedgerReconciler, logger zerolog.Logger) (*river.Workers, error) {
	workers := river.NewWorkers()
	if err := river.AddWorkerSafely(workers, &ReconcileLedgerWorker{Reconciler: reconciler, Logger: logger}); err != nil {
		return nil, fmt.Errorf("register reconcile ledger worker: %w", err)
	}
	if err := river.AddWorkerSafely(workers, &ReconcileEventWorker{Reconciler: reconciler}); err != nil {
		return nil, fmt.Errorf("register reconcile event worker: %w", err)
	}
	return workers, nil
}

package participation

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/Ycseeasy/explore-with-me/internal/domain/events"
	"github.com/Ycseeasy/explore-with-me/internal/metrics"
	"github.com/Ycseeasy/explore-with-me/internal/notify"
)

var tracer = otel.Tracer("github.com/Ycseeasy/explore-with-me/internal/domain/participation")

// AdmissionEngine confirms or rejects batches of pending requests against an
// event's capacity.
type AdmissionEngine struct {
	store     Store
	publisher notify.Publisher
	logger    zerolog.Logger
	now       func() time.Time
}

func NewAdmissionEngine(store Store, logger zerolog.Logger, opts ...Option) *AdmissionEngine {
	o := buildOptions(opts)
	return &AdmissionEngine{
		store:     store,
		publisher: o.publisher,
		logger:    logger.With().Str("component", "admission").Logger(),
		now:       o.now,
	}
}

// Decide applies outcome to requestIDs on an event owned by ownerID.
//
// The whole call is one unit of work holding the event lock:
//  1. an unlimited event without moderation returns an empty Decision
//  2. a full event fails with ErrCapacityExceeded before anything changes
//  3. any request that is not PENDING fails the call with *StatusConflictError
//  4. requests are processed in the given order; once a confirmation cannot
//     reserve a seat, it and every later request are rejected
//
// Duplicate ids are collapsed to their first occurrence. Ids that are unknown
// or belong to another event fail with ErrNotFound.
func (e *AdmissionEngine) Decide(ctx context.Context, eventID, ownerID string, requestIDs []string, outcome Outcome) (Decision, error) {
	return e.decide(ctx, eventID, &ownerID, requestIDs, outcome)
}

// DecideAsAdmin is Decide without the ownership check.
func (e *AdmissionEngine) DecideAsAdmin(ctx context.Context, eventID string, requestIDs []string, outcome Outcome) (Decision, error) {
	return e.decide(ctx, eventID, nil, requestIDs, outcome)
}

func (e *AdmissionEngine) decide(ctx context.Context, eventID string, ownerID *string, requestIDs []string, outcome Outcome) (decision Decision, err error) {
	ctx, span := tracer.Start(ctx, "admission.decide")
	span.SetAttributes(
		attribute.String("event.id", eventID),
		attribute.String("admission.outcome", string(outcome)),
		attribute.Int("admission.batch_size", len(requestIDs)),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if !outcome.Valid() {
		return Decision{}, fmt.Errorf("%w: %q", ErrInvalidOutcome, outcome)
	}
	batch := dedupe(requestIDs)

	err = InTx(ctx, e.store, func(tx Store) error {
		ledger, err := OpenLedger(ctx, tx, eventID)
		if err != nil {
			return err
		}
		ev := ledger.Event()
		if ownerID != nil && ev.InitiatorID != *ownerID {
			return events.ErrNotFound
		}

		if ev.Unlimited() && !ev.RequestModeration {
			decision = Decision{Confirmed: []Request{}, Rejected: []Request{}}
			return nil
		}
		if ledger.Full() {
			metrics.CapacityExhausted.WithLabelValues("decide").Inc()
			return ErrCapacityExceeded
		}

		requests, err := loadBatch(ctx, tx.Requests(), eventID, batch)
		if err != nil {
			return err
		}
		for _, req := range requests {
			if req.Status != StatusPending {
				return &StatusConflictError{RequestID: req.ID, Status: req.Status}
			}
		}

		decision = process(ledger, requests, outcome)
		for _, req := range decision.Confirmed {
			if err := tx.Requests().UpdateStatus(ctx, req.ID, StatusConfirmed); err != nil {
				return fmt.Errorf("failed to confirm request %s: %w", req.ID, err)
			}
		}
		for _, req := range decision.Rejected {
			if err := tx.Requests().UpdateStatus(ctx, req.ID, StatusRejected); err != nil {
				return fmt.Errorf("failed to reject request %s: %w", req.ID, err)
			}
		}
		return ledger.Commit(ctx)
	})
	if err != nil {
		return Decision{}, err
	}

	metrics.AdmissionDecisions.WithLabelValues(string(OutcomeConfirmed)).Add(float64(len(decision.Confirmed)))
	metrics.AdmissionDecisions.WithLabelValues(string(OutcomeRejected)).Add(float64(len(decision.Rejected)))
	span.SetAttributes(
		attribute.Int("admission.confirmed", len(decision.Confirmed)),
		attribute.Int("admission.rejected", len(decision.Rejected)),
	)
	e.logger.Info().
		Str("event_id", eventID).
		Str("outcome", string(outcome)).
		Int("confirmed", len(decision.Confirmed)).
		Int("rejected", len(decision.Rejected)).
		Msg("admission decided")

	now := e.now()
	for _, req := range decision.Confirmed {
		publish(ctx, e.publisher, e.logger, notify.RequestConfirmed, req, now)
	}
	for _, req := range decision.Rejected {
		publish(ctx, e.publisher, e.logger, notify.RequestRejected, req, now)
	}
	return decision, nil
}

// process assigns statuses in order. It mutates only the ledger and the
// returned copies; callers persist the result.
func process(ledger *Ledger, requests []Request, outcome Outcome) Decision {
	decision := Decision{Confirmed: []Request{}, Rejected: []Request{}}
	exhausted := outcome == OutcomeRejected
	for _, req := range requests {
		if !exhausted && ledger.Reserve() {
			req.Status = StatusConfirmed
			decision.Confirmed = append(decision.Confirmed, req)
			continue
		}
		exhausted = true
		req.Status = StatusRejected
		decision.Rejected = append(decision.Rejected, req)
	}
	return decision
}

func loadBatch(ctx context.Context, repo Repository, eventID string, batch []string) ([]Request, error) {
	requests, err := repo.GetByIDs(ctx, batch)
	if err != nil {
		return nil, err
	}
	if len(requests) != len(batch) {
		found := make(map[string]struct{}, len(requests))
		for _, req := range requests {
			found[req.ID] = struct{}{}
		}
		for _, id := range batch {
			if _, ok := found[id]; !ok {
				return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
			}
		}
	}
	for _, req := range requests {
		if req.EventID != eventID {
			return nil, fmt.Errorf("%w: %s does not belong to event %s", ErrNotFound, req.ID, eventID)
		}
	}
	return requests, nil
}

func dedupe(requestIDs []string) []string {
	seen := make(map[string]struct{}, len(requestIDs))
	out := make([]string, 0, len(requestIDs))
	for _, id := range requestIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

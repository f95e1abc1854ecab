package participation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/Ycseeasy/explore-with-me/internal/domain/events"
	"github.com/Ycseeasy/explore-with-me/internal/domain/ids"
	"github.com/Ycseeasy/explore-with-me/internal/metrics"
	"github.com/Ycseeasy/explore-with-me/internal/notify"
)

// SubmissionService handles requester-side operations: submitting, canceling
// and listing participation requests.
type SubmissionService struct {
	store     Store
	users     UserLookup
	publisher notify.Publisher
	logger    zerolog.Logger
	now       func() time.Time
}

type Option func(*options)

type options struct {
	publisher notify.Publisher
	now       func() time.Time
}

func WithPublisher(p notify.Publisher) Option {
	return func(o *options) {
		if p != nil {
			o.publisher = p
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{publisher: notify.Nop{}, now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func NewSubmissionService(store Store, users UserLookup, logger zerolog.Logger, opts ...Option) *SubmissionService {
	o := buildOptions(opts)
	return &SubmissionService{
		store:     store,
		users:     users,
		publisher: o.publisher,
		logger:    logger.With().Str("component", "participation").Logger(),
		now:       o.now,
	}
}

// Submit creates a participation request from requesterID to eventID.
//
// Checks run in order under the event lock:
//   - events.ErrNotFound / ErrRequesterMissing when either side is unknown
//   - ErrConflict for a duplicate active request, a self-request or an unpublished event
//   - ErrCapacityExceeded when every seat is taken
//
// The request is CONFIRMED (taking a seat) when the event skips moderation or
// has no limit, PENDING otherwise.
func (s *SubmissionService) Submit(ctx context.Context, requesterID, eventID string) (*Request, error) {
	ok, err := s.users.UserExists(ctx, requesterID)
	if err != nil {
		return nil, fmt.Errorf("lookup requester: %w", err)
	}
	if !ok {
		return nil, ErrRequesterMissing
	}

	var created *Request
	err = InTx(ctx, s.store, func(tx Store) error {
		ledger, err := OpenLedger(ctx, tx, eventID)
		if err != nil {
			return err
		}
		ev := ledger.Event()

		if _, err := tx.Requests().FindActive(ctx, requesterID, eventID); err == nil {
			return fmt.Errorf("%w: requester already has an active request for this event", ErrConflict)
		} else if !errors.Is(err, ErrNotFound) {
			return err
		}
		if ev.InitiatorID == requesterID {
			return fmt.Errorf("%w: initiator cannot request participation in their own event", ErrConflict)
		}
		if ev.State != events.StatePublished {
			return fmt.Errorf("%w: event is not published", ErrConflict)
		}
		if ledger.Full() {
			metrics.CapacityExhausted.WithLabelValues("submit").Inc()
			return ErrCapacityExceeded
		}

		status := StatusPending
		if ev.AutoConfirm() {
			if !ledger.Reserve() {
				return ErrCapacityExceeded
			}
			status = StatusConfirmed
		}

		id, err := ids.NewULID()
		if err != nil {
			return fmt.Errorf("generate request id: %w", err)
		}
		created, err = tx.Requests().Create(ctx, CreateParams{
			ID:          id,
			EventID:     eventID,
			RequesterID: requesterID,
			Status:      status,
			Created:     s.now().UTC(),
		})
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		return ledger.Commit(ctx)
	})
	if err != nil {
		return nil, err
	}

	metrics.RequestsSubmitted.WithLabelValues(string(created.Status)).Inc()
	s.logger.Info().
		Str("request_id", created.ID).
		Str("event_id", eventID).
		Str("requester_id", requesterID).
		Str("status", string(created.Status)).
		Msg("participation request submitted")
	if created.Status == StatusConfirmed {
		s.publish(ctx, notify.RequestConfirmed, created)
	}
	return created, nil
}

// Cancel withdraws the requester's own request. Canceling a CONFIRMED request
// frees its seat; canceling a CANCELED request changes nothing.
func (s *SubmissionService) Cancel(ctx context.Context, requesterID, requestID string) (*Request, error) {
	req, err := s.store.Requests().GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.RequesterID != requesterID {
		return nil, ErrNotFound
	}

	changed := false
	err = InTx(ctx, s.store, func(tx Store) error {
		ledger, err := OpenLedger(ctx, tx, req.EventID)
		if err != nil {
			return err
		}
		// Reload under the event lock: an admission decision may have landed in between.
		current, err := tx.Requests().GetByID(ctx, requestID)
		if err != nil {
			return err
		}
		req = current
		if current.Status == StatusCanceled {
			return nil
		}
		if err := tx.Requests().UpdateStatus(ctx, current.ID, StatusCanceled); err != nil {
			return fmt.Errorf("failed to cancel request: %w", err)
		}
		if current.Status == StatusConfirmed {
			ledger.Release()
		}
		req.Status = StatusCanceled
		changed = true
		return ledger.Commit(ctx)
	})
	if err != nil {
		return nil, err
	}

	if changed {
		s.logger.Info().Str("request_id", req.ID).Str("event_id", req.EventID).Msg("participation request canceled")
		s.publish(ctx, notify.RequestCanceled, req)
	}
	return req, nil
}

// Get returns one of the requester's own requests.
func (s *SubmissionService) Get(ctx context.Context, requesterID, requestID string) (*Request, error) {
	req, err := s.store.Requests().GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.RequesterID != requesterID {
		return nil, ErrNotFound
	}
	return req, nil
}

// ListForRequester returns requests made by requesterID to other users' events.
func (s *SubmissionService) ListForRequester(ctx context.Context, requesterID string) ([]Request, error) {
	ok, err := s.users.UserExists(ctx, requesterID)
	if err != nil {
		return nil, fmt.Errorf("lookup requester: %w", err)
	}
	if !ok {
		return nil, ErrRequesterMissing
	}
	return s.store.Requests().ListByRequester(ctx, requesterID)
}

// ListForEvent returns every request to an event owned by ownerID.
func (s *SubmissionService) ListForEvent(ctx context.Context, ownerID, eventID string) ([]Request, error) {
	ev, err := s.store.Events().GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if ev.InitiatorID != ownerID {
		return nil, events.ErrNotFound
	}
	return s.store.Requests().ListByEvent(ctx, eventID)
}

func (s *SubmissionService) publish(ctx context.Context, typ string, req *Request) {
	publish(ctx, s.publisher, s.logger, typ, *req, s.now())
}

func publish(ctx context.Context, p notify.Publisher, logger zerolog.Logger, typ string, req Request, now time.Time) {
	msg := notify.Message{
		Type:       typ,
		EventID:    req.EventID,
		RequestID:  req.ID,
		UserID:     req.RequesterID,
		OccurredAt: now.UTC(),
	}
	if err := p.Publish(ctx, msg); err != nil {
		logger.Warn().Err(err).Str("request_id", req.ID).Str("type", typ).Msg("notification publish failed")
	}
}

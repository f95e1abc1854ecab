package events

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/Ycseeasy/explore-with-me/internal/domain/ids"
	"github.com/Ycseeasy/explore-with-me/internal/notify"
	"github.com/Ycseeasy/explore-with-me/internal/sanitize"
)

var (
	ErrInitiatorNotFound = errors.New("initiator not found")
	ErrCategoryNotFound  = errors.New("category not found")
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

// Service implements event creation, owner and admin edits, and lookups.
// Every edit runs inside a unit of work that holds the event's lock, so
// lifecycle changes never interleave with admission decisions on the same event.
type Service struct {
	repo      Repository
	refs      Reference
	lifecycle Lifecycle
	publisher notify.Publisher
	validator *validator.Validate
	logger    zerolog.Logger
	now       func() time.Time
}

type Option func(*Service)

// WithClock overrides the time source used for lead-time rules.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
		s.lifecycle = NewLifecycle(now)
	}
}

// WithPublisher sets the notification publisher. Defaults to notify.Nop.
func WithPublisher(p notify.Publisher) Option {
	return func(s *Service) {
		if p != nil {
			s.publisher = p
		}
	}
}

func NewService(repo Repository, refs Reference, logger zerolog.Logger, opts ...Option) *Service {
	s := &Service{
		repo:      repo,
		refs:      refs,
		lifecycle: NewLifecycle(time.Now),
		publisher: notify.Nop{},
		validator: newValidator(),
		logger:    logger.With().Str("component", "events").Logger(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Lifecycle exposes the state machine used by the service.
func (s *Service) Lifecycle() Lifecycle {
	return s.lifecycle
}

// Create registers a new PENDING event for initiatorID.
//
// Returns ErrInitiatorNotFound or ErrCategoryNotFound for dangling references,
// ValidationErrors for malformed input and *DateError when the event starts
// less than two hours from now.
func (s *Service) Create(ctx context.Context, initiatorID string, in NewEventInput) (*Event, error) {
	in.Title = sanitize.Text(in.Title)
	in.Annotation = sanitize.Text(in.Annotation)
	in.Description = sanitize.HTML(in.Description)
	if err := validateNew(s.validator, in); err != nil {
		return nil, err
	}
	if err := s.lifecycle.CheckNewEventDate(in.EventDate); err != nil {
		return nil, err
	}
	if err := s.checkReferences(ctx, initiatorID, in.CategoryID); err != nil {
		return nil, err
	}

	id, err := ids.NewULID()
	if err != nil {
		return nil, fmt.Errorf("generate event id: %w", err)
	}
	params := CreateParams{
		ID:                id,
		Title:             in.Title,
		Annotation:        in.Annotation,
		Description:       in.Description,
		CategoryID:        in.CategoryID,
		InitiatorID:       initiatorID,
		Location:          *in.Location,
		EventDate:         in.EventDate.UTC(),
		CreatedOn:         s.now().UTC(),
		RequestModeration: true,
	}
	if in.Paid != nil {
		params.Paid = *in.Paid
	}
	if in.ParticipantLimit != nil {
		params.ParticipantLimit = *in.ParticipantLimit
	}
	if in.RequestModeration != nil {
		params.RequestModeration = *in.RequestModeration
	}

	ev, err := s.repo.Create(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("failed to create event: %w", err)
	}
	s.logger.Info().
		Str("event_id", ev.ID).
		Str("initiator_id", initiatorID).
		Int("participant_limit", ev.ParticipantLimit).
		Msg("event created")
	return ev, nil
}

// GetOwned returns an event only if initiatorID created it.
func (s *Service) GetOwned(ctx context.Context, initiatorID, eventID string) (*Event, error) {
	ev, err := s.repo.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if ev.InitiatorID != initiatorID {
		return nil, ErrNotFound
	}
	return ev, nil
}

// GetPublished returns a PUBLISHED event for the public API.
func (s *Service) GetPublished(ctx context.Context, eventID string) (*Event, error) {
	ev, err := s.repo.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if ev.State != StatePublished {
		return nil, ErrNotFound
	}
	return ev, nil
}

func (s *Service) ListOwned(ctx context.Context, initiatorID string, page Pagination) (ListResult, error) {
	if page.Limit <= 0 {
		page.Limit = defaultPageSize
	}
	if page.Limit > maxPageSize {
		page.Limit = maxPageSize
	}
	return s.repo.ListByInitiator(ctx, initiatorID, page)
}

// UpdateByOwner applies an initiator edit and optional SEND_TO_REVIEW or CANCEL_REVIEW.
func (s *Service) UpdateByOwner(ctx context.Context, initiatorID, eventID string, p UpdateParams) (*Event, error) {
	p = sanitizeUpdate(p)
	if err := validateUpdate(s.validator, p); err != nil {
		return nil, err
	}
	if p.CategoryID != nil {
		if err := s.checkCategory(ctx, *p.CategoryID); err != nil {
			return nil, err
		}
	}
	before := StatePending
	ev, err := s.mutate(ctx, eventID, func(ev *Event) error {
		if ev.InitiatorID != initiatorID {
			return ErrNotFound
		}
		before = ev.State
		return s.lifecycle.ApplyOwnerUpdate(ev, p)
	})
	if err != nil {
		return nil, err
	}
	if before != StateCanceled && ev.State == StateCanceled {
		s.publish(ctx, notify.EventCanceled, ev)
	}
	return ev, nil
}

// UpdateByAdmin applies an administrator edit and optional PUBLISH_EVENT or REJECT_EVENT.
func (s *Service) UpdateByAdmin(ctx context.Context, eventID string, p UpdateParams) (*Event, error) {
	p = sanitizeUpdate(p)
	if err := validateUpdate(s.validator, p); err != nil {
		return nil, err
	}
	if p.CategoryID != nil {
		if err := s.checkCategory(ctx, *p.CategoryID); err != nil {
			return nil, err
		}
	}
	before := StatePending
	ev, err := s.mutate(ctx, eventID, func(ev *Event) error {
		before = ev.State
		return s.lifecycle.ApplyAdminUpdate(ev, p)
	})
	if err != nil {
		return nil, err
	}
	switch {
	case before != StatePublished && ev.State == StatePublished:
		s.publish(ctx, notify.EventPublished, ev)
	case before != StateCanceled && ev.State == StateCanceled:
		s.publish(ctx, notify.EventRejected, ev)
	}
	return ev, nil
}

func (s *Service) mutate(ctx context.Context, eventID string, fn func(*Event) error) (*Event, error) {
	txRepo, txCommitter, err := s.repo.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = txCommitter.Rollback(ctx)
	}()

	ev, err := txRepo.GetForUpdate(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if err := fn(ev); err != nil {
		return nil, err
	}
	if err := txRepo.UpdateLifecycle(ctx, ev); err != nil {
		return nil, fmt.Errorf("failed to update event: %w", err)
	}
	if err := txCommitter.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return ev, nil
}

func (s *Service) checkReferences(ctx context.Context, initiatorID, categoryID string) error {
	ok, err := s.refs.UserExists(ctx, initiatorID)
	if err != nil {
		return fmt.Errorf("lookup initiator: %w", err)
	}
	if !ok {
		return ErrInitiatorNotFound
	}
	return s.checkCategory(ctx, categoryID)
}

func (s *Service) checkCategory(ctx context.Context, categoryID string) error {
	ok, err := s.refs.CategoryExists(ctx, categoryID)
	if err != nil {
		return fmt.Errorf("lookup category: %w", err)
	}
	if !ok {
		return ErrCategoryNotFound
	}
	return nil
}

func (s *Service) publish(ctx context.Context, typ string, ev *Event) {
	msg := notify.Message{Type: typ, EventID: ev.ID, UserID: ev.InitiatorID, OccurredAt: s.now().UTC()}
	if err := s.publisher.Publish(ctx, msg); err != nil {
		s.logger.Warn().Err(err).Str("event_id", ev.ID).Str("type", typ).Msg("notification publish failed")
	}
}

func sanitizeUpdate(p UpdateParams) UpdateParams {
	p.Title = sanitize.TextPtr(p.Title)
	p.Annotation = sanitize.TextPtr(p.Annotation)
	p.Description = sanitize.HTMLPtr(p.Description)
	if p.EventDate != nil {
		utc := p.EventDate.UTC()
		p.EventDate = &utc
	}
	return p
}

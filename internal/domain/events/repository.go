package events

import (
	"context"
	"time"
)

type CreateParams struct {
	ID                string
	Title             string
	Annotation        string
	Description       string
	CategoryID        string
	InitiatorID       string
	Location          Location
	Paid              bool
	EventDate         time.Time
	CreatedOn         time.Time
	ParticipantLimit  int
	RequestModeration bool
}

// Pagination is keyset pagination over ULIDs in ascending order.
type Pagination struct {
	Limit int
	After string
}

type ListResult struct {
	Events []Event
	// NextAfter is the ULID to pass as Pagination.After for the next page, empty on the last page.
	NextAfter string
}

// TxCommitter finishes a unit of work opened by BeginTx.
type TxCommitter interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

type Repository interface {
	BeginTx(ctx context.Context) (Repository, TxCommitter, error)

	Create(ctx context.Context, params CreateParams) (*Event, error)
	GetByID(ctx context.Context, id string) (*Event, error)
	// GetForUpdate loads the event and holds its per-event lock until the
	// enclosing unit of work finishes.
	GetForUpdate(ctx context.Context, id string) (*Event, error)
	// UpdateLifecycle persists descriptive and lifecycle fields. It never
	// writes the confirmed request counter.
	UpdateLifecycle(ctx context.Context, ev *Event) error
	ListByInitiator(ctx context.Context, initiatorID string, page Pagination) (ListResult, error)
}

// Reference checks that an event's foreign keys point at existing rows.
type Reference interface {
	UserExists(ctx context.Context, id string) (bool, error)
	CategoryExists(ctx context.Context, id string) (bool, error)
}

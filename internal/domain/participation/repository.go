package participation

import (
	"context"

	"github.com/Ycseeasy/explore-with-me/internal/domain/events"
)

// Repository stores participation requests.
type Repository interface {
	Create(ctx context.Context, params CreateParams) (*Request, error)
	GetByID(ctx context.Context, id string) (*Request, error)
	// GetByIDs returns the requests that exist, in the order of ids.
	GetByIDs(ctx context.Context, ids []string) ([]Request, error)
	// FindActive returns the requester's non-CANCELED request for the event, or ErrNotFound.
	FindActive(ctx context.Context, requesterID, eventID string) (*Request, error)
	UpdateStatus(ctx context.Context, id string, status Status) error
	// ListByRequester excludes requests to events the requester initiated.
	ListByRequester(ctx context.Context, requesterID string) ([]Request, error)
	ListByEvent(ctx context.Context, eventID string) ([]Request, error)
	CountConfirmed(ctx context.Context, eventID string) (int, error)
}

// EventStore is the slice of event storage the ledger needs.
type EventStore interface {
	GetByID(ctx context.Context, id string) (*events.Event, error)
	GetForUpdate(ctx context.Context, id string) (*events.Event, error)
	SetConfirmedRequests(ctx context.Context, id string, count int) error
	// ListIDs pages through all event ids in ascending order.
	ListIDs(ctx context.Context, after string, limit int) ([]string, error)
}

type TxCommitter interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Store opens units of work spanning events and requests. Stores returned by
// BeginTx share one transaction; event locks taken through them are held
// until Commit or Rollback.
type Store interface {
	BeginTx(ctx context.Context) (Store, TxCommitter, error)
	Events() EventStore
	Requests() Repository
}

type UserLookup interface {
	UserExists(ctx context.Context, id string) (bool, error)
}

// InTx runs fn inside a unit of work, committing when fn returns nil.
func InTx(ctx context.Context, store Store, fn func(tx Store) error) error {
	txStore, txCommitter, err := store.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = txCommitter.Rollback(ctx)
	}()

	if err := fn(txStore); err != nil {
		return err
	}
	return txCommitter.Commit(ctx)
}

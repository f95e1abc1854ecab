package storage

import (
	"context"
	"errors"

	"github.com/Ycseeasy/explore-with-me/internal/domain/categories"
	"github.com/Ycseeasy/explore-with-me/internal/domain/events"
	"github.com/Ycseeasy/explore-with-me/internal/domain/participation"
	"github.com/Ycseeasy/explore-with-me/internal/domain/users"
)

// ErrContention is returned when a per-event lock could not be acquired in
// time. It is the only storage error callers should retry.
var ErrContention = errors.New("event is busy, retry later")

// Repository groups data access by domain.
type Repository interface {
	participation.Store

	// Begin opens a unit of work covering every sub-repository, joining the
	// current one when the Repository is already bound to a unit of work.
	Begin(ctx context.Context) (Repository, participation.TxCommitter, error)

	EventRepository() events.Repository
	Users() users.Repository
	Categories() categories.Repository

	UserExists(ctx context.Context, id string) (bool, error)
	CategoryExists(ctx context.Context, id string) (bool, error)

	Ping(ctx context.Context) error
	Close()
}

package users

import (
	"context"
	"errors"
	"time"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrEmailTaken   = errors.New("email is already taken")
	// ErrUserInUse is returned when deleting a user who still initiates events.
	ErrUserInUse = errors.New("user still initiates events")
)

type User struct {
	ID        string
	Name      string
	Email     string
	CreatedAt time.Time
}

type CreateParams struct {
	ID        string
	Name      string
	Email     string
	CreatedAt time.Time
}

type ListFilters struct {
	// IDs restricts the listing when non-empty.
	IDs   []string
	Limit int
	After string
}

type ListResult struct {
	Users     []User
	NextAfter string
}

type Repository interface {
	Create(ctx context.Context, params CreateParams) (*User, error)
	GetByID(ctx context.Context, id string) (*User, error)
	// GetForUpdate locks the user row for the rest of the unit of work.
	GetForUpdate(ctx context.Context, id string) (*User, error)
	List(ctx context.Context, filters ListFilters) (ListResult, error)
	// Delete removes the user row and their requests without touching event
	// counters. Callers release CONFIRMED seats first.
	Delete(ctx context.Context, id string) error
}

// Remover deletes a user along with everything that depends on them.
type Remover interface {
	RemoveUser(ctx context.Context, id string) error
}

// Package memory is an in-process storage backend. Per-event critical
// sections are serialized with keyed locks; writes made inside a unit of work
// are undone on rollback. Reads outside a held event lock may observe writes
// of units of work that have not finished yet.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/Ycseeasy/explore-with-me/internal/domain/categories"
	"github.com/Ycseeasy/explore-with-me/internal/domain/events"
	"github.com/Ycseeasy/explore-with-me/internal/domain/participation"
	"github.com/Ycseeasy/explore-with-me/internal/domain/users"
	"github.com/Ycseeasy/explore-with-me/internal/storage"
)

var _ storage.Repository = (*Store)(nil)

type state struct {
	mu         sync.RWMutex
	events     map[string]*events.Event
	requests   map[string]*participation.Request
	users      map[string]*users.User
	categories map[string]*categories.Category
}

type unitOfWork struct {
	mu   sync.Mutex
	held map[string]func()
	undo []func()
	done bool
}

// Store implements storage.Repository in memory.
type Store struct {
	data        *state
	locks       *keyedLocks
	lockTimeout time.Duration
	tx          *unitOfWork
}

type Option func(*Store)

// WithLockTimeout bounds how long GetForUpdate waits for an event lock
// before failing with storage.ErrContention.
func WithLockTimeout(d time.Duration) Option {
	return func(s *Store) {
		s.lockTimeout = d
	}
}

func New(opts ...Option) *Store {
	s := &Store{
		data: &state{
			events:     make(map[string]*events.Event),
			requests:   make(map[string]*participation.Request),
			users:      make(map[string]*users.User),
			categories: make(map[string]*categories.Category),
		},
		locks:       newKeyedLocks(),
		lockTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) begin() (*Store, *committer) {
	if s.tx != nil {
		// Nested units of work join the outer one.
		return s, &committer{}
	}
	child := *s
	child.tx = &unitOfWork{held: make(map[string]func())}
	return &child, &committer{tx: child.tx, data: s.data}
}

func (s *Store) BeginTx(context.Context) (participation.Store, participation.TxCommitter, error) {
	child, c := s.begin()
	return child, c, nil
}

func (s *Store) Begin(context.Context) (storage.Repository, participation.TxCommitter, error) {
	child, c := s.begin()
	return child, c, nil
}

func (s *Store) Events() participation.EventStore {
	return &eventRepo{store: s}
}

func (s *Store) EventRepository() events.Repository {
	return &eventRepo{store: s}
}

func (s *Store) Requests() participation.Repository {
	return &requestRepo{store: s}
}

func (s *Store) Users() users.Repository {
	return &userRepo{store: s}
}

func (s *Store) Categories() categories.Repository {
	return &categoryRepo{store: s}
}

func (s *Store) UserExists(_ context.Context, id string) (bool, error) {
	s.data.mu.RLock()
	defer s.data.mu.RUnlock()
	_, ok := s.data.users[id]
	return ok, nil
}

func (s *Store) CategoryExists(_ context.Context, id string) (bool, error) {
	s.data.mu.RLock()
	defer s.data.mu.RUnlock()
	_, ok := s.data.categories[id]
	return ok, nil
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() {}

// lockEvent takes the lock on id (an event id, or "user:" plus a user id) for
// the current unit of work. Outside a unit of work it is a no-op.
func (s *Store) lockEvent(ctx context.Context, id string) error {
	if s.tx == nil {
		return nil
	}
	s.tx.mu.Lock()
	if _, ok := s.tx.held[id]; ok {
		s.tx.mu.Unlock()
		return nil
	}
	s.tx.mu.Unlock()

	release, err := s.locks.acquire(ctx, id, s.lockTimeout)
	if err != nil {
		return err
	}
	s.tx.mu.Lock()
	s.tx.held[id] = release
	s.tx.mu.Unlock()
	return nil
}

// write applies fn under the data lock. fn returns the inverse operation,
// which is recorded when running inside a unit of work.
func (s *Store) write(fn func(st *state) (func(st *state), error)) error {
	s.data.mu.Lock()
	defer s.data.mu.Unlock()
	undo, err := fn(s.data)
	if err != nil {
		return err
	}
	if s.tx != nil && undo != nil {
		data := s.data
		s.tx.mu.Lock()
		s.tx.undo = append(s.tx.undo, func() { undo(data) })
		s.tx.mu.Unlock()
	}
	return nil
}

type committer struct {
	tx   *unitOfWork
	data *state
}

func (c *committer) Commit(context.Context) error {
	if c.tx == nil {
		return nil
	}
	c.finish(false)
	return nil
}

// Rollback undoes every write of the unit of work. It is a no-op after Commit.
func (c *committer) Rollback(context.Context) error {
	if c.tx == nil {
		return nil
	}
	c.finish(true)
	return nil
}

func (c *committer) finish(rollback bool) {
	c.tx.mu.Lock()
	defer c.tx.mu.Unlock()
	if c.tx.done {
		return
	}
	c.tx.done = true
	if rollback && len(c.tx.undo) > 0 {
		c.data.mu.Lock()
		for i := len(c.tx.undo) - 1; i >= 0; i-- {
			c.tx.undo[i]()
		}
		c.data.mu.Unlock()
	}
	c.tx.undo = nil
	for id, release := range c.tx.held {
		release()
		delete(c.tx.held, id)
	}
}

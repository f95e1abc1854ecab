package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ycseeasy/explore-with-me/internal/domain/categories"
	"github.com/Ycseeasy/explore-with-me/internal/domain/events"
	"github.com/Ycseeasy/explore-with-me/internal/domain/participation"
	"github.com/Ycseeasy/explore-with-me/internal/domain/users"
	"github.com/Ycseeasy/explore-with-me/internal/storage"
)

func seed(t *testing.T, s *Store, eventIDs ...string) {
	t.Helper()
	ctx := context.Background()
	_, err := s.Users().Create(ctx, users.CreateParams{ID: "owner", Name: "Owner", Email: "owner@example.org"})
	require.NoError(t, err)
	_, err = s.Users().Create(ctx, users.CreateParams{ID: "guest", Name: "Guest", Email: "guest@example.org"})
	require.NoError(t, err)
	_, err = s.Categories().Create(ctx, categories.Category{ID: "cat", Name: "Hiking"})
	require.NoError(t, err)
	for _, id := range eventIDs {
		_, err := s.EventRepository().Create(ctx, events.CreateParams{
			ID: id, Title: "Event " + id, InitiatorID: "owner", CategoryID: "cat",
			EventDate: time.Now().Add(24 * time.Hour), ParticipantLimit: 5, RequestModeration: true,
		})
		require.NoError(t, err)
	}
}

func TestRollbackUndoesWrites(t *testing.T) {
	ctx := context.Background()
	s := New()
	seed(t, s, "e1")

	tx, c, err := s.BeginTx(ctx)
	require.NoError(t, err)
	_, err = tx.Events().GetForUpdate(ctx, "e1")
	require.NoError(t, err)
	require.NoError(t, tx.Events().SetConfirmedRequests(ctx, "e1", 3))
	_, err = tx.Requests().Create(ctx, participation.CreateParams{ID: "r1", EventID: "e1", RequesterID: "guest", Status: participation.StatusConfirmed})
	require.NoError(t, err)
	require.NoError(t, c.Rollback(ctx))

	ev, err := s.EventRepository().GetByID(ctx, "e1")
	require.NoError(t, err)
	require.Equal(t, 0, ev.ConfirmedRequests)
	_, err = s.Requests().GetByID(ctx, "r1")
	require.ErrorIs(t, err, participation.ErrNotFound)
	require.Equal(t, 0, s.locks.size())
}

func TestCommitKeepsWritesAndRollbackAfterCommitIsNoop(t *testing.T) {
	ctx := context.Background()
	s := New()
	seed(t, s, "e1")

	tx, c, err := s.BeginTx(ctx)
	require.NoError(t, err)
	_, err = tx.Events().GetForUpdate(ctx, "e1")
	require.NoError(t, err)
	require.NoError(t, tx.Events().SetConfirmedRequests(ctx, "e1", 2))
	require.NoError(t, c.Commit(ctx))
	require.NoError(t, c.Rollback(ctx))

	ev, err := s.EventRepository().GetByID(ctx, "e1")
	require.NoError(t, err)
	require.Equal(t, 2, ev.ConfirmedRequests)
}

func TestLockTimeoutReportsContention(t *testing.T) {
	ctx := context.Background()
	s := New(WithLockTimeout(20 * time.Millisecond))
	seed(t, s, "e1", "e2")

	holder, c, err := s.BeginTx(ctx)
	require.NoError(t, err)
	_, err = holder.Events().GetForUpdate(ctx, "e1")
	require.NoError(t, err)
	defer func() { _ = c.Rollback(ctx) }()

	waiter, wc, err := s.BeginTx(ctx)
	require.NoError(t, err)
	defer func() { _ = wc.Rollback(ctx) }()

	_, err = waiter.Events().GetForUpdate(ctx, "e1")
	require.ErrorIs(t, err, storage.ErrContention)

	// Other events are independent.
	_, err = waiter.Events().GetForUpdate(ctx, "e2")
	require.NoError(t, err)
}

func TestLockWaitHonoursContext(t *testing.T) {
	s := New(WithLockTimeout(0))
	seed(t, s, "e1")

	holder, c, err := s.BeginTx(context.Background())
	require.NoError(t, err)
	_, err = holder.Events().GetForUpdate(context.Background(), "e1")
	require.NoError(t, err)
	defer func() { _ = c.Rollback(context.Background()) }()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	waiter, wc, err := s.BeginTx(ctx)
	require.NoError(t, err)
	defer func() { _ = wc.Rollback(ctx) }()

	_, err = waiter.Events().GetForUpdate(ctx, "e1")
	require.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestLocksSerializeReadModifyWrite(t *testing.T) {
	ctx := context.Background()
	s := New()
	seed(t, s, "e1")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := participation.InTx(ctx, s, func(tx participation.Store) error {
				ev, err := tx.Events().GetForUpdate(ctx, "e1")
				if err != nil {
					return err
				}
				return tx.Events().SetConfirmedRequests(ctx, "e1", ev.ConfirmedRequests+1)
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	ev, err := s.EventRepository().GetByID(ctx, "e1")
	require.NoError(t, err)
	require.Equal(t, 50, ev.ConfirmedRequests)
	require.Equal(t, 0, s.locks.size())
}

func TestUpdateLifecyclePreservesCounter(t *testing.T) {
	ctx := context.Background()
	s := New()
	seed(t, s, "e1")
	require.NoError(t, s.Events().SetConfirmedRequests(ctx, "e1", 4))

	ev, err := s.EventRepository().GetByID(ctx, "e1")
	require.NoError(t, err)
	ev.ConfirmedRequests = 0
	ev.State = events.StatePublished
	require.NoError(t, s.EventRepository().UpdateLifecycle(ctx, ev))

	stored, err := s.EventRepository().GetByID(ctx, "e1")
	require.NoError(t, err)
	require.Equal(t, 4, stored.ConfirmedRequests)
	require.Equal(t, events.StatePublished, stored.State)
}

func TestActiveRequestUniqueness(t *testing.T) {
	ctx := context.Background()
	s := New()
	seed(t, s, "e1")
	repo := s.Requests()

	_, err := repo.Create(ctx, participation.CreateParams{ID: "r1", EventID: "e1", RequesterID: "guest", Status: participation.StatusPending})
	require.NoError(t, err)
	_, err = repo.Create(ctx, participation.CreateParams{ID: "r2", EventID: "e1", RequesterID: "guest", Status: participation.StatusPending})
	require.ErrorIs(t, err, participation.ErrConflict)

	require.NoError(t, repo.UpdateStatus(ctx, "r1", participation.StatusCanceled))
	_, err = repo.Create(ctx, participation.CreateParams{ID: "r3", EventID: "e1", RequesterID: "guest", Status: participation.StatusPending})
	require.NoError(t, err)
}

func TestListByRequesterExcludesOwnEvents(t *testing.T) {
	ctx := context.Background()
	s := New()
	seed(t, s, "e1")
	repo := s.Requests()
	_, err := repo.Create(ctx, participation.CreateParams{ID: "r1", EventID: "e1", RequesterID: "owner", Status: participation.StatusPending})
	require.NoError(t, err)
	_, err = repo.Create(ctx, participation.CreateParams{ID: "r2", EventID: "e1", RequesterID: "guest", Status: participation.StatusPending})
	require.NoError(t, err)

	own, err := repo.ListByRequester(ctx, "owner")
	require.NoError(t, err)
	require.Empty(t, own)

	guest, err := repo.ListByRequester(ctx, "guest")
	require.NoError(t, err)
	require.Len(t, guest, 1)
}

func TestGetByIDsPreservesOrder(t *testing.T) {
	ctx := context.Background()
	s := New()
	seed(t, s, "e1", "e2", "e3")
	repo := s.Requests()
	for _, id := range []string{"e1", "e2", "e3"} {
		_, err := repo.Create(ctx, participation.CreateParams{ID: "r-" + id, EventID: id, RequesterID: "guest", Status: participation.StatusPending})
		require.NoError(t, err)
	}

	got, err := repo.GetByIDs(ctx, []string{"r-e3", "missing", "r-e1"})

	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "r-e3", got[0].ID)
	require.Equal(t, "r-e1", got[1].ID)
}

func TestDeleteGuards(t *testing.T) {
	ctx := context.Background()
	s := New()
	seed(t, s, "e1")

	require.ErrorIs(t, s.Users().Delete(ctx, "owner"), users.ErrUserInUse)
	require.ErrorIs(t, s.Categories().Delete(ctx, "cat"), categories.ErrInUse)
	require.NoError(t, s.Users().Delete(ctx, "guest"))
	require.ErrorIs(t, s.Users().Delete(ctx, "guest"), users.ErrUserNotFound)
}

func TestDeleteRefusesHeldSeat(t *testing.T) {
	ctx := context.Background()
	s := New()
	seed(t, s, "e1")
	_, err := s.Requests().Create(ctx, participation.CreateParams{
		ID: "r1", EventID: "e1", RequesterID: "guest", Status: participation.StatusConfirmed,
	})
	require.NoError(t, err)

	require.ErrorIs(t, s.Users().Delete(ctx, "guest"), storage.ErrContention)
	require.NoError(t, s.Requests().UpdateStatus(ctx, "r1", participation.StatusCanceled))
	require.NoError(t, s.Users().Delete(ctx, "guest"))

	_, err = s.Requests().GetByID(ctx, "r1")
	require.ErrorIs(t, err, participation.ErrNotFound)
}

func TestUserLockSerializesRemovals(t *testing.T) {
	ctx := context.Background()
	s := New(WithLockTimeout(20 * time.Millisecond))
	seed(t, s)

	tx, c, err := s.Begin(ctx)
	require.NoError(t, err)
	_, err = tx.Users().GetForUpdate(ctx, "guest")
	require.NoError(t, err)

	other, oc, err := s.Begin(ctx)
	require.NoError(t, err)
	_, err = other.Users().GetForUpdate(ctx, "guest")
	require.ErrorIs(t, err, storage.ErrContention)
	require.NoError(t, oc.Rollback(ctx))

	require.NoError(t, c.Commit(ctx))
	assert.Zero(t, s.locks.size())
}

func TestListByInitiatorPages(t *testing.T) {
	ctx := context.Background()
	s := New()
	seed(t, s, "e1", "e2", "e3")

	first, err := s.EventRepository().ListByInitiator(ctx, "owner", events.Pagination{Limit: 2})
	require.NoError(t, err)
	require.Len(t, first.Events, 2)
	require.Equal(t, "e2", first.NextAfter)

	second, err := s.EventRepository().ListByInitiator(ctx, "owner", events.Pagination{Limit: 2, After: first.NextAfter})
	require.NoError(t, err)
	require.Len(t, second.Events, 1)
	require.Empty(t, second.NextAfter)
}

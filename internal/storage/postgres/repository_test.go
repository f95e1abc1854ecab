package postgres

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Ycseeasy/explore-with-me/internal/domain/categories"
	"github.com/Ycseeasy/explore-with-me/internal/domain/events"
	"github.com/Ycseeasy/explore-with-me/internal/domain/ids"
	"github.com/Ycseeasy/explore-with-me/internal/domain/participation"
	"github.com/Ycseeasy/explore-with-me/internal/domain/users"
	"github.com/Ycseeasy/explore-with-me/internal/storage"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventRepositoryRoundTrip(t *testing.T) {
	repo, _ := setupPostgres(t)
	ctx := context.Background()

	owner := seedUser(t, repo, "owner@example.org")
	cat := seedCategory(t, repo, "Concerts")
	ev := seedEvent(t, repo, owner.ID, cat.ID, 5, events.StatePending)

	got, err := repo.EventRepository().GetByID(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, ev.Title, got.Title)
	assert.Equal(t, events.StatePending, got.State)
	assert.Equal(t, 5, got.ParticipantLimit)
	assert.InDelta(t, 55.75, got.Location.Lat, 0.0001)
	assert.Nil(t, got.PublishedOn)

	_, err = repo.EventRepository().GetByID(ctx, ids.MustNewULID())
	require.ErrorIs(t, err, events.ErrNotFound)
}

func TestEventRepositoryCreateMapsForeignKeys(t *testing.T) {
	repo, _ := setupPostgres(t)
	ctx := context.Background()

	owner := seedUser(t, repo, "owner@example.org")
	cat := seedCategory(t, repo, "Concerts")

	params := events.CreateParams{
		ID:          ids.MustNewULID(),
		Title:       "Dangling",
		CategoryID:  ids.MustNewULID(),
		InitiatorID: owner.ID,
		EventDate:   time.Now().Add(24 * time.Hour),
		CreatedOn:   time.Now(),
	}
	_, err := repo.EventRepository().Create(ctx, params)
	require.ErrorIs(t, err, events.ErrCategoryNotFound)

	params.CategoryID = cat.ID
	params.InitiatorID = ids.MustNewULID()
	_, err = repo.EventRepository().Create(ctx, params)
	require.ErrorIs(t, err, events.ErrInitiatorNotFound)
}

func TestUpdateLifecycleLeavesCounterAlone(t *testing.T) {
	repo, _ := setupPostgres(t)
	ctx := context.Background()

	owner := seedUser(t, repo, "owner@example.org")
	cat := seedCategory(t, repo, "Concerts")
	ev := seedEvent(t, repo, owner.ID, cat.ID, 5, events.StatePublished)

	require.NoError(t, repo.Events().SetConfirmedRequests(ctx, ev.ID, 3))

	ev.Title = "Renamed"
	ev.ConfirmedRequests = 0
	require.NoError(t, repo.EventRepository().UpdateLifecycle(ctx, ev))

	got, err := repo.EventRepository().GetByID(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Title)
	assert.Equal(t, 3, got.ConfirmedRequests)
	require.NotNil(t, got.PublishedOn)
}

func TestTransactionRollbackDiscardsWrites(t *testing.T) {
	repo, _ := setupPostgres(t)
	ctx := context.Background()

	owner := seedUser(t, repo, "owner@example.org")
	cat := seedCategory(t, repo, "Concerts")
	ev := seedEvent(t, repo, owner.ID, cat.ID, 5, events.StatePublished)

	tx, committer, err := repo.BeginTx(ctx)
	require.NoError(t, err)
	_, err = tx.Events().GetForUpdate(ctx, ev.ID)
	require.NoError(t, err)
	require.NoError(t, tx.Events().SetConfirmedRequests(ctx, ev.ID, 4))
	require.NoError(t, committer.Rollback(ctx))

	got, err := repo.EventRepository().GetByID(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.ConfirmedRequests)
}

func TestRollbackAfterCommitIsNoop(t *testing.T) {
	repo, _ := setupPostgres(t)
	ctx := context.Background()

	_, committer, err := repo.BeginTx(ctx)
	require.NoError(t, err)
	require.NoError(t, committer.Commit(ctx))
	require.NoError(t, committer.Rollback(ctx))
}

func TestGetForUpdateTimesOutWithContention(t *testing.T) {
	repo, _ := setupPostgres(t)
	ctx := context.Background()

	owner := seedUser(t, repo, "owner@example.org")
	cat := seedCategory(t, repo, "Concerts")
	ev := seedEvent(t, repo, owner.ID, cat.ID, 5, events.StatePublished)

	holder, holderTx, err := repo.BeginTx(ctx)
	require.NoError(t, err)
	defer func() { _ = holderTx.Rollback(ctx) }()
	_, err = holder.Events().GetForUpdate(ctx, ev.ID)
	require.NoError(t, err)

	waiter, waiterTx, err := repo.BeginTx(ctx)
	require.NoError(t, err)
	defer func() { _ = waiterTx.Rollback(ctx) }()

	started := time.Now()
	_, err = waiter.Events().GetForUpdate(ctx, ev.ID)
	require.ErrorIs(t, err, storage.ErrContention)
	assert.GreaterOrEqual(t, time.Since(started), 400*time.Millisecond)
}

func TestRequestRepositoryEnforcesOneActiveRequest(t *testing.T) {
	repo, _ := setupPostgres(t)
	ctx := context.Background()

	owner := seedUser(t, repo, "owner@example.org")
	guest := seedUser(t, repo, "guest@example.org")
	cat := seedCategory(t, repo, "Concerts")
	ev := seedEvent(t, repo, owner.ID, cat.ID, 0, events.StatePublished)

	first, err := repo.Requests().Create(ctx, participation.CreateParams{
		ID: ids.MustNewULID(), EventID: ev.ID, RequesterID: guest.ID,
		Status: participation.StatusPending, Created: time.Now(),
	})
	require.NoError(t, err)

	_, err = repo.Requests().Create(ctx, participation.CreateParams{
		ID: ids.MustNewULID(), EventID: ev.ID, RequesterID: guest.ID,
		Status: participation.StatusPending, Created: time.Now(),
	})
	require.ErrorIs(t, err, participation.ErrConflict)

	require.NoError(t, repo.Requests().UpdateStatus(ctx, first.ID, participation.StatusCanceled))
	_, err = repo.Requests().Create(ctx, participation.CreateParams{
		ID: ids.MustNewULID(), EventID: ev.ID, RequesterID: guest.ID,
		Status: participation.StatusPending, Created: time.Now(),
	})
	require.NoError(t, err)

	active, err := repo.Requests().FindActive(ctx, guest.ID, ev.ID)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, active.ID)
}

func TestRequestRepositoryCreateMapsForeignKeys(t *testing.T) {
	repo, _ := setupPostgres(t)
	ctx := context.Background()

	owner := seedUser(t, repo, "owner@example.org")
	cat := seedCategory(t, repo, "Concerts")
	ev := seedEvent(t, repo, owner.ID, cat.ID, 0, events.StatePublished)

	_, err := repo.Requests().Create(ctx, participation.CreateParams{
		ID: ids.MustNewULID(), EventID: ev.ID, RequesterID: ids.MustNewULID(),
		Status: participation.StatusPending, Created: time.Now(),
	})
	require.ErrorIs(t, err, participation.ErrRequesterMissing)

	_, err = repo.Requests().Create(ctx, participation.CreateParams{
		ID: ids.MustNewULID(), EventID: ids.MustNewULID(), RequesterID: owner.ID,
		Status: participation.StatusPending, Created: time.Now(),
	})
	require.ErrorIs(t, err, events.ErrNotFound)
}

func TestRequestRepositoryLookups(t *testing.T) {
	repo, _ := setupPostgres(t)
	ctx := context.Background()

	owner := seedUser(t, repo, "owner@example.org")
	guest := seedUser(t, repo, "guest@example.org")
	cat := seedCategory(t, repo, "Concerts")
	own := seedEvent(t, repo, guest.ID, cat.ID, 0, events.StatePublished)
	ev := seedEvent(t, repo, owner.ID, cat.ID, 0, events.StatePublished)

	mk := func(eventID string, status participation.Status) *participation.Request {
		req, err := repo.Requests().Create(ctx, participation.CreateParams{
			ID: ids.MustNewULID(), EventID: eventID, RequesterID: guest.ID, Status: status, Created: time.Now(),
		})
		require.NoError(t, err)
		return req
	}
	onOwn := mk(own.ID, participation.StatusConfirmed)
	onOther := mk(ev.ID, participation.StatusConfirmed)

	listed, err := repo.Requests().ListByRequester(ctx, guest.ID)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, onOther.ID, listed[0].ID)

	byIDs, err := repo.Requests().GetByIDs(ctx, []string{onOther.ID, ids.MustNewULID(), onOwn.ID})
	require.NoError(t, err)
	require.Len(t, byIDs, 2)
	assert.Equal(t, onOther.ID, byIDs[0].ID)
	assert.Equal(t, onOwn.ID, byIDs[1].ID)

	count, err := repo.Requests().CountConfirmed(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	_, err = repo.Requests().GetByID(ctx, ids.MustNewULID())
	require.ErrorIs(t, err, participation.ErrNotFound)
}

func TestUserAndCategoryDeleteGuards(t *testing.T) {
	repo, _ := setupPostgres(t)
	ctx := context.Background()

	owner := seedUser(t, repo, "owner@example.org")
	guest := seedUser(t, repo, "guest@example.org")
	cat := seedCategory(t, repo, "Concerts")
	ev := seedEvent(t, repo, owner.ID, cat.ID, 0, events.StatePublished)

	_, err := repo.Requests().Create(ctx, participation.CreateParams{
		ID: ids.MustNewULID(), EventID: ev.ID, RequesterID: guest.ID,
		Status: participation.StatusPending, Created: time.Now(),
	})
	require.NoError(t, err)

	require.ErrorIs(t, repo.Users().Delete(ctx, owner.ID), users.ErrUserInUse)
	require.ErrorIs(t, repo.Categories().Delete(ctx, cat.ID), categories.ErrInUse)

	require.NoError(t, repo.Users().Delete(ctx, guest.ID))
	listed, err := repo.Requests().ListByEvent(ctx, ev.ID)
	require.NoError(t, err)
	assert.Empty(t, listed)

	require.ErrorIs(t, repo.Users().Delete(ctx, guest.ID), users.ErrUserNotFound)
}

func TestUniqueNamesAndEmails(t *testing.T) {
	repo, _ := setupPostgres(t)
	ctx := context.Background()

	seedUser(t, repo, "dup@example.org")
	_, err := repo.Users().Create(ctx, users.CreateParams{
		ID: ids.MustNewULID(), Name: "Other", Email: "DUP@example.org", CreatedAt: time.Now(),
	})
	require.ErrorIs(t, err, users.ErrEmailTaken)

	seedCategory(t, repo, "Hiking")
	other := seedCategory(t, repo, "Cycling")
	_, err = repo.Categories().Create(ctx, categories.Category{ID: ids.MustNewULID(), Name: "hiking"})
	require.ErrorIs(t, err, categories.ErrNameTaken)
	_, err = repo.Categories().Rename(ctx, other.ID, "HIKING")
	require.ErrorIs(t, err, categories.ErrNameTaken)
}

func TestListingsPage(t *testing.T) {
	repo, _ := setupPostgres(t)
	ctx := context.Background()

	owner := seedUser(t, repo, "owner@example.org")
	for i := 0; i < 4; i++ {
		seedUser(t, repo, fmt.Sprintf("user%d@example.org", i))
	}
	cat := seedCategory(t, repo, "Concerts")
	for i := 0; i < 3; i++ {
		seedEvent(t, repo, owner.ID, cat.ID, 0, events.StatePending)
	}

	first, err := repo.EventRepository().ListByInitiator(ctx, owner.ID, events.Pagination{Limit: 2})
	require.NoError(t, err)
	require.Len(t, first.Events, 2)
	require.NotEmpty(t, first.NextAfter)

	second, err := repo.EventRepository().ListByInitiator(ctx, owner.ID, events.Pagination{Limit: 2, After: first.NextAfter})
	require.NoError(t, err)
	require.Len(t, second.Events, 1)
	assert.Empty(t, second.NextAfter)

	page, err := repo.Users().List(ctx, users.ListFilters{Limit: 3})
	require.NoError(t, err)
	assert.Len(t, page.Users, 3)
	assert.NotEmpty(t, page.NextAfter)

	filtered, err := repo.Users().List(ctx, users.ListFilters{IDs: []string{owner.ID}, Limit: 10})
	require.NoError(t, err)
	require.Len(t, filtered.Users, 1)
	assert.Equal(t, owner.ID, filtered.Users[0].ID)

	eventIDs, err := repo.Events().ListIDs(ctx, "", 10)
	require.NoError(t, err)
	assert.Len(t, eventIDs, 3)
}

func TestConcurrentConfirmationsNeverOverfill(t *testing.T) {
	repo, _ := setupPostgres(t)
	ctx := context.Background()

	owner := seedUser(t, repo, "owner@example.org")
	cat := seedCategory(t, repo, "Concerts")
	ev := seedEvent(t, repo, owner.ID, cat.ID, 3, events.StatePublished)

	submit := participation.NewSubmissionService(repo, repo, zerolog.Nop())
	engine := participation.NewAdmissionEngine(repo, zerolog.Nop())

	var requestIDs []string
	for i := 0; i < 10; i++ {
		guest := seedUser(t, repo, fmt.Sprintf("guest%d@example.org", i))
		req, err := submit.Submit(ctx, guest.ID, ev.ID)
		require.NoError(t, err)
		require.Equal(t, participation.StatusPending, req.Status)
		requestIDs = append(requestIDs, req.ID)
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		confirmed int
	)
	for _, id := range requestIDs {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			for {
				decision, err := engine.Decide(ctx, ev.ID, owner.ID, []string{id}, participation.OutcomeConfirmed)
				if errors.Is(err, storage.ErrContention) {
					continue
				}
				if err == nil {
					mu.Lock()
					confirmed += len(decision.Confirmed)
					mu.Unlock()
				}
				return
			}
		}(id)
	}
	wg.Wait()

	assert.Equal(t, 3, confirmed)
	stored, err := repo.EventRepository().GetByID(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, stored.ConfirmedRequests)
	count, err := repo.Requests().CountConfirmed(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestRemoveUserReleasesConfirmedSeats(t *testing.T) {
	repo, _ := setupPostgres(t)
	ctx := context.Background()

	owner := seedUser(t, repo, "owner@example.org")
	first := seedUser(t, repo, "first@example.org")
	second := seedUser(t, repo, "second@example.org")
	cat := seedCategory(t, repo, "Concerts")
	ev := seedEvent(t, repo, owner.ID, cat.ID, 1, events.StatePublished)

	submit := participation.NewSubmissionService(repo, repo, zerolog.Nop())
	engine := participation.NewAdmissionEngine(repo, zerolog.Nop())
	req, err := submit.Submit(ctx, first.ID, ev.ID)
	require.NoError(t, err)
	_, err = engine.Decide(ctx, ev.ID, owner.ID, []string{req.ID}, participation.OutcomeConfirmed)
	require.NoError(t, err)

	// The bare delete refuses while the seat is held.
	err = repo.Users().Delete(ctx, first.ID)
	require.ErrorIs(t, err, storage.ErrContention)

	require.NoError(t, storage.NewUserRemover(repo, nil, zerolog.Nop()).RemoveUser(ctx, first.ID))

	stored, err := repo.EventRepository().GetByID(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, stored.ConfirmedRequests)

	_, err = submit.Submit(ctx, second.ID, ev.ID)
	require.NoError(t, err)
	require.ErrorIs(t, storage.NewUserRemover(repo, nil, zerolog.Nop()).RemoveUser(ctx, first.ID), users.ErrUserNotFound)
}

func TestRemoveUserKeepsInitiators(t *testing.T) {
	repo, _ := setupPostgres(t)
	ctx := context.Background()

	owner := seedUser(t, repo, "owner@example.org")
	cat := seedCategory(t, repo, "Concerts")
	seedEvent(t, repo, owner.ID, cat.ID, 0, events.StatePublished)

	err := storage.NewUserRemover(repo, nil, zerolog.Nop()).RemoveUser(ctx, owner.ID)
	require.ErrorIs(t, err, users.ErrUserInUse)
	_, err = repo.Users().GetByID(ctx, owner.ID)
	require.NoError(t, err)
}

func TestCapacityConstraintRejectsOverAdmission(t *testing.T) {
	repo, _ := setupPostgres(t)
	ctx := context.Background()

	owner := seedUser(t, repo, "owner@example.org")
	cat := seedCategory(t, repo, "Concerts")
	limited := seedEvent(t, repo, owner.ID, cat.ID, 2, events.StatePublished)
	open := seedEvent(t, repo, owner.ID, cat.ID, 0, events.StatePublished)

	require.NoError(t, repo.Events().SetConfirmedRequests(ctx, limited.ID, 2))
	err := repo.Events().SetConfirmedRequests(ctx, limited.ID, 3)
	require.ErrorIs(t, err, participation.ErrCapacityExceeded)
	require.NoError(t, repo.Events().SetConfirmedRequests(ctx, open.ID, 50))

	stored, err := repo.EventRepository().GetByID(ctx, limited.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.ConfirmedRequests)
}

package participation_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/Ycseeasy/explore-with-me/internal/domain/categories"
	"github.com/Ycseeasy/explore-with-me/internal/domain/events"
	"github.com/Ycseeasy/explore-with-me/internal/domain/participation"
	"github.com/Ycseeasy/explore-with-me/internal/domain/users"
	"github.com/Ycseeasy/explore-with-me/internal/notify"
	"github.com/Ycseeasy/explore-with-me/internal/storage/memory"
)

const ownerID = "owner"

type fixture struct {
	store      *memory.Store
	submission *participation.SubmissionService
	admission  *participation.AdmissionEngine
	notified   *notify.Recorder
}

func newFixture(t *testing.T, guests int) *fixture {
	t.Helper()
	return newFixtureWith(t, guests)
}

func newFixtureWith(t *testing.T, guests int, opts ...memory.Option) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.New(opts...)

	_, err := store.Users().Create(ctx, users.CreateParams{ID: ownerID, Name: "Owner", Email: "owner@example.org"})
	require.NoError(t, err)
	for i := 1; i <= guests; i++ {
		_, err := store.Users().Create(ctx, users.CreateParams{
			ID:    guestID(i),
			Name:  fmt.Sprintf("Guest %d", i),
			Email: fmt.Sprintf("guest%d@example.org", i),
		})
		require.NoError(t, err)
	}
	_, err = store.Categories().Create(ctx, categories.Category{ID: "cat", Name: "Hiking"})
	require.NoError(t, err)

	rec := &notify.Recorder{}
	return &fixture{
		store:      store,
		submission: participation.NewSubmissionService(store, store, zerolog.Nop(), participation.WithPublisher(rec)),
		admission:  participation.NewAdmissionEngine(store, zerolog.Nop(), participation.WithPublisher(rec)),
		notified:   rec,
	}
}

func guestID(i int) string {
	return fmt.Sprintf("guest-%02d", i)
}

func (f *fixture) event(t *testing.T, id string, limit int, moderation bool, state events.State) {
	t.Helper()
	ctx := context.Background()
	ev, err := f.store.EventRepository().Create(ctx, events.CreateParams{
		ID:                id,
		Title:             "Event " + id,
		InitiatorID:       ownerID,
		CategoryID:        "cat",
		EventDate:         time.Now().Add(48 * time.Hour),
		ParticipantLimit:  limit,
		RequestModeration: moderation,
	})
	require.NoError(t, err)
	if state != events.StatePending {
		ev.State = state
		require.NoError(t, f.store.EventRepository().UpdateLifecycle(ctx, ev))
	}
}

func (f *fixture) confirmed(t *testing.T, eventID string) int {
	t.Helper()
	ev, err := f.store.EventRepository().GetByID(context.Background(), eventID)
	require.NoError(t, err)
	return ev.ConfirmedRequests
}

func (f *fixture) status(t *testing.T, requestID string) participation.Status {
	t.Helper()
	req, err := f.store.Requests().GetByID(context.Background(), requestID)
	require.NoError(t, err)
	return req.Status
}

func (f *fixture) submitAll(t *testing.T, eventID string, guests ...int) []string {
	t.Helper()
	out := make([]string, 0, len(guests))
	for _, g := range guests {
		req, err := f.submission.Submit(context.Background(), guestID(g), eventID)
		require.NoError(t, err)
		out = append(out, req.ID)
	}
	return out
}

func requestIDs(reqs []participation.Request) []string {
	out := make([]string, 0, len(reqs))
	for _, r := range reqs {
		out = append(out, r.ID)
	}
	return out
}

package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/Ycseeasy/explore-with-me/internal/notify"
)

type stubRepo struct {
	events    map[string]*Event
	createErr error
	updateErr error
	commits   int
	rollbacks int
	locked    []string
}

func newStubRepo(evs ...*Event) *stubRepo {
	repo := &stubRepo{events: map[string]*Event{}}
	for _, ev := range evs {
		repo.events[ev.ID] = ev.Clone()
	}
	return repo
}

type stubTx struct {
	repo *stubRepo
	done bool
}

func (tx *stubTx) Commit(context.Context) error {
	tx.done = true
	tx.repo.commits++
	return nil
}

func (tx *stubTx) Rollback(context.Context) error {
	if tx.done {
		return nil
	}
	tx.done = true
	tx.repo.rollbacks++
	return nil
}

func (r *stubRepo) BeginTx(context.Context) (Repository, TxCommitter, error) {
	return r, &stubTx{repo: r}, nil
}

func (r *stubRepo) Create(_ context.Context, p CreateParams) (*Event, error) {
	if r.createErr != nil {
		return nil, r.createErr
	}
	ev := &Event{
		ID: p.ID, Title: p.Title, Annotation: p.Annotation, Description: p.Description,
		CategoryID: p.CategoryID, InitiatorID: p.InitiatorID, Location: p.Location,
		Paid: p.Paid, EventDate: p.EventDate, CreatedOn: p.CreatedOn,
		ParticipantLimit: p.ParticipantLimit, RequestModeration: p.RequestModeration,
		State: StatePending,
	}
	r.events[ev.ID] = ev
	return ev.Clone(), nil
}

func (r *stubRepo) GetByID(_ context.Context, id string) (*Event, error) {
	ev, ok := r.events[id]
	if !ok {
		return nil, ErrNotFound
	}
	return ev.Clone(), nil
}

func (r *stubRepo) GetForUpdate(ctx context.Context, id string) (*Event, error) {
	r.locked = append(r.locked, id)
	return r.GetByID(ctx, id)
}

func (r *stubRepo) UpdateLifecycle(_ context.Context, ev *Event) error {
	if r.updateErr != nil {
		return r.updateErr
	}
	stored := ev.Clone()
	stored.ConfirmedRequests = r.events[ev.ID].ConfirmedRequests
	r.events[ev.ID] = stored
	return nil
}

func (r *stubRepo) ListByInitiator(_ context.Context, initiatorID string, page Pagination) (ListResult, error) {
	var out []Event
	for _, ev := range r.events {
		if ev.InitiatorID == initiatorID {
			out = append(out, *ev)
		}
	}
	return ListResult{Events: out}, nil
}

type stubRefs struct {
	users      map[string]bool
	categories map[string]bool
}

func (s stubRefs) UserExists(_ context.Context, id string) (bool, error) {
	return s.users[id], nil
}

func (s stubRefs) CategoryExists(_ context.Context, id string) (bool, error) {
	return s.categories[id], nil
}

var defaultRefs = stubRefs{
	users:      map[string]bool{"owner": true},
	categories: map[string]bool{"hiking": true},
}

func newTestService(repo *stubRepo, pub notify.Publisher) *Service {
	return NewService(repo, defaultRefs, zerolog.Nop(),
		WithClock(func() time.Time { return fixedNow }),
		WithPublisher(pub),
	)
}

func validInput() NewEventInput {
	return NewEventInput{
		Title:       "Sunrise hike",
		Annotation:  "A short walk up the hill to watch the sunrise.",
		Description: "Meet at the trailhead. Bring water, a headlamp and warm layers.",
		CategoryID:  "hiking",
		Location:    &Location{Lat: 55.75, Lon: 37.61},
		EventDate:   fixedNow.Add(3 * time.Hour),
	}
}

func TestCreateAppliesDefaults(t *testing.T) {
	repo := newStubRepo()
	svc := newTestService(repo, nil)

	ev, err := svc.Create(context.Background(), "owner", validInput())

	require.NoError(t, err)
	require.Equal(t, StatePending, ev.State)
	require.Equal(t, 0, ev.ParticipantLimit)
	require.True(t, ev.RequestModeration)
	require.False(t, ev.Paid)
	require.Equal(t, 0, ev.ConfirmedRequests)
	require.Equal(t, fixedNow, ev.CreatedOn)
	require.NotEmpty(t, ev.ID)
}

func TestCreateSanitizesText(t *testing.T) {
	svc := newTestService(newStubRepo(), nil)
	in := validInput()
	in.Title = "<b>Sunrise</b> hike"
	in.Description = `<p onclick="x()">Meet at the trailhead with water and layers.</p>`

	ev, err := svc.Create(context.Background(), "owner", in)

	require.NoError(t, err)
	require.Equal(t, "Sunrise hike", ev.Title)
	require.Equal(t, "<p>Meet at the trailhead with water and layers.</p>", ev.Description)
}

func TestCreateRejectsShortLeadTime(t *testing.T) {
	svc := newTestService(newStubRepo(), nil)
	in := validInput()
	in.EventDate = fixedNow.Add(time.Hour)

	_, err := svc.Create(context.Background(), "owner", in)

	require.ErrorIs(t, err, ErrInvalidDate)
}

func TestCreateValidatesFields(t *testing.T) {
	svc := newTestService(newStubRepo(), nil)
	in := validInput()
	in.Title = "ab"
	in.Annotation = "   "
	negative := -1
	in.ParticipantLimit = &negative

	_, err := svc.Create(context.Background(), "owner", in)

	var verrs ValidationErrors
	require.ErrorAs(t, err, &verrs)
	fields := verrs.Fields()
	require.Contains(t, fields, "title")
	require.Contains(t, fields, "annotation")
	require.Contains(t, fields, "participantLimit")
}

func TestCreateChecksReferences(t *testing.T) {
	svc := newTestService(newStubRepo(), nil)

	_, err := svc.Create(context.Background(), "stranger", validInput())
	require.ErrorIs(t, err, ErrInitiatorNotFound)

	in := validInput()
	in.CategoryID = "missing"
	_, err = svc.Create(context.Background(), "owner", in)
	require.ErrorIs(t, err, ErrCategoryNotFound)
}

func TestGetOwnedHidesOtherInitiators(t *testing.T) {
	ev := pendingEvent()
	svc := newTestService(newStubRepo(ev), nil)

	_, err := svc.GetOwned(context.Background(), "someone-else", ev.ID)

	require.ErrorIs(t, err, ErrNotFound)
}

func TestGetPublishedHidesUnpublished(t *testing.T) {
	ev := pendingEvent()
	svc := newTestService(newStubRepo(ev), nil)

	_, err := svc.GetPublished(context.Background(), ev.ID)

	require.ErrorIs(t, err, ErrNotFound)
}

func TestAdminPublishCommitsAndNotifies(t *testing.T) {
	ev := pendingEvent()
	repo := newStubRepo(ev)
	rec := &notify.Recorder{}
	svc := newTestService(repo, rec)

	updated, err := svc.UpdateByAdmin(context.Background(), ev.ID, UpdateParams{StateAction: action(ActionPublish)})

	require.NoError(t, err)
	require.Equal(t, StatePublished, updated.State)
	require.Equal(t, 1, repo.commits)
	require.Equal(t, 0, repo.rollbacks)
	require.Equal(t, []string{ev.ID}, repo.locked)
	require.Equal(t, []string{notify.EventPublished}, rec.Types())

	public, err := svc.GetPublished(context.Background(), ev.ID)
	require.NoError(t, err)
	require.Equal(t, ev.ID, public.ID)
}

func TestAdminRejectNotifies(t *testing.T) {
	ev := pendingEvent()
	rec := &notify.Recorder{}
	svc := newTestService(newStubRepo(ev), rec)

	updated, err := svc.UpdateByAdmin(context.Background(), ev.ID, UpdateParams{StateAction: action(ActionReject)})

	require.NoError(t, err)
	require.Equal(t, StateCanceled, updated.State)
	require.Equal(t, []string{notify.EventRejected}, rec.Types())
}

func TestFailedUpdateRollsBack(t *testing.T) {
	ev := pendingEvent()
	repo := newStubRepo(ev)
	repo.updateErr = errors.New("disk full")
	rec := &notify.Recorder{}
	svc := newTestService(repo, rec)

	_, err := svc.UpdateByAdmin(context.Background(), ev.ID, UpdateParams{StateAction: action(ActionPublish)})

	require.Error(t, err)
	require.Equal(t, 0, repo.commits)
	require.Equal(t, 1, repo.rollbacks)
	require.Empty(t, rec.Types())
}

func TestRejectedTransitionRollsBack(t *testing.T) {
	ev := pendingEvent()
	ev.State = StatePublished
	repo := newStubRepo(ev)
	svc := newTestService(repo, nil)

	_, err := svc.UpdateByOwner(context.Background(), "owner", ev.ID, UpdateParams{StateAction: action(ActionCancelReview)})

	require.ErrorIs(t, err, ErrInvalidTransition)
	require.Equal(t, 1, repo.rollbacks)
	stored, _ := repo.GetByID(context.Background(), ev.ID)
	require.Equal(t, StatePublished, stored.State)
}

func TestOwnerUpdateRequiresOwnership(t *testing.T) {
	ev := pendingEvent()
	svc := newTestService(newStubRepo(ev), nil)

	_, err := svc.UpdateByOwner(context.Background(), "intruder", ev.ID, UpdateParams{StateAction: action(ActionCancelReview)})

	require.ErrorIs(t, err, ErrNotFound)
}

func TestOwnerCancelNotifies(t *testing.T) {
	ev := pendingEvent()
	rec := &notify.Recorder{}
	svc := newTestService(newStubRepo(ev), rec)

	updated, err := svc.UpdateByOwner(context.Background(), "owner", ev.ID, UpdateParams{StateAction: action(ActionCancelReview)})

	require.NoError(t, err)
	require.Equal(t, StateCanceled, updated.State)
	require.Equal(t, []string{notify.EventCanceled}, rec.Types())
}

func TestUpdateValidatesPartialFields(t *testing.T) {
	ev := pendingEvent()
	svc := newTestService(newStubRepo(ev), nil)

	_, err := svc.UpdateByOwner(context.Background(), "owner", ev.ID, UpdateParams{Annotation: str("too short")})

	var verrs ValidationErrors
	require.ErrorAs(t, err, &verrs)
	require.Contains(t, verrs.Fields(), "annotation")
}

func TestListOwnedClampsPageSize(t *testing.T) {
	var seen Pagination
	repo := &pageRecorder{stubRepo: newStubRepo(), seen: &seen}
	svc := NewService(repo, defaultRefs, zerolog.Nop())

	_, err := svc.ListOwned(context.Background(), "owner", Pagination{Limit: 1000})

	require.NoError(t, err)
	require.Equal(t, maxPageSize, seen.Limit)

	_, err = svc.ListOwned(context.Background(), "owner", Pagination{})
	require.NoError(t, err)
	require.Equal(t, defaultPageSize, seen.Limit)
}

type pageRecorder struct {
	*stubRepo
	seen *Pagination
}

func (p *pageRecorder) ListByInitiator(ctx context.Context, initiatorID string, page Pagination) (ListResult, error) {
	*p.seen = page
	return p.stubRepo.ListByInitiator(ctx, initiatorID, page)
}

package memory

import (
	"context"
	"sort"

	"github.com/Ycseeasy/explore-with-me/internal/domain/events"
)

type eventRepo struct {
	store *Store
}

func (r *eventRepo) BeginTx(ctx context.Context) (events.Repository, events.TxCommitter, error) {
	child, c := r.store.begin()
	return &eventRepo{store: child}, c, nil
}

func (r *eventRepo) Create(_ context.Context, p events.CreateParams) (*events.Event, error) {
	ev := &events.Event{
		ID:                p.ID,
		Title:             p.Title,
		Annotation:        p.Annotation,
		Description:       p.Description,
		CategoryID:        p.CategoryID,
		InitiatorID:       p.InitiatorID,
		Location:          p.Location,
		Paid:              p.Paid,
		EventDate:         p.EventDate,
		CreatedOn:         p.CreatedOn,
		ParticipantLimit:  p.ParticipantLimit,
		RequestModeration: p.RequestModeration,
		State:             events.StatePending,
	}
	err := r.store.write(func(st *state) (func(*state), error) {
		if _, ok := st.users[p.InitiatorID]; !ok {
			return nil, events.ErrInitiatorNotFound
		}
		if _, ok := st.categories[p.CategoryID]; !ok {
			return nil, events.ErrCategoryNotFound
		}
		st.events[ev.ID] = ev.Clone()
		return func(st *state) { delete(st.events, ev.ID) }, nil
	})
	if err != nil {
		return nil, err
	}
	return ev, nil
}

func (r *eventRepo) GetByID(_ context.Context, id string) (*events.Event, error) {
	r.store.data.mu.RLock()
	defer r.store.data.mu.RUnlock()
	ev, ok := r.store.data.events[id]
	if !ok {
		return nil, events.ErrNotFound
	}
	return ev.Clone(), nil
}

func (r *eventRepo) GetForUpdate(ctx context.Context, id string) (*events.Event, error) {
	if _, err := r.GetByID(ctx, id); err != nil {
		return nil, err
	}
	if err := r.store.lockEvent(ctx, id); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

func (r *eventRepo) UpdateLifecycle(_ context.Context, ev *events.Event) error {
	return r.store.write(func(st *state) (func(*state), error) {
		stored, ok := st.events[ev.ID]
		if !ok {
			return nil, events.ErrNotFound
		}
		previous := stored.Clone()
		next := ev.Clone()
		next.ConfirmedRequests = stored.ConfirmedRequests
		next.InitiatorID = stored.InitiatorID
		next.CreatedOn = stored.CreatedOn
		st.events[ev.ID] = next
		return func(st *state) {
			if current, ok := st.events[ev.ID]; ok {
				previous.ConfirmedRequests = current.ConfirmedRequests
			}
			st.events[ev.ID] = previous
		}, nil
	})
}

func (r *eventRepo) SetConfirmedRequests(_ context.Context, id string, count int) error {
	return r.store.write(func(st *state) (func(*state), error) {
		stored, ok := st.events[id]
		if !ok {
			return nil, events.ErrNotFound
		}
		previous := stored.ConfirmedRequests
		stored.ConfirmedRequests = count
		return func(st *state) {
			if current, ok := st.events[id]; ok {
				current.ConfirmedRequests = previous
			}
		}, nil
	})
}

func (r *eventRepo) ListByInitiator(_ context.Context, initiatorID string, page events.Pagination) (events.ListResult, error) {
	r.store.data.mu.RLock()
	matched := make([]events.Event, 0)
	for _, ev := range r.store.data.events {
		if ev.InitiatorID == initiatorID && ev.ID > page.After {
			matched = append(matched, *ev.Clone())
		}
	}
	r.store.data.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })
	result := events.ListResult{Events: matched}
	if page.Limit > 0 && len(matched) > page.Limit {
		result.Events = matched[:page.Limit]
		result.NextAfter = result.Events[page.Limit-1].ID
	}
	return result, nil
}

func (r *eventRepo) ListIDs(_ context.Context, after string, limit int) ([]string, error) {
	r.store.data.mu.RLock()
	out := make([]string, 0)
	for id := range r.store.data.events {
		if id > after {
			out = append(out, id)
		}
	}
	r.store.data.mu.RUnlock()

	sort.Strings(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

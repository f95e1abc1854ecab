package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/Ycseeasy/explore-with-me/internal/domain/events"
	"github.com/Ycseeasy/explore-with-me/internal/domain/participation"
)

type requestRepo struct {
	store *Store
}

func (r *requestRepo) Create(_ context.Context, p participation.CreateParams) (*participation.Request, error) {
	req := &participation.Request{
		ID:          p.ID,
		EventID:     p.EventID,
		RequesterID: p.RequesterID,
		Status:      p.Status,
		Created:     p.Created,
	}
	err := r.store.write(func(st *state) (func(*state), error) {
		if _, ok := st.events[p.EventID]; !ok {
			return nil, events.ErrNotFound
		}
		if _, ok := st.users[p.RequesterID]; !ok {
			return nil, participation.ErrRequesterMissing
		}
		for _, existing := range st.requests {
			if existing.EventID == p.EventID && existing.RequesterID == p.RequesterID && existing.Status.Active() {
				return nil, fmt.Errorf("%w: requester already has an active request for this event", participation.ErrConflict)
			}
		}
		stored := *req
		st.requests[req.ID] = &stored
		return func(st *state) { delete(st.requests, req.ID) }, nil
	})
	if err != nil {
		return nil, err
	}
	return req, nil
}

func (r *requestRepo) GetByID(_ context.Context, id string) (*participation.Request, error) {
	r.store.data.mu.RLock()
	defer r.store.data.mu.RUnlock()
	req, ok := r.store.data.requests[id]
	if !ok {
		return nil, participation.ErrNotFound
	}
	out := *req
	return &out, nil
}

func (r *requestRepo) GetByIDs(_ context.Context, ids []string) ([]participation.Request, error) {
	r.store.data.mu.RLock()
	defer r.store.data.mu.RUnlock()
	out := make([]participation.Request, 0, len(ids))
	for _, id := range ids {
		if req, ok := r.store.data.requests[id]; ok {
			out = append(out, *req)
		}
	}
	return out, nil
}

func (r *requestRepo) FindActive(_ context.Context, requesterID, eventID string) (*participation.Request, error) {
	r.store.data.mu.RLock()
	defer r.store.data.mu.RUnlock()
	for _, req := range r.store.data.requests {
		if req.RequesterID == requesterID && req.EventID == eventID && req.Status.Active() {
			out := *req
			return &out, nil
		}
	}
	return nil, participation.ErrNotFound
}

func (r *requestRepo) UpdateStatus(_ context.Context, id string, status participation.Status) error {
	return r.store.write(func(st *state) (func(*state), error) {
		req, ok := st.requests[id]
		if !ok {
			return nil, participation.ErrNotFound
		}
		previous := req.Status
		req.Status = status
		return func(st *state) {
			if current, ok := st.requests[id]; ok {
				current.Status = previous
			}
		}, nil
	})
}

func (r *requestRepo) ListByRequester(_ context.Context, requesterID string) ([]participation.Request, error) {
	r.store.data.mu.RLock()
	out := make([]participation.Request, 0)
	for _, req := range r.store.data.requests {
		if req.RequesterID != requesterID {
			continue
		}
		if ev, ok := r.store.data.events[req.EventID]; ok && ev.InitiatorID == requesterID {
			continue
		}
		out = append(out, *req)
	}
	r.store.data.mu.RUnlock()
	sortRequests(out)
	return out, nil
}

func (r *requestRepo) ListByEvent(_ context.Context, eventID string) ([]participation.Request, error) {
	r.store.data.mu.RLock()
	out := make([]participation.Request, 0)
	for _, req := range r.store.data.requests {
		if req.EventID == eventID {
			out = append(out, *req)
		}
	}
	r.store.data.mu.RUnlock()
	sortRequests(out)
	return out, nil
}

func (r *requestRepo) CountConfirmed(_ context.Context, eventID string) (int, error) {
	r.store.data.mu.RLock()
	defer r.store.data.mu.RUnlock()
	count := 0
	for _, req := range r.store.data.requests {
		if req.EventID == eventID && req.Status == participation.StatusConfirmed {
			count++
		}
	}
	return count, nil
}

func sortRequests(reqs []participation.Request) {
	sort.Slice(reqs, func(i, j int) bool { return reqs[i].ID < reqs[j].ID })
}

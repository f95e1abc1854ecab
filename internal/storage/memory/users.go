package memory

import (
	"context"
	"sort"
	"strings"

	"github.com/Ycseeasy/explore-with-me/internal/domain/participation"
	"github.com/Ycseeasy/explore-with-me/internal/domain/users"
	"github.com/Ycseeasy/explore-with-me/internal/storage"
)

type userRepo struct {
	store *Store
}

func (r *userRepo) Create(_ context.Context, p users.CreateParams) (*users.User, error) {
	user := &users.User{ID: p.ID, Name: p.Name, Email: p.Email, CreatedAt: p.CreatedAt}
	err := r.store.write(func(st *state) (func(*state), error) {
		for _, existing := range st.users {
			if strings.EqualFold(existing.Email, p.Email) {
				return nil, users.ErrEmailTaken
			}
		}
		stored := *user
		st.users[user.ID] = &stored
		return func(st *state) { delete(st.users, user.ID) }, nil
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (r *userRepo) GetByID(_ context.Context, id string) (*users.User, error) {
	r.store.data.mu.RLock()
	defer r.store.data.mu.RUnlock()
	user, ok := r.store.data.users[id]
	if !ok {
		return nil, users.ErrUserNotFound
	}
	out := *user
	return &out, nil
}

// GetForUpdate holds the user's key until the unit of work finishes, so
// concurrent removals of one user run one after the other.
func (r *userRepo) GetForUpdate(ctx context.Context, id string) (*users.User, error) {
	if err := r.store.lockEvent(ctx, "user:"+id); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

func (r *userRepo) List(_ context.Context, f users.ListFilters) (users.ListResult, error) {
	wanted := make(map[string]struct{}, len(f.IDs))
	for _, id := range f.IDs {
		wanted[id] = struct{}{}
	}

	r.store.data.mu.RLock()
	matched := make([]users.User, 0)
	for id, user := range r.store.data.users {
		if id <= f.After {
			continue
		}
		if len(wanted) > 0 {
			if _, ok := wanted[id]; !ok {
				continue
			}
		}
		matched = append(matched, *user)
	}
	r.store.data.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })
	result := users.ListResult{Users: matched}
	if f.Limit > 0 && len(matched) > f.Limit {
		result.Users = matched[:f.Limit]
		result.NextAfter = result.Users[f.Limit-1].ID
	}
	return result, nil
}

// Delete removes the user and their participation requests. It refuses with
// storage.ErrContention while a CONFIRMED request still holds a seat, which
// happens when a submission lands after the seats were released.
func (r *userRepo) Delete(_ context.Context, id string) error {
	return r.store.write(func(st *state) (func(*state), error) {
		user, ok := st.users[id]
		if !ok {
			return nil, users.ErrUserNotFound
		}
		for _, ev := range st.events {
			if ev.InitiatorID == id {
				return nil, users.ErrUserInUse
			}
		}
		for _, req := range st.requests {
			if req.RequesterID == id && req.Status == participation.StatusConfirmed {
				return nil, storage.ErrContention
			}
		}
		delete(st.users, id)
		removed := make([]*participation.Request, 0)
		for reqID, req := range st.requests {
			if req.RequesterID == id {
				removed = append(removed, req)
				delete(st.requests, reqID)
			}
		}
		return func(st *state) {
			st.users[id] = user
			for _, req := range removed {
				st.requests[req.ID] = req
			}
		}, nil
	})
}

package memory

import (
	"context"
	"sort"
	"strings"

	"github.com/Ycseeasy/explore-with-me/internal/domain/categories"
)

type categoryRepo struct {
	store *Store
}

func nameTaken(st *state, name, exceptID string) bool {
	for id, c := range st.categories {
		if id != exceptID && strings.EqualFold(c.Name, name) {
			return true
		}
	}
	return false
}

func (r *categoryRepo) Create(_ context.Context, c categories.Category) (*categories.Category, error) {
	err := r.store.write(func(st *state) (func(*state), error) {
		if nameTaken(st, c.Name, "") {
			return nil, categories.ErrNameTaken
		}
		stored := c
		st.categories[c.ID] = &stored
		return func(st *state) { delete(st.categories, c.ID) }, nil
	})
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *categoryRepo) GetByID(_ context.Context, id string) (*categories.Category, error) {
	r.store.data.mu.RLock()
	defer r.store.data.mu.RUnlock()
	c, ok := r.store.data.categories[id]
	if !ok {
		return nil, categories.ErrNotFound
	}
	out := *c
	return &out, nil
}

func (r *categoryRepo) Rename(_ context.Context, id, name string) (*categories.Category, error) {
	var out categories.Category
	err := r.store.write(func(st *state) (func(*state), error) {
		c, ok := st.categories[id]
		if !ok {
			return nil, categories.ErrNotFound
		}
		if nameTaken(st, name, id) {
			return nil, categories.ErrNameTaken
		}
		previous := c.Name
		c.Name = name
		out = *c
		return func(st *state) {
			if current, ok := st.categories[id]; ok {
				current.Name = previous
			}
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *categoryRepo) Delete(_ context.Context, id string) error {
	return r.store.write(func(st *state) (func(*state), error) {
		c, ok := st.categories[id]
		if !ok {
			return nil, categories.ErrNotFound
		}
		for _, ev := range st.events {
			if ev.CategoryID == id {
				return nil, categories.ErrInUse
			}
		}
		delete(st.categories, id)
		return func(st *state) { st.categories[id] = c }, nil
	})
}

func (r *categoryRepo) List(_ context.Context, after string, limit int) ([]categories.Category, error) {
	r.store.data.mu.RLock()
	out := make([]categories.Category, 0)
	for id, c := range r.store.data.categories {
		if id > after {
			out = append(out, *c)
		}
	}
	r.store.data.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/Ycseeasy/explore-with-me/internal/domain/users"
	"github.com/Ycseeasy/explore-with-me/internal/storage"
	"github.com/jackc/pgx/v5"
)

var _ users.Repository = (*UserRepository)(nil)

type UserRepository struct {
	repo *Repository
}

func (r *UserRepository) Create(ctx context.Context, p users.CreateParams) (user *users.User, err error) {
	defer track("create_user", &err)()

	var u users.User
	err = r.repo.queryer().QueryRow(ctx, `
INSERT INTO users (id, name, email, created_at)
VALUES ($1, $2, $3, $4)
RETURNING id, name, email, created_at`,
		p.ID, p.Name, p.Email, p.CreatedAt,
	).Scan(&u.ID, &u.Name, &u.Email, &u.CreatedAt)
	if err != nil {
		if pgCode(err) == codeUniqueViolation {
			return nil, users.ErrEmailTaken
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	u.CreatedAt = u.CreatedAt.UTC()
	return &u, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (user *users.User, err error) {
	defer track("get_user", &err)()

	var u users.User
	err = r.repo.queryer().QueryRow(ctx,
		`SELECT id, name, email, created_at FROM users WHERE id = $1`, id,
	).Scan(&u.ID, &u.Name, &u.Email, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, users.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	u.CreatedAt = u.CreatedAt.UTC()
	return &u, nil
}

func (r *UserRepository) List(ctx context.Context, f users.ListFilters) (result users.ListResult, err error) {
	defer track("list_users", &err)()

	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	var ids any
	if len(f.IDs) > 0 {
		ids = f.IDs
	}

	rows, err := r.repo.queryer().Query(ctx, `
SELECT id, name, email, created_at
  FROM users
 WHERE ($1::text[] IS NULL OR id = ANY($1::text[]))
   AND id > $2
 ORDER BY id
 LIMIT $3`, ids, f.After, limit+1)
	if err != nil {
		return users.ListResult{}, fmt.Errorf("list users: %w", err)
	}
	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (users.User, error) {
		var u users.User
		if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.CreatedAt); err != nil {
			return users.User{}, err
		}
		u.CreatedAt = u.CreatedAt.UTC()
		return u, nil
	})
	if err != nil {
		return users.ListResult{}, fmt.Errorf("collect users: %w", err)
	}

	result.Users = items
	if len(items) > limit {
		result.Users = items[:limit]
		result.NextAfter = result.Users[limit-1].ID
	}
	return result, nil
}

// GetForUpdate locks the user row. Inserts of requests referencing the user
// wait for the lock, so a removal sees every request made before it.
func (r *UserRepository) GetForUpdate(ctx context.Context, id string) (user *users.User, err error) {
	defer track("get_user_for_update", &err)()

	var u users.User
	err = r.repo.queryer().QueryRow(ctx,
		`SELECT id, name, email, created_at FROM users WHERE id = $1 FOR UPDATE`, id,
	).Scan(&u.ID, &u.Name, &u.Email, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, users.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lock user: %w", mapError(err))
	}
	u.CreatedAt = u.CreatedAt.UTC()
	return &u, nil
}

// Delete removes the user. Their participation requests go with them; users
// who still initiate events cannot be removed. A user whose CONFIRMED
// requests still hold seats is refused with storage.ErrContention.
func (r *UserRepository) Delete(ctx context.Context, id string) (err error) {
	defer track("delete_user", &err)()

	tag, err := r.repo.queryer().Exec(ctx, `
DELETE FROM users
 WHERE id = $1
   AND NOT EXISTS (
       SELECT 1 FROM participation_requests
        WHERE requester_id = $1 AND status = 'CONFIRMED')`, id)
	if err != nil {
		if pgCode(err) == codeForeignKeyViolation {
			return users.ErrUserInUse
		}
		return fmt.Errorf("delete user: %w", mapError(err))
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
		return fmt.Errorf("%w: user still holds confirmed seats", storage.ErrContention)
	}
	return nil
}

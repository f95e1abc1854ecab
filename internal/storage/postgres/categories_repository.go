package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/Ycseeasy/explore-with-me/internal/domain/categories"
	"github.com/jackc/pgx/v5"
)

var _ categories.Repository = (*CategoryRepository)(nil)

type CategoryRepository struct {
	repo *Repository
}

func (r *CategoryRepository) Create(ctx context.Context, c categories.Category) (out *categories.Category, err error) {
	defer track("create_category", &err)()

	var created categories.Category
	err = r.repo.queryer().QueryRow(ctx,
		`INSERT INTO categories (id, name) VALUES ($1, $2) RETURNING id, name`, c.ID, c.Name,
	).Scan(&created.ID, &created.Name)
	if err != nil {
		if pgCode(err) == codeUniqueViolation {
			return nil, categories.ErrNameTaken
		}
		return nil, fmt.Errorf("insert category: %w", err)
	}
	return &created, nil
}

func (r *CategoryRepository) GetByID(ctx context.Context, id string) (out *categories.Category, err error) {
	defer track("get_category", &err)()

	var c categories.Category
	err = r.repo.queryer().QueryRow(ctx, `SELECT id, name FROM categories WHERE id = $1`, id).Scan(&c.ID, &c.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, categories.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get category: %w", err)
	}
	return &c, nil
}

func (r *CategoryRepository) Rename(ctx context.Context, id, name string) (out *categories.Category, err error) {
	defer track("rename_category", &err)()

	var c categories.Category
	err = r.repo.queryer().QueryRow(ctx,
		`UPDATE categories SET name = $2 WHERE id = $1 RETURNING id, name`, id, name,
	).Scan(&c.ID, &c.Name)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return nil, categories.ErrNotFound
	case pgCode(err) == codeUniqueViolation:
		return nil, categories.ErrNameTaken
	case err != nil:
		return nil, fmt.Errorf("rename category: %w", err)
	}
	return &c, nil
}

func (r *CategoryRepository) Delete(ctx context.Context, id string) (err error) {
	defer track("delete_category", &err)()

	tag, err := r.repo.queryer().Exec(ctx, `DELETE FROM categories WHERE id = $1`, id)
	if err != nil {
		if pgCode(err) == codeForeignKeyViolation {
			return categories.ErrInUse
		}
		return fmt.Errorf("delete category: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return categories.ErrNotFound
	}
	return nil
}

func (r *CategoryRepository) List(ctx context.Context, after string, limit int) (out []categories.Category, err error) {
	defer track("list_categories", &err)()

	if limit <= 0 {
		limit = 50
	}
	rows, err := r.repo.queryer().Query(ctx, `SELECT id, name FROM categories WHERE id > $1 ORDER BY id LIMIT $2`, after, limit)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	out, err = pgx.CollectRows(rows, pgx.RowToStructByPos[categories.Category])
	if err != nil {
		return nil, fmt.Errorf("collect categories: %w", err)
	}
	return out, nil
}

package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Ycseeasy/explore-with-me/internal/domain/categories"
	"github.com/Ycseeasy/explore-with-me/internal/domain/events"
	"github.com/Ycseeasy/explore-with-me/internal/domain/participation"
	"github.com/Ycseeasy/explore-with-me/internal/domain/users"
	"github.com/Ycseeasy/explore-with-me/internal/metrics"
	"github.com/Ycseeasy/explore-with-me/internal/storage"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var _ storage.Repository = (*Repository)(nil)

const defaultLockTimeout = 5 * time.Second

// Repository is the PostgreSQL storage backend. A Repository returned by
// BeginTx is bound to one transaction and shares it with every
// sub-repository it hands out.
type Repository struct {
	pool        *pgxpool.Pool
	tx          pgx.Tx
	lockTimeout time.Duration
}

type Option func(*Repository)

// WithLockTimeout sets lock_timeout for each transaction. Row locks that
// are not granted in time surface as storage.ErrContention.
func WithLockTimeout(d time.Duration) Option {
	return func(r *Repository) {
		r.lockTimeout = d
	}
}

func NewRepository(pool *pgxpool.Pool, opts ...Option) (*Repository, error) {
	if pool == nil {
		return nil, fmt.Errorf("postgres repository: pool is nil")
	}
	r := &Repository{pool: pool, lockTimeout: defaultLockTimeout}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

type queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func (r *Repository) queryer() queryer {
	if r.tx != nil {
		return r.tx
	}
	return r.pool
}

// begin opens a transaction, or joins the current one.
func (r *Repository) begin(ctx context.Context) (*Repository, *txCommitter, error) {
	if r.tx != nil {
		return r, &txCommitter{}, nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("begin transaction: %w", err)
	}
	if r.lockTimeout > 0 {
		timeout := fmt.Sprintf("%dms", r.lockTimeout.Milliseconds())
		if _, err := tx.Exec(ctx, "SELECT set_config('lock_timeout', $1, true)", timeout); err != nil {
			_ = tx.Rollback(ctx)
			return nil, nil, fmt.Errorf("set lock timeout: %w", err)
		}
	}

	return &Repository{pool: r.pool, tx: tx, lockTimeout: r.lockTimeout}, &txCommitter{tx: tx}, nil
}

func (r *Repository) BeginTx(ctx context.Context) (participation.Store, participation.TxCommitter, error) {
	txRepo, committer, err := r.begin(ctx)
	if err != nil {
		return nil, nil, err
	}
	return txRepo, committer, nil
}

func (r *Repository) Begin(ctx context.Context) (storage.Repository, participation.TxCommitter, error) {
	txRepo, committer, err := r.begin(ctx)
	if err != nil {
		return nil, nil, err
	}
	return txRepo, committer, nil
}

func (r *Repository) Events() participation.EventStore {
	return &EventRepository{repo: r}
}

func (r *Repository) EventRepository() events.Repository {
	return &EventRepository{repo: r}
}

func (r *Repository) Requests() participation.Repository {
	return &RequestRepository{repo: r}
}

func (r *Repository) Users() users.Repository {
	return &UserRepository{repo: r}
}

func (r *Repository) Categories() categories.Repository {
	return &CategoryRepository{repo: r}
}

func (r *Repository) UserExists(ctx context.Context, id string) (bool, error) {
	return r.exists(ctx, "user_exists", "SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)", id)
}

func (r *Repository) CategoryExists(ctx context.Context, id string) (bool, error) {
	return r.exists(ctx, "category_exists", "SELECT EXISTS (SELECT 1 FROM categories WHERE id = $1)", id)
}

func (r *Repository) exists(ctx context.Context, op, query, id string) (found bool, err error) {
	defer track(op, &err)()
	err = r.queryer().QueryRow(ctx, query, id).Scan(&found)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return found, nil
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func (r *Repository) Close() {
	r.pool.Close()
}

// txCommitter finishes a transaction. A committer without a transaction
// belongs to a nested unit of work and leaves the outer one alone.
type txCommitter struct {
	tx pgx.Tx
}

func (tc *txCommitter) Commit(ctx context.Context) error {
	if tc.tx == nil {
		return nil
	}
	if err := tc.tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", mapError(err))
	}
	return nil
}

// Rollback is a no-op once the transaction has been committed.
func (tc *txCommitter) Rollback(ctx context.Context) error {
	if tc.tx == nil {
		return nil
	}
	if err := tc.tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("rollback transaction: %w", err)
	}
	return nil
}

const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	codeSerialization       = "40001"
	codeDeadlock            = "40P01"
	codeLockNotAvailable    = "55P03"
)

const constraintEventCapacity = "events_capacity_check"

// mapError turns lock failures into storage.ErrContention and leaves every
// other error untouched.
func mapError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case codeLockNotAvailable, codeDeadlock, codeSerialization:
		metrics.LockContention.WithLabelValues("postgres").Inc()
		return fmt.Errorf("%w: %s", storage.ErrContention, pgErr.Message)
	}
	return err
}

// track records the duration and outcome of a query. Use it as
// defer track("op", &err)().
func track(op string, errp *error) func() {
	start := time.Now()
	return func() {
		metrics.RecordQuery(op, start, *errp)
	}
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// constraint returns the violated constraint name, if any.
func constraint(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.ConstraintName
	}
	return ""
}

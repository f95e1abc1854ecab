package storage

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/Ycseeasy/explore-with-me/internal/domain/participation"
	"github.com/Ycseeasy/explore-with-me/internal/notify"
)

// UserRemover deletes users together with their participation. The user row
// is locked first, then every active request is canceled through its
// event's ledger, then the row is deleted, all in one unit of work.
type UserRemover struct {
	repo      Repository
	publisher notify.Publisher
	logger    zerolog.Logger
	now       func() time.Time
}

func NewUserRemover(repo Repository, publisher notify.Publisher, logger zerolog.Logger) *UserRemover {
	if publisher == nil {
		publisher = notify.Nop{}
	}
	return &UserRemover{
		repo:      repo,
		publisher: publisher,
		logger:    logger.With().Str("component", "user_remover").Logger(),
		now:       time.Now,
	}
}

// RemoveUser returns users.ErrUserNotFound for unknown ids and
// users.ErrUserInUse when the user still initiates events. Canceled requests
// are announced after the unit of work commits.
func (u *UserRemover) RemoveUser(ctx context.Context, id string) error {
	tx, committer, err := u.repo.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = committer.Rollback(ctx)
	}()

	if _, err := tx.Users().GetForUpdate(ctx, id); err != nil {
		return err
	}
	canceled, err := participation.ReleaseRequester(ctx, tx, id)
	if err != nil {
		return err
	}
	if err := tx.Users().Delete(ctx, id); err != nil {
		return err
	}
	if err := committer.Commit(ctx); err != nil {
		return err
	}

	released := 0
	for _, req := range canceled {
		if req.Status == participation.StatusConfirmed {
			released++
		}
		msg := notify.Message{
			Type:       notify.RequestCanceled,
			EventID:    req.EventID,
			RequestID:  req.ID,
			UserID:     req.RequesterID,
			OccurredAt: u.now().UTC(),
		}
		if err := u.publisher.Publish(ctx, msg); err != nil {
			u.logger.Warn().Err(err).Str("request_id", req.ID).Msg("notification publish failed")
		}
	}
	if len(canceled) > 0 {
		u.logger.Info().
			Str("user_id", id).
			Int("canceled", len(canceled)).
			Int("released", released).
			Msg("participation withdrawn for removed user")
	}
	return nil
}

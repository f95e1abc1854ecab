package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/Ycseeasy/explore-with-me/internal/domain/events"
	"github.com/Ycseeasy/explore-with-me/internal/domain/participation"
	"github.com/jackc/pgx/v5"
)

var (
	_ events.Repository        = (*EventRepository)(nil)
	_ participation.EventStore = (*EventRepository)(nil)
)

type EventRepository struct {
	repo *Repository
}

const eventColumns = `id, title, annotation, description, category_id, initiator_id,
       lat, lon, paid, event_date, created_on, published_on, rejected_on,
       participant_limit, request_moderation, confirmed_requests, state`

func scanEvent(row pgx.Row) (*events.Event, error) {
	var (
		ev    events.Event
		state string
	)
	err := row.Scan(
		&ev.ID, &ev.Title, &ev.Annotation, &ev.Description, &ev.CategoryID, &ev.InitiatorID,
		&ev.Location.Lat, &ev.Location.Lon, &ev.Paid, &ev.EventDate, &ev.CreatedOn,
		&ev.PublishedOn, &ev.RejectedOn,
		&ev.ParticipantLimit, &ev.RequestModeration, &ev.ConfirmedRequests, &state,
	)
	if err != nil {
		return nil, err
	}
	ev.State = events.State(state)
	ev.EventDate = ev.EventDate.UTC()
	ev.CreatedOn = ev.CreatedOn.UTC()
	return &ev, nil
}

func (r *EventRepository) BeginTx(ctx context.Context) (events.Repository, events.TxCommitter, error) {
	txRepo, committer, err := r.repo.begin(ctx)
	if err != nil {
		return nil, nil, err
	}
	return &EventRepository{repo: txRepo}, committer, nil
}

func (r *EventRepository) Create(ctx context.Context, p events.CreateParams) (ev *events.Event, err error) {
	defer track("create_event", &err)()

	row := r.repo.queryer().QueryRow(ctx, `
INSERT INTO events (id, title, annotation, description, category_id, initiator_id,
                    lat, lon, paid, event_date, created_on, participant_limit, request_moderation, state)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, 'PENDING')
RETURNING `+eventColumns,
		p.ID, p.Title, p.Annotation, p.Description, p.CategoryID, p.InitiatorID,
		p.Location.Lat, p.Location.Lon, p.Paid, p.EventDate, p.CreatedOn, p.ParticipantLimit, p.RequestModeration,
	)
	ev, err = scanEvent(row)
	if err != nil {
		if pgCode(err) == codeForeignKeyViolation {
			switch constraint(err) {
			case "events_category_id_fkey":
				return nil, events.ErrCategoryNotFound
			case "events_initiator_id_fkey":
				return nil, events.ErrInitiatorNotFound
			}
		}
		return nil, fmt.Errorf("insert event: %w", err)
	}
	return ev, nil
}

func (r *EventRepository) GetByID(ctx context.Context, id string) (ev *events.Event, err error) {
	defer track("get_event", &err)()

	ev, err = scanEvent(r.repo.queryer().QueryRow(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, events.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get event: %w", err)
	}
	return ev, nil
}

// GetForUpdate takes a row lock on the event. The lock is released when the
// enclosing transaction ends; waiting longer than the lock timeout fails
// with storage.ErrContention.
func (r *EventRepository) GetForUpdate(ctx context.Context, id string) (ev *events.Event, err error) {
	defer track("lock_event", &err)()

	ev, err = scanEvent(r.repo.queryer().QueryRow(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, events.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lock event: %w", mapError(err))
	}
	return ev, nil
}

func (r *EventRepository) UpdateLifecycle(ctx context.Context, ev *events.Event) (err error) {
	defer track("update_event", &err)()

	tag, err := r.repo.queryer().Exec(ctx, `
UPDATE events
   SET title = $2,
       annotation = $3,
       description = $4,
       category_id = $5,
       lat = $6,
       lon = $7,
       paid = $8,
       event_date = $9,
       published_on = $10,
       rejected_on = $11,
       participant_limit = $12,
       request_moderation = $13,
       state = $14
 WHERE id = $1`,
		ev.ID, ev.Title, ev.Annotation, ev.Description, ev.CategoryID,
		ev.Location.Lat, ev.Location.Lon, ev.Paid, ev.EventDate,
		ev.PublishedOn, ev.RejectedOn, ev.ParticipantLimit, ev.RequestModeration, string(ev.State),
	)
	if err != nil {
		if pgCode(err) == codeForeignKeyViolation {
			return events.ErrCategoryNotFound
		}
		return fmt.Errorf("update event: %w", mapError(err))
	}
	if tag.RowsAffected() == 0 {
		return events.ErrNotFound
	}
	return nil
}

func (r *EventRepository) SetConfirmedRequests(ctx context.Context, id string, count int) (err error) {
	defer track("set_confirmed_requests", &err)()

	tag, err := r.repo.queryer().Exec(ctx, `UPDATE events SET confirmed_requests = $2 WHERE id = $1`, id, count)
	if err != nil {
		if constraint(err) == constraintEventCapacity {
			return participation.ErrCapacityExceeded
		}
		return fmt.Errorf("set confirmed requests: %w", mapError(err))
	}
	if tag.RowsAffected() == 0 {
		return events.ErrNotFound
	}
	return nil
}

func (r *EventRepository) ListByInitiator(ctx context.Context, initiatorID string, page events.Pagination) (result events.ListResult, err error) {
	defer track("list_events_by_initiator", &err)()

	limit := page.Limit
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.repo.queryer().Query(ctx, `
SELECT `+eventColumns+`
  FROM events
 WHERE initiator_id = $1
   AND id > $2
 ORDER BY id
 LIMIT $3`, initiatorID, page.After, limit+1)
	if err != nil {
		return events.ListResult{}, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	items := make([]events.Event, 0, limit)
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return events.ListResult{}, fmt.Errorf("scan event: %w", err)
		}
		items = append(items, *ev)
	}
	if err := rows.Err(); err != nil {
		return events.ListResult{}, fmt.Errorf("iterate events: %w", err)
	}

	result.Events = items
	if len(items) > limit {
		result.Events = items[:limit]
		result.NextAfter = result.Events[limit-1].ID
	}
	return result, nil
}

func (r *EventRepository) ListIDs(ctx context.Context, after string, limit int) (ids []string, err error) {
	defer track("list_event_ids", &err)()

	if limit <= 0 {
		limit = 500
	}
	rows, err := r.repo.queryer().Query(ctx, `SELECT id FROM events WHERE id > $1 ORDER BY id LIMIT $2`, after, limit)
	if err != nil {
		return nil, fmt.Errorf("list event ids: %w", err)
	}
	ids, err = pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("collect event ids: %w", err)
	}
	return ids, nil
}

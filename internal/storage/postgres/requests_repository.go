package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/Ycseeasy/explore-with-me/internal/domain/events"
	"github.com/Ycseeasy/explore-with-me/internal/domain/participation"
	"github.com/jackc/pgx/v5"
)

var _ participation.Repository = (*RequestRepository)(nil)

type RequestRepository struct {
	repo *Repository
}

const requestColumns = `r.id, r.event_id, r.requester_id, r.status, r.created`

func scanRequest(row pgx.Row) (participation.Request, error) {
	var (
		req    participation.Request
		status string
	)
	if err := row.Scan(&req.ID, &req.EventID, &req.RequesterID, &status, &req.Created); err != nil {
		return participation.Request{}, err
	}
	req.Status = participation.Status(status)
	req.Created = req.Created.UTC()
	return req, nil
}

func collectRequests(rows pgx.Rows) ([]participation.Request, error) {
	defer rows.Close()
	out := make([]participation.Request, 0)
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan request: %w", err)
		}
		out = append(out, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate requests: %w", err)
	}
	return out, nil
}

func (r *RequestRepository) Create(ctx context.Context, p participation.CreateParams) (req *participation.Request, err error) {
	defer track("create_request", &err)()

	row := r.repo.queryer().QueryRow(ctx, `
INSERT INTO participation_requests AS r (id, event_id, requester_id, status, created)
VALUES ($1, $2, $3, $4, $5)
RETURNING `+requestColumns,
		p.ID, p.EventID, p.RequesterID, string(p.Status), p.Created,
	)
	created, err := scanRequest(row)
	if err != nil {
		switch pgCode(err) {
		case codeUniqueViolation:
			return nil, fmt.Errorf("%w: requester already has an active request for this event", participation.ErrConflict)
		case codeForeignKeyViolation:
			if constraint(err) == "participation_requests_requester_id_fkey" {
				return nil, participation.ErrRequesterMissing
			}
			return nil, events.ErrNotFound
		}
		return nil, fmt.Errorf("insert request: %w", mapError(err))
	}
	return &created, nil
}

func (r *RequestRepository) GetByID(ctx context.Context, id string) (req *participation.Request, err error) {
	defer track("get_request", &err)()

	found, err := scanRequest(r.repo.queryer().QueryRow(ctx,
		`SELECT `+requestColumns+` FROM participation_requests r WHERE r.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, participation.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get request: %w", err)
	}
	return &found, nil
}

func (r *RequestRepository) GetByIDs(ctx context.Context, ids []string) (out []participation.Request, err error) {
	defer track("get_requests", &err)()

	if len(ids) == 0 {
		return []participation.Request{}, nil
	}
	rows, err := r.repo.queryer().Query(ctx,
		`SELECT `+requestColumns+` FROM participation_requests r WHERE r.id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("get requests: %w", err)
	}
	found, err := collectRequests(rows)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]participation.Request, len(found))
	for _, req := range found {
		byID[req.ID] = req
	}
	out = make([]participation.Request, 0, len(ids))
	for _, id := range ids {
		if req, ok := byID[id]; ok {
			out = append(out, req)
		}
	}
	return out, nil
}

func (r *RequestRepository) FindActive(ctx context.Context, requesterID, eventID string) (req *participation.Request, err error) {
	defer track("find_active_request", &err)()

	found, err := scanRequest(r.repo.queryer().QueryRow(ctx, `
SELECT `+requestColumns+`
  FROM participation_requests r
 WHERE r.requester_id = $1
   AND r.event_id = $2
   AND r.status <> 'CANCELED'`, requesterID, eventID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, participation.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find active request: %w", err)
	}
	return &found, nil
}

func (r *RequestRepository) UpdateStatus(ctx context.Context, id string, status participation.Status) (err error) {
	defer track("update_request_status", &err)()

	tag, err := r.repo.queryer().Exec(ctx, `UPDATE participation_requests SET status = $2 WHERE id = $1`, id, string(status))
	if err != nil {
		if pgCode(err) == codeUniqueViolation {
			return fmt.Errorf("%w: requester already has an active request for this event", participation.ErrConflict)
		}
		return fmt.Errorf("update request status: %w", mapError(err))
	}
	if tag.RowsAffected() == 0 {
		return participation.ErrNotFound
	}
	return nil
}

func (r *RequestRepository) ListByRequester(ctx context.Context, requesterID string) (out []participation.Request, err error) {
	defer track("list_requests_by_requester", &err)()

	rows, err := r.repo.queryer().Query(ctx, `
SELECT `+requestColumns+`
  FROM participation_requests r
  JOIN events e ON e.id = r.event_id
 WHERE r.requester_id = $1
   AND e.initiator_id <> $1
 ORDER BY r.id`, requesterID)
	if err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	return collectRequests(rows)
}

func (r *RequestRepository) ListByEvent(ctx context.Context, eventID string) (out []participation.Request, err error) {
	defer track("list_requests_by_event", &err)()

	rows, err := r.repo.queryer().Query(ctx,
		`SELECT `+requestColumns+` FROM participation_requests r WHERE r.event_id = $1 ORDER BY r.id`, eventID)
	if err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	return collectRequests(rows)
}

func (r *RequestRepository) CountConfirmed(ctx context.Context, eventID string) (count int, err error) {
	defer track("count_confirmed", &err)()

	err = r.repo.queryer().QueryRow(ctx,
		`SELECT count(*) FROM participation_requests WHERE event_id = $1 AND status = 'CONFIRMED'`, eventID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count confirmed: %w", err)
	}
	return count, nil
}

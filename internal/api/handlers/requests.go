package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/Ycseeasy/explore-with-me/internal/api/middleware"
	"github.com/Ycseeasy/explore-with-me/internal/api/problem"
	"github.com/Ycseeasy/explore-with-me/internal/domain/participation"
)

// IdempotencyStore remembers which request an Idempotency-Key produced.
type IdempotencyStore interface {
	Lookup(ctx context.Context, userID, key string) (string, bool, error)
	Remember(ctx context.Context, userID, key, requestID string) (bool, error)
}

var errKeyReused = errors.New("Idempotency-Key was already used for another event")

type RequestsHandler struct {
	requests    *participation.SubmissionService
	idempotency IdempotencyStore
	env         string
}

// NewRequestsHandler builds the participation request endpoints. idem may be
// nil, in which case Idempotency-Key headers are ignored.
func NewRequestsHandler(requests *participation.SubmissionService, idem IdempotencyStore, env string) *RequestsHandler {
	return &RequestsHandler{requests: requests, idempotency: idem, env: env}
}

// List handles GET /users/{userId}/requests.
func (h *RequestsHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := pathID(w, r, "userId", h.env)
	if userID == "" {
		return
	}

	reqs, err := h.requests.ListForRequester(r.Context(), userID)
	if err != nil {
		writeError(w, r, err, h.env)
		return
	}
	writeJSON(w, http.StatusOK, requestDtos(reqs))
}

// Submit handles POST /users/{userId}/requests?eventId=. With an
// Idempotency-Key the first successful submission is remembered and replays
// answer 200 with the stored request.
func (h *RequestsHandler) Submit(w http.ResponseWriter, r *http.Request) {
	userID := pathID(w, r, "userId", h.env)
	if userID == "" {
		return
	}
	eventID := queryID(w, r, "eventId", h.env)
	if eventID == "" {
		return
	}

	key := middleware.IdempotencyKey(r)
	if key != "" && h.idempotency != nil {
		if replayed, err := h.replay(r.Context(), userID, key); err != nil {
			middleware.LoggerFromContext(r.Context()).Warn().Err(err).Msg("idempotency lookup failed, submitting")
		} else if replayed != nil {
			if replayed.EventID != eventID {
				problem.Write(w, r, http.StatusConflict, problem.TypeConflict, "Conflict", errKeyReused, h.env)
				return
			}
			writeJSON(w, http.StatusOK, requestDto(*replayed))
			return
		}
	}

	created, err := h.requests.Submit(r.Context(), userID, eventID)
	if err != nil {
		writeError(w, r, err, h.env)
		return
	}

	if key != "" && h.idempotency != nil {
		if _, err := h.idempotency.Remember(r.Context(), userID, key, created.ID); err != nil {
			middleware.LoggerFromContext(r.Context()).Warn().Err(err).Str("request_id", created.ID).Msg("idempotency remember failed")
		}
	}
	writeJSON(w, http.StatusCreated, requestDto(*created))
}

// replay returns the request previously stored for key, or nil when none is
// stored or it no longer exists.
func (h *RequestsHandler) replay(ctx context.Context, userID, key string) (*participation.Request, error) {
	requestID, ok, err := h.idempotency.Lookup(ctx, userID, key)
	if err != nil || !ok {
		return nil, err
	}
	req, err := h.requests.Get(ctx, userID, requestID)
	if errors.Is(err, participation.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load replayed request: %w", err)
	}
	return req, nil
}

// Cancel handles PATCH /users/{userId}/requests/{requestId}/cancel.
func (h *RequestsHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	userID := pathID(w, r, "userId", h.env)
	if userID == "" {
		return
	}
	requestID := pathID(w, r, "requestId", h.env)
	if requestID == "" {
		return
	}

	req, err := h.requests.Cancel(r.Context(), userID, requestID)
	if err != nil {
		writeError(w, r, err, h.env)
		return
	}
	writeJSON(w, http.StatusOK, requestDto(*req))
}

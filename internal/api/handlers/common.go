// Package handlers implements the HTTP surface: private user endpoints under
// /users/{userId}, admin endpoints under /admin, and the public catalogue.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/Ycseeasy/explore-with-me/internal/api/problem"
	"github.com/Ycseeasy/explore-with-me/internal/domain/categories"
	"github.com/Ycseeasy/explore-with-me/internal/domain/events"
	"github.com/Ycseeasy/explore-with-me/internal/domain/ids"
	"github.com/Ycseeasy/explore-with-me/internal/domain/participation"
	"github.com/Ycseeasy/explore-with-me/internal/domain/users"
	"github.com/Ycseeasy/explore-with-me/internal/storage"
)

// contentionRetryAfter is the Retry-After value, in seconds, sent with 503s
// caused by per-event lock contention.
const contentionRetryAfter = "1"

var errInvalidID = errors.New("must be a ULID")

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

// decodeJSON reads a single JSON document into dst, answering 400 or 413
// itself when the body is unusable.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any, env string) bool {
	dec := json.NewDecoder(r.Body)
	err := dec.Decode(dst)
	if err == nil {
		if dec.More() {
			err = errors.New("body must contain a single JSON document")
		} else {
			return true
		}
	}

	var maxErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxErr):
		problem.Write(w, r, http.StatusRequestEntityTooLarge, problem.TypeValidation, "Request body too large", err, env)
	case errors.Is(err, io.EOF):
		problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation, "Request body is required", err, env)
	default:
		problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation, "Invalid request body", err, env)
	}
	return false
}

// pathID returns the ULID path value named key. An invalid value is answered
// with 400 and reported as "".
func pathID(w http.ResponseWriter, r *http.Request, key, env string) string {
	value := ids.Normalize(r.PathValue(key))
	if err := ids.ValidateULID(value); err != nil {
		problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation, "Invalid path parameter", fmt.Errorf("%s %w", key, errInvalidID), env,
			problem.WithErrors(map[string]interface{}{key: errInvalidID.Error()}))
		return ""
	}
	return value
}

// queryID is pathID for a required query parameter.
func queryID(w http.ResponseWriter, r *http.Request, key, env string) string {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation, "Missing query parameter", fmt.Errorf("%s is required", key), env,
			problem.WithErrors(map[string]interface{}{key: "is required"}))
		return ""
	}
	value := ids.Normalize(raw)
	if err := ids.ValidateULID(value); err != nil {
		problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation, "Invalid query parameter", fmt.Errorf("%s %w", key, errInvalidID), env,
			problem.WithErrors(map[string]interface{}{key: errInvalidID.Error()}))
		return ""
	}
	return value
}

// writeError maps domain and storage errors onto problem responses.
func writeError(w http.ResponseWriter, r *http.Request, err error, env string) {
	var (
		validationErrs events.ValidationErrors
		validationErr  events.ValidationError
		userFieldErr   users.FieldError
		statusErr      *participation.StatusConflictError
	)

	switch {
	case errors.Is(err, storage.ErrContention):
		w.Header().Set("Retry-After", contentionRetryAfter)
		problem.Write(w, r, http.StatusServiceUnavailable, problem.TypeContention, "Event is busy", err, env,
			problem.WithDetail(storage.ErrContention.Error()))

	case errors.As(err, &validationErrs):
		problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation, "Invalid request", err, env,
			problem.WithErrors(validationErrs.Fields()))
	case errors.As(err, &validationErr):
		problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation, "Invalid request", err, env,
			problem.WithErrors(map[string]interface{}{validationErr.Field: validationErr.Message}))
	case errors.As(err, &userFieldErr):
		problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation, "Invalid request", err, env,
			problem.WithErrors(map[string]interface{}{userFieldErr.Field: userFieldErr.Message}))
	case errors.Is(err, categories.ErrInvalidName):
		problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation, "Invalid request", err, env,
			problem.WithErrors(map[string]interface{}{"name": err.Error()}))
	case errors.Is(err, participation.ErrInvalidOutcome):
		problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation, "Invalid request", err, env,
			problem.WithErrors(map[string]interface{}{"status": "must be CONFIRMED or REJECTED"}))

	case errors.Is(err, events.ErrInvalidDate):
		problem.Write(w, r, http.StatusBadRequest, problem.TypeInvalidDate, "Invalid event date", err, env)

	case errors.As(err, &statusErr):
		problem.Write(w, r, http.StatusConflict, problem.TypeStatusConflict, "Request is not pending", err, env,
			problem.WithErrors(map[string]interface{}{"requestId": statusErr.RequestID, "status": string(statusErr.Status)}))
	case errors.Is(err, participation.ErrCapacityExceeded):
		problem.Write(w, r, http.StatusConflict, problem.TypeCapacityExceeded, "Participant limit reached", err, env)
	case errors.Is(err, events.ErrInvalidTransition):
		problem.Write(w, r, http.StatusConflict, problem.TypeInvalidTransition, "Invalid state transition", err, env)
	case errors.Is(err, events.ErrConflict),
		errors.Is(err, participation.ErrConflict),
		errors.Is(err, users.ErrEmailTaken),
		errors.Is(err, users.ErrUserInUse),
		errors.Is(err, categories.ErrNameTaken),
		errors.Is(err, categories.ErrInUse):
		problem.Write(w, r, http.StatusConflict, problem.TypeConflict, "Conflict", err, env)

	case errors.Is(err, events.ErrNotFound),
		errors.Is(err, events.ErrInitiatorNotFound),
		errors.Is(err, events.ErrCategoryNotFound),
		errors.Is(err, participation.ErrNotFound),
		errors.Is(err, participation.ErrRequesterMissing),
		errors.Is(err, users.ErrUserNotFound),
		errors.Is(err, categories.ErrNotFound):
		problem.Write(w, r, http.StatusNotFound, problem.TypeNotFound, "Not found", err, env)

	default:
		problem.Write(w, r, http.StatusInternalServerError, problem.TypeServerError, "Server error", err, env)
	}
}

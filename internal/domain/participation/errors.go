package participation

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound         = errors.New("participation request not found")
	ErrRequesterMissing = errors.New("requester not found")

	// ErrConflict covers duplicate requests, self-requests and requests to
	// unpublished events. The wrapping message names the reason.
	ErrConflict = errors.New("participation conflict")

	ErrCapacityExceeded = errors.New("participant limit reached")

	// ErrStatusConflict is matched by every StatusConflictError.
	ErrStatusConflict = errors.New("request is not pending")

	ErrInvalidOutcome = errors.New("invalid admission outcome")
)

// StatusConflictError identifies the first request that blocked an admission batch.
type StatusConflictError struct {
	RequestID string
	Status    Status
}

func (e *StatusConflictError) Error() string {
	return fmt.Sprintf("request %s has status %s, only PENDING requests can be decided", e.RequestID, e.Status)
}

func (e *StatusConflictError) Unwrap() error {
	return ErrStatusConflict
}

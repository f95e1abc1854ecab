package events

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotFound = errors.New("event not found")
	ErrConflict = errors.New("event conflict")

	// ErrInvalidTransition is matched by every TransitionError.
	ErrInvalidTransition = errors.New("invalid event state transition")

	// ErrInvalidDate is matched by every DateError.
	ErrInvalidDate = errors.New("invalid event date")
)

// TransitionError reports a lifecycle action or edit that the current state does not allow.
type TransitionError struct {
	State  State
	Action StateAction
	Reason string
}

func (e *TransitionError) Error() string {
	if e.Action == "" {
		return fmt.Sprintf("event in state %s cannot be modified: %s", e.State, e.Reason)
	}
	if e.Reason == "" {
		return fmt.Sprintf("action %s is not allowed for event in state %s", e.Action, e.State)
	}
	return fmt.Sprintf("action %s is not allowed for event in state %s: %s", e.Action, e.State, e.Reason)
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}

// DateError reports an event date that violates a lead-time rule.
type DateError struct {
	EventDate time.Time
	Earliest  time.Time
	Reason    string
}

func (e *DateError) Error() string {
	return fmt.Sprintf("event date %s %s (earliest allowed %s)",
		e.EventDate.Format(time.DateTime), e.Reason, e.Earliest.Format(time.DateTime))
}

func (e *DateError) Unwrap() error {
	return ErrInvalidDate
}

// ValidationError describes malformed input for a single field.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors collects field errors from a single request.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "invalid input"
	}
	if len(e) == 1 {
		return e[0].Error()
	}
	return fmt.Sprintf("%s (and %d more)", e[0].Error(), len(e)-1)
}

// Fields maps field names to messages for problem responses.
func (e ValidationErrors) Fields() map[string]interface{} {
	out := make(map[string]interface{}, len(e))
	for _, fieldErr := range e {
		out[fieldErr.Field] = fieldErr.Message
	}
	return out
}

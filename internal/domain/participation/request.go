package participation

import (
	"time"
)

// Status is the state of a participation request.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
	StatusRejected  Status = "REJECTED"
	StatusCanceled  Status = "CANCELED"
)

// Active reports whether the status blocks a new request for the same event.
func (s Status) Active() bool {
	return s != StatusCanceled
}

type Request struct {
	ID          string
	EventID     string
	RequesterID string
	Status      Status
	Created     time.Time
}

type CreateParams struct {
	ID          string
	EventID     string
	RequesterID string
	Status      Status
	Created     time.Time
}

// Outcome is the owner's decision for a batch of pending requests.
type Outcome string

const (
	OutcomeConfirmed Outcome = "CONFIRMED"
	OutcomeRejected  Outcome = "REJECTED"
)

func (o Outcome) Valid() bool {
	return o == OutcomeConfirmed || o == OutcomeRejected
}

// Decision lists the requests affected by an admission call.
type Decision struct {
	Confirmed []Request
	Rejected  []Request
}

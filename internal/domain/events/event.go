package events

import (
	"time"
)

// State is the lifecycle state of an event.
type State string

const (
	StatePending   State = "PENDING"
	StatePublished State = "PUBLISHED"
	StateCanceled  State = "CANCELED"
)

// Valid reports whether s is a known lifecycle state.
func (s State) Valid() bool {
	switch s {
	case StatePending, StatePublished, StateCanceled:
		return true
	}
	return false
}

// StateAction is a requested lifecycle transition.
type StateAction string

const (
	ActionSendToReview StateAction = "SEND_TO_REVIEW"
	ActionCancelReview StateAction = "CANCEL_REVIEW"
	ActionPublish      StateAction = "PUBLISH_EVENT"
	ActionReject       StateAction = "REJECT_EVENT"
)

// OwnerAction reports whether a is available to the event initiator.
func (a StateAction) OwnerAction() bool {
	return a == ActionSendToReview || a == ActionCancelReview
}

// AdminAction reports whether a is available to administrators.
func (a StateAction) AdminAction() bool {
	return a == ActionPublish || a == ActionReject
}

type Location struct {
	Lat float64 `validate:"min=-90,max=90"`
	Lon float64 `validate:"min=-180,max=180"`
}

type Event struct {
	ID                string
	Title             string
	Annotation        string
	Description       string
	CategoryID        string
	InitiatorID       string
	Location          Location
	Paid              bool
	EventDate         time.Time
	CreatedOn         time.Time
	PublishedOn       *time.Time
	RejectedOn        *time.Time
	ParticipantLimit  int
	RequestModeration bool
	ConfirmedRequests int
	State             State
}

// Unlimited reports whether the event accepts any number of participants.
func (e *Event) Unlimited() bool {
	return e.ParticipantLimit == 0
}

// Full reports whether every seat is taken. Unlimited events are never full.
func (e *Event) Full() bool {
	return !e.Unlimited() && e.ConfirmedRequests >= e.ParticipantLimit
}

// AutoConfirm reports whether new participation requests skip moderation.
func (e *Event) AutoConfirm() bool {
	return !e.RequestModeration || e.Unlimited()
}

// Clone returns a deep copy of the event.
func (e *Event) Clone() *Event {
	if e == nil {
		return nil
	}
	clone := *e
	if e.PublishedOn != nil {
		published := *e.PublishedOn
		clone.PublishedOn = &published
	}
	if e.RejectedOn != nil {
		rejected := *e.RejectedOn
		clone.RejectedOn = &rejected
	}
	return &clone
}

package handlers

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/Ycseeasy/explore-with-me/internal/domain/categories"
	"github.com/Ycseeasy/explore-with-me/internal/domain/events"
	"github.com/Ycseeasy/explore-with-me/internal/domain/participation"
	"github.com/Ycseeasy/explore-with-me/internal/domain/users"
)

// DateTimeLayout is the wire format of every timestamp, interpreted in UTC.
const DateTimeLayout = "2006-01-02 15:04:05"

// DateTime marshals as DateTimeLayout.
type DateTime struct {
	time.Time
}

func NewDateTime(t time.Time) DateTime { return DateTime{Time: t.UTC()} }

func optionalDateTime(t *time.Time) *DateTime {
	if t == nil {
		return nil
	}
	d := NewDateTime(*t)
	return &d
}

func (d DateTime) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.UTC().Format(DateTimeLayout))
}

func (d *DateTime) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("date must be a string in format %q", DateTimeLayout)
	}
	t, err := time.ParseInLocation(DateTimeLayout, raw, time.UTC)
	if err != nil {
		return fmt.Errorf("date %q does not match format %q", raw, DateTimeLayout)
	}
	d.Time = t
	return nil
}

type LocationDto struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

func (l *LocationDto) domain() *events.Location {
	if l == nil {
		return nil
	}
	return &events.Location{Lat: l.Lat, Lon: l.Lon}
}

type CategoryDto struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func categoryDto(c categories.Category) CategoryDto {
	return CategoryDto{ID: c.ID, Name: c.Name}
}

type NewCategoryDto struct {
	Name string `json:"name"`
}

type UserShortDto struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type UserDto struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

func userDto(u users.User) UserDto {
	return UserDto{ID: u.ID, Name: u.Name, Email: u.Email}
}

type NewUserRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type EventFullDto struct {
	ID                string       `json:"id"`
	Title             string       `json:"title"`
	Annotation        string       `json:"annotation"`
	Description       string       `json:"description"`
	Category          CategoryDto  `json:"category"`
	Initiator         UserShortDto `json:"initiator"`
	Location          LocationDto  `json:"location"`
	Paid              bool         `json:"paid"`
	EventDate         DateTime     `json:"eventDate"`
	CreatedOn         DateTime     `json:"createdOn"`
	PublishedOn       *DateTime    `json:"publishedOn,omitempty"`
	ParticipantLimit  int          `json:"participantLimit"`
	RequestModeration bool         `json:"requestModeration"`
	ConfirmedRequests int          `json:"confirmedRequests"`
	State             string       `json:"state"`
}

type NewEventDto struct {
	Title             string       `json:"title"`
	Annotation        string       `json:"annotation"`
	Description       string       `json:"description"`
	Category          string       `json:"category"`
	Location          *LocationDto `json:"location"`
	EventDate         *DateTime    `json:"eventDate"`
	Paid              *bool        `json:"paid"`
	ParticipantLimit  *int         `json:"participantLimit"`
	RequestModeration *bool        `json:"requestModeration"`
}

func (d NewEventDto) input() events.NewEventInput {
	in := events.NewEventInput{
		Title:             d.Title,
		Annotation:        d.Annotation,
		Description:       d.Description,
		CategoryID:        d.Category,
		Location:          d.Location.domain(),
		Paid:              d.Paid,
		ParticipantLimit:  d.ParticipantLimit,
		RequestModeration: d.RequestModeration,
	}
	if d.EventDate != nil {
		in.EventDate = d.EventDate.Time
	}
	return in
}

// UpdateEventRequest is the body of both the initiator and the admin event
// update; which state actions are accepted depends on the caller.
type UpdateEventRequest struct {
	Title             *string      `json:"title"`
	Annotation        *string      `json:"annotation"`
	Description       *string      `json:"description"`
	Category          *string      `json:"category"`
	Location          *LocationDto `json:"location"`
	EventDate         *DateTime    `json:"eventDate"`
	Paid              *bool        `json:"paid"`
	ParticipantLimit  *int         `json:"participantLimit"`
	RequestModeration *bool        `json:"requestModeration"`
	StateAction       *string      `json:"stateAction"`
}

func (u UpdateEventRequest) params() events.UpdateParams {
	p := events.UpdateParams{
		Title:             u.Title,
		Annotation:        u.Annotation,
		Description:       u.Description,
		CategoryID:        u.Category,
		Location:          u.Location.domain(),
		Paid:              u.Paid,
		ParticipantLimit:  u.ParticipantLimit,
		RequestModeration: u.RequestModeration,
	}
	if u.EventDate != nil {
		date := u.EventDate.Time
		p.EventDate = &date
	}
	if u.StateAction != nil {
		action := events.StateAction(*u.StateAction)
		p.StateAction = &action
	}
	return p
}

type ParticipationRequestDto struct {
	ID        string   `json:"id"`
	Event     string   `json:"event"`
	Requester string   `json:"requester"`
	Status    string   `json:"status"`
	Created   DateTime `json:"created"`
}

func requestDto(r participation.Request) ParticipationRequestDto {
	return ParticipationRequestDto{
		ID:        r.ID,
		Event:     r.EventID,
		Requester: r.RequesterID,
		Status:    string(r.Status),
		Created:   NewDateTime(r.Created),
	}
}

func requestDtos(reqs []participation.Request) []ParticipationRequestDto {
	out := make([]ParticipationRequestDto, 0, len(reqs))
	for _, r := range reqs {
		out = append(out, requestDto(r))
	}
	return out
}

type EventRequestStatusUpdateRequest struct {
	RequestIDs []string `json:"requestIds"`
	Status     string   `json:"status"`
}

type EventRequestStatusUpdateResult struct {
	ConfirmedRequests []ParticipationRequestDto `json:"confirmedRequests"`
	RejectedRequests  []ParticipationRequestDto `json:"rejectedRequests"`
}

func decisionDto(d participation.Decision) EventRequestStatusUpdateResult {
	return EventRequestStatusUpdateResult{
		ConfirmedRequests: requestDtos(d.Confirmed),
		RejectedRequests:  requestDtos(d.Rejected),
	}
}

type listResponse[T any] struct {
	Items      []T    `json:"items"`
	NextCursor string `json:"nextCursor,omitempty"`
}

package handlers

import (
	"context"
	"errors"
	"fmt"

	"github.com/Ycseeasy/explore-with-me/internal/domain/categories"
	"github.com/Ycseeasy/explore-with-me/internal/domain/events"
	"github.com/Ycseeasy/explore-with-me/internal/domain/users"
)

type CategoryGetter interface {
	Get(ctx context.Context, id string) (*categories.Category, error)
}

type UserGetter interface {
	Get(ctx context.Context, id string) (*users.User, error)
}

// eventRenderer expands category and initiator references into the short
// forms embedded in EventFullDto.
type eventRenderer struct {
	categories CategoryGetter
	users      UserGetter
}

func (r eventRenderer) one(ctx context.Context, ev *events.Event) (EventFullDto, error) {
	out, err := r.many(ctx, []events.Event{*ev})
	if err != nil {
		return EventFullDto{}, err
	}
	return out[0], nil
}

func (r eventRenderer) many(ctx context.Context, evs []events.Event) ([]EventFullDto, error) {
	cats := make(map[string]string)
	names := make(map[string]string)
	out := make([]EventFullDto, 0, len(evs))

	for _, ev := range evs {
		catName, ok := cats[ev.CategoryID]
		if !ok {
			c, err := r.categories.Get(ctx, ev.CategoryID)
			switch {
			case err == nil:
				catName = c.Name
			case !errors.Is(err, categories.ErrNotFound):
				return nil, fmt.Errorf("load category %s: %w", ev.CategoryID, err)
			}
			cats[ev.CategoryID] = catName
		}

		userName, ok := names[ev.InitiatorID]
		if !ok {
			u, err := r.users.Get(ctx, ev.InitiatorID)
			switch {
			case err == nil:
				userName = u.Name
			case !errors.Is(err, users.ErrUserNotFound):
				return nil, fmt.Errorf("load initiator %s: %w", ev.InitiatorID, err)
			}
			names[ev.InitiatorID] = userName
		}

		out = append(out, EventFullDto{
			ID:                ev.ID,
			Title:             ev.Title,
			Annotation:        ev.Annotation,
			Description:       ev.Description,
			Category:          CategoryDto{ID: ev.CategoryID, Name: catName},
			Initiator:         UserShortDto{ID: ev.InitiatorID, Name: userName},
			Location:          LocationDto{Lat: ev.Location.Lat, Lon: ev.Location.Lon},
			Paid:              ev.Paid,
			EventDate:         NewDateTime(ev.EventDate),
			CreatedOn:         NewDateTime(ev.CreatedOn),
			PublishedOn:       optionalDateTime(ev.PublishedOn),
			ParticipantLimit:  ev.ParticipantLimit,
			RequestModeration: ev.RequestModeration,
			ConfirmedRequests: ev.ConfirmedRequests,
			State:             string(ev.State),
		})
	}
	return out, nil
}

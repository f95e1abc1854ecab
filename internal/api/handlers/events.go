package handlers

import (
	"net/http"
	"strconv"

	"github.com/Ycseeasy/explore-with-me/internal/api/middleware"
	"github.com/Ycseeasy/explore-with-me/internal/api/pagination"
	"github.com/Ycseeasy/explore-with-me/internal/api/problem"
	"github.com/Ycseeasy/explore-with-me/internal/audit"
	"github.com/Ycseeasy/explore-with-me/internal/domain/events"
	"github.com/Ycseeasy/explore-with-me/internal/domain/ids"
	"github.com/Ycseeasy/explore-with-me/internal/domain/participation"
)

// EventsHandler serves event endpoints for initiators, administrators and
// the public.
type EventsHandler struct {
	events    *events.Service
	requests  *participation.SubmissionService
	admission *participation.AdmissionEngine
	render    eventRenderer
	audit     *audit.Logger
	env       string
}

func NewEventsHandler(
	eventsService *events.Service,
	requests *participation.SubmissionService,
	admission *participation.AdmissionEngine,
	categories CategoryGetter,
	users UserGetter,
	auditLogger *audit.Logger,
	env string,
) *EventsHandler {
	return &EventsHandler{
		events:    eventsService,
		requests:  requests,
		admission: admission,
		render:    eventRenderer{categories: categories, users: users},
		audit:     auditLogger,
		env:       env,
	}
}

// Create handles POST /users/{userId}/events.
func (h *EventsHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := pathID(w, r, "userId", h.env)
	if userID == "" {
		return
	}
	var body NewEventDto
	if !decodeJSON(w, r, &body, h.env) {
		return
	}

	ev, err := h.events.Create(r.Context(), userID, body.input())
	if err != nil {
		writeError(w, r, err, h.env)
		return
	}
	h.write(w, r, http.StatusCreated, ev)
}

// ListOwned handles GET /users/{userId}/events.
func (h *EventsHandler) ListOwned(w http.ResponseWriter, r *http.Request) {
	userID := pathID(w, r, "userId", h.env)
	if userID == "" {
		return
	}
	page, err := pagination.ParsePage(r.URL.Query())
	if err != nil {
		problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation, "Invalid pagination", err, h.env)
		return
	}

	result, err := h.events.ListOwned(r.Context(), userID, events.Pagination{Limit: page.Limit, After: page.After})
	if err != nil {
		writeError(w, r, err, h.env)
		return
	}
	items, err := h.render.many(r.Context(), result.Events)
	if err != nil {
		writeError(w, r, err, h.env)
		return
	}
	writeJSON(w, http.StatusOK, listResponse[EventFullDto]{Items: items, NextCursor: pagination.EncodeCursor(result.NextAfter)})
}

// GetOwned handles GET /users/{userId}/events/{eventId}.
func (h *EventsHandler) GetOwned(w http.ResponseWriter, r *http.Request) {
	userID := pathID(w, r, "userId", h.env)
	if userID == "" {
		return
	}
	eventID := pathID(w, r, "eventId", h.env)
	if eventID == "" {
		return
	}

	ev, err := h.events.GetOwned(r.Context(), userID, eventID)
	if err != nil {
		writeError(w, r, err, h.env)
		return
	}
	h.write(w, r, http.StatusOK, ev)
}

// UpdateOwned handles PATCH /users/{userId}/events/{eventId}.
func (h *EventsHandler) UpdateOwned(w http.ResponseWriter, r *http.Request) {
	userID := pathID(w, r, "userId", h.env)
	if userID == "" {
		return
	}
	eventID := pathID(w, r, "eventId", h.env)
	if eventID == "" {
		return
	}
	var body UpdateEventRequest
	if !decodeJSON(w, r, &body, h.env) {
		return
	}

	ev, err := h.events.UpdateByOwner(r.Context(), userID, eventID, body.params())
	if err != nil {
		writeError(w, r, err, h.env)
		return
	}
	h.write(w, r, http.StatusOK, ev)
}

// ListEventRequests handles GET /users/{userId}/events/{eventId}/requests.
func (h *EventsHandler) ListEventRequests(w http.ResponseWriter, r *http.Request) {
	userID := pathID(w, r, "userId", h.env)
	if userID == "" {
		return
	}
	eventID := pathID(w, r, "eventId", h.env)
	if eventID == "" {
		return
	}

	reqs, err := h.requests.ListForEvent(r.Context(), userID, eventID)
	if err != nil {
		writeError(w, r, err, h.env)
		return
	}
	writeJSON(w, http.StatusOK, requestDtos(reqs))
}

// DecideRequests handles PATCH /users/{userId}/events/{eventId}/requests.
func (h *EventsHandler) DecideRequests(w http.ResponseWriter, r *http.Request) {
	userID := pathID(w, r, "userId", h.env)
	if userID == "" {
		return
	}
	eventID := pathID(w, r, "eventId", h.env)
	if eventID == "" {
		return
	}
	body, ok := h.decodeDecision(w, r)
	if !ok {
		return
	}

	decision, err := h.admission.Decide(r.Context(), eventID, userID, body.RequestIDs, participation.Outcome(body.Status))
	if err != nil {
		writeError(w, r, err, h.env)
		return
	}
	writeJSON(w, http.StatusOK, decisionDto(decision))
}

// AdminUpdate handles PATCH /admin/events/{eventId}.
func (h *EventsHandler) AdminUpdate(w http.ResponseWriter, r *http.Request) {
	eventID := pathID(w, r, "eventId", h.env)
	if eventID == "" {
		return
	}
	var body UpdateEventRequest
	if !decodeJSON(w, r, &body, h.env) {
		return
	}

	ev, err := h.events.UpdateByAdmin(r.Context(), eventID, body.params())
	if err != nil {
		h.audit.LogFromRequest(r, actor(r), "event.updated", "event", eventID, audit.StatusFailure, map[string]string{"error": err.Error()})
		writeError(w, r, err, h.env)
		return
	}
	details := map[string]string{"state": string(ev.State)}
	if body.StateAction != nil {
		details["state_action"] = *body.StateAction
	}
	h.audit.LogFromRequest(r, actor(r), "event.updated", "event", eventID, audit.StatusSuccess, details)
	h.write(w, r, http.StatusOK, ev)
}

// AdminDecideRequests handles PATCH /admin/events/{eventId}/requests, the
// moderator override of the initiator's admission decision.
func (h *EventsHandler) AdminDecideRequests(w http.ResponseWriter, r *http.Request) {
	eventID := pathID(w, r, "eventId", h.env)
	if eventID == "" {
		return
	}
	body, ok := h.decodeDecision(w, r)
	if !ok {
		return
	}

	decision, err := h.admission.DecideAsAdmin(r.Context(), eventID, body.RequestIDs, participation.Outcome(body.Status))
	if err != nil {
		h.audit.LogFromRequest(r, actor(r), "requests.decided", "event", eventID, audit.StatusFailure, map[string]string{"error": err.Error()})
		writeError(w, r, err, h.env)
		return
	}
	h.audit.LogFromRequest(r, actor(r), "requests.decided", "event", eventID, audit.StatusSuccess, map[string]string{
		"outcome":   body.Status,
		"confirmed": strconv.Itoa(len(decision.Confirmed)),
		"rejected":  strconv.Itoa(len(decision.Rejected)),
	})
	writeJSON(w, http.StatusOK, decisionDto(decision))
}

// GetPublished handles GET /events/{eventId}.
func (h *EventsHandler) GetPublished(w http.ResponseWriter, r *http.Request) {
	eventID := pathID(w, r, "eventId", h.env)
	if eventID == "" {
		return
	}

	ev, err := h.events.GetPublished(r.Context(), eventID)
	if err != nil {
		writeError(w, r, err, h.env)
		return
	}
	h.write(w, r, http.StatusOK, ev)
}

func (h *EventsHandler) decodeDecision(w http.ResponseWriter, r *http.Request) (EventRequestStatusUpdateRequest, bool) {
	var body EventRequestStatusUpdateRequest
	if !decodeJSON(w, r, &body, h.env) {
		return body, false
	}
	if len(body.RequestIDs) == 0 {
		problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation, "Invalid request", nil, h.env,
			problem.WithDetail("requestIds must not be empty"),
			problem.WithErrors(map[string]interface{}{"requestIds": "must not be empty"}))
		return body, false
	}
	for i, id := range body.RequestIDs {
		body.RequestIDs[i] = ids.Normalize(id)
	}
	return body, true
}

func (h *EventsHandler) write(w http.ResponseWriter, r *http.Request, status int, ev *events.Event) {
	dto, err := h.render.one(r.Context(), ev)
	if err != nil {
		writeError(w, r, err, h.env)
		return
	}
	writeJSON(w, status, dto)
}

func actor(r *http.Request) string {
	if claims := middleware.Claims(r); claims != nil {
		return claims.Subject
	}
	return ""
}

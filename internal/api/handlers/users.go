package handlers

import (
	"net/http"
	"strings"

	"github.com/Ycseeasy/explore-with-me/internal/api/pagination"
	"github.com/Ycseeasy/explore-with-me/internal/api/problem"
	"github.com/Ycseeasy/explore-with-me/internal/audit"
	"github.com/Ycseeasy/explore-with-me/internal/domain/ids"
	"github.com/Ycseeasy/explore-with-me/internal/domain/users"
)

// AdminUsersHandler manages accounts under /admin/users.
type AdminUsersHandler struct {
	users *users.Service
	audit *audit.Logger
	env   string
}

func NewAdminUsersHandler(service *users.Service, auditLogger *audit.Logger, env string) *AdminUsersHandler {
	return &AdminUsersHandler{users: service, audit: auditLogger, env: env}
}

// Create handles POST /admin/users.
func (h *AdminUsersHandler) Create(w http.ResponseWriter, r *http.Request) {
	var body NewUserRequest
	if !decodeJSON(w, r, &body, h.env) {
		return
	}

	user, err := h.users.Create(r.Context(), users.CreateUserParams{Name: body.Name, Email: body.Email})
	if err != nil {
		writeError(w, r, err, h.env)
		return
	}
	h.audit.LogFromRequest(r, actor(r), "user.created", "user", user.ID, audit.StatusSuccess, nil)
	writeJSON(w, http.StatusCreated, userDto(*user))
}

// List handles GET /admin/users?ids=&limit=&cursor=. ids may be repeated or
// comma separated.
func (h *AdminUsersHandler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	page, err := pagination.ParsePage(query)
	if err != nil {
		problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation, "Invalid pagination", err, h.env)
		return
	}

	var wanted []string
	for _, raw := range query["ids"] {
		for _, part := range strings.Split(raw, ",") {
			id := ids.Normalize(part)
			if id == "" {
				continue
			}
			if err := ids.ValidateULID(id); err != nil {
				problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation, "Invalid query parameter", err, h.env,
					problem.WithErrors(map[string]interface{}{"ids": errInvalidID.Error()}))
				return
			}
			wanted = append(wanted, id)
		}
	}

	result, err := h.users.List(r.Context(), users.ListFilters{IDs: wanted, Limit: page.Limit, After: page.After})
	if err != nil {
		writeError(w, r, err, h.env)
		return
	}
	items := make([]UserDto, 0, len(result.Users))
	for _, u := range result.Users {
		items = append(items, userDto(u))
	}
	writeJSON(w, http.StatusOK, listResponse[UserDto]{Items: items, NextCursor: pagination.EncodeCursor(result.NextAfter)})
}

// Delete handles DELETE /admin/users/{userId}. The user's participation
// requests go with them; initiators of events cannot be deleted.
func (h *AdminUsersHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := pathID(w, r, "userId", h.env)
	if userID == "" {
		return
	}

	if err := h.users.Delete(r.Context(), userID); err != nil {
		h.audit.LogFromRequest(r, actor(r), "user.deleted", "user", userID, audit.StatusFailure, map[string]string{"error": err.Error()})
		writeError(w, r, err, h.env)
		return
	}
	h.audit.LogFromRequest(r, actor(r), "user.deleted", "user", userID, audit.StatusSuccess, nil)
	w.WriteHeader(http.StatusNoContent)
}

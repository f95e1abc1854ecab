package handlers

import (
	"net/http"

	"github.com/Ycseeasy/explore-with-me/internal/api/pagination"
	"github.com/Ycseeasy/explore-with-me/internal/api/problem"
	"github.com/Ycseeasy/explore-with-me/internal/audit"
	"github.com/Ycseeasy/explore-with-me/internal/domain/categories"
)

type CategoriesHandler struct {
	categories *categories.Service
	audit      *audit.Logger
	env        string
}

func NewCategoriesHandler(service *categories.Service, auditLogger *audit.Logger, env string) *CategoriesHandler {
	return &CategoriesHandler{categories: service, audit: auditLogger, env: env}
}

// Create handles POST /admin/categories.
func (h *CategoriesHandler) Create(w http.ResponseWriter, r *http.Request) {
	var body NewCategoryDto
	if !decodeJSON(w, r, &body, h.env) {
		return
	}

	c, err := h.categories.Create(r.Context(), body.Name)
	if err != nil {
		writeError(w, r, err, h.env)
		return
	}
	h.audit.LogFromRequest(r, actor(r), "category.created", "category", c.ID, audit.StatusSuccess, map[string]string{"name": c.Name})
	writeJSON(w, http.StatusCreated, categoryDto(*c))
}

// Rename handles PATCH /admin/categories/{catId}.
func (h *CategoriesHandler) Rename(w http.ResponseWriter, r *http.Request) {
	id := pathID(w, r, "catId", h.env)
	if id == "" {
		return
	}
	var body NewCategoryDto
	if !decodeJSON(w, r, &body, h.env) {
		return
	}

	c, err := h.categories.Rename(r.Context(), id, body.Name)
	if err != nil {
		writeError(w, r, err, h.env)
		return
	}
	h.audit.LogFromRequest(r, actor(r), "category.renamed", "category", c.ID, audit.StatusSuccess, map[string]string{"name": c.Name})
	writeJSON(w, http.StatusOK, categoryDto(*c))
}

// Delete handles DELETE /admin/categories/{catId}.
func (h *CategoriesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := pathID(w, r, "catId", h.env)
	if id == "" {
		return
	}

	if err := h.categories.Delete(r.Context(), id); err != nil {
		h.audit.LogFromRequest(r, actor(r), "category.deleted", "category", id, audit.StatusFailure, map[string]string{"error": err.Error()})
		writeError(w, r, err, h.env)
		return
	}
	h.audit.LogFromRequest(r, actor(r), "category.deleted", "category", id, audit.StatusSuccess, nil)
	w.WriteHeader(http.StatusNoContent)
}

// List handles GET /categories.
func (h *CategoriesHandler) List(w http.ResponseWriter, r *http.Request) {
	page, err := pagination.ParsePage(r.URL.Query())
	if err != nil {
		problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation, "Invalid pagination", err, h.env)
		return
	}

	list, err := h.categories.List(r.Context(), page.After, page.Limit)
	if err != nil {
		writeError(w, r, err, h.env)
		return
	}
	items := make([]CategoryDto, 0, len(list))
	for _, c := range list {
		items = append(items, categoryDto(c))
	}
	resp := listResponse[CategoryDto]{Items: items}
	if len(list) == page.Limit {
		resp.NextCursor = pagination.EncodeCursor(list[len(list)-1].ID)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Get handles GET /categories/{catId}.
func (h *CategoriesHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := pathID(w, r, "catId", h.env)
	if id == "" {
		return
	}

	c, err := h.categories.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err, h.env)
		return
	}
	writeJSON(w, http.StatusOK, categoryDto(*c))
}

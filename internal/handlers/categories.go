package handlers

import (
	"net/http"

	"github.com/diewo77/go-expenses/httpx"
	"github.com/diewo77/go-expenses/internal/services"
)

type CategoryHandler struct {
	categories *services.CategoryService
	*scoper
}

func (h *CategoryHandler) List(w http.ResponseWriter, r *http.Request) {
	pid, err := h.scope(r)
	if err != nil {
		fail(w, err)
		return
	}
	list, err := h.categories.CategoriesForScope(r.Context(), userID(r), pid)
	httpx.Result(w, http.StatusOK, list, err)
}

// Create answers 201 for a new category and 200 when an inactive one with
// the same name was brought back.
func (h *CategoryHandler) Create(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name      string `json:"name"`
		ProjectID *uint  `json:"project_id"`
	}
	if err := decode(r, &body); err != nil {
		fail(w, err)
		return
	}
	saved, err := h.categories.CreateCategory(r.Context(), userID(r), body.Name, body.ProjectID)
	status := http.StatusCreated
	if saved != nil && saved.Reactivated {
		status = http.StatusOK
	}
	httpx.Result(w, status, saved, err)
}

func (h *CategoryHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err == nil {
		err = h.categories.DeactivateCategory(r.Context(), userID(r), id)
	}
	done(w, err)
}

func (h *CategoryHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		fail(w, err)
		return
	}
	var body struct {
		TargetID uint `json:"target_id"`
	}
	if err := decode(r, &body); err != nil {
		fail(w, err)
		return
	}
	moved, err := h.categories.DeleteWithTransfer(r.Context(), userID(r), id, body.TargetID)
	httpx.Result(w, http.StatusOK, map[string]int64{"moved": moved}, err)
}

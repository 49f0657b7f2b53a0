package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
)

type labelPayload struct {
	Label string `json:"label"`
}

func (h *Handler) putLabel(w http.ResponseWriter, r *http.Request, upsert func(ctx context.Context, id, label string) error) {
	id := chi.URLParam(r, "id")
	if id == "" {
		Error(w, http.StatusBadRequest, "missing id")
		return
	}

	var payload labelPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || payload.Label == "" {
		Error(w, http.StatusBadRequest, "label is required")
		return
	}

	if err := upsert(r.Context(), id, payload.Label); err != nil {
		Error(w, http.StatusInternalServerError, "failed to store label")
		return
	}
	JSON(w, http.StatusOK, map[string]string{"id": id, "label": payload.Label})
}

func (h *Handler) getLabel(w http.ResponseWriter, r *http.Request, lookup func(ctx context.Context, id string) (string, error)) {
	id := chi.URLParam(r, "id")
	label, err := lookup(r.Context(), id)
	if err != nil {
		Error(w, http.StatusInternalServerError, "failed to look up label")
		return
	}
	if label == "" {
		Error(w, http.StatusNotFound, "unknown id")
		return
	}
	JSON(w, http.StatusOK, map[string]string{"id": id, "label": label})
}

// PutSubject stores the display label for an application.
func (h *Handler) PutSubject(w http.ResponseWriter, r *http.Request) {
	h.putLabel(w, r, h.repo.UpsertSubject)
}

// GetSubject returns the display label for an application.
func (h *Handler) GetSubject(w http.ResponseWriter, r *http.Request) {
	h.getLabel(w, r, h.repo.SubjectLabel)
}

// PutCategory stores the display label for a permission category.
func (h *Handler) PutCategory(w http.ResponseWriter, r *http.Request) {
	h.putLabel(w, r, h.repo.UpsertCategory)
}

// GetCategory returns the display label for a permission category.
func (h *Handler) GetCategory(w http.ResponseWriter, r *http.Request) {
	h.getLabel(w, r, h.repo.CategoryLabel)
}

// PutPrincipal stores the display name for a user.
func (h *Handler) PutPrincipal(w http.ResponseWriter, r *http.Request) {
	h.putLabel(w, r, h.repo.UpsertPrincipal)
}

// GetPrincipal returns the display name for a user.
func (h *Handler) GetPrincipal(w http.ResponseWriter, r *http.Request) {
	h.getLabel(w, r, h.repo.PrincipalName)
}

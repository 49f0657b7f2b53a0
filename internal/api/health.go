package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/safedrive/reminderd/internal/store"
)

// HealthHandler reports service readiness.
type HealthHandler struct {
	repo store.Repository
}

// NewHealthHandler creates a health handler backed by the label registry.
func NewHealthHandler(repo store.Repository) *HealthHandler {
	return &HealthHandler{repo: repo}
}

// Health returns readiness including registry connectivity.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.repo.Ping(r.Context()); err != nil {
		JSON(w, http.StatusServiceUnavailable, map[string]string{
			"status":   "degraded",
			"database": err.Error(),
		})
		return
	}
	JSON(w, http.StatusOK, map[string]string{
		"status":   "ok",
		"database": "ok",
	})
}

// RegisterHealth registers the health check route.
func (h *HealthHandler) RegisterHealth(r chi.Router) {
	r.Get("/api/health", h.Health)
}

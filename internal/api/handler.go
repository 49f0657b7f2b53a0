// Package api provides HTTP handlers for the reminderd API.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/safedrive/reminderd/internal/notify"
	"github.com/safedrive/reminderd/internal/store"
	"github.com/safedrive/reminderd/internal/unit"
)

// Handler provides the reminder intake and registry endpoints.
type Handler struct {
	repo           store.Repository
	units          *unit.Manager
	check          unit.CheckFunc
	center         *notify.Center
	vapidPublicKey string
}

// NewHandler creates a new Handler with common dependencies.
func NewHandler(repo store.Repository, units *unit.Manager, check unit.CheckFunc, center *notify.Center, vapidPublicKey string) *Handler {
	return &Handler{
		repo:           repo,
		units:          units,
		check:          check,
		center:         center,
		vapidPublicKey: vapidPublicKey,
	}
}

// RegisterRoutes registers the reminder API routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Post("/reminders", h.PostReminder)
		r.Post("/reminders/check", h.PostReminderIfRestricted)
		r.Get("/notification", h.GetNotification)

		r.Route("/registry", func(r chi.Router) {
			r.Put("/subjects/{id}", h.PutSubject)
			r.Get("/subjects/{id}", h.GetSubject)
			r.Put("/categories/{id}", h.PutCategory)
			r.Get("/categories/{id}", h.GetCategory)
			r.Put("/principals/{id}", h.PutPrincipal)
			r.Get("/principals/{id}", h.GetPrincipal)
		})

		r.Get("/push/key", h.GetPushKey)
		r.Post("/push/subscribe", h.SubscribePush)
	})
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

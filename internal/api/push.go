package api

import (
	"encoding/json"
	"net/http"

	"github.com/safedrive/reminderd/internal/domain"
)

// GetPushKey returns the public VAPID key for display clients.
func (h *Handler) GetPushKey(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, map[string]string{"publicKey": h.vapidPublicKey})
}

// SubscribePush saves a Web Push subscription.
func (h *Handler) SubscribePush(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Endpoint string `json:"endpoint"`
		Keys     struct {
			P256dh string `json:"p256dh"`
			Auth   string `json:"auth"`
		} `json:"keys"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Endpoint == "" {
		Error(w, http.StatusBadRequest, "invalid subscription")
		return
	}

	sub := &domain.PushSubscription{
		Endpoint: req.Endpoint,
		P256dh:   req.Keys.P256dh,
		Auth:     req.Keys.Auth,
	}
	if err := h.repo.SavePushSubscription(r.Context(), sub); err != nil {
		Error(w, http.StatusInternalServerError, "failed to save subscription")
		return
	}
	JSON(w, http.StatusCreated, map[string]string{"status": "subscribed"})
}

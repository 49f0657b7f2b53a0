package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/safedrive/reminderd/internal/notify"
	"github.com/safedrive/reminderd/internal/unit"
)

// reminderRequest is the intake payload. All three identifiers are mandatory.
type reminderRequest struct {
	Subject   string `json:"subject"`
	Category  string `json:"category"`
	Principal string `json:"principal"`
}

func (r reminderRequest) request() unit.Request {
	return unit.NewRequest(r.Subject, r.Category, r.Principal)
}

// PostReminder buffers one reminder for notification after the restriction
// lifts. A request missing any identifier is rejected without side effects.
func (h *Handler) PostReminder(w http.ResponseWriter, r *http.Request) {
	var req reminderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.units.Add(req.request()); err != nil {
		if errors.Is(err, unit.ErrMissingField) {
			Error(w, http.StatusBadRequest, err.Error())
			return
		}
		Error(w, http.StatusInternalServerError, "failed to defer reminder")
		return
	}

	JSON(w, http.StatusAccepted, map[string]string{"status": "deferred"})
}

// PostReminderIfRestricted defers the reminder only when the vehicle is
// currently restricted. The restriction check runs on its own short-lived
// connection.
func (h *Handler) PostReminderIfRestricted(w http.ResponseWriter, r *http.Request) {
	var req reminderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	deferred, err := h.units.AddIfRestricted(r.Context(), h.check, req.request())
	if err != nil {
		if errors.Is(err, unit.ErrMissingField) {
			Error(w, http.StatusBadRequest, err.Error())
			return
		}
		Error(w, http.StatusBadGateway, "restriction check failed")
		return
	}

	JSON(w, http.StatusAccepted, map[string]bool{"deferred": deferred})
}

// GetNotification returns the currently posted grouped notification, if any.
func (h *Handler) GetNotification(w http.ResponseWriter, r *http.Request) {
	n, ok := h.center.Current(notify.ChannelID, notify.SlotTag)
	if !ok {
		Error(w, http.StatusNotFound, "no notification posted")
		return
	}
	JSON(w, http.StatusOK, n)
}

// internal/controller/subscribe_controller.go
package controller

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	appErrors "github.com/brightflock/sendout-backend/internal/errors"
	"github.com/brightflock/sendout-backend/internal/service"
)

type SubscribeController struct {
	PendingService *service.PendingService
}

// Subscribe admits a pending contact for a mailing list. The address
// only becomes a subscribed contact after verification.
func (c *SubscribeController) Subscribe(w http.ResponseWriter, r *http.Request) {
	listID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid mailing list id", http.StatusBadRequest)
		return
	}

	var body struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	pending, err := c.PendingService.Admit(body.Email, listID)
	if err != nil {
		if errors.Is(err, appErrors.ErrPendingLimitReached) {
			http.Error(w, err.Error(), http.StatusTooManyRequests)
			return
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"pid":             pending.PID,
		"email":           pending.Email,
		"mailing_list_id": pending.MailingListID,
	})
}

// Verify confirms a pending contact by its token and subscribes it.
func (c *SubscribeController) Verify(w http.ResponseWriter, r *http.Request) {
	pid := chi.URLParam(r, "pid")
	if pid == "" {
		http.Error(w, "missing verification token", http.StatusBadRequest)
		return
	}

	contact, err := c.PendingService.Verify(pid)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(contact)
}

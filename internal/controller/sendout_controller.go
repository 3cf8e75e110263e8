// internal/controller/sendout_controller.go
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

type SendoutController struct {
	SendoutService *service.SendoutService
}

func (c *SendoutController) CreateSendout(w http.ResponseWriter, r *http.Request) {
	var body service.CreateSendoutInput
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	sendout, err := c.SendoutService.CreateSendout(body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(sendout)
}

func (c *SendoutController) ListSendouts(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	sendoutType := r.URL.Query().Get("type")
	status := r.URL.Query().Get("status")

	sendouts, pagination, err := c.SendoutService.ListSendouts(page, pageSize, sendoutType, status)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"data":       sendouts,
		"pagination": pagination,
	})
}

func (c *SendoutController) GetSendout(w http.ResponseWriter, r *http.Request) {
	id, err := sendoutID(r)
	if err != nil {
		http.Error(w, "invalid sendout id", http.StatusBadRequest)
		return
	}

	details, err := c.SendoutService.GetSendoutDetailsWithStats(id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(details)
}

func (c *SendoutController) SendNow(w http.ResponseWriter, r *http.Request) {
	c.lifecycleAction(w, r, func(id int64) error {
		return c.SendoutService.SendNow(r.Context(), id)
	})
}

func (c *SendoutController) Pause(w http.ResponseWriter, r *http.Request) {
	c.lifecycleAction(w, r, c.SendoutService.Pause)
}

func (c *SendoutController) Resume(w http.ResponseWriter, r *http.Request) {
	c.lifecycleAction(w, r, func(id int64) error {
		return c.SendoutService.Resume(r.Context(), id)
	})
}

func (c *SendoutController) Cancel(w http.ResponseWriter, r *http.Request) {
	c.lifecycleAction(w, r, c.SendoutService.Cancel)
}

func (c *SendoutController) lifecycleAction(w http.ResponseWriter, r *http.Request, action func(int64) error) {
	id, err := sendoutID(r)
	if err != nil {
		http.Error(w, "invalid sendout id", http.StatusBadRequest)
		return
	}
	if err := action(id); err != nil {
		writeServiceError(w, err)
		return
	}

	details, err := c.SendoutService.GetSendoutDetailsWithStats(id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(details)
}

func sendoutID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

func writeServiceError(w http.ResponseWriter, err error) {
	var notFound *appErrors.ErrSendoutNotFound
	var badTransition *appErrors.ErrInvalidTransition
	switch {
	case errors.As(err, &notFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.As(err, &badTransition):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/driftbyte/hookline/internal/delivery"
	"github.com/driftbyte/hookline/internal/models"
	"github.com/driftbyte/hookline/internal/storage"
)

type EventHandler struct {
	dispatcher *delivery.Dispatcher
	store      storage.Storage
}

func NewEventHandler(dispatcher *delivery.Dispatcher, store storage.Storage) *EventHandler {
	return &EventHandler{dispatcher: dispatcher, store: store}
}

type dispatchRequest struct {
	OrgID     string          `json:"organization_id"`
	EventType string          `json:"event_type"`
	Data      json.RawMessage `json:"data"`
}

type dispatchResponse struct {
	DeliveryEventIDs []string `json:"delivery_event_ids"`
}

// Dispatch is the producer-facing fire-and-forget entry point: delivery
// events are created and identifiers returned before any HTTP attempt runs.
func (h *EventHandler) Dispatch(w http.ResponseWriter, r *http.Request) {
	var req dispatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.OrgID == "" {
		writeError(w, http.StatusBadRequest, "organization_id is required")
		return
	}
	if req.EventType == "" {
		writeError(w, http.StatusBadRequest, "event_type is required")
		return
	}
	if len(req.Data) == 0 {
		req.Data = json.RawMessage(`{}`)
	}

	ids, err := h.dispatcher.Dispatch(r.Context(), req.OrgID, req.EventType, req.Data)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, dispatchResponse{DeliveryEventIDs: ids})
}

func (h *EventHandler) GetDelivery(w http.ResponseWriter, r *http.Request) {
	evt, err := h.store.GetDeliveryEvent(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get delivery event")
		return
	}
	if evt == nil {
		writeError(w, http.StatusNotFound, "delivery event not found")
		return
	}
	writeJSON(w, http.StatusOK, evt)
}

func (h *EventHandler) ListAttempts(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	evt, err := h.store.GetDeliveryEvent(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get delivery event")
		return
	}
	if evt == nil {
		writeError(w, http.StatusNotFound, "delivery event not found")
		return
	}

	attempts, err := h.store.ListAttempts(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list attempts")
		return
	}
	if attempts == nil {
		attempts = []models.DeliveryAttempt{}
	}
	writeJSON(w, http.StatusOK, attempts)
}

package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/driftbyte/hookline/internal/delivery"
	"github.com/driftbyte/hookline/internal/health"
	"github.com/driftbyte/hookline/internal/models"
	"github.com/driftbyte/hookline/internal/registry"
	"github.com/driftbyte/hookline/internal/storage"
)

type EndpointHandler struct {
	reg        *registry.Registry
	dispatcher *delivery.Dispatcher
	tracker    *health.Tracker
	store      storage.Storage
}

func NewEndpointHandler(reg *registry.Registry, dispatcher *delivery.Dispatcher, tracker *health.Tracker, store storage.Storage) *EndpointHandler {
	return &EndpointHandler{reg: reg, dispatcher: dispatcher, tracker: tracker, store: store}
}

// createEndpointResponse carries the secret exactly once, at creation time.
type createEndpointResponse struct {
	*models.Endpoint
	Secret string `json:"secret"`
}

func (h *EndpointHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in registry.CreateInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ep, secret, err := h.reg.Create(r.Context(), in)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, createEndpointResponse{Endpoint: ep, Secret: secret})
}

func (h *EndpointHandler) Get(w http.ResponseWriter, r *http.Request) {
	ep, err := h.reg.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ep)
}

func (h *EndpointHandler) List(w http.ResponseWriter, r *http.Request) {
	orgID := r.URL.Query().Get("org")
	if orgID == "" {
		writeError(w, http.StatusBadRequest, "org query parameter is required")
		return
	}

	eps, err := h.reg.List(r.Context(), orgID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if eps == nil {
		eps = []models.Endpoint{}
	}
	writeJSON(w, http.StatusOK, eps)
}

func (h *EndpointHandler) Update(w http.ResponseWriter, r *http.Request) {
	var in registry.UpdateInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ep, err := h.reg.Update(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ep)
}

func (h *EndpointHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	if err := h.reg.Deactivate(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *EndpointHandler) Reactivate(w http.ResponseWriter, r *http.Request) {
	if err := h.reg.Reactivate(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *EndpointHandler) Archive(w http.ResponseWriter, r *http.Request) {
	if err := h.reg.Archive(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *EndpointHandler) RotateSecret(w http.ResponseWriter, r *http.Request) {
	secret, err := h.reg.RotateSecret(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"secret": secret})
}

func (h *EndpointHandler) SendTest(w http.ResponseWriter, r *http.Request) {
	eventID, err := h.dispatcher.SendTest(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"delivery_event_id": eventID})
}

func (h *EndpointHandler) CheckHealth(w http.ResponseWriter, r *http.Request) {
	status, err := h.tracker.Check(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (h *EndpointHandler) ListDeliveries(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := h.reg.Get(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}

	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	filter := storage.DeliveryFilter{
		Status:    models.DeliveryStatus(q.Get("status")),
		EventType: q.Get("event_type"),
		Limit:     limit,
		Offset:    offset,
	}

	events, err := h.store.ListDeliveryEvents(r.Context(), id, filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list deliveries")
		return
	}
	if events == nil {
		events = []models.DeliveryEvent{}
	}
	writeJSON(w, http.StatusOK, events)
}

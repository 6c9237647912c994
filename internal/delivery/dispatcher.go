package delivery

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	apperrors "github.com/driftbyte/hookline/internal/errors"
	"github.com/driftbyte/hookline/internal/metrics"
	"github.com/driftbyte/hookline/internal/models"
	"github.com/driftbyte/hookline/internal/registry"
	"github.com/driftbyte/hookline/internal/storage"
)

// TestEventType is the synthetic event pushed through the normal pipeline
// by SendTest.
const TestEventType = "webhook.test"

// Waker lets the dispatcher nudge the worker pool without blocking.
type Waker interface {
	Wake()
}

// Dispatcher fans a fired event out to every subscribed endpoint, creating
// one pending delivery event per match. Callers get identifiers back
// immediately; execution happens in the pool.
type Dispatcher struct {
	reg   *registry.Registry
	store storage.Storage
	waker Waker
	log   zerolog.Logger
}

func NewDispatcher(reg *registry.Registry, store storage.Storage, waker Waker, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{reg: reg, store: store, waker: waker, log: log}
}

// Dispatch creates one delivery event per subscribed endpoint and returns
// their IDs. Zero matches is not an error. The canonical payload is
// serialized here, once, and never again: retries replay the same bytes.
func (d *Dispatcher) Dispatch(ctx context.Context, orgID, eventType string, data json.RawMessage) ([]string, error) {
	endpoints, err := d.reg.ListSubscribed(ctx, orgID, eventType)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(endpoints))
	for i := range endpoints {
		evt, err := d.createEvent(ctx, &endpoints[i], eventType, data)
		if err != nil {
			return ids, err
		}
		ids = append(ids, evt.ID)
	}

	if len(ids) > 0 && d.waker != nil {
		d.waker.Wake()
	}

	d.log.Debug().
		Str("org_id", orgID).
		Str("event_type", eventType).
		Int("deliveries", len(ids)).
		Msg("event dispatched")
	return ids, nil
}

// SendTest pushes a synthetic webhook.test event to one endpoint,
// bypassing subscription filters but nothing else in the pipeline.
func (d *Dispatcher) SendTest(ctx context.Context, endpointID string) (string, error) {
	ep, err := d.reg.Get(ctx, endpointID)
	if err != nil {
		return "", err
	}
	if !ep.Deliverable() {
		return "", apperrors.Wrap(apperrors.ErrEndpointInactive, "endpoint "+endpointID)
	}

	data, _ := json.Marshal(map[string]any{
		"test":        true,
		"endpoint_id": ep.ID,
	})
	evt, err := d.createEvent(ctx, ep, TestEventType, data)
	if err != nil {
		return "", err
	}
	if d.waker != nil {
		d.waker.Wake()
	}
	return evt.ID, nil
}

func (d *Dispatcher) createEvent(ctx context.Context, ep *models.Endpoint, eventType string, data json.RawMessage) (*models.DeliveryEvent, error) {
	now := time.Now().UTC()
	body, err := json.Marshal(models.WebhookPayload{
		EventType: eventType,
		Data:      data,
		WebhookID: ep.ID,
		Timestamp: now.Format(time.RFC3339),
	})
	if err != nil {
		return nil, err
	}

	evt := &models.DeliveryEvent{
		ID:         models.NewID("devt"),
		EndpointID: ep.ID,
		OrgID:      ep.OrgID,
		EventType:  eventType,
		Payload:    body,
		Status:     models.DeliveryPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := d.store.CreateDeliveryEvent(ctx, evt); err != nil {
		return nil, err
	}
	metrics.EventsDispatched.Inc()
	return evt, nil
}

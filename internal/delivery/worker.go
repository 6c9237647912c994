package delivery

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/driftbyte/hookline/internal/health"
	"github.com/driftbyte/hookline/internal/metrics"
	"github.com/driftbyte/hookline/internal/models"
	"github.com/driftbyte/hookline/internal/storage"
)

// Worker runs one delivery attempt for a claimed delivery event and applies
// the resulting state transition. Attempts for the same event are strictly
// sequential because the processing claim admits at most one worker.
type Worker struct {
	store    storage.Storage
	sender   *Sender
	tracker  *health.Tracker
	limiters *Limiters
	log      zerolog.Logger
}

func NewWorker(store storage.Storage, sender *Sender, tracker *health.Tracker, limiters *Limiters, log zerolog.Logger) *Worker {
	return &Worker{
		store:    store,
		sender:   sender,
		tracker:  tracker,
		limiters: limiters,
		log:      log,
	}
}

// Process claims the event and, if it wins the claim, runs one attempt.
// The caller's snapshot is only trusted for its ID: after winning the claim
// the row is re-fetched, so a stale snapshot from an earlier poll cannot
// replay an old attempt count.
func (w *Worker) Process(ctx context.Context, evt models.DeliveryEvent) {
	claimed, err := w.store.ClaimDeliveryEvent(ctx, evt.ID, time.Now().UTC())
	if err != nil {
		w.log.Error().Err(err).Str("delivery_id", evt.ID).Msg("failed to claim delivery event")
		return
	}
	if !claimed {
		return
	}

	fresh, err := w.store.GetDeliveryEvent(ctx, evt.ID)
	if err != nil {
		w.log.Error().Err(err).Str("delivery_id", evt.ID).Msg("failed to reload claimed delivery event")
		w.release(ctx, &evt)
		return
	}
	if fresh == nil {
		w.log.Error().Str("delivery_id", evt.ID).Msg("claimed delivery event vanished")
		return
	}
	evt = *fresh

	ep, err := w.store.GetEndpoint(ctx, evt.EndpointID)
	if err != nil {
		// Transient storage failure: the attempt never ran, so release the
		// claim instead of terminating the event.
		w.log.Error().Err(err).Str("delivery_id", evt.ID).Str("endpoint_id", evt.EndpointID).
			Msg("failed to load endpoint for delivery")
		w.release(ctx, &evt)
		return
	}
	if ep == nil {
		w.log.Warn().Str("delivery_id", evt.ID).Str("endpoint_id", evt.EndpointID).
			Msg("endpoint no longer exists, cancelling delivery")
		w.finish(ctx, &evt, models.DeliveryCancelled, nil)
		return
	}

	// Pre-flight check: deactivation between attempts terminates the event
	// explicitly instead of leaving it stuck in retrying.
	if !ep.Deliverable() {
		w.log.Info().Str("delivery_id", evt.ID).Str("endpoint_id", ep.ID).
			Msg("endpoint no longer active, cancelling delivery")
		w.finish(ctx, &evt, models.DeliveryCancelled, nil)
		return
	}

	if err := w.limiters.Wait(ctx, ep); err != nil {
		// Shutdown mid-wait: nothing was attempted.
		w.release(ctx, &evt)
		return
	}

	now := time.Now().UTC()
	if err := w.store.MarkEndpointTriggered(ctx, ep.ID, now); err != nil {
		w.log.Error().Err(err).Str("endpoint_id", ep.ID).Msg("failed to stamp last_triggered_at")
	}

	result := w.sender.Send(ctx, ep, evt.ID, evt.Payload)
	metrics.AttemptDuration.Observe(float64(result.LatencyMs) / 1000)

	evt.AttemptCount++
	delivered := time.Now().UTC()
	success := result.Error == "" && IsSuccess(result.StatusCode)

	attempt := &models.DeliveryAttempt{
		ID:              models.NewID("att"),
		DeliveryEventID: evt.ID,
		EndpointID:      ep.ID,
		AttemptNumber:   evt.AttemptCount,
		HTTPStatus:      result.StatusCode,
		ResponseBody:    result.ResponseBody,
		ResponseHeaders: result.ResponseHeaders,
		ResponseTimeMs:  result.LatencyMs,
		Success:         success,
		Error:           result.Error,
		DeliveredAt:     delivered,
	}
	if err := w.store.CreateAttempt(ctx, attempt); err != nil {
		w.log.Error().Err(err).Str("delivery_id", evt.ID).Msg("failed to record attempt")
	}

	switch {
	case success:
		metrics.AttemptsTotal.WithLabelValues("success").Inc()
		w.finish(ctx, &evt, models.DeliveryProcessed, nil)
		if err := w.tracker.RecordSuccess(ctx, ep.ID, delivered); err != nil {
			w.log.Error().Err(err).Str("endpoint_id", ep.ID).Msg("failed to record endpoint success")
		}
		w.log.Info().
			Str("delivery_id", evt.ID).
			Int("status_code", result.StatusCode).
			Int64("latency_ms", result.LatencyMs).
			Msg("delivery succeeded")

	case evt.AttemptCount+1 > ep.MaxRetries:
		metrics.AttemptsTotal.WithLabelValues("failure").Inc()
		w.finish(ctx, &evt, models.DeliveryFailed, nil)
		if err := w.tracker.RecordFailure(ctx, ep.ID, delivered); err != nil {
			w.log.Error().Err(err).Str("endpoint_id", ep.ID).Msg("failed to record endpoint failure")
		}
		w.log.Warn().
			Str("delivery_id", evt.ID).
			Int("attempts", evt.AttemptCount).
			Str("error", result.Error).
			Msg("delivery failed, retry budget exhausted")

	default:
		metrics.AttemptsTotal.WithLabelValues("failure").Inc()
		next := NextRetryTime(evt.AttemptCount, delivered)
		w.finish(ctx, &evt, models.DeliveryRetrying, next)
		w.log.Info().
			Str("delivery_id", evt.ID).
			Int("attempt", evt.AttemptCount).
			Time("next_retry", *next).
			Msg("delivery scheduled for retry")
	}
}

// release returns a claimed event to retrying, due immediately, so the next
// poll picks it back up. Used when the claim was won but no attempt ran.
func (w *Worker) release(ctx context.Context, evt *models.DeliveryEvent) {
	now := time.Now().UTC()
	evt.Status = models.DeliveryRetrying
	evt.NextRetryAt = &now
	if err := w.store.UpdateDeliveryEvent(ctx, evt); err != nil {
		w.log.Error().Err(err).Str("delivery_id", evt.ID).Msg("failed to release delivery claim")
	}
}

func (w *Worker) finish(ctx context.Context, evt *models.DeliveryEvent, status models.DeliveryStatus, nextRetryAt *time.Time) {
	evt.Status = status
	evt.NextRetryAt = nextRetryAt
	if err := w.store.UpdateDeliveryEvent(ctx, evt); err != nil {
		w.log.Error().Err(err).Str("delivery_id", evt.ID).Msg("failed to update delivery event")
		return
	}
	if status.Terminal() {
		metrics.EventsTerminal.WithLabelValues(string(status)).Inc()
	}
}

// Package health derives a per-endpoint health state from its rolling
// delivery stats. Health is observational only: gating of deliveries is
// done solely via the retry budget and the active flag.
package health

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	apperrors "github.com/driftbyte/hookline/internal/errors"
	"github.com/driftbyte/hookline/internal/models"
	"github.com/driftbyte/hookline/internal/storage"
)

type State string

const (
	StateHealthy  State = "healthy"
	StateFailing  State = "failing"
	StateInactive State = "inactive"
	StateUnknown  State = "unknown"
)

// RecencyWindow bounds how old a success may be and still count as healthy.
const RecencyWindow = 24 * time.Hour

type Status struct {
	EndpointID    string     `json:"endpoint_id"`
	State         State      `json:"state"`
	FailureCount  int        `json:"failure_count"`
	SuccessRate   float64    `json:"success_rate"`
	LastSuccessAt *time.Time `json:"last_success_at,omitempty"`
	LastFailureAt *time.Time `json:"last_failure_at,omitempty"`
}

type Tracker struct {
	store storage.Storage
	log   zerolog.Logger
}

func NewTracker(store storage.Storage, log zerolog.Logger) *Tracker {
	return &Tracker{store: store, log: log}
}

// RecordSuccess resets the consecutive failure count. Called once per
// terminal processed delivery event.
func (t *Tracker) RecordSuccess(ctx context.Context, endpointID string, at time.Time) error {
	return t.store.RecordEndpointSuccess(ctx, endpointID, at)
}

// RecordFailure increments the consecutive failure count. Called once per
// delivery event that exhausted its retry budget, not once per attempt.
func (t *Tracker) RecordFailure(ctx context.Context, endpointID string, at time.Time) error {
	if err := t.store.RecordEndpointFailure(ctx, endpointID, at); err != nil {
		return err
	}
	t.log.Warn().Str("endpoint_id", endpointID).Msg("endpoint recorded a terminal delivery failure")
	return nil
}

// Check derives the current health state for an endpoint.
func (t *Tracker) Check(ctx context.Context, endpointID string) (*Status, error) {
	ep, err := t.store.GetEndpoint(ctx, endpointID)
	if err != nil {
		return nil, err
	}
	if ep == nil {
		return nil, apperrors.Wrap(apperrors.ErrNotFound, "endpoint "+endpointID)
	}

	stats, err := t.store.GetEndpointStats(ctx, endpointID)
	if err != nil {
		return nil, err
	}

	status := &Status{
		EndpointID:    ep.ID,
		State:         derive(ep, stats, time.Now().UTC()),
		FailureCount:  ep.FailureCount,
		LastSuccessAt: ep.LastSuccessAt,
		LastFailureAt: ep.LastFailureAt,
	}
	if terminal := stats.ProcessedCount + stats.FailedCount; terminal > 0 {
		status.SuccessRate = float64(stats.ProcessedCount) / float64(terminal) * 100
	}
	return status, nil
}

func derive(ep *models.Endpoint, stats *storage.EndpointStats, now time.Time) State {
	if !ep.Deliverable() {
		return StateInactive
	}
	if ep.FailureCount > 0 && lastOutcomeFailed(ep) {
		return StateFailing
	}
	// New endpoint with no terminal deliveries yet counts as healthy.
	if stats.ProcessedCount+stats.FailedCount == 0 {
		return StateHealthy
	}
	if ep.LastSuccessAt != nil && now.Sub(*ep.LastSuccessAt) <= RecencyWindow {
		return StateHealthy
	}
	return StateUnknown
}

func lastOutcomeFailed(ep *models.Endpoint) bool {
	if ep.LastFailureAt == nil {
		return false
	}
	if ep.LastSuccessAt == nil {
		return true
	}
	return ep.LastFailureAt.After(*ep.LastSuccessAt)
}

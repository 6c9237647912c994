package storage

import (
	"context"
	"time"

	"github.com/driftbyte/hookline/internal/models"
)

// DeliveryFilter narrows ListDeliveryEvents results.
type DeliveryFilter struct {
	Status    models.DeliveryStatus
	EventType string
	Limit     int
	Offset    int
}

type Storage interface {
	// Endpoints
	CreateEndpoint(ctx context.Context, ep *models.Endpoint) error
	GetEndpoint(ctx context.Context, id string) (*models.Endpoint, error)
	ListEndpoints(ctx context.Context, orgID string) ([]models.Endpoint, error)
	UpdateEndpoint(ctx context.Context, ep *models.Endpoint) error
	SetEndpointActive(ctx context.Context, id string, active bool) error
	ArchiveEndpoint(ctx context.Context, id string) error
	UpdateEndpointSecret(ctx context.Context, id, secret string) error
	ListSubscribedEndpoints(ctx context.Context, orgID, eventType string) ([]models.Endpoint, error)

	// Rolling endpoint stats. The counter updates are single SQL statements
	// so concurrent worker completions never race a read-modify-write.
	MarkEndpointTriggered(ctx context.Context, id string, at time.Time) error
	RecordEndpointSuccess(ctx context.Context, id string, at time.Time) error
	RecordEndpointFailure(ctx context.Context, id string, at time.Time) error

	// Delivery events
	CreateDeliveryEvent(ctx context.Context, d *models.DeliveryEvent) error
	GetDeliveryEvent(ctx context.Context, id string) (*models.DeliveryEvent, error)
	UpdateDeliveryEvent(ctx context.Context, d *models.DeliveryEvent) error
	ListDeliveryEvents(ctx context.Context, endpointID string, f DeliveryFilter) ([]models.DeliveryEvent, error)

	// DueDeliveryEvents returns events eligible to run now: pending, or
	// retrying with next_retry_at elapsed. ClaimDeliveryEvent flips one of
	// them to processing and reports whether this caller won the claim; the
	// claim applies the same due check, so a stale snapshot of an event
	// whose retry is still in the future cannot win.
	DueDeliveryEvents(ctx context.Context, now time.Time, limit int) ([]models.DeliveryEvent, error)
	ClaimDeliveryEvent(ctx context.Context, id string, now time.Time) (bool, error)

	// ReleaseStuckDeliveryEvents returns processing rows last touched before
	// the cutoff to retrying, due immediately. Run at startup: a processing
	// row with no live worker is a crashed claim.
	ReleaseStuckDeliveryEvents(ctx context.Context, before time.Time) (int64, error)

	// Attempts
	CreateAttempt(ctx context.Context, a *models.DeliveryAttempt) error
	ListAttempts(ctx context.Context, deliveryEventID string) ([]models.DeliveryAttempt, error)

	// Stats
	GetStats(ctx context.Context, orgID string) (*Stats, error)
	GetEndpointStats(ctx context.Context, endpointID string) (*EndpointStats, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

type Stats struct {
	TotalEvents     int64   `json:"total_events"`
	ProcessedCount  int64   `json:"processed_count"`
	FailedCount     int64   `json:"failed_count"`
	CancelledCount  int64   `json:"cancelled_count"`
	PendingCount    int64   `json:"pending_count"`
	SuccessRate     float64 `json:"success_rate"`
	TotalEndpoints  int64   `json:"total_endpoints"`
	ActiveEndpoints int64   `json:"active_endpoints"`
}

// EndpointStats counts terminal delivery events for one endpoint.
type EndpointStats struct {
	ProcessedCount int64 `json:"processed_count"`
	FailedCount    int64 `json:"failed_count"`
	CancelledCount int64 `json:"cancelled_count"`
	PendingCount   int64 `json:"pending_count"`
}

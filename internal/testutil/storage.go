// Package testutil provides shared helpers for package tests.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/driftbyte/hookline/internal/models"
	"github.com/driftbyte/hookline/internal/storage"
)

// SetupStore returns a migrated in-memory SQLite store, closed on cleanup.
func SetupStore(t *testing.T) *storage.SQLiteStorage {
	t.Helper()

	store, err := storage.NewSQLite(":memory:")
	require.NoError(t, err)
	require.NoError(t, store.Migrate(context.Background()))
	t.Cleanup(func() { store.Close() })
	return store
}

// Endpoint persists a minimal active endpoint and returns it. Options mutate
// the model before insertion.
func Endpoint(t *testing.T, store storage.Storage, opts ...func(*models.Endpoint)) *models.Endpoint {
	t.Helper()

	now := time.Now().UTC()
	ep := &models.Endpoint{
		ID:         models.NewID("ep"),
		OrgID:      "org_test",
		Name:       "test endpoint",
		URL:        "https://example.com/hooks",
		Secret:     models.NewSecret(),
		EventTypes: []string{},
		Headers:    map[string]string{},
		MaxRetries: models.DefaultMaxRetries,
		Active:     true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	for _, opt := range opts {
		opt(ep)
	}
	require.NoError(t, store.CreateEndpoint(context.Background(), ep))
	return ep
}

// DeliveryEvent persists a pending delivery event for ep and returns it.
func DeliveryEvent(t *testing.T, store storage.Storage, ep *models.Endpoint, eventType string, payload []byte) *models.DeliveryEvent {
	t.Helper()

	now := time.Now().UTC()
	evt := &models.DeliveryEvent{
		ID:         models.NewID("devt"),
		EndpointID: ep.ID,
		OrgID:      ep.OrgID,
		EventType:  eventType,
		Payload:    payload,
		Status:     models.DeliveryPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	require.NoError(t, store.CreateDeliveryEvent(context.Background(), evt))
	return evt
}

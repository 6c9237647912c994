package delivery

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/driftbyte/hookline/internal/config"
	"github.com/driftbyte/hookline/internal/health"
	"github.com/driftbyte/hookline/internal/models"
	"github.com/driftbyte/hookline/internal/storage"
	"github.com/driftbyte/hookline/internal/testutil"
)

func waitForStatus(t *testing.T, store storage.Storage, id string, want models.DeliveryStatus) models.DeliveryEvent {
	t.Helper()

	deadline := time.After(5 * time.Second)
	for {
		evt, err := store.GetDeliveryEvent(context.Background(), id)
		require.NoError(t, err)
		require.NotNil(t, evt)
		if evt.Status == want {
			return *evt
		}
		select {
		case <-deadline:
			t.Fatalf("event %s stuck in %s, want %s", id, evt.Status, want)
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestPoolDeliversDispatchedEvent(t *testing.T) {
	store := testutil.SetupStore(t)
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	tracker := health.NewTracker(store, zerolog.Nop())

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer func() {
		srv.Close()
		http.DefaultTransport.(*http.Transport).CloseIdleConnections()
	}()

	ep := testutil.Endpoint(t, store, func(e *models.Endpoint) {
		e.URL = srv.URL
		e.EventTypes = []string{"order.created"}
	})

	pool := NewPool(config.DeliveryConfig{
		Workers:      4,
		Timeout:      2 * time.Second,
		PollInterval: 10 * time.Millisecond,
	}, store, tracker, zerolog.Nop())
	d := newTestDispatcher(store, pool)

	pool.Start(context.Background())
	defer pool.Stop()

	ids, err := d.Dispatch(context.Background(), "org_test", "order.created", json.RawMessage(`{"n":1}`))
	require.NoError(t, err)
	require.Len(t, ids, 1)

	evt := waitForStatus(t, store, ids[0], models.DeliveryProcessed)
	assert.Equal(t, 1, evt.AttemptCount)
	assert.Equal(t, ep.ID, evt.EndpointID)
}

func TestPoolWakeShortCircuitsPollInterval(t *testing.T) {
	store := testutil.SetupStore(t)
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	tracker := health.NewTracker(store, zerolog.Nop())

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer func() {
		srv.Close()
		http.DefaultTransport.(*http.Transport).CloseIdleConnections()
	}()

	testutil.Endpoint(t, store, func(e *models.Endpoint) {
		e.URL = srv.URL
		e.EventTypes = []string{"order.created"}
	})

	// An hour-long poll interval: only the wake nudge can get this delivered
	// within the test deadline.
	pool := NewPool(config.DeliveryConfig{
		Workers:      2,
		Timeout:      2 * time.Second,
		PollInterval: time.Hour,
	}, store, tracker, zerolog.Nop())
	d := newTestDispatcher(store, pool)

	pool.Start(context.Background())
	defer pool.Stop()

	ids, err := d.Dispatch(context.Background(), "org_test", "order.created", json.RawMessage(`{}`))
	require.NoError(t, err)
	require.Len(t, ids, 1)

	waitForStatus(t, store, ids[0], models.DeliveryProcessed)
}

func TestPoolRecoversStuckProcessingEvents(t *testing.T) {
	store := testutil.SetupStore(t)
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	tracker := health.NewTracker(store, zerolog.Nop())

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer func() {
		srv.Close()
		http.DefaultTransport.(*http.Transport).CloseIdleConnections()
	}()

	ep := testutil.Endpoint(t, store, func(e *models.Endpoint) { e.URL = srv.URL })

	// A processing row left behind by a crashed run: no live worker holds
	// the claim, so startup must put it back in rotation.
	evt := testutil.DeliveryEvent(t, store, ep, "order.created", []byte(`{}`))
	evt.Status = models.DeliveryProcessing
	require.NoError(t, store.UpdateDeliveryEvent(context.Background(), evt))
	time.Sleep(20 * time.Millisecond) // the stuck row predates startup

	pool := NewPool(config.DeliveryConfig{
		Workers:      2,
		Timeout:      2 * time.Second,
		PollInterval: 10 * time.Millisecond,
	}, store, tracker, zerolog.Nop())
	pool.Start(context.Background())
	defer pool.Stop()

	got := waitForStatus(t, store, evt.ID, models.DeliveryProcessed)
	assert.Equal(t, 1, got.AttemptCount)
}

func TestPoolStopWaitsForInflightWork(t *testing.T) {
	store := testutil.SetupStore(t)
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	tracker := health.NewTracker(store, zerolog.Nop())

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		w.WriteHeader(http.StatusOK)
	}))
	defer func() {
		srv.Close()
		http.DefaultTransport.(*http.Transport).CloseIdleConnections()
	}()

	testutil.Endpoint(t, store, func(e *models.Endpoint) {
		e.URL = srv.URL
		e.EventTypes = []string{"order.created"}
	})

	pool := NewPool(config.DeliveryConfig{
		Workers:      2,
		Timeout:      5 * time.Second,
		PollInterval: 10 * time.Millisecond,
	}, store, tracker, zerolog.Nop())
	d := newTestDispatcher(store, pool)

	pool.Start(context.Background())

	ids, err := d.Dispatch(context.Background(), "org_test", "order.created", json.RawMessage(`{}`))
	require.NoError(t, err)
	require.Len(t, ids, 1)

	// Let the worker pick the event up and block inside the HTTP call,
	// then unblock it concurrently with Stop. Stop must not return before
	// the in-flight delivery finishes.
	time.Sleep(100 * time.Millisecond)
	go func() {
		time.Sleep(50 * time.Millisecond)
		close(release)
	}()
	pool.Stop()

	evt, err := store.GetDeliveryEvent(context.Background(), ids[0])
	require.NoError(t, err)
	require.NotNil(t, evt)
	assert.Equal(t, models.DeliveryProcessed, evt.Status)
}

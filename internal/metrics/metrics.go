// Package metrics exposes Prometheus collectors for the delivery pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	EventsDispatched = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "hookline",
		Name:      "events_dispatched_total",
		Help:      "Delivery events created by dispatch fan-out.",
	})

	AttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hookline",
		Name:      "delivery_attempts_total",
		Help:      "HTTP delivery attempts by outcome.",
	}, []string{"outcome"})

	EventsTerminal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hookline",
		Name:      "delivery_events_terminal_total",
		Help:      "Delivery events reaching a terminal status.",
	}, []string{"status"})

	AttemptDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "hookline",
		Name:      "delivery_attempt_duration_seconds",
		Help:      "Wall time of delivery attempts, including timeouts.",
		Buckets:   prometheus.DefBuckets,
	})
)

// Handler serves the default registry for the /metrics route.
func Handler() http.Handler {
	return promhttp.Handler()
}

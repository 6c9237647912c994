package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/driftbyte/hookline/internal/config"
	"github.com/driftbyte/hookline/internal/delivery"
	"github.com/driftbyte/hookline/internal/health"
	"github.com/driftbyte/hookline/internal/metrics"
	"github.com/driftbyte/hookline/internal/registry"
	"github.com/driftbyte/hookline/internal/storage"
)

// Server hosts the management and dispatch API. Inbound authentication is
// deliberately absent: the admin layer fronting this service owns it.
type Server struct {
	cfg        config.ServerConfig
	store      storage.Storage
	reg        *registry.Registry
	dispatcher *delivery.Dispatcher
	tracker    *health.Tracker
	router     *chi.Mux
	log        zerolog.Logger
	http       *http.Server
}

func NewServer(
	cfg config.ServerConfig,
	store storage.Storage,
	reg *registry.Registry,
	dispatcher *delivery.Dispatcher,
	tracker *health.Tracker,
	log zerolog.Logger,
) *Server {
	s := &Server{
		cfg:        cfg,
		store:      store,
		reg:        reg,
		dispatcher: dispatcher,
		tracker:    tracker,
		log:        log,
	}
	s.router = s.buildRouter()
	return s
}

func (s *Server) buildRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(LoggingMiddleware(s.log))

	epHandler := NewEndpointHandler(s.reg, s.dispatcher, s.tracker, s.store)
	evtHandler := NewEventHandler(s.dispatcher, s.store)
	statsHandler := NewStatsHandler(s.store)

	r.Get("/health", statsHandler.Health)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// Endpoints (registry management)
		r.Post("/endpoints", epHandler.Create)
		r.Get("/endpoints", epHandler.List)
		r.Get("/endpoints/{id}", epHandler.Get)
		r.Patch("/endpoints/{id}", epHandler.Update)
		r.Delete("/endpoints/{id}", epHandler.Archive)
		r.Post("/endpoints/{id}/deactivate", epHandler.Deactivate)
		r.Post("/endpoints/{id}/reactivate", epHandler.Reactivate)
		r.Post("/endpoints/{id}/rotate-secret", epHandler.RotateSecret)
		r.Post("/endpoints/{id}/test", epHandler.SendTest)
		r.Get("/endpoints/{id}/health", epHandler.CheckHealth)
		r.Get("/endpoints/{id}/deliveries", epHandler.ListDeliveries)

		// Dispatch (producer-facing)
		r.Post("/events", evtHandler.Dispatch)

		// Deliveries
		r.Get("/deliveries/{id}", evtHandler.GetDelivery)
		r.Get("/deliveries/{id}/attempts", evtHandler.ListAttempts)

		// Stats
		r.Get("/stats", statsHandler.Stats)
	})

	return r
}

func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	s.http = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	s.log.Info().Str("addr", addr).Msg("starting HTTP server")
	return s.http.ListenAndServe()
}

func (s *Server) Shutdown(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return s.http.Shutdown(ctx)
}

// Router exposes the handler tree for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

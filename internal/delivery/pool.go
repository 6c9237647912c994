package delivery

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/driftbyte/hookline/internal/config"
	"github.com/driftbyte/hookline/internal/health"
	"github.com/driftbyte/hookline/internal/storage"
)

// Pool polls storage for due delivery events and hands each to a worker.
// Unrelated endpoints proceed fully in parallel; the per-event processing
// claim keeps attempts of one event sequential.
type Pool struct {
	store    storage.Storage
	worker   *Worker
	workers  int
	pollRate time.Duration
	log      zerolog.Logger
	wake     chan struct{}
	stop     chan struct{}
	wg       sync.WaitGroup
}

func NewPool(cfg config.DeliveryConfig, store storage.Storage, tracker *health.Tracker, log zerolog.Logger) *Pool {
	sender := NewSender(cfg.Timeout)
	worker := NewWorker(store, sender, tracker, NewLimiters(), log)

	pollRate := cfg.PollInterval
	if pollRate <= 0 {
		pollRate = time.Second
	}

	return &Pool{
		store:    store,
		worker:   worker,
		workers:  cfg.Workers,
		pollRate: pollRate,
		log:      log,
		wake:     make(chan struct{}, 1),
		stop:     make(chan struct{}),
	}
}

// Worker exposes the pool's worker for wiring that needs direct execution.
func (p *Pool) Worker() *Worker {
	return p.worker
}

func (p *Pool) Start(ctx context.Context) {
	p.log.Info().Int("workers", p.workers).Msg("starting delivery worker pool")

	// Any processing row at startup is a claim orphaned by a crash (or a
	// failed terminal update); return it to retrying so it runs again.
	if n, err := p.store.ReleaseStuckDeliveryEvents(ctx, time.Now().UTC()); err != nil {
		p.log.Error().Err(err).Msg("failed to release stuck delivery events")
	} else if n > 0 {
		p.log.Warn().Int64("count", n).Msg("released stuck processing delivery events")
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.pollLoop(ctx)
	}()
}

func (p *Pool) Stop() {
	p.log.Info().Msg("stopping delivery worker pool")
	close(p.stop)
	p.wg.Wait()
	p.log.Info().Msg("delivery worker pool stopped")
}

// Wake nudges the poll loop without waiting for the next tick. Never blocks.
func (p *Pool) Wake() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

func (p *Pool) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(p.pollRate)
	defer ticker.Stop()

	sem := make(chan struct{}, p.workers)

	for {
		select {
		case <-p.stop:
			return
		case <-ctx.Done():
			return
		case <-p.wake:
		case <-ticker.C:
		}
		p.drain(ctx, sem)
	}
}

func (p *Pool) drain(ctx context.Context, sem chan struct{}) {
	events, err := p.store.DueDeliveryEvents(ctx, time.Now().UTC(), p.workers)
	if err != nil {
		p.log.Error().Err(err).Msg("failed to fetch due delivery events")
		return
	}

	for _, evt := range events {
		evt := evt
		sem <- struct{}{}
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			defer func() { <-sem }()
			p.worker.Process(ctx, evt)
		}()
	}
}

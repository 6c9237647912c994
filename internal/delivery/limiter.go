package delivery

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/driftbyte/hookline/internal/models"
)

// Limiters keeps one token bucket per rate-limited endpoint so a slow or
// throttled receiver cannot be hammered by concurrent workers. Endpoints
// without a rate limit pass through untouched.
type Limiters struct {
	mu sync.Mutex
	m  map[string]*entry
}

type entry struct {
	limiter *rate.Limiter
	perMin  int
}

func NewLimiters() *Limiters {
	return &Limiters{m: make(map[string]*entry)}
}

// Wait blocks until the endpoint's bucket grants a delivery slot, or ctx is
// done. RateLimit is expressed as deliveries per minute.
func (l *Limiters) Wait(ctx context.Context, ep *models.Endpoint) error {
	if ep.RateLimit <= 0 {
		return nil
	}

	l.mu.Lock()
	e, ok := l.m[ep.ID]
	if !ok || e.perMin != ep.RateLimit {
		e = &entry{
			limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(ep.RateLimit)), 1),
			perMin:  ep.RateLimit,
		}
		l.m[ep.ID] = e
	}
	l.mu.Unlock()

	return e.limiter.Wait(ctx)
}

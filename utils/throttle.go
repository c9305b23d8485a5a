package utils

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Throttle enforces a fixed minimum interval between calls to a slow
// external collaborator. The interval runs from the end of the previous
// call when Done is reported, otherwise from its start. The first call
// never waits.
type Throttle struct {
	mu      sync.Mutex
	limit   rate.Limit
	limiter *rate.Limiter
}

// NewThrottle creates a Throttle with the given minimum interval. A zero or
// negative interval disables throttling.
func NewThrottle(minInterval time.Duration) *Throttle {
	limit := rate.Inf
	if minInterval > 0 {
		limit = rate.Every(minInterval)
	}
	return &Throttle{limit: limit, limiter: rate.NewLimiter(limit, 1)}
}

// Wait blocks until the next call is allowed or ctx is done.
func (t *Throttle) Wait(ctx context.Context) error {
	t.mu.Lock()
	l := t.limiter
	t.mu.Unlock()
	return l.Wait(ctx)
}

// Done marks the end of a call; the next Wait is held for a full interval
// from now.
func (t *Throttle) Done() {
	if t.limit == rate.Inf {
		return
	}
	l := rate.NewLimiter(t.limit, 1)
	l.Allow()

	t.mu.Lock()
	t.limiter = l
	t.mu.Unlock()
}

package services

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RequestGate spaces outbound page requests by at least minDelay, adding random jitter up to
// maxDelay-minDelay whenever a caller arrives inside the minimum window.
//
// Waiters are served one at a time and the gap is measured from the last granted request.
type RequestGate struct {
	mu      sync.Mutex
	limiter *rate.Limiter
	spread  time.Duration
	now     func() time.Time
	sleep   func(ctx context.Context, d time.Duration) error
	jitter  func(spread time.Duration) time.Duration
}

// NewRequestGate creates a gate with the given delay window.
func NewRequestGate(minDelay, maxDelay time.Duration) *RequestGate {
	limit := rate.Inf
	if minDelay > 0 {
		limit = rate.Every(minDelay)
	}

	return &RequestGate{
		limiter: rate.NewLimiter(limit, 1),
		spread:  max(maxDelay-minDelay, 0),
		now:     time.Now,
		sleep:   sleepContext,
		jitter:  randomJitter,
	}
}

// Wait blocks until the next request may be sent.
func (g *RequestGate) Wait(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	r := g.limiter.ReserveN(now, 1)
	if !r.OK() {
		return fmt.Errorf("request gate cannot grant a request")
	}

	delay := r.DelayFrom(now)
	if delay <= 0 {
		return nil
	}

	// move the reservation to the jittered send time
	r.CancelAt(now)
	delay += g.jitter(g.spread)
	g.limiter.ReserveN(now.Add(delay), 1)

	return g.sleep(ctx, delay)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func randomJitter(spread time.Duration) time.Duration {
	if spread <= 0 {
		return 0
	}
	return time.Duration(rand.Int64N(int64(spread) + 1))
}

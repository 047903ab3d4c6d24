package pagination

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Throttle keeps a fixed delay between consecutive requests to stay clear
// of secondary rate limits. A nil *Throttle does not wait. It is not safe
// for concurrent use.
type Throttle struct {
	delay   time.Duration
	limiter *rate.Limiter
}

// NewThrottle returns a throttle with the given delay, or nil when delay
// is not positive.
func NewThrottle(delay time.Duration) *Throttle {
	if delay <= 0 {
		return nil
	}
	return &Throttle{delay: delay, limiter: rate.NewLimiter(rate.Every(delay), 1)}
}

// Wait blocks until the next request may be sent. The first call returns
// immediately.
func (t *Throttle) Wait(ctx context.Context) error {
	if t == nil {
		return nil
	}
	return t.limiter.Wait(ctx)
}

// Done marks the end of a request. The next Wait returns no sooner than
// the delay after the latest Done, however long the request took.
func (t *Throttle) Done() {
	if t == nil {
		return
	}
	t.limiter = rate.NewLimiter(rate.Every(t.delay), 1)
	t.limiter.Allow()
}

// Package retry provides the single retry policy applied around every
// GitHub API call: bounded attempts with exponential backoff, or a wait
// until the provider-reported rate limit reset when one is known.
package retry

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/naka-gawa/github-mining/internal/apierr"
	"github.com/naka-gawa/github-mining/internal/metrics"
	"github.com/rs/zerolog"
)

// Policy holds the configuration for retry logic.
type Policy struct {
	// MaxAttempts is the maximum number of attempts, including the first.
	MaxAttempts int

	// BaseDelay is the first backoff interval; it doubles on every retry.
	BaseDelay time.Duration

	// MaxDelay caps a single backoff interval.
	MaxDelay time.Duration

	// ResetMargin is added to waits computed from a rate limit reset.
	ResetMargin time.Duration

	// Timer replaces the wall clock timer. Nil means a real timer.
	Timer backoff.Timer

	// Now replaces time.Now when computing waits until a reset.
	Now func() time.Time

	Logger zerolog.Logger
}

// DefaultPolicy returns 5 attempts, 2s base, 30s cap and a 2s reset margin.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 5,
		BaseDelay:   2 * time.Second,
		MaxDelay:    30 * time.Second,
		ResetMargin: 2 * time.Second,
	}
}

// Do runs op until it succeeds, returns a non-retryable error, or the
// attempts are exhausted. op receives the same ctx on every attempt, so a
// retried request is identical to the original one.
func (p Policy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	if p.MaxAttempts <= 1 {
		return op(ctx)
	}

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = p.BaseDelay
	exp.MaxInterval = p.MaxDelay
	exp.Multiplier = 2
	exp.MaxElapsedTime = 0

	rb := &resetBackOff{BackOff: exp, margin: p.ResetMargin, now: p.now}
	b := backoff.WithContext(backoff.WithMaxRetries(rb, uint64(p.MaxAttempts-1)), ctx)

	attempt := 0
	err := backoff.RetryNotifyWithTimer(func() error {
		attempt++
		err := op(ctx)
		if err == nil {
			if attempt > 1 {
				p.Logger.Info().Int("attempt", attempt).Msg("Request succeeded after retry")
			}
			return nil
		}
		if !apierr.IsRetryable(err) {
			return backoff.Permanent(err)
		}
		rb.resetAt = apierr.ResetAt(err)
		return err
	}, b, func(err error, wait time.Duration) {
		reason := "backoff"
		if rb.fromReset {
			reason = "reset"
		}
		metrics.RetriesTotal.WithLabelValues(reason).Inc()
		p.Logger.Warn().
			Err(err).
			Int("attempt", attempt).
			Dur("wait", wait).
			Str("reason", reason).
			Msg("Retrying request after transient failure")
	}, p.Timer)

	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return err
	}
	if apierr.IsRetryable(err) {
		p.Logger.Error().Err(err).Int("max_attempts", p.MaxAttempts).Msg("Retry attempts exhausted")
		return fmt.Errorf("%w after %d attempts: %w", apierr.ErrRetryExhausted, attempt, err)
	}
	return err
}

// WaitUntil blocks until resetAt plus the reset margin, or until ctx is
// done. A reset in the past still waits for the margin.
func (p Policy) WaitUntil(ctx context.Context, resetAt time.Time) error {
	wait := resetAt.Sub(p.now())
	if wait < 0 {
		wait = 0
	}
	wait += p.ResetMargin
	if wait <= 0 {
		return nil
	}

	t := p.Timer
	if t == nil {
		t = &wallTimer{}
	}
	t.Start(wait)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C():
		return nil
	}
}

func (p Policy) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

// resetBackOff prefers a wait derived from the last error's reset time
// over the exponential interval. The exponential state still advances.
type resetBackOff struct {
	backoff.BackOff
	margin    time.Duration
	now       func() time.Time
	resetAt   time.Time
	fromReset bool
}

func (b *resetBackOff) NextBackOff() time.Duration {
	next := b.BackOff.NextBackOff()
	b.fromReset = false
	if next == backoff.Stop || b.resetAt.IsZero() {
		return next
	}
	wait := b.resetAt.Sub(b.now())
	if wait < 0 {
		wait = 0
	}
	b.resetAt = time.Time{}
	b.fromReset = true
	return wait + b.margin
}

type wallTimer struct {
	timer *time.Timer
}

func (t *wallTimer) Start(d time.Duration) {
	t.timer = time.NewTimer(d)
}

func (t *wallTimer) Stop() {
	if t.timer != nil {
		t.timer.Stop()
	}
}

func (t *wallTimer) C() <-chan time.Time {
	return t.timer.C
}

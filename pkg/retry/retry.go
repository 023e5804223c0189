package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	errx "github.com/chative-commerce/storefront-agent/internal/core/error"
	logx "github.com/chative-commerce/storefront-agent/pkg/logger"
)

// Policy bounds retries of rate-limited upstream calls. Only HTTP 429 is
// retried; every other failure is returned immediately.
type Policy struct {
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// DefaultPolicy returns the production defaults.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:    3,
		InitialDelay:  500 * time.Millisecond,
		MaxDelay:      8 * time.Second,
		BackoffFactor: 2,
	}
}

// ErrExhausted wraps the last 429 once MaxRetries is used up.
var ErrExhausted = errors.New("retries exhausted")

// Func is one attempt of an operation.
type Func[T any] func(ctx context.Context) (T, error)

// Do runs fn until it succeeds, fails with something other than a 429, or
// MaxRetries retries have been spent. A server supplied Retry-After wins over
// the computed backoff.
func Do[T any](ctx context.Context, p Policy, operation string, fn Func[T]) (T, error) {
	var zero T
	for attempt := 0; ; attempt++ {
		result, err := fn(ctx)
		if err == nil {
			if attempt > 0 {
				logx.Info().Str("operation", operation).Int("attempt", attempt+1).Msg("operation succeeded after retry")
			}
			return result, nil
		}

		if !errx.IsRateLimited(err) {
			return zero, err
		}
		if attempt >= p.MaxRetries {
			return zero, fmt.Errorf("%s: %w after %d attempts: %w", operation, ErrExhausted, attempt+1, err)
		}

		delay := p.waitFor(attempt+1, err)

		logx.Warn().
			Err(err).
			Str("operation", operation).
			Int("attempt", attempt+1).
			Int("max_retries", p.MaxRetries).
			Dur("retry_delay", delay).
			Msg("rate limited, retrying")

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		case <-timer.C:
		}
	}
}

// Delay is the exponential backoff for the given retry number (1-based).
func (p Policy) Delay(retry int) time.Duration {
	factor := p.BackoffFactor
	if factor < 1 {
		factor = 2
	}
	d := float64(p.InitialDelay) * math.Pow(factor, float64(retry-1))
	if p.MaxDelay > 0 && d > float64(p.MaxDelay) {
		d = float64(p.MaxDelay)
	}
	return time.Duration(d)
}

// waitFor picks the pause before the given retry: the upstream Retry-After
// hint when present, capped at MaxDelay, else the computed backoff.
func (p Policy) waitFor(retry int, err error) time.Duration {
	var up *errx.UpstreamError
	if !errors.As(err, &up) || up.RetryAfter <= 0 {
		return p.Delay(retry)
	}
	if p.MaxDelay > 0 && up.RetryAfter > p.MaxDelay {
		return p.MaxDelay
	}
	return up.RetryAfter
}

package propagation

import (
	"context"
	"errors"
	"time"

	"github.com/channelsync/backend/internal/domain/platform"
)

// RetryPolicy is the single retry/backoff policy every platform write goes
// through. Adapters never retry on their own; keeping the policy here means
// one knob for the whole engine.
type RetryPolicy struct {
	// MaxAttempts is the total number of tries, first attempt included
	MaxAttempts int
	// InitialBackoff is the delay after the first failure
	InitialBackoff time.Duration
	// MaxBackoff caps the exponential growth
	MaxBackoff time.Duration
	// Multiplier grows the backoff between attempts
	Multiplier float64
}

// DefaultRetryPolicy returns the policy used when none is configured
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    4,
		InitialBackoff: 2 * time.Second,
		MaxBackoff:     60 * time.Second,
		Multiplier:     2.0,
	}
}

// Backoff returns the delay before the given retry attempt (1-based)
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	backoff := p.InitialBackoff
	for i := 1; i < attempt; i++ {
		backoff = time.Duration(float64(backoff) * p.Multiplier)
		if backoff >= p.MaxBackoff {
			return p.MaxBackoff
		}
	}
	if backoff > p.MaxBackoff {
		return p.MaxBackoff
	}
	return backoff
}

// Do runs op until it succeeds, the attempts are exhausted, a permanent
// error occurs, or the context is canceled
func (p RetryPolicy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}
		if !Retryable(lastErr) || attempt == p.MaxAttempts {
			return lastErr
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.Backoff(attempt)):
		}
	}
	return lastErr
}

// Retryable reports whether an error is worth retrying. Authentication and
// not-found failures never heal on their own; rate limits and transport
// errors usually do.
func Retryable(err error) bool {
	switch {
	case errors.Is(err, platform.ErrAuthFailed),
		errors.Is(err, platform.ErrListingNotFound),
		errors.Is(err, platform.ErrInvalidListing),
		errors.Is(err, platform.ErrAdapterNotConfigured),
		errors.Is(err, context.Canceled):
		return false
	default:
		return true
	}
}

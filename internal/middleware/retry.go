package middleware

import (
	"context"
	"math"
	"time"

	"github.com/Youmanvi/ticketreserve/internal/infrastructure/observability"
	"github.com/Youmanvi/ticketreserve/internal/pkg/errors"
)

// RetryPolicy defines the retry strategy
type RetryPolicy struct {
	MaxAttempts       int           // Maximum number of attempts, including the first
	InitialBackoff    time.Duration // Initial backoff duration
	MaxBackoff        time.Duration // Maximum backoff duration
	BackoffMultiplier float64       // Exponential backoff multiplier
}

// DefaultRetryPolicy returns a sensible default retry policy
func DefaultRetryPolicy(maxAttempts int) RetryPolicy {
	return RetryPolicy{
		MaxAttempts:       maxAttempts,
		InitialBackoff:    100 * time.Millisecond,
		MaxBackoff:        5 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// WithRetry returns a middleware that retries the activity on transient failures.
// Unclassified errors are retried; classified ones only when transient.
func WithRetry(logger *observability.Logger, policy RetryPolicy) ActivityMiddleware {
	return func(next ActivityFunc) ActivityFunc {
		return func(ctx context.Context, input []byte) ([]byte, error) {
			var lastErr error

			for attempt := 1; attempt <= max(policy.MaxAttempts, 1); attempt++ {
				result, err := next(ctx, input)
				if err == nil {
					return result, nil
				}

				if errors.CodeOf(err) != "" && !errors.IsRetryable(err) {
					return nil, err
				}
				lastErr = err

				if attempt < policy.MaxAttempts {
					backoff := calculateBackoff(attempt-1, policy)
					logger.WithError(err).Logger.Debug().
						Int("attempt", attempt).
						Dur("backoff", backoff).
						Msg("retrying activity after backoff")

					timer := time.NewTimer(backoff)
					select {
					case <-timer.C:
					case <-ctx.Done():
						timer.Stop()
						return nil, ctx.Err()
					}
				}
			}

			return nil, lastErr
		}
	}
}

// calculateBackoff calculates exponential backoff
func calculateBackoff(attempt int, policy RetryPolicy) time.Duration {
	backoff := float64(policy.InitialBackoff) * math.Pow(policy.BackoffMultiplier, float64(attempt))

	if backoff > float64(policy.MaxBackoff) {
		backoff = float64(policy.MaxBackoff)
	}

	return time.Duration(backoff)
}

package middleware

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/Youmanvi/ticketreserve/internal/infrastructure/observability"
	"github.com/Youmanvi/ticketreserve/internal/pkg/errors"
	"github.com/sony/gobreaker"
)

// WithCircuitBreaker returns a middleware that protects activity execution with a circuit breaker
func WithCircuitBreaker(logger *observability.Logger, name string, threshold float64, timeout time.Duration) ActivityMiddleware {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    timeout,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Logger.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state changed")
		},
	})

	return func(next ActivityFunc) ActivityFunc {
		return func(ctx context.Context, input []byte) ([]byte, error) {
			result, err := cb.Execute(func() (interface{}, error) {
				return next(ctx, input)
			})

			if err != nil {
				if stderrors.Is(err, gobreaker.ErrOpenState) || stderrors.Is(err, gobreaker.ErrTooManyRequests) {
					return nil, errors.NewTransientError(
						"CIRCUIT_BREAKER_OPEN",
						fmt.Sprintf("circuit breaker open for activity: %s", name),
						err,
					)
				}
				return nil, err
			}

			return result.([]byte), nil
		}
	}
}

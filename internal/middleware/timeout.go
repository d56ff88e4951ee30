package middleware

import (
	"context"
	"fmt"
	"time"

	"github.com/Youmanvi/ticketreserve/internal/pkg/errors"
)

// WithTimeout returns a middleware that enforces a timeout on activity execution.
// A non-positive timeout disables it.
func WithTimeout(timeout time.Duration) ActivityMiddleware {
	return func(next ActivityFunc) ActivityFunc {
		if timeout <= 0 {
			return next
		}
		return func(ctx context.Context, input []byte) ([]byte, error) {
			timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			type result struct {
				output []byte
				err    error
			}
			resultChan := make(chan result, 1)

			go func() {
				output, err := next(timeoutCtx, input)
				resultChan <- result{output, err}
			}()

			select {
			case res := <-resultChan:
				if res.err != nil && ctx.Err() == nil && timeoutCtx.Err() != nil {
					return nil, timeoutError(timeout)
				}
				return res.output, res.err
			case <-timeoutCtx.Done():
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				return nil, timeoutError(timeout)
			}
		}
	}
}

func timeoutError(timeout time.Duration) error {
	return errors.NewTimeoutError("ACTIVITY_TIMEOUT", fmt.Sprintf("activity execution exceeded %s", timeout))
}

package middleware

import (
	"context"
	"time"

	"github.com/Youmanvi/ticketreserve/internal/infrastructure/observability"
)

// WithMetrics records execution count, duration and errors per activity
func WithMetrics(metrics *observability.Metrics, activityName string) ActivityMiddleware {
	return func(next ActivityFunc) ActivityFunc {
		return func(ctx context.Context, input []byte) ([]byte, error) {
			start := time.Now()
			output, err := next(ctx, input)
			metrics.RecordActivityExecution(activityName, time.Since(start), err)
			return output, err
		}
	}
}

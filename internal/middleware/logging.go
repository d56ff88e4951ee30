package middleware

import (
	"context"
	"time"

	"github.com/Youmanvi/ticketreserve/internal/infrastructure/observability"
	"github.com/Youmanvi/ticketreserve/internal/pkg/errors"
)

// WithLogging returns a middleware that logs activity execution with persistence
func WithLogging(logger *observability.Logger, activityName string) ActivityMiddleware {
	return func(next ActivityFunc) ActivityFunc {
		return func(ctx context.Context, input []byte) ([]byte, error) {
			start := time.Now()

			traceID := observability.TraceIDFromContext(ctx)
			if traceID == "" {
				traceID = generateTraceID()
				ctx = observability.ContextWithTraceID(ctx, traceID)
			}

			actLogger := logger.WithTraceID(ctx, traceID).WithActivityName(activityName)
			actLogger.Debug("activity started")

			output, err := next(ctx, input)
			duration := time.Since(start)

			if err != nil {
				actLogger.WithError(err).Logger.Error().
					Dur("duration_ms", duration).
					Msg("activity failed")

				logger.WriteLogRecord(observability.NewLogRecord(observability.LogLevelError, traceID, "activity failed").
					WithActivity(activityName).
					WithDuration(duration).
					WithInput(input).
					WithErrorCode(errors.CodeOf(err)).
					WithError(err.Error()))

				return nil, err
			}

			actLogger.Logger.Info().
				Dur("duration_ms", duration).
				Msg("activity completed")

			logger.WriteLogRecord(observability.NewLogRecord(observability.LogLevelInfo, traceID, "activity completed").
				WithActivity(activityName).
				WithDuration(duration).
				WithInput(input).
				WithOutput(output))

			return output, nil
		}
	}
}

// generateTraceID generates a new cryptographic trace ID
func generateTraceID() string {
	id, err := observability.GenerateCryptographicTraceID()
	if err != nil {
		return "unknown"
	}
	return id
}

package activities

import (
	"context"
	"time"

	"github.com/Youmanvi/ticketreserve/internal/activities/notification"
	"github.com/Youmanvi/ticketreserve/internal/infrastructure/observability"
	"github.com/Youmanvi/ticketreserve/internal/middleware"
	"github.com/microsoft/durabletask-go/task"
)

// ActivityDeps contains dependencies for all task hub activities
type ActivityDeps struct {
	Logger          *observability.Logger
	Metrics         *observability.Metrics
	Notifier        notification.Notifier
	RetryPolicy     middleware.RetryPolicy
	TimeoutDuration time.Duration
}

// NewActivityRegistry creates a registry with all activities registered
// behind the middleware chain. Orchestrators are added to the same registry.
func NewActivityRegistry(deps *ActivityDeps) *task.TaskRegistry {
	registry := task.NewTaskRegistry()

	registerActivity(registry, notification.ActivityName,
		notification.SendPurchaseConfirmationActivity(deps.Notifier),
		deps,
		recordDelivery(deps.Metrics),
	)

	return registry
}

// registerActivity registers an activity with middleware
func registerActivity(registry *task.TaskRegistry, name string, activity middleware.ActivityFunc, deps *ActivityDeps, extra ...middleware.ActivityMiddleware) {
	// outermost first
	chain := append([]middleware.ActivityMiddleware{
		middleware.WithLogging(deps.Logger, name),
		middleware.WithMetrics(deps.Metrics, name),
	}, extra...)
	chain = append(chain,
		middleware.WithTimeout(deps.TimeoutDuration),
		// gRPC error handling BEFORE retry so transient errors are classified correctly
		middleware.WithGRPCErrorHandling(),
		middleware.WithRetry(deps.Logger, deps.RetryPolicy),
	)
	wrapped := middleware.ApplyMiddleware(activity, chain...)

	// Adapt middleware.ActivityFunc to task.Activity
	taskActivity := func(ctx task.ActivityContext) (any, error) {
		var input []byte
		if err := ctx.GetInput(&input); err != nil {
			return nil, err
		}

		return wrapped(ctx.Context(), input)
	}

	if err := registry.AddActivityN(name, taskActivity); err != nil {
		deps.Logger.Error("failed to register activity "+name, err)
	}
}

// recordDelivery counts delivery outcomes after retries are exhausted
func recordDelivery(metrics *observability.Metrics) middleware.ActivityMiddleware {
	return func(next middleware.ActivityFunc) middleware.ActivityFunc {
		return func(ctx context.Context, input []byte) ([]byte, error) {
			output, err := next(ctx, input)
			metrics.RecordNotificationSent(err)
			return output, err
		}
	}
}

package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/Youmanvi/ticketreserve/internal/activities/notification"
	"github.com/Youmanvi/ticketreserve/internal/infrastructure/observability"
	"github.com/Youmanvi/ticketreserve/internal/pkg/errors"
	"github.com/Youmanvi/ticketreserve/internal/workflows"
	"github.com/google/uuid"
	"github.com/microsoft/durabletask-go/api"
	"github.com/microsoft/durabletask-go/backend"
)

// TaskHubDispatcher hands purchase confirmations to the task hub. Delivery
// happens on the hub's workers; the caller only waits for the enqueue.
type TaskHubDispatcher struct {
	client  backend.TaskHubClient
	logger  *observability.Logger
	metrics *observability.Metrics
	timeout time.Duration
}

func NewTaskHubDispatcher(client backend.TaskHubClient, logger *observability.Logger, metrics *observability.Metrics, timeout time.Duration) *TaskHubDispatcher {
	return &TaskHubDispatcher{client: client, logger: logger, metrics: metrics, timeout: timeout}
}

// DispatchPurchase schedules one delivery orchestration for msg. It survives
// cancellation of ctx and never returns an error: failures are logged and
// counted.
func (d *TaskHubDispatcher) DispatchPurchase(ctx context.Context, msg notification.PurchaseMessage) {
	ctx = context.WithoutCancel(ctx)
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	instanceID := api.InstanceID(fmt.Sprintf("notify-%d-%s", msg.OrderID, uuid.NewString()))
	logger := d.logger.WithOrderID(msg.OrderID)

	_, err := d.client.ScheduleNewOrchestration(ctx, workflows.NotificationDeliveryName,
		api.WithInstanceID(instanceID),
		api.WithInput(msg),
	)
	d.metrics.RecordNotificationEnqueued(err)
	d.audit(ctx, msg.OrderID, instanceID, err)
	if err != nil {
		logger.Error("failed to enqueue purchase confirmation", err)
		return
	}

	logger.Logger.Debug().Str("instance_id", string(instanceID)).Msg("purchase confirmation enqueued")
}

// audit ties the order to its delivery orchestration in the audit log.
func (d *TaskHubDispatcher) audit(ctx context.Context, orderID int64, instanceID api.InstanceID, err error) {
	record := observability.NewLogRecord(observability.LogLevelInfo, observability.TraceIDFromContext(ctx), "purchase confirmation enqueued").
		WithActivity(workflows.NotificationDeliveryName).
		WithOrderID(orderID).
		WithOrchestrationID(string(instanceID))
	if err != nil {
		record.Level = observability.LogLevelError
		record.Message = "purchase confirmation enqueue failed"
		code := errors.CodeOf(err)
		if code == "" {
			code = errors.CodeExternalServiceFailure
		}
		record = record.WithErrorCode(code).WithError(err.Error())
	}
	d.logger.WriteLogRecord(record)
}

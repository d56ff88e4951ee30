package workflows

import (
	"encoding/json"
	"fmt"

	"github.com/Youmanvi/ticketreserve/internal/activities/notification"
	"github.com/microsoft/durabletask-go/task"
)

// NotificationDeliveryName is the orchestrator scheduled once per created order.
const NotificationDeliveryName = "notification_delivery"

// NotificationDeliveryOutput is the recorded result of one delivery
type NotificationDeliveryOutput struct {
	OrderID int64  `json:"orderId"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// NotificationDeliveryOrchestrator delivers a purchase confirmation. A failed
// delivery is recorded in the output and the orchestration still completes.
func NotificationDeliveryOrchestrator(ctx *task.OrchestrationContext) (any, error) {
	var msg notification.PurchaseMessage
	if err := ctx.GetInput(&msg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal purchase message: %w", err)
	}

	output := NotificationDeliveryOutput{OrderID: msg.OrderID, Status: "pending"}

	input, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal activity input: %w", err)
	}

	var raw []byte
	if err := ctx.CallActivity(notification.ActivityName, task.WithActivityInput(input)).Await(&raw); err != nil {
		output.Status = "failed"
		output.Message = fmt.Sprintf("purchase confirmation failed: %v", err)
		return output, nil
	}

	output.Status = "delivered"
	return output, nil
}

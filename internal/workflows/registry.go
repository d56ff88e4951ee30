package workflows

import (
	"github.com/microsoft/durabletask-go/task"
)

// RegisterWorkflows adds all orchestrators to registry
func RegisterWorkflows(registry *task.TaskRegistry) error {
	return registry.AddOrchestratorN(NotificationDeliveryName, NotificationDeliveryOrchestrator)
}

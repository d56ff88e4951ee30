package backend

import (
	"context"
	"fmt"

	"github.com/Youmanvi/ticketreserve/internal/infrastructure/config"
	"github.com/Youmanvi/ticketreserve/internal/infrastructure/observability"
	"github.com/microsoft/durabletask-go/backend"
	"github.com/microsoft/durabletask-go/task"
)

// TaskHub runs orchestrations and activities out of band from order
// transactions
type TaskHub struct {
	Backend backend.Backend
	Client  backend.TaskHubClient
	worker  backend.TaskHubWorker
}

// StartTaskHub opens the backend and starts the orchestration and activity
// workers for registry.
func StartTaskHub(ctx context.Context, cfg *config.TaskHubConfig, registry *task.TaskRegistry, logger *observability.Logger) (*TaskHub, error) {
	hubLogger := NewTaskHubLogger(logger)

	be, err := NewSQLiteBackend(cfg, hubLogger)
	if err != nil {
		return nil, err
	}

	executor := task.NewTaskExecutor(registry)
	orchestrationWorker := backend.NewOrchestrationWorker(be, executor, hubLogger)
	activityWorker := backend.NewActivityTaskWorker(be, executor, hubLogger)
	worker := backend.NewTaskHubWorker(be, orchestrationWorker, activityWorker, hubLogger)

	if err := worker.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start task hub worker: %w", err)
	}

	return &TaskHub{
		Backend: be,
		Client:  backend.NewTaskHubClient(be),
		worker:  worker,
	}, nil
}

// Shutdown stops the workers, letting in-flight work items finish
func (h *TaskHub) Shutdown(ctx context.Context) error {
	return h.worker.Shutdown(ctx)
}

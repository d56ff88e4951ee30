package dispatch_test

import (
	"context"
	stderrors "errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/Youmanvi/ticketreserve/internal/activities"
	"github.com/Youmanvi/ticketreserve/internal/activities/notification"
	"github.com/Youmanvi/ticketreserve/internal/dispatch"
	"github.com/Youmanvi/ticketreserve/internal/infrastructure/backend"
	"github.com/Youmanvi/ticketreserve/internal/infrastructure/config"
	"github.com/Youmanvi/ticketreserve/internal/infrastructure/observability"
	"github.com/Youmanvi/ticketreserve/internal/middleware"
	"github.com/Youmanvi/ticketreserve/internal/workflows"
	"github.com/microsoft/durabletask-go/api"
	dtbackend "github.com/microsoft/durabletask-go/backend"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startHub(t *testing.T, notifier notification.Notifier, metrics *observability.Metrics) *backend.TaskHub {
	t.Helper()

	logger := observability.NewNopLogger()
	registry := activities.NewActivityRegistry(&activities.ActivityDeps{
		Logger:          logger,
		Metrics:         metrics,
		Notifier:        notifier,
		RetryPolicy:     middleware.DefaultRetryPolicy(1),
		TimeoutDuration: time.Second,
	})
	require.NoError(t, workflows.RegisterWorkflows(registry))

	hub, err := backend.StartTaskHub(context.Background(), &config.TaskHubConfig{SQLiteFile: filepath.Join(t.TempDir(), "taskhub.db")}, registry, logger)
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = hub.Shutdown(ctx)
	})
	return hub
}

func purchase(orderID int64) notification.PurchaseMessage {
	return notification.PurchaseMessage{
		OrderID:     orderID,
		MemberID:    1,
		PhoneNumber: "010-1234-5678",
		PoolIDs:     []int64{1, 2},
		PoolNames:   []string{"Concert A", "Concert B"},
	}
}

func TestDispatchPurchase_Delivers(t *testing.T) {
	notifier := notification.NewMockNotifier()
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	hub := startHub(t, notifier, metrics)
	d := dispatch.NewTaskHubDispatcher(hub.Client, observability.NewNopLogger(), metrics, time.Second)

	d.DispatchPurchase(context.Background(), purchase(42))

	assert.Eventually(t, func() bool { return len(notifier.GetAllMessages()) == 1 }, 10*time.Second, 20*time.Millisecond)
	msg := notifier.GetAllMessages()[0]
	assert.Equal(t, "010-1234-5678", msg.PhoneNumber)
	assert.Equal(t, []string{"Concert A", "Concert B"}, msg.PoolNames)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.NotificationsEnqueued.WithLabelValues("success")))
}

func TestDispatchPurchase_SurvivesCanceledCaller(t *testing.T) {
	notifier := notification.NewMockNotifier()
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	hub := startHub(t, notifier, metrics)
	d := dispatch.NewTaskHubDispatcher(hub.Client, observability.NewNopLogger(), metrics, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d.DispatchPurchase(ctx, purchase(43))

	assert.Eventually(t, func() bool { return len(notifier.GetAllMessages()) == 1 }, 10*time.Second, 20*time.Millisecond)
}

func TestDispatchPurchase_DeliveryFailureIsAbsorbed(t *testing.T) {
	notifier := notification.NewMockNotifier()
	notifier.FailWith(stderrors.New("sms gateway down"))
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	hub := startHub(t, notifier, metrics)
	d := dispatch.NewTaskHubDispatcher(hub.Client, observability.NewNopLogger(), metrics, time.Second)

	d.DispatchPurchase(context.Background(), purchase(44))

	assert.Eventually(t, func() bool {
		return testutil.ToFloat64(metrics.NotificationsSent.WithLabelValues("failure")) == 1
	}, 10*time.Second, 20*time.Millisecond)
	assert.Empty(t, notifier.GetAllMessages())
}

type failingClient struct {
	dtbackend.TaskHubClient
	calls int
}

func (c *failingClient) ScheduleNewOrchestration(ctx context.Context, orchestrator interface{}, opts ...api.NewOrchestrationOptions) (api.InstanceID, error) {
	c.calls++
	return "", stderrors.New("backend unavailable")
}

func TestDispatchPurchase_EnqueueFailureIsAbsorbed(t *testing.T) {
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	client := &failingClient{}
	d := dispatch.NewTaskHubDispatcher(client, observability.NewNopLogger(), metrics, time.Second)

	d.DispatchPurchase(context.Background(), purchase(45))

	assert.Equal(t, 1, client.calls)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.NotificationsEnqueued.WithLabelValues("failure")))
}

func TestDispatchPurchase_AuditTiesOrderToOrchestration(t *testing.T) {
	repo, err := observability.NewLogRepository(filepath.Join(t.TempDir(), "audit.db"), 1)
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	notifier := notification.NewMockNotifier()
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	hub := startHub(t, notifier, metrics)
	logger := observability.NewNopLogger().WithSink(repo)
	ctx := observability.ContextWithTraceID(context.Background(), "trace-46")

	dispatch.NewTaskHubDispatcher(hub.Client, logger, metrics, time.Second).DispatchPurchase(ctx, purchase(46))
	require.NoError(t, repo.FlushBatch())

	trail, err := repo.QueryByOrderID(46)
	require.NoError(t, err)
	require.Len(t, trail, 1)
	assert.Regexp(t, `^notify-46-[0-9a-f-]{36}$`, trail[0].OrchestrationID)
	assert.Equal(t, workflows.NotificationDeliveryName, trail[0].Activity)
	assert.Equal(t, "trace-46", trail[0].TraceID)

	byInstance, err := repo.QueryByOrchestrationID(trail[0].OrchestrationID)
	require.NoError(t, err)
	require.Len(t, byInstance, 1)
	assert.Equal(t, int64(46), byInstance[0].OrderID)
	assert.Equal(t, observability.LogLevelInfo, byInstance[0].Level)

	// the recorded id is the one the hub runs
	assert.Eventually(t, func() bool { return len(notifier.GetAllMessages()) == 1 }, 10*time.Second, 20*time.Millisecond)
	meta, err := hub.Client.FetchOrchestrationMetadata(context.Background(), api.InstanceID(trail[0].OrchestrationID))
	require.NoError(t, err)
	assert.Equal(t, api.InstanceID(trail[0].OrchestrationID), meta.InstanceID)
}

func TestDispatchPurchase_AuditRecordsEnqueueFailure(t *testing.T) {
	repo, err := observability.NewLogRepository(filepath.Join(t.TempDir(), "audit.db"), 1)
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	metrics := observability.NewMetrics(prometheus.NewRegistry())
	logger := observability.NewNopLogger().WithSink(repo)
	dispatch.NewTaskHubDispatcher(&failingClient{}, logger, metrics, time.Second).DispatchPurchase(context.Background(), purchase(47))
	require.NoError(t, repo.FlushBatch())

	trail, err := repo.QueryByOrderID(47)
	require.NoError(t, err)
	require.Len(t, trail, 1)
	assert.Equal(t, observability.LogLevelError, trail[0].Level)
	assert.Equal(t, "EXTERNAL_SERVICE_FAILURE", trail[0].ErrorCode)
	assert.Contains(t, trail[0].ErrorMessage, "backend unavailable")
	assert.Regexp(t, `^notify-47-`, trail[0].OrchestrationID)
}

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/Youmanvi/ticketreserve/internal/activities"
	"github.com/Youmanvi/ticketreserve/internal/activities/notification"
	"github.com/Youmanvi/ticketreserve/internal/activities/registration"
	"github.com/Youmanvi/ticketreserve/internal/dispatch"
	"github.com/Youmanvi/ticketreserve/internal/infrastructure/backend"
	"github.com/Youmanvi/ticketreserve/internal/infrastructure/config"
	"github.com/Youmanvi/ticketreserve/internal/infrastructure/observability"
	"github.com/Youmanvi/ticketreserve/internal/middleware"
	"github.com/Youmanvi/ticketreserve/internal/ordering"
	"github.com/Youmanvi/ticketreserve/internal/reservation"
	"github.com/Youmanvi/ticketreserve/internal/store/memory"
	transporthttp "github.com/Youmanvi/ticketreserve/internal/transport/http"
	"github.com/Youmanvi/ticketreserve/internal/workflows"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

// TestHarness runs the whole service in process: memory store, guarded
// registrar, sqlite task hub, audit log and the HTTP API.
type TestHarness struct {
	Store     *memory.Store
	Registrar *registration.MockRegistrar
	Notifier  *notification.MockNotifier
	AuditLog  *observability.LogRepository
	Metrics   *observability.Metrics
	Server    *httptest.Server
}

// NewTestHarness wires the stack the way cmd/ticketd does and tears it down
// with t.Cleanup.
func NewTestHarness(t *testing.T) *TestHarness {
	t.Helper()
	dir := t.TempDir()

	cfg := config.DefaultConfig()
	cfg.Registration.RetryMaxAttempts = 2
	cfg.Registration.Timeout = time.Second
	cfg.Notification.RetryMaxAttempts = 2
	cfg.Notification.Timeout = time.Second
	cfg.TaskHub.SQLiteFile = filepath.Join(dir, "taskhub.db")

	auditLog, err := observability.NewLogRepository(filepath.Join(dir, "audit.db"), 1)
	require.NoError(t, err)
	t.Cleanup(func() { _ = auditLog.Close() })

	logger := observability.NewNopLogger().WithSink(auditLog)
	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics(reg)

	mockRegistrar := registration.NewMockRegistrar(0, 0)
	notifier := notification.NewMockNotifier()

	registry := activities.NewActivityRegistry(&activities.ActivityDeps{
		Logger:          logger,
		Metrics:         metrics,
		Notifier:        notifier,
		RetryPolicy:     middleware.RetryPolicy{MaxAttempts: 2, InitialBackoff: 10 * time.Millisecond, MaxBackoff: 50 * time.Millisecond, BackoffMultiplier: 2},
		TimeoutDuration: cfg.Notification.Timeout,
	})
	require.NoError(t, workflows.RegisterWorkflows(registry))

	hub, err := backend.StartTaskHub(context.Background(), &cfg.TaskHub, registry, logger)
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = hub.Shutdown(ctx)
	})

	st := memory.New(500 * time.Millisecond)
	service := ordering.NewService(ordering.Deps{
		Store:       st,
		Coordinator: reservation.NewCoordinator(logger, metrics),
		Registrar:   registration.NewGuardedRegistrar(mockRegistrar, logger, metrics, cfg.Registration),
		Dispatcher:  dispatch.NewTaskHubDispatcher(hub.Client, logger, metrics, cfg.Notification.Timeout),
		Logger:      logger,
		Metrics:     metrics,
	})

	server := httptest.NewServer(transporthttp.NewHandler(service, logger, 5*time.Second).Routes(reg))
	t.Cleanup(server.Close)

	return &TestHarness{
		Store:     st,
		Registrar: mockRegistrar,
		Notifier:  notifier,
		AuditLog:  auditLog,
		Metrics:   metrics,
		Server:    server,
	}
}

// OrderResponse mirrors the order JSON returned by the API.
type OrderResponse struct {
	OrderID     int64  `json:"orderId"`
	MemberID    int64  `json:"memberId"`
	Status      string `json:"status"`
	TotalAmount struct {
		Amount   string `json:"amount"`
		Currency string `json:"currency"`
	} `json:"totalAmount"`
	Lines []struct {
		LineID   int64 `json:"lineId"`
		TicketID int64 `json:"ticketId"`
	} `json:"lines"`
}

// ErrorResponse mirrors the API error body.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// PlaceOrder posts an order and decodes the body into out when it is not nil.
func (h *TestHarness) PlaceOrder(t *testing.T, memberID int64, ticketIDs []int64, out any) int {
	t.Helper()

	body, err := json.Marshal(map[string]any{"memberId": memberID, "ticketIds": ticketIDs})
	require.NoError(t, err)

	resp, err := http.Post(h.Server.URL+"/orders", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

// CancelOrder deletes an order and returns the status code.
func (h *TestHarness) CancelOrder(t *testing.T, orderID int64, out any) int {
	t.Helper()

	req, err := http.NewRequest(http.MethodDelete, fmt.Sprintf("%s/orders/%d", h.Server.URL, orderID), nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil && resp.StatusCode != http.StatusNoContent {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

// GetOrder fetches an order with its lines.
func (h *TestHarness) GetOrder(t *testing.T, orderID int64) OrderResponse {
	t.Helper()

	resp, err := http.Get(fmt.Sprintf("%s/orders/%d", h.Server.URL, orderID))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out OrderResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

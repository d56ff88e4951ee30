package integration

import (
	stderrors "errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/Youmanvi/ticketreserve/internal/domain"
	"github.com/Youmanvi/ticketreserve/internal/pkg/errors"
	"github.com/Youmanvi/ticketreserve/test/fixtures"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestPurchaseAndCancelOverHTTP(t *testing.T) {
	h := NewTestHarness(t)
	seed := fixtures.Seed(t, h.Store,
		fixtures.PoolSpec{Name: "Concert A", MaxStock: 10, Tickets: 2},
		fixtures.PoolSpec{Name: "Concert B", MaxStock: 5, Tickets: 1},
	)

	var placed OrderResponse
	require.Equal(t, http.StatusCreated, h.PlaceOrder(t, seed.MemberID, seed.TicketIDs, &placed))
	assert.Equal(t, "ACTIVE", placed.Status)
	assert.Equal(t, "150000", placed.TotalAmount.Amount)
	assert.Equal(t, "KRW", placed.TotalAmount.Currency)
	assert.Equal(t, map[int64]int{seed.PoolIDs[0]: 8, seed.PoolIDs[1]: 4}, fixtures.PoolStocks(t, h.Store, seed.PoolIDs...))

	// delivery runs on the task hub after the response
	require.Eventually(t, func() bool { return len(h.Notifier.GetAllMessages()) == 1 }, 10*time.Second, 20*time.Millisecond)
	assert.Equal(t, []string{"Concert A", "Concert B"}, h.Notifier.GetAllMessages()[0].PoolNames)

	fetched := h.GetOrder(t, placed.OrderID)
	assert.Equal(t, seed.MemberID, fetched.MemberID)
	require.Len(t, fetched.Lines, 3)
	for i, line := range fetched.Lines {
		assert.Equal(t, seed.TicketIDs[i], line.TicketID)
	}

	require.Equal(t, http.StatusNoContent, h.CancelOrder(t, placed.OrderID, nil))
	assert.Equal(t, map[int64]int{seed.PoolIDs[0]: 10, seed.PoolIDs[1]: 5}, fixtures.PoolStocks(t, h.Store, seed.PoolIDs...))
	for _, s := range fixtures.TicketStatuses(t, h.Store, seed.TicketIDs...) {
		assert.Equal(t, domain.TicketStatusAvailable, s)
	}
	assert.Equal(t, "CANCELED", h.GetOrder(t, placed.OrderID).Status)

	var conflict ErrorResponse
	assert.Equal(t, http.StatusConflict, h.CancelOrder(t, placed.OrderID, &conflict))
	assert.Equal(t, errors.CodeInvalidState, conflict.Code)

	// tickets are purchasable again
	require.Equal(t, http.StatusCreated, h.PlaceOrder(t, seed.MemberID, seed.TicketIDs, nil))
}

func TestAuditTrailFollowsOrder(t *testing.T) {
	h := NewTestHarness(t)
	seed := fixtures.Seed(t, h.Store, fixtures.PoolSpec{MaxStock: 2, Tickets: 1})

	var placed OrderResponse
	require.Equal(t, http.StatusCreated, h.PlaceOrder(t, seed.MemberID, seed.TicketIDs, &placed))
	require.Equal(t, http.StatusNoContent, h.CancelOrder(t, placed.OrderID, nil))
	require.NoError(t, h.AuditLog.FlushBatch())

	records, err := h.AuditLog.QueryByOrderID(placed.OrderID)
	require.NoError(t, err)

	activities := make([]string, 0, len(records))
	for _, r := range records {
		activities = append(activities, r.Activity)
	}
	assert.Contains(t, activities, "ordering:place")
	assert.Contains(t, activities, "ordering:cancel")
}

func TestRegistrationFailureRollsBackOverHTTP(t *testing.T) {
	h := NewTestHarness(t)
	seed := fixtures.Seed(t, h.Store, fixtures.PoolSpec{MaxStock: 3, Tickets: 1})
	h.Registrar.FailWith(status.Error(codes.Unavailable, "event system down"))

	var failed ErrorResponse
	assert.Equal(t, http.StatusBadGateway, h.PlaceOrder(t, seed.MemberID, seed.TicketIDs, &failed))
	assert.Equal(t, errors.CodeExternalServiceFailure, failed.Code)

	// transient gRPC failures are retried before giving up
	assert.Len(t, h.Registrar.Calls(), 2)
	assert.Equal(t, map[int64]int{seed.PoolIDs[0]: 3}, fixtures.PoolStocks(t, h.Store, seed.PoolIDs...))
	assert.Equal(t, domain.TicketStatusAvailable, fixtures.TicketStatuses(t, h.Store, seed.TicketIDs...)[seed.TicketIDs[0]])
	assert.Empty(t, h.Notifier.GetAllMessages())

	h.Registrar.FailWith(nil)
	assert.Equal(t, http.StatusCreated, h.PlaceOrder(t, seed.MemberID, seed.TicketIDs, nil))
}

func TestNotificationFailureDoesNotFailPurchase(t *testing.T) {
	h := NewTestHarness(t)
	seed := fixtures.Seed(t, h.Store, fixtures.PoolSpec{MaxStock: 3, Tickets: 1})
	h.Notifier.FailWith(stderrors.New("sms gateway down"))

	require.Equal(t, http.StatusCreated, h.PlaceOrder(t, seed.MemberID, seed.TicketIDs, nil))

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(h.Metrics.NotificationsSent.WithLabelValues("failure")) == 1
	}, 10*time.Second, 20*time.Millisecond)
	assert.Equal(t, map[int64]int{seed.PoolIDs[0]: 2}, fixtures.PoolStocks(t, h.Store, seed.PoolIDs...))
}

func TestConcurrentBuyersOverHTTP(t *testing.T) {
	h := NewTestHarness(t)
	seed := fixtures.Seed(t, h.Store, fixtures.PoolSpec{MaxStock: 3, Tickets: 8})

	const buyers = 8
	statuses := make([]int, buyers)
	var wg sync.WaitGroup
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			statuses[i] = h.PlaceOrder(t, seed.MemberID, []int64{seed.TicketIDs[i]}, nil)
		}(i)
	}
	wg.Wait()

	created := 0
	for _, code := range statuses {
		switch code {
		case http.StatusCreated:
			created++
		case http.StatusConflict, http.StatusServiceUnavailable:
		default:
			t.Errorf("unexpected status %d", code)
		}
	}
	assert.LessOrEqual(t, created, 3)
	assert.Equal(t, 3-created, fixtures.PoolStocks(t, h.Store, seed.PoolIDs...)[seed.PoolIDs[0]])
}

package domain

import (
	"testing"
	"time"

	"github.com/Youmanvi/ticketreserve/internal/pkg/errors"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/currency"
)

func krw(t *testing.T, amount int64) Money {
	t.Helper()
	m, err := NewMoney(decimal.NewFromInt(amount), "KRW")
	require.NoError(t, err)
	return m
}

func boundTicket(t *testing.T, id int64, pool *InventoryPool, price Money) *Ticket {
	t.Helper()
	ticket := NewTicket(id, pool.ID, "A-1", price)
	require.NoError(t, ticket.BindPool(pool))
	return ticket
}

func TestInventoryPool(t *testing.T) {
	tests := []struct {
		name     string
		max      int
		current  int
		op       func(p *InventoryPool) error
		wantCode string
		wantCur  int
	}{
		{"decrease from full", 2, 2, (*InventoryPool).Decrease, "", 1},
		{"decrease to zero", 1, 1, (*InventoryPool).Decrease, "", 0},
		{"decrease at zero", 1, 0, (*InventoryPool).Decrease, errors.CodeOutOfStock, 0},
		{"increase below max", 3, 1, (*InventoryPool).Increase, "", 2},
		{"increase at max", 3, 3, (*InventoryPool).Increase, errors.CodeInvalidState, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pool, err := RestoreInventoryPool(1, "concert", tt.max, tt.current)
			require.NoError(t, err)

			err = tt.op(pool)
			if tt.wantCode != "" {
				assert.True(t, errors.HasCode(err, tt.wantCode), "got %v", err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.wantCur, pool.CurrentStock())
			assert.Equal(t, tt.max-tt.wantCur, pool.SoldCount())
		})
	}
}

func TestRestoreInventoryPoolRejectsBrokenInvariant(t *testing.T) {
	_, err := RestoreInventoryPool(1, "x", 2, 3)
	assert.True(t, errors.HasCode(err, errors.CodeValidation))

	_, err = RestoreInventoryPool(1, "x", -1, 0)
	assert.True(t, errors.HasCode(err, errors.CodeValidation))

	_, err = RestoreInventoryPool(1, "x", 2, -1)
	assert.True(t, errors.HasCode(err, errors.CodeValidation))
}

func TestTicketTransitions(t *testing.T) {
	ticket := NewTicket(1, 1, "B-3", Money{})

	require.NoError(t, ticket.Sell())
	assert.Equal(t, TicketStatusSold, ticket.Status())

	err := ticket.Sell()
	assert.True(t, errors.HasCode(err, errors.CodeInvalidState))

	require.NoError(t, ticket.Revert())
	assert.Equal(t, TicketStatusAvailable, ticket.Status())

	err = ticket.Revert()
	assert.True(t, errors.HasCode(err, errors.CodeInvalidState))
}

func TestTicketBindPool(t *testing.T) {
	pool, err := NewInventoryPool(7, "festival", 10)
	require.NoError(t, err)

	ticket := NewTicket(1, 7, "", Money{})
	require.NoError(t, ticket.BindPool(pool))
	assert.Same(t, pool, ticket.Pool())

	other, err := NewInventoryPool(8, "other", 10)
	require.NoError(t, err)
	assert.True(t, errors.HasCode(ticket.BindPool(other), errors.CodeValidation))
	assert.True(t, errors.HasCode(ticket.BindPool(nil), errors.CodeValidation))
	assert.Same(t, pool, ticket.Pool())
}

func TestCreateOrder(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	member := Member{ID: 42}

	t.Run("captures prices and sells tickets", func(t *testing.T) {
		pool, err := NewInventoryPool(1, "concert", 5)
		require.NoError(t, err)
		t1 := boundTicket(t, 10, pool, krw(t, 50000))
		t2 := boundTicket(t, 11, pool, krw(t, 70000))

		order, err := CreateOrder(member, []*Ticket{t1, t2}, now)
		require.NoError(t, err)

		want := &Order{
			MemberID:    42,
			Status:      OrderStatusActive,
			TotalAmount: krw(t, 120000),
			OrderedAt:   now,
			Lines: []*OrderLine{
				{TicketID: 10, PurchasePrice: krw(t, 50000), CreatedAt: now},
				{TicketID: 11, PurchasePrice: krw(t, 70000), CreatedAt: now},
			},
		}
		assertOrder(t, want, order)
		assert.Equal(t, TicketStatusSold, t1.Status())
		assert.Equal(t, TicketStatusSold, t2.Status())
		assert.Equal(t, 5, pool.CurrentStock(), "order creation must not touch pool stock")
	})

	t.Run("total is unaffected by later price changes", func(t *testing.T) {
		pool, err := NewInventoryPool(1, "concert", 5)
		require.NoError(t, err)
		ticket := boundTicket(t, 10, pool, krw(t, 50000))

		order, err := CreateOrder(member, []*Ticket{ticket}, now)
		require.NoError(t, err)
		require.NoError(t, ticket.UpdatePrice(krw(t, 99000)))

		assert.True(t, order.TotalAmount.Equal(krw(t, 50000)))
		assert.True(t, order.Lines[0].PurchasePrice.Equal(krw(t, 50000)))
	})

	tests := []struct {
		name     string
		tickets  func(t *testing.T) []*Ticket
		wantCode string
	}{
		{
			name:     "empty",
			tickets:  func(*testing.T) []*Ticket { return nil },
			wantCode: errors.CodeValidation,
		},
		{
			name: "ticket already sold",
			tickets: func(t *testing.T) []*Ticket {
				a := NewTicket(1, 1, "", krw(t, 1))
				b := NewTicket(2, 1, "", krw(t, 1))
				require.NoError(t, b.Sell())
				return []*Ticket{a, b}
			},
			wantCode: errors.CodeInvalidState,
		},
		{
			name: "duplicate ticket",
			tickets: func(t *testing.T) []*Ticket {
				a := NewTicket(1, 1, "", krw(t, 1))
				return []*Ticket{a, a}
			},
			wantCode: errors.CodeValidation,
		},
		{
			name: "mixed currencies",
			tickets: func(t *testing.T) []*Ticket {
				usd, err := NewMoney(decimal.NewFromInt(5), "USD")
				require.NoError(t, err)
				return []*Ticket{NewTicket(1, 1, "", krw(t, 1)), NewTicket(2, 1, "", usd)}
			},
			wantCode: errors.CodeValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tickets := tt.tickets(t)
			_, err := CreateOrder(member, tickets, now)
			assert.True(t, errors.HasCode(err, tt.wantCode), "got %v", err)

			// failures happen before any ticket is sold
			if tt.wantCode == errors.CodeValidation && len(tickets) > 0 {
				assert.Equal(t, TicketStatusAvailable, tickets[0].Status())
			}
		})
	}
}

func TestOrderCancel(t *testing.T) {
	now := time.Now()

	newOrder := func(t *testing.T) (*Order, *InventoryPool, *InventoryPool) {
		p1, err := RestoreInventoryPool(1, "a", 5, 4)
		require.NoError(t, err)
		p2, err := RestoreInventoryPool(2, "b", 5, 4)
		require.NoError(t, err)
		order, err := CreateOrder(Member{ID: 1}, []*Ticket{
			boundTicket(t, 10, p1, krw(t, 10)),
			boundTicket(t, 20, p2, krw(t, 20)),
		}, now)
		require.NoError(t, err)
		return order, p1, p2
	}

	t.Run("restores tickets and pools", func(t *testing.T) {
		order, p1, p2 := newOrder(t)

		require.NoError(t, order.Cancel())

		assert.Equal(t, OrderStatusCanceled, order.Status)
		assert.Equal(t, 5, p1.CurrentStock())
		assert.Equal(t, 5, p2.CurrentStock())
		for _, line := range order.Lines {
			assert.Equal(t, TicketStatusAvailable, line.Ticket().Status())
		}
		assert.True(t, order.TotalAmount.Equal(krw(t, 30)))
	})

	t.Run("second cancel is rejected", func(t *testing.T) {
		order, p1, _ := newOrder(t)
		require.NoError(t, order.Cancel())

		err := order.Cancel()
		assert.True(t, errors.HasCode(err, errors.CodeInvalidState))
		assert.Equal(t, 5, p1.CurrentStock())
	})

	t.Run("line ticket not sold aborts without mutation", func(t *testing.T) {
		order, p1, p2 := newOrder(t)
		require.NoError(t, order.Lines[1].Ticket().Revert())

		err := order.Cancel()
		assert.True(t, errors.HasCode(err, errors.CodeInvalidState))
		assert.Equal(t, OrderStatusActive, order.Status)
		assert.Equal(t, TicketStatusSold, order.Lines[0].Ticket().Status())
		assert.Equal(t, 4, p1.CurrentStock())
		assert.Equal(t, 4, p2.CurrentStock())
	})

	t.Run("line without loaded ticket", func(t *testing.T) {
		order := &Order{ID: 3, Status: OrderStatusActive, Lines: []*OrderLine{NewOrderLine(1, 9, Money{}, now, nil)}}
		assert.True(t, errors.HasCode(order.Cancel(), errors.CodeInvalidState))
		assert.Equal(t, OrderStatusActive, order.Status)
	})
}

func TestToStatus(t *testing.T) {
	s, err := ToOrderStatus("CANCELED")
	require.NoError(t, err)
	assert.Equal(t, OrderStatusCanceled, s)

	_, err = ToOrderStatus("cancelled")
	assert.True(t, errors.HasCode(err, errors.CodeValidation), "got %v", err)

	ts, err := ToTicketStatus("SOLD")
	require.NoError(t, err)
	assert.Equal(t, TicketStatusSold, ts)

	_, err = ToTicketStatus("")
	assert.True(t, errors.HasCode(err, errors.CodeValidation), "got %v", err)
}

func TestMoney(t *testing.T) {
	_, err := NewMoney(decimal.NewFromInt(1), "not-a-code")
	assert.True(t, errors.HasCode(err, errors.CodeValidation))

	_, err = NewMoney(decimal.NewFromInt(-1), "EUR")
	assert.True(t, errors.HasCode(err, errors.CodeValidation))

	sum, err := krw(t, 1500).Add(krw(t, 500))
	require.NoError(t, err)
	assert.Equal(t, "2000.00 KRW", sum.String())
}

func assertOrder(t *testing.T, expected, actual *Order) {
	t.Helper()

	opts := cmp.Options{
		cmp.Comparer(func(x, y currency.Unit) bool { return x.String() == y.String() }),
		cmp.Comparer(func(x, y decimal.Decimal) bool { return x.Equal(y) }),
		cmpopts.IgnoreUnexported(OrderLine{}),
	}

	if diff := cmp.Diff(expected, actual, opts); diff != "" {
		t.Errorf("order mismatch (-expected +actual):\n%s", diff)
	}
}

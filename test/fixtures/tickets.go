package fixtures

import (
	"context"
	"fmt"
	"testing"

	"github.com/Youmanvi/ticketreserve/internal/domain"
	"github.com/Youmanvi/ticketreserve/internal/store"
	"github.com/brianvoe/gofakeit/v7"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/currency"
)

// PoolSpec describes one pool to seed. Price defaults to 50000 KRW.
type PoolSpec struct {
	Name     string
	MaxStock int
	Tickets  int
	Price    *domain.Money
}

// Seeded holds the ids created by Seed.
type Seeded struct {
	MemberID      int64
	PoolIDs       []int64
	TicketIDs     []int64
	TicketsByPool map[int64][]int64
}

// KRW builds a won amount.
func KRW(amount int64) domain.Money {
	return domain.Money{Amount: decimal.NewFromInt(amount), Currency: currency.KRW}
}

// RandomMember returns a member with fake contact details.
func RandomMember() domain.Member {
	return domain.Member{
		Name:        gofakeit.Name(),
		Email:       gofakeit.Email(),
		PhoneNumber: gofakeit.Phone(),
	}
}

// Seed creates one member and the given pools with their tickets.
func Seed(t testing.TB, catalog store.Catalog, pools ...PoolSpec) Seeded {
	t.Helper()
	ctx := context.Background()

	memberID, err := catalog.CreateMember(ctx, RandomMember())
	require.NoError(t, err)

	seeded := Seeded{MemberID: memberID, TicketsByPool: make(map[int64][]int64)}
	for _, spec := range pools {
		name := spec.Name
		if name == "" {
			name = gofakeit.MovieName()
		}
		poolID, err := catalog.CreatePool(ctx, name, spec.MaxStock)
		require.NoError(t, err)
		seeded.PoolIDs = append(seeded.PoolIDs, poolID)

		price := KRW(50000)
		if spec.Price != nil {
			price = *spec.Price
		}
		for i := 0; i < spec.Tickets; i++ {
			seat := fmt.Sprintf("%s-%d", gofakeit.RandomString([]string{"A", "B", "C", "R", "S"}), i+1)
			ticketID, err := catalog.CreateTicket(ctx, poolID, seat, price)
			require.NoError(t, err)
			seeded.TicketIDs = append(seeded.TicketIDs, ticketID)
			seeded.TicketsByPool[poolID] = append(seeded.TicketsByPool[poolID], ticketID)
		}
	}

	return seeded
}

// PoolStocks returns the current stock of each pool, keyed by id.
func PoolStocks(t testing.TB, catalog store.Catalog, poolIDs ...int64) map[int64]int {
	t.Helper()

	out := make(map[int64]int, len(poolIDs))
	for _, id := range poolIDs {
		p, err := catalog.GetPool(context.Background(), id)
		require.NoError(t, err)
		out[id] = p.CurrentStock()
	}
	return out
}

// TicketStatuses returns the status of each ticket, keyed by id.
func TicketStatuses(t testing.TB, catalog store.Catalog, ticketIDs ...int64) map[int64]domain.TicketStatus {
	t.Helper()

	out := make(map[int64]domain.TicketStatus, len(ticketIDs))
	for _, id := range ticketIDs {
		tk, err := catalog.GetTicket(context.Background(), id)
		require.NoError(t, err)
		out[id] = tk.Status()
	}
	return out
}

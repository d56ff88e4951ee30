// Package store defines the persistence collaborator used by the reservation
// core. Implementations live in the memory and postgres subpackages.
package store

import (
	"context"

	"github.com/Youmanvi/ticketreserve/internal/domain"
)

// Store runs units of work and exposes catalog operations outside of them.
type Store interface {
	Catalog

	// WithinTx runs fn in one atomic unit of work. Every ticket, pool and order
	// loaded through tx is written back when fn returns nil; any error discards
	// all changes and releases every pool lock taken in tx.
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// PoolLocker is the locking subset of Tx used by the reservation coordinator.
type PoolLocker interface {
	// LockPool takes the pool's exclusive lock, blocking until granted or the
	// lock timeout elapses. Locking a pool twice in one tx returns the same
	// instance.
	LockPool(ctx context.Context, poolID int64) (*domain.InventoryPool, error)

	// RefreshTickets re-reads the status of already loaded tickets.
	RefreshTickets(ctx context.Context, tickets []*domain.Ticket) error

	// RefreshOrder re-reads the status of an already loaded order.
	RefreshOrder(ctx context.Context, order *domain.Order) error

	// Flush makes pending pool stock changes visible to later reads in tx.
	Flush(ctx context.Context) error
}

// Tx is one unit of work.
type Tx interface {
	PoolLocker

	GetMember(ctx context.Context, id int64) (domain.Member, error)

	// FindTickets loads the existing tickets among ids, skipping missing ones.
	// Returned tickets are bound to unlocked pool snapshots.
	FindTickets(ctx context.Context, ids []int64) ([]*domain.Ticket, error)

	InsertOrder(ctx context.Context, order *domain.Order) error

	// GetOrder loads an order with its lines and their tickets.
	GetOrder(ctx context.Context, id int64) (*domain.Order, error)
}

// Catalog covers listing and read-side operations.
type Catalog interface {
	CreateMember(ctx context.Context, member domain.Member) (int64, error)
	CreatePool(ctx context.Context, name string, maxStock int) (int64, error)
	CreateTicket(ctx context.Context, poolID int64, seatInfo string, price domain.Money) (int64, error)
	UpdateTicketPrice(ctx context.Context, ticketID int64, price domain.Money) error

	GetPool(ctx context.Context, id int64) (*domain.InventoryPool, error)
	GetTicket(ctx context.Context, id int64) (*domain.Ticket, error)
	GetOrder(ctx context.Context, id int64) (*domain.Order, error)
}

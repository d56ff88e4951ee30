package domain

import (
	"github.com/Youmanvi/ticketreserve/internal/pkg/errors"
)

// Ticket is a single sellable seat drawn from an InventoryPool.
type Ticket struct {
	ID       int64
	PoolID   int64
	SeatInfo string
	Price    Money

	status TicketStatus
	pool   *InventoryPool
}

// NewTicket creates an available ticket.
func NewTicket(id, poolID int64, seatInfo string, price Money) *Ticket {
	return &Ticket{
		ID:       id,
		PoolID:   poolID,
		SeatInfo: seatInfo,
		Price:    price,
		status:   TicketStatusAvailable,
	}
}

// RestoreTicket rebuilds a ticket from persisted state.
func RestoreTicket(id, poolID int64, seatInfo string, price Money, status TicketStatus) (*Ticket, error) {
	if _, ok := validTicketStatuses[status]; !ok {
		return nil, errors.NewValidationError("ticket %d: invalid status %q", id, status)
	}
	t := NewTicket(id, poolID, seatInfo, price)
	t.status = status
	return t, nil
}

func (t *Ticket) Status() TicketStatus {
	return t.status
}

func (t *Ticket) IsAvailable() bool {
	return t.status == TicketStatusAvailable
}

// Pool returns the pool instance the ticket is currently bound to.
func (t *Ticket) Pool() *InventoryPool {
	return t.pool
}

// BindPool points the ticket at a specific pool instance, typically the one
// whose lock the caller holds.
func (t *Ticket) BindPool(pool *InventoryPool) error {
	if pool == nil {
		return errors.NewValidationError("ticket %d: nil pool", t.ID)
	}
	if pool.ID != t.PoolID {
		return errors.NewValidationError("ticket %d belongs to pool %d, not %d", t.ID, t.PoolID, pool.ID)
	}
	t.pool = pool
	return nil
}

// Refresh replaces the status with a value re-read under the pool lock.
func (t *Ticket) Refresh(status TicketStatus) error {
	if _, ok := validTicketStatuses[status]; !ok {
		return errors.NewValidationError("ticket %d: invalid status %q", t.ID, status)
	}
	t.status = status
	return nil
}

// Sell moves the ticket from AVAILABLE to SOLD.
func (t *Ticket) Sell() error {
	if t.status != TicketStatusAvailable {
		return errors.NewInvalidStateError("ticket %d is %s, not %s", t.ID, t.status, TicketStatusAvailable)
	}
	t.status = TicketStatusSold
	return nil
}

// Revert moves the ticket from SOLD back to AVAILABLE.
func (t *Ticket) Revert() error {
	if t.status != TicketStatusSold {
		return errors.NewInvalidStateError("ticket %d is %s, not %s", t.ID, t.status, TicketStatusSold)
	}
	t.status = TicketStatusAvailable
	return nil
}

// UpdatePrice changes the list price. Lines already sold keep their own copy.
func (t *Ticket) UpdatePrice(price Money) error {
	if price.Amount.IsNegative() {
		return errors.NewValidationError("ticket %d: negative price", t.ID)
	}
	t.Price = price
	return nil
}

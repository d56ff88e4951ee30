package domain

import (
	"time"

	"github.com/Youmanvi/ticketreserve/internal/pkg/errors"
)

// OrderLine links an order to one ticket and freezes its purchase price.
type OrderLine struct {
	ID            int64
	TicketID      int64
	PurchasePrice Money
	CreatedAt     time.Time

	ticket *Ticket
}

// NewOrderLine rebuilds a persisted line. ticket may be nil for read-only views.
func NewOrderLine(id, ticketID int64, purchasePrice Money, createdAt time.Time, ticket *Ticket) *OrderLine {
	return &OrderLine{
		ID:            id,
		TicketID:      ticketID,
		PurchasePrice: purchasePrice,
		CreatedAt:     createdAt,
		ticket:        ticket,
	}
}

// Ticket returns the line's ticket, or nil if it was not loaded.
func (l *OrderLine) Ticket() *Ticket {
	return l.ticket
}

// Order is the consistency boundary for one purchase.
type Order struct {
	ID          int64
	MemberID    int64
	Status      OrderStatus
	TotalAmount Money
	Lines       []*OrderLine
	OrderedAt   time.Time
}

// CreateOrder sells every ticket and freezes the prices into lines.
// Pool stock must already be reserved for every ticket.
func CreateOrder(member Member, tickets []*Ticket, now time.Time) (*Order, error) {
	if len(tickets) == 0 {
		return nil, errors.NewValidationError("order must contain at least one ticket")
	}

	seen := make(map[int64]struct{}, len(tickets))
	for _, t := range tickets {
		if t == nil {
			return nil, errors.NewValidationError("nil ticket in order")
		}
		if _, dup := seen[t.ID]; dup {
			return nil, errors.NewValidationError("ticket %d requested twice", t.ID)
		}
		seen[t.ID] = struct{}{}
		if !t.IsAvailable() {
			return nil, errors.NewInvalidStateError("ticket %d is %s", t.ID, t.Status())
		}
	}

	total := Zero(tickets[0].Price.Currency)
	for _, t := range tickets {
		var err error
		if total, err = total.Add(t.Price); err != nil {
			return nil, err
		}
	}

	order := &Order{
		MemberID:    member.ID,
		Status:      OrderStatusActive,
		TotalAmount: total,
		Lines:       make([]*OrderLine, 0, len(tickets)),
		OrderedAt:   now,
	}
	for _, t := range tickets {
		if err := t.Sell(); err != nil {
			return nil, err
		}
		order.Lines = append(order.Lines, NewOrderLine(0, t.ID, t.Price, now, t))
	}

	return order, nil
}

func (o *Order) IsCancellable() bool {
	return o.Status == OrderStatusActive
}

// Cancel reverts every line's ticket and returns its unit to the pool.
// The pools must be locked by the caller and bound to the tickets.
// Lines are checked up front so a failed cancel leaves the aggregate untouched.
func (o *Order) Cancel() error {
	if !o.IsCancellable() {
		return errors.NewInvalidStateError("order %d is %s, not %s", o.ID, o.Status, OrderStatusActive)
	}

	for _, line := range o.Lines {
		t := line.Ticket()
		if t == nil {
			return errors.NewInvalidStateError("order %d: line %d has no ticket loaded", o.ID, line.ID)
		}
		if t.Status() != TicketStatusSold {
			return errors.NewInvalidStateError("order %d: ticket %d is %s, not %s", o.ID, t.ID, t.Status(), TicketStatusSold)
		}
		if t.Pool() == nil {
			return errors.NewInvalidStateError("order %d: ticket %d has no pool bound", o.ID, t.ID)
		}
	}

	o.Status = OrderStatusCanceled
	for _, line := range o.Lines {
		t := line.Ticket()
		if err := t.Revert(); err != nil {
			return err
		}
		if err := t.Pool().Increase(); err != nil {
			return err
		}
	}

	return nil
}

// TicketIDs returns line ticket ids in insertion order.
func (o *Order) TicketIDs() []int64 {
	ids := make([]int64, 0, len(o.Lines))
	for _, line := range o.Lines {
		ids = append(ids, line.TicketID)
	}
	return ids
}

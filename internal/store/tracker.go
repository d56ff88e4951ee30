package store

import (
	"github.com/Youmanvi/ticketreserve/internal/domain"
	"github.com/Youmanvi/ticketreserve/internal/pkg/errors"
)

type trackedTicket struct {
	ticket *domain.Ticket
	loaded domain.TicketStatus
}

type trackedOrder struct {
	order  *domain.Order
	loaded domain.OrderStatus
}

// Tracker is the identity map of one unit of work. Implementations use it
// to hand out a single instance per row and to compute the write-back set.
type Tracker struct {
	pools     map[int64]*domain.InventoryPool
	lockOrder []int64
	tickets   map[int64]*trackedTicket
	orders    map[int64]*trackedOrder
}

func NewTracker() *Tracker {
	return &Tracker{
		pools:   make(map[int64]*domain.InventoryPool),
		tickets: make(map[int64]*trackedTicket),
		orders:  make(map[int64]*trackedOrder),
	}
}

// LockedPool returns the pool instance locked earlier in this unit of work.
func (t *Tracker) LockedPool(id int64) (*domain.InventoryPool, bool) {
	p, ok := t.pools[id]
	return p, ok
}

func (t *Tracker) TrackLockedPool(p *domain.InventoryPool) {
	if _, ok := t.pools[p.ID]; !ok {
		t.lockOrder = append(t.lockOrder, p.ID)
	}
	t.pools[p.ID] = p
}

// LockedPools returns locked pools in acquisition order.
func (t *Tracker) LockedPools() []*domain.InventoryPool {
	out := make([]*domain.InventoryPool, 0, len(t.lockOrder))
	for _, id := range t.lockOrder {
		out = append(out, t.pools[id])
	}
	return out
}

// LockedPoolIDs returns locked pool ids in acquisition order.
func (t *Tracker) LockedPoolIDs() []int64 {
	return append([]int64(nil), t.lockOrder...)
}

// TrackTicket registers a freshly loaded ticket and returns the canonical
// instance, which is the earlier one if the ticket was already loaded.
func (t *Tracker) TrackTicket(ticket *domain.Ticket) *domain.Ticket {
	if tt, ok := t.tickets[ticket.ID]; ok {
		return tt.ticket
	}
	t.tickets[ticket.ID] = &trackedTicket{ticket: ticket, loaded: ticket.Status()}
	return ticket
}

func (t *Tracker) Ticket(id int64) (*domain.Ticket, bool) {
	tt, ok := t.tickets[id]
	if !ok {
		return nil, false
	}
	return tt.ticket, true
}

// RefreshTicket applies a status re-read from storage and makes it the new
// write-back baseline.
func (t *Tracker) RefreshTicket(ticket *domain.Ticket, status domain.TicketStatus) error {
	if err := ticket.Refresh(status); err != nil {
		return err
	}
	if tt, ok := t.tickets[ticket.ID]; ok && tt.ticket == ticket {
		tt.loaded = status
		return nil
	}
	t.tickets[ticket.ID] = &trackedTicket{ticket: ticket, loaded: status}
	return nil
}

// TrackOrder registers a loaded order and returns the canonical instance.
func (t *Tracker) TrackOrder(order *domain.Order) *domain.Order {
	if to, ok := t.orders[order.ID]; ok {
		return to.order
	}
	t.orders[order.ID] = &trackedOrder{order: order, loaded: order.Status}
	return order
}

// RefreshOrder applies a status re-read from storage and makes it the new
// write-back baseline.
func (t *Tracker) RefreshOrder(order *domain.Order, status domain.OrderStatus) {
	order.Status = status
	if to, ok := t.orders[order.ID]; ok && to.order == order {
		to.loaded = status
		return
	}
	t.orders[order.ID] = &trackedOrder{order: order, loaded: status}
}

func (t *Tracker) Order(id int64) (*domain.Order, bool) {
	to, ok := t.orders[id]
	if !ok {
		return nil, false
	}
	return to.order, true
}

// Changes is the write-back set of a unit of work.
type Changes struct {
	Pools   []*domain.InventoryPool
	Tickets []*domain.Ticket
	Orders  []*domain.Order
}

// Changes collects locked pools and every ticket or order whose status moved.
// A ticket changed without its pool locked is rejected.
func (t *Tracker) Changes() (Changes, error) {
	changes := Changes{Pools: t.LockedPools()}

	for _, tt := range t.tickets {
		if tt.ticket.Status() == tt.loaded {
			continue
		}
		if _, locked := t.pools[tt.ticket.PoolID]; !locked {
			return Changes{}, errors.NewInvalidStateError("ticket %d changed without holding pool %d lock", tt.ticket.ID, tt.ticket.PoolID)
		}
		changes.Tickets = append(changes.Tickets, tt.ticket)
	}

	for _, to := range t.orders {
		if to.order.Status != to.loaded {
			changes.Orders = append(changes.Orders, to.order)
		}
	}

	return changes, nil
}

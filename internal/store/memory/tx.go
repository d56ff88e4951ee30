package memory

import (
	"context"
	"fmt"

	"github.com/Youmanvi/ticketreserve/internal/domain"
	"github.com/Youmanvi/ticketreserve/internal/pkg/errors"
	"github.com/Youmanvi/ticketreserve/internal/store"
	"github.com/samber/lo"
	"golang.org/x/sync/semaphore"
)

type tx struct {
	s        *Store
	tracker  *store.Tracker
	held     []*semaphore.Weighted
	inserted []*domain.Order
}

var _ store.Tx = (*tx)(nil)

func (t *tx) LockPool(ctx context.Context, poolID int64) (*domain.InventoryPool, error) {
	if p, ok := t.tracker.LockedPool(poolID); ok {
		return p, nil
	}

	sem, ok := t.s.lockFor(poolID)
	if !ok {
		return nil, errors.NewNotFoundError("pool %d not found", poolID)
	}

	lockCtx := ctx
	if t.s.lockTimeout > 0 {
		var cancel context.CancelFunc
		lockCtx, cancel = context.WithTimeout(ctx, t.s.lockTimeout)
		defer cancel()
	}
	if err := sem.Acquire(lockCtx, 1); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("lock pool %d: %w", poolID, ctx.Err())
		}
		return nil, errors.NewLockTimeoutError(fmt.Sprintf("pool %d lock not granted within %s", poolID, t.s.lockTimeout), err)
	}
	t.held = append(t.held, sem)

	// read after the lock so the previous holder's commit is visible
	t.s.mu.RLock()
	pool, err := t.s.loadPool(poolID)
	t.s.mu.RUnlock()
	if err != nil {
		return nil, err
	}

	t.tracker.TrackLockedPool(pool)
	return pool, nil
}

func (t *tx) RefreshTickets(_ context.Context, tickets []*domain.Ticket) error {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()

	for _, ticket := range tickets {
		rec, ok := t.s.tickets[ticket.ID]
		if !ok {
			return errors.NewNotFoundError("ticket %d not found", ticket.ID)
		}
		if err := t.tracker.RefreshTicket(ticket, rec.status); err != nil {
			return err
		}
	}
	return nil
}

func (t *tx) RefreshOrder(_ context.Context, order *domain.Order) error {
	if lo.Contains(t.inserted, order) {
		return nil
	}

	t.s.mu.RLock()
	rec, ok := t.s.orders[order.ID]
	t.s.mu.RUnlock()
	if !ok {
		return errors.NewNotFoundError("order %d not found", order.ID)
	}

	t.tracker.RefreshOrder(order, rec.status)
	return nil
}

// Flush checks the locked pools. Their state already lives on the locked
// instances, which every later read in this tx returns.
func (t *tx) Flush(_ context.Context) error {
	for _, p := range t.tracker.LockedPools() {
		if p.CurrentStock() < 0 || p.CurrentStock() > p.MaxStock() {
			return errors.NewInvalidStateError("pool %d stock %d outside [0, %d]", p.ID, p.CurrentStock(), p.MaxStock())
		}
	}
	return nil
}

func (t *tx) GetMember(_ context.Context, id int64) (domain.Member, error) {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()

	m, ok := t.s.members[id]
	if !ok {
		return domain.Member{}, errors.NewNotFoundError("member %d not found", id)
	}
	return m, nil
}

func (t *tx) FindTickets(_ context.Context, ids []int64) ([]*domain.Ticket, error) {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()

	snapshots := make(map[int64]*domain.InventoryPool)
	out := make([]*domain.Ticket, 0, len(ids))
	for _, id := range lo.Uniq(ids) {
		if _, ok := t.s.tickets[id]; !ok {
			continue
		}
		ticket, err := t.ticket(id, snapshots)
		if err != nil {
			return nil, err
		}
		out = append(out, ticket)
	}
	return out, nil
}

func (t *tx) InsertOrder(_ context.Context, order *domain.Order) error {
	if order.ID != 0 {
		return errors.NewInvalidStateError("order %d is already persisted", order.ID)
	}

	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	if _, ok := t.s.members[order.MemberID]; !ok {
		return errors.NewNotFoundError("member %d not found", order.MemberID)
	}

	t.s.nextOrderID++
	order.ID = t.s.nextOrderID
	for _, line := range order.Lines {
		t.s.nextLineID++
		line.ID = t.s.nextLineID
	}

	t.inserted = append(t.inserted, order)
	t.tracker.TrackOrder(order)
	return nil
}

func (t *tx) GetOrder(_ context.Context, id int64) (*domain.Order, error) {
	if o, ok := t.tracker.Order(id); ok {
		return o, nil
	}

	t.s.mu.RLock()
	defer t.s.mu.RUnlock()

	snapshots := make(map[int64]*domain.InventoryPool)
	order, err := t.s.loadOrder(id, func(ticketID int64) (*domain.Ticket, error) {
		return t.ticket(ticketID, snapshots)
	})
	if err != nil {
		return nil, err
	}
	return t.tracker.TrackOrder(order), nil
}

// ticket returns the tx's instance of a ticket, binding new ones to the
// locked pool if this tx holds it, or to a shared unlocked snapshot.
// Requires mu to be held.
func (t *tx) ticket(id int64, snapshots map[int64]*domain.InventoryPool) (*domain.Ticket, error) {
	if existing, ok := t.tracker.Ticket(id); ok {
		return existing, nil
	}

	ticket, err := t.s.loadTicket(id)
	if err != nil {
		return nil, err
	}

	pool, ok := t.tracker.LockedPool(ticket.PoolID)
	if !ok {
		if pool, ok = snapshots[ticket.PoolID]; !ok {
			if pool, err = t.s.loadPool(ticket.PoolID); err != nil {
				return nil, err
			}
			snapshots[ticket.PoolID] = pool
		}
	}
	if err := ticket.BindPool(pool); err != nil {
		return nil, err
	}
	return t.tracker.TrackTicket(ticket), nil
}

func (t *tx) commit() error {
	changes, err := t.tracker.Changes()
	if err != nil {
		return err
	}

	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	for _, p := range changes.Pools {
		rec := t.s.pools[p.ID]
		rec.current = p.CurrentStock()
		t.s.pools[p.ID] = rec
	}
	for _, ticket := range changes.Tickets {
		rec := t.s.tickets[ticket.ID]
		rec.status = ticket.Status()
		t.s.tickets[ticket.ID] = rec
	}
	for _, o := range changes.Orders {
		rec := t.s.orders[o.ID]
		rec.status = o.Status
		t.s.orders[o.ID] = rec
	}
	for _, o := range t.inserted {
		t.s.orders[o.ID] = toOrderRecord(o)
	}
	return nil
}

func (t *tx) release() {
	for _, sem := range t.held {
		sem.Release(1)
	}
	t.held = nil
}

package reservation

import (
	"context"
	"fmt"
	"time"

	"github.com/Youmanvi/ticketreserve/internal/domain"
	"github.com/Youmanvi/ticketreserve/internal/infrastructure/observability"
	"github.com/Youmanvi/ticketreserve/internal/pkg/errors"
	"github.com/Youmanvi/ticketreserve/internal/store"
	"github.com/samber/lo"
)

// Coordinator turns a set of tickets into locked pools with stock adjusted.
type Coordinator struct {
	logger  *observability.Logger
	metrics *observability.Metrics
}

func NewCoordinator(logger *observability.Logger, metrics *observability.Metrics) *Coordinator {
	return &Coordinator{logger: logger, metrics: metrics}
}

// ReserveForPurchase locks every pool the tickets draw from, in ascending id
// order, and decrements each pool once per ticket. Tickets are rebound to the
// locked pools and their status is re-read under the lock; a ticket that is
// no longer AVAILABLE fails with InvalidState before its pool is touched.
// Each pool is flushed before the next one is locked. Returns the pool ids in
// lock order.
func (c *Coordinator) ReserveForPurchase(ctx context.Context, tx store.PoolLocker, tickets []*domain.Ticket) ([]int64, error) {
	if err := checkTickets(tickets); err != nil {
		return nil, err
	}

	byPool := lo.GroupBy(tickets, func(t *domain.Ticket) int64 { return t.PoolID })
	order := ResolveLockOrder(lo.Keys(byPool))

	for _, poolID := range order {
		group := byPool[poolID]

		pool, err := c.lockAndBind(ctx, tx, poolID, group)
		if err != nil {
			return nil, err
		}

		for _, t := range group {
			if !t.IsAvailable() {
				return nil, errors.NewInvalidStateError("ticket %d is %s", t.ID, t.Status())
			}
		}
		for range group {
			if err := pool.Decrease(); err != nil {
				return nil, err
			}
		}

		if err := tx.Flush(ctx); err != nil {
			return nil, fmt.Errorf("flush pool %d: %w", poolID, err)
		}

		c.logger.Logger.Debug().
			Int64("pool_id", poolID).
			Int("units", len(group)).
			Int("current_stock", pool.CurrentStock()).
			Msg("pool reserved")
	}

	return order, nil
}

// ReserveForCancellation locks the pools of every line's ticket in ascending
// id order and rebinds the tickets to them. Once every lock is held the
// order's status is re-read, so a cancel that committed meanwhile is seen.
// Stock is left to the order.
func (c *Coordinator) ReserveForCancellation(ctx context.Context, tx store.PoolLocker, order *domain.Order) error {
	if order == nil {
		return errors.NewValidationError("nil order")
	}

	tickets := make([]*domain.Ticket, 0, len(order.Lines))
	for _, line := range order.Lines {
		if line.Ticket() == nil {
			return errors.NewInvalidStateError("line %d has no ticket loaded", line.ID)
		}
		tickets = append(tickets, line.Ticket())
	}
	if err := checkTickets(tickets); err != nil {
		return err
	}

	byPool := lo.GroupBy(tickets, func(t *domain.Ticket) int64 { return t.PoolID })
	for _, poolID := range ResolveLockOrder(lo.Keys(byPool)) {
		if _, err := c.lockAndBind(ctx, tx, poolID, byPool[poolID]); err != nil {
			return err
		}
	}

	if err := tx.RefreshOrder(ctx, order); err != nil {
		return fmt.Errorf("refresh order %d: %w", order.ID, err)
	}
	return nil
}

func (c *Coordinator) lockAndBind(ctx context.Context, tx store.PoolLocker, poolID int64, tickets []*domain.Ticket) (*domain.InventoryPool, error) {
	start := time.Now()
	pool, err := tx.LockPool(ctx, poolID)
	if err != nil {
		if errors.HasCode(err, errors.CodeLockTimeout) {
			c.logger.Logger.Warn().Int64("pool_id", poolID).Dur("waited", time.Since(start)).Msg("pool lock timed out")
		}
		return nil, err
	}
	c.metrics.RecordLockWait(time.Since(start))

	for _, t := range tickets {
		if err := t.BindPool(pool); err != nil {
			return nil, err
		}
	}
	if err := tx.RefreshTickets(ctx, tickets); err != nil {
		return nil, fmt.Errorf("refresh tickets of pool %d: %w", poolID, err)
	}

	return pool, nil
}

func checkTickets(tickets []*domain.Ticket) error {
	if len(tickets) == 0 {
		return errors.NewValidationError("no tickets to reserve")
	}
	for _, t := range tickets {
		if t == nil {
			return errors.NewValidationError("nil ticket")
		}
	}
	return nil
}

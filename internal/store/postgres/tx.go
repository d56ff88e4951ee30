package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/Youmanvi/ticketreserve/internal/domain"
	"github.com/Youmanvi/ticketreserve/internal/pkg/errors"
	"github.com/Youmanvi/ticketreserve/internal/store"
	"github.com/jackc/pgx/v5"
	"github.com/samber/lo"
)

type tx struct {
	q           pgx.Tx
	tracker     *store.Tracker
	lockTimeout time.Duration
	// stock last written per locked pool
	flushed map[int64]int
}

var _ store.Tx = (*tx)(nil)

func (t *tx) LockPool(ctx context.Context, poolID int64) (*domain.InventoryPool, error) {
	if p, ok := t.tracker.LockedPool(poolID); ok {
		return p, nil
	}

	pool, err := scanPool(t.q.QueryRow(ctx,
		`SELECT `+poolColumns+` FROM inventory_pools p WHERE p.id = $1 FOR UPDATE`, poolID))
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("lock pool %d: %w", poolID, ctx.Err())
		}
		err = mapError(err, fmt.Sprintf("pool %d", poolID))
		if errors.HasCode(err, errors.CodeLockTimeout) {
			return nil, errors.NewLockTimeoutError(fmt.Sprintf("pool %d lock not granted within %s", poolID, t.lockTimeout), err)
		}
		return nil, err
	}

	t.tracker.TrackLockedPool(pool)
	t.flushed[pool.ID] = pool.CurrentStock()
	return pool, nil
}

type ticketStatusRow struct {
	ID     int64
	Status string
}

func (t *tx) RefreshTickets(ctx context.Context, tickets []*domain.Ticket) error {
	if len(tickets) == 0 {
		return nil
	}

	ids := lo.Map(tickets, func(tk *domain.Ticket, _ int) int64 { return tk.ID })
	rows, err := t.q.Query(ctx, `SELECT id, status FROM tickets WHERE id = ANY($1)`, ids)
	if err != nil {
		return fmt.Errorf("q.Query ticket status: %w", err)
	}
	current, err := pgx.CollectRows(rows, pgx.RowToStructByPos[ticketStatusRow])
	if err != nil {
		return fmt.Errorf("pgx.CollectRows ticket status: %w", err)
	}
	byID := lo.SliceToMap(current, func(r ticketStatusRow) (int64, string) { return r.ID, r.Status })

	for _, ticket := range tickets {
		raw, ok := byID[ticket.ID]
		if !ok {
			return errors.NewNotFoundError("ticket %d not found", ticket.ID)
		}
		status, err := domain.ToTicketStatus(raw)
		if err != nil {
			return fmt.Errorf("domain.ToTicketStatus[%s]: %w", raw, err)
		}
		if err := t.tracker.RefreshTicket(ticket, status); err != nil {
			return err
		}
	}
	return nil
}

// RefreshOrder re-reads the order status and holds the order row until the
// tx ends.
func (t *tx) RefreshOrder(ctx context.Context, order *domain.Order) error {
	var raw string
	err := t.q.QueryRow(ctx, `SELECT status FROM orders WHERE id = $1 FOR UPDATE`, order.ID).Scan(&raw)
	if err != nil {
		return mapError(err, fmt.Sprintf("order %d", order.ID))
	}

	status, err := domain.ToOrderStatus(raw)
	if err != nil {
		return fmt.Errorf("domain.ToOrderStatus[%s]: %w", raw, err)
	}
	t.tracker.RefreshOrder(order, status)
	return nil
}

// Flush writes the stock of every locked pool that moved since the last
// write. The range constraint on the table rejects a broken invariant.
func (t *tx) Flush(ctx context.Context) error {
	for _, p := range t.tracker.LockedPools() {
		if t.flushed[p.ID] == p.CurrentStock() {
			continue
		}
		_, err := t.q.Exec(ctx, `UPDATE inventory_pools SET current_stock = $2 WHERE id = $1`, p.ID, p.CurrentStock())
		if err != nil {
			return mapError(err, fmt.Sprintf("pool %d", p.ID))
		}
		t.flushed[p.ID] = p.CurrentStock()
	}
	return nil
}

func (t *tx) GetMember(ctx context.Context, id int64) (domain.Member, error) {
	m := domain.Member{ID: id}
	err := t.q.QueryRow(ctx,
		`SELECT name, email, phone_number FROM members WHERE id = $1`, id,
	).Scan(&m.Name, &m.Email, &m.PhoneNumber)
	if err != nil {
		return domain.Member{}, mapError(err, fmt.Sprintf("member %d", id))
	}
	return m, nil
}

func (t *tx) FindTickets(ctx context.Context, ids []int64) ([]*domain.Ticket, error) {
	loaded, err := t.tickets(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]*domain.Ticket, 0, len(ids))
	for _, id := range lo.Uniq(ids) {
		if ticket, ok := loaded[id]; ok {
			out = append(out, ticket)
		}
	}
	return out, nil
}

func (t *tx) InsertOrder(ctx context.Context, order *domain.Order) error {
	if order.ID != 0 {
		return errors.NewInvalidStateError("order %d is already persisted", order.ID)
	}

	err := t.q.QueryRow(ctx,
		`INSERT INTO orders (member_id, status, total_amount, total_currency, ordered_at)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		order.MemberID, string(order.Status), order.TotalAmount.Amount, order.TotalAmount.Currency.String(), order.OrderedAt,
	).Scan(&order.ID)
	if err != nil {
		order.ID = 0
		return mapError(err, fmt.Sprintf("member %d", order.MemberID))
	}

	batch := &pgx.Batch{}
	for _, line := range order.Lines {
		batch.Queue(
			`INSERT INTO order_lines (order_id, ticket_id, purchase_amount, purchase_currency, created_at)
			 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
			order.ID, line.TicketID, line.PurchasePrice.Amount, line.PurchasePrice.Currency.String(), line.CreatedAt,
		).QueryRow(func(row pgx.Row) error {
			return row.Scan(&line.ID)
		})
	}
	if err := t.q.SendBatch(ctx, batch).Close(); err != nil {
		return mapError(err, fmt.Sprintf("order %d lines", order.ID))
	}

	t.tracker.TrackOrder(order)
	return nil
}

func (t *tx) GetOrder(ctx context.Context, id int64) (*domain.Order, error) {
	if o, ok := t.tracker.Order(id); ok {
		return o, nil
	}

	order, err := loadOrder(ctx, t.q, id, func(ticketIDs []int64) (map[int64]*domain.Ticket, error) {
		return t.tickets(ctx, ticketIDs)
	})
	if err != nil {
		return nil, err
	}
	return t.tracker.TrackOrder(order), nil
}

// tickets returns the tx's instances for ids. Tickets not seen before are
// loaded and bound to a pool locked by this tx, if any.
func (t *tx) tickets(ctx context.Context, ids []int64) (map[int64]*domain.Ticket, error) {
	out := make(map[int64]*domain.Ticket, len(ids))
	var missing []int64
	for _, id := range lo.Uniq(ids) {
		if existing, ok := t.tracker.Ticket(id); ok {
			out[id] = existing
			continue
		}
		missing = append(missing, id)
	}

	loaded, err := loadTickets(ctx, t.q, missing, t.tracker.LockedPool)
	if err != nil {
		return nil, err
	}
	for id, ticket := range loaded {
		out[id] = t.tracker.TrackTicket(ticket)
	}
	return out, nil
}

// writeBack persists tracked changes ahead of commit.
func (t *tx) writeBack(ctx context.Context) error {
	if err := t.Flush(ctx); err != nil {
		return err
	}

	changes, err := t.tracker.Changes()
	if err != nil {
		return err
	}

	batch := &pgx.Batch{}
	for _, ticket := range changes.Tickets {
		batch.Queue(`UPDATE tickets SET status = $2 WHERE id = $1`, ticket.ID, string(ticket.Status()))
	}
	for _, o := range changes.Orders {
		batch.Queue(`UPDATE orders SET status = $2 WHERE id = $1`, o.ID, string(o.Status))
	}
	if batch.Len() == 0 {
		return nil
	}
	if err := t.q.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("write back: %w", err)
	}
	return nil
}

package postgres

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/Youmanvi/ticketreserve/internal/domain"
	"github.com/Youmanvi/ticketreserve/internal/pkg/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

// dbtx is satisfied by both *pgxpool.Pool and pgx.Tx
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const (
	pgLockNotAvailable    = "55P03"
	pgDeadlockDetected    = "40P01"
	pgCheckViolation      = "23514"
	pgForeignKeyViolation = "23503"
)

// mapError translates driver errors into the domain taxonomy. what names the
// entity for NotFound.
func mapError(err error, what string) error {
	if err == nil {
		return nil
	}
	if stderrors.Is(err, pgx.ErrNoRows) {
		return errors.NewNotFoundError("%s not found", what)
	}

	var pgErr *pgconn.PgError
	if stderrors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgLockNotAvailable, pgDeadlockDetected:
			return errors.NewLockTimeoutError(fmt.Sprintf("%s lock not granted", what), err)
		case pgCheckViolation:
			return errors.NewInvalidStateError("%s violates %s", what, pgErr.ConstraintName)
		case pgForeignKeyViolation:
			return errors.NewNotFoundError("%s references a missing row (%s)", what, pgErr.ConstraintName)
		}
	}
	return err
}

const poolColumns = `p.id, p.name, p.max_stock, p.current_stock`

func scanPool(row pgx.Row) (*domain.InventoryPool, error) {
	var (
		id              int64
		name            string
		maxStock, stock int
	)
	if err := row.Scan(&id, &name, &maxStock, &stock); err != nil {
		return nil, err
	}
	return domain.RestoreInventoryPool(id, name, maxStock, stock)
}

const ticketColumns = `t.id, t.pool_id, t.seat_info, t.price_amount, t.price_currency, t.status`

type ticketRow struct {
	id       int64
	poolID   int64
	seat     string
	amount   decimal.Decimal
	currency string
	status   string
}

func (r *ticketRow) dest() []any {
	return []any{&r.id, &r.poolID, &r.seat, &r.amount, &r.currency, &r.status}
}

func (r *ticketRow) toDomain() (*domain.Ticket, error) {
	price, err := domain.NewMoney(r.amount, r.currency)
	if err != nil {
		return nil, fmt.Errorf("ticket %d price: %w", r.id, err)
	}
	status, err := domain.ToTicketStatus(r.status)
	if err != nil {
		return nil, fmt.Errorf("domain.ToTicketStatus[%s]: %w", r.status, err)
	}
	return domain.RestoreTicket(r.id, r.poolID, r.seat, price, status)
}

type lineRow struct {
	id        int64
	ticketID  int64
	amount    decimal.Decimal
	currency  string
	createdAt time.Time
}

func (r lineRow) price() (domain.Money, error) {
	return domain.NewMoney(r.amount, r.currency)
}

// loadOrder reads an order and its lines in line insertion order. ticketFn
// resolves each line's ticket.
func loadOrder(ctx context.Context, q dbtx, id int64, ticketFn func(ticketIDs []int64) (map[int64]*domain.Ticket, error)) (*domain.Order, error) {
	var (
		memberID      int64
		status        string
		totalAmount   decimal.Decimal
		totalCurrency string
		orderedAt     time.Time
	)
	err := q.QueryRow(ctx,
		`SELECT member_id, status, total_amount, total_currency, ordered_at FROM orders WHERE id = $1`, id,
	).Scan(&memberID, &status, &totalAmount, &totalCurrency, &orderedAt)
	if err != nil {
		return nil, mapError(err, fmt.Sprintf("order %d", id))
	}

	orderStatus, err := domain.ToOrderStatus(status)
	if err != nil {
		return nil, fmt.Errorf("domain.ToOrderStatus[%s]: %w", status, err)
	}
	total, err := domain.NewMoney(totalAmount, totalCurrency)
	if err != nil {
		return nil, fmt.Errorf("order %d total: %w", id, err)
	}

	rows, err := q.Query(ctx,
		`SELECT id, ticket_id, purchase_amount, purchase_currency, created_at
		   FROM order_lines WHERE order_id = $1 ORDER BY id`, id)
	if err != nil {
		return nil, fmt.Errorf("q.Query order_lines: %w", err)
	}
	lines, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (lineRow, error) {
		var l lineRow
		err := row.Scan(&l.id, &l.ticketID, &l.amount, &l.currency, &l.createdAt)
		return l, err
	})
	if err != nil {
		return nil, fmt.Errorf("pgx.CollectRows order_lines: %w", err)
	}

	ticketIDs := make([]int64, 0, len(lines))
	for _, l := range lines {
		ticketIDs = append(ticketIDs, l.ticketID)
	}
	tickets, err := ticketFn(ticketIDs)
	if err != nil {
		return nil, fmt.Errorf("order %d tickets: %w", id, err)
	}

	order := &domain.Order{
		ID:          id,
		MemberID:    memberID,
		Status:      orderStatus,
		TotalAmount: total,
		OrderedAt:   orderedAt.UTC(),
		Lines:       make([]*domain.OrderLine, 0, len(lines)),
	}
	for _, l := range lines {
		price, err := l.price()
		if err != nil {
			return nil, fmt.Errorf("order %d line %d price: %w", id, l.id, err)
		}
		t, ok := tickets[l.ticketID]
		if !ok {
			return nil, errors.NewNotFoundError("order %d line %d: ticket %d not found", id, l.id, l.ticketID)
		}
		order.Lines = append(order.Lines, domain.NewOrderLine(l.id, l.ticketID, price, l.createdAt.UTC(), t))
	}
	return order, nil
}

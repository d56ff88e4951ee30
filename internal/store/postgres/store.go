// Package postgres is the store backed by PostgreSQL. Pool rows are locked
// with SELECT ... FOR UPDATE under a per-transaction lock_timeout; tracked
// tickets, pools and orders are written back before commit.
package postgres

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/Youmanvi/ticketreserve/internal/domain"
	"github.com/Youmanvi/ticketreserve/internal/pkg/errors"
	"github.com/Youmanvi/ticketreserve/internal/store"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/lo"
)

type Store struct {
	pool        *pgxpool.Pool
	lockTimeout time.Duration
}

var _ store.Store = (*Store)(nil)

// New wraps pool. A non-positive lockTimeout waits until ctx ends.
func New(pool *pgxpool.Pool, lockTimeout time.Duration) *Store {
	return &Store{pool: pool, lockTimeout: lockTimeout}
}

// Migrate creates the schema if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("pool.Exec schema: %w", err)
	}
	return nil
}

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) (txErr error) {
	pgTx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("pool.Begin: %w", err)
	}

	defer func() {
		if txErr != nil {
			rollbackErr := pgTx.Rollback(ctx)
			if rollbackErr != nil && !stderrors.Is(rollbackErr, pgx.ErrTxClosed) {
				txErr = stderrors.Join(txErr, fmt.Errorf("tx.Rollback: %w", rollbackErr))
			}
		}
	}()

	if s.lockTimeout > 0 {
		_, err := pgTx.Exec(ctx, `SELECT set_config('lock_timeout', $1, true)`, fmt.Sprintf("%dms", s.lockTimeout.Milliseconds()))
		if err != nil {
			return fmt.Errorf("set lock_timeout: %w", err)
		}
	}

	t := &tx{
		q:           pgTx,
		tracker:     store.NewTracker(),
		lockTimeout: s.lockTimeout,
		flushed:     make(map[int64]int),
	}
	if err := fn(ctx, t); err != nil {
		return err
	}
	if err := t.writeBack(ctx); err != nil {
		return err
	}

	if err := pgTx.Commit(ctx); err != nil {
		return fmt.Errorf("tx.Commit: %w", err)
	}
	return nil
}

func (s *Store) CreateMember(ctx context.Context, member domain.Member) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO members (name, email, phone_number) VALUES ($1, $2, $3) RETURNING id`,
		member.Name, member.Email, member.PhoneNumber,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert member: %w", err)
	}
	return id, nil
}

func (s *Store) CreatePool(ctx context.Context, name string, maxStock int) (int64, error) {
	if _, err := domain.NewInventoryPool(0, name, maxStock); err != nil {
		return 0, err
	}

	var id int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO inventory_pools (name, max_stock, current_stock) VALUES ($1, $2, $2) RETURNING id`,
		name, maxStock,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert pool: %w", err)
	}
	return id, nil
}

func (s *Store) CreateTicket(ctx context.Context, poolID int64, seatInfo string, price domain.Money) (int64, error) {
	if price.Amount.IsNegative() {
		return 0, errors.NewValidationError("negative ticket price %s", price)
	}

	var id int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO tickets (pool_id, seat_info, price_amount, price_currency, status)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		poolID, seatInfo, price.Amount, price.Currency.String(), string(domain.TicketStatusAvailable),
	).Scan(&id)
	if err != nil {
		return 0, mapError(err, fmt.Sprintf("pool %d", poolID))
	}
	return id, nil
}

func (s *Store) UpdateTicketPrice(ctx context.Context, ticketID int64, price domain.Money) error {
	if price.Amount.IsNegative() {
		return errors.NewValidationError("ticket %d: negative price", ticketID)
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE tickets SET price_amount = $2, price_currency = $3 WHERE id = $1`,
		ticketID, price.Amount, price.Currency.String(),
	)
	if err != nil {
		return fmt.Errorf("update ticket price: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return errors.NewNotFoundError("ticket %d not found", ticketID)
	}
	return nil
}

func (s *Store) GetPool(ctx context.Context, id int64) (*domain.InventoryPool, error) {
	pool, err := scanPool(s.pool.QueryRow(ctx, `SELECT `+poolColumns+` FROM inventory_pools p WHERE p.id = $1`, id))
	if err != nil {
		return nil, mapError(err, fmt.Sprintf("pool %d", id))
	}
	return pool, nil
}

func (s *Store) GetTicket(ctx context.Context, id int64) (*domain.Ticket, error) {
	tickets, err := loadTickets(ctx, s.pool, []int64{id}, nil)
	if err != nil {
		return nil, err
	}
	t, ok := tickets[id]
	if !ok {
		return nil, errors.NewNotFoundError("ticket %d not found", id)
	}
	return t, nil
}

func (s *Store) GetOrder(ctx context.Context, id int64) (*domain.Order, error) {
	return loadOrder(ctx, s.pool, id, func(ticketIDs []int64) (map[int64]*domain.Ticket, error) {
		return loadTickets(ctx, s.pool, ticketIDs, nil)
	})
}

// loadTickets reads tickets with their pools. Each ticket is bound to
// bind(poolID) when that returns a pool, otherwise to a snapshot shared by
// tickets of the same pool. Missing ids are skipped.
func loadTickets(ctx context.Context, q dbtx, ids []int64, bind func(poolID int64) (*domain.InventoryPool, bool)) (map[int64]*domain.Ticket, error) {
	out := make(map[int64]*domain.Ticket, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	rows, err := q.Query(ctx,
		`SELECT `+ticketColumns+`, `+poolColumns+`
		   FROM tickets t JOIN inventory_pools p ON p.id = t.pool_id
		  WHERE t.id = ANY($1)`, lo.Uniq(ids))
	if err != nil {
		return nil, fmt.Errorf("q.Query tickets: %w", err)
	}
	defer rows.Close()

	snapshots := make(map[int64]*domain.InventoryPool)
	for rows.Next() {
		var (
			tr              ticketRow
			poolID          int64
			name            string
			maxStock, stock int
		)
		if err := rows.Scan(append(tr.dest(), &poolID, &name, &maxStock, &stock)...); err != nil {
			return nil, fmt.Errorf("rows.Scan ticket: %w", err)
		}

		ticket, err := tr.toDomain()
		if err != nil {
			return nil, err
		}

		var pool *domain.InventoryPool
		if bind != nil {
			pool, _ = bind(poolID)
		}
		if pool == nil {
			if pool = snapshots[poolID]; pool == nil {
				if pool, err = domain.RestoreInventoryPool(poolID, name, maxStock, stock); err != nil {
					return nil, err
				}
				snapshots[poolID] = pool
			}
		}
		if err := ticket.BindPool(pool); err != nil {
			return nil, err
		}
		out[ticket.ID] = ticket
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows.Err tickets: %w", err)
	}
	return out, nil
}

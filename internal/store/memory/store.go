// Package memory is a single-process store. Each pool has an exclusive lock
// in a semaphore table; a unit of work keeps its changes on the loaded
// instances and publishes them atomically on commit.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Youmanvi/ticketreserve/internal/domain"
	"github.com/Youmanvi/ticketreserve/internal/pkg/errors"
	"github.com/Youmanvi/ticketreserve/internal/store"
	"github.com/samber/lo"
	"golang.org/x/sync/semaphore"
)

type poolRecord struct {
	name    string
	max     int
	current int
}

type ticketRecord struct {
	poolID int64
	seat   string
	price  domain.Money
	status domain.TicketStatus
}

type lineRecord struct {
	id        int64
	ticketID  int64
	price     domain.Money
	createdAt time.Time
}

type orderRecord struct {
	memberID  int64
	status    domain.OrderStatus
	total     domain.Money
	orderedAt time.Time
	lines     []lineRecord
}

// Store keeps canonical state in maps guarded by mu. Pool locks are held
// across a whole unit of work and are independent of mu.
type Store struct {
	mu      sync.RWMutex
	members map[int64]domain.Member
	pools   map[int64]poolRecord
	tickets map[int64]ticketRecord
	orders  map[int64]orderRecord
	locks   map[int64]*semaphore.Weighted

	nextMemberID int64
	nextPoolID   int64
	nextTicketID int64
	nextOrderID  int64
	nextLineID   int64

	lockTimeout time.Duration
}

var _ store.Store = (*Store)(nil)

// New creates an empty store. A non-positive lockTimeout waits until ctx ends.
func New(lockTimeout time.Duration) *Store {
	return &Store{
		members:     make(map[int64]domain.Member),
		pools:       make(map[int64]poolRecord),
		tickets:     make(map[int64]ticketRecord),
		orders:      make(map[int64]orderRecord),
		locks:       make(map[int64]*semaphore.Weighted),
		lockTimeout: lockTimeout,
	}
}

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	t := &tx{s: s, tracker: store.NewTracker()}
	defer t.release()

	if err := fn(ctx, t); err != nil {
		return err
	}
	return t.commit()
}

func (s *Store) CreateMember(_ context.Context, member domain.Member) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextMemberID++
	member.ID = s.nextMemberID
	s.members[member.ID] = member
	return member.ID, nil
}

func (s *Store) CreatePool(_ context.Context, name string, maxStock int) (int64, error) {
	if _, err := domain.NewInventoryPool(0, name, maxStock); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextPoolID++
	s.pools[s.nextPoolID] = poolRecord{name: name, max: maxStock, current: maxStock}
	s.locks[s.nextPoolID] = semaphore.NewWeighted(1)
	return s.nextPoolID, nil
}

func (s *Store) CreateTicket(_ context.Context, poolID int64, seatInfo string, price domain.Money) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.pools[poolID]; !ok {
		return 0, errors.NewNotFoundError("pool %d not found", poolID)
	}

	s.nextTicketID++
	s.tickets[s.nextTicketID] = ticketRecord{
		poolID: poolID,
		seat:   seatInfo,
		price:  price,
		status: domain.TicketStatusAvailable,
	}
	return s.nextTicketID, nil
}

func (s *Store) UpdateTicketPrice(_ context.Context, ticketID int64, price domain.Money) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.tickets[ticketID]
	if !ok {
		return errors.NewNotFoundError("ticket %d not found", ticketID)
	}
	if price.Amount.IsNegative() {
		return errors.NewValidationError("ticket %d: negative price", ticketID)
	}
	rec.price = price
	s.tickets[ticketID] = rec
	return nil
}

func (s *Store) GetPool(_ context.Context, id int64) (*domain.InventoryPool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.loadPool(id)
}

func (s *Store) GetTicket(_ context.Context, id int64) (*domain.Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, err := s.loadTicket(id)
	if err != nil {
		return nil, err
	}
	pool, err := s.loadPool(t.PoolID)
	if err != nil {
		return nil, err
	}
	if err := t.BindPool(pool); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *Store) GetOrder(_ context.Context, id int64) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.loadOrder(id, func(ticketID int64) (*domain.Ticket, error) {
		t, err := s.loadTicket(ticketID)
		if err != nil {
			return nil, err
		}
		pool, err := s.loadPool(t.PoolID)
		if err != nil {
			return nil, err
		}
		return t, t.BindPool(pool)
	})
}

// lockFor returns the pool's lock, or false if the pool does not exist.
func (s *Store) lockFor(poolID int64) (*semaphore.Weighted, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.pools[poolID]; !ok {
		return nil, false
	}
	return s.locks[poolID], true
}

// loadPool requires mu to be held.
func (s *Store) loadPool(id int64) (*domain.InventoryPool, error) {
	rec, ok := s.pools[id]
	if !ok {
		return nil, errors.NewNotFoundError("pool %d not found", id)
	}
	return domain.RestoreInventoryPool(id, rec.name, rec.max, rec.current)
}

// loadTicket requires mu to be held. The ticket is returned unbound.
func (s *Store) loadTicket(id int64) (*domain.Ticket, error) {
	rec, ok := s.tickets[id]
	if !ok {
		return nil, errors.NewNotFoundError("ticket %d not found", id)
	}
	return domain.RestoreTicket(id, rec.poolID, rec.seat, rec.price, rec.status)
}

// loadOrder requires mu to be held.
func (s *Store) loadOrder(id int64, ticketFn func(int64) (*domain.Ticket, error)) (*domain.Order, error) {
	rec, ok := s.orders[id]
	if !ok {
		return nil, errors.NewNotFoundError("order %d not found", id)
	}

	order := &domain.Order{
		ID:          id,
		MemberID:    rec.memberID,
		Status:      rec.status,
		TotalAmount: rec.total,
		OrderedAt:   rec.orderedAt,
		Lines:       make([]*domain.OrderLine, 0, len(rec.lines)),
	}
	for _, l := range rec.lines {
		t, err := ticketFn(l.ticketID)
		if err != nil {
			return nil, fmt.Errorf("order %d line %d: %w", id, l.id, err)
		}
		order.Lines = append(order.Lines, domain.NewOrderLine(l.id, l.ticketID, l.price, l.createdAt, t))
	}
	return order, nil
}

func toOrderRecord(o *domain.Order) orderRecord {
	return orderRecord{
		memberID:  o.MemberID,
		status:    o.Status,
		total:     o.TotalAmount,
		orderedAt: o.OrderedAt,
		lines: lo.Map(o.Lines, func(l *domain.OrderLine, _ int) lineRecord {
			return lineRecord{id: l.ID, ticketID: l.TicketID, price: l.PurchasePrice, createdAt: l.CreatedAt}
		}),
	}
}

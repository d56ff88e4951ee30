package domain

import (
	"github.com/Youmanvi/ticketreserve/internal/pkg/errors"
)

// InventoryPool is a bounded stock counter shared by every ticket of one
// event. Stock only changes while the caller holds the pool's lock.
type InventoryPool struct {
	ID           int64
	Name         string
	maxStock     int
	currentStock int
}

// NewInventoryPool creates a full pool.
func NewInventoryPool(id int64, name string, maxStock int) (*InventoryPool, error) {
	return RestoreInventoryPool(id, name, maxStock, maxStock)
}

// RestoreInventoryPool rebuilds a pool from persisted state.
func RestoreInventoryPool(id int64, name string, maxStock, currentStock int) (*InventoryPool, error) {
	if maxStock < 0 {
		return nil, errors.NewValidationError("pool %d: max stock %d is negative", id, maxStock)
	}
	if currentStock < 0 || currentStock > maxStock {
		return nil, errors.NewValidationError("pool %d: current stock %d outside [0, %d]", id, currentStock, maxStock)
	}
	return &InventoryPool{
		ID:           id,
		Name:         name,
		maxStock:     maxStock,
		currentStock: currentStock,
	}, nil
}

func (p *InventoryPool) MaxStock() int {
	return p.maxStock
}

func (p *InventoryPool) CurrentStock() int {
	return p.currentStock
}

// SoldCount is the number of units currently drawn from the pool.
func (p *InventoryPool) SoldCount() int {
	return p.maxStock - p.currentStock
}

// Decrease draws one unit from the pool.
func (p *InventoryPool) Decrease() error {
	if p.currentStock <= 0 {
		return errors.NewOutOfStockError("pool %d (%s) has no remaining stock", p.ID, p.Name)
	}
	p.currentStock--
	return nil
}

// Increase returns one unit to the pool.
func (p *InventoryPool) Increase() error {
	if p.currentStock >= p.maxStock {
		return errors.NewInvalidStateError("pool %d (%s) is already at max stock %d", p.ID, p.Name, p.maxStock)
	}
	p.currentStock++
	return nil
}

// Clone returns an independent copy of the pool state.
func (p *InventoryPool) Clone() *InventoryPool {
	c := *p
	return &c
}

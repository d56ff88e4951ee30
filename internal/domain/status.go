package domain

import "github.com/Youmanvi/ticketreserve/internal/pkg/errors"

// OrderStatus represents the status of an order
type OrderStatus string

// remember to add new statuses to the validOrderStatuses map
const (
	OrderStatusActive   OrderStatus = "ACTIVE"
	OrderStatusCanceled OrderStatus = "CANCELED"
)

var validOrderStatuses = map[OrderStatus]struct{}{
	OrderStatusActive:   {},
	OrderStatusCanceled: {},
}

func ToOrderStatus(s string) (OrderStatus, error) {
	status := OrderStatus(s)
	if _, ok := validOrderStatuses[status]; ok {
		return status, nil
	}

	return "", errors.NewValidationError("invalid order status %q", s)
}

// TicketStatus represents the sale state of a single ticket
type TicketStatus string

// remember to add new statuses to the validTicketStatuses map
const (
	TicketStatusAvailable TicketStatus = "AVAILABLE"
	TicketStatusSold      TicketStatus = "SOLD"
)

var validTicketStatuses = map[TicketStatus]struct{}{
	TicketStatusAvailable: {},
	TicketStatusSold:      {},
}

func ToTicketStatus(s string) (TicketStatus, error) {
	status := TicketStatus(s)
	if _, ok := validTicketStatuses[status]; ok {
		return status, nil
	}

	return "", errors.NewValidationError("invalid ticket status %q", s)
}

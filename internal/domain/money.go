package domain

import (
	"github.com/Youmanvi/ticketreserve/internal/pkg/errors"
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

// Money is an amount in a single ISO 4217 currency.
type Money struct {
	Amount   decimal.Decimal
	Currency currency.Unit
}

// NewMoney parses an ISO currency code and pairs it with amount.
func NewMoney(amount decimal.Decimal, isoCode string) (Money, error) {
	unit, err := currency.ParseISO(isoCode)
	if err != nil {
		return Money{}, errors.NewValidationError("invalid currency %q", isoCode)
	}
	if amount.IsNegative() {
		return Money{}, errors.NewValidationError("negative amount %s", amount)
	}
	return Money{Amount: amount, Currency: unit}, nil
}

// Zero returns a zero amount in the given currency.
func Zero(unit currency.Unit) Money {
	return Money{Amount: decimal.Zero, Currency: unit}
}

// Add sums two amounts of the same currency.
func (m Money) Add(other Money) (Money, error) {
	if m.Currency != other.Currency {
		return Money{}, errors.NewValidationError("currency mismatch: %s and %s", m.Currency, other.Currency)
	}
	return Money{Amount: m.Amount.Add(other.Amount), Currency: m.Currency}, nil
}

// Equal compares amount numerically and currency by code.
func (m Money) Equal(other Money) bool {
	return m.Currency == other.Currency && m.Amount.Equal(other.Amount)
}

func (m Money) String() string {
	return m.Amount.StringFixed(2) + " " + m.Currency.String()
}

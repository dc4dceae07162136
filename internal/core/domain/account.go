package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Account represents a monetary account. The balance is a fixed-point decimal
// with two fractional digits and is never negative. Version carries the
// optimistic-concurrency token: every accepted balance mutation bumps it, and
// a writer presenting a stale version is rejected.
type Account struct {
	ID         uuid.UUID       `json:"id"`
	Identifier string          `json:"identifier"` // display identifier, NNNNN-N, unique
	Balance    decimal.Decimal `json:"balance"`
	Version    int64           `json:"-"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// HasFunds reports whether the account can cover a debit of amount.
func (a *Account) HasFunds(amount decimal.Decimal) bool {
	return a.Balance.GreaterThanOrEqual(amount)
}

package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OperationKind represents the kind of balance movement.
type OperationKind string

const (
	OperationDeposit     OperationKind = "DEPOSIT"
	OperationWithdrawal  OperationKind = "WITHDRAWAL"
	OperationTransferOut OperationKind = "TRANSFER_OUT"
	OperationTransferIn  OperationKind = "TRANSFER_IN"
)

// IsCredit returns true for kinds that increase the balance.
func (k OperationKind) IsCredit() bool {
	return k == OperationDeposit || k == OperationTransferIn
}

// Operation is an immutable ledger entry documenting one accepted balance
// mutation. Entries are appended only after the mutation they record has been
// accepted, and are never updated or deleted.
type Operation struct {
	ID        uuid.UUID       `json:"id"`
	AccountID uuid.UUID       `json:"account_id"`
	Kind      OperationKind   `json:"kind"`
	Amount    decimal.Decimal `json:"amount"` // strictly positive
	CreatedAt time.Time       `json:"created_at"`
}

// SignedAmount returns the amount with the replay sign applied: credits
// positive, debits negative. Summing signed amounts from zero reproduces the
// account balance.
func (o *Operation) SignedAmount() decimal.Decimal {
	if o.Kind.IsCredit() {
		return o.Amount
	}
	return o.Amount.Neg()
}

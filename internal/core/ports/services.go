package ports

import (
	"context"

	"github.com/joaojf/banking-system/internal/core/domain"

	"github.com/shopspring/decimal"
)

//go:generate mockgen -source=services.go -destination=mocks/services_mock.go -package=mocks

// IdentifierGenerator produces candidate display identifiers (NNNNN-N).
// It does not guarantee global uniqueness: the account store's creation path
// does, by rejecting duplicates, and callers retry on collision.
type IdentifierGenerator interface {
	Generate() string
}

// LedgerService orchestrates deposits, withdrawals and transfers as atomic
// units against the account store and the operation log.
type LedgerService interface {
	// BalanceOf returns the current balance of the account with the given
	// display identifier.
	BalanceOf(ctx context.Context, identifier string) (decimal.Decimal, error)

	// Deposit credits amount and returns the post-mutation account.
	Deposit(ctx context.Context, identifier string, amount decimal.Decimal) (*domain.Account, error)

	// Withdraw debits amount and returns the post-mutation account.
	Withdraw(ctx context.Context, identifier string, amount decimal.Decimal) (*domain.Account, error)

	// Transfer moves amount from origin to destination. Either both balance
	// mutations and both log entries happen, or none are observable.
	Transfer(ctx context.Context, origin, destination string, amount decimal.Decimal) error

	// Statement returns the account's operations ordered by timestamp.
	Statement(ctx context.Context, identifier string) ([]domain.Operation, error)

	// AuditBalance recomputes the balance by replaying the operation log and
	// compares it against the stored balance.
	AuditBalance(ctx context.Context, identifier string) (*BalanceAudit, error)
}

// BalanceAudit is the outcome of a replay check.
type BalanceAudit struct {
	Identifier string          `json:"identifier"`
	Stored     decimal.Decimal `json:"stored"`
	Replayed   decimal.Decimal `json:"replayed"`
	Consistent bool            `json:"consistent"`
}

// AccountService handles account lifecycle around the store.
type AccountService interface {
	// Create allocates a new account with balance zero and a freshly
	// generated unique identifier.
	Create(ctx context.Context) (*domain.Account, error)
	Get(ctx context.Context, identifier string) (*domain.Account, error)
	List(ctx context.Context) ([]domain.Account, error)
	// Delete removes an account; only zero-balance accounts may be deleted.
	Delete(ctx context.Context, identifier string) error
}

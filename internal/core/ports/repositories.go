package ports

import (
	"context"

	"github.com/joaojf/banking-system/internal/core/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

//go:generate mockgen -source=repositories.go -destination=mocks/repositories_mock.go -package=mocks

// AccountRepository is the account store: durable keyed storage of account
// records. Lookup methods return (nil, nil) when the account is absent.
type AccountRepository interface {
	// Create persists a new account. Returns apperror.ErrDuplicateIdentifier
	// when the display identifier collides with an existing account.
	Create(ctx context.Context, account *domain.Account) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error)
	GetByIdentifier(ctx context.Context, identifier string) (*domain.Account, error)
	List(ctx context.Context) ([]domain.Account, error)

	// ApplyDelta atomically adds delta to the balance, bumps the version and
	// updated_at, and returns the post-mutation account. It is the single
	// serialization point for balance writes. Failure modes:
	// apperror.ErrConflict when the account changed since expectedVersion was
	// read, apperror.ErrInsufficientFunds when the result would be negative,
	// apperror.ErrAccountNotFound when the account is gone.
	ApplyDelta(ctx context.Context, id uuid.UUID, delta decimal.Decimal, expectedVersion int64) (*domain.Account, error)

	// Delete removes an account. Returns apperror.ErrNonZeroBalance when the
	// balance is not zero and apperror.ErrAccountNotFound when absent.
	Delete(ctx context.Context, id uuid.UUID) error
}

// OperationRepository is the append-only operation log. Entries are immutable
// once appended.
type OperationRepository interface {
	// Append records a completed mutation. It is a pure recording step and is
	// invoked only after the balance change it documents has been accepted.
	Append(ctx context.Context, op *domain.Operation) error

	// AppendPair records both legs of a transfer atomically: either both
	// entries land in the log or neither does.
	AppendPair(ctx context.Context, out, in *domain.Operation) error

	// ListByAccount returns the account's full history ordered by timestamp
	// ascending, ties broken by insertion order. A fresh call always returns
	// the complete history.
	ListByAccount(ctx context.Context, accountID uuid.UUID) ([]domain.Operation, error)

	// SumByAccount returns the signed sum of the account's entries: the
	// replayed balance.
	SumByAccount(ctx context.Context, accountID uuid.UUID) (decimal.Decimal, error)
}

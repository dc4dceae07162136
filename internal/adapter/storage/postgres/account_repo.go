package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/joaojf/banking-system/internal/core/domain"
	"github.com/joaojf/banking-system/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

// pgUniqueViolation is the SQLSTATE for unique-index violations.
const pgUniqueViolation = "23505"

// AccountRepo implements ports.AccountRepository on PostgreSQL.
type AccountRepo struct {
	pool Pool
}

// NewAccountRepo creates a new AccountRepo.
func NewAccountRepo(pool Pool) *AccountRepo {
	return &AccountRepo{pool: pool}
}

// Create inserts a new account. The unique index on identifier is the
// authority on identifier uniqueness; a collision surfaces as
// apperror.ErrDuplicateIdentifier so the caller can regenerate and retry.
func (r *AccountRepo) Create(ctx context.Context, a *domain.Account) error {
	query := `INSERT INTO accounts (id, identifier, balance, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.pool.Exec(ctx, query,
		a.ID, a.Identifier, a.Balance, a.Version, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return apperror.ErrDuplicateIdentifier(a.Identifier)
		}
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

// GetByID fetches an account by its UUID.
func (r *AccountRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	query := `SELECT id, identifier, balance, version, created_at, updated_at
		FROM accounts WHERE id = $1`

	a := &domain.Account{}
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&a.ID, &a.Identifier, &a.Balance, &a.Version, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get account by id: %w", err)
	}
	return a, nil
}

// GetByIdentifier fetches an account by its display identifier.
func (r *AccountRepo) GetByIdentifier(ctx context.Context, identifier string) (*domain.Account, error) {
	query := `SELECT id, identifier, balance, version, created_at, updated_at
		FROM accounts WHERE identifier = $1`

	a := &domain.Account{}
	err := r.pool.QueryRow(ctx, query, identifier).Scan(
		&a.ID, &a.Identifier, &a.Balance, &a.Version, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get account by identifier: %w", err)
	}
	return a, nil
}

// List returns all accounts ordered by creation time.
func (r *AccountRepo) List(ctx context.Context) ([]domain.Account, error) {
	query := `SELECT id, identifier, balance, version, created_at, updated_at
		FROM accounts ORDER BY created_at ASC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []domain.Account
	for rows.Next() {
		var a domain.Account
		if err := rows.Scan(&a.ID, &a.Identifier, &a.Balance, &a.Version, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		accounts = append(accounts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate accounts: %w", err)
	}
	return accounts, nil
}

// ApplyDelta atomically adds delta to the balance if and only if the account
// still carries expectedVersion and the resulting balance is non-negative.
// The single conditional UPDATE is the serialization point for all balance
// writes; a zero-row result is disambiguated by a follow-up read.
func (r *AccountRepo) ApplyDelta(ctx context.Context, id uuid.UUID, delta decimal.Decimal, expectedVersion int64) (*domain.Account, error) {
	query := `UPDATE accounts
		SET balance = balance + $1, version = version + 1, updated_at = NOW()
		WHERE id = $2 AND version = $3 AND balance + $1 >= 0
		RETURNING id, identifier, balance, version, created_at, updated_at`

	a := &domain.Account{}
	err := r.pool.QueryRow(ctx, query, delta, id, expectedVersion).Scan(
		&a.ID, &a.Identifier, &a.Balance, &a.Version, &a.CreatedAt, &a.UpdatedAt,
	)
	if err == nil {
		return a, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("apply balance delta: %w", err)
	}

	// The guard refused the write. Re-read to tell why.
	current, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	switch {
	case current == nil:
		return nil, apperror.ErrAccountNotFound()
	case current.Version != expectedVersion:
		return nil, apperror.ErrConflict()
	default:
		return nil, apperror.ErrInsufficientFunds(current.Balance)
	}
}

// Delete removes an account, refusing when the balance is non-zero.
func (r *AccountRepo) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM accounts WHERE id = $1 AND balance = 0`

	tag, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	current, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if current == nil {
		return apperror.ErrAccountNotFound()
	}
	return apperror.ErrNonZeroBalance()
}

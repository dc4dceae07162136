package postgres

import (
	"context"
	"fmt"

	"github.com/joaojf/banking-system/internal/core/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OperationRepo implements ports.OperationRepository on PostgreSQL. The
// operations table is append-only: no UPDATE or DELETE statement exists here.
type OperationRepo struct {
	pool Pool
}

// NewOperationRepo creates a new OperationRepo.
func NewOperationRepo(pool Pool) *OperationRepo {
	return &OperationRepo{pool: pool}
}

// Append records a completed mutation.
func (r *OperationRepo) Append(ctx context.Context, op *domain.Operation) error {
	query := `INSERT INTO operations (id, account_id, kind, amount, created_at)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := r.pool.Exec(ctx, query,
		op.ID, op.AccountID, op.Kind, op.Amount, op.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("append operation: %w", err)
	}
	return nil
}

// AppendPair records both legs of a transfer inside one transaction.
func (r *OperationRepo) AppendPair(ctx context.Context, out, in *domain.Operation) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin append pair: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `INSERT INTO operations (id, account_id, kind, amount, created_at)
		VALUES ($1, $2, $3, $4, $5)`

	for _, op := range []*domain.Operation{out, in} {
		if _, err := tx.Exec(ctx, query,
			op.ID, op.AccountID, op.Kind, op.Amount, op.CreatedAt,
		); err != nil {
			return fmt.Errorf("append pair: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit append pair: %w", err)
	}
	return nil
}

// ListByAccount returns the account's history ordered by timestamp ascending.
// The seq column (BIGSERIAL) breaks timestamp ties in insertion order.
func (r *OperationRepo) ListByAccount(ctx context.Context, accountID uuid.UUID) ([]domain.Operation, error) {
	query := `SELECT id, account_id, kind, amount, created_at
		FROM operations WHERE account_id = $1
		ORDER BY created_at ASC, seq ASC`

	rows, err := r.pool.Query(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("list operations: %w", err)
	}
	defer rows.Close()

	var ops []domain.Operation
	for rows.Next() {
		var op domain.Operation
		if err := rows.Scan(&op.ID, &op.AccountID, &op.Kind, &op.Amount, &op.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan operation: %w", err)
		}
		ops = append(ops, op)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate operations: %w", err)
	}
	return ops, nil
}

// SumByAccount returns the signed sum of the account's entries. Credits count
// positive, debits negative, so the result is the replayed balance.
func (r *OperationRepo) SumByAccount(ctx context.Context, accountID uuid.UUID) (decimal.Decimal, error) {
	query := `SELECT COALESCE(SUM(
			CASE WHEN kind IN ('DEPOSIT', 'TRANSFER_IN') THEN amount ELSE -amount END
		), 0)
		FROM operations WHERE account_id = $1`

	var sum decimal.Decimal
	if err := r.pool.QueryRow(ctx, query, accountID).Scan(&sum); err != nil {
		return decimal.Zero, fmt.Errorf("sum operations: %w", err)
	}
	return sum, nil
}

package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/joaojf/banking-system/internal/core/domain"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestOperation(accountID uuid.UUID, kind domain.OperationKind) *domain.Operation {
	return &domain.Operation{
		ID:        uuid.New(),
		AccountID: accountID,
		Kind:      kind,
		Amount:    decimal.New(4000, -2), // 40.00
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}
}

func operationColumns() []string {
	return []string{"id", "account_id", "kind", "amount", "created_at"}
}

func TestOperationRepo_Append(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewOperationRepo(mock)
	op := newTestOperation(uuid.New(), domain.OperationDeposit)

	mock.ExpectExec("INSERT INTO operations").
		WithArgs(op.ID, op.AccountID, op.Kind, op.Amount, op.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err = repo.Append(context.Background(), op)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOperationRepo_AppendPair(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewOperationRepo(mock)
	out := newTestOperation(uuid.New(), domain.OperationTransferOut)
	in := newTestOperation(uuid.New(), domain.OperationTransferIn)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO operations").
		WithArgs(out.ID, out.AccountID, out.Kind, out.Amount, out.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO operations").
		WithArgs(in.ID, in.AccountID, in.Kind, in.Amount, in.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	err = repo.AppendPair(context.Background(), out, in)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOperationRepo_AppendPair_SecondInsertFails(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewOperationRepo(mock)
	out := newTestOperation(uuid.New(), domain.OperationTransferOut)
	in := newTestOperation(uuid.New(), domain.OperationTransferIn)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO operations").
		WithArgs(out.ID, out.AccountID, out.Kind, out.Amount, out.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO operations").
		WithArgs(in.ID, in.AccountID, in.Kind, in.Amount, in.CreatedAt).
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	err = repo.AppendPair(context.Background(), out, in)
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOperationRepo_ListByAccount(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewOperationRepo(mock)
	accountID := uuid.New()

	first := newTestOperation(accountID, domain.OperationDeposit)
	second := newTestOperation(accountID, domain.OperationTransferOut)
	second.CreatedAt = first.CreatedAt.Add(time.Second)

	rows := pgxmock.NewRows(operationColumns()).
		AddRow(first.ID, first.AccountID, first.Kind, first.Amount, first.CreatedAt).
		AddRow(second.ID, second.AccountID, second.Kind, second.Amount, second.CreatedAt)

	mock.ExpectQuery("SELECT (.+) FROM operations WHERE account_id").
		WithArgs(accountID).
		WillReturnRows(rows)

	ops, err := repo.ListByAccount(context.Background(), accountID)
	require.NoError(t, err)
	require.Len(t, ops, 2)
	assert.Equal(t, domain.OperationDeposit, ops[0].Kind)
	assert.Equal(t, domain.OperationTransferOut, ops[1].Kind)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOperationRepo_ListByAccount_Empty(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewOperationRepo(mock)
	accountID := uuid.New()

	mock.ExpectQuery("SELECT (.+) FROM operations WHERE account_id").
		WithArgs(accountID).
		WillReturnRows(pgxmock.NewRows(operationColumns()))

	ops, err := repo.ListByAccount(context.Background(), accountID)
	require.NoError(t, err)
	assert.Empty(t, ops)
}

func TestOperationRepo_SumByAccount(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewOperationRepo(mock)
	accountID := uuid.New()

	mock.ExpectQuery("SELECT COALESCE").
		WithArgs(accountID).
		WillReturnRows(pgxmock.NewRows([]string{"coalesce"}).AddRow(decimal.New(6000, -2)))

	sum, err := repo.SumByAccount(context.Background(), accountID)
	require.NoError(t, err)
	assert.True(t, decimal.New(6000, -2).Equal(sum))
}

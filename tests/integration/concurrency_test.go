package integration

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/joaojf/banking-system/internal/core/ports"
	"github.com/joaojf/banking-system/internal/service"
	"github.com/joaojf/banking-system/pkg/apperror"
	"github.com/joaojf/banking-system/pkg/logger"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ledgerStack struct {
	accountRepo   *inMemoryAccountRepo
	operationRepo *inMemoryOperationRepo
	accountSvc    ports.AccountService
	ledgerSvc     ports.LedgerService
}

func newLedgerStack(t *testing.T) *ledgerStack {
	t.Helper()
	accountRepo := newInMemoryAccountRepo()
	operationRepo := newInMemoryOperationRepo()
	log := logger.NewWithWriter("error", io.Discard)
	locks := service.NewLockManager()
	return &ledgerStack{
		accountRepo:   accountRepo,
		operationRepo: operationRepo,
		accountSvc:    service.NewAccountService(accountRepo, service.NewRandomIdentifierGenerator(time.Now().UnixNano()), locks, 10, 10*time.Second, log),
		ledgerSvc: service.NewLedgerService(
			accountRepo, operationRepo, locks,
			5, 10*time.Second, log,
		),
	}
}

func (s *ledgerStack) newFundedAccount(t *testing.T, amount string) string {
	t.Helper()
	account, err := s.accountSvc.Create(context.Background())
	require.NoError(t, err)
	if amount != "0" {
		_, err = s.ledgerSvc.Deposit(context.Background(), account.Identifier, mustDec(t, amount))
		require.NoError(t, err)
	}
	return account.Identifier
}

func mustDec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

// requireConsistent asserts the stored balance equals the replayed log sum.
func requireConsistent(t *testing.T, s *ledgerStack, identifier string) {
	t.Helper()
	audit, err := s.ledgerSvc.AuditBalance(context.Background(), identifier)
	require.NoError(t, err)
	require.True(t, audit.Consistent,
		"stored %s vs replayed %s", audit.Stored.StringFixed(2), audit.Replayed.StringFixed(2))
}

func TestConcurrentDeposits(t *testing.T) {
	s := newLedgerStack(t)
	identifier := s.newFundedAccount(t, "0")

	const workers = 100
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			_, err := s.ledgerSvc.Deposit(context.Background(), identifier, mustDec(t, "1.00"))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	balance, err := s.ledgerSvc.BalanceOf(context.Background(), identifier)
	require.NoError(t, err)
	assert.Equal(t, "100.00", balance.StringFixed(2))

	ops, err := s.ledgerSvc.Statement(context.Background(), identifier)
	require.NoError(t, err)
	assert.Len(t, ops, workers)
	requireConsistent(t, s, identifier)
}

// TestConcurrentWithdrawals verifies the balance can never go negative no
// matter how many withdrawals race: exactly the covered ones succeed.
func TestConcurrentWithdrawals(t *testing.T) {
	s := newLedgerStack(t)
	identifier := s.newFundedAccount(t, "50.00")

	const workers = 100
	var succeeded, rejected atomic.Int64
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			_, err := s.ledgerSvc.Withdraw(context.Background(), identifier, mustDec(t, "1.00"))
			switch {
			case err == nil:
				succeeded.Add(1)
			case errors.Is(err, apperror.ErrInsufficientFunds(decimal.Zero)):
				rejected.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(50), succeeded.Load())
	assert.Equal(t, int64(50), rejected.Load())

	balance, err := s.ledgerSvc.BalanceOf(context.Background(), identifier)
	require.NoError(t, err)
	assert.Equal(t, "0.00", balance.StringFixed(2))
	requireConsistent(t, s, identifier)
}

// TestOpposingTransfersDoNotDeadlock runs transfers between the same two
// accounts in both directions at once. Ordered lock acquisition must let all
// of them finish, and money must only move, never appear or vanish.
func TestOpposingTransfersDoNotDeadlock(t *testing.T) {
	s := newLedgerStack(t)
	a := s.newFundedAccount(t, "500.00")
	b := s.newFundedAccount(t, "500.00")

	const rounds = 50
	var wg sync.WaitGroup
	wg.Add(2)
	run := func(origin, destination string) {
		defer wg.Done()
		for i := 0; i < rounds; i++ {
			err := s.ledgerSvc.Transfer(context.Background(), origin, destination, mustDec(t, "1.00"))
			assert.NoError(t, err)
		}
	}
	go run(a, b)
	go run(b, a)

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(30 * time.Second):
		t.Fatal("transfers deadlocked")
	}

	balanceA, err := s.ledgerSvc.BalanceOf(context.Background(), a)
	require.NoError(t, err)
	balanceB, err := s.ledgerSvc.BalanceOf(context.Background(), b)
	require.NoError(t, err)

	// Equal traffic both ways leaves both balances where they started.
	assert.Equal(t, "500.00", balanceA.StringFixed(2))
	assert.Equal(t, "500.00", balanceB.StringFixed(2))
	requireConsistent(t, s, a)
	requireConsistent(t, s, b)
}

// TestConcurrentTransfersConserveTotal spreads random transfers across a ring
// of accounts and checks the total supply is unchanged at the end.
func TestConcurrentTransfersConserveTotal(t *testing.T) {
	s := newLedgerStack(t)

	identifiers := make([]string, 4)
	for i := range identifiers {
		identifiers[i] = s.newFundedAccount(t, "100.00")
	}

	const workers = 40
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		origin := identifiers[i%len(identifiers)]
		destination := identifiers[(i+1)%len(identifiers)]
		go func() {
			defer wg.Done()
			err := s.ledgerSvc.Transfer(context.Background(), origin, destination, mustDec(t, "3.00"))
			if err != nil && !errors.Is(err, apperror.ErrInsufficientFunds(decimal.Zero)) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	total := decimal.Zero
	for _, identifier := range identifiers {
		balance, err := s.ledgerSvc.BalanceOf(context.Background(), identifier)
		require.NoError(t, err)
		assert.False(t, balance.IsNegative(), identifier)
		total = total.Add(balance)
		requireConsistent(t, s, identifier)
	}
	assert.Equal(t, "400.00", total.StringFixed(2))
}

// TestDeleteCannotInterleaveWithTransfer parks a transfer right after the
// origin is debited, so the origin's stored balance is transiently zero, and
// tries to delete it. The delete must be refused while the transfer holds the
// account's lock; once the transfer finishes the money has arrived and both
// logs replay to the stored balances.
func TestDeleteCannotInterleaveWithTransfer(t *testing.T) {
	accountRepo := newGatedAccountRepo()
	operationRepo := newInMemoryOperationRepo()
	log := logger.NewWithWriter("error", io.Discard)
	locks := service.NewLockManager()
	accountSvc := service.NewAccountService(
		accountRepo, service.NewRandomIdentifierGenerator(time.Now().UnixNano()),
		locks, 10, 200*time.Millisecond, log,
	)
	ledgerSvc := service.NewLedgerService(accountRepo, operationRepo, locks, 5, 10*time.Second, log)

	origin, err := accountSvc.Create(context.Background())
	require.NoError(t, err)
	destination, err := accountSvc.Create(context.Background())
	require.NoError(t, err)
	_, err = ledgerSvc.Deposit(context.Background(), origin.Identifier, mustDec(t, "100.00"))
	require.NoError(t, err)

	accountRepo.gateOn(destination.ID)

	transferDone := make(chan error, 1)
	go func() {
		transferDone <- ledgerSvc.Transfer(context.Background(), origin.Identifier, destination.Identifier, mustDec(t, "100.00"))
	}()

	<-accountRepo.entered

	err = accountSvc.Delete(context.Background(), origin.Identifier)
	require.Error(t, err)
	var appErr *apperror.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "SYS_002", appErr.Code)

	close(accountRepo.proceed)
	require.NoError(t, <-transferDone)

	balance, err := ledgerSvc.BalanceOf(context.Background(), destination.Identifier)
	require.NoError(t, err)
	assert.Equal(t, "100.00", balance.StringFixed(2))

	for _, identifier := range []string{origin.Identifier, destination.Identifier} {
		audit, err := ledgerSvc.AuditBalance(context.Background(), identifier)
		require.NoError(t, err)
		assert.True(t, audit.Consistent, identifier)
	}

	// With the transfer settled the origin is genuinely empty and deletable.
	require.NoError(t, accountSvc.Delete(context.Background(), origin.Identifier))
}

// TestConcurrentAccountCreation checks identifier allocation stays unique
// under parallel creation.
func TestConcurrentAccountCreation(t *testing.T) {
	s := newLedgerStack(t)

	const workers = 50
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			_, err := s.accountSvc.Create(context.Background())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	accounts, err := s.accountSvc.List(context.Background())
	require.NoError(t, err)
	require.Len(t, accounts, workers)

	seen := make(map[string]bool, workers)
	for _, account := range accounts {
		assert.False(t, seen[account.Identifier], account.Identifier)
		seen[account.Identifier] = true
	}
}

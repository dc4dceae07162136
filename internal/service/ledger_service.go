package service

import (
	"context"
	"errors"
	"time"

	"github.com/joaojf/banking-system/internal/core/domain"
	"github.com/joaojf/banking-system/internal/core/ports"
	"github.com/joaojf/banking-system/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// LedgerService implements ports.LedgerService. Every mutation holds the
// per-account lock while it runs, so the balance write and its log entry form
// one unit as far as other operations in this process can observe, and log
// entries for one account are appended in mutation order.
type LedgerService struct {
	accounts    ports.AccountRepository
	operations  ports.OperationRepository
	locks       *LockManager
	maxRetries  int
	lockTimeout time.Duration
	log         zerolog.Logger
}

// NewLedgerService creates a LedgerService. maxRetries bounds how many times
// a balance write is retried after a version conflict with an external writer.
func NewLedgerService(
	accounts ports.AccountRepository,
	operations ports.OperationRepository,
	locks *LockManager,
	maxRetries int,
	lockTimeout time.Duration,
	log zerolog.Logger,
) *LedgerService {
	return &LedgerService{
		accounts:    accounts,
		operations:  operations,
		locks:       locks,
		maxRetries:  maxRetries,
		lockTimeout: lockTimeout,
		log:         log.With().Str("component", "ledger_service").Logger(),
	}
}

// BalanceOf returns the current balance of the account with the given
// display identifier.
func (s *LedgerService) BalanceOf(ctx context.Context, identifier string) (decimal.Decimal, error) {
	account, err := s.resolve(ctx, identifier)
	if err != nil {
		return decimal.Zero, err
	}
	return account.Balance, nil
}

// Deposit credits amount to the account and records the operation.
func (s *LedgerService) Deposit(ctx context.Context, identifier string, amount decimal.Decimal) (*domain.Account, error) {
	return s.applySingle(ctx, identifier, amount, domain.OperationDeposit)
}

// Withdraw debits amount from the account and records the operation. Fails
// with ErrInsufficientFunds when the balance does not cover the amount.
func (s *LedgerService) Withdraw(ctx context.Context, identifier string, amount decimal.Decimal) (*domain.Account, error) {
	return s.applySingle(ctx, identifier, amount, domain.OperationWithdrawal)
}

// Transfer moves amount from origin to destination. Both balances and both
// log entries change together or not at all: a failure after the debit is
// compensated by reversing every mutation already applied.
func (s *LedgerService) Transfer(ctx context.Context, origin, destination string, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return apperror.ErrInvalidAmount()
	}
	if origin == destination {
		return apperror.ErrSameAccount()
	}

	from, err := s.resolve(ctx, origin)
	if err != nil {
		return err
	}
	to, err := s.resolve(ctx, destination)
	if err != nil {
		return err
	}
	if from.ID == to.ID {
		return apperror.ErrSameAccount()
	}

	release, err := s.acquire(ctx, from.ID, to.ID)
	if err != nil {
		return err
	}
	defer release()

	// Sufficiency is decided here, under exclusivity. The read that produced
	// from.Balance happened before the locks were held and may be stale.
	from, err = s.getByID(ctx, from.ID)
	if err != nil {
		return err
	}
	if !from.HasFunds(amount) {
		return apperror.ErrInsufficientFunds(from.Balance)
	}

	debited, err := s.applyDelta(ctx, from.ID, amount.Neg())
	if err != nil {
		return err
	}

	// The origin balance has changed; from here on every failure must undo
	// what was already applied, and cancellation must not interrupt that.
	ctx = context.WithoutCancel(ctx)

	credited, err := s.applyDelta(ctx, to.ID, amount)
	if err != nil {
		s.compensate(ctx, from.ID, amount)
		return err
	}

	now := time.Now().UTC()
	out := &domain.Operation{
		ID:        uuid.New(),
		AccountID: from.ID,
		Kind:      domain.OperationTransferOut,
		Amount:    amount,
		CreatedAt: now,
	}
	in := &domain.Operation{
		ID:        uuid.New(),
		AccountID: to.ID,
		Kind:      domain.OperationTransferIn,
		Amount:    amount,
		CreatedAt: now,
	}

	if err := s.operations.AppendPair(ctx, out, in); err != nil {
		s.compensate(ctx, to.ID, amount.Neg())
		s.compensate(ctx, from.ID, amount)
		return apperror.InternalError(err)
	}

	s.log.Info().
		Str("origin", origin).
		Str("destination", destination).
		Str("amount", amount.StringFixed(2)).
		Str("origin_balance", debited.Balance.StringFixed(2)).
		Str("destination_balance", credited.Balance.StringFixed(2)).
		Msg("transfer completed")
	return nil
}

// Statement returns the account's operations ordered by timestamp.
func (s *LedgerService) Statement(ctx context.Context, identifier string) ([]domain.Operation, error) {
	account, err := s.resolve(ctx, identifier)
	if err != nil {
		return nil, err
	}
	return s.operations.ListByAccount(ctx, account.ID)
}

// AuditBalance replays the account's operation log and compares the result
// against the stored balance.
func (s *LedgerService) AuditBalance(ctx context.Context, identifier string) (*ports.BalanceAudit, error) {
	account, err := s.resolve(ctx, identifier)
	if err != nil {
		return nil, err
	}

	replayed, err := s.operations.SumByAccount(ctx, account.ID)
	if err != nil {
		return nil, err
	}

	audit := &ports.BalanceAudit{
		Identifier: identifier,
		Stored:     account.Balance,
		Replayed:   replayed,
		Consistent: account.Balance.Equal(replayed),
	}
	if !audit.Consistent {
		s.log.Error().
			Str("identifier", identifier).
			Str("stored", audit.Stored.StringFixed(2)).
			Str("replayed", audit.Replayed.StringFixed(2)).
			Msg("stored balance diverges from replayed operation log")
	}
	return audit, nil
}

// applySingle runs a deposit or withdrawal: lock, mutate, append, with the
// mutation reversed if the append fails.
func (s *LedgerService) applySingle(ctx context.Context, identifier string, amount decimal.Decimal, kind domain.OperationKind) (*domain.Account, error) {
	if !amount.IsPositive() {
		return nil, apperror.ErrInvalidAmount()
	}

	account, err := s.resolve(ctx, identifier)
	if err != nil {
		return nil, err
	}

	release, err := s.acquire(ctx, account.ID)
	if err != nil {
		return nil, err
	}
	defer release()

	delta := amount
	if !kind.IsCredit() {
		delta = amount.Neg()
	}

	updated, err := s.applyDelta(ctx, account.ID, delta)
	if err != nil {
		return nil, err
	}

	ctx = context.WithoutCancel(ctx)

	op := &domain.Operation{
		ID:        uuid.New(),
		AccountID: account.ID,
		Kind:      kind,
		Amount:    amount,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.operations.Append(ctx, op); err != nil {
		s.compensate(ctx, account.ID, delta.Neg())
		return nil, apperror.InternalError(err)
	}

	s.log.Info().
		Str("identifier", identifier).
		Str("kind", string(kind)).
		Str("amount", amount.StringFixed(2)).
		Str("balance", updated.Balance.StringFixed(2)).
		Msg("operation completed")
	return updated, nil
}

// applyDelta writes a balance change, retrying on version conflicts caused by
// writers outside this process (the in-process lock rules ours out).
func (s *LedgerService) applyDelta(ctx context.Context, id uuid.UUID, delta decimal.Decimal) (*domain.Account, error) {
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		account, err := s.getByID(ctx, id)
		if err != nil {
			return nil, err
		}

		updated, err := s.accounts.ApplyDelta(ctx, id, delta, account.Version)
		if err == nil {
			return updated, nil
		}
		if !errors.Is(err, apperror.ErrConflict()) {
			return nil, err
		}
		s.log.Debug().
			Str("account_id", id.String()).
			Int("attempt", attempt+1).
			Msg("write conflict, retrying")
	}
	return nil, apperror.ErrTooManyConflicts()
}

// compensate reverses an already applied balance change. A failure here means
// the stored balances no longer match the operation log and is logged loudly;
// AuditBalance will surface the divergence.
func (s *LedgerService) compensate(ctx context.Context, id uuid.UUID, delta decimal.Decimal) {
	if _, err := s.applyDelta(ctx, id, delta); err != nil {
		s.log.Error().
			Err(err).
			Str("account_id", id.String()).
			Str("delta", delta.StringFixed(2)).
			Msg("compensation failed, account left inconsistent")
	}
}

func (s *LedgerService) acquire(ctx context.Context, ids ...uuid.UUID) (func(), error) {
	lockCtx, cancel := context.WithTimeout(ctx, s.lockTimeout)
	defer cancel()
	return s.locks.Acquire(lockCtx, ids...)
}

func (s *LedgerService) resolve(ctx context.Context, identifier string) (*domain.Account, error) {
	account, err := s.accounts.GetByIdentifier(ctx, identifier)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, apperror.ErrAccountNotFound()
	}
	return account, nil
}

func (s *LedgerService) getByID(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	account, err := s.accounts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, apperror.ErrAccountNotFound()
	}
	return account, nil
}

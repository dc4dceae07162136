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

// AccountService implements ports.AccountService. It shares the ledger's
// LockManager so deletion serializes with in-flight mutations on the same
// account.
type AccountService struct {
	accounts    ports.AccountRepository
	idGen       ports.IdentifierGenerator
	locks       *LockManager
	maxAttempts int
	lockTimeout time.Duration
	log         zerolog.Logger
}

// NewAccountService creates an AccountService. maxAttempts caps how many
// identifier collisions Create tolerates before giving up. locks must be the
// same instance the ledger uses.
func NewAccountService(
	accounts ports.AccountRepository,
	idGen ports.IdentifierGenerator,
	locks *LockManager,
	maxAttempts int,
	lockTimeout time.Duration,
	log zerolog.Logger,
) *AccountService {
	return &AccountService{
		accounts:    accounts,
		idGen:       idGen,
		locks:       locks,
		maxAttempts: maxAttempts,
		lockTimeout: lockTimeout,
		log:         log.With().Str("component", "account_service").Logger(),
	}
}

// Create allocates a new zero-balance account. Identifier collisions are
// resolved by regenerating; the store's uniqueness check is the authority.
func (s *AccountService) Create(ctx context.Context) (*domain.Account, error) {
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		now := time.Now().UTC()
		account := &domain.Account{
			ID:         uuid.New(),
			Identifier: s.idGen.Generate(),
			Balance:    decimal.Zero,
			Version:    1,
			CreatedAt:  now,
			UpdatedAt:  now,
		}

		err := s.accounts.Create(ctx, account)
		if err == nil {
			s.log.Info().
				Str("account_id", account.ID.String()).
				Str("identifier", account.Identifier).
				Msg("account created")
			return account, nil
		}

		if errors.Is(err, apperror.ErrDuplicateIdentifier("")) {
			s.log.Warn().
				Str("identifier", account.Identifier).
				Int("attempt", attempt).
				Msg("identifier collision, regenerating")
			continue
		}
		return nil, err
	}
	return nil, apperror.ErrExhaustedIdentifierSpace(s.maxAttempts)
}

// Get resolves an account by its display identifier.
func (s *AccountService) Get(ctx context.Context, identifier string) (*domain.Account, error) {
	account, err := s.accounts.GetByIdentifier(ctx, identifier)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, apperror.ErrAccountNotFound()
	}
	return account, nil
}

// List returns all accounts.
func (s *AccountService) List(ctx context.Context) ([]domain.Account, error) {
	return s.accounts.List(ctx)
}

// Delete removes the account with the given identifier. Only zero-balance
// accounts may be deleted; the store enforces that atomically. The account's
// lock is taken first, so a delete can never land inside an in-flight
// transfer whose balance is transiently zero.
func (s *AccountService) Delete(ctx context.Context, identifier string) error {
	account, err := s.Get(ctx, identifier)
	if err != nil {
		return err
	}

	lockCtx, cancel := context.WithTimeout(ctx, s.lockTimeout)
	defer cancel()
	release, err := s.locks.Acquire(lockCtx, account.ID)
	if err != nil {
		return err
	}
	defer release()

	if err := s.accounts.Delete(ctx, account.ID); err != nil {
		return err
	}
	s.log.Info().
		Str("account_id", account.ID.String()).
		Str("identifier", identifier).
		Msg("account deleted")
	return nil
}

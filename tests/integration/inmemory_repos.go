package integration

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/joaojf/banking-system/internal/core/domain"
	"github.com/joaojf/banking-system/pkg/apperror"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// --- In-Memory Account Repo ---

// inMemoryAccountRepo mirrors the postgres repo's semantics: conditional
// version-checked balance writes, (nil, nil) on absent lookups, zero-balance
// guarded deletes.
type inMemoryAccountRepo struct {
	mu       sync.RWMutex
	accounts map[uuid.UUID]*domain.Account
}

func newInMemoryAccountRepo() *inMemoryAccountRepo {
	return &inMemoryAccountRepo{accounts: make(map[uuid.UUID]*domain.Account)}
}

func (r *inMemoryAccountRepo) Create(ctx context.Context, account *domain.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.accounts {
		if existing.Identifier == account.Identifier {
			return apperror.ErrDuplicateIdentifier(account.Identifier)
		}
	}
	clone := *account
	r.accounts[account.ID] = &clone
	return nil
}

func (r *inMemoryAccountRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	account, ok := r.accounts[id]
	if !ok {
		return nil, nil
	}
	clone := *account
	return &clone, nil
}

func (r *inMemoryAccountRepo) GetByIdentifier(ctx context.Context, identifier string) (*domain.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, account := range r.accounts {
		if account.Identifier == identifier {
			clone := *account
			return &clone, nil
		}
	}
	return nil, nil
}

func (r *inMemoryAccountRepo) List(ctx context.Context) ([]domain.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Account, 0, len(r.accounts))
	for _, account := range r.accounts {
		out = append(out, *account)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Identifier < out[j].Identifier })
	return out, nil
}

func (r *inMemoryAccountRepo) ApplyDelta(ctx context.Context, id uuid.UUID, delta decimal.Decimal, expectedVersion int64) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	account, ok := r.accounts[id]
	if !ok {
		return nil, apperror.ErrAccountNotFound()
	}
	if account.Version != expectedVersion {
		return nil, apperror.ErrConflict()
	}
	next := account.Balance.Add(delta)
	if next.IsNegative() {
		return nil, apperror.ErrInsufficientFunds(account.Balance)
	}
	account.Balance = next
	account.Version++
	account.UpdatedAt = time.Now().UTC()
	clone := *account
	return &clone, nil
}

func (r *inMemoryAccountRepo) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	account, ok := r.accounts[id]
	if !ok {
		return apperror.ErrAccountNotFound()
	}
	if !account.Balance.IsZero() {
		return apperror.ErrNonZeroBalance()
	}
	delete(r.accounts, id)
	return nil
}

// --- In-Memory Operation Repo ---

type loggedOperation struct {
	domain.Operation
	seq uint64
}

type inMemoryOperationRepo struct {
	mu      sync.RWMutex
	entries []loggedOperation
	nextSeq uint64
}

func newInMemoryOperationRepo() *inMemoryOperationRepo {
	return &inMemoryOperationRepo{}
}

func (r *inMemoryOperationRepo) Append(ctx context.Context, op *domain.Operation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.append(op)
	return nil
}

func (r *inMemoryOperationRepo) AppendPair(ctx context.Context, out, in *domain.Operation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.append(out)
	r.append(in)
	return nil
}

// append requires r.mu held.
func (r *inMemoryOperationRepo) append(op *domain.Operation) {
	r.nextSeq++
	r.entries = append(r.entries, loggedOperation{Operation: *op, seq: r.nextSeq})
}

func (r *inMemoryOperationRepo) ListByAccount(ctx context.Context, accountID uuid.UUID) ([]domain.Operation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []loggedOperation
	for _, e := range r.entries {
		if e.AccountID == accountID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].seq < out[j].seq
	})
	ops := make([]domain.Operation, 0, len(out))
	for _, e := range out {
		ops = append(ops, e.Operation)
	}
	return ops, nil
}

func (r *inMemoryOperationRepo) SumByAccount(ctx context.Context, accountID uuid.UUID) (decimal.Decimal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sum := decimal.Zero
	for _, e := range r.entries {
		if e.AccountID == accountID {
			sum = sum.Add(e.SignedAmount())
		}
	}
	return sum, nil
}

// --- Failure injection ---

// faultyOperationRepo wraps the in-memory log and fails appends on demand,
// which forces the engine down its compensation paths.
type faultyOperationRepo struct {
	*inMemoryOperationRepo
	mu             sync.Mutex
	failAppend     bool
	failAppendPair bool
}

func newFaultyOperationRepo() *faultyOperationRepo {
	return &faultyOperationRepo{inMemoryOperationRepo: newInMemoryOperationRepo()}
}

func (r *faultyOperationRepo) setFailures(single, pair bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failAppend = single
	r.failAppendPair = pair
}

func (r *faultyOperationRepo) Append(ctx context.Context, op *domain.Operation) error {
	r.mu.Lock()
	fail := r.failAppend
	r.mu.Unlock()
	if fail {
		return errAppendUnavailable
	}
	return r.inMemoryOperationRepo.Append(ctx, op)
}

func (r *faultyOperationRepo) AppendPair(ctx context.Context, out, in *domain.Operation) error {
	r.mu.Lock()
	fail := r.failAppendPair
	r.mu.Unlock()
	if fail {
		return errAppendUnavailable
	}
	return r.inMemoryOperationRepo.AppendPair(ctx, out, in)
}

var errAppendUnavailable = errors.New("operation log unavailable")

// gatedAccountRepo wraps the in-memory store and parks balance writes on one
// chosen account until released. Tests use it to hold a transfer mid-flight
// while they poke at the accounts it has locked.
type gatedAccountRepo struct {
	*inMemoryAccountRepo
	mu      sync.Mutex
	gateID  uuid.UUID
	once    sync.Once
	entered chan struct{}
	proceed chan struct{}
}

func newGatedAccountRepo() *gatedAccountRepo {
	return &gatedAccountRepo{
		inMemoryAccountRepo: newInMemoryAccountRepo(),
		entered:             make(chan struct{}),
		proceed:             make(chan struct{}),
	}
}

// gateOn makes the next ApplyDelta on id close entered and block until
// proceed is closed.
func (r *gatedAccountRepo) gateOn(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gateID = id
}

func (r *gatedAccountRepo) ApplyDelta(ctx context.Context, id uuid.UUID, delta decimal.Decimal, expectedVersion int64) (*domain.Account, error) {
	r.mu.Lock()
	gated := r.gateID == id
	r.mu.Unlock()
	if gated {
		r.once.Do(func() { close(r.entered) })
		<-r.proceed
	}
	return r.inMemoryAccountRepo.ApplyDelta(ctx, id, delta, expectedVersion)
}

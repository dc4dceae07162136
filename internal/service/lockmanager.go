package service

import (
	"bytes"
	"context"
	"sort"
	"sync"

	"github.com/joaojf/banking-system/pkg/apperror"

	"github.com/google/uuid"
)

// accountLock is one account's mutex. refs counts the goroutines currently
// holding or waiting on the channel, so the map entry can be evicted once
// nobody references it.
type accountLock struct {
	ch   chan struct{}
	refs int
}

// LockManager provides per-account exclusivity. Locks are channel-based so
// acquisition can be bounded by a context deadline instead of blocking
// indefinitely. Entries are evicted as soon as they are unreferenced, so the
// map does not grow with the number of accounts ever touched.
type LockManager struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*accountLock
}

// NewLockManager creates an empty LockManager.
func NewLockManager() *LockManager {
	return &LockManager{locks: make(map[uuid.UUID]*accountLock)}
}

// retain returns the account's lock channel, creating it if needed, and
// counts the caller as a holder of the entry.
func (m *LockManager) retain(id uuid.UUID) chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[id]
	if !ok {
		l = &accountLock{ch: make(chan struct{}, 1)}
		m.locks[id] = l
	}
	l.refs++
	return l.ch
}

// unref drops one reference and evicts the entry when none remain.
func (m *LockManager) unref(id uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l := m.locks[id]
	l.refs--
	if l.refs == 0 {
		delete(m.locks, id)
	}
}

// held reports how many accounts currently have a live lock entry.
func (m *LockManager) held() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.locks)
}

// Acquire takes the locks of every given account and returns a release
// function. The ids are always locked in ascending byte order regardless of
// argument order, so two concurrent transfers between the same pair of
// accounts in opposite directions cannot deadlock. The ids must be distinct.
//
// If ctx expires before all locks are held, every lock already taken is
// released and ErrLockTimeout is returned.
func (m *LockManager) Acquire(ctx context.Context, ids ...uuid.UUID) (release func(), err error) {
	sorted := make([]uuid.UUID, len(ids))
	copy(sorted, ids)
	sort.Slice(sorted, func(i, j int) bool {
		return bytes.Compare(sorted[i][:], sorted[j][:]) < 0
	})

	acquired := make([]chan struct{}, 0, len(sorted))
	for _, id := range sorted {
		ch := m.retain(id)
		select {
		case ch <- struct{}{}:
			acquired = append(acquired, ch)
		case <-ctx.Done():
			m.unref(id)
			for i := len(acquired) - 1; i >= 0; i-- {
				<-acquired[i]
				m.unref(sorted[i])
			}
			return nil, apperror.ErrLockTimeout(ctx.Err())
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			for i := len(acquired) - 1; i >= 0; i-- {
				<-acquired[i]
				m.unref(sorted[i])
			}
		})
	}, nil
}

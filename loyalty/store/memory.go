// Package store provides an in-memory loyalty.Store.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/warp/loyalty-engine/loyalty"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu           sync.RWMutex
	accounts     map[loyalty.AccountID]loyalty.Account
	venues       map[loyalty.VenueID]loyalty.Venue
	transactions map[loyalty.TransactionID]loyalty.TransactionRecord
	nextID       loyalty.TransactionID
}

var _ loyalty.Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		accounts:     make(map[loyalty.AccountID]loyalty.Account),
		venues:       make(map[loyalty.VenueID]loyalty.Venue),
		transactions: make(map[loyalty.TransactionID]loyalty.TransactionRecord),
	}
}

func (m *Memory) Close() error { return nil }

// =============================================================================
// LEDGER
// =============================================================================

func (m *Memory) SaveAccount(_ context.Context, a loyalty.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[a.ID] = a
	return nil
}

func (m *Memory) SaveVenue(_ context.Context, v loyalty.Venue) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.venues[v.ID] = v
	return nil
}

func (m *Memory) GetAccount(_ context.Context, id loyalty.AccountID) (loyalty.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.accounts[id]
	if !ok {
		return loyalty.Account{}, loyalty.ErrAccountNotFound
	}
	return a, nil
}

func (m *Memory) GetVenue(_ context.Context, id loyalty.VenueID) (loyalty.Venue, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.venues[id]
	if !ok {
		return loyalty.Venue{}, loyalty.ErrVenueNotFound
	}
	return v, nil
}

// CreditBalance is a read-modify-write under the write lock.
func (m *Memory) CreditBalance(_ context.Context, id loyalty.AccountID, delta int64) (loyalty.Account, error) {
	if delta <= 0 {
		return loyalty.Account{}, loyalty.ErrInvalidAmount
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return loyalty.Account{}, loyalty.ErrAccountNotFound
	}
	a.Balance += delta
	m.accounts[id] = a
	return a, nil
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func (m *Memory) CreateTransaction(_ context.Context, rec loyalty.TransactionRecord) (loyalty.TransactionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	rec.ID = m.nextID
	m.transactions[rec.ID] = cloneRecord(rec)
	return cloneRecord(rec), nil
}

func (m *Memory) UpdateTransaction(_ context.Context, id loyalty.TransactionID, u loyalty.TransactionUpdate) (loyalty.TransactionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.transactions[id]
	if !ok {
		return loyalty.TransactionRecord{}, loyalty.ErrTransactionNotFound
	}
	next, err := rec.Apply(u)
	if err != nil {
		return rec, err
	}
	m.transactions[id] = cloneRecord(next)
	return cloneRecord(next), nil
}

func (m *Memory) GetTransaction(_ context.Context, id loyalty.TransactionID) (loyalty.TransactionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.transactions[id]
	if !ok {
		return loyalty.TransactionRecord{}, loyalty.ErrTransactionNotFound
	}
	return cloneRecord(rec), nil
}

func (m *Memory) ListTransactions(_ context.Context, accountID loyalty.AccountID) ([]loyalty.TransactionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []loyalty.TransactionRecord
	for _, rec := range m.transactions {
		if rec.AccountID == accountID {
			result = append(result, cloneRecord(rec))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID > result[j].ID })
	return result, nil
}

func (m *Memory) ListPending(_ context.Context, createdBefore time.Time) ([]loyalty.TransactionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []loyalty.TransactionRecord
	for _, rec := range m.transactions {
		if rec.Status == loyalty.StatusPending && rec.CreatedAt.Before(createdBefore) {
			result = append(result, cloneRecord(rec))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// Transactions returns every record, oldest first. Test helper.
func (m *Memory) Transactions() []loyalty.TransactionRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]loyalty.TransactionRecord, 0, len(m.transactions))
	for _, rec := range m.transactions {
		result = append(result, cloneRecord(rec))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

// cloneRecord copies the hash pointer so callers can't mutate stored state.
func cloneRecord(rec loyalty.TransactionRecord) loyalty.TransactionRecord {
	if rec.CodeHash != nil {
		h := *rec.CodeHash
		rec.CodeHash = &h
	}
	return rec
}

/*
sqlite_test.go - Tests for the SQLite store

Tests for:
- Account and venue lookups, not-found mapping
- Atomic balance credit, including concurrent credits
- Transaction status guard (PENDING -> terminal once)
- History ordering and stale PENDING lookup
*/
package sqlite

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/loyalty-engine/loyalty"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	ctx := context.Background()
	require.NoError(t, s.SaveAccount(ctx, loyalty.Account{ID: 1, Balance: 50}))
	require.NoError(t, s.SaveVenue(ctx, loyalty.Venue{ID: 2, Name: "Harbour Bar", Location: "Pier 4"}))
	return s
}

func pending(t *testing.T, s *Store, at time.Time) loyalty.TransactionRecord {
	t.Helper()
	rec, err := s.CreateTransaction(context.Background(), loyalty.TransactionRecord{
		AccountID: 1, VenueID: 2, Amount: 40, Status: loyalty.StatusPending, CreatedAt: at,
	})
	require.NoError(t, err)
	return rec
}

func TestStore_Lookups(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a, err := s.GetAccount(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(50), a.Balance)

	v, err := s.GetVenue(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, "Harbour Bar", v.Name)
	assert.Equal(t, "Pier 4", v.Location)

	_, err = s.GetAccount(ctx, 99)
	assert.ErrorIs(t, err, loyalty.ErrAccountNotFound)
	_, err = s.GetVenue(ctx, 99)
	assert.ErrorIs(t, err, loyalty.ErrVenueNotFound)
	_, err = s.GetTransaction(ctx, 99)
	assert.ErrorIs(t, err, loyalty.ErrTransactionNotFound)
}

func TestStore_CreditBalance(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a, err := s.CreditBalance(ctx, 1, 40)
	require.NoError(t, err)
	assert.Equal(t, int64(90), a.Balance)

	_, err = s.CreditBalance(ctx, 99, 1)
	assert.ErrorIs(t, err, loyalty.ErrAccountNotFound)

	_, err = s.CreditBalance(ctx, 1, 0)
	assert.ErrorIs(t, err, loyalty.ErrInvalidAmount)
}

func TestStore_ConcurrentCreditsAreNotLost(t *testing.T) {
	// GIVEN: a file-backed store so several connections are in play
	s, err := New(filepath.Join(t.TempDir(), "loyalty.db"))
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()
	require.NoError(t, s.SaveAccount(ctx, loyalty.Account{ID: 1}))

	// WHEN: 20 goroutines credit 5 points each
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.CreditBalance(ctx, 1, 5)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	// THEN
	a, err := s.GetAccount(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(100), a.Balance)
}

func TestStore_TransactionLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	created := time.Date(2025, 3, 10, 18, 30, 0, 123456789, time.UTC)

	rec := pending(t, s, created)
	assert.NotZero(t, rec.ID)

	got, err := s.GetTransaction(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, loyalty.StatusPending, got.Status)
	assert.Nil(t, got.CodeHash)
	assert.True(t, created.Equal(got.CreatedAt))

	done, err := s.UpdateTransaction(ctx, rec.ID, loyalty.Completed("a1b2", 40))
	require.NoError(t, err)
	assert.Equal(t, loyalty.StatusCompleted, done.Status)

	got, err = s.GetTransaction(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, loyalty.StatusCompleted, got.Status)
	assert.Equal(t, int64(40), got.PointsEarned)
	require.NotNil(t, got.CodeHash)
	assert.Equal(t, "a1b2", *got.CodeHash)
}

func TestStore_TerminalRecordsAreImmutable(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	rec := pending(t, s, time.Now())

	_, err := s.UpdateTransaction(ctx, rec.ID, loyalty.Failed())
	require.NoError(t, err)

	_, err = s.UpdateTransaction(ctx, rec.ID, loyalty.Completed("late", 40))
	assert.ErrorIs(t, err, loyalty.ErrInvalidTransition)

	got, err := s.GetTransaction(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, loyalty.StatusFailed, got.Status)
	assert.Zero(t, got.PointsEarned)
	assert.Nil(t, got.CodeHash)

	_, err = s.UpdateTransaction(ctx, 999, loyalty.Failed())
	assert.ErrorIs(t, err, loyalty.ErrTransactionNotFound)
}

func TestStore_ForeignKeys(t *testing.T) {
	s := newTestStore(t)
	_, err := s.CreateTransaction(context.Background(), loyalty.TransactionRecord{
		AccountID: 77, VenueID: 2, Amount: 10, Status: loyalty.StatusPending, CreatedAt: time.Now(),
	})
	assert.Error(t, err)
}

func TestStore_ListTransactionsNewestFirst(t *testing.T) {
	s := newTestStore(t)
	first := pending(t, s, time.Now())
	second := pending(t, s, time.Now())

	recs, err := s.ListTransactions(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, second.ID, recs[0].ID)
	assert.Equal(t, first.ID, recs[1].ID)

	recs, err = s.ListTransactions(context.Background(), 42)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestStore_ListPending(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

	stale := pending(t, s, now.Add(-2*time.Hour))
	pending(t, s, now.Add(-time.Minute))
	done := pending(t, s, now.Add(-3*time.Hour))
	_, err := s.UpdateTransaction(ctx, done.ID, loyalty.Completed("h", 40))
	require.NoError(t, err)

	recs, err := s.ListPending(ctx, now.Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, stale.ID, recs[0].ID)
}

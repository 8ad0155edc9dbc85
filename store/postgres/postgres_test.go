package postgres

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/loyalty-engine/loyalty"
)

// Set LOYALTY_TEST_POSTGRES_URL to a disposable database to run these.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("LOYALTY_TEST_POSTGRES_URL")
	if dsn == "" {
		t.Skip("LOYALTY_TEST_POSTGRES_URL not set")
	}

	ctx := context.Background()
	s, err := New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	_, err = s.db.ExecContext(ctx, "TRUNCATE transactions, accounts, venues RESTART IDENTITY")
	require.NoError(t, err)
	require.NoError(t, s.SaveAccount(ctx, loyalty.Account{ID: 1, Balance: 50}))
	require.NoError(t, s.SaveVenue(ctx, loyalty.Venue{ID: 2, Name: "Harbour Bar"}))
	return s
}

func TestStore_CreditAndLookups(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.GetAccount(ctx, 99)
	assert.ErrorIs(t, err, loyalty.ErrAccountNotFound)
	_, err = s.GetVenue(ctx, 99)
	assert.ErrorIs(t, err, loyalty.ErrVenueNotFound)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.CreditBalance(ctx, 1, 5)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	a, err := s.GetAccount(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(100), a.Balance)
}

func TestStore_TransactionGuard(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec, err := s.CreateTransaction(ctx, loyalty.TransactionRecord{
		AccountID: 1, VenueID: 2, Amount: 40, Status: loyalty.StatusPending, CreatedAt: time.Now().Add(-time.Hour),
	})
	require.NoError(t, err)

	pending, err := s.ListPending(ctx, time.Now())
	require.NoError(t, err)
	require.Len(t, pending, 1)

	_, err = s.UpdateTransaction(ctx, rec.ID, loyalty.Completed("h1", 40))
	require.NoError(t, err)
	_, err = s.UpdateTransaction(ctx, rec.ID, loyalty.Failed())
	assert.ErrorIs(t, err, loyalty.ErrInvalidTransition)

	got, err := s.GetTransaction(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, loyalty.StatusCompleted, got.Status)
	require.NotNil(t, got.CodeHash)
	assert.Equal(t, "h1", *got.CodeHash)

	history, err := s.ListTransactions(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

package loyalty

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatus_Transitions(t *testing.T) {
	assert.True(t, StatusPending.CanTransition(StatusCompleted))
	assert.True(t, StatusPending.CanTransition(StatusFailed))
	assert.False(t, StatusPending.CanTransition(StatusPending))

	for _, from := range []Status{StatusCompleted, StatusFailed} {
		assert.True(t, from.IsTerminal())
		for _, to := range []Status{StatusPending, StatusCompleted, StatusFailed} {
			assert.False(t, from.CanTransition(to), "%s -> %s", from, to)
		}
	}
}

func TestParseStatus(t *testing.T) {
	s, err := ParseStatus("COMPLETED")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, s)

	_, err = ParseStatus("completed")
	assert.Error(t, err)
}

func TestApply_SetsCompletionFields(t *testing.T) {
	rec := TransactionRecord{ID: 3, Amount: 40, Status: StatusPending}

	done, err := rec.Apply(Completed("abc", 40))
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, done.Status)
	assert.Equal(t, int64(40), done.PointsEarned)
	require.NotNil(t, done.CodeHash)
	assert.Equal(t, "abc", *done.CodeHash)

	_, err = done.Apply(Failed())
	var terr *TransitionError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, StatusCompleted, terr.From)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestApply_FailedClearsPointsAndHash(t *testing.T) {
	h := "stray"
	rec := TransactionRecord{ID: 4, Status: StatusPending, PointsEarned: 9, CodeHash: &h}

	failed, err := rec.Apply(Failed())
	require.NoError(t, err)
	assert.Equal(t, int64(0), failed.PointsEarned)
	assert.Nil(t, failed.CodeHash)
}

func TestBalanceChanged_Payload(t *testing.T) {
	at := time.UnixMilli(1741631400123)
	e := BalanceChanged{AccountID: 7, Balance: 320, At: at}

	assert.Equal(t, "points/7", e.Topic())

	raw, err := e.Payload()
	require.NoError(t, err)
	var got map[string]int64
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, map[string]int64{"userId": 7, "pointsBalance": 320, "timestamp": 1741631400123}, got)
}

func TestErrorHelpers(t *testing.T) {
	assert.True(t, IsClientError(&ReferenceNotFoundError{Which: RefVenue, ID: 1}))
	assert.True(t, IsClientError(&ValidationError{Field: "amount", Reason: ErrInvalidAmount}))
	assert.False(t, IsClientError(&PersistenceError{Op: "x", Err: ErrTransactionNotFound}))
	assert.True(t, IsNotFound(&PersistenceError{Op: "x", Err: ErrTransactionNotFound}))
	assert.True(t, IsFatal(&BalanceCreditError{Err: ErrAccountNotFound}))
}

package loyalty

import (
	"encoding/json"
	"fmt"
	"time"
)

// BalanceChanged is broadcast after a successful credit.
type BalanceChanged struct {
	AccountID AccountID
	Balance   int64
	At        time.Time
}

// Topic is the per-account channel subscribers listen on.
func (e BalanceChanged) Topic() string {
	return BalanceTopic(e.AccountID)
}

// BalanceTopic returns the topic for an account, e.g. "points/42".
func BalanceTopic(id AccountID) string {
	return fmt.Sprintf("points/%d", id)
}

type balancePayload struct {
	UserID        int64 `json:"userId"`
	PointsBalance int64 `json:"pointsBalance"`
	Timestamp     int64 `json:"timestamp"`
}

// Payload encodes the wire message. Timestamp is Unix milliseconds.
func (e BalanceChanged) Payload() ([]byte, error) {
	return json.Marshal(balancePayload{
		UserID:        int64(e.AccountID),
		PointsBalance: e.Balance,
		Timestamp:     e.At.UnixMilli(),
	})
}

/*
Package loyalty provides the core of the points engine: the domain model,
the capabilities the transaction saga depends on, and the saga itself.

PURPOSE:
  A customer buys something at a venue and earns points for it. Awarding
  those points touches local storage, an external code generator, the
  account balance and a real-time notification. This package owns the
  types shared by all of those steps.

KEY CONCEPTS IN THIS FILE (types.go):
  - Account: points holder (id, balance)
  - Venue: where the purchase happened (read-only here)
  - TransactionRecord: one purchase event, with a one-shot status
  - Status: PENDING -> COMPLETED | FAILED

DESIGN PRINCIPLES:
  1. Persist first: a record exists before any external call is made
  2. Terminal states are final: no record ever leaves COMPLETED or FAILED
  3. Type safety: distinct ID types so account/venue ids can't be mixed up

SEE ALSO:
  - saga.go: The orchestration that drives these types
  - store.go: Persistence capabilities
  - errors.go: Typed failures returned by the saga
*/
package loyalty

import (
	"fmt"
	"time"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type AccountID int64
type VenueID int64
type TransactionID int64

// =============================================================================
// ACCOUNT / VENUE
// =============================================================================

// Account holds a points balance. Balance only grows in this workflow.
type Account struct {
	ID      AccountID
	Balance int64
}

// Venue is the place a purchase was made. The saga only checks it exists.
type Venue struct {
	ID       VenueID
	Name     string
	Location string
}

// =============================================================================
// STATUS - One-shot state machine
// =============================================================================

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is allowed.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanTransition reports whether s -> to is a legal move.
// The only legal moves are PENDING -> COMPLETED and PENDING -> FAILED.
func (s Status) CanTransition(to Status) bool {
	return s == StatusPending && to.IsTerminal()
}

// ParseStatus converts a stored status string back into a Status.
func ParseStatus(v string) (Status, error) {
	s := Status(v)
	if !s.Valid() {
		return "", fmt.Errorf("unknown transaction status %q", v)
	}
	return s, nil
}

// =============================================================================
// TRANSACTION RECORD
// =============================================================================

// TransactionRecord is the durable trace of one purchase event.
//
// INVARIANTS:
//   - PointsEarned != 0 only when Status == COMPLETED
//   - CodeHash != nil only when Status == COMPLETED
//   - CreatedAt never changes after creation
type TransactionRecord struct {
	ID           TransactionID
	AccountID    AccountID
	VenueID      VenueID
	Amount       int64
	PointsEarned int64
	CodeHash     *string
	Status       Status
	CreatedAt    time.Time
}

// TransactionUpdate carries the fields a terminal transition sets.
type TransactionUpdate struct {
	Status       Status
	PointsEarned int64
	CodeHash     *string
}

// Completed builds the update for a successful code generation.
func Completed(hash string, points int64) TransactionUpdate {
	return TransactionUpdate{Status: StatusCompleted, PointsEarned: points, CodeHash: &hash}
}

// Failed builds the update for any failure after the pending write.
func Failed() TransactionUpdate {
	return TransactionUpdate{Status: StatusFailed}
}

// Apply checks the transition and returns the updated record.
// Store implementations use it so every engine enforces the same rules.
func (r TransactionRecord) Apply(u TransactionUpdate) (TransactionRecord, error) {
	if !r.Status.CanTransition(u.Status) {
		return r, &TransitionError{ID: r.ID, From: r.Status, To: u.Status}
	}
	r.Status = u.Status
	if u.Status == StatusCompleted {
		r.PointsEarned = u.PointsEarned
		r.CodeHash = u.CodeHash
	} else {
		r.PointsEarned = 0
		r.CodeHash = nil
	}
	return r, nil
}

// =============================================================================
// SAGA INPUT / OUTPUT
// =============================================================================

// Request is a single purchase to award points for.
type Request struct {
	AccountID AccountID
	VenueID   VenueID
	Amount    int64
}

// Code is what the code generator mints for a transaction.
// Image is the renderable artifact, Hash the durable reference to it.
type Code struct {
	Image string
	Hash  string
}

// Receipt is the saga's successful result. Artifact lives only for the
// response round-trip; only the hash inside Transaction is persisted.
type Receipt struct {
	Transaction TransactionRecord
	Balance     int64
	Artifact    string
}

/*
store.go - Capabilities the saga depends on

PURPOSE:
  Defines the interfaces between the saga and everything it talks to.
  Concrete engines (memory, SQLite, PostgreSQL) live in other packages.

KEY INTERFACES:
  LedgerStore:      accounts and venues, atomic balance credit
  TransactionStore: transaction records with a one-shot status
  CodeGenerator:    the external code minting service
  Notifier:         fire-and-forget balance notifications
  Store:            everything a storage engine provides to the service

CREDIT ATOMICITY:
  CreditBalance must be safe under concurrent credits to the same account.
  Two credits of 10 and 15 always end with balance +25, in either order.

TRANSITION GUARD:
  UpdateTransaction only applies to records still PENDING. Any other
  current state yields ErrInvalidTransition. This keeps terminal states
  final even when the sweep races a finishing saga.

IMPLEMENTATIONS:
  - loyalty/store/memory.go: In-memory for testing
  - store/sqlite/sqlite.go: SQLite (default)
  - store/postgres/postgres.go: PostgreSQL

SEE ALSO:
  - saga.go: The only writer of transaction status
  - sweeper.go: Optional reconciliation of stale PENDING records
*/
package loyalty

import (
	"context"
	"time"
)

// =============================================================================
// LEDGER STORE - Accounts and venues
// =============================================================================

type LedgerStore interface {
	// GetAccount returns ErrAccountNotFound for an unknown id.
	GetAccount(ctx context.Context, id AccountID) (Account, error)

	// GetVenue returns ErrVenueNotFound for an unknown id.
	GetVenue(ctx context.Context, id VenueID) (Venue, error)

	// CreditBalance atomically adds delta (> 0) and returns the new state.
	CreditBalance(ctx context.Context, id AccountID, delta int64) (Account, error)
}

// =============================================================================
// TRANSACTION STORE - Purchase records
// =============================================================================

type TransactionStore interface {
	// CreateTransaction persists rec and returns it with its assigned ID.
	CreateTransaction(ctx context.Context, rec TransactionRecord) (TransactionRecord, error)

	// UpdateTransaction applies a terminal transition to a PENDING record.
	UpdateTransaction(ctx context.Context, id TransactionID, u TransactionUpdate) (TransactionRecord, error)

	GetTransaction(ctx context.Context, id TransactionID) (TransactionRecord, error)

	// ListTransactions returns an account's records, newest first.
	ListTransactions(ctx context.Context, accountID AccountID) ([]TransactionRecord, error)

	// ListPending returns PENDING records created strictly before the cutoff.
	ListPending(ctx context.Context, createdBefore time.Time) ([]TransactionRecord, error)
}

// Store is the full set of operations a storage engine offers the service.
type Store interface {
	LedgerStore
	TransactionStore

	SaveAccount(ctx context.Context, a Account) error
	SaveVenue(ctx context.Context, v Venue) error
	Close() error
}

// =============================================================================
// EXTERNAL COLLABORATORS
// =============================================================================

// CodeGenerator mints a redeemable code for an account/amount pair.
// A single call is made per saga; failures are not retried.
type CodeGenerator interface {
	Generate(ctx context.Context, accountID AccountID, amount int64) (Code, error)
}

// Notifier broadcasts balance changes. Notify must not block the caller
// and has no way to report failure back to it.
type Notifier interface {
	Notify(event BalanceChanged)
}

/*
errors.go - Error types for the points engine

PURPOSE:
  All error types in one place. The saga returns exactly one of five
  structured errors, so callers can branch exhaustively with errors.As:

    ValidationError        input rejected before any write
    ReferenceNotFoundError unknown account or venue, no writes
    PersistenceError       storage failed (before or after the pending write)
    ExternalServiceError   code generation failed, record is FAILED
    BalanceCreditError     record is COMPLETED but the credit failed

ERROR CATEGORIES:
  1. Input errors - fully recoverable, no side effects
  2. Infrastructure errors - storage unavailable
  3. Dependency errors - code generator failed, always a FAILED record
  4. Fatal inconsistency - completed without credit, surfaced not repaired

SEE ALSO:
  - saga.go: Produces these errors
  - api/handlers.go: Maps them to HTTP status codes
*/
package loyalty

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidAmount is returned when an amount or credit delta is not positive.
	ErrInvalidAmount = errors.New("amount must be positive")

	// ErrReferenceNotFound is returned when a request names an unknown account or venue.
	ErrReferenceNotFound = errors.New("reference not found")

	// ErrAccountNotFound is returned by stores for an unknown account id.
	ErrAccountNotFound = errors.New("account not found")

	// ErrVenueNotFound is returned by stores for an unknown venue id.
	ErrVenueNotFound = errors.New("venue not found")

	// ErrTransactionNotFound is returned by stores for an unknown transaction id.
	ErrTransactionNotFound = errors.New("transaction not found")

	// ErrInvalidTransition is returned when an update would leave a terminal state.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrPersistence marks storage failures surfaced by the saga.
	ErrPersistence = errors.New("persistence failure")

	// ErrExternalService marks code generation failures surfaced by the saga.
	ErrExternalService = errors.New("external service failure")

	// ErrBalanceCredit marks a completed transaction whose credit failed.
	ErrBalanceCredit = errors.New("balance credit failed")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// Reference names which side of a request failed to resolve.
type Reference string

const (
	RefAccount Reference = "account"
	RefVenue   Reference = "venue"
)

// ValidationError is an input error caught before any write.
type ValidationError struct {
	Field  string
	Reason error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %v", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return e.Reason }

// ReferenceNotFoundError reports an account or venue that does not exist.
type ReferenceNotFoundError struct {
	Which Reference
	ID    int64
}

func (e *ReferenceNotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Which, e.ID)
}

func (e *ReferenceNotFoundError) Unwrap() error { return ErrReferenceNotFound }

// PersistenceError wraps a storage failure with the operation that hit it.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure during %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() []error { return []error{ErrPersistence, e.Err} }

// ExternalServiceError wraps a code generation failure.
// The transaction it belongs to has been moved to FAILED.
type ExternalServiceError struct {
	TransactionID TransactionID
	Cause         error
}

func (e *ExternalServiceError) Error() string {
	return fmt.Sprintf("code generation failed for transaction %d: %v", e.TransactionID, e.Cause)
}

func (e *ExternalServiceError) Unwrap() []error { return []error{ErrExternalService, e.Cause} }

// BalanceCreditError reports the accepted inconsistency window: the
// transaction is COMPLETED but the account was not credited.
type BalanceCreditError struct {
	Transaction TransactionRecord
	Err         error
}

func (e *BalanceCreditError) Error() string {
	return fmt.Sprintf("transaction %d completed but crediting %d points to account %d failed: %v",
		e.Transaction.ID, e.Transaction.PointsEarned, e.Transaction.AccountID, e.Err)
}

func (e *BalanceCreditError) Unwrap() []error { return []error{ErrBalanceCredit, e.Err} }

// TransitionError provides details about a rejected status change.
type TransitionError struct {
	ID   TransactionID
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("transaction %d: cannot move from %s to %s", e.ID, e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidAmount) || errors.Is(err, ErrReferenceNotFound)
}

// IsFatal returns true for the completed-but-not-credited inconsistency.
func IsFatal(err error) bool {
	return errors.Is(err, ErrBalanceCredit)
}

// IsNotFound returns true if the error indicates a missing stored object.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrAccountNotFound) ||
		errors.Is(err, ErrVenueNotFound) ||
		errors.Is(err, ErrTransactionNotFound)
}

/*
saga.go - Transaction saga: award points for one purchase

PURPOSE:
  Drives a purchase through validation, a durable PENDING record, code
  generation, completion, balance credit and notification. Each step can
  fail on its own; the saga always leaves the record in a known state.

FLOW:
  1. Validate    account and venue must exist          -> ReferenceNotFoundError
  2. Pending     persist a PENDING record              -> PersistenceError
  3. Generate    call the code generator once          -> ExternalServiceError (record FAILED)
  4. Complete    hash + points + COMPLETED, then credit -> PersistenceError / BalanceCreditError
  5. Notify      broadcast the new balance             -> never fails the saga

NO COMPENSATION:
  Completed steps are never undone. A failure after step 2 is recorded on
  the transaction (FAILED), not rolled back. A failed credit after step 4
  leaves a COMPLETED record without the matching credit; that window is
  surfaced as BalanceCreditError and logged, not repaired.

NO MID-FLIGHT ABORT:
  Once the PENDING record is committed the remaining steps run on a
  context detached from the caller's cancellation. Code generation is
  bounded by the client's own timeouts instead.

CONCURRENCY:
  Submit is safe for concurrent use. Steps within one call are strictly
  sequential. Concurrent calls for the same account meet only at
  CreditBalance, which the store makes atomic.

SEE ALSO:
  - store.go: The capabilities used here
  - errors.go: The closed set of failures
  - sweeper.go: Optional cleanup of records stuck in PENDING
*/
package loyalty

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/warp/loyalty-engine/rewards"
)

// Saga awards points for purchases. Build it with NewSaga.
type Saga struct {
	ledger   LedgerStore
	txs      TransactionStore
	codes    CodeGenerator
	notifier Notifier

	rate   rewards.Rate
	now    func() time.Time
	logger *slog.Logger
}

// Option configures a Saga.
type Option func(*Saga)

// WithRate sets the amount-to-points conversion. Default is 1:1.
func WithRate(r rewards.Rate) Option {
	return func(s *Saga) { s.rate = r }
}

// WithClock overrides time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Saga) { s.now = now }
}

// WithLogger sets the logger. Default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Saga) { s.logger = l }
}

// NewSaga wires the saga to its collaborators. notifier may be nil, in
// which case balance changes are not broadcast.
func NewSaga(ledger LedgerStore, txs TransactionStore, codes CodeGenerator, notifier Notifier, opts ...Option) *Saga {
	s := &Saga{
		ledger:   ledger,
		txs:      txs,
		codes:    codes,
		notifier: notifier,
		rate:     rewards.OneToOne,
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "saga")
	return s
}

// Submit runs the saga for one purchase. It blocks for the duration of the
// code generation call and should not be used on a latency-sensitive path.
//
// On success the returned record is COMPLETED. On failure the error is one
// of *ValidationError, *ReferenceNotFoundError, *PersistenceError,
// *ExternalServiceError or *BalanceCreditError.
func (s *Saga) Submit(ctx context.Context, req Request) (*Receipt, error) {
	log := s.logger.With("account_id", req.AccountID, "venue_id", req.VenueID, "amount", req.Amount)

	if req.Amount <= 0 {
		return nil, &ValidationError{Field: "amount", Reason: ErrInvalidAmount}
	}

	// Step 1: references. No writes until both resolve.
	if err := s.validate(ctx, req); err != nil {
		log.Info("transaction rejected", "error", err)
		return nil, err
	}

	// Step 2: durable PENDING record before any external call.
	rec, err := s.txs.CreateTransaction(ctx, TransactionRecord{
		AccountID: req.AccountID,
		VenueID:   req.VenueID,
		Amount:    req.Amount,
		Status:    StatusPending,
		CreatedAt: s.now().UTC(),
	})
	if err != nil {
		log.Error("pending write failed", "error", err)
		return nil, &PersistenceError{Op: "create transaction", Err: err}
	}
	log = log.With("transaction_id", rec.ID)
	log.Info("transaction pending")

	// From here on the caller cannot abort the pipeline.
	ctx = context.WithoutCancel(ctx)

	// Step 3: one attempt at code generation.
	code, err := s.codes.Generate(ctx, req.AccountID, req.Amount)
	if err == nil && code.Hash == "" {
		err = errors.New("code generator returned no hash")
	}
	if err != nil {
		log.Error("code generation failed", "error", err)
		s.markFailed(ctx, log, rec.ID)
		return nil, &ExternalServiceError{TransactionID: rec.ID, Cause: err}
	}

	// Step 4: complete, then credit.
	points := s.rate.Points(req.Amount)
	done, err := s.txs.UpdateTransaction(ctx, rec.ID, Completed(code.Hash, points))
	if err != nil {
		log.Error("completion write failed", "error", err)
		s.markFailed(ctx, log, rec.ID)
		return nil, &PersistenceError{Op: "complete transaction", Err: err}
	}
	log.Info("transaction completed", "code_hash", code.Hash, "points", points)

	acct, err := s.credit(ctx, req.AccountID, points)
	if err != nil {
		log.Error("INCONSISTENCY: transaction completed but balance not credited",
			"points", points, "error", err)
		return nil, &BalanceCreditError{Transaction: done, Err: err}
	}
	log.Info("balance credited", "balance", acct.Balance)

	// Step 5: best effort, never awaited.
	if s.notifier != nil {
		s.notifier.Notify(BalanceChanged{AccountID: acct.ID, Balance: acct.Balance, At: s.now()})
	}

	return &Receipt{Transaction: done, Balance: acct.Balance, Artifact: code.Image}, nil
}

func (s *Saga) validate(ctx context.Context, req Request) error {
	if _, err := s.ledger.GetAccount(ctx, req.AccountID); err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return &ReferenceNotFoundError{Which: RefAccount, ID: int64(req.AccountID)}
		}
		return &PersistenceError{Op: "get account", Err: err}
	}
	if _, err := s.ledger.GetVenue(ctx, req.VenueID); err != nil {
		if errors.Is(err, ErrVenueNotFound) {
			return &ReferenceNotFoundError{Which: RefVenue, ID: int64(req.VenueID)}
		}
		return &PersistenceError{Op: "get venue", Err: err}
	}
	return nil
}

// credit skips the store for zero-point purchases (possible with rates < 1).
func (s *Saga) credit(ctx context.Context, id AccountID, points int64) (Account, error) {
	if points == 0 {
		return s.ledger.GetAccount(ctx, id)
	}
	return s.ledger.CreditBalance(ctx, id, points)
}

// markFailed records the FAILED transition. If that write fails too the
// record stays PENDING; the error is logged, not returned.
func (s *Saga) markFailed(ctx context.Context, log *slog.Logger, id TransactionID) {
	if _, err := s.txs.UpdateTransaction(ctx, id, Failed()); err != nil {
		log.Error("could not mark transaction failed, left pending", "error", err)
		return
	}
	log.Info("transaction failed")
}

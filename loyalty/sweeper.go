/*
sweeper.go - Optional reconciliation of stale PENDING transactions

PURPOSE:
  A crash between the pending write and the terminal write leaves a
  record in PENDING forever. The Sweeper periodically finds PENDING
  records older than StaleAfter and moves them to FAILED.

DEFAULT:
  Disabled. The service only starts a Sweeper when SWEEP_INTERVAL > 0.
  It can also be run once from the CLI (loyaltyd sweep).

SAFETY:
  The store only updates records that are still PENDING, so a saga that
  finishes while the sweep is running wins; the sweep sees
  ErrInvalidTransition and skips that record. StaleAfter should be well
  above the code generator's timeouts.

  Swept records never had their balance credited (the credit only
  happens after COMPLETED), so FAILED is the accurate terminal state.

USAGE:
  sweeper := loyalty.NewSweeper(store, 30*time.Minute)
  sweeper.Start(5 * time.Minute)
  // ... later
  sweeper.Stop()

SEE ALSO:
  - saga.go: Produces the PENDING records
  - cmd/loyaltyd: Starts the sweeper when configured
*/
package loyalty

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// Sweeper marks abandoned PENDING transactions as FAILED.
type Sweeper struct {
	Store      TransactionStore
	StaleAfter time.Duration
	Logger     *slog.Logger
	Now        func() time.Time

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// SweepResult summarises one pass.
type SweepResult struct {
	Failed  int
	Skipped int
	Errors  int
}

// NewSweeper creates a sweeper for records older than staleAfter.
func NewSweeper(store TransactionStore, staleAfter time.Duration) *Sweeper {
	return &Sweeper{
		Store:      store,
		StaleAfter: staleAfter,
		Logger:     slog.Default().With("component", "sweeper"),
		Now:        time.Now,
	}
}

// Start runs a pass immediately and then every interval.
func (sw *Sweeper) Start(interval time.Duration) {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	if sw.ticker != nil {
		return
	}
	sw.ticker = time.NewTicker(interval)
	sw.stop = make(chan struct{})
	sw.wg.Add(1)
	go sw.run()

	sw.Logger.Info("sweeper started", "interval", interval, "stale_after", sw.StaleAfter)
}

// Stop halts the loop and waits for an in-flight pass to finish.
func (sw *Sweeper) Stop() {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	if sw.ticker == nil {
		return
	}
	sw.ticker.Stop()
	close(sw.stop)
	sw.wg.Wait()
	sw.ticker = nil
	sw.Logger.Info("sweeper stopped")
}

func (sw *Sweeper) run() {
	defer sw.wg.Done()

	sw.RunOnce(context.Background())
	for {
		select {
		case <-sw.ticker.C:
			sw.RunOnce(context.Background())
		case <-sw.stop:
			return
		}
	}
}

// RunOnce performs a single pass and reports what it did.
func (sw *Sweeper) RunOnce(ctx context.Context) (SweepResult, error) {
	var res SweepResult
	cutoff := sw.Now().UTC().Add(-sw.StaleAfter)

	pending, err := sw.Store.ListPending(ctx, cutoff)
	if err != nil {
		sw.Logger.Error("listing pending transactions failed", "error", err)
		return res, err
	}

	for _, rec := range pending {
		_, err := sw.Store.UpdateTransaction(ctx, rec.ID, Failed())
		switch {
		case err == nil:
			res.Failed++
			sw.Logger.Warn("stale pending transaction marked failed",
				"transaction_id", rec.ID, "account_id", rec.AccountID, "created_at", rec.CreatedAt)
		case errors.Is(err, ErrInvalidTransition):
			res.Skipped++
		default:
			res.Errors++
			sw.Logger.Error("could not fail stale transaction", "transaction_id", rec.ID, "error", err)
		}
	}

	if res.Failed > 0 || res.Errors > 0 {
		sw.Logger.Info("sweep completed", "failed", res.Failed, "skipped", res.Skipped, "errors", res.Errors)
	}
	return res, nil
}

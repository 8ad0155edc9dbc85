/*
Package sqlite provides a SQLite-backed implementation of loyalty.Store.

PURPOSE:
  Default durable engine for accounts, venues and transaction records.
  The same schema and statements run on PostgreSQL with dialect changes
  only (see store/postgres).

KEY TABLES:
  accounts:     id, balance (never negative)
  venues:       id, name, location
  transactions: one row per purchase, status PENDING|COMPLETED|FAILED

INDEXES:
  - idx_transactions_account: per-account history (API)
  - idx_transactions_status_created: stale PENDING lookup (sweep)

CREDIT ATOMICITY:
  CreditBalance is a single UPDATE ... SET balance = balance + ? RETURNING
  statement, so concurrent credits never lose an update, even across
  processes sharing the file.

STATUS GUARD:
  UpdateTransaction reads the row, validates the transition with
  TransactionRecord.Apply, and writes with "AND status = 'PENDING'" in
  the same database transaction.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety on top of SQLite's own locking.
  In-memory databases are pinned to one connection so every caller sees
  the same database.

WAL MODE:
  Opened with WAL (Write-Ahead Logging): readers don't block the writer.

USAGE:
  store, err := sqlite.New("./data/loyalty.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - loyalty/store.go: Interface definitions
  - loyalty/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/warp/loyalty-engine/loyalty"
)

// timeLayout keeps timestamps fixed-width so text comparison orders them.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store implements loyalty.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var _ loyalty.Store = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS accounts (
		id INTEGER PRIMARY KEY,
		balance INTEGER NOT NULL DEFAULT 0 CHECK (balance >= 0),
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS venues (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		location TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	-- Transactions: created PENDING, moved once to COMPLETED or FAILED
	CREATE TABLE IF NOT EXISTS transactions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		account_id INTEGER NOT NULL REFERENCES accounts(id),
		venue_id INTEGER NOT NULL REFERENCES venues(id),
		amount INTEGER NOT NULL CHECK (amount > 0),
		points_earned INTEGER NOT NULL DEFAULT 0,
		code_hash TEXT,
		status TEXT NOT NULL DEFAULT 'PENDING'
			CHECK (status IN ('PENDING', 'COMPLETED', 'FAILED')),
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_transactions_account
		ON transactions(account_id, id DESC);

	CREATE INDEX IF NOT EXISTS idx_transactions_status_created
		ON transactions(status, created_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// LEDGER STORE (loyalty.LedgerStore interface)
// =============================================================================

// SaveAccount inserts or replaces an account.
func (s *Store) SaveAccount(ctx context.Context, a loyalty.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO accounts (id, balance, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET balance = excluded.balance
	`
	_, err := s.db.ExecContext(ctx, query, a.ID, a.Balance, formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("failed to save account %d: %w", a.ID, err)
	}
	return nil
}

// SaveVenue inserts or replaces a venue.
func (s *Store) SaveVenue(ctx context.Context, v loyalty.Venue) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO venues (id, name, location, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			location = excluded.location
	`
	_, err := s.db.ExecContext(ctx, query, v.ID, v.Name, v.Location, formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("failed to save venue %d: %w", v.ID, err)
	}
	return nil
}

// GetAccount retrieves an account by ID.
func (s *Store) GetAccount(ctx context.Context, id loyalty.AccountID) (loyalty.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var a loyalty.Account
	err := s.db.QueryRowContext(ctx,
		"SELECT id, balance FROM accounts WHERE id = ?", id,
	).Scan(&a.ID, &a.Balance)

	if errors.Is(err, sql.ErrNoRows) {
		return loyalty.Account{}, loyalty.ErrAccountNotFound
	}
	if err != nil {
		return loyalty.Account{}, fmt.Errorf("failed to get account %d: %w", id, err)
	}
	return a, nil
}

// GetVenue retrieves a venue by ID.
func (s *Store) GetVenue(ctx context.Context, id loyalty.VenueID) (loyalty.Venue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var v loyalty.Venue
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, location FROM venues WHERE id = ?", id,
	).Scan(&v.ID, &v.Name, &v.Location)

	if errors.Is(err, sql.ErrNoRows) {
		return loyalty.Venue{}, loyalty.ErrVenueNotFound
	}
	if err != nil {
		return loyalty.Venue{}, fmt.Errorf("failed to get venue %d: %w", id, err)
	}
	return v, nil
}

// CreditBalance adds delta to the balance in one statement.
func (s *Store) CreditBalance(ctx context.Context, id loyalty.AccountID, delta int64) (loyalty.Account, error) {
	if delta <= 0 {
		return loyalty.Account{}, loyalty.ErrInvalidAmount
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var a loyalty.Account
	err := s.db.QueryRowContext(ctx,
		"UPDATE accounts SET balance = balance + ? WHERE id = ? RETURNING id, balance",
		delta, id,
	).Scan(&a.ID, &a.Balance)

	if errors.Is(err, sql.ErrNoRows) {
		return loyalty.Account{}, loyalty.ErrAccountNotFound
	}
	if err != nil {
		return loyalty.Account{}, fmt.Errorf("failed to credit account %d: %w", id, err)
	}
	return a, nil
}

// =============================================================================
// TRANSACTION STORE (loyalty.TransactionStore interface)
// =============================================================================

const selectTransaction = `
	SELECT id, account_id, venue_id, amount, points_earned, code_hash, status, created_at
	FROM transactions
`

// CreateTransaction inserts a record and returns it with its new ID.
func (s *Store) CreateTransaction(ctx context.Context, rec loyalty.TransactionRecord) (loyalty.TransactionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO transactions
		(account_id, venue_id, amount, points_earned, code_hash, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	res, err := s.db.ExecContext(ctx, query,
		rec.AccountID,
		rec.VenueID,
		rec.Amount,
		rec.PointsEarned,
		nullString(rec.CodeHash),
		string(rec.Status),
		formatTime(rec.CreatedAt),
	)
	if err != nil {
		return loyalty.TransactionRecord{}, fmt.Errorf("failed to insert transaction: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return loyalty.TransactionRecord{}, fmt.Errorf("failed to read transaction id: %w", err)
	}
	rec.ID = loyalty.TransactionID(id)
	return rec, nil
}

// UpdateTransaction applies a terminal transition to a PENDING record.
func (s *Store) UpdateTransaction(ctx context.Context, id loyalty.TransactionID, u loyalty.TransactionUpdate) (loyalty.TransactionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return loyalty.TransactionRecord{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	rows, err := sqlTx.QueryContext(ctx, selectTransaction+" WHERE id = ?", id)
	if err != nil {
		return loyalty.TransactionRecord{}, fmt.Errorf("failed to load transaction %d: %w", id, err)
	}
	recs, err := scanTransactions(rows)
	if err != nil {
		return loyalty.TransactionRecord{}, err
	}
	if len(recs) == 0 {
		return loyalty.TransactionRecord{}, loyalty.ErrTransactionNotFound
	}

	next, err := recs[0].Apply(u)
	if err != nil {
		return recs[0], err
	}

	res, err := sqlTx.ExecContext(ctx, `
		UPDATE transactions
		SET status = ?, points_earned = ?, code_hash = ?
		WHERE id = ? AND status = 'PENDING'
	`, string(next.Status), next.PointsEarned, nullString(next.CodeHash), id)
	if err != nil {
		return loyalty.TransactionRecord{}, fmt.Errorf("failed to update transaction %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n != 1 {
		return recs[0], &loyalty.TransitionError{ID: id, From: recs[0].Status, To: u.Status}
	}

	if err := sqlTx.Commit(); err != nil {
		return loyalty.TransactionRecord{}, fmt.Errorf("failed to commit transaction %d: %w", id, err)
	}
	return next, nil
}

// GetTransaction returns a specific transaction by ID.
func (s *Store) GetTransaction(ctx context.Context, id loyalty.TransactionID) (loyalty.TransactionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	recs, err := s.queryTransactions(ctx, selectTransaction+" WHERE id = ?", id)
	if err != nil {
		return loyalty.TransactionRecord{}, err
	}
	if len(recs) == 0 {
		return loyalty.TransactionRecord{}, loyalty.ErrTransactionNotFound
	}
	return recs[0], nil
}

// ListTransactions returns an account's transactions, newest first.
func (s *Store) ListTransactions(ctx context.Context, accountID loyalty.AccountID) ([]loyalty.TransactionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryTransactions(ctx, selectTransaction+" WHERE account_id = ? ORDER BY id DESC", accountID)
}

// ListPending returns PENDING transactions created before the cutoff.
func (s *Store) ListPending(ctx context.Context, createdBefore time.Time) ([]loyalty.TransactionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryTransactions(ctx,
		selectTransaction+" WHERE status = 'PENDING' AND created_at < ? ORDER BY id ASC",
		formatTime(createdBefore),
	)
}

func (s *Store) queryTransactions(ctx context.Context, query string, args ...any) ([]loyalty.TransactionRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	return scanTransactions(rows)
}

// scanTransactions reads and closes rows.
func scanTransactions(rows *sql.Rows) ([]loyalty.TransactionRecord, error) {
	defer rows.Close()

	var result []loyalty.TransactionRecord
	for rows.Next() {
		var (
			rec       loyalty.TransactionRecord
			hash      sql.NullString
			status    string
			createdAt string
		)
		if err := rows.Scan(&rec.ID, &rec.AccountID, &rec.VenueID, &rec.Amount,
			&rec.PointsEarned, &hash, &status, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}

		st, err := loyalty.ParseStatus(status)
		if err != nil {
			return nil, err
		}
		rec.Status = st
		if hash.Valid {
			h := hash.String
			rec.CodeHash = &h
		}
		rec.CreatedAt, err = time.Parse(timeLayout, createdAt)
		if err != nil {
			return nil, fmt.Errorf("transaction %d: bad created_at %q: %w", rec.ID, createdAt, err)
		}
		result = append(result, rec)
	}
	return result, rows.Err()
}

// =============================================================================
// UTILITIES
// =============================================================================

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// Package sqlite provides the SQLite-backed implementation of the
// app.TicketStore port. Every mutation is a single conditional UPDATE so the
// ticket invariants (monotonic attempts, absorbing used flag) hold under
// concurrent requests without application-level locking.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/pixelock/pixelock/internal/app"
	"github.com/pixelock/pixelock/internal/domain"

	// database/sql SQLite driver
	_ "github.com/mattn/go-sqlite3"
)

var _ app.TicketStore = (*Store)(nil)

// Store implements app.TicketStore using SQLite (via database/sql). It is
// safe for concurrent use; database/sql manages connection pooling and
// serialization.
type Store struct{ db *sql.DB }

// New constructs a Store, initializing the required schema if absent.
func New(db *sql.DB) (*Store, error) {
	s := &Store{db: db}
	if err := s.init(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) init() error {
	schema := `CREATE TABLE IF NOT EXISTS tickets (
token TEXT PRIMARY KEY,
object_path TEXT NOT NULL,
pin_hash TEXT NOT NULL,
expires_at INTEGER NOT NULL,
reveal_seconds INTEGER NOT NULL,
attempts INTEGER NOT NULL DEFAULT 0,
max_attempts INTEGER NOT NULL,
used INTEGER NOT NULL DEFAULT 0,
created_at INTEGER NOT NULL,
unlocked_at INTEGER,
last_failed_at INTEGER
);`
	_, err := s.db.Exec(schema)
	return err
}

// Insert stores a new ticket row.
func (s *Store) Insert(ctx context.Context, t domain.Ticket) error {
	const q = `INSERT INTO tickets
(token, object_path, pin_hash, expires_at, reveal_seconds, attempts, max_attempts, used, created_at, unlocked_at, last_failed_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?)`
	used := 0
	if t.Used {
		used = 1
	}
	_, err := s.db.ExecContext(ctx, q,
		t.Token.String(), t.ObjectPath, t.PINHash, t.ExpiresAt.Unix(), t.RevealSeconds,
		t.Attempts, t.MaxAttempts, used, t.CreatedAt.Unix(),
		nullableUnix(t.UnlockedAt), nullableUnix(t.LastFailedAt))
	return err
}

// Get returns the ticket row for token, or domain.ErrTicketNotFound.
func (s *Store) Get(ctx context.Context, token domain.Token) (domain.Ticket, error) {
	const q = `SELECT object_path, pin_hash, expires_at, reveal_seconds, attempts, max_attempts, used, created_at, unlocked_at, last_failed_at
FROM tickets WHERE token = ?`
	var (
		t            domain.Ticket
		usedInt      int
		expiresUnix  int64
		createdUnix  int64
		unlockedUnix sql.NullInt64
		failedUnix   sql.NullInt64
	)
	row := s.db.QueryRowContext(ctx, q, token.String())
	if err := row.Scan(&t.ObjectPath, &t.PINHash, &expiresUnix, &t.RevealSeconds,
		&t.Attempts, &t.MaxAttempts, &usedInt, &createdUnix, &unlockedUnix, &failedUnix); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Ticket{}, domain.ErrTicketNotFound
		}
		return domain.Ticket{}, err
	}
	t.Token = token
	t.Used = usedInt == 1
	t.ExpiresAt = time.Unix(expiresUnix, 0).UTC()
	t.CreatedAt = time.Unix(createdUnix, 0).UTC()
	t.UnlockedAt = unixPtr(unlockedUnix)
	t.LastFailedAt = unixPtr(failedUnix)
	return t, nil
}

// RegisterFailure increments attempts and stamps last_failed_at in one
// statement. The guard clauses keep the counter inside [0, max_attempts]
// and stop counting once the ticket is terminal; losing the race to either
// guard is not an error.
func (s *Store) RegisterFailure(ctx context.Context, token domain.Token, now time.Time) error {
	const q = `UPDATE tickets SET attempts = attempts + 1, last_failed_at = ?
WHERE token = ? AND used = 0 AND attempts < max_attempts`
	_, err := s.db.ExecContext(ctx, q, now.Unix(), token.String())
	return err
}

// MarkUnlocked stamps unlocked_at unless a concurrent expire already flipped
// the used flag, in which case it returns domain.ErrTicketGone.
func (s *Store) MarkUnlocked(ctx context.Context, token domain.Token, now time.Time) error {
	const q = `UPDATE tickets SET unlocked_at = ? WHERE token = ? AND used = 0`
	res, err := s.db.ExecContext(ctx, q, now.Unix(), token.String())
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	// Distinguish a vanished row from one terminally used.
	var usedInt int
	err = s.db.QueryRowContext(ctx, `SELECT used FROM tickets WHERE token = ?`, token.String()).Scan(&usedInt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrTicketNotFound
	}
	if err != nil {
		return err
	}
	return domain.ErrTicketGone
}

// MarkUsed flips the terminal used flag exactly once and reports whether
// this call performed the flip.
func (s *Store) MarkUsed(ctx context.Context, token domain.Token) (bool, error) {
	const q = `UPDATE tickets SET used = 1 WHERE token = ? AND used = 0`
	res, err := s.db.ExecContext(ctx, q, token.String())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// PurgeDead hard-deletes used rows and rows whose expiry precedes the cutoff,
// returning their object paths so the caller can reap backing media. Selection
// and deletion run in one transaction so no row is deleted unreported.
func (s *Store) PurgeDead(ctx context.Context, before time.Time) (paths []string, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const sel = `SELECT object_path FROM tickets WHERE used = 1 OR expires_at < ?`
	rows, err := tx.QueryContext(ctx, sel, before.Unix())
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var p string
		if err = rows.Scan(&p); err != nil {
			if cErr := rows.Close(); cErr != nil {
				return nil, fmt.Errorf("scan error: %v; close error: %w", err, cErr)
			}
			return nil, err
		}
		paths = append(paths, p)
	}
	if cErr := rows.Close(); cErr != nil {
		err = cErr
		return nil, err
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	const del = `DELETE FROM tickets WHERE used = 1 OR expires_at < ?`
	if _, err = tx.ExecContext(ctx, del, before.Unix()); err != nil {
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		return nil, err
	}
	return paths, nil
}

// ListObjectPaths returns the object paths referenced by all live rows.
func (s *Store) ListObjectPaths(ctx context.Context) ([]string, error) {
	const q = `SELECT object_path FROM tickets`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var paths []string
	for rows.Next() {
		var p string
		if err = rows.Scan(&p); err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return paths, nil
}

func nullableUnix(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Unix()
}

func unixPtr(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.Unix(v.Int64, 0).UTC()
	return &t
}

// Package app defines the application layer "ports" (interfaces) that the
// ticket lifecycle use-cases of PIXELock depend upon. It follows a hexagonal
// (ports & adapters) design: this package declares what the core needs, while
// adapter packages (SQLite ticket store, filesystem media store, HTTP layer,
// janitor jobs) provide concrete implementations. No I/O, logging, SQL, or
// network concerns belong here.
package app

import (
	"context"
	"io"
	"time"

	"github.com/pixelock/pixelock/internal/domain"
)

// Clock abstracts time to enable deterministic testing of expiry logic.
type Clock interface {
	// Now returns the current wall-clock time.
	Now() time.Time
}

// TicketStore is the persistence port for ticket rows. The ticket table is
// the single source of truth for cross-request consistency: every mutation
// here must be a single atomic conditional update so that concurrent
// redeem/expire calls cannot lose writes or bypass the terminal used flag.
type TicketStore interface {
	// Insert persists a fully formed new ticket row. The row either exists
	// completely or not at all; no partial state.
	Insert(ctx context.Context, t domain.Ticket) error

	// Get returns the ticket for token, or domain.ErrTicketNotFound.
	Get(ctx context.Context, token domain.Token) (domain.Ticket, error)

	// RegisterFailure atomically increments the failed-attempt counter and
	// stamps last_failed_at, guarded by used=0 and attempts < max_attempts.
	// Concurrent failures each count; the counter never decreases.
	RegisterFailure(ctx context.Context, token domain.Token, now time.Time) error

	// MarkUnlocked stamps unlocked_at, conditional on used=0. If a
	// concurrent expire already flipped the used flag it returns
	// domain.ErrTicketGone and the caller must not issue a signed URL.
	MarkUnlocked(ctx context.Context, token domain.Token, now time.Time) error

	// MarkUsed sets used=1 only if it was 0, and reports whether this call
	// performed the flip. Safe to call any number of times.
	MarkUsed(ctx context.Context, token domain.Token) (flipped bool, err error)

	// PurgeDead hard-deletes rows that are used or expired before the given
	// cutoff and returns the object paths they referenced, for media cleanup.
	PurgeDead(ctx context.Context, before time.Time) (objectPaths []string, err error)

	// ListObjectPaths returns the object paths of all live rows, for
	// reconciling orphaned media objects.
	ListObjectPaths(ctx context.Context) ([]string, error)
}

// MediaStore is the object-storage port: upload by key, deletion by key, and
// issuance of short-lived signed retrieval URLs.
type MediaStore interface {
	// Put stores exactly size bytes from r under key. Keys are write-once;
	// overwriting an existing object is an error.
	Put(ctx context.Context, key string, r io.Reader, size int64) error

	// SignedURL returns a time-limited retrieval URL for key. It does not
	// verify the object exists.
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)

	// Delete removes the object for key. Deleting a missing object is not
	// an error.
	Delete(ctx context.Context, key string) error

	// List returns all object keys currently stored, for orphan cleanup.
	List(ctx context.Context) ([]string, error)
}

// MetricsRecorder receives operational counter increments. Implementations
// must be safe for concurrent use; a nil recorder disables recording.
type MetricsRecorder interface {
	Inc(name string, delta int64)
}

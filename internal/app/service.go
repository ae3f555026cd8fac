// Package app contains the application orchestration layer for PIXELock. It
// wires the ticket state machine to the persistence ports without performing
// any I/O itself.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pixelock/pixelock/internal/domain"
)

// ErrMissingObjectPath indicates ticket creation was requested without a stored object key.
var ErrMissingObjectPath = errors.New("missing object path")

// ErrSizeExceeded indicates the uploaded payload is empty or exceeds the configured maximum.
var ErrSizeExceeded = errors.New("size exceeded")

// ErrUnsupportedMedia indicates an upload with a non-image content type.
var ErrUnsupportedMedia = errors.New("unsupported media type")

// Counter names recorded through the MetricsRecorder.
const (
	CounterTicketsCreated  = "tickets_created_total"
	CounterTicketsUnlocked = "tickets_unlocked_total"
	CounterPINFailures     = "pin_failures_total"
	CounterTicketsExpired  = "tickets_expired_total"
	CounterObjectsUploaded = "objects_uploaded_total"
)

// RedeemResult is returned on a successful unlock.
type RedeemResult struct {
	SignedURL     string
	RevealSeconds int
}

// Service orchestrates the ticket lifecycle (create, redeem, expire) plus the
// upload pass-through, using the injected stores and clock.
type Service struct {
	Tickets TicketStore
	Media   MediaStore
	Clock   Clock
	Metrics MetricsRecorder // optional

	LinkTTL        time.Duration // lifespan of a newly created ticket
	RevealSeconds  int           // reveal window recorded on each ticket
	MaxAttempts    int           // per-ticket PIN attempt cap
	SignedURLTTL   time.Duration // lifespan of issued retrieval URLs
	MaxUploadBytes int64         // upload size cap
}

// Upload stores an image payload and returns the object key a subsequent
// Create call references. Keys embed a millisecond timestamp and a UUID so
// they are unique without coordination.
func (s *Service) Upload(ctx context.Context, r io.Reader, size int64, filename, contentType string) (string, error) {
	if size <= 0 || size > s.MaxUploadBytes {
		return "", ErrSizeExceeded
	}
	if contentType != "" && !strings.HasPrefix(contentType, "image/") {
		return "", ErrUnsupportedMedia
	}
	key := fmt.Sprintf("%d_%s%s", s.Clock.Now().UnixMilli(), uuid.New().String(), objectExt(filename))
	if err := s.Media.Put(ctx, key, r, size); err != nil {
		return "", err
	}
	s.inc(CounterObjectsUploaded)
	return key, nil
}

// objectExt extracts a safe lowercase extension from the uploaded filename,
// defaulting to .jpg when absent or suspicious.
func objectExt(filename string) string {
	ext := strings.ToLower(path.Ext(path.Base(filename)))
	if ext == "" || ext == "." || len(ext) > 8 {
		return ".jpg"
	}
	for i := 1; i < len(ext); i++ {
		c := ext[i]
		if (c < 'a' || c > 'z') && (c < '0' || c > '9') {
			return ".jpg"
		}
	}
	return ext
}

// Create mints a ticket for an already-stored object and persists it.
// It returns the share token and the plaintext PIN. The PIN is disclosed
// exactly once here and is never recoverable afterward; only its digest is
// stored.
func (s *Service) Create(ctx context.Context, objectPath string) (token domain.Token, pin string, expiresAt time.Time, err error) {
	if objectPath == "" {
		return "", "", time.Time{}, ErrMissingObjectPath
	}
	token, err = domain.NewToken()
	if err != nil {
		return "", "", time.Time{}, err
	}
	pin, err = domain.NewPIN()
	if err != nil {
		return "", "", time.Time{}, err
	}
	now := s.Clock.Now()
	expiresAt = now.Add(s.LinkTTL)
	t := domain.Ticket{
		Token:         token,
		ObjectPath:    objectPath,
		PINHash:       domain.HashPIN(pin),
		ExpiresAt:     expiresAt,
		RevealSeconds: s.RevealSeconds,
		MaxAttempts:   s.MaxAttempts,
		CreatedAt:     now,
	}
	if err = s.Tickets.Insert(ctx, t); err != nil {
		return "", "", time.Time{}, err
	}
	s.inc(CounterTicketsCreated)
	return token, pin, expiresAt, nil
}

// Redeem validates token+pin against the stored ticket and, on success,
// issues a time-limited signed retrieval URL. State precedence is evaluated
// once, in fixed order: used > expired-by-time > locked-out > PIN check.
//
// The unlocked_at write happens before signed-URL issuance and is conditional
// on the ticket not being concurrently expired; if an expire wins that race
// the redeem fails with domain.ErrTicketGone and no URL is issued.
func (s *Service) Redeem(ctx context.Context, tokenStr, pin string) (RedeemResult, error) {
	token, err := domain.ParseToken(tokenStr)
	if err != nil {
		// Malformed tokens cannot resolve to a ticket; collapse to the same
		// answer a lookup miss gives so the shapes of real tokens leak nothing.
		return RedeemResult{}, domain.ErrTicketNotFound
	}
	t, err := s.Tickets.Get(ctx, token)
	if err != nil {
		return RedeemResult{}, err
	}
	now := s.Clock.Now()
	switch t.Status(now) {
	case domain.StatusUsed, domain.StatusExpired:
		return RedeemResult{}, domain.ErrTicketGone
	case domain.StatusLockedOut:
		return RedeemResult{}, domain.ErrTicketLocked
	}
	if !domain.PINMatches(pin, t.PINHash) {
		// The failed attempt is counted even when the store write fails;
		// the caller still learns only that the PIN was wrong.
		if ferr := s.Tickets.RegisterFailure(ctx, token, now); ferr != nil {
			slog.Error("register pin failure", "err", ferr)
		}
		s.inc(CounterPINFailures)
		return RedeemResult{}, domain.ErrWrongPIN
	}
	if err := s.Tickets.MarkUnlocked(ctx, token, now); err != nil {
		return RedeemResult{}, err
	}
	url, err := s.Media.SignedURL(ctx, t.ObjectPath, s.SignedURLTTL)
	if err != nil {
		// The ticket is already marked unlocked; a retry can still obtain a
		// URL since unlocked tickets remain redeemable.
		return RedeemResult{}, err
	}
	s.inc(CounterTicketsUnlocked)
	return RedeemResult{SignedURL: url, RevealSeconds: t.RevealSeconds}, nil
}

// Expire terminally invalidates a ticket and best-effort deletes its backing
// object. It never returns an error: expiry is typically fired by an
// unsupervised client-side timer, so failures are reported as a soft false
// and logged rather than surfaced. Calling Expire repeatedly is safe; only
// the call that flips the used flag attempts media deletion.
func (s *Service) Expire(ctx context.Context, tokenStr string) (ok bool) {
	token, err := domain.ParseToken(tokenStr)
	if err != nil {
		return true // nothing such a token could reference
	}
	t, err := s.Tickets.Get(ctx, token)
	if err != nil {
		if errors.Is(err, domain.ErrTicketNotFound) {
			return true // idempotent: nothing to clean up
		}
		slog.Error("expire lookup", "err", err)
		return false
	}
	flipped, err := s.Tickets.MarkUsed(ctx, token)
	if err != nil {
		slog.Error("expire mark used", "err", err)
		return false
	}
	if !flipped {
		return true // already terminal; no further mutation or deletion
	}
	s.inc(CounterTicketsExpired)
	if derr := s.Media.Delete(ctx, t.ObjectPath); derr != nil {
		// The ticket is already invalidated from the viewer's perspective.
		slog.Warn("expire media delete", "key", t.ObjectPath, "err", derr)
	}
	return true
}

func (s *Service) inc(name string) {
	if s.Metrics != nil {
		s.Metrics.Inc(name, 1)
	}
}

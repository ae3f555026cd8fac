// Package domain ticket.go contains the ticket model and its status machine.
package domain

import "time"

// Ticket is the durable record representing one share: its token, PIN
// digest, target object, and consumption state. All fields except
// Attempts, Used, UnlockedAt, and LastFailedAt are immutable after
// creation.
type Ticket struct {
	Token         Token
	ObjectPath    string
	PINHash       string
	ExpiresAt     time.Time
	RevealSeconds int
	Attempts      int
	MaxAttempts   int
	Used          bool
	CreatedAt     time.Time
	UnlockedAt    *time.Time
	LastFailedAt  *time.Time
}

// TicketStatus is the explicit state of a ticket, computed deterministically
// from its stored fields plus the current time. It replaces loose checking
// of the used/expires_at/attempts flags with a single precedence order.
type TicketStatus int

const (
	// StatusActive: redeemable, not yet unlocked, attempts remaining.
	StatusActive TicketStatus = iota
	// StatusUnlocked: the PIN matched at least once; still redeemable.
	StatusUnlocked
	// StatusLockedOut: failed attempts reached the cap.
	StatusLockedOut
	// StatusExpired: past expires_at.
	StatusExpired
	// StatusUsed: explicitly purged. Terminal and absorbing.
	StatusUsed
)

// String returns a short name for logging.
func (s TicketStatus) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusUnlocked:
		return "unlocked"
	case StatusLockedOut:
		return "locked_out"
	case StatusExpired:
		return "expired"
	case StatusUsed:
		return "used"
	default:
		return "unknown"
	}
}

// Status evaluates the ticket's state at the given instant. Precedence is
// fixed: Used > Expired > LockedOut > Unlocked > Active. Every operation
// evaluates this exactly once before acting.
func (t Ticket) Status(now time.Time) TicketStatus {
	switch {
	case t.Used:
		return StatusUsed
	case now.After(t.ExpiresAt):
		return StatusExpired
	case t.Attempts >= t.MaxAttempts:
		return StatusLockedOut
	case t.UnlockedAt != nil:
		return StatusUnlocked
	default:
		return StatusActive
	}
}

// Redeemable reports whether a redeem call may proceed to the PIN check.
func (t Ticket) Redeemable(now time.Time) bool {
	s := t.Status(now)
	return s == StatusActive || s == StatusUnlocked
}

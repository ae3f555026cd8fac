// Package domain errors.go contains sentinel errors
package domain

import "errors"

// Sentinel domain-level errors reused by higher layers.
var (
	// ErrInvalidToken indicates a malformed share token.
	ErrInvalidToken = errors.New("invalid token")
	// ErrTicketNotFound indicates no ticket resolves to the given token.
	ErrTicketNotFound = errors.New("ticket not found")
	// ErrTicketGone indicates the ticket is terminally unusable (used or past expiry).
	ErrTicketGone = errors.New("ticket gone")
	// ErrTicketLocked indicates the PIN attempt cap has been reached.
	ErrTicketLocked = errors.New("ticket locked")
	// ErrWrongPIN indicates a PIN mismatch with attempts remaining.
	ErrWrongPIN = errors.New("wrong pin")
	// ErrInvalidObjectKey indicates a malformed media object key.
	ErrInvalidObjectKey = errors.New("invalid object key")
)

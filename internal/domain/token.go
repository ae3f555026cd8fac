// Package domain token.go contains functions to generate, parse, and validate share tokens.
package domain

import (
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// TokenLength is the canonical share token length. Each character carries
// 6 bits of entropy (64-char alphabet), so 16 characters yield 96 bits.
const TokenLength = 16

// tokenAlphabet is the URL-safe alphabet tokens are drawn from.
const tokenAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz-_"

// Token is the public, unguessable identifier embedded in a share URL.
type Token string

// NewToken generates a cryptographically random URL-safe Token of TokenLength characters.
func NewToken() (Token, error) {
	s, err := gonanoid.Generate(tokenAlphabet, TokenLength)
	if err != nil {
		return "", err
	}
	return Token(s), nil
}

// ParseToken validates s and returns it as a Token. It enforces:
// - non-empty
// - length == TokenLength
// - only characters from the token alphabet
// Returns ErrInvalidToken on failure.
func ParseToken(s string) (Token, error) {
	if !isValidToken(s) {
		return "", ErrInvalidToken
	}
	return Token(s), nil
}

// String returns the string form of the Token.
func (t Token) String() string { return string(t) }

// Valid reports whether the token satisfies the same rules as ParseToken.
func (t Token) Valid() bool { return isValidToken(string(t)) }

// isValidToken performs validation without allocating errors.
func isValidToken(s string) bool {
	if len(s) != TokenLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9':
		case c >= 'A' && c <= 'Z':
		case c >= 'a' && c <= 'z':
		case c == '-' || c == '_':
		default:
			return false
		}
	}
	return true
}

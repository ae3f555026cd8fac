// Package domain pin.go contains PIN generation and digest functions.
package domain

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
)

// PINLength is the number of digits in a share PIN.
const PINLength = 4

// pinSpace is the number of possible PINs ("0000" through "9999").
const pinSpace = 10000

// NewPIN generates a uniformly random 4-digit numeric PIN from a
// cryptographically secure source. Leading zeros are preserved.
func NewPIN() (string, error) {
	// Rejection sampling over 16-bit draws to avoid modulo bias.
	const limit = (1 << 16) / pinSpace * pinSpace
	var b [2]byte
	for {
		if _, err := rand.Read(b[:]); err != nil {
			return "", err
		}
		v := binary.BigEndian.Uint16(b[:])
		if v < limit {
			return fmt.Sprintf("%04d", v%pinSpace), nil
		}
	}
}

// HashPIN returns the deterministic one-way digest of pin: SHA-256 encoded
// as lowercase hex. The digest is unsalted so that verification is a pure
// equality check against the stored value; the attempt cap, not the digest,
// defends the small PIN space.
func HashPIN(pin string) string {
	sum := sha256.Sum256([]byte(pin))
	return hex.EncodeToString(sum[:])
}

// PINMatches reports whether pin hashes to storedHash using a constant-time
// comparison over the digest bytes.
func PINMatches(pin, storedHash string) bool {
	return hmac.Equal([]byte(HashPIN(pin)), []byte(storedHash))
}

// ValidPIN reports whether s is exactly PINLength ASCII digits.
func ValidPIN(s string) bool {
	if len(s) != PINLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

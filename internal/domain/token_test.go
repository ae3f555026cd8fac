package domain

import "testing"

func TestNewTokenShape(t *testing.T) {
	tok, err := NewToken()
	if err != nil {
		t.Fatalf("NewToken error: %v", err)
	}
	if !tok.Valid() {
		t.Fatalf("generated token invalid: %q", tok)
	}
	if len(tok.String()) != TokenLength {
		t.Fatalf("length mismatch: got %d want %d", len(tok), TokenLength)
	}
}

// TestNewTokenUniqueness generates a large batch and asserts zero collisions.
func TestNewTokenUniqueness(t *testing.T) {
	const n = 10000
	seen := make(map[Token]struct{}, n)
	for i := 0; i < n; i++ {
		tok, err := NewToken()
		if err != nil {
			t.Fatalf("NewToken error at %d: %v", i, err)
		}
		if _, dup := seen[tok]; dup {
			t.Fatalf("token collision after %d draws: %q", i, tok)
		}
		seen[tok] = struct{}{}
	}
}

func TestParseToken(t *testing.T) {
	tests := []struct {
		name string
		in   string
		ok   bool
	}{
		{"valid_mixed", "aB3_xY9-qW2zT0vM", true},
		{"empty", "", false},
		{"short", "abc", false},
		{"long", "aB3_xY9-qW2zT0vMX", false},
		{"bad_char", "aB3_xY9-qW2zT0v!", false},
		{"space", "aB3 xY9-qW2zT0vM", false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tok, err := ParseToken(tc.in)
			if tc.ok && err != nil {
				t.Fatalf("expected valid, got %v", err)
			}
			if !tc.ok && err != ErrInvalidToken {
				t.Fatalf("expected ErrInvalidToken, got %v", err)
			}
			if tc.ok && tok.String() != tc.in {
				t.Fatalf("round-trip mismatch: %q", tok)
			}
		})
	}
}

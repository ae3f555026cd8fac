package media

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Signed-URL verification errors. Both map to the same client response so a
// probe cannot tell a forged signature from a stale one.
var (
	ErrBadSignature = errors.New("bad signature")
	ErrURLExpired   = errors.New("url expired")
)

// Signer issues and verifies HMAC-authenticated retrieval URLs of the form
//
//	{base}/media/{key}?exp={unix}&sig={base64url(hmac-sha256(key "\n" exp))}
//
// The URL grants direct read access to one object until exp with no further
// authorization checks, standing in for a hosted store's signed-URL feature.
type Signer struct {
	key  []byte
	base string
}

// NewSigner returns a Signer. base is the externally reachable URL prefix
// (scheme://host[:port], no trailing slash); key is the shared HMAC secret.
func NewSigner(key []byte, base string) *Signer {
	return &Signer{key: key, base: strings.TrimRight(base, "/")}
}

// Sign returns a retrieval URL for key valid until expiresAt.
func (s *Signer) Sign(key string, expiresAt time.Time) string {
	exp := expiresAt.Unix()
	return fmt.Sprintf("%s/media/%s?exp=%d&sig=%s", s.base, url.PathEscape(key), exp, s.mac(key, exp))
}

// Verify checks sig against key and exp, then checks exp against now.
// Signature verification runs first and in constant time, so expiry probing
// reveals nothing about signature validity.
func (s *Signer) Verify(key string, exp int64, sig string, now time.Time) error {
	want := s.mac(key, exp)
	if !hmac.Equal([]byte(want), []byte(sig)) {
		return ErrBadSignature
	}
	if now.Unix() > exp {
		return ErrURLExpired
	}
	return nil
}

func (s *Signer) mac(key string, exp int64) string {
	m := hmac.New(sha256.New, s.key)
	m.Write([]byte(key))
	m.Write([]byte{'\n'})
	m.Write([]byte(strconv.FormatInt(exp, 10)))
	return base64.RawURLEncoding.EncodeToString(m.Sum(nil))
}

// Package media provides the object-storage side of PIXELock: a filesystem
// store for uploaded images plus HMAC-signed, time-limited retrieval URLs.
// It implements the app.MediaStore port.
package media

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/pixelock/pixelock/internal/app"
	"github.com/pixelock/pixelock/internal/domain"
)

var _ app.MediaStore = (*Store)(nil)

// Store persists image objects as immutable files under a single root
// directory and issues signed URLs through an injected Signer.
type Store struct {
	root   string
	signer *Signer
	clock  app.Clock
}

// New returns a filesystem-backed media store rooted at dir. The directory
// must already exist with secure permissions (0700 recommended).
func New(root string, signer *Signer, clock app.Clock) (*Store, error) {
	fi, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !fi.IsDir() {
		return nil, errors.New("media root is not a directory")
	}
	return &Store{root: root, signer: signer, clock: clock}, nil
}

// path constructs the full path to the object file for a given key.
func (s *Store) path(key string) string { return filepath.Join(s.root, key) }

// Put stores exactly size bytes from r under key. The file is created
// exclusively so keys are write-once; a partial file is removed on error.
func (s *Store) Put(_ context.Context, key string, r io.Reader, size int64) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	p := s.path(key)
	// #nosec G304: path is a fixed root plus a validated key; no traversal possible.
	f, err := os.OpenFile(p, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err = io.CopyN(f, r, size); err != nil {
		_ = os.Remove(p)
		return err
	}
	if err = f.Sync(); err != nil {
		_ = os.Remove(p)
		return err
	}
	return nil
}

// Open returns a reader over the object for key along with its size.
func (s *Store) Open(key string) (io.ReadCloser, int64, error) {
	if err := ValidateKey(key); err != nil {
		return nil, 0, err
	}
	f, err := os.Open(s.path(key)) // #nosec G304 path constructed internally
	if err != nil {
		return nil, 0, err
	}
	fi, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, 0, err
	}
	return f, fi.Size(), nil
}

// SignedURL issues a retrieval URL for key valid for ttl from now.
func (s *Store) SignedURL(_ context.Context, key string, ttl time.Duration) (string, error) {
	if err := ValidateKey(key); err != nil {
		return "", err
	}
	return s.signer.Sign(key, s.clock.Now().Add(ttl)), nil
}

// Delete removes the object for key. A missing object is not an error.
func (s *Store) Delete(_ context.Context, key string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	err := os.Remove(s.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// List returns all object keys currently stored. Higher layers derive
// orphans by diffing against ticket-referenced paths.
func (s *Store) List(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, err
	}
	var keys []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if ValidateKey(name) != nil {
			continue
		}
		// Freshness guard: skip very recent files so an upload racing a
		// reconcile pass is not treated as an orphan.
		if info, err := e.Info(); err == nil && time.Since(info.ModTime()) < time.Minute {
			continue
		}
		keys = append(keys, name)
	}
	return keys, nil
}

// ValidateKey enforces the object-key shape produced by uploads: a non-empty
// flat filename of [A-Za-z0-9._-] characters that cannot traverse
// directories or hide as a dotfile.
func ValidateKey(key string) error {
	if key == "" || len(key) > 128 {
		return domain.ErrInvalidObjectKey
	}
	if key[0] == '.' {
		return domain.ErrInvalidObjectKey
	}
	for i := 0; i < len(key); i++ {
		c := key[i]
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		case c == '.' || c == '_' || c == '-':
		default:
			return domain.ErrInvalidObjectKey
		}
	}
	return nil
}

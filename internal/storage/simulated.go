package storage

import (
	"context"
	"crypto/sha256"
	"encoding/base32"
	"strings"
	"sync"
)

// cidEncoding is the lower-case base32 alphabet CIDv1 strings use.
var cidEncoding = base32.NewEncoding("abcdefghijklmnopqrstuvwxyz234567").WithPadding(base32.NoPadding)

// Simulated is the demo-mode storage backend. The locator is derived
// deterministically from the content digest, so the same bytes always
// produce the same locator, and uploads are kept in memory so they can
// be downloaded back within the process lifetime.
type Simulated struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

// NewSimulated initializes an in-memory demo storage backend.
func NewSimulated() *Simulated {
	return &Simulated{blobs: make(map[string][]byte)}
}

// Demo reports whether this client performs real network uploads.
func (s *Simulated) Demo() bool { return true }

// Upload derives a CID-shaped locator from the content and retains the
// payload for later download.
func (s *Simulated) Upload(ctx context.Context, name string, data []byte) (string, error) {
	cid := DeriveLocator(data)

	s.mu.Lock()
	s.blobs[cid] = append([]byte(nil), data...)
	s.mu.Unlock()

	return cid, nil
}

// Download returns a previously uploaded payload.
func (s *Simulated) Download(ctx context.Context, cid string) ([]byte, error) {
	s.mu.Lock()
	blob, ok := s.blobs[cid]
	s.mu.Unlock()
	if !ok {
		return nil, ErrNotStored
	}
	return append([]byte(nil), blob...), nil
}

// DeriveLocator maps content bytes to a stable CID-shaped string. Not
// a real CID (no multihash framing), but content-derived and unique,
// which is all demo mode needs.
func DeriveLocator(data []byte) string {
	sum := sha256.Sum256(data)
	return "bafysim" + strings.ToLower(cidEncoding.EncodeToString(sum[:]))
}

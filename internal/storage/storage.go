package storage

import (
	"context"
	"errors"
)

// Client is the content-addressed storage boundary. Upload returns the
// content locator (CID) the storage service assigned; Download resolves
// a locator back to bytes.
type Client interface {
	Upload(ctx context.Context, name string, data []byte) (string, error)
	Download(ctx context.Context, cid string) ([]byte, error)
	// Demo reports whether this client performs real network uploads.
	Demo() bool
}

// ErrNotStored is returned by Download when the locator is unknown.
var ErrNotStored = errors.New("locator not stored")

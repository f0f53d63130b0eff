package storage

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
)

func TestDeriveLocatorDeterministic(t *testing.T) {
	a := DeriveLocator([]byte("same bytes"))
	b := DeriveLocator([]byte("same bytes"))
	if a != b {
		t.Errorf("expected identical locators, got %s and %s", a, b)
	}
	if !strings.HasPrefix(a, "bafysim") {
		t.Errorf("expected bafysim prefix, got %s", a)
	}
	if a != strings.ToLower(a) {
		t.Errorf("locator must be lower-case, got %s", a)
	}
	if c := DeriveLocator([]byte("other bytes")); c == a {
		t.Error("different content must yield a different locator")
	}
}

func TestSimulatedUploadDownloadRoundTrip(t *testing.T) {
	s := NewSimulated()
	ctx := context.Background()
	data := []byte("demo payload")

	cid, err := s.Upload(ctx, "demo.txt", data)
	if err != nil {
		t.Fatalf("upload failed: %v", err)
	}
	if cid != DeriveLocator(data) {
		t.Errorf("expected content-derived locator, got %s", cid)
	}

	got, err := s.Download(ctx, cid)
	if err != nil {
		t.Fatalf("download failed: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("downloaded payload differs: %q", got)
	}

	if _, err := s.Download(ctx, "bafysimunknown"); !errors.Is(err, ErrNotStored) {
		t.Errorf("expected ErrNotStored for unknown locator, got %v", err)
	}
}

func TestSimulatedIsDemo(t *testing.T) {
	if !NewSimulated().Demo() {
		t.Error("simulated backend must report demo mode")
	}
}

package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/Heisenberg1912/filecoin/internal/models"
)

func newTestDB(t *testing.T) *BoltDB {
	t.Helper()
	db, err := NewBoltDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open bolt db: %v", err)
	}
	t.Cleanup(func() { db.Close(context.Background()) })
	return db
}

func sampleProof(id, hash, cid string) models.Proof {
	return models.Proof{
		ProofID:       id,
		SHA256Hash:    hash,
		CID:           cid,
		FileName:      "document.pdf",
		FileSize:      2048,
		FileType:      "application/pdf",
		CreatedAt:     time.Now().UTC(),
		UnixTimestamp: time.Now().Unix(),
	}
}

func TestPutAndGetProof(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	proof := sampleProof("proof_1_aaaaaaaaaaaa", "abc123", "bafytest1")
	if err := db.PutProof(ctx, proof); err != nil {
		t.Fatalf("failed to put proof: %v", err)
	}

	got, err := db.GetProof(ctx, proof.ProofID)
	if err != nil {
		t.Fatalf("failed to get proof: %v", err)
	}
	if got.SHA256Hash != proof.SHA256Hash {
		t.Errorf("expected hash %s, got %s", proof.SHA256Hash, got.SHA256Hash)
	}
	if got.FileName != proof.FileName {
		t.Errorf("expected file name %s, got %s", proof.FileName, got.FileName)
	}
}

func TestGetProofNotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := db.GetProof(context.Background(), "proof_missing")
	if !errors.Is(err, ErrProofNotFound) {
		t.Errorf("expected ErrProofNotFound, got %v", err)
	}
}

func TestGetProofByHashAndCID(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	proof := sampleProof("proof_2_bbbbbbbbbbbb", "def456", "bafytest2")
	if err := db.PutProof(ctx, proof); err != nil {
		t.Fatalf("failed to put proof: %v", err)
	}

	byHash, err := db.GetProofByHash(ctx, "def456")
	if err != nil {
		t.Fatalf("lookup by hash failed: %v", err)
	}
	if byHash.ProofID != proof.ProofID {
		t.Errorf("hash lookup returned wrong proof: %s", byHash.ProofID)
	}

	byCID, err := db.GetProofByCID(ctx, "bafytest2")
	if err != nil {
		t.Fatalf("lookup by cid failed: %v", err)
	}
	if byCID.ProofID != proof.ProofID {
		t.Errorf("cid lookup returned wrong proof: %s", byCID.ProofID)
	}
}

func TestPutProofRejectsDuplicates(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	first := sampleProof("proof_3_cccccccccccc", "hash3", "cid3")
	if err := db.PutProof(ctx, first); err != nil {
		t.Fatalf("failed to put first proof: %v", err)
	}

	dupID := sampleProof("proof_3_cccccccccccc", "otherhash", "othercid")
	if err := db.PutProof(ctx, dupID); !errors.Is(err, ErrDuplicateProofID) {
		t.Errorf("expected ErrDuplicateProofID, got %v", err)
	}

	dupHash := sampleProof("proof_4_dddddddddddd", "hash3", "othercid")
	if err := db.PutProof(ctx, dupHash); !errors.Is(err, ErrDuplicateHash) {
		t.Errorf("expected ErrDuplicateHash, got %v", err)
	}

	dupCID := sampleProof("proof_5_eeeeeeeeeeee", "otherhash", "cid3")
	if err := db.PutProof(ctx, dupCID); !errors.Is(err, ErrDuplicateCID) {
		t.Errorf("expected ErrDuplicateCID, got %v", err)
	}

	// Failed inserts must not leave partial index entries behind.
	total, err := db.GetTotalProofs(ctx)
	if err != nil {
		t.Fatalf("failed to count proofs: %v", err)
	}
	if total != 1 {
		t.Errorf("expected 1 stored proof, got %d", total)
	}
}

func TestListProofsPaginated(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	for i := 0; i < 25; i++ {
		proof := sampleProof(
			fmt.Sprintf("proof_%d_%012d", i, i),
			fmt.Sprintf("hash%d", i),
			fmt.Sprintf("cid%d", i),
		)
		proof.DemoMode = i%2 == 0
		if err := db.PutProof(ctx, proof); err != nil {
			t.Fatalf("failed to put proof %d: %v", i, err)
		}
	}

	page, total, err := db.ListProofsPaginated(ctx, 1, 10, nil)
	if err != nil {
		t.Fatalf("pagination failed: %v", err)
	}
	if total != 25 {
		t.Errorf("expected total 25, got %d", total)
	}
	if len(page) != 10 {
		t.Errorf("expected 10 proofs on page 1, got %d", len(page))
	}

	page, _, err = db.ListProofsPaginated(ctx, 3, 10, nil)
	if err != nil {
		t.Fatalf("pagination failed: %v", err)
	}
	if len(page) != 5 {
		t.Errorf("expected 5 proofs on page 3, got %d", len(page))
	}

	demo := true
	page, total, err = db.ListProofsPaginated(ctx, 1, 50, &demo)
	if err != nil {
		t.Fatalf("filtered pagination failed: %v", err)
	}
	if total != 13 {
		t.Errorf("expected 13 demo proofs, got %d", total)
	}
	for _, p := range page {
		if !p.DemoMode {
			t.Errorf("filter returned non-demo proof %s", p.ProofID)
		}
	}
}

func TestWebhookRoundTrip(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	hook := models.Webhook{
		ID:      "hook-1",
		Name:    "ci",
		URL:     "https://example.com/hook",
		Events:  []string{"proof_created"},
		Enabled: true,
	}
	if err := db.AddWebhook(ctx, hook); err != nil {
		t.Fatalf("failed to add webhook: %v", err)
	}

	got, err := db.GetWebhook(ctx, "hook-1")
	if err != nil {
		t.Fatalf("failed to get webhook: %v", err)
	}
	if got.URL != hook.URL {
		t.Errorf("expected url %s, got %s", hook.URL, got.URL)
	}

	got.Enabled = false
	if err := db.UpdateWebhook(ctx, got); err != nil {
		t.Fatalf("failed to update webhook: %v", err)
	}
	updated, err := db.GetWebhook(ctx, "hook-1")
	if err != nil {
		t.Fatalf("failed to re-get webhook: %v", err)
	}
	if updated.Enabled {
		t.Error("expected webhook to be disabled after update")
	}

	if err := db.DeleteWebhook(ctx, "hook-1"); err != nil {
		t.Fatalf("failed to delete webhook: %v", err)
	}
	if _, err := db.GetWebhook(ctx, "hook-1"); !errors.Is(err, ErrWebhookNotFound) {
		t.Errorf("expected ErrWebhookNotFound after delete, got %v", err)
	}
}

func TestWebhookLogRingCap(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	for i := 0; i < WebhookLogCap+20; i++ {
		entry := models.WebhookLogEntry{
			WebhookID: "hook-1",
			Event:     fmt.Sprintf("event-%d", i),
			Success:   true,
			Timestamp: time.Now().UTC(),
		}
		if err := db.AppendWebhookLog(ctx, entry); err != nil {
			t.Fatalf("failed to append log entry %d: %v", i, err)
		}
	}

	logs, err := db.ListWebhookLogs(ctx, WebhookLogCap+20)
	if err != nil {
		t.Fatalf("failed to list logs: %v", err)
	}
	if len(logs) != WebhookLogCap {
		t.Errorf("expected log capped at %d entries, got %d", WebhookLogCap, len(logs))
	}

	// Newest entries survive; the oldest were evicted.
	if logs[0].Event != fmt.Sprintf("event-%d", WebhookLogCap+19) {
		t.Errorf("expected newest entry first, got %s", logs[0].Event)
	}
}

func TestStateBlobRoundTrip(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if _, err := db.LoadState(ctx, "sim_ledger"); !errors.Is(err, ErrStateNotFound) {
		t.Errorf("expected ErrStateNotFound for missing state, got %v", err)
	}

	blob := []byte(`{"block_number":42}`)
	if err := db.SaveState(ctx, "sim_ledger", blob); err != nil {
		t.Fatalf("failed to save state: %v", err)
	}

	got, err := db.LoadState(ctx, "sim_ledger")
	if err != nil {
		t.Fatalf("failed to load state: %v", err)
	}
	if string(got) != string(blob) {
		t.Errorf("state round-trip mismatch: %s", got)
	}
}

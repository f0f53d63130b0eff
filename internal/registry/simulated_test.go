package registry

import (
	"context"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Heisenberg1912/filecoin/internal/store"
)

// newTestLedger opens a SimLedger over a throwaway bolt store with the
// confirmation delay disabled.
func newTestLedger(t *testing.T, admin string) (*SimLedger, store.Database) {
	t.Helper()

	db, err := store.NewBoltDB(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close(context.Background()) })

	ledger, err := NewSimLedger(context.Background(), db, admin)
	require.NoError(t, err)
	ledger.confirm = func(ctx context.Context) error { return nil }

	return ledger, db
}

func testParams(id, hash, cid string) RegisterParams {
	return RegisterParams{
		ProofID:    id,
		Hash:       hash,
		CID:        cid,
		Registrant: "alice",
	}
}

func TestRegisterProofReceipt(t *testing.T) {
	ledger, _ := newTestLedger(t, "")
	ctx := context.Background()

	receipt, err := ledger.RegisterProof(ctx, testParams("proof-1", "AABB01", "bafyone"))
	require.NoError(t, err)
	require.NotNil(t, receipt)

	assert.Regexp(t, regexp.MustCompile(`^0x[0-9a-f]{64}$`), receipt.TxHash)
	assert.Equal(t, uint64(1), receipt.BlockNumber)

	proof, err := ledger.GetProof(ctx, "proof-1")
	require.NoError(t, err)
	assert.Equal(t, "aabb01", proof.Hash, "hash must be stored lower-case")
	assert.Equal(t, "alice", proof.Registrant)
	assert.NotZero(t, proof.Timestamp)
}

func TestRegisterProofBlockNumbersAreMonotonic(t *testing.T) {
	ledger, _ := newTestLedger(t, "")
	ctx := context.Background()

	first, err := ledger.RegisterProof(ctx, testParams("proof-1", "hash1", "cid1"))
	require.NoError(t, err)
	second, err := ledger.RegisterProof(ctx, testParams("proof-2", "hash2", "cid2"))
	require.NoError(t, err)

	assert.Greater(t, second.BlockNumber, first.BlockNumber)
	assert.NotEqual(t, first.TxHash, second.TxHash)
}

func TestRegisterProofRejectsInvalidInput(t *testing.T) {
	ledger, _ := newTestLedger(t, "")
	ctx := context.Background()

	_, err := ledger.RegisterProof(ctx, testParams("", "hash", "cid"))
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = ledger.RegisterProof(ctx, testParams("id", "", "cid"))
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = ledger.RegisterProof(ctx, testParams("id", "hash", ""))
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestRegisterProofEnforcesUniqueness(t *testing.T) {
	ledger, _ := newTestLedger(t, "")
	ctx := context.Background()

	_, err := ledger.RegisterProof(ctx, testParams("proof-1", "hash1", "cid1"))
	require.NoError(t, err)

	_, err = ledger.RegisterProof(ctx, testParams("proof-1", "hash2", "cid2"))
	assert.ErrorIs(t, err, ErrDuplicateProofID)

	_, err = ledger.RegisterProof(ctx, testParams("proof-2", "HASH1", "cid2"))
	assert.ErrorIs(t, err, ErrDuplicateHash, "hash uniqueness is case-insensitive")

	_, err = ledger.RegisterProof(ctx, testParams("proof-2", "hash2", "cid1"))
	assert.ErrorIs(t, err, ErrDuplicateCID)

	total, err := ledger.TotalProofs(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), total, "failed registrations must not advance the counter")
}

func TestVerifyProofSemantics(t *testing.T) {
	ledger, _ := newTestLedger(t, "")
	ctx := context.Background()

	_, err := ledger.RegisterProof(ctx, testParams("proof-1", "aabbcc", "cid1"))
	require.NoError(t, err)

	valid, err := ledger.VerifyProof(ctx, "proof-1", "aabbcc")
	require.NoError(t, err)
	assert.True(t, valid)

	valid, err = ledger.VerifyProof(ctx, "proof-1", "AABBCC")
	require.NoError(t, err)
	assert.True(t, valid, "comparison is case-insensitive")

	valid, err = ledger.VerifyProof(ctx, "proof-1", "ddeeff")
	require.NoError(t, err)
	assert.False(t, valid)

	valid, err = ledger.VerifyProof(ctx, "proof-unknown", "aabbcc")
	require.NoError(t, err, "unknown ids verify false, not an error")
	assert.False(t, valid)
}

func TestLinkDealAuthorization(t *testing.T) {
	ledger, _ := newTestLedger(t, "admin")
	ctx := context.Background()

	_, err := ledger.RegisterProof(ctx, testParams("proof-1", "hash1", "cid1"))
	require.NoError(t, err)

	deal := DealEntry{DealID: 77, Provider: "f01234", StartEpoch: 100, EndEpoch: 200}

	err = ledger.LinkDeal(ctx, "proof-1", deal, "mallory")
	assert.ErrorIs(t, err, ErrUnauthorized)

	err = ledger.LinkDeal(ctx, "proof-1", deal, "alice")
	require.NoError(t, err)

	err = ledger.LinkDeal(ctx, "proof-1", deal, "admin")
	require.NoError(t, err, "admin may link on behalf of any registrant")

	err = ledger.LinkDeal(ctx, "proof-missing", deal, "alice")
	assert.ErrorIs(t, err, ErrNotFound)

	active, err := ledger.CountActiveDeals(ctx, "proof-1")
	require.NoError(t, err)
	assert.Equal(t, 2, active, "linked deals start active")
}

func TestUpdateDealStatus(t *testing.T) {
	ledger, _ := newTestLedger(t, "")
	ctx := context.Background()

	_, err := ledger.RegisterProof(ctx, testParams("proof-1", "hash1", "cid1"))
	require.NoError(t, err)
	require.NoError(t, ledger.LinkDeal(ctx, "proof-1", DealEntry{DealID: 1}, "alice"))

	err = ledger.UpdateDealStatus(ctx, "proof-1", 5, false, "alice")
	assert.ErrorIs(t, err, ErrIndexOutOfRange)

	err = ledger.UpdateDealStatus(ctx, "proof-1", 0, false, "mallory")
	assert.ErrorIs(t, err, ErrUnauthorized)

	require.NoError(t, ledger.UpdateDealStatus(ctx, "proof-1", 0, false, "alice"))
	active, err := ledger.CountActiveDeals(ctx, "proof-1")
	require.NoError(t, err)
	assert.Equal(t, 0, active)
}

func TestLedgerStateSurvivesReload(t *testing.T) {
	ledger, db := newTestLedger(t, "")
	ctx := context.Background()

	receipt, err := ledger.RegisterProof(ctx, testParams("proof-1", "hash1", "cid1"))
	require.NoError(t, err)

	reloaded, err := NewSimLedger(ctx, db, "")
	require.NoError(t, err)

	proof, err := reloaded.GetProofByHash(ctx, "hash1")
	require.NoError(t, err)
	assert.Equal(t, "proof-1", proof.ProofID)
	assert.Equal(t, receipt.TxHash, proof.TxHash)

	total, err := reloaded.TotalProofs(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), total)

	// The block counter continues where it left off.
	reloaded.confirm = func(ctx context.Context) error { return nil }
	next, err := reloaded.RegisterProof(ctx, testParams("proof-2", "hash2", "cid2"))
	require.NoError(t, err)
	assert.Equal(t, receipt.BlockNumber+1, next.BlockNumber)
}

func TestGetProofByCID(t *testing.T) {
	ledger, _ := newTestLedger(t, "")
	ctx := context.Background()

	_, err := ledger.RegisterProof(ctx, testParams("proof-1", "hash1", "bafylocator"))
	require.NoError(t, err)

	proof, err := ledger.GetProofByCID(ctx, "bafylocator")
	require.NoError(t, err)
	assert.Equal(t, "proof-1", proof.ProofID)

	_, err = ledger.GetProofByCID(ctx, "bafymissing")
	assert.ErrorIs(t, err, ErrNotFound)
}

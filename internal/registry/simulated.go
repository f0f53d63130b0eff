package registry

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Heisenberg1912/filecoin/internal/store"
)

// ledgerStateKey is the fixed logical name the simulated ledger state
// is persisted under.
const ledgerStateKey = "sim_ledger"

const (
	minConfirmDelay = 1500 * time.Millisecond
	maxConfirmDelay = 3500 * time.Millisecond
)

// ledgerState is the durable snapshot of the simulated chain.
type ledgerState struct {
	Proofs      map[string]*Proof `json:"proofs"`
	ByHash      map[string]string `json:"by_hash"`
	ByCID       map[string]string `json:"by_cid"`
	BlockNumber uint64            `json:"block_number"`
	TotalProofs uint64            `json:"total_proofs"`
	TotalDeals  uint64            `json:"total_deals"`
}

// SimLedger implements Registry without chain access. Transaction
// confirmation is modeled as a randomized delay, transaction hashes are
// synthesized, and the block counter increases monotonically. State is
// persisted to the local store and reloaded at startup.
type SimLedger struct {
	db    store.Database
	admin string

	mu    sync.Mutex
	state ledgerState

	rng     *rand.Rand
	confirm func(ctx context.Context) error
}

// NewSimLedger initializes the simulated ledger, reloading any
// previously persisted state.
func NewSimLedger(ctx context.Context, db store.Database, admin string) (*SimLedger, error) {
	l := &SimLedger{
		db:    db,
		admin: admin,
		state: ledgerState{
			Proofs: make(map[string]*Proof),
			ByHash: make(map[string]string),
			ByCID:  make(map[string]string),
		},
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	l.confirm = l.confirmDelay

	blob, err := db.LoadState(ctx, ledgerStateKey)
	switch {
	case err == nil:
		if err := json.Unmarshal(blob, &l.state); err != nil {
			return nil, fmt.Errorf("failed to decode ledger state: %w", err)
		}
		logrus.WithFields(logrus.Fields{
			"proofs": l.state.TotalProofs,
			"block":  l.state.BlockNumber,
		}).Info("Simulated ledger state reloaded")
	case errors.Is(err, store.ErrStateNotFound):
		// Fresh ledger
	default:
		return nil, fmt.Errorf("failed to load ledger state: %w", err)
	}

	return l, nil
}

// confirmDelay models transaction confirmation latency.
func (l *SimLedger) confirmDelay(ctx context.Context) error {
	l.mu.Lock()
	delay := minConfirmDelay + time.Duration(l.rng.Int63n(int64(maxConfirmDelay-minConfirmDelay)))
	l.mu.Unlock()

	select {
	case <-time.After(delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// persistLocked writes the current state back to the store. Caller
// holds l.mu.
func (l *SimLedger) persistLocked(ctx context.Context) error {
	blob, err := json.Marshal(l.state)
	if err != nil {
		return fmt.Errorf("failed to encode ledger state: %w", err)
	}
	return l.db.SaveState(ctx, ledgerStateKey, blob)
}

func (l *SimLedger) newTxHash() string {
	buf := make([]byte, 32)
	l.rng.Read(buf)
	return "0x" + hex.EncodeToString(buf)
}

// RegisterProof commits a new proof after the simulated confirmation
// delay. Uniqueness is checked before insertion; the state mutation and
// persistence happen under one lock, so the operation is atomic with
// respect to a single caller.
func (l *SimLedger) RegisterProof(ctx context.Context, params RegisterParams) (*Registration, error) {
	if params.ProofID == "" || params.Hash == "" || params.CID == "" {
		return nil, ErrInvalidInput
	}
	hash := strings.ToLower(params.Hash)

	l.mu.Lock()
	if _, ok := l.state.Proofs[params.ProofID]; ok {
		l.mu.Unlock()
		return nil, ErrDuplicateProofID
	}
	if _, ok := l.state.ByHash[hash]; ok {
		l.mu.Unlock()
		return nil, ErrDuplicateHash
	}
	if _, ok := l.state.ByCID[params.CID]; ok {
		l.mu.Unlock()
		return nil, ErrDuplicateCID
	}
	l.mu.Unlock()

	if err := l.confirm(ctx); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	// Re-check under the lock: another in-process caller may have
	// committed during the confirmation delay.
	if _, ok := l.state.Proofs[params.ProofID]; ok {
		return nil, ErrDuplicateProofID
	}
	if _, ok := l.state.ByHash[hash]; ok {
		return nil, ErrDuplicateHash
	}
	if _, ok := l.state.ByCID[params.CID]; ok {
		return nil, ErrDuplicateCID
	}

	l.state.BlockNumber++
	l.state.TotalProofs++
	proof := &Proof{
		ProofID:     params.ProofID,
		Hash:        hash,
		CID:         params.CID,
		Provider:    params.Provider,
		Registrant:  params.Registrant,
		Timestamp:   time.Now().Unix(),
		BlockNumber: l.state.BlockNumber,
		TxHash:      l.newTxHash(),
	}
	l.state.Proofs[params.ProofID] = proof
	l.state.ByHash[hash] = params.ProofID
	l.state.ByCID[params.CID] = params.ProofID

	if err := l.persistLocked(ctx); err != nil {
		// Roll back the uncommitted registration.
		delete(l.state.Proofs, params.ProofID)
		delete(l.state.ByHash, hash)
		delete(l.state.ByCID, params.CID)
		l.state.TotalProofs--
		l.state.BlockNumber--
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"proof_id": params.ProofID,
		"tx_hash":  proof.TxHash,
		"block":    proof.BlockNumber,
	}).Info("Proof registered on simulated ledger")

	return &Registration{TxHash: proof.TxHash, BlockNumber: proof.BlockNumber}, nil
}

// LinkDeal appends a deal entry to an existing proof.
func (l *SimLedger) LinkDeal(ctx context.Context, proofID string, deal DealEntry, caller string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	proof, ok := l.state.Proofs[proofID]
	if !ok {
		return ErrNotFound
	}
	if !l.authorizedLocked(proof, caller) {
		return ErrUnauthorized
	}

	deal.Active = true
	proof.Deals = append(proof.Deals, deal)
	l.state.TotalDeals++

	return l.persistLocked(ctx)
}

// UpdateDealStatus toggles the active flag on an existing deal entry.
func (l *SimLedger) UpdateDealStatus(ctx context.Context, proofID string, dealIndex int, active bool, caller string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	proof, ok := l.state.Proofs[proofID]
	if !ok {
		return ErrNotFound
	}
	if dealIndex < 0 || dealIndex >= len(proof.Deals) {
		return ErrIndexOutOfRange
	}
	if !l.authorizedLocked(proof, caller) {
		return ErrUnauthorized
	}

	proof.Deals[dealIndex].Active = active
	return l.persistLocked(ctx)
}

func (l *SimLedger) authorizedLocked(proof *Proof, caller string) bool {
	return caller == proof.Registrant || (l.admin != "" && caller == l.admin)
}

// GetProof retrieves a proof by id.
func (l *SimLedger) GetProof(ctx context.Context, proofID string) (Proof, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	proof, ok := l.state.Proofs[proofID]
	if !ok {
		return Proof{}, ErrNotFound
	}
	return *proof, nil
}

// GetProofByHash retrieves a proof by its content hash.
func (l *SimLedger) GetProofByHash(ctx context.Context, hash string) (Proof, error) {
	l.mu.Lock()
	id, ok := l.state.ByHash[strings.ToLower(hash)]
	l.mu.Unlock()
	if !ok {
		return Proof{}, ErrNotFound
	}
	return l.GetProof(ctx, id)
}

// GetProofByCID retrieves a proof by its content locator.
func (l *SimLedger) GetProofByCID(ctx context.Context, cid string) (Proof, error) {
	l.mu.Lock()
	id, ok := l.state.ByCID[cid]
	l.mu.Unlock()
	if !ok {
		return Proof{}, ErrNotFound
	}
	return l.GetProof(ctx, id)
}

// VerifyProof reports whether the stored hash matches. Unknown ids
// verify false rather than erroring.
func (l *SimLedger) VerifyProof(ctx context.Context, proofID, hash string) (bool, error) {
	proof, err := l.GetProof(ctx, proofID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return strings.EqualFold(proof.Hash, hash), nil
}

// CountActiveDeals returns the number of linked deals currently active.
func (l *SimLedger) CountActiveDeals(ctx context.Context, proofID string) (int, error) {
	proof, err := l.GetProof(ctx, proofID)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, d := range proof.Deals {
		if d.Active {
			n++
		}
	}
	return n, nil
}

// TotalProofs returns the monotonic total-proof counter.
func (l *SimLedger) TotalProofs(ctx context.Context) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state.TotalProofs, nil
}

// TotalDeals returns the monotonic total-deals counter.
func (l *SimLedger) TotalDeals(ctx context.Context) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state.TotalDeals, nil
}

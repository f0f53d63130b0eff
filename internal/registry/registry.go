package registry

import (
	"context"
	"errors"
)

// Proof is the ledger-side record for a registered content hash.
type Proof struct {
	ProofID     string      `json:"proof_id"`
	Hash        string      `json:"hash"` // 32-byte digest, lower-case hex
	CID         string      `json:"cid"`
	Provider    string      `json:"provider,omitempty"`
	Registrant  string      `json:"registrant"`
	Timestamp   int64       `json:"timestamp"`
	BlockNumber uint64      `json:"block_number"`
	TxHash      string      `json:"tx_hash"`
	Deals       []DealEntry `json:"deals"`
}

// DealEntry is one linked storage deal. Entries are append-only; only
// the Active flag is ever toggled.
type DealEntry struct {
	DealID     int64  `json:"deal_id"`
	Provider   string `json:"provider"`
	StartEpoch int64  `json:"start_epoch"`
	EndEpoch   int64  `json:"end_epoch"`
	Active     bool   `json:"active"`
}

// RegisterParams are the inputs to RegisterProof.
type RegisterParams struct {
	ProofID    string `json:"proof_id"`
	Hash       string `json:"hash"`
	CID        string `json:"cid"`
	Provider   string `json:"provider,omitempty"`
	Registrant string `json:"registrant"`
}

// Registration is the on-chain receipt for a successful RegisterProof.
type Registration struct {
	TxHash      string `json:"tx_hash"`
	BlockNumber uint64 `json:"block_number"`
}

// Registry is the authoritative state machine over proof identity.
// The simulated and the remote variant honor the same contract: error
// kinds, uniqueness enforcement and ordering are identical, so calling
// code never branches on which is active.
type Registry interface {
	// RegisterProof commits a new proof. At most one proof may exist per
	// hash and per CID; violations fail before anything is stored.
	RegisterProof(ctx context.Context, params RegisterParams) (*Registration, error)

	// LinkDeal appends a deal entry to an existing proof. Only the
	// original registrant or the admin identity may link.
	LinkDeal(ctx context.Context, proofID string, deal DealEntry, caller string) error

	// UpdateDealStatus toggles the active flag on an existing deal entry.
	UpdateDealStatus(ctx context.Context, proofID string, dealIndex int, active bool, caller string) error

	// GetProof retrieves a proof by id.
	GetProof(ctx context.Context, proofID string) (Proof, error)

	// GetProofByHash retrieves a proof by its content hash.
	GetProofByHash(ctx context.Context, hash string) (Proof, error)

	// GetProofByCID retrieves a proof by its content locator.
	GetProofByCID(ctx context.Context, cid string) (Proof, error)

	// VerifyProof reports whether the proof exists and its stored hash
	// equals the given hash (case-insensitive). Unknown ids verify false.
	VerifyProof(ctx context.Context, proofID, hash string) (bool, error)

	// CountActiveDeals returns the number of linked deals currently active.
	CountActiveDeals(ctx context.Context, proofID string) (int, error)

	// TotalProofs returns the monotonic total-proof counter.
	TotalProofs(ctx context.Context) (uint64, error)

	// TotalDeals returns the monotonic total-deals counter.
	TotalDeals(ctx context.Context) (uint64, error)
}

var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrDuplicateProofID = errors.New("proof id already registered")
	ErrDuplicateHash    = errors.New("hash already registered")
	ErrDuplicateCID     = errors.New("cid already registered")
	ErrNotFound         = errors.New("proof not found")
	ErrIndexOutOfRange  = errors.New("deal index out of range")
	ErrUnauthorized     = errors.New("caller not authorized")
	ErrUnavailable      = errors.New("registry unavailable")
)

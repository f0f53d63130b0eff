package webhooks

import "time"

// EventKind identifies one of the notification event types.
type EventKind string

const (
	EventProofCreated    EventKind = "proof_created"
	EventProofVerified   EventKind = "proof_verified"
	EventNFTMinted       EventKind = "nft_minted"
	EventProofRegistered EventKind = "proof_registered"
	EventBatchCompleted  EventKind = "batch_completed"
)

// EventKinds lists every kind a webhook may subscribe to.
func EventKinds() []EventKind {
	return []EventKind{
		EventProofCreated,
		EventProofVerified,
		EventNFTMinted,
		EventProofRegistered,
		EventBatchCompleted,
	}
}

// ValidKind reports whether s names a known event kind.
func ValidKind(s string) bool {
	for _, k := range EventKinds() {
		if string(k) == s {
			return true
		}
	}
	return false
}

// Event is the closed set of notification payloads. Each kind carries
// a statically defined shape; the dispatcher owns serialization.
type Event interface {
	Kind() EventKind
}

// ProofCreated fires when a certification completes.
type ProofCreated struct {
	ProofID    string `json:"proof_id"`
	SHA256Hash string `json:"sha256_hash"`
	CID        string `json:"cid"`
	FileName   string `json:"file_name"`
	FileSize   int64  `json:"file_size"`
	DemoMode   bool   `json:"demo_mode"`
}

func (ProofCreated) Kind() EventKind { return EventProofCreated }

// ProofVerified fires when a file is re-hashed and matches its proof.
type ProofVerified struct {
	ProofID      string `json:"proof_id"`
	SHA256Hash   string `json:"sha256_hash"`
	ComputedHash string `json:"computed_hash"`
	Valid        bool   `json:"valid"`
}

func (ProofVerified) Kind() EventKind { return EventProofVerified }

// NFTMinted fires when a certificate token is attached to a proof.
type NFTMinted struct {
	ProofID string `json:"proof_id"`
	TokenID uint64 `json:"token_id"`
	TxHash  string `json:"tx_hash"`
}

func (NFTMinted) Kind() EventKind { return EventNFTMinted }

// ProofRegistered fires when a proof is anchored on the registry.
type ProofRegistered struct {
	ProofID     string `json:"proof_id"`
	TxHash      string `json:"tx_hash"`
	BlockNumber uint64 `json:"block_number"`
}

func (ProofRegistered) Kind() EventKind { return EventProofRegistered }

// BatchCompleted fires after a certify-batch run finishes.
type BatchCompleted struct {
	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

func (BatchCompleted) Kind() EventKind { return EventBatchCompleted }

// Envelope is the wire shape delivered to subscribers.
type Envelope struct {
	Event     EventKind `json:"event"`
	Timestamp time.Time `json:"timestamp"`
	Data      Event     `json:"data"`
}

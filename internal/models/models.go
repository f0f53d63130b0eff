package models

import (
	"errors"
	"regexp"
	"time"
)

// Proof is the certified record binding a file digest, its content
// locator and a timestamp. Immutable once created except for the
// OnChain and NFT sub-records, which are attached by later steps.
type Proof struct {
	ProofID       string    `json:"proof_id"`
	SHA256Hash    string    `json:"sha256_hash"`
	CID           string    `json:"cid"`
	FileName      string    `json:"file_name"`
	FileSize      int64     `json:"file_size"`
	FileType      string    `json:"file_type"`
	CreatedAt     time.Time `json:"created_at"`
	UnixTimestamp int64     `json:"unix_timestamp"`
	DemoMode      bool      `json:"demo_mode"`
	GatewayURL    string    `json:"gateway_url,omitempty"`
	ExplorerURL   string    `json:"explorer_url,omitempty"`
	Registrant    string    `json:"registrant,omitempty"`
	OnChain       *OnChain  `json:"on_chain,omitempty"`
	NFT           *NFT      `json:"nft,omitempty"`
}

// OnChain records the ledger registration of a proof.
type OnChain struct {
	Registered  bool   `json:"registered"`
	TxHash      string `json:"tx_hash"`
	BlockNumber uint64 `json:"block_number"`
}

// NFT records the minted token attached to a proof.
type NFT struct {
	Minted  bool   `json:"minted"`
	TokenID uint64 `json:"token_id"`
	TxHash  string `json:"tx_hash"`
}

// DealStatus is the rolled-up or per-deal storage-deal state.
type DealStatus string

const (
	DealUnknown  DealStatus = "unknown"
	DealPending  DealStatus = "pending"
	DealActive   DealStatus = "active"
	DealExpired  DealStatus = "expired"
	DealSlashed  DealStatus = "slashed"
	DealNotFound DealStatus = "not_found"
)

// Deal is a single storage commitment for a piece of content.
type Deal struct {
	DealID     int64      `json:"deal_id"`
	Provider   string     `json:"provider"`
	Status     DealStatus `json:"status"`
	PieceCID   string     `json:"piece_cid"`
	Activation time.Time  `json:"activation"`
	Expiration time.Time  `json:"expiration"`
	CreatedAt  time.Time  `json:"created_at"`
}

// DealSummary is the per-locator rollup returned by the deal tracker.
type DealSummary struct {
	CID       string     `json:"cid"`
	Status    DealStatus `json:"status"`
	Deals     []Deal     `json:"deals"`
	Pinned    bool       `json:"pinned"`
	Simulated bool       `json:"simulated"`
}

// ActiveDeals counts deals currently in the active state.
func (s *DealSummary) ActiveDeals() int {
	n := 0
	for _, d := range s.Deals {
		if d.Status == DealActive {
			n++
		}
	}
	return n
}

// GatewayHealth is the probed state of a single gateway endpoint.
type GatewayHealth struct {
	Name          string    `json:"name"`
	Healthy       bool      `json:"healthy"`
	LatencyMs     *int64    `json:"latency_ms"`
	LastCheckedAt time.Time `json:"last_checked_at"`
	Error         string    `json:"error,omitempty"`
}

// Webhook is a registered event subscription.
type Webhook struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	URL             string    `json:"url"`
	Events          []string  `json:"events"`
	Secret          string    `json:"secret,omitempty"`
	Enabled         bool      `json:"enabled"`
	SuccessCount    int       `json:"success_count"`
	FailCount       int       `json:"fail_count"`
	LastTriggeredAt time.Time `json:"last_triggered_at"`
	CreatedAt       time.Time `json:"created_at"`
}

// SubscribedTo reports whether the webhook's event set includes kind.
func (w *Webhook) SubscribedTo(kind string) bool {
	for _, e := range w.Events {
		if e == kind {
			return true
		}
	}
	return false
}

// WebhookLogEntry is one delivery attempt, kept in a bounded log.
type WebhookLogEntry struct {
	WebhookID string    `json:"webhook_id"`
	Event     string    `json:"event"`
	Success   bool      `json:"success"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

var hexPattern = regexp.MustCompile("^[a-fA-F0-9]+$")

// Validate checks the fields required before a proof can be persisted.
func (p *Proof) Validate() error {
	if p.ProofID == "" {
		return errors.New("proof_id is required")
	}
	if len(p.SHA256Hash) != 64 || !hexPattern.MatchString(p.SHA256Hash) {
		return errors.New("sha256_hash must be 64 hexadecimal characters")
	}
	if p.CID == "" {
		return errors.New("cid is required")
	}
	return nil
}

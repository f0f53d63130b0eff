package models

import "time"

// ProofsResponse includes pagination metadata.
type ProofsResponse struct {
	Proofs     []Proof `json:"proofs"`
	Page       int     `json:"page"`
	PerPage    int     `json:"per_page"`
	Total      int     `json:"total"`
	TotalPages int     `json:"total_pages"`
}

// ProofDetailResponse wraps a single proof lookup.
type ProofDetailResponse struct {
	Proof Proof `json:"proof"`
}

// VerifyResponse is the result of re-hashing a file against a proof.
type VerifyResponse struct {
	Valid        bool   `json:"valid"`
	ComputedHash string `json:"computed_hash"`
	Proof        *Proof `json:"proof,omitempty"`
}

// DealStatusResponse pairs a deal summary with its derived health.
type DealStatusResponse struct {
	Summary DealSummary `json:"summary"`
	Health  DealHealth  `json:"health"`
}

// DealHealth is the derived 0-100 redundancy rating for a locator.
type DealHealth struct {
	Score    int    `json:"score"`
	Label    string `json:"label"`
	Severity string `json:"severity"`
}

// StorageAnalytics is the fold over deal summaries for many locators.
type StorageAnalytics struct {
	ActiveDeals     int       `json:"active_deals"`
	PendingDeals    int       `json:"pending_deals"`
	UniqueProviders int       `json:"unique_providers"`
	AvgReplication  float64   `json:"avg_replication"`
	OldestDeal      time.Time `json:"oldest_deal"`
	NewestDeal      time.Time `json:"newest_deal"`
}

// GatewaysResponse lists ranked gateway health.
type GatewaysResponse struct {
	Gateways []GatewayHealth `json:"gateways"`
}

// StatsResponse represents the structure of the /stats API response.
type StatsResponse struct {
	TotalProofs      int       `json:"total_proofs"`
	AnchoredProofs   int       `json:"anchored_proofs"`
	DemoProofs       int       `json:"demo_proofs"`
	ProofsToday      int       `json:"proofs_today"`
	LastCertifiedAt  time.Time `json:"last_certified_at"`
	RegistryProofs   uint64    `json:"registry_proofs"`
	RegistryDeals    uint64    `json:"registry_deals"`
	EnabledWebhooks  int       `json:"enabled_webhooks"`
	HealthyGateways  int       `json:"healthy_gateways"`
	TrackedLocators  int       `json:"tracked_locators"`
}

// BatchResult summarizes one certify-batch run.
type BatchResult struct {
	Total     int      `json:"total"`
	Succeeded int      `json:"succeeded"`
	Failed    int      `json:"failed"`
	ProofIDs  []string `json:"proof_ids"`
	Errors    []string `json:"errors,omitempty"`
}

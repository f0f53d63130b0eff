package store

import (
	"context"
	"errors"

	"github.com/Heisenberg1912/filecoin/internal/models"
)

// Database defines the methods required for proof and webhook storage.
type Database interface {
	// Initialize sets up the necessary buckets or keyspaces.
	Initialize(ctx context.Context) error

	Close(ctx context.Context) error

	// PutProof stores a new proof and indexes it by hash and by CID.
	// Fails if the proof id, the hash or the CID is already bound.
	PutProof(ctx context.Context, proof models.Proof) error

	// UpdateProof overwrites an existing proof record. The hash and CID
	// bindings are immutable; only the mutable sub-records change.
	UpdateProof(ctx context.Context, proof models.Proof) error

	// GetProof retrieves a proof by its id.
	GetProof(ctx context.Context, proofID string) (models.Proof, error)

	// GetProofByHash retrieves a proof by its content hash (lower-case hex).
	GetProofByHash(ctx context.Context, hash string) (models.Proof, error)

	// GetProofByCID retrieves a proof by its content locator.
	GetProofByCID(ctx context.Context, cid string) (models.Proof, error)

	// ListProofs retrieves every stored proof.
	ListProofs(ctx context.Context) ([]models.Proof, error)

	// ListProofsPaginated retrieves a page of proofs and the total count.
	// If filterDemo is non-nil only demo (true) or anchored (false)
	// proofs are returned.
	ListProofsPaginated(ctx context.Context, page, perPage int, filterDemo *bool) ([]models.Proof, int, error)

	// GetTotalProofs returns the number of stored proofs.
	GetTotalProofs(ctx context.Context) (int, error)

	// AddWebhook stores a new webhook subscription.
	AddWebhook(ctx context.Context, hook models.Webhook) error

	// UpdateWebhook overwrites an existing webhook subscription.
	UpdateWebhook(ctx context.Context, hook models.Webhook) error

	// DeleteWebhook removes a webhook subscription.
	DeleteWebhook(ctx context.Context, id string) error

	// GetWebhook retrieves a webhook by id.
	GetWebhook(ctx context.Context, id string) (models.Webhook, error)

	// ListWebhooks retrieves all webhook subscriptions.
	ListWebhooks(ctx context.Context) ([]models.Webhook, error)

	// AppendWebhookLog appends a delivery log entry, evicting the
	// oldest entries beyond the retention cap.
	AppendWebhookLog(ctx context.Context, entry models.WebhookLogEntry) error

	// ListWebhookLogs retrieves the most recent delivery log entries,
	// newest first.
	ListWebhookLogs(ctx context.Context, limit int) ([]models.WebhookLogEntry, error)

	// SaveState persists an opaque blob under a fixed logical name.
	SaveState(ctx context.Context, name string, blob []byte) error

	// LoadState retrieves a blob previously saved under name.
	LoadState(ctx context.Context, name string) ([]byte, error)
}

// WebhookLogCap bounds the delivery log retained by implementations.
const WebhookLogCap = 100

var (
	ErrProofNotFound   = errors.New("proof not found")
	ErrWebhookNotFound = errors.New("webhook not found")
	ErrStateNotFound   = errors.New("state blob not found")

	ErrDuplicateProofID = errors.New("proof id already exists")
	ErrDuplicateHash    = errors.New("hash already bound to a proof")
	ErrDuplicateCID     = errors.New("cid already bound to a proof")
)

package proofs

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Heisenberg1912/filecoin/internal/models"
	"github.com/Heisenberg1912/filecoin/internal/notifications"
	"github.com/Heisenberg1912/filecoin/internal/registry"
	"github.com/Heisenberg1912/filecoin/internal/storage"
	"github.com/Heisenberg1912/filecoin/internal/store"
	"github.com/Heisenberg1912/filecoin/internal/webhooks"
)

// nftStateKey is the fixed logical name the mint counter is persisted under.
const nftStateKey = "nft_state"

// CertifierConfig holds the collaborators of the certification workflow.
type CertifierConfig struct {
	Storage    storage.Client
	Registry   registry.Registry
	Database   store.Database
	Dispatcher *webhooks.Dispatcher
	Notifier   *notifications.Notifier
	Registrant string
	GatewayURL string // prefix a CID is appended to
	Explorer   string // prefix a tx hash is appended to
}

// Certifier runs the certification and verification workflows:
// hash, upload, register, persist, notify.
type Certifier struct {
	Config CertifierConfig
}

// NewCertifier initializes a new Certifier.
func NewCertifier(config CertifierConfig) *Certifier {
	return &Certifier{Config: config}
}

// Certify issues a proof of existence for the given content: computes
// the digest, uploads to content-addressed storage (degrading to the
// derived demo locator when the storage service is unreachable),
// registers the proof, persists it and notifies subscribers.
func (c *Certifier) Certify(ctx context.Context, fileName, fileType string, data []byte) (models.Proof, error) {
	var proof models.Proof
	if len(data) == 0 {
		return proof, fmt.Errorf("%w: empty file", registry.ErrInvalidInput)
	}

	digest := ComputeDigest(data)

	// Fail fast on an already-certified file before paying for an
	// upload and a registration round-trip.
	if _, err := c.Config.Database.GetProofByHash(ctx, digest); err == nil {
		return proof, store.ErrDuplicateHash
	}

	demo := c.Config.Storage.Demo()
	cid, err := c.Config.Storage.Upload(ctx, fileName, data)
	if err != nil {
		logrus.WithError(err).WithField("file", fileName).Warn("Storage upload failed; deriving demo locator")
		cid = storage.DeriveLocator(data)
		demo = true
	}

	proofID := GenerateProofID()
	now := time.Now().UTC()
	proof = models.Proof{
		ProofID:       proofID,
		SHA256Hash:    digest,
		CID:           cid,
		FileName:      fileName,
		FileSize:      int64(len(data)),
		FileType:      fileType,
		CreatedAt:     now,
		UnixTimestamp: now.Unix(),
		DemoMode:      demo,
		GatewayURL:    c.Config.GatewayURL + cid,
		Registrant:    c.Config.Registrant,
	}

	reg, err := c.Config.Registry.RegisterProof(ctx, registry.RegisterParams{
		ProofID:    proofID,
		Hash:       digest,
		CID:        cid,
		Registrant: c.Config.Registrant,
	})
	switch {
	case err == nil:
		proof.OnChain = &models.OnChain{
			Registered:  true,
			TxHash:      reg.TxHash,
			BlockNumber: reg.BlockNumber,
		}
		proof.ExplorerURL = c.Config.Explorer + reg.TxHash
	case errors.Is(err, registry.ErrUnavailable):
		// The proof is still valid locally; anchoring can happen later.
		logrus.WithError(err).Warn("Registry unavailable; proof persisted without on-chain anchor")
	default:
		return models.Proof{}, err
	}

	if err := c.Config.Database.PutProof(ctx, proof); err != nil {
		return models.Proof{}, err
	}

	c.Config.Dispatcher.Trigger(webhooks.ProofCreated{
		ProofID:    proof.ProofID,
		SHA256Hash: proof.SHA256Hash,
		CID:        proof.CID,
		FileName:   proof.FileName,
		FileSize:   proof.FileSize,
		DemoMode:   proof.DemoMode,
	})

	if c.Config.Notifier != nil {
		c.Config.Notifier.Send("Proof Created", fmt.Sprintf(
			"Proof **%s** certified.\nFile: %s\nCID: %s", proof.ProofID, proof.FileName, proof.CID))
	}

	logrus.WithFields(logrus.Fields{
		"proof_id": proof.ProofID,
		"sha256":   proof.SHA256Hash,
		"cid":      proof.CID,
		"demo":     proof.DemoMode,
	}).Info("Proof certified")

	return proof, nil
}

// Verify re-hashes content and compares it against a stored proof.
// With an empty proofID the proof is located by the computed hash.
func (c *Certifier) Verify(ctx context.Context, data []byte, proofID string) (models.VerifyResponse, error) {
	computed := ComputeDigest(data)
	result := models.VerifyResponse{ComputedHash: computed}

	var proof models.Proof
	var err error
	if proofID != "" {
		proof, err = c.Config.Database.GetProof(ctx, proofID)
		if err != nil {
			return result, err
		}
	} else {
		proof, err = c.Config.Database.GetProofByHash(ctx, computed)
		if errors.Is(err, store.ErrProofNotFound) {
			return result, nil // no proof exists for this content
		}
		if err != nil {
			return result, err
		}
	}

	result.Valid = strings.EqualFold(proof.SHA256Hash, computed)
	if result.Valid {
		result.Proof = &proof
	}

	c.Config.Dispatcher.Trigger(webhooks.ProofVerified{
		ProofID:      proof.ProofID,
		SHA256Hash:   proof.SHA256Hash,
		ComputedHash: computed,
		Valid:        result.Valid,
	})

	return result, nil
}

// BatchFile is one input of a certify-batch run.
type BatchFile struct {
	Name string
	Type string
	Data []byte
}

// CertifyBatch certifies each file in order and reports the rollup.
// Individual failures do not abort the batch.
func (c *Certifier) CertifyBatch(ctx context.Context, files []BatchFile) models.BatchResult {
	result := models.BatchResult{Total: len(files)}

	for _, f := range files {
		proof, err := c.Certify(ctx, f.Name, f.Type, f.Data)
		if err != nil {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", f.Name, err))
			logrus.WithError(err).WithField("file", f.Name).Error("Batch certification failed for file")
			continue
		}
		result.Succeeded++
		result.ProofIDs = append(result.ProofIDs, proof.ProofID)
	}

	c.Config.Dispatcher.Trigger(webhooks.BatchCompleted{
		Total:     result.Total,
		Succeeded: result.Succeeded,
		Failed:    result.Failed,
	})

	return result
}

// AnchorProof registers a previously unanchored proof on the
// configured registry and attaches the on-chain receipt.
func (c *Certifier) AnchorProof(ctx context.Context, proofID string) (models.Proof, error) {
	proof, err := c.Config.Database.GetProof(ctx, proofID)
	if err != nil {
		return models.Proof{}, err
	}
	if proof.OnChain != nil && proof.OnChain.Registered {
		return models.Proof{}, fmt.Errorf("%w: proof %s is already anchored", registry.ErrInvalidInput, proofID)
	}

	reg, err := c.Config.Registry.RegisterProof(ctx, registry.RegisterParams{
		ProofID:    proof.ProofID,
		Hash:       proof.SHA256Hash,
		CID:        proof.CID,
		Registrant: proof.Registrant,
	})
	if err != nil {
		return models.Proof{}, err
	}

	proof.OnChain = &models.OnChain{
		Registered:  true,
		TxHash:      reg.TxHash,
		BlockNumber: reg.BlockNumber,
	}
	proof.ExplorerURL = c.Config.Explorer + reg.TxHash
	if err := c.Config.Database.UpdateProof(ctx, proof); err != nil {
		return models.Proof{}, err
	}

	c.Config.Dispatcher.Trigger(webhooks.ProofRegistered{
		ProofID:     proof.ProofID,
		TxHash:      reg.TxHash,
		BlockNumber: reg.BlockNumber,
	})

	return proof, nil
}

// nftState is the durable mint counter.
type nftState struct {
	NextTokenID uint64 `json:"next_token_id"`
}

// MintNFT attaches a certificate token to an existing proof and emits
// nft_minted. Token ids are monotonic across restarts.
func (c *Certifier) MintNFT(ctx context.Context, proofID string) (models.Proof, error) {
	proof, err := c.Config.Database.GetProof(ctx, proofID)
	if err != nil {
		return models.Proof{}, err
	}
	if proof.NFT != nil && proof.NFT.Minted {
		return models.Proof{}, fmt.Errorf("%w: proof %s already has a token", registry.ErrInvalidInput, proofID)
	}

	state := nftState{NextTokenID: 1}
	if blob, err := c.Config.Database.LoadState(ctx, nftStateKey); err == nil {
		if err := json.Unmarshal(blob, &state); err != nil {
			return models.Proof{}, fmt.Errorf("failed to decode nft state: %w", err)
		}
	} else if !errors.Is(err, store.ErrStateNotFound) {
		return models.Proof{}, err
	}

	tokenID := state.NextTokenID
	state.NextTokenID++
	blob, err := json.Marshal(state)
	if err != nil {
		return models.Proof{}, err
	}
	if err := c.Config.Database.SaveState(ctx, nftStateKey, blob); err != nil {
		return models.Proof{}, err
	}

	proof.NFT = &models.NFT{
		Minted:  true,
		TokenID: tokenID,
		TxHash:  pseudoTxHash(),
	}
	if err := c.Config.Database.UpdateProof(ctx, proof); err != nil {
		return models.Proof{}, err
	}

	c.Config.Dispatcher.Trigger(webhooks.NFTMinted{
		ProofID: proof.ProofID,
		TokenID: tokenID,
		TxHash:  proof.NFT.TxHash,
	})

	return proof, nil
}

// Stats folds the stored proofs into the aggregate counters exposed by
// the stats endpoint.
func (c *Certifier) Stats(ctx context.Context) (models.StatsResponse, error) {
	var stats models.StatsResponse

	all, err := c.Config.Database.ListProofs(ctx)
	if err != nil {
		return stats, fmt.Errorf("failed to list proofs: %w", err)
	}

	dayAgo := time.Now().Add(-24 * time.Hour)
	for _, p := range all {
		stats.TotalProofs++
		if p.DemoMode {
			stats.DemoProofs++
		}
		if p.OnChain != nil && p.OnChain.Registered {
			stats.AnchoredProofs++
		}
		if p.CreatedAt.After(dayAgo) {
			stats.ProofsToday++
		}
		if p.CreatedAt.After(stats.LastCertifiedAt) {
			stats.LastCertifiedAt = p.CreatedAt
		}
	}

	if stats.RegistryProofs, err = c.Config.Registry.TotalProofs(ctx); err != nil {
		logrus.WithError(err).Warn("Failed to read registry proof counter")
	}
	if stats.RegistryDeals, err = c.Config.Registry.TotalDeals(ctx); err != nil {
		logrus.WithError(err).Warn("Failed to read registry deal counter")
	}

	hooks, err := c.Config.Database.ListWebhooks(ctx)
	if err != nil {
		return stats, fmt.Errorf("failed to list webhooks: %w", err)
	}
	for _, h := range hooks {
		if h.Enabled {
			stats.EnabledWebhooks++
		}
	}

	return stats, nil
}

func pseudoTxHash() string {
	buf := make([]byte, 32)
	rand.Read(buf)
	return "0x" + hex.EncodeToString(buf)
}

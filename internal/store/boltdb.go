package store

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"go.etcd.io/bbolt"

	"github.com/Heisenberg1912/filecoin/internal/models"
)

var boltBuckets = []string{
	"Proofs",
	"ProofsByHash",
	"ProofsByCID",
	"Webhooks",
	"WebhookLogs",
	"State",
}

// BoltDB implements the Database interface using bbolt.
type BoltDB struct {
	db   *bbolt.DB
	path string
	mu   sync.RWMutex
}

// NewBoltDB initializes a new BoltDB instance.
func NewBoltDB(path string) (*BoltDB, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, err
	}

	boltDB := &BoltDB{
		db:   db,
		path: path,
	}

	if err := boltDB.Initialize(context.Background()); err != nil {
		return nil, err
	}

	return boltDB, nil
}

// Initialize sets up the necessary buckets.
func (b *BoltDB) Initialize(ctx context.Context) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		for _, name := range boltBuckets {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return fmt.Errorf("create %s bucket: %w", name, err)
			}
		}
		return nil
	})
}

// Close closes the BoltDB connection.
func (b *BoltDB) Close(ctx context.Context) error {
	return b.db.Close()
}

// PutProof stores a new proof and indexes it by hash and by CID.
// The uniqueness checks and the insert run inside a single bolt write
// transaction, so a partially committed proof is never observable.
func (b *BoltDB) PutProof(ctx context.Context, proof models.Proof) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	data, err := json.Marshal(proof)
	if err != nil {
		return fmt.Errorf("failed to marshal proof: %w", err)
	}

	return b.db.Update(func(tx *bbolt.Tx) error {
		proofs := tx.Bucket([]byte("Proofs"))
		byHash := tx.Bucket([]byte("ProofsByHash"))
		byCID := tx.Bucket([]byte("ProofsByCID"))

		if proofs.Get([]byte(proof.ProofID)) != nil {
			return ErrDuplicateProofID
		}
		if byHash.Get([]byte(proof.SHA256Hash)) != nil {
			return ErrDuplicateHash
		}
		if byCID.Get([]byte(proof.CID)) != nil {
			return ErrDuplicateCID
		}

		if err := proofs.Put([]byte(proof.ProofID), data); err != nil {
			return err
		}
		if err := byHash.Put([]byte(proof.SHA256Hash), []byte(proof.ProofID)); err != nil {
			return err
		}
		return byCID.Put([]byte(proof.CID), []byte(proof.ProofID))
	})
}

// UpdateProof overwrites an existing proof record.
func (b *BoltDB) UpdateProof(ctx context.Context, proof models.Proof) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	data, err := json.Marshal(proof)
	if err != nil {
		return fmt.Errorf("failed to marshal proof: %w", err)
	}

	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte("Proofs"))
		if bucket.Get([]byte(proof.ProofID)) == nil {
			return ErrProofNotFound
		}
		return bucket.Put([]byte(proof.ProofID), data)
	})
}

// GetProof retrieves a specific proof record.
func (b *BoltDB) GetProof(ctx context.Context, proofID string) (models.Proof, error) {
	var proof models.Proof

	err := b.db.View(func(tx *bbolt.Tx) error {
		val := tx.Bucket([]byte("Proofs")).Get([]byte(proofID))
		if val == nil {
			return ErrProofNotFound
		}
		return json.Unmarshal(val, &proof)
	})
	return proof, err
}

// GetProofByHash retrieves a proof via the hash index.
func (b *BoltDB) GetProofByHash(ctx context.Context, hash string) (models.Proof, error) {
	return b.getIndexed(ctx, "ProofsByHash", hash)
}

// GetProofByCID retrieves a proof via the CID index.
func (b *BoltDB) GetProofByCID(ctx context.Context, cid string) (models.Proof, error) {
	return b.getIndexed(ctx, "ProofsByCID", cid)
}

func (b *BoltDB) getIndexed(ctx context.Context, bucket, key string) (models.Proof, error) {
	var proof models.Proof

	err := b.db.View(func(tx *bbolt.Tx) error {
		id := tx.Bucket([]byte(bucket)).Get([]byte(key))
		if id == nil {
			return ErrProofNotFound
		}
		val := tx.Bucket([]byte("Proofs")).Get(id)
		if val == nil {
			return ErrProofNotFound
		}
		return json.Unmarshal(val, &proof)
	})
	return proof, err
}

// ListProofs retrieves all proof records.
func (b *BoltDB) ListProofs(ctx context.Context) ([]models.Proof, error) {
	var proofs []models.Proof

	err := b.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte("Proofs")).ForEach(func(k, v []byte) error {
			var proof models.Proof
			if err := json.Unmarshal(v, &proof); err != nil {
				logrus.WithError(err).Warnf("Failed to unmarshal proof record %s", string(k))
				return nil // Skip invalid records
			}
			proofs = append(proofs, proof)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return proofs, nil
}

// ListProofsPaginated retrieves a page of proofs and the total count.
func (b *BoltDB) ListProofsPaginated(ctx context.Context, page, perPage int, filterDemo *bool) ([]models.Proof, int, error) {
	all, err := b.ListProofs(ctx)
	if err != nil {
		return nil, 0, err
	}

	var filtered []models.Proof
	for _, p := range all {
		if filterDemo != nil && p.DemoMode != *filterDemo {
			continue
		}
		filtered = append(filtered, p)
	}

	total := len(filtered)
	start := (page - 1) * perPage
	if start >= total {
		return []models.Proof{}, total, nil
	}
	end := start + perPage
	if end > total {
		end = total
	}
	return filtered[start:end], total, nil
}

// GetTotalProofs returns the number of stored proofs.
func (b *BoltDB) GetTotalProofs(ctx context.Context) (int, error) {
	var total int
	err := b.db.View(func(tx *bbolt.Tx) error {
		total = tx.Bucket([]byte("Proofs")).Stats().KeyN
		return nil
	})
	return total, err
}

// AddWebhook stores a new webhook subscription.
func (b *BoltDB) AddWebhook(ctx context.Context, hook models.Webhook) error {
	return b.putWebhook(hook, false)
}

// UpdateWebhook overwrites an existing webhook subscription.
func (b *BoltDB) UpdateWebhook(ctx context.Context, hook models.Webhook) error {
	return b.putWebhook(hook, true)
}

func (b *BoltDB) putWebhook(hook models.Webhook, mustExist bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	data, err := json.Marshal(hook)
	if err != nil {
		return fmt.Errorf("failed to marshal webhook: %w", err)
	}

	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte("Webhooks"))
		existing := bucket.Get([]byte(hook.ID))
		if mustExist && existing == nil {
			return ErrWebhookNotFound
		}
		return bucket.Put([]byte(hook.ID), data)
	})
}

// DeleteWebhook removes a webhook subscription.
func (b *BoltDB) DeleteWebhook(ctx context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte("Webhooks"))
		if bucket.Get([]byte(id)) == nil {
			return ErrWebhookNotFound
		}
		return bucket.Delete([]byte(id))
	})
}

// GetWebhook retrieves a webhook by id.
func (b *BoltDB) GetWebhook(ctx context.Context, id string) (models.Webhook, error) {
	var hook models.Webhook

	err := b.db.View(func(tx *bbolt.Tx) error {
		val := tx.Bucket([]byte("Webhooks")).Get([]byte(id))
		if val == nil {
			return ErrWebhookNotFound
		}
		return json.Unmarshal(val, &hook)
	})
	return hook, err
}

// ListWebhooks retrieves all webhook subscriptions.
func (b *BoltDB) ListWebhooks(ctx context.Context) ([]models.Webhook, error) {
	var hooks []models.Webhook

	err := b.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte("Webhooks")).ForEach(func(k, v []byte) error {
			var hook models.Webhook
			if err := json.Unmarshal(v, &hook); err != nil {
				logrus.WithError(err).Warnf("Failed to unmarshal webhook %s", string(k))
				return nil
			}
			hooks = append(hooks, hook)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return hooks, nil
}

// AppendWebhookLog appends a delivery log entry. Entries are keyed by a
// monotonic sequence so bucket order is chronological; anything past
// the retention cap is evicted oldest-first in the same transaction.
func (b *BoltDB) AppendWebhookLog(ctx context.Context, entry models.WebhookLogEntry) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal log entry: %w", err)
	}

	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte("WebhookLogs"))
		seq, err := bucket.NextSequence()
		if err != nil {
			return err
		}
		key := make([]byte, 8)
		binary.BigEndian.PutUint64(key, seq)
		if err := bucket.Put(key, data); err != nil {
			return err
		}

		excess := bucket.Stats().KeyN + 1 - WebhookLogCap
		if excess <= 0 {
			return nil
		}
		var stale [][]byte
		c := bucket.Cursor()
		for k, _ := c.First(); k != nil && len(stale) < excess; k, _ = c.Next() {
			stale = append(stale, append([]byte(nil), k...))
		}
		for _, k := range stale {
			if err := bucket.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}

// ListWebhookLogs retrieves the most recent delivery log entries, newest first.
func (b *BoltDB) ListWebhookLogs(ctx context.Context, limit int) ([]models.WebhookLogEntry, error) {
	var entries []models.WebhookLogEntry

	err := b.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte("WebhookLogs")).Cursor()
		for k, v := c.Last(); k != nil && (limit <= 0 || len(entries) < limit); k, v = c.Prev() {
			var entry models.WebhookLogEntry
			if err := json.Unmarshal(v, &entry); err != nil {
				continue
			}
			entries = append(entries, entry)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return entries, nil
}

// SaveState persists an opaque blob under a fixed logical name.
func (b *BoltDB) SaveState(ctx context.Context, name string, blob []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte("State")).Put([]byte(name), blob)
	})
}

// LoadState retrieves a blob previously saved under name.
func (b *BoltDB) LoadState(ctx context.Context, name string) ([]byte, error) {
	var blob []byte

	err := b.db.View(func(tx *bbolt.Tx) error {
		val := tx.Bucket([]byte("State")).Get([]byte(name))
		if val == nil {
			return ErrStateNotFound
		}
		blob = append([]byte(nil), val...)
		return nil
	})
	return blob, err
}

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/go-redis/redis/v8"

	"github.com/Heisenberg1912/filecoin/internal/models"
)

// RedisDB implements the Database interface using Redis.
type RedisDB struct {
	client *redis.Client
}

// NewRedisDB initializes a new RedisDB instance.
func NewRedisDB(cfg *DatabaseConfig) (*RedisDB, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPass,
		DB:       cfg.RedisDB,
	})

	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		return nil, err
	}

	return &RedisDB{client: rdb}, nil
}

// Initialize sets up necessary Redis structures if needed.
func (r *RedisDB) Initialize(ctx context.Context) error {
	// Redis is schema-less; nothing to create up front.
	return nil
}

// Close closes the Redis client connection.
func (r *RedisDB) Close(ctx context.Context) error {
	return r.client.Close()
}

// PutProof stores a new proof and indexes it by hash and by CID.
// The check-then-set runs under a WATCH transaction so two concurrent
// writers cannot both bind the same hash or CID.
func (r *RedisDB) PutProof(ctx context.Context, proof models.Proof) error {
	data, err := json.Marshal(proof)
	if err != nil {
		return fmt.Errorf("failed to marshal proof: %w", err)
	}

	proofKey := fmt.Sprintf("proof:%s", proof.ProofID)
	hashKey := fmt.Sprintf("proof_hash:%s", proof.SHA256Hash)
	cidKey := fmt.Sprintf("proof_cid:%s", proof.CID)

	return r.client.Watch(ctx, func(tx *redis.Tx) error {
		if n, err := tx.Exists(ctx, proofKey).Result(); err != nil {
			return err
		} else if n == 1 {
			return ErrDuplicateProofID
		}
		if n, err := tx.Exists(ctx, hashKey).Result(); err != nil {
			return err
		} else if n == 1 {
			return ErrDuplicateHash
		}
		if n, err := tx.Exists(ctx, cidKey).Result(); err != nil {
			return err
		} else if n == 1 {
			return ErrDuplicateCID
		}

		_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, proofKey, data, 0)
			pipe.Set(ctx, hashKey, proof.ProofID, 0)
			pipe.Set(ctx, cidKey, proof.ProofID, 0)
			return nil
		})
		return err
	}, proofKey, hashKey, cidKey)
}

// UpdateProof overwrites an existing proof record.
func (r *RedisDB) UpdateProof(ctx context.Context, proof models.Proof) error {
	key := fmt.Sprintf("proof:%s", proof.ProofID)
	n, err := r.client.Exists(ctx, key).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrProofNotFound
	}

	data, err := json.Marshal(proof)
	if err != nil {
		return fmt.Errorf("failed to marshal proof: %w", err)
	}
	return r.client.Set(ctx, key, data, 0).Err()
}

// GetProof retrieves a specific proof record.
func (r *RedisDB) GetProof(ctx context.Context, proofID string) (models.Proof, error) {
	var proof models.Proof

	val, err := r.client.Get(ctx, fmt.Sprintf("proof:%s", proofID)).Result()
	if err != nil {
		if err == redis.Nil {
			return proof, ErrProofNotFound
		}
		return proof, err
	}

	err = json.Unmarshal([]byte(val), &proof)
	return proof, err
}

// GetProofByHash retrieves a proof via the hash index.
func (r *RedisDB) GetProofByHash(ctx context.Context, hash string) (models.Proof, error) {
	return r.getIndexed(ctx, fmt.Sprintf("proof_hash:%s", hash))
}

// GetProofByCID retrieves a proof via the CID index.
func (r *RedisDB) GetProofByCID(ctx context.Context, cid string) (models.Proof, error) {
	return r.getIndexed(ctx, fmt.Sprintf("proof_cid:%s", cid))
}

func (r *RedisDB) getIndexed(ctx context.Context, indexKey string) (models.Proof, error) {
	id, err := r.client.Get(ctx, indexKey).Result()
	if err != nil {
		if err == redis.Nil {
			return models.Proof{}, ErrProofNotFound
		}
		return models.Proof{}, err
	}
	return r.GetProof(ctx, id)
}

// ListProofs retrieves all proof records.
func (r *RedisDB) ListProofs(ctx context.Context) ([]models.Proof, error) {
	var proofs []models.Proof

	iter := r.client.Scan(ctx, 0, "proof:*", 0).Iterator()
	for iter.Next(ctx) {
		val, err := r.client.Get(ctx, iter.Val()).Result()
		if err != nil {
			continue
		}
		var proof models.Proof
		if err := json.Unmarshal([]byte(val), &proof); err != nil {
			continue
		}
		proofs = append(proofs, proof)
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}

	return proofs, nil
}

// ListProofsPaginated retrieves a page of proofs and the total count.
// SCAN yields keys in no particular order, so pages are stabilized by
// sorting on creation time, newest first.
func (r *RedisDB) ListProofsPaginated(ctx context.Context, page, perPage int, filterDemo *bool) ([]models.Proof, int, error) {
	all, err := r.ListProofs(ctx)
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
	sort.Slice(filtered, func(i, j int) bool {
		return filtered[i].CreatedAt.After(filtered[j].CreatedAt)
	})

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
func (r *RedisDB) GetTotalProofs(ctx context.Context) (int, error) {
	var total int
	iter := r.client.Scan(ctx, 0, "proof:*", 0).Iterator()
	for iter.Next(ctx) {
		total++
	}
	return total, iter.Err()
}

// AddWebhook stores a new webhook subscription.
func (r *RedisDB) AddWebhook(ctx context.Context, hook models.Webhook) error {
	return r.setWebhook(ctx, hook)
}

// UpdateWebhook overwrites an existing webhook subscription.
func (r *RedisDB) UpdateWebhook(ctx context.Context, hook models.Webhook) error {
	key := fmt.Sprintf("webhook:%s", hook.ID)
	n, err := r.client.Exists(ctx, key).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrWebhookNotFound
	}
	return r.setWebhook(ctx, hook)
}

func (r *RedisDB) setWebhook(ctx context.Context, hook models.Webhook) error {
	data, err := json.Marshal(hook)
	if err != nil {
		return fmt.Errorf("failed to marshal webhook: %w", err)
	}
	return r.client.Set(ctx, fmt.Sprintf("webhook:%s", hook.ID), data, 0).Err()
}

// DeleteWebhook removes a webhook subscription.
func (r *RedisDB) DeleteWebhook(ctx context.Context, id string) error {
	key := fmt.Sprintf("webhook:%s", id)
	n, err := r.client.Del(ctx, key).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrWebhookNotFound
	}
	return nil
}

// GetWebhook retrieves a webhook by id.
func (r *RedisDB) GetWebhook(ctx context.Context, id string) (models.Webhook, error) {
	var hook models.Webhook

	val, err := r.client.Get(ctx, fmt.Sprintf("webhook:%s", id)).Result()
	if err != nil {
		if err == redis.Nil {
			return hook, ErrWebhookNotFound
		}
		return hook, err
	}

	err = json.Unmarshal([]byte(val), &hook)
	return hook, err
}

// ListWebhooks retrieves all webhook subscriptions.
func (r *RedisDB) ListWebhooks(ctx context.Context) ([]models.Webhook, error) {
	var hooks []models.Webhook

	iter := r.client.Scan(ctx, 0, "webhook:*", 0).Iterator()
	for iter.Next(ctx) {
		val, err := r.client.Get(ctx, iter.Val()).Result()
		if err != nil {
			continue
		}
		var hook models.Webhook
		if err := json.Unmarshal([]byte(val), &hook); err != nil {
			continue
		}
		hooks = append(hooks, hook)
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}

	return hooks, nil
}

// AppendWebhookLog appends a delivery log entry to a capped list.
func (r *RedisDB) AppendWebhookLog(ctx context.Context, entry models.WebhookLogEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal log entry: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.LPush(ctx, "webhook_logs", data)
	pipe.LTrim(ctx, "webhook_logs", 0, WebhookLogCap-1)
	_, err = pipe.Exec(ctx)
	return err
}

// ListWebhookLogs retrieves the most recent delivery log entries, newest first.
func (r *RedisDB) ListWebhookLogs(ctx context.Context, limit int) ([]models.WebhookLogEntry, error) {
	stop := int64(WebhookLogCap - 1)
	if limit > 0 && int64(limit-1) < stop {
		stop = int64(limit - 1)
	}

	vals, err := r.client.LRange(ctx, "webhook_logs", 0, stop).Result()
	if err != nil {
		return nil, err
	}

	var entries []models.WebhookLogEntry
	for _, val := range vals {
		var entry models.WebhookLogEntry
		if err := json.Unmarshal([]byte(val), &entry); err != nil {
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// SaveState persists an opaque blob under a fixed logical name.
func (r *RedisDB) SaveState(ctx context.Context, name string, blob []byte) error {
	return r.client.Set(ctx, fmt.Sprintf("state:%s", name), blob, 0).Err()
}

// LoadState retrieves a blob previously saved under name.
func (r *RedisDB) LoadState(ctx context.Context, name string) ([]byte, error) {
	val, err := r.client.Get(ctx, fmt.Sprintf("state:%s", name)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrStateNotFound
		}
		return nil, err
	}
	return val, nil
}

package proofs

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ComputeDigest returns the SHA-256 content digest as 64 lower-case
// hex characters. Identical bytes always yield the identical string.
func ComputeDigest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// GenerateProofID returns a new proof identifier: a time-ordered
// millisecond component plus a random suffix. Callers treat it as an
// opaque key; the format is advisory only.
func GenerateProofID() string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	return fmt.Sprintf("proof_%d_%s", time.Now().UnixMilli(), suffix)
}

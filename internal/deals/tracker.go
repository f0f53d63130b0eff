package deals

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Heisenberg1912/filecoin/internal/models"
)

const (
	cacheTTL = 5 * time.Minute
	// Entries older than twice the TTL are swept on the next write.
	cacheEvictAge = 2 * cacheTTL
)

type cacheEntry struct {
	summary   models.DealSummary
	fetchedAt time.Time
}

// Tracker resolves deal status for locators with a TTL cache and a
// deterministic simulation fallback. Construct once and inject.
type Tracker struct {
	source StatusSource
	sim    *Simulator

	mu    sync.Mutex
	cache map[string]cacheEntry

	now func() time.Time
}

// NewTracker initializes a Tracker over the given status source. When
// source is nil (simulation selected by configuration) every query is
// answered by the simulator directly.
func NewTracker(source StatusSource) *Tracker {
	return &Tracker{
		source: source,
		sim:    NewSimulator(),
		cache:  make(map[string]cacheEntry),
		now:    time.Now,
	}
}

// Status returns the deal summary for cid. Results, including
// simulated ones, are cached for five minutes per locator.
func (t *Tracker) Status(ctx context.Context, cid string) (models.DealSummary, error) {
	t.mu.Lock()
	entry, ok := t.cache[cid]
	t.mu.Unlock()
	if ok && t.now().Sub(entry.fetchedAt) < cacheTTL {
		return entry.summary, nil
	}

	summary := t.lookup(ctx, cid)

	t.mu.Lock()
	t.cache[cid] = cacheEntry{summary: summary, fetchedAt: t.now()}
	t.sweepLocked()
	t.mu.Unlock()

	return summary, nil
}

func (t *Tracker) lookup(ctx context.Context, cid string) models.DealSummary {
	if t.source == nil {
		summary, _ := t.sim.DealStatus(ctx, cid)
		return summary
	}

	summary, err := t.source.DealStatus(ctx, cid)
	if err == nil {
		return summary
	}

	if errors.Is(err, ErrStatusNotFound) {
		return models.DealSummary{
			CID:    cid,
			Status: models.DealNotFound,
			Deals:  []models.Deal{},
		}
	}

	logrus.WithFields(logrus.Fields{
		"cid":    cid,
		"source": t.source.SourceName(),
		"error":  err.Error(),
	}).Warn("Deal-status query failed; falling back to simulation")

	summary, _ = t.sim.DealStatus(ctx, cid)
	return summary
}

// sweepLocked evicts entries past the eviction age. Caller holds t.mu.
func (t *Tracker) sweepLocked() {
	cutoff := t.now().Add(-cacheEvictAge)
	for cid, entry := range t.cache {
		if entry.fetchedAt.Before(cutoff) {
			delete(t.cache, cid)
		}
	}
}

// CachedLocators reports how many locators currently have a cached summary.
func (t *Tracker) CachedLocators() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.cache)
}

package deals

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"github.com/Heisenberg1912/filecoin/internal/models"
)

// analyticsConcurrency bounds concurrent status lookups during a fold.
const analyticsConcurrency = 5

// Analytics fetches the deal summary for every locator concurrently and
// folds the results into aggregate storage metrics. Lookups are
// independent and idempotent, so no ordering is required between them.
func (t *Tracker) Analytics(ctx context.Context, cids []string) (models.StorageAnalytics, error) {
	var analytics models.StorageAnalytics
	if len(cids) == 0 {
		return analytics, nil
	}

	summaries := make([]models.DealSummary, len(cids))
	sem := semaphore.NewWeighted(analyticsConcurrency)
	var wg sync.WaitGroup

	for i, cid := range cids {
		if err := sem.Acquire(ctx, 1); err != nil {
			return analytics, err
		}
		wg.Add(1)
		go func(i int, cid string) {
			defer wg.Done()
			defer sem.Release(1)
			summary, err := t.Status(ctx, cid)
			if err != nil {
				logrus.WithError(err).WithField("cid", cid).Error("Failed to fetch deal status for analytics")
				return
			}
			summaries[i] = summary
		}(i, cid)
	}
	wg.Wait()

	providers := make(map[string]struct{})
	totalReplicas := 0
	for _, summary := range summaries {
		for _, d := range summary.Deals {
			providers[d.Provider] = struct{}{}
			switch d.Status {
			case models.DealActive:
				analytics.ActiveDeals++
			case models.DealPending:
				analytics.PendingDeals++
			}
			if analytics.OldestDeal.IsZero() || d.CreatedAt.Before(analytics.OldestDeal) {
				analytics.OldestDeal = d.CreatedAt
			}
			if d.CreatedAt.After(analytics.NewestDeal) {
				analytics.NewestDeal = d.CreatedAt
			}
		}
		totalReplicas += len(summary.Deals)
	}

	analytics.UniqueProviders = len(providers)
	analytics.AvgReplication = float64(totalReplicas) / float64(len(cids))
	return analytics, nil
}

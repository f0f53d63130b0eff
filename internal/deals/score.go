package deals

import "github.com/Heisenberg1912/filecoin/internal/models"

// HealthScore rates deal redundancy on a fixed 0-100 step scale.
// The mapping is a contract other components depend on:
//
//	>=3 active  100 Excellent
//	  2 active   80 Good
//	  1 active   60 Fair
//	  0 active, pending        40 Pending
//	  anything else            20 At Risk
//	  not_found                 0 No Data
func HealthScore(summary models.DealSummary) models.DealHealth {
	if summary.Status == models.DealNotFound {
		return models.DealHealth{Score: 0, Label: "No Data", Severity: "none"}
	}

	active := summary.ActiveDeals()
	switch {
	case active >= 3:
		return models.DealHealth{Score: 100, Label: "Excellent", Severity: "ok"}
	case active == 2:
		return models.DealHealth{Score: 80, Label: "Good", Severity: "ok"}
	case active == 1:
		return models.DealHealth{Score: 60, Label: "Fair", Severity: "warning"}
	case summary.Status == models.DealPending:
		return models.DealHealth{Score: 40, Label: "Pending", Severity: "warning"}
	default:
		return models.DealHealth{Score: 20, Label: "At Risk", Severity: "critical"}
	}
}

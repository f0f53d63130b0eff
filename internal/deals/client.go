package deals

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/Heisenberg1912/filecoin/internal/models"
)

// StatusSource answers deal-status queries for a content locator.
type StatusSource interface {
	// DealStatus returns the deal rollup for cid. A missing locator is
	// reported as ErrStatusNotFound; any other error means the query
	// itself failed and the caller may fall back.
	DealStatus(ctx context.Context, cid string) (models.DealSummary, error)
	// SourceName returns the name of the status source.
	SourceName() string
}

// ErrStatusNotFound distinguishes "the service does not know this
// locator" from "the query failed".
var ErrStatusNotFound = errors.New("locator not known to status service")

// RateLimiter bounds outbound queries to the status service.
type RateLimiter struct {
	Limiter *rate.Limiter
	Burst   int
	Rate    rate.Limit // Requests per second
}

// HTTPClient queries a w3s-style status endpoint: GET <base>/status/<cid>.
type HTTPClient struct {
	BaseURL     string
	Token       string
	Client      *http.Client
	RateLimiter *RateLimiter
}

// NewHTTPClient initializes a new status client.
func NewHTTPClient(baseURL, token string) *HTTPClient {
	return &HTTPClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		Client:  &http.Client{Timeout: 15 * time.Second},
	}
}

// SetRateLimiter sets the rate limiter for the status client.
func (c *HTTPClient) SetRateLimiter(limiter *RateLimiter) {
	c.RateLimiter = limiter
}

// SourceName returns the name of the status source.
func (c *HTTPClient) SourceName() string {
	return "w3s-status"
}

// statusPayload mirrors the status service's wire shape.
type statusPayload struct {
	CID  string `json:"cid"`
	Pins []struct {
		Status string `json:"status"`
	} `json:"pins"`
	Deals []struct {
		DealID          int64  `json:"dealId"`
		StorageProvider string `json:"storageProvider"`
		Status          string `json:"status"`
		PieceCID        string `json:"pieceCid"`
		Activation      string `json:"activation"`
		Expiration      string `json:"expiration"`
		Created         string `json:"created"`
	} `json:"deals"`
}

// DealStatus queries the remote service for cid.
func (c *HTTPClient) DealStatus(ctx context.Context, cid string) (models.DealSummary, error) {
	var summary models.DealSummary

	if c.RateLimiter != nil {
		if err := c.RateLimiter.Limiter.Wait(ctx); err != nil {
			return summary, fmt.Errorf("rate limiter error: %v", err)
		}
	}

	url := fmt.Sprintf("%s/status/%s", c.BaseURL, cid)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return summary, err
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		return summary, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		// fall through to decode
	case http.StatusNotFound:
		return summary, ErrStatusNotFound
	case http.StatusTooManyRequests:
		return summary, fmt.Errorf("status service rate limit exceeded")
	default:
		return summary, fmt.Errorf("status service returned status: %d", resp.StatusCode)
	}

	var payload statusPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return summary, fmt.Errorf("failed to decode status payload: %w", err)
	}

	summary.CID = cid
	for _, p := range payload.Pins {
		if strings.EqualFold(p.Status, "pinned") {
			summary.Pinned = true
			break
		}
	}
	for _, d := range payload.Deals {
		summary.Deals = append(summary.Deals, models.Deal{
			DealID:     d.DealID,
			Provider:   d.StorageProvider,
			Status:     parseDealStatus(d.Status),
			PieceCID:   d.PieceCID,
			Activation: parseTime(d.Activation),
			Expiration: parseTime(d.Expiration),
			CreatedAt:  parseTime(d.Created),
		})
	}
	summary.Status = RollupStatus(summary.Deals)
	return summary, nil
}

func parseDealStatus(s string) models.DealStatus {
	switch strings.ToLower(s) {
	case "active", "published":
		return models.DealActive
	case "queued", "pending", "proposed":
		return models.DealPending
	case "expired", "terminated":
		return models.DealExpired
	case "slashed":
		return models.DealSlashed
	default:
		return models.DealUnknown
	}
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// RollupStatus derives the summary status from individual deals:
// active if any deal is active, else pending if any is pending, else
// expired if any deal exists at all, else unknown.
func RollupStatus(deals []models.Deal) models.DealStatus {
	hasPending := false
	for _, d := range deals {
		switch d.Status {
		case models.DealActive:
			return models.DealActive
		case models.DealPending:
			hasPending = true
		}
	}
	if hasPending {
		return models.DealPending
	}
	if len(deals) > 0 {
		return models.DealExpired
	}
	return models.DealUnknown
}

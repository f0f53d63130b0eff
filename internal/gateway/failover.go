package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

const defaultAttemptTimeout = 30 * time.Second

// FetchOptions tune a failover fetch.
type FetchOptions struct {
	// AttemptTimeout bounds each individual endpoint attempt.
	// Zero means the 30 s default.
	AttemptTimeout time.Duration
}

// Attempt records one endpoint try in a failover fetch.
type Attempt struct {
	Endpoint  string `json:"endpoint"`
	URL       string `json:"url"`
	Error     string `json:"error,omitempty"`
	ElapsedMs int64  `json:"elapsed_ms"`
}

// FetchResult is the outcome of a successful failover fetch. Attempts
// includes the failed tries that preceded the success.
type FetchResult struct {
	Payload  []byte    `json:"-"`
	Endpoint string    `json:"endpoint"`
	URL      string    `json:"url"`
	Attempts []Attempt `json:"attempts"`
}

// ErrAllEndpointsFailed is returned when every candidate endpoint was
// tried and none produced the content.
var ErrAllEndpointsFailed = errors.New("all gateway endpoints failed")

// FetchWithFailover retrieves a locator by trying endpoints one at a
// time in health-ranked order. Attempts are strictly sequential: at
// most one request is in flight, and preference order is preserved.
// When no endpoint is healthy the three highest-priority endpoints are
// tried anyway rather than failing outright.
func (m *Monitor) FetchWithFailover(ctx context.Context, cid string, opts FetchOptions) (*FetchResult, error) {
	timeout := opts.AttemptTimeout
	if timeout <= 0 {
		timeout = defaultAttemptTimeout
	}

	candidates := m.tryOrder(ctx)

	var attempts []Attempt
	var lastErr error
	for _, ep := range candidates {
		url := ep.URL + cid
		start := m.now()
		payload, err := m.fetchOnce(ctx, url, timeout)
		elapsed := m.now().Sub(start).Milliseconds()

		if err == nil {
			return &FetchResult{
				Payload:  payload,
				Endpoint: ep.Name,
				URL:      url,
				Attempts: attempts,
			}, nil
		}

		lastErr = err
		attempts = append(attempts, Attempt{
			Endpoint:  ep.Name,
			URL:       url,
			Error:     err.Error(),
			ElapsedMs: elapsed,
		})
		logrus.WithFields(logrus.Fields{
			"cid":      cid,
			"endpoint": ep.Name,
			"error":    err.Error(),
		}).Warn("Gateway attempt failed; advancing to next endpoint")
	}

	return &FetchResult{Attempts: attempts}, fmt.Errorf("%w after %d attempts: %v", ErrAllEndpointsFailed, len(attempts), lastErr)
}

// tryOrder builds the failover candidate list: all healthy endpoints in
// ranked order, or the three highest-priority endpoints if none are
// healthy.
func (m *Monitor) tryOrder(ctx context.Context) []Endpoint {
	ranked := m.RankEndpoints(ctx)

	var healthy []Endpoint
	for _, r := range ranked {
		if r.Health.Healthy {
			healthy = append(healthy, r.Endpoint)
		}
	}
	if len(healthy) > 0 {
		return healthy
	}

	n := 3
	if len(m.endpoints) < n {
		n = len(m.endpoints)
	}
	return m.Endpoints()[:n]
}

func (m *Monitor) fetchOnce(ctx context.Context, url string, timeout time.Duration) ([]byte, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := m.fetcher.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || attemptCtx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("timeout fetching %s", url)
		}
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gateway returned status %d", resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}

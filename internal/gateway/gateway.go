package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Heisenberg1912/filecoin/internal/models"
)

// Tier separates the gateways we operate or pay for from best-effort
// public ones. Configured order within the slice is the priority order.
type Tier string

const (
	TierPrimary Tier = "primary"
	TierPublic  Tier = "public"
)

// Endpoint is one content-addressed gateway. URL is the path prefix a
// CID is appended to.
type Endpoint struct {
	Name string
	URL  string
	Tier Tier
}

// DefaultEndpoints is the built-in priority-ordered gateway set.
func DefaultEndpoints() []Endpoint {
	return []Endpoint{
		{Name: "w3s.link", URL: "https://w3s.link/ipfs/", Tier: TierPrimary},
		{Name: "dweb.link", URL: "https://dweb.link/ipfs/", Tier: TierPrimary},
		{Name: "ipfs.io", URL: "https://ipfs.io/ipfs/", Tier: TierPublic},
		{Name: "cloudflare-ipfs.com", URL: "https://cloudflare-ipfs.com/ipfs/", Tier: TierPublic},
		{Name: "gateway.pinata.cloud", URL: "https://gateway.pinata.cloud/ipfs/", Tier: TierPublic},
		{Name: "nftstorage.link", URL: "https://nftstorage.link/ipfs/", Tier: TierPublic},
	}
}

// testCID is known-pinned content used for existence probes (the
// public-gateway-checker payload, pinned across the default gateways).
const testCID = "bafybeifx7yeb55armcsxwwitkymga5xf53dxiarykms3ygqic223w5sk3m"

const (
	probeTimeout    = 5 * time.Second
	healthFreshness = 60 * time.Second
)

// Monitor maintains the endpoint set and a freshness-windowed health
// cache. Construct once and inject; it owns all of its state.
type Monitor struct {
	endpoints []Endpoint
	client    *http.Client
	fetcher   *http.Client
	probeCID  string
	freshFor  time.Duration

	mu    sync.Mutex
	cache map[string]models.GatewayHealth

	now func() time.Time
}

// NewMonitor initializes a Monitor over the given endpoints. A nil or
// empty slice falls back to the default set.
func NewMonitor(endpoints []Endpoint) *Monitor {
	if len(endpoints) == 0 {
		endpoints = DefaultEndpoints()
	}
	return &Monitor{
		endpoints: endpoints,
		client:    &http.Client{Timeout: probeTimeout},
		fetcher:   &http.Client{},
		probeCID:  testCID,
		freshFor:  healthFreshness,
		cache:     make(map[string]models.GatewayHealth),
		now:       time.Now,
	}
}

// Endpoints returns the configured endpoints in priority order.
func (m *Monitor) Endpoints() []Endpoint {
	out := make([]Endpoint, len(m.endpoints))
	copy(out, m.endpoints)
	return out
}

// CheckHealth probes a single endpoint, returning the cached result if
// it is still within the freshness window. It never returns an error;
// probe failures are recorded in the GatewayHealth itself.
func (m *Monitor) CheckHealth(ctx context.Context, ep Endpoint) models.GatewayHealth {
	m.mu.Lock()
	cached, ok := m.cache[ep.Name]
	m.mu.Unlock()
	if ok && m.now().Sub(cached.LastCheckedAt) < m.freshFor {
		return cached
	}

	health := m.probe(ctx, ep)

	m.mu.Lock()
	m.cache[ep.Name] = health
	m.mu.Unlock()
	return health
}

func (m *Monitor) probe(ctx context.Context, ep Endpoint) models.GatewayHealth {
	health := models.GatewayHealth{
		Name:          ep.Name,
		LastCheckedAt: m.now(),
	}

	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodHead, ep.URL+m.probeCID, nil)
	if err != nil {
		health.Error = err.Error()
		return health
	}

	start := m.now()
	resp, err := m.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || probeCtx.Err() == context.DeadlineExceeded {
			health.Error = "Timeout"
		} else {
			health.Error = err.Error()
		}
		return health
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		health.Error = fmt.Sprintf("gateway returned status %d", resp.StatusCode)
		return health
	}

	latency := m.now().Sub(start).Milliseconds()
	health.Healthy = true
	health.LatencyMs = &latency
	return health
}

// Ranked pairs an endpoint with its resolved health and configured priority.
type Ranked struct {
	Endpoint Endpoint
	Health   models.GatewayHealth
	Priority int
}

// RankEndpoints refreshes health for every endpoint concurrently, then
// orders them: healthy before unhealthy, healthy by ascending latency,
// unhealthy by configured priority. The sort is stable, so identical
// health inputs always produce the same order.
func (m *Monitor) RankEndpoints(ctx context.Context) []Ranked {
	ranked := make([]Ranked, len(m.endpoints))

	var wg sync.WaitGroup
	for i, ep := range m.endpoints {
		wg.Add(1)
		go func(i int, ep Endpoint) {
			defer wg.Done()
			ranked[i] = Ranked{
				Endpoint: ep,
				Health:   m.CheckHealth(ctx, ep),
				Priority: i,
			}
		}(i, ep)
	}
	wg.Wait()

	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.Health.Healthy != b.Health.Healthy {
			return a.Health.Healthy
		}
		if a.Health.Healthy {
			return latencyOf(a.Health) < latencyOf(b.Health)
		}
		return a.Priority < b.Priority
	})

	return ranked
}

func latencyOf(h models.GatewayHealth) int64 {
	if h.LatencyMs == nil {
		return int64(^uint64(0) >> 1)
	}
	return *h.LatencyMs
}

// HealthSnapshot returns ranked health for all endpoints, for the API.
func (m *Monitor) HealthSnapshot(ctx context.Context) []models.GatewayHealth {
	ranked := m.RankEndpoints(ctx)
	out := make([]models.GatewayHealth, len(ranked))
	for i, r := range ranked {
		out[i] = r.Health
	}
	return out
}

// HealthyCount reports how many endpoints are currently healthy.
func (m *Monitor) HealthyCount(ctx context.Context) int {
	n := 0
	for _, r := range m.RankEndpoints(ctx) {
		if r.Health.Healthy {
			n++
		}
	}
	return n
}

// Resolve returns the gateway URL for a locator using the top-ranked
// healthy endpoint, degrading to the top-priority endpoint when none
// are healthy. It never fails; retrieval itself may.
func (m *Monitor) Resolve(ctx context.Context, cid string) string {
	ranked := m.RankEndpoints(ctx)
	for _, r := range ranked {
		if r.Health.Healthy {
			return r.Endpoint.URL + cid
		}
	}
	logrus.WithField("cid", cid).Warn("No healthy gateways; resolving via top-priority endpoint")
	return m.endpoints[0].URL + cid
}

package gateway

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

// newTestMonitor builds a monitor over the given endpoints without
// touching the real gateway set.
func newTestMonitor(endpoints []Endpoint) *Monitor {
	m := NewMonitor(endpoints)
	m.probeCID = "probe"
	return m
}

func TestCheckHealthProbesEndpoint(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	m := newTestMonitor([]Endpoint{{Name: "test", URL: server.URL + "/ipfs/", Tier: TierPrimary}})

	health := m.CheckHealth(context.Background(), m.Endpoints()[0])
	if !health.Healthy {
		t.Errorf("expected healthy endpoint, got error %q", health.Error)
	}
	if health.LatencyMs == nil {
		t.Error("expected latency to be recorded")
	}
}

func TestCheckHealthRecordsFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	m := newTestMonitor([]Endpoint{{Name: "bad", URL: server.URL + "/ipfs/", Tier: TierPublic}})

	health := m.CheckHealth(context.Background(), m.Endpoints()[0])
	if health.Healthy {
		t.Error("expected unhealthy endpoint")
	}
	if health.Error == "" {
		t.Error("expected probe error to be recorded")
	}
	if health.LatencyMs != nil {
		t.Error("expected no latency for failed probe")
	}
}

func TestCheckHealthUsesFreshCache(t *testing.T) {
	var probes int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&probes, 1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	m := newTestMonitor([]Endpoint{{Name: "cached", URL: server.URL + "/ipfs/", Tier: TierPrimary}})
	ep := m.Endpoints()[0]
	ctx := context.Background()

	m.CheckHealth(ctx, ep)
	m.CheckHealth(ctx, ep)
	if n := atomic.LoadInt64(&probes); n != 1 {
		t.Errorf("expected 1 probe within the freshness window, got %d", n)
	}

	// Age the cached result past the freshness window.
	m.now = func() time.Time { return time.Now().Add(2 * healthFreshness) }
	m.CheckHealth(ctx, ep)
	if n := atomic.LoadInt64(&probes); n != 2 {
		t.Errorf("expected a re-probe after the freshness window, got %d probes", n)
	}
}

func TestRankEndpointsPrefersLowLatency(t *testing.T) {
	fast := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer fast.Close()
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer slow.Close()
	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer down.Close()

	// Configured priority is deliberately worst-first.
	m := newTestMonitor([]Endpoint{
		{Name: "down", URL: down.URL + "/ipfs/", Tier: TierPrimary},
		{Name: "slow", URL: slow.URL + "/ipfs/", Tier: TierPrimary},
		{Name: "fast", URL: fast.URL + "/ipfs/", Tier: TierPublic},
	})

	ranked := m.RankEndpoints(context.Background())
	if len(ranked) != 3 {
		t.Fatalf("expected 3 ranked endpoints, got %d", len(ranked))
	}
	if ranked[0].Endpoint.Name != "fast" {
		t.Errorf("expected fast endpoint first, got %s", ranked[0].Endpoint.Name)
	}
	if ranked[1].Endpoint.Name != "slow" {
		t.Errorf("expected slow endpoint second, got %s", ranked[1].Endpoint.Name)
	}
	if ranked[2].Endpoint.Name != "down" {
		t.Errorf("expected down endpoint last, got %s", ranked[2].Endpoint.Name)
	}
}

func TestFetchWithFailoverAdvancesToThirdEndpoint(t *testing.T) {
	// HEAD probes fail everywhere, forcing the priority fallback so
	// the try order is the configured order.
	failing := func() *httptest.Server {
		return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
	}
	first := failing()
	defer first.Close()
	second := failing()
	defer second.Close()
	third := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte("pinned content"))
	}))
	defer third.Close()

	m := newTestMonitor([]Endpoint{
		{Name: "first", URL: first.URL + "/ipfs/", Tier: TierPrimary},
		{Name: "second", URL: second.URL + "/ipfs/", Tier: TierPrimary},
		{Name: "third", URL: third.URL + "/ipfs/", Tier: TierPublic},
	})

	result, err := m.FetchWithFailover(context.Background(), "bafytest", FetchOptions{})
	if err != nil {
		t.Fatalf("expected failover to succeed, got %v", err)
	}
	if result.Endpoint != "third" {
		t.Errorf("expected content from third endpoint, got %s", result.Endpoint)
	}
	if string(result.Payload) != "pinned content" {
		t.Errorf("unexpected payload %q", result.Payload)
	}
	if len(result.Attempts) != 2 {
		t.Fatalf("expected 2 failed attempts in trace, got %d", len(result.Attempts))
	}
	if result.Attempts[0].Endpoint != "first" || result.Attempts[1].Endpoint != "second" {
		t.Errorf("attempt trace out of order: %+v", result.Attempts)
	}
}

func TestFetchWithFailoverAllEndpointsFail(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	m := newTestMonitor([]Endpoint{
		{Name: "only", URL: server.URL + "/ipfs/", Tier: TierPrimary},
	})

	result, err := m.FetchWithFailover(context.Background(), "bafytest", FetchOptions{})
	if !errors.Is(err, ErrAllEndpointsFailed) {
		t.Errorf("expected ErrAllEndpointsFailed, got %v", err)
	}
	if result == nil || len(result.Attempts) != 1 {
		t.Errorf("expected the attempt trace to be returned with the error")
	}
}

func TestResolveFallsBackToTopPriority(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	m := newTestMonitor([]Endpoint{
		{Name: "preferred", URL: server.URL + "/a/", Tier: TierPrimary},
		{Name: "secondary", URL: server.URL + "/b/", Tier: TierPublic},
	})

	url := m.Resolve(context.Background(), "bafytest")
	if url != server.URL+"/a/bafytest" {
		t.Errorf("expected top-priority URL, got %s", url)
	}
}

func TestHealthyCount(t *testing.T) {
	up := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer up.Close()
	downServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer downServer.Close()

	m := newTestMonitor([]Endpoint{
		{Name: "up", URL: up.URL + "/ipfs/", Tier: TierPrimary},
		{Name: "down", URL: downServer.URL + "/ipfs/", Tier: TierPublic},
	})

	if n := m.HealthyCount(context.Background()); n != 1 {
		t.Errorf("expected 1 healthy endpoint, got %d", n)
	}
}

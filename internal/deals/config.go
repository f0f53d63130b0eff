package deals

import (
	"os"
	"strconv"

	"golang.org/x/time/rate"
)

// Config holds the deal-status source configuration. An empty BaseURL
// means no live source; the tracker then simulates.
type Config struct {
	BaseURL   string
	Token     string
	RateLimit rate.Limit
	Burst     int
}

// LoadConfig loads deal-tracking configuration from environment variables.
func LoadConfig() (*Config, error) {
	config := &Config{
		BaseURL:   os.Getenv("DEALS_STATUS_URL"),
		Token:     os.Getenv("DEALS_API_TOKEN"),
		RateLimit: rate.Limit(2),
		Burst:     5,
	}

	if v := os.Getenv("DEALS_RATE_LIMIT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			config.RateLimit = rate.Limit(f)
		}
	}
	if v := os.Getenv("DEALS_RATE_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			config.Burst = n
		}
	}

	return config, nil
}

// OpenSource constructs the configured status source, or nil when no
// live endpoint is configured.
func OpenSource(cfg *Config) StatusSource {
	if cfg.BaseURL == "" {
		return nil
	}

	client := NewHTTPClient(cfg.BaseURL, cfg.Token)
	client.SetRateLimiter(&RateLimiter{
		Limiter: rate.NewLimiter(cfg.RateLimit, cfg.Burst),
		Rate:    cfg.RateLimit,
		Burst:   cfg.Burst,
	})
	return client
}

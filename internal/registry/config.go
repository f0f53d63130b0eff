package registry

import (
	"context"
	"fmt"
	"os"

	"github.com/Heisenberg1912/filecoin/internal/store"
)

// Config holds the registry-related configuration. The variant is
// selected here, by configuration, never by fallback-on-exception.
type Config struct {
	Mode     string // "simulated" or "remote"
	Admin    string
	BaseURL  string
	Token    string
	Explorer string
}

// LoadConfig loads registry configuration from environment variables.
func LoadConfig() (*Config, error) {
	mode := os.Getenv("REGISTRY_MODE")
	if mode == "" {
		mode = "simulated"
	}

	config := &Config{
		Mode:     mode,
		Admin:    os.Getenv("REGISTRY_ADMIN"),
		Explorer: os.Getenv("EXPLORER_BASE_URL"),
	}
	if config.Explorer == "" {
		config.Explorer = "https://calibration.filfox.info/en/message/"
	}

	switch mode {
	case "simulated":
		// No further settings required.
	case "remote":
		config.BaseURL = os.Getenv("REGISTRY_BASE_URL")
		if config.BaseURL == "" {
			return nil, fmt.Errorf("REGISTRY_BASE_URL is required when REGISTRY_MODE=remote")
		}
		config.Token = os.Getenv("REGISTRY_TOKEN")
	default:
		return nil, fmt.Errorf("unsupported REGISTRY_MODE: %s", mode)
	}

	return config, nil
}

// Open constructs the configured Registry variant.
func Open(ctx context.Context, cfg *Config, db store.Database) (Registry, error) {
	switch cfg.Mode {
	case "simulated":
		return NewSimLedger(ctx, db, cfg.Admin)
	case "remote":
		return NewRemote(cfg.BaseURL, cfg.Token), nil
	default:
		return nil, fmt.Errorf("unsupported REGISTRY_MODE: %s", cfg.Mode)
	}
}

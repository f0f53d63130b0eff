package storage

import (
	"context"
	"fmt"
	"os"
)

// Config holds the content-addressed storage configuration.
type Config struct {
	Mode        string // "s3" or "simulated"
	S3Endpoint  string
	S3Region    string
	S3Bucket    string
	S3AccessKey string
	S3SecretKey string
}

// LoadConfig loads storage configuration from environment variables.
// When no S3 settings are present the simulated backend is selected.
func LoadConfig() (*Config, error) {
	mode := os.Getenv("STORAGE_MODE")
	if mode == "" {
		if os.Getenv("S3_ENDPOINT") != "" {
			mode = "s3"
		} else {
			mode = "simulated"
		}
	}

	config := &Config{Mode: mode}

	switch mode {
	case "simulated":
		// No further settings required.
	case "s3":
		config.S3Endpoint = os.Getenv("S3_ENDPOINT")
		config.S3Region = os.Getenv("S3_REGION")
		config.S3Bucket = os.Getenv("S3_BUCKET")
		config.S3AccessKey = os.Getenv("S3_ACCESS_KEY")
		config.S3SecretKey = os.Getenv("S3_SECRET_KEY")
		if config.S3Endpoint == "" || config.S3Bucket == "" {
			return nil, fmt.Errorf("S3_ENDPOINT and S3_BUCKET are required when STORAGE_MODE=s3")
		}
		if config.S3Region == "" {
			config.S3Region = "us-east-1"
		}
	default:
		return nil, fmt.Errorf("unsupported STORAGE_MODE: %s", mode)
	}

	return config, nil
}

// Open constructs the configured storage backend.
func Open(ctx context.Context, cfg *Config) (Client, error) {
	switch cfg.Mode {
	case "simulated":
		return NewSimulated(), nil
	case "s3":
		return NewS3Client(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported STORAGE_MODE: %s", cfg.Mode)
	}
}

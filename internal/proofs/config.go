package proofs

import "os"

// Config holds the certification-workflow configuration.
type Config struct {
	Registrant string
	GatewayURL string
}

// LoadConfig loads certification configuration from environment variables.
func LoadConfig() (*Config, error) {
	registrant := os.Getenv("REGISTRANT")
	if registrant == "" {
		registrant = "proofd"
	}

	gatewayURL := os.Getenv("GATEWAY_BASE_URL")
	if gatewayURL == "" {
		gatewayURL = "https://w3s.link/ipfs/"
	}

	return &Config{
		Registrant: registrant,
		GatewayURL: gatewayURL,
	}, nil
}

package webserver

import (
	"os"
	"strings"
)

// WebserverConfig holds the HTTP API configuration.
type WebserverConfig struct {
	ListenTo           string
	CorsAllowedOrigins []string
	JwtSecret          string
}

// NewWebserverConfig reads the API settings from environment variables.
func NewWebserverConfig() (*WebserverConfig, error) {
	config := &WebserverConfig{}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	config.ListenTo = ":" + port

	for _, origin := range strings.Split(os.Getenv("CORS_ALLOWED_ORIGINS"), ",") {
		origin = strings.TrimSpace(origin)
		if origin != "" {
			config.CorsAllowedOrigins = append(config.CorsAllowedOrigins, origin)
		}
	}

	// Optional; mutating routes are open when unset.
	config.JwtSecret = os.Getenv("API_JWT_SECRET")

	return config, nil
}

package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds the application configuration
type Config struct {
	Port string

	// Postgres configuration
	DatabaseURL string

	// Session token configuration
	JWTSecret string
	TokenTTL  time.Duration

	UseMockDB bool
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() (*Config, error) {
	config := &Config{}

	// Token signing secret (required)
	config.JWTSecret = os.Getenv("JWT_SECRET")
	if config.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	// Use Mock DB (default: false)
	config.UseMockDB = os.Getenv("USE_MOCK_DB") == "true"

	// Postgres configuration (required if not using mock)
	if !config.UseMockDB {
		config.DatabaseURL = os.Getenv("DATABASE_URL")
		if config.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required when USE_MOCK_DB is not set")
		}
	}

	config.Port = os.Getenv("PORT")
	if config.Port == "" {
		config.Port = "8080"
	}

	ttlStr := os.Getenv("TOKEN_TTL_HOURS")
	if ttlStr == "" {
		config.TokenTTL = 24 * time.Hour
	} else {
		hours, err := strconv.Atoi(ttlStr)
		if err != nil || hours <= 0 {
			return nil, fmt.Errorf("invalid TOKEN_TTL_HOURS: %s", ttlStr)
		}
		config.TokenTTL = time.Duration(hours) * time.Hour
	}

	return config, nil
}

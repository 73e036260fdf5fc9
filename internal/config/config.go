// Package config loads the paygate server configuration from the
// environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds the paygate server configuration.
type Config struct {
	GinMode string
	Port    string

	// ConfigDir and ConfigURL select the requirement source; exactly one
	// must be set.
	ConfigDir string
	ConfigURL string

	// ReloadInterval is how often the registry snapshot is refreshed from
	// the source. Zero disables periodic reloads.
	ReloadInterval time.Duration

	FacilitatorURL string

	// FacilitatorAuth is the Authorization header value for the
	// facilitator. Supports sm:// secret references.
	FacilitatorAuth string

	// VerifyOnly skips settlement.
	VerifyOnly bool

	FrontendURL string
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		GinMode:         envDefault("GIN_MODE", "debug"),
		Port:            envDefault("PORT", "8402"),
		ConfigDir:       os.Getenv("PAYGATE_CONFIG_DIR"),
		ConfigURL:       os.Getenv("PAYGATE_CONFIG_URL"),
		FacilitatorAuth: os.Getenv("PAYGATE_FACILITATOR_AUTH"),
		FrontendURL:     os.Getenv("FRONTEND_URL"),
	}

	cfg.FacilitatorURL = os.Getenv("PAYGATE_FACILITATOR_URL")
	if cfg.FacilitatorURL == "" {
		return nil, fmt.Errorf("missing required environment variable: PAYGATE_FACILITATOR_URL")
	}

	if cfg.ConfigDir == "" && cfg.ConfigURL == "" {
		return nil, fmt.Errorf("one of PAYGATE_CONFIG_DIR or PAYGATE_CONFIG_URL must be set")
	}
	if cfg.ConfigDir != "" && cfg.ConfigURL != "" {
		return nil, fmt.Errorf("PAYGATE_CONFIG_DIR and PAYGATE_CONFIG_URL are mutually exclusive")
	}

	if v := os.Getenv("PAYGATE_RELOAD_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid PAYGATE_RELOAD_INTERVAL: %w", err)
		}
		cfg.ReloadInterval = d
	}

	if v := os.Getenv("PAYGATE_VERIFY_ONLY"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid PAYGATE_VERIFY_ONLY: %w", err)
		}
		cfg.VerifyOnly = b
	}

	return cfg, nil
}

func envDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

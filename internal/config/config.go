// Package config loads CLI settings from CPSMS_-prefixed environment
// variables using koanf, with compiled defaults underneath.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"

	cpsms "github.com/jetdk/cpsms-client"
)

// Config holds everything the CLI needs to reach the gateway.
type Config struct {
	// Gateway account credentials. Both are required.
	Username string `koanf:"username"`
	APIKey   string `koanf:"api_key"`

	// BaseURL overrides the production endpoint.
	BaseURL string `koanf:"base_url"`

	// Timeout bounds each gateway round-trip.
	Timeout time.Duration `koanf:"timeout"`

	// Logging configuration
	LogLevel  string `koanf:"log_level"`
	LogFormat string `koanf:"log_format"`

	// OpenTelemetry configuration. An empty endpoint disables export.
	OTELEndpoint    string `koanf:"otel_endpoint"`
	OTELServiceName string `koanf:"otel_service_name"`
}

// envPrefix namespaces every setting: CPSMS_USERNAME, CPSMS_API_KEY,
// CPSMS_BASE_URL and so on.
const envPrefix = "CPSMS_"

func defaults() *Config {
	return &Config{
		BaseURL:         cpsms.DefaultBaseURL,
		Timeout:         cpsms.DefaultTimeout,
		LogLevel:        "info",
		LogFormat:       "json",
		OTELServiceName: "cpsms-cli",
	}
}

// Load reads CPSMS_-prefixed environment variables over compiled
// defaults. Missing credentials fail the load; every other key falls
// back to its default.
func Load() (*Config, error) {
	k := koanf.New(".")

	cfg := defaults()

	err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, envPrefix))
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("load env vars: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := validateRequired(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validateRequired checks that the gateway credentials are present.
func validateRequired(cfg *Config) error {
	if cfg.Username == "" {
		return fmt.Errorf("%w: CPSMS_USERNAME", cpsms.ErrConfig)
	}
	if cfg.APIKey == "" {
		return fmt.Errorf("%w: CPSMS_API_KEY", cpsms.ErrConfig)
	}
	return nil
}

// ClientConfig maps the loaded settings onto a client configuration.
// The logger is the caller's to attach.
func (c *Config) ClientConfig() cpsms.Config {
	return cpsms.Config{
		Username: c.Username,
		APIKey:   c.APIKey,
		BaseURL:  c.BaseURL,
		Timeout:  c.Timeout,
	}
}

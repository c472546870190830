package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	coreconfig "github.com/go-core-fx/config"
)

var ErrMissingBackendURL = errors.New("BACKEND_API_URL is not defined")

type Config struct {
	BackendAPIURL     string        `koanf:"backend_api_url"`
	MockAPIURL        string        `koanf:"mock_api_url"`
	Timeout           time.Duration `koanf:"timeout"`
	RetryCount        int           `koanf:"retry_count"`
	RequestRate       float64       `koanf:"request_rate"`
	RequestBurst      int           `koanf:"request_burst"`
	BreakerFailures   uint32        `koanf:"breaker_failures"`
	BreakerCooldown   time.Duration `koanf:"breaker_cooldown"`
	RefreshInterval   time.Duration `koanf:"refresh_interval"`
	StreamMinBackoff  time.Duration `koanf:"stream_min_backoff"`
	StreamMaxBackoff  time.Duration `koanf:"stream_max_backoff"`
	StreamMaxAttempts uint          `koanf:"stream_max_attempts"`
	MetricsAddr       string        `koanf:"metrics_addr"`
	LogFile           string        `koanf:"log_file"`
	Debug             bool          `koanf:"debug"`
}

func Default() Config {
	return Config{
		MockAPIURL:       "http://localhost:3001",
		Timeout:          10 * time.Second,
		RetryCount:       1,
		RequestRate:      20,
		RequestBurst:     10,
		BreakerFailures:  5,
		BreakerCooldown:  30 * time.Second,
		RefreshInterval:  30 * time.Second,
		StreamMinBackoff: 1 * time.Second,
		StreamMaxBackoff: 30 * time.Second,
		LogFile:          "./store-dashboard.log",
		Debug:            false,
	}
}

// New loads the environment over Default. Validation is left to the caller
// because command line flags may still override what was loaded.
func New() (Config, error) {
	cfg := Default()

	if err := coreconfig.Load(&cfg); err != nil {
		return Config{}, fmt.Errorf("loading config: %w", err)
	}

	return cfg, nil
}

// Validate normalizes URLs in place and rejects a config the dashboard
// cannot start with.
func (c *Config) Validate() error {
	c.BackendAPIURL = strings.TrimRight(strings.TrimSpace(c.BackendAPIURL), "/")
	c.MockAPIURL = strings.TrimRight(strings.TrimSpace(c.MockAPIURL), "/")

	if c.BackendAPIURL == "" {
		return ErrMissingBackendURL
	}
	if err := checkHTTPURL(c.BackendAPIURL); err != nil {
		return fmt.Errorf("invalid backend_api_url: %w", err)
	}
	if c.MockAPIURL != "" {
		if err := checkHTTPURL(c.MockAPIURL); err != nil {
			return fmt.Errorf("invalid mock_api_url: %w", err)
		}
	}
	if c.RefreshInterval <= 0 {
		return fmt.Errorf("refresh_interval must be positive, got %s", c.RefreshInterval)
	}
	if c.StreamMaxBackoff < c.StreamMinBackoff {
		c.StreamMaxBackoff = c.StreamMinBackoff
	}
	if c.RetryCount < 0 {
		c.RetryCount = 0
	}
	if c.RequestRate < 0 {
		c.RequestRate = 0
	}
	if c.RequestBurst < 1 {
		c.RequestBurst = 1
	}
	return nil
}

func checkHTTPURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("missing host")
	}
	return nil
}

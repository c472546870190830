package cli

import (
	"time"

	"store_dashboard/internal/config"
)

type Options struct {
	BackendURL  string
	MockURL     string
	Timeout     time.Duration
	Refresh     time.Duration
	JSON        bool
	Debug       bool
	LogFile     string
	MetricsAddr string

	Command string
	Args    []string
}

func optionsFromConfig(cfg config.Config) Options {
	return Options{
		BackendURL:  cfg.BackendAPIURL,
		MockURL:     cfg.MockAPIURL,
		Timeout:     cfg.Timeout,
		Refresh:     cfg.RefreshInterval,
		Debug:       cfg.Debug,
		LogFile:     cfg.LogFile,
		MetricsAddr: cfg.MetricsAddr,
	}
}

// apply overlays the command line values on cfg.
func (o Options) apply(cfg config.Config) config.Config {
	cfg.BackendAPIURL = o.BackendURL
	cfg.MockAPIURL = o.MockURL
	if o.Timeout > 0 {
		cfg.Timeout = o.Timeout
	}
	if o.Refresh > 0 {
		cfg.RefreshInterval = o.Refresh
	}
	cfg.Debug = o.Debug
	cfg.LogFile = o.LogFile
	cfg.MetricsAddr = o.MetricsAddr
	return cfg
}

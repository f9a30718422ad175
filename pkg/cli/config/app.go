package config

import (
	"os"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/pelletier/go-toml/v2"
	"github.com/urfave/cli/v3"

	"github.com/mnemon-lab/mnemon/pkg/usecase"
)

// AppConfig holds the pipeline tunables loaded from a TOML file.
// All sections are optional; absent values fall back to built-in
// defaults.
type AppConfig struct {
	Compression CompressionConfig `toml:"compression"`
	Search      SearchConfig      `toml:"search"`
	Reaper      ReaperConfig      `toml:"reaper"`
}

// CompressionConfig tunes the observation compression pipeline
type CompressionConfig struct {
	DeferredTimeoutSec int `toml:"deferred_timeout_sec"`
	SyncTimeoutSec     int `toml:"sync_timeout_sec"`
}

// Validate checks if the CompressionConfig is valid
func (c *CompressionConfig) Validate() error {
	if c.DeferredTimeoutSec < 0 {
		return goerr.New("deferred_timeout_sec must not be negative", goerr.V("value", c.DeferredTimeoutSec))
	}
	if c.SyncTimeoutSec < 0 {
		return goerr.New("sync_timeout_sec must not be negative", goerr.V("value", c.SyncTimeoutSec))
	}
	return nil
}

// SearchConfig tunes the retrieval pipeline
type SearchConfig struct {
	RecencyWindowDays     int `toml:"recency_window_days"`
	CandidatePool         int `toml:"candidate_pool"`
	VectorQueryTimeoutSec int `toml:"vector_query_timeout_sec"`
}

// Validate checks if the SearchConfig is valid
func (s *SearchConfig) Validate() error {
	if s.RecencyWindowDays < 0 {
		return goerr.New("recency_window_days must not be negative", goerr.V("value", s.RecencyWindowDays))
	}
	if s.CandidatePool < 0 {
		return goerr.New("candidate_pool must not be negative", goerr.V("value", s.CandidatePool))
	}
	if s.VectorQueryTimeoutSec < 0 {
		return goerr.New("vector_query_timeout_sec must not be negative", goerr.V("value", s.VectorQueryTimeoutSec))
	}
	return nil
}

// ReaperConfig tunes the idle session reaper
type ReaperConfig struct {
	IntervalSec int `toml:"interval_sec"`
	IdleTTLSec  int `toml:"idle_ttl_sec"`
}

// Validate checks if the ReaperConfig is valid
func (r *ReaperConfig) Validate() error {
	if r.IntervalSec < 0 {
		return goerr.New("interval_sec must not be negative", goerr.V("value", r.IntervalSec))
	}
	if r.IdleTTLSec < 0 {
		return goerr.New("idle_ttl_sec must not be negative", goerr.V("value", r.IdleTTLSec))
	}
	return nil
}

// Validate checks if the AppConfig is valid
func (a *AppConfig) Validate() error {
	if err := a.Compression.Validate(); err != nil {
		return goerr.Wrap(err, "invalid compression config")
	}
	if err := a.Search.Validate(); err != nil {
		return goerr.Wrap(err, "invalid search config")
	}
	if err := a.Reaper.Validate(); err != nil {
		return goerr.Wrap(err, "invalid reaper config")
	}
	return nil
}

// ToPipelineConfig converts AppConfig to the usecase pipeline config.
// Unset values stay zero so the pipeline applies its own defaults.
func (a *AppConfig) ToPipelineConfig() usecase.Config {
	return usecase.Config{
		DeferredTimeout:    time.Duration(a.Compression.DeferredTimeoutSec) * time.Second,
		SyncTimeout:        time.Duration(a.Compression.SyncTimeoutSec) * time.Second,
		RecencyWindow:      time.Duration(a.Search.RecencyWindowDays) * 24 * time.Hour,
		CandidatePool:      a.Search.CandidatePool,
		VectorQueryTimeout: time.Duration(a.Search.VectorQueryTimeoutSec) * time.Second,
	}
}

// ReaperInterval returns the sweep interval for the session reaper
func (a *AppConfig) ReaperInterval() time.Duration {
	if a.Reaper.IntervalSec <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(a.Reaper.IntervalSec) * time.Second
}

// ReaperIdleTTL returns how long a session may stay idle before the
// reaper abandons it
func (a *AppConfig) ReaperIdleTTL() time.Duration {
	if a.Reaper.IdleTTLSec <= 0 {
		return 2 * time.Hour
	}
	return time.Duration(a.Reaper.IdleTTLSec) * time.Second
}

// LoadAppConfiguration loads the application configuration from a TOML file
func LoadAppConfiguration(path string) (*AppConfig, error) {
	// #nosec G304 - path is expected to be provided by CLI argument
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read config file", goerr.V("path", path))
	}

	var config AppConfig
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, goerr.Wrap(err, "failed to parse TOML config", goerr.V("path", path))
	}

	if err := config.Validate(); err != nil {
		return nil, goerr.Wrap(err, "config validation failed", goerr.V("path", path))
	}

	return &config, nil
}

// App wires the optional TOML configuration file into the CLI
type App struct {
	path string
}

// Flags returns CLI flags for application configuration
func (a *App) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Aliases:     []string{"c"},
			Usage:       "Path to TOML configuration file (optional)",
			Sources:     cli.EnvVars("MNEMON_CONFIG"),
			Destination: &a.path,
		},
	}
}

// Configure loads the configuration file if one was given, or returns
// an empty configuration otherwise
func (a *App) Configure() (*AppConfig, error) {
	if a.path == "" {
		return &AppConfig{}, nil
	}
	return LoadAppConfiguration(a.path)
}

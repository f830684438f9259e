// Package config handles TOML configuration for Sweep.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/yairfalse/sweep/pkg/resource"
)

// Config is the root configuration structure.
type Config struct {
	AWS     AWSConfig     `toml:"aws"`
	Scanner ScannerConfig `toml:"scanner"`
	OTEL    OTELConfig    `toml:"otel"`
	Store   StoreConfig   `toml:"store"`
	Server  ServerConfig  `toml:"server"`
	Log     LogConfig     `toml:"log"`
}

// AWSConfig holds AWS provider settings.
type AWSConfig struct {
	BootstrapRegion string   `toml:"bootstrap_region"`
	Profile         string   `toml:"profile"`
	Regions         []string `toml:"regions"`
	ExcludeRegions  []string `toml:"exclude_regions"`
}

// ScannerConfig holds discovery settings.
type ScannerConfig struct {
	AnchorRegion      string   `toml:"anchor_region"`
	Concurrency       int      `toml:"concurrency"`
	EnrichConcurrency int      `toml:"enrich_concurrency"`
	RateLimit         float64  `toml:"rate_limit"`
	MaxRetries        int      `toml:"max_retries"` // -1 disables retries
	ProbeTimeoutStr   string   `toml:"probe_timeout"`
	TimeoutStr        string   `toml:"timeout"`
	ExcludeServices   []string `toml:"exclude_services"`

	ProbeTimeout time.Duration          `toml:"-"`
	Timeout      time.Duration          `toml:"-"`
	ExcludeKinds []resource.ServiceKind `toml:"-"`
}

// OTELConfig holds OpenTelemetry settings.
type OTELConfig struct {
	Endpoint    string        `toml:"endpoint"`
	Insecure    bool          `toml:"insecure"`
	ServiceName string        `toml:"service_name"`
	Traces      TracesConfig  `toml:"traces"`
	Metrics     MetricsConfig `toml:"metrics"`
}

// TracesConfig holds tracing settings.
type TracesConfig struct {
	Enabled    bool    `toml:"enabled"`
	SampleRate float64 `toml:"sample_rate"`
}

// MetricsConfig holds metrics settings.
type MetricsConfig struct {
	Enabled bool `toml:"enabled"`
}

// StoreConfig holds snapshot store settings.
type StoreConfig struct {
	Path string `toml:"path"`
}

// ServerConfig holds HTTP API settings.
type ServerConfig struct {
	Addr        string `toml:"addr"`
	IntervalStr string `toml:"interval"` // scheduled discovery; empty disables

	Interval time.Duration `toml:"-"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `toml:"level"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	// defaults always parse
	_ = parseDurations(cfg)
	return cfg
}

// Load reads and parses a TOML config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyDefaults(cfg)

	if err := parseDurations(cfg); err != nil {
		return nil, err
	}
	if err := parseServices(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.AWS.BootstrapRegion == "" {
		cfg.AWS.BootstrapRegion = "us-east-1"
	}
	if cfg.Scanner.AnchorRegion == "" {
		cfg.Scanner.AnchorRegion = "us-east-1"
	}
	if cfg.Scanner.Concurrency == 0 {
		cfg.Scanner.Concurrency = 16
	}
	if cfg.Scanner.EnrichConcurrency == 0 {
		cfg.Scanner.EnrichConcurrency = 8
	}
	if cfg.Scanner.RateLimit == 0 {
		cfg.Scanner.RateLimit = 20
	}
	if cfg.Scanner.MaxRetries == 0 {
		cfg.Scanner.MaxRetries = 3
	}
	if cfg.Scanner.ProbeTimeoutStr == "" {
		cfg.Scanner.ProbeTimeoutStr = "2m"
	}
	if cfg.Scanner.TimeoutStr == "" {
		cfg.Scanner.TimeoutStr = "10m"
	}
	if cfg.OTEL.ServiceName == "" {
		cfg.OTEL.ServiceName = "sweep"
	}
	if cfg.Store.Path == "" {
		cfg.Store.Path = "sweep.db"
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = "127.0.0.1:5000"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}

func parseDurations(cfg *Config) error {
	d, err := time.ParseDuration(cfg.Scanner.ProbeTimeoutStr)
	if err != nil {
		return fmt.Errorf("parse probe_timeout %q: %w", cfg.Scanner.ProbeTimeoutStr, err)
	}
	cfg.Scanner.ProbeTimeout = d

	d, err = time.ParseDuration(cfg.Scanner.TimeoutStr)
	if err != nil {
		return fmt.Errorf("parse timeout %q: %w", cfg.Scanner.TimeoutStr, err)
	}
	cfg.Scanner.Timeout = d

	if cfg.Server.IntervalStr != "" {
		d, err = time.ParseDuration(cfg.Server.IntervalStr)
		if err != nil {
			return fmt.Errorf("parse interval %q: %w", cfg.Server.IntervalStr, err)
		}
		cfg.Server.Interval = d
	}
	return nil
}

func parseServices(cfg *Config) error {
	kinds, err := ParseServices(cfg.Scanner.ExcludeServices)
	if err != nil {
		return fmt.Errorf("scanner: exclude_services: %w", err)
	}
	cfg.Scanner.ExcludeKinds = kinds
	return nil
}

// ParseServices converts service names or labels ("Compute", "EC2") to kinds.
func ParseServices(names []string) ([]resource.ServiceKind, error) {
	kinds := make([]resource.ServiceKind, 0, len(names))
	for _, name := range names {
		k, err := resource.ParseKind(name)
		if err != nil {
			return nil, err
		}
		kinds = append(kinds, k)
	}
	return kinds, nil
}

// Validate checks the configuration is valid.
func (c *Config) Validate() error {
	if c.AWS.BootstrapRegion == "" {
		return errors.New("aws: bootstrap_region required")
	}
	if c.Scanner.Concurrency < 1 {
		return fmt.Errorf("scanner: concurrency must be positive (got %d)", c.Scanner.Concurrency)
	}
	if c.Scanner.EnrichConcurrency < 1 {
		return fmt.Errorf("scanner: enrich_concurrency must be positive (got %d)", c.Scanner.EnrichConcurrency)
	}
	if c.Scanner.RateLimit < 0 {
		return fmt.Errorf("scanner: rate_limit must not be negative (got %v)", c.Scanner.RateLimit)
	}
	if c.Scanner.ProbeTimeout <= 0 {
		return fmt.Errorf("scanner: probe_timeout must be positive (got %s)", c.Scanner.ProbeTimeout)
	}
	if c.Scanner.Timeout <= 0 {
		return fmt.Errorf("scanner: timeout must be positive (got %s)", c.Scanner.Timeout)
	}
	if c.Server.Interval < 0 {
		return fmt.Errorf("server: interval must not be negative (got %s)", c.Server.Interval)
	}
	if c.OTEL.Traces.SampleRate < 0.0 || c.OTEL.Traces.SampleRate > 1.0 {
		return fmt.Errorf("otel: traces.sample_rate must be between 0.0 and 1.0 (got %v)", c.OTEL.Traces.SampleRate)
	}
	return nil
}

// Retries returns the effective retry count for throttled probes.
func (c *Config) Retries() int {
	return max(c.Scanner.MaxRetries, 0)
}
